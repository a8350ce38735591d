// Package config loads the daaktar configuration.
//
// Values are resolved in increasing priority: built-in defaults, the YAML
// file, a .env file, DAAKTAR_* environment variables. Command-line flags
// are applied by the caller after Load.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Yahya305/Daaktar-Saab/internal/dialogue"
	"github.com/Yahya305/Daaktar-Saab/internal/embedding"
	"github.com/Yahya305/Daaktar-Saab/internal/enrich"
	"github.com/Yahya305/Daaktar-Saab/internal/index"
	"github.com/Yahya305/Daaktar-Saab/internal/llm"
)

// DefaultPath is the config file looked up in the working directory.
const DefaultPath = "daaktar.yaml"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Store     StoreConfig      `yaml:"store"`
	LLM       llm.Config       `yaml:"llm"`
	Embedding embedding.Config `yaml:"embedding"`
	Index     IndexConfig      `yaml:"index"`
	Dialogue  DialogueConfig   `yaml:"dialogue"`
	Log       LogConfig        `yaml:"log"`
	Seed      SeedConfig       `yaml:"seed"`
}

// ServerConfig configures the HTTP transport.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects the database. An empty DSN means the default SQLite
// file under the user's data directory.
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// IndexConfig selects the similarity search backend.
type IndexConfig struct {
	// Backend is one of "store", "memory", "qdrant".
	Backend string       `yaml:"backend"`
	Qdrant  QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig mirrors index.QdrantConfig for YAML.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
	APIKey     string `yaml:"api_key"`
	Dimensions int    `yaml:"dimensions"`
}

// DialogueConfig holds the engine limits and the enrichment settings.
type DialogueConfig struct {
	MaxDepth          int     `yaml:"max_depth"`
	TopK              int     `yaml:"top_k"`
	SymptomSimilarity float64 `yaml:"symptom_similarity"`
	MaxTokens         int     `yaml:"max_tokens"`
	DefaultThreshold  float64 `yaml:"default_threshold"`

	// Enricher is "rule" or "llm".
	Enricher string `yaml:"enricher"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// SeedConfig locates the corpus file.
type SeedConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	d := dialogue.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Addr:            ":8000",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		LLM:       llm.DefaultConfig(),
		Embedding: embedding.DefaultConfig(),
		Index: IndexConfig{
			Backend: "store",
			Qdrant:  QdrantConfig{URL: "http://localhost:6334", Collection: "symptoms"},
		},
		Dialogue: DialogueConfig{
			MaxDepth:          d.MaxDepth,
			TopK:              d.TopK,
			SymptomSimilarity: d.SymptomSimilarity,
			MaxTokens:         d.MaxTokens,
			DefaultThreshold:  enrich.DefaultThreshold,
			Enricher:          "rule",
		},
		Log:  LogConfig{Level: "info", Format: "text"},
		Seed: SeedConfig{Path: "symptoms_data.json"},
	}
}

// Load reads the YAML file at path over the defaults and applies the
// environment. An empty path falls back to $DAAKTAR_CONFIG, then
// DefaultPath. A missing file is not an error unless the path was given
// explicitly.
func Load(path string) (Config, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv("DAAKTAR_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

// LoadEnvFile loads KEY=value pairs from the given .env files (or ./.env)
// into the process environment without overriding variables already set.
// Missing files are ignored.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from DAAKTAR_* environment variables. When no
// LLM provider is configured anywhere, standard provider key variables are
// probed.
func (c *Config) ApplyEnv() error {
	setString(&c.Server.Addr, "DAAKTAR_ADDR")
	if v := os.Getenv("DAAKTAR_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	setString(&c.Store.DSN, "DAAKTAR_DSN")

	c.LLM.ApplyEnv()
	if c.LLM.Provider == "" {
		if discovered, ok := llm.DiscoverConfig(); ok {
			c.LLM = discovered
		}
	}

	setString(&c.Embedding.Provider, "DAAKTAR_EMBEDDING_PROVIDER")
	setString(&c.Embedding.OpenAI.APIKey, "DAAKTAR_EMBEDDING_OPENAI_API_KEY")
	setString(&c.Embedding.OpenAI.Model, "DAAKTAR_EMBEDDING_OPENAI_MODEL")
	setString(&c.Embedding.OpenAI.BaseURL, "DAAKTAR_EMBEDDING_OPENAI_BASE_URL")
	setString(&c.Embedding.Gemini.APIKey, "DAAKTAR_EMBEDDING_GEMINI_API_KEY")
	setString(&c.Embedding.Cache.Kind, "DAAKTAR_EMBEDDING_CACHE")
	setString(&c.Embedding.Cache.RedisURL, "DAAKTAR_REDIS_URL")

	setString(&c.Index.Backend, "DAAKTAR_INDEX")
	setString(&c.Index.Qdrant.URL, "DAAKTAR_QDRANT_URL")
	setString(&c.Index.Qdrant.Collection, "DAAKTAR_QDRANT_COLLECTION")
	setString(&c.Index.Qdrant.APIKey, "DAAKTAR_QDRANT_API_KEY")

	if err := setFloat(&c.Dialogue.DefaultThreshold, "DAAKTAR_DEFAULT_THRESHOLD"); err != nil {
		return err
	}
	if err := setInt(&c.Dialogue.MaxDepth, "DAAKTAR_MAX_DEPTH"); err != nil {
		return err
	}
	setString(&c.Dialogue.Enricher, "DAAKTAR_ENRICHER")

	setString(&c.Log.Level, "DAAKTAR_LOG_LEVEL")
	setString(&c.Log.Format, "DAAKTAR_LOG_FORMAT")
	setString(&c.Seed.Path, "DAAKTAR_SEED_PATH")
	return nil
}

// applyDefaults fills zero values a partial YAML file may leave behind.
func applyDefaults(c *Config) {
	def := Default()
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Index.Backend == "" {
		c.Index.Backend = def.Index.Backend
	}
	if c.Dialogue.MaxDepth <= 0 {
		c.Dialogue.MaxDepth = def.Dialogue.MaxDepth
	}
	if c.Dialogue.TopK <= 0 {
		c.Dialogue.TopK = def.Dialogue.TopK
	}
	if c.Dialogue.SymptomSimilarity <= 0 {
		c.Dialogue.SymptomSimilarity = def.Dialogue.SymptomSimilarity
	}
	if c.Dialogue.MaxTokens <= 0 {
		c.Dialogue.MaxTokens = def.Dialogue.MaxTokens
	}
	if c.Dialogue.DefaultThreshold <= 0 {
		c.Dialogue.DefaultThreshold = def.Dialogue.DefaultThreshold
	}
	if c.Dialogue.Enricher == "" {
		c.Dialogue.Enricher = def.Dialogue.Enricher
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = def.Embedding.Provider
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.LLM.Enabled() {
		if err := c.LLM.Validate(); err != nil {
			return fmt.Errorf("llm: %w", err)
		}
	}
	if err := c.Embedding.Validate(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}

	switch c.Index.Backend {
	case "store", "memory":
	case "qdrant":
		if c.Index.Qdrant.URL == "" || c.Index.Qdrant.Collection == "" {
			return fmt.Errorf("index: qdrant url and collection are required")
		}
	default:
		return fmt.Errorf("index: unknown backend %q", c.Index.Backend)
	}

	d := c.Dialogue
	if d.SymptomSimilarity > 1 {
		return fmt.Errorf("dialogue: symptom_similarity must be within [0,1], got %v", d.SymptomSimilarity)
	}
	if d.DefaultThreshold > 1 {
		return fmt.Errorf("dialogue: default_threshold must be within [0,1], got %v", d.DefaultThreshold)
	}
	switch d.Enricher {
	case "rule":
	case "llm":
		if !c.LLM.Enabled() {
			return fmt.Errorf("dialogue: the llm enricher needs an llm provider")
		}
	default:
		return fmt.Errorf("dialogue: unknown enricher %q", d.Enricher)
	}

	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}
	return nil
}

// Engine converts the dialogue section to engine limits.
func (d DialogueConfig) Engine() dialogue.Config {
	return dialogue.Config{
		MaxDepth:          d.MaxDepth,
		TopK:              d.TopK,
		SymptomSimilarity: d.SymptomSimilarity,
		MaxTokens:         d.MaxTokens,
	}
}

// Index converts the qdrant section, taking dimensions from the embedder
// when unset.
func (q QdrantConfig) Index(dims int) index.QdrantConfig {
	if q.Dimensions > 0 {
		dims = q.Dimensions
	}
	return index.QdrantConfig{
		URL:        q.URL,
		Collection: q.Collection,
		APIKey:     q.APIKey,
		Dimensions: dims,
	}
}

// NewLogger builds a slog logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := l.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log: unknown level %q", l.Level)
	}
	return level, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
