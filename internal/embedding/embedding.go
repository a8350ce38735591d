// Package embedding turns text into vectors for similarity search.
//
// Every Provider is order-preserving and returns one vector per input text.
// Providers backed by remote models are wrapped with WithCache so that
// repeated phrases (the same symptom asked about across sessions) are only
// sent once.
package embedding

import (
	"context"
	"fmt"
	"time"
)

// Provider embeds text.
type Provider interface {
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// ModelID identifies the embedding space. Vectors from different model
	// IDs must not be compared.
	ModelID() string
}

// Config selects and configures an embedding provider.
type Config struct {
	// Provider is one of "openai", "gemini", "hashing".
	Provider string `yaml:"provider"`

	OpenAI  OpenAIConfig  `yaml:"openai"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Hashing HashingConfig `yaml:"hashing"`
	Cache   CacheConfig   `yaml:"cache"`
}

// OpenAIConfig configures the OpenAI embeddings API.
type OpenAIConfig struct {
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`    // Default: "text-embedding-3-small"
	BaseURL    string `yaml:"base_url"` // Optional, for compatible APIs.
	Dimensions int    `yaml:"dimensions"`
}

// GeminiConfig configures the Gemini embeddings API.
type GeminiConfig struct {
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"` // Default: "text-embedding-004"
	Dimensions int    `yaml:"dimensions"`
}

// HashingConfig configures the offline feature-hashing embedder.
type HashingConfig struct {
	Dimensions int `yaml:"dimensions"` // Default: 256
}

// CacheConfig configures embedding caching.
type CacheConfig struct {
	// Kind is one of "none", "memory", "redis".
	Kind string `yaml:"kind"`

	// Size bounds the memory cache in entries.
	Size int `yaml:"size"`

	// RedisURL is a redis:// URL for the redis cache.
	RedisURL string `yaml:"redis_url"`

	// TTL is the redis entry lifetime. Zero keeps entries forever.
	TTL time.Duration `yaml:"ttl"`
}

// DefaultConfig returns the offline hashing embedder with a memory cache.
func DefaultConfig() Config {
	return Config{
		Provider: "hashing",
		OpenAI:   OpenAIConfig{Model: "text-embedding-3-small"},
		Gemini:   GeminiConfig{Model: "text-embedding-004"},
		Hashing:  HashingConfig{Dimensions: defaultHashingDims},
		Cache:    CacheConfig{Kind: "memory", Size: 4096, TTL: 7 * 24 * time.Hour},
	}
}

// Validate checks that the selected provider and cache are usable.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("DAAKTAR_EMBEDDING_OPENAI_API_KEY is required for the openai embedding provider")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("DAAKTAR_EMBEDDING_GEMINI_API_KEY is required for the gemini embedding provider")
		}
	case "hashing":
		if c.Hashing.Dimensions < 0 {
			return fmt.Errorf("hashing dimensions must not be negative")
		}
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Provider)
	}

	switch c.Cache.Kind {
	case "", "none", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("redis_url is required for the redis embedding cache")
		}
	default:
		return fmt.Errorf("unknown embedding cache: %q", c.Cache.Kind)
	}
	return nil
}

// NewProvider builds the configured provider, wrapped with the configured
// cache. The result implements io.Closer when the cache holds a connection.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "hashing":
		base = NewHashingProvider(cfg.Hashing.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s embedding provider: %w", cfg.Provider, err)
	}

	switch cfg.Cache.Kind {
	case "memory":
		return WithCache(base, NewMemoryCache(cfg.Cache.Size)), nil
	case "redis":
		cache, err := NewRedisCache(cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			return nil, err
		}
		return WithCache(base, cache), nil
	default:
		return base, nil
	}
}

// checkCount guards against providers returning fewer vectors than texts.
func checkCount(got, want int) error {
	if got != want {
		return fmt.Errorf("embedding: got %d vectors for %d texts", got, want)
	}
	return nil
}
