package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Yahya305/Daaktar-Saab/internal/config"
	"github.com/Yahya305/Daaktar-Saab/internal/dialogue"
	"github.com/Yahya305/Daaktar-Saab/internal/embedding"
	"github.com/Yahya305/Daaktar-Saab/internal/enrich"
	"github.com/Yahya305/Daaktar-Saab/internal/index"
	"github.com/Yahya305/Daaktar-Saab/internal/llm"
	"github.com/Yahya305/Daaktar-Saab/internal/seed"
	"github.com/Yahya305/Daaktar-Saab/internal/server"
	"github.com/Yahya305/Daaktar-Saab/internal/store"
)

// deps holds everything a running assistant needs.
type deps struct {
	store    *store.Store
	embedder embedding.Provider
	index    index.Index
	provider llm.Provider // nil when no LLM is configured
	engine   *dialogue.Engine
	enricher enrich.Enricher
	observer dialogue.Observer

	closers []io.Closer
}

// buildDeps opens the store and wires the embedder, index, generator,
// enricher and engine from the loaded config.
func buildDeps(cmd *cobra.Command) (*deps, error) {
	ctx := cmd.Context()
	d := &deps{}

	st, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	d.store = st
	d.closers = append(d.closers, st)

	fail := func(err error) (*deps, error) {
		d.Close()
		return nil, err
	}

	embedder, err := embedding.NewProvider(ctx, cfg.Embedding)
	if err != nil {
		return fail(fmt.Errorf("embedding provider: %w", err))
	}
	d.embedder = embedder
	if c, ok := embedder.(io.Closer); ok {
		d.closers = append(d.closers, c)
	}

	if d.index, err = openIndex(ctx, cfg, st, embedder); err != nil {
		return fail(err)
	}
	if c, ok := d.index.(io.Closer); ok {
		d.closers = append(d.closers, c)
	}

	events := st.EventRepo()

	var generator dialogue.Generator = dialogue.TemplateGenerator{}
	switch provider, err := llm.NewProvider(ctx, cfg.LLM, events); {
	case errors.Is(err, llm.ErrDisabled):
		logger.Info("no LLM configured, using template replies")
	case err != nil:
		return fail(fmt.Errorf("llm provider: %w", err))
	default:
		d.provider = provider
		generator = dialogue.NewLLMGenerator(provider)
		logger.Info("LLM ready", "provider", cfg.LLM.Provider, "model", provider.ModelID())
	}

	switch cfg.Dialogue.Enricher {
	case "llm":
		d.enricher = enrich.NewLLMEnricher(d.provider, cfg.Dialogue.DefaultThreshold, logger)
	default:
		d.enricher = enrich.NewRuleEnricher(cfg.Dialogue.DefaultThreshold)
	}

	d.observer = server.TurnRecorder(events, logger)
	d.engine = dialogue.NewEngine(embedder, d.index, generator,
		dialogue.WithConfig(cfg.Dialogue.Engine()),
		dialogue.WithLogger(logger),
		dialogue.WithObserver(d.observer),
	)
	return d, nil
}

// openIndex builds the configured index. The memory backend is filled from
// the corpus right away since it keeps nothing between runs.
func openIndex(ctx context.Context, cfg config.Config, st *store.Store, embedder embedding.Provider) (index.Index, error) {
	switch cfg.Index.Backend {
	case "memory":
		idx := index.NewMemory()
		entries, err := loadCorpus(cfg.Seed.Path, false)
		if err != nil {
			return nil, err
		}
		s := &seed.Seeder{Embedder: embedder, Writer: idx, Logger: logger}
		if _, err := s.Run(ctx, entries); err != nil {
			return nil, fmt.Errorf("load memory index: %w", err)
		}
		return idx, nil
	case "qdrant":
		q, err := index.NewQdrant(cfg.Index.Qdrant.Index(embeddingDims(cfg.Embedding)))
		if err != nil {
			return nil, fmt.Errorf("qdrant index: %w", err)
		}
		return q, nil
	default:
		return index.NewStored(st.SymptomRepo()), nil
	}
}

// embeddingDims is the configured vector size, or 0 when the provider
// decides.
func embeddingDims(c embedding.Config) int {
	switch c.Provider {
	case "openai":
		return c.OpenAI.Dimensions
	case "gemini":
		return c.Gemini.Dimensions
	case "hashing":
		return c.Hashing.Dimensions
	}
	return 0
}

// loadCorpus reads the corpus at path. When the file is missing and was
// not asked for explicitly, the bundled corpus is used.
func loadCorpus(path string, explicit bool) ([]seed.Entry, error) {
	entries, err := seed.LoadFile(path)
	switch {
	case err == nil:
		return entries, nil
	case errors.Is(err, os.ErrNotExist) && !explicit:
		logger.Info("corpus file not found, using bundled corpus", "path", path)
		return seed.Default(), nil
	default:
		return nil, err
	}
}

// newServer builds the HTTP handler over d.
func (d *deps) newServer() (*server.Server, error) {
	checks := map[string]server.Pinger{}
	if p, ok := d.embedder.(server.Pinger); ok && cfg.Embedding.Cache.Kind == "redis" {
		checks["embedding cache"] = p
	}
	return server.New(server.Options{
		Engine:         d.engine,
		Enricher:       d.enricher,
		Index:          d.index,
		Checks:         checks,
		Observer:       d.observer,
		Logger:         logger,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
}

// Close releases resources in reverse order of acquisition.
func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			logger.Warn("close", "error", err)
		}
	}
}
