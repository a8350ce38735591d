package llm

import (
	"context"
	"errors"
	"testing"
)

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"", "none"} {
		if _, err := NewProvider(ctx, Config{Provider: name}, nil); !errors.Is(err, ErrDisabled) {
			t.Errorf("provider %q: expected ErrDisabled, got %v", name, err)
		}
	}

	if _, err := NewProvider(ctx, Config{Provider: "llamafile"}, nil); err == nil || errors.Is(err, ErrDisabled) {
		t.Errorf("unknown provider: got %v", err)
	}

	if _, err := NewProvider(ctx, Config{Provider: "openai"}, nil); err == nil {
		t.Error("openai without a key should fail")
	}

	p, err := NewProvider(ctx, Config{Provider: "mock"}, nil)
	if err != nil {
		t.Fatalf("mock: %v", err)
	}
	if _, ok := p.(*MockProvider); !ok {
		t.Errorf("mock: got %T", p)
	}

	events := openTestEventRepo(t)
	cfg := DefaultConfig()
	cfg.Provider = "openai"
	cfg.OpenAI.APIKey = "sk-test"
	p, err = NewProvider(ctx, cfg, events)
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	retry, ok := p.(*RetryProvider)
	if !ok {
		t.Fatalf("outermost layer = %T, want *RetryProvider", p)
	}
	if _, ok := retry.inner.(*LoggingProvider); !ok {
		t.Fatalf("inner layer = %T, want *LoggingProvider", retry.inner)
	}
	if p.ModelID() != cfg.OpenAI.Model {
		t.Errorf("model = %q, want %q", p.ModelID(), cfg.OpenAI.Model)
	}
}
