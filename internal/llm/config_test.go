package llm

import "testing"

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DAAKTAR_LLM_PROVIDER", "openai")
	t.Setenv("DAAKTAR_OPENAI_API_KEY", "sk-env")
	t.Setenv("DAAKTAR_OPENAI_MODEL", "gpt-4o")

	cfg := ConfigFromEnv()
	if cfg.Provider != "openai" {
		t.Fatalf("provider = %q, want openai", cfg.Provider)
	}
	if cfg.OpenAI.APIKey != "sk-env" || cfg.OpenAI.Model != "gpt-4o" {
		t.Fatalf("openai config = %+v", cfg.OpenAI)
	}
	if cfg.Anthropic.Model != "claude-haiku" {
		t.Fatalf("unset values should keep defaults, got %q", cfg.Anthropic.Model)
	}
}

func TestApplyEnvKeepsFileValues(t *testing.T) {
	t.Setenv("DAAKTAR_GEMINI_API_KEY", "g-env")

	cfg := Config{Provider: "gemini", Gemini: GeminiConfig{APIKey: "g-file", Model: "gemini-pro"}}
	cfg.ApplyEnv()
	if cfg.Gemini.APIKey != "g-env" {
		t.Fatalf("env should override file key, got %q", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.Model != "gemini-pro" {
		t.Fatalf("unset env should keep file model, got %q", cfg.Gemini.Model)
	}
}

func TestConfigEnabled(t *testing.T) {
	for provider, want := range map[string]bool{"": false, "none": false, "mock": true, "openai": true} {
		if got := (Config{Provider: provider}).Enabled(); got != want {
			t.Errorf("Enabled(%q) = %v, want %v", provider, got, want)
		}
	}
}

func TestDiscoverConfig(t *testing.T) {
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(k, "")
	}
	if _, ok := DiscoverConfig(); ok {
		t.Fatal("expected no provider without keys")
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("OPENAI_API_KEY", "sk-oai")
	cfg, ok := DiscoverConfig()
	if !ok || cfg.Provider != "openai" {
		t.Fatalf("expected openai to win over anthropic, got %q", cfg.Provider)
	}
}
