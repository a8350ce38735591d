package llm

import (
	"fmt"
	"net/http"
)

const (
	defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "openai/gpt-4o-mini"

	// Shown on openrouter.ai next to the usage this app generates.
	openRouterAppURL   = "https://github.com/Yahya305/Daaktar-Saab"
	openRouterAppTitle = "Daaktar Saab"
)

// OpenRouterProvider talks to OpenRouter's OpenAI-compatible API. Model IDs
// are passed through as "vendor/model".
type OpenRouterProvider struct {
	*OpenAIProvider
}

// NewOpenRouterProvider creates a provider targeting the OpenRouter API.
func NewOpenRouterProvider(cfg OpenRouterConfig) (*OpenRouterProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenRouterModel
	}

	attribution := http.Header{}
	attribution.Set("HTTP-Referer", openRouterAppURL)
	attribution.Set("X-Title", openRouterAppTitle)

	inner, err := newOpenAIProviderRaw(OpenAIConfig{APIKey: cfg.APIKey, Model: model, BaseURL: baseURL}, attribution)
	if err != nil {
		return nil, err
	}
	return &OpenRouterProvider{OpenAIProvider: inner}, nil
}

func (p *OpenRouterProvider) Name() string { return "openrouter" }
