package embedding

import (
	"context"
	"fmt"
	"slices"

	"google.golang.org/genai"
)

// geminiBatch is the number of inputs sent per request.
const geminiBatch = 100

// GeminiProvider embeds text with the Gemini embeddings API.
type GeminiProvider struct {
	client *genai.Client
	model  string
	dims   int32
}

// NewGeminiProvider creates a Gemini embedding provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-004"
	}
	return &GeminiProvider{client: client, model: model, dims: int32(cfg.Dimensions)}, nil
}

func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var config *genai.EmbedContentConfig
	if p.dims > 0 {
		dims := p.dims
		config = &genai.EmbedContentConfig{OutputDimensionality: &dims}
	}

	out := make([][]float32, 0, len(texts))
	for batch := range slices.Chunk(texts, geminiBatch) {
		contents := make([]*genai.Content, len(batch))
		for i, t := range batch {
			contents[i] = genai.NewContentFromText(t, genai.RoleUser)
		}

		resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, config)
		if err != nil {
			return nil, fmt.Errorf("gemini embeddings: %w", err)
		}
		if err := checkCount(len(resp.Embeddings), len(batch)); err != nil {
			return nil, err
		}
		for _, e := range resp.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

func (p *GeminiProvider) ModelID() string {
	return "gemini/" + p.model
}
