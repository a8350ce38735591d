package embedding

import (
	"context"
	"slices"
)

// StaticProvider returns fixed vectors for known texts and falls back to a
// hashing embedder for anything else. It is meant for tests and demos.
type StaticProvider struct {
	vectors  map[string][]float32
	fallback *HashingProvider
}

// NewStaticProvider creates a provider over vectors. Unknown texts are
// hashed into the dimension of the first known vector.
func NewStaticProvider(vectors map[string][]float32) *StaticProvider {
	dims := 0
	for _, v := range vectors {
		dims = len(v)
		break
	}
	return &StaticProvider{vectors: vectors, fallback: NewHashingProvider(dims)}
}

func (p *StaticProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := p.vectors[t]; ok {
			out[i] = slices.Clone(v)
			continue
		}
		hashed, err := p.fallback.Embed(ctx, []string{t})
		if err != nil {
			return nil, err
		}
		out[i] = hashed[0]
	}
	return out, nil
}

func (p *StaticProvider) ModelID() string {
	return "static"
}
