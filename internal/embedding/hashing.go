package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultHashingDims = 256

// HashingProvider is an offline, deterministic embedder. Each text is
// reduced to lower-case word unigrams and character trigrams, which are
// hashed into a fixed number of signed buckets and L2-normalized. Texts
// sharing words or word fragments end up close in cosine distance.
type HashingProvider struct {
	dims int
}

// NewHashingProvider creates a hashing embedder with dims buckets.
// Non-positive dims selects the default of 256.
func NewHashingProvider(dims int) *HashingProvider {
	if dims <= 0 {
		dims = defaultHashingDims
	}
	return &HashingProvider{dims: dims}
}

func (p *HashingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = p.vector(t)
	}
	return out, nil
}

func (p *HashingProvider) ModelID() string {
	return fmt.Sprintf("hashing/%d", p.dims)
}

func (p *HashingProvider) vector(text string) []float32 {
	v := make([]float32, p.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		p.add(v, "w:"+w, 1)
		padded := []rune("#" + w + "#")
		for j := 0; j+3 <= len(padded); j++ {
			p.add(v, "t:"+string(padded[j:j+3]), 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (p *HashingProvider) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	bucket := sum % uint64(p.dims)
	if sum>>63 == 1 {
		weight = -weight
	}
	v[bucket] += weight
}
