// Package index provides the similarity search over the seeded symptom
// corpus.
//
// Every Searcher returns candidates in ascending distance order (nearest
// first), at most k of them, and never one whose disease label was excluded.
// The dialogue engine relies on that order to pick a diagnosis, so callers
// that accept third-party implementations should wrap them with Checked.
package index

import (
	"context"
	"math"
)

// Candidate is a stored record matched against a query.
type Candidate struct {
	ID        string
	Disease   string
	Symptoms  string // comma-separated stored symptom description
	Treatment string
	Distance  float64
}

// Confidence is 1 minus the distance.
func (c Candidate) Confidence() float64 {
	return 1 - c.Distance
}

// Record is a corpus entry with its embedding.
type Record struct {
	ID        string
	Symptom   string
	Disease   string
	Treatment string
	Vector    []float32
}

// Searcher finds the records nearest to a query vector.
type Searcher interface {
	// Query returns at most k candidates sorted by ascending distance,
	// skipping any whose disease is in exclude.
	Query(ctx context.Context, vector []float32, k int, exclude []string) ([]Candidate, error)
}

// Writer stores records.
type Writer interface {
	// Upsert inserts records, replacing any with the same ID.
	Upsert(ctx context.Context, records []Record) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

// Index is a searchable, writable record collection.
type Index interface {
	Searcher
	Writer
}

// CosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths and zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// CosineDistance is 1 minus the cosine similarity, clamped to [0, 1].
func CosineDistance(a, b []float32) float64 {
	return clampDistance(1 - CosineSimilarity(a, b))
}

func clampDistance(d float64) float64 {
	return min(max(d, 0), 1)
}
