package index

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// Contract violations reported by Verify.
var (
	ErrUnordered     = errors.New("index: candidates not in ascending distance order")
	ErrExcludedLabel = errors.New("index: excluded label returned")
	ErrTooMany       = errors.New("index: more candidates than requested")
)

// Verify checks candidates against the Searcher contract for a query with
// the given k and exclusions.
func Verify(candidates []Candidate, k int, exclude []string) error {
	if len(candidates) > max(k, 0) {
		return fmt.Errorf("%w: got %d, want at most %d", ErrTooMany, len(candidates), k)
	}
	for i, c := range candidates {
		if slices.Contains(exclude, c.Disease) {
			return fmt.Errorf("%w: %q", ErrExcludedLabel, c.Disease)
		}
		if i > 0 && c.Distance < candidates[i-1].Distance {
			return fmt.Errorf("%w: %q (%.4f) after %q (%.4f)", ErrUnordered,
				c.Disease, c.Distance, candidates[i-1].Disease, candidates[i-1].Distance)
		}
	}
	return nil
}

type checked struct {
	inner Searcher
}

// Checked wraps s so that every result is verified with Verify. A violation
// is returned as an error instead of the candidates.
func Checked(s Searcher) Searcher {
	if _, ok := s.(*checked); ok {
		return s
	}
	return &checked{inner: s}
}

func (c *checked) Query(ctx context.Context, vector []float32, k int, exclude []string) ([]Candidate, error) {
	cands, err := c.inner.Query(ctx, vector, k, exclude)
	if err != nil {
		return nil, err
	}
	if err := Verify(cands, k, exclude); err != nil {
		return nil, err
	}
	return cands, nil
}
