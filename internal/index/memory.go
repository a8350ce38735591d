package index

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
)

// Memory is an in-process brute-force cosine index. It is safe for
// concurrent use.
type Memory struct {
	mu      sync.RWMutex
	records []Record
	byID    map[string]int
	dims    int
}

var _ Index = (*Memory)(nil)

// NewMemory creates an empty index.
func NewMemory() *Memory {
	return &Memory{byID: make(map[string]int)}
}

// Upsert implements Writer. All vectors must share one dimension.
func (m *Memory) Upsert(_ context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		if len(r.Vector) == 0 {
			return fmt.Errorf("record %q has no vector", r.ID)
		}
		if m.dims == 0 {
			m.dims = len(r.Vector)
		}
		if len(r.Vector) != m.dims {
			return fmt.Errorf("record %q: vector dimension %d, index uses %d", r.ID, len(r.Vector), m.dims)
		}

		r.Vector = slices.Clone(r.Vector)
		if i, ok := m.byID[r.ID]; ok {
			m.records[i] = r
			continue
		}
		m.byID[r.ID] = len(m.records)
		m.records = append(m.records, r)
	}
	return nil
}

// Count implements Writer.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Query implements Searcher. Ties keep insertion order.
func (m *Memory) Query(ctx context.Context, vector []float32, k int, exclude []string) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dims != 0 && len(vector) != m.dims {
		return nil, fmt.Errorf("query vector dimension %d, index uses %d", len(vector), m.dims)
	}
	return rank(m.records, vector, k, exclude), nil
}

// rank scores records against vector and returns the k nearest that are not
// excluded.
func rank(records []Record, vector []float32, k int, exclude []string) []Candidate {
	if k <= 0 {
		return nil
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		skip[e] = struct{}{}
	}

	cands := make([]Candidate, 0, len(records))
	for _, r := range records {
		if _, ok := skip[r.Disease]; ok {
			continue
		}
		cands = append(cands, Candidate{
			ID:        r.ID,
			Disease:   r.Disease,
			Symptoms:  r.Symptom,
			Treatment: r.Treatment,
			Distance:  CosineDistance(vector, r.Vector),
		})
	}

	slices.SortStableFunc(cands, func(a, b Candidate) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	if len(cands) > k {
		cands = cands[:k]
	}
	return cands
}
