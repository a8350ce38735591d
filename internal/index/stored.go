package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/Yahya305/Daaktar-Saab/internal/store"
)

// Stored is an index persisted through a store.SymptomRepo. Queries run
// against an in-memory copy that is loaded on first use and refreshed after
// writes or an explicit Reload.
type Stored struct {
	repo store.SymptomRepo

	mu    sync.Mutex
	cache *Memory
}

var _ Index = (*Stored)(nil)

// NewStored creates an index over repo.
func NewStored(repo store.SymptomRepo) *Stored {
	return &Stored{repo: repo}
}

// Upsert implements Writer.
func (s *Stored) Upsert(ctx context.Context, records []Record) error {
	rows := make([]store.SymptomRecord, len(records))
	for i, r := range records {
		rows[i] = store.SymptomRecord{
			ID:        r.ID,
			Symptom:   r.Symptom,
			Disease:   r.Disease,
			Treatment: r.Treatment,
			Vector:    r.Vector,
		}
	}
	if err := s.repo.Upsert(ctx, rows); err != nil {
		return err
	}

	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()
	return nil
}

// Count implements Writer.
func (s *Stored) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

// Query implements Searcher.
func (s *Stored) Query(ctx context.Context, vector []float32, k int, exclude []string) ([]Candidate, error) {
	mem, err := s.loaded(ctx)
	if err != nil {
		return nil, err
	}
	return mem.Query(ctx, vector, k, exclude)
}

// Reload replaces the in-memory copy with the repository contents.
func (s *Stored) Reload(ctx context.Context) error {
	s.mu.Lock()
	s.cache = nil
	s.mu.Unlock()
	_, err := s.loaded(ctx)
	return err
}

func (s *Stored) loaded(ctx context.Context) (*Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache != nil {
		return s.cache, nil
	}

	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load symptom records: %w", err)
	}
	mem := NewMemory()
	recs := make([]Record, len(rows))
	for i, r := range rows {
		recs[i] = Record{ID: r.ID, Symptom: r.Symptom, Disease: r.Disease, Treatment: r.Treatment, Vector: r.Vector}
	}
	if err := mem.Upsert(ctx, recs); err != nil {
		return nil, fmt.Errorf("index symptom records: %w", err)
	}
	s.cache = mem
	return mem, nil
}
