package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/qdrant/go-client/qdrant"

	"github.com/Yahya305/Daaktar-Saab/internal/store"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"scaled", []float32{1, 1}, []float32{3, 3}, 1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineDistanceClamped(t *testing.T) {
	if d := CosineDistance([]float32{1, 0}, []float32{-1, 0}); d != 1 {
		t.Errorf("opposite distance = %v, want 1", d)
	}
	if d := CosineDistance([]float32{1, 2}, []float32{1, 2}); math.Abs(d) > 1e-9 {
		t.Errorf("identical distance = %v, want 0", d)
	}
}

func TestCandidateConfidence(t *testing.T) {
	c := Candidate{Distance: 0.25}
	if got := c.Confidence(); got != 0.75 {
		t.Errorf("Confidence = %v, want 0.75", got)
	}
}

func testRecords() []Record {
	return []Record{
		{ID: "flu-1", Symptom: "fever, cough", Disease: "Flu", Treatment: "rest", Vector: []float32{1, 0, 0}},
		{ID: "cold-1", Symptom: "sneezing, cough", Disease: "Cold", Treatment: "fluids", Vector: []float32{0.8, 0.6, 0}},
		{ID: "mig-1", Symptom: "headache, nausea", Disease: "Migraine", Treatment: "dark room", Vector: []float32{0, 0, 1}},
		{ID: "flu-2", Symptom: "chills, fatigue", Disease: "Flu", Treatment: "rest", Vector: []float32{0.6, 0.8, 0}},
	}
}

func TestMemoryQueryOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Upsert(ctx, testRecords()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := m.Query(ctx, []float32{1, 0, 0}, 3, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := []string{"flu-1", "cold-1", "flu-2"}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("candidate[%d] = %q, want %q", i, got[i].ID, id)
		}
	}
	if err := Verify(got, 3, nil); err != nil {
		t.Errorf("Verify: %v", err)
	}
	if got[0].Symptoms != "fever, cough" || got[0].Treatment != "rest" {
		t.Errorf("candidate fields not carried: %+v", got[0])
	}
}

func TestMemoryQueryExclude(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Upsert(ctx, testRecords()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := m.Query(ctx, []float32{1, 0, 0}, 5, []string{"Flu"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, c := range got {
		if c.Disease == "Flu" {
			t.Errorf("excluded disease returned: %+v", c)
		}
	}
	if len(got) != 2 {
		t.Errorf("got %d candidates, want 2", len(got))
	}
}

func TestMemoryQueryEdgeCases(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	got, err := m.Query(ctx, []float32{1, 0, 0}, 3, nil)
	if err != nil || len(got) != 0 {
		t.Errorf("empty index: got %v, %v", got, err)
	}

	if err := m.Upsert(ctx, testRecords()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err = m.Query(ctx, []float32{1, 0, 0}, 0, nil)
	if err != nil || len(got) != 0 {
		t.Errorf("k=0: got %v, %v", got, err)
	}
	if _, err := m.Query(ctx, []float32{1, 0}, 3, nil); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestMemoryUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	recs := testRecords()
	if err := m.Upsert(ctx, recs); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := m.Upsert(ctx, []Record{{ID: "flu-1", Disease: "Influenza", Symptom: "fever", Vector: []float32{1, 0, 0}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	n, _ := m.Count(ctx)
	if n != len(recs) {
		t.Errorf("Count = %d, want %d", n, len(recs))
	}
	got, _ := m.Query(ctx, []float32{1, 0, 0}, 1, nil)
	if len(got) != 1 || got[0].Disease != "Influenza" {
		t.Errorf("replaced record not returned: %+v", got)
	}
}

func TestMemoryUpsertRejectsBadVectors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Upsert(ctx, []Record{{ID: "x"}}); err == nil {
		t.Error("expected error for empty vector")
	}
	if err := m.Upsert(ctx, []Record{{ID: "a", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := m.Upsert(ctx, []Record{{ID: "b", Vector: []float32{1, 0, 0}}}); err == nil {
		t.Error("expected error for dimension mismatch")
	}
}

func TestMemoryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Upsert(ctx, testRecords()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_ = m.Upsert(ctx, []Record{{ID: fmt.Sprintf("n-%d", i), Disease: "New", Vector: []float32{0, 1, 0}}})
				return
			}
			if _, err := m.Query(ctx, []float32{1, 0, 0}, 3, nil); err != nil {
				t.Errorf("Query: %v", err)
			}
		}()
	}
	wg.Wait()
}

type fakeSearcher struct {
	cands []Candidate
	err   error
}

func (f fakeSearcher) Query(context.Context, []float32, int, []string) ([]Candidate, error) {
	return f.cands, f.err
}

func TestChecked(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		cands   []Candidate
		k       int
		exclude []string
		wantErr error
	}{
		{"ok", []Candidate{{Disease: "A", Distance: 0.1}, {Disease: "B", Distance: 0.2}}, 3, nil, nil},
		{"ties ok", []Candidate{{Disease: "A", Distance: 0.2}, {Disease: "B", Distance: 0.2}}, 3, nil, nil},
		{"unordered", []Candidate{{Disease: "A", Distance: 0.3}, {Disease: "B", Distance: 0.2}}, 3, nil, ErrUnordered},
		{"excluded", []Candidate{{Disease: "A", Distance: 0.1}}, 3, []string{"A"}, ErrExcludedLabel},
		{"too many", []Candidate{{Disease: "A"}, {Disease: "B"}}, 1, nil, ErrTooMany},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Checked(fakeSearcher{cands: tt.cands})
			got, err := s.Query(ctx, nil, tt.k, tt.exclude)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(got) != len(tt.cands) {
					t.Errorf("got %d candidates, want %d", len(got), len(tt.cands))
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckedPassesThroughErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := Checked(fakeSearcher{err: boom}).Query(context.Background(), nil, 3, nil)
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want boom", err)
	}
}

func TestCheckedIdempotent(t *testing.T) {
	s := Checked(NewMemory())
	if Checked(s) != s {
		t.Error("Checked should not double-wrap")
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	s, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoredRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	idx := NewStored(st.SymptomRepo())

	if err := idx.Upsert(ctx, testRecords()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	n, err := idx.Count(ctx)
	if err != nil || n != 4 {
		t.Fatalf("Count = %d, %v; want 4", n, err)
	}

	got, err := idx.Query(ctx, []float32{0, 0, 1}, 1, nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].Disease != "Migraine" {
		t.Errorf("nearest = %+v, want Migraine", got)
	}
}

func TestStoredSeesWritesFromOtherHandles(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	reader := NewStored(st.SymptomRepo())

	if _, err := reader.Query(ctx, []float32{1, 0, 0}, 3, nil); err != nil {
		t.Fatalf("Query: %v", err)
	}

	writer := NewStored(st.SymptomRepo())
	if err := writer.Upsert(ctx, testRecords()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, _ := reader.Query(ctx, []float32{1, 0, 0}, 3, nil)
	if len(got) != 0 {
		t.Fatalf("stale cache expected before Reload, got %d", len(got))
	}
	if err := reader.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	got, _ = reader.Query(ctx, []float32{1, 0, 0}, 3, nil)
	if len(got) != 3 {
		t.Errorf("after Reload got %d candidates, want 3", len(got))
	}
}

func TestParseQdrantURL(t *testing.T) {
	tests := []struct {
		raw      string
		host     string
		port     int
		tls      bool
		wantFail bool
	}{
		{"http://localhost:6334", "localhost", 6334, false, false},
		{"https://cloud.example.io:443", "cloud.example.io", 443, true, false},
		{"qdrant.internal", "qdrant.internal", 6334, true, false},
		{"http://localhost:abc", "", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			host, port, tls, err := parseQdrantURL(tt.raw)
			if tt.wantFail {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if host != tt.host || port != tt.port || tls != tt.tls {
				t.Errorf("got (%q, %d, %v), want (%q, %d, %v)", host, port, tls, tt.host, tt.port, tt.tls)
			}
		})
	}
}

func TestPointIDStable(t *testing.T) {
	if pointID("flu-1") != pointID("flu-1") {
		t.Error("point IDs should be deterministic")
	}
	if pointID("flu-1") == pointID("flu-2") {
		t.Error("distinct records should map to distinct points")
	}
}

func TestNewQdrantValidation(t *testing.T) {
	if _, err := NewQdrant(QdrantConfig{Collection: "c"}); err == nil {
		t.Error("expected error for missing url")
	}
	if _, err := NewQdrant(QdrantConfig{URL: "http://localhost:6334"}); err == nil {
		t.Error("expected error for missing collection")
	}
}

func TestCandidateFromPoint(t *testing.T) {
	payload := qdrant.NewValueMap(map[string]any{
		"record_id": "7",
		"symptom":   "fever, chills",
		"disease":   "Flu",
		"treatment": "Rest.",
	})
	tests := []struct {
		name     string
		point    *qdrant.ScoredPoint
		id       string
		distance float64
	}{
		{"close match", &qdrant.ScoredPoint{Id: qdrant.NewID(pointID("7")), Score: 0.75, Payload: payload}, "7", 0.25},
		{"score above one", &qdrant.ScoredPoint{Score: 1.5, Payload: payload}, "7", 0},
		{"negative score", &qdrant.ScoredPoint{Score: -0.5, Payload: payload}, "7", 1},
		{"uuid fallback", &qdrant.ScoredPoint{Id: qdrant.NewID(pointID("9")), Score: 0.5}, pointID("9"), 0.5},
		{"numeric fallback", &qdrant.ScoredPoint{Id: qdrant.NewIDNum(42), Score: 0.5}, "42", 0.5},
		{"no id at all", &qdrant.ScoredPoint{Score: 0.5}, "", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := candidateFromPoint(tt.point)
			if c.ID != tt.id {
				t.Errorf("ID = %q, want %q", c.ID, tt.id)
			}
			if math.Abs(c.Distance-tt.distance) > 1e-6 {
				t.Errorf("Distance = %v, want %v", c.Distance, tt.distance)
			}
			if tt.point.Payload != nil && (c.Disease != "Flu" || c.Symptoms != "fever, chills" || c.Treatment != "Rest.") {
				t.Errorf("payload not decoded: %+v", c)
			}
		})
	}
}

func TestCandidatesFromPointsAscending(t *testing.T) {
	point := func(disease string, score float32) *qdrant.ScoredPoint {
		return &qdrant.ScoredPoint{Score: score, Payload: qdrant.NewValueMap(map[string]any{"disease": disease})}
	}
	got := candidatesFromPoints([]*qdrant.ScoredPoint{
		point("Cold", 0.5),
		point("Flu", 1.2),
		point("Measles", 0.9),
		point("Mumps", 1.0),
	})

	var order []string
	for _, c := range got {
		order = append(order, c.Disease)
	}
	// Flu and Mumps both clamp to distance 0 and keep their input order.
	if want := "Flu,Mumps,Measles,Cold"; strings.Join(order, ",") != want {
		t.Errorf("order = %v, want %s", order, want)
	}
	if err := Verify(got, len(got), nil); err != nil {
		t.Errorf("Verify: %v", err)
	}
	if len(candidatesFromPoints(nil)) != 0 {
		t.Error("no points should yield no candidates")
	}
}
