package index

import (
	"cmp"
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// recordNamespace derives stable point IDs from record IDs.
var recordNamespace = uuid.MustParse("8f1c1f7e-4b6e-4d0e-9b7a-5d2f0f3a9c11")

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	// URL is the server address, e.g. "http://localhost:6334". A missing
	// scheme means https.
	URL string

	// Collection is the collection holding symptom records.
	Collection string

	// APIKey is optional.
	APIKey string

	// Dimensions is the vector size used when the collection is created.
	Dimensions int
}

// Qdrant is an index backed by a Qdrant collection using cosine distance.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dims       int
}

var _ Index = (*Qdrant)(nil)

// NewQdrant connects to Qdrant. The collection is created on first write if
// it does not exist.
func NewQdrant(cfg QdrantConfig) (*Qdrant, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}

	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &Qdrant{client: client, collection: cfg.Collection, dims: cfg.Dimensions}, nil
}

func parseQdrantURL(raw string) (host string, port int, useTLS bool, err error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse qdrant url: %w", err)
	}
	port = 6334
	if u.Port() != "" {
		port, err = strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port: %w", err)
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}

func (q *Qdrant) ensureCollection(ctx context.Context, dims int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection %q: %w", q.collection, err)
	}
	if exists {
		return nil
	}
	if dims <= 0 {
		dims = q.dims
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %q: %w", q.collection, err)
	}
	return nil
}

// Upsert implements Writer.
func (q *Qdrant) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := q.ensureCollection(ctx, len(records[0].Vector)); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(r.ID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"record_id": r.ID,
				"symptom":   r.Symptom,
				"disease":   r.Disease,
				"treatment": r.Treatment,
			}),
		}
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

// Count implements Writer. A missing collection counts as empty.
func (q *Qdrant) Count(ctx context.Context) (int, error) {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return 0, fmt.Errorf("check collection %q: %w", q.collection, err)
	}
	if !exists {
		return 0, nil
	}
	n, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant count failed: %w", err)
	}
	return int(n), nil
}

// Query implements Searcher.
func (q *Qdrant) Query(ctx context.Context, vector []float32, k int, exclude []string) ([]Candidate, error) {
	if k <= 0 {
		return nil, nil
	}
	req := &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if len(exclude) > 0 {
		req.Filter = &qdrant.Filter{
			MustNot: []*qdrant.Condition{qdrant.NewMatchKeywords("disease", exclude...)},
		}
	}

	points, err := q.client.Query(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}
	return candidatesFromPoints(points), nil
}

// candidatesFromPoints converts search hits to candidates in ascending
// distance order.
func candidatesFromPoints(points []*qdrant.ScoredPoint) []Candidate {
	cands := make([]Candidate, 0, len(points))
	for _, p := range points {
		cands = append(cands, candidateFromPoint(p))
	}
	// Clamping can reorder near-equal scores; keep the result ascending.
	slices.SortStableFunc(cands, func(a, b Candidate) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	return cands
}

// candidateFromPoint maps a cosine score to a distance in [0, 1] and reads
// the record fields from the payload. Points written without a record_id
// fall back to their point ID.
func candidateFromPoint(p *qdrant.ScoredPoint) Candidate {
	c := Candidate{Distance: clampDistance(1 - float64(p.GetScore()))}
	for key, v := range p.GetPayload() {
		switch key {
		case "record_id":
			c.ID = v.GetStringValue()
		case "symptom":
			c.Symptoms = v.GetStringValue()
		case "disease":
			c.Disease = v.GetStringValue()
		case "treatment":
			c.Treatment = v.GetStringValue()
		}
	}
	if c.ID == "" {
		if id := p.GetId(); id.GetUuid() != "" {
			c.ID = id.GetUuid()
		} else if id != nil {
			c.ID = strconv.FormatUint(id.GetNum(), 10)
		}
	}
	return c
}

// Close releases the connection.
func (q *Qdrant) Close() error {
	return q.client.Close()
}

func pointID(recordID string) string {
	return uuid.NewSHA1(recordNamespace, []byte(recordID)).String()
}
