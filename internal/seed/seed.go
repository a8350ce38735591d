// Package seed loads the symptom corpus and writes it, embedded, into a
// similarity index.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Yahya305/Daaktar-Saab/internal/index"
)

// DefaultBatchSize is the number of entries embedded per provider call.
const DefaultBatchSize = 32

//go:embed corpus.json
var defaultCorpus []byte

// Entry is one record of symptoms_data.json.
type Entry struct {
	ID              ID     `json:"id"`
	Symptom         string `json:"symptom"`
	RelatedDiseases string `json:"related_diseases"`
	Treatment       string `json:"treatment"`
}

// ID accepts either a JSON string or a JSON number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// EmbeddingText is the text embedded for an entry.
func (e Entry) EmbeddingText() string {
	return e.Symptom + " - " + e.RelatedDiseases
}

// Load decodes a JSON array of entries and validates it.
func Load(r io.Reader) ([]Entry, error) {
	var entries []Entry
	dec := json.NewDecoder(r)
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	if err := Validate(entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// LoadFile loads the corpus at path.
func LoadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the corpus bundled with the binary.
func Default() []Entry {
	entries, err := Load(bytes.NewReader(defaultCorpus))
	if err != nil {
		panic(fmt.Sprintf("bundled corpus: %v", err))
	}
	return entries
}

// Validate rejects entries without an id, symptom or disease and duplicate
// ids. Errors name the entry's position in the array.
func Validate(entries []Entry) error {
	var errs []error
	seen := make(map[ID]int, len(entries))
	for i, e := range entries {
		switch {
		case strings.TrimSpace(string(e.ID)) == "":
			errs = append(errs, fmt.Errorf("entry %d: missing id", i))
		case strings.TrimSpace(e.Symptom) == "":
			errs = append(errs, fmt.Errorf("entry %d (%s): missing symptom", i, e.ID))
		case strings.TrimSpace(e.RelatedDiseases) == "":
			errs = append(errs, fmt.Errorf("entry %d (%s): missing related_diseases", i, e.ID))
		}
		if e.ID == "" {
			continue
		}
		if first, ok := seen[e.ID]; ok {
			errs = append(errs, fmt.Errorf("entry %d: duplicate id %q (first at %d)", i, e.ID, first))
			continue
		}
		seen[e.ID] = i
	}
	return errors.Join(errs...)
}

// Embedder produces one vector per text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Seeder embeds entries and writes them to an index.
type Seeder struct {
	Embedder  Embedder
	Writer    index.Writer
	BatchSize int
	Logger    *slog.Logger

	// Progress, when set, is called after each batch.
	Progress func(done, total int)
}

// Run embeds and upserts entries batch by batch and returns the number of
// records written. A failed batch stops the run; earlier batches stay.
func (s *Seeder) Run(ctx context.Context, entries []Entry) (int, error) {
	size := s.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	written := 0
	for start := 0; start < len(entries); start += size {
		batch := entries[start:min(start+size, len(entries))]

		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = e.EmbeddingText()
		}
		vectors, err := s.Embedder.Embed(ctx, texts)
		if err != nil {
			return written, fmt.Errorf("embed entries %d-%d: %w", start, start+len(batch)-1, err)
		}
		if len(vectors) != len(batch) {
			return written, fmt.Errorf("embed entries %d-%d: got %d vectors", start, start+len(batch)-1, len(vectors))
		}

		records := make([]index.Record, len(batch))
		for i, e := range batch {
			records[i] = index.Record{
				ID:        string(e.ID),
				Symptom:   e.Symptom,
				Disease:   e.RelatedDiseases,
				Treatment: e.Treatment,
				Vector:    vectors[i],
			}
		}
		if err := s.Writer.Upsert(ctx, records); err != nil {
			return written, fmt.Errorf("upsert entries %d-%d: %w", start, start+len(batch)-1, err)
		}

		written += len(records)
		logger.Debug("seeded batch", "done", written, "total", len(entries))
		if s.Progress != nil {
			s.Progress(written, len(entries))
		}
	}
	return written, nil
}
