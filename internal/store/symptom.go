package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// upsertBatch bounds the rows per INSERT to stay under bind-variable limits.
const upsertBatch = 100

// symptomRepo implements SymptomRepo with ent's SQL builders.
type symptomRepo struct {
	db *sql.DB
	b  *entsql.DialectBuilder
}

func (r *symptomRepo) Upsert(ctx context.Context, records []SymptomRecord) error {
	now := time.Now().UTC()
	for start := 0; start < len(records); start += upsertBatch {
		end := min(start+upsertBatch, len(records))

		ins := r.b.Insert(symptomRecordsTable).
			Columns("id", "symptom", "disease", "treatment", "vector", "created_at")
		for _, rec := range records[start:end] {
			vec, err := json.Marshal(rec.Vector)
			if err != nil {
				return fmt.Errorf("marshal vector of %q: %w", rec.ID, err)
			}
			ins.Values(rec.ID, rec.Symptom, rec.Disease, rec.Treatment, string(vec), now)
		}
		ins.OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("symptom")
				u.SetExcluded("disease")
				u.SetExcluded("treatment")
				u.SetExcluded("vector")
			}),
		)

		query, args := ins.Query()
		if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("upsert symptom records: %w", err)
		}
	}
	return nil
}

func (r *symptomRepo) List(ctx context.Context) ([]SymptomRecord, error) {
	query, args := r.b.Select("id", "symptom", "disease", "treatment", "vector", "created_at").
		From(r.b.Table(symptomRecordsTable)).
		OrderBy("id").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query symptom records: %w", err)
	}
	defer rows.Close()

	var out []SymptomRecord
	for rows.Next() {
		var (
			rec SymptomRecord
			vec string
		)
		if err := rows.Scan(&rec.ID, &rec.Symptom, &rec.Disease, &rec.Treatment, &vec, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan symptom record: %w", err)
		}
		if err := json.Unmarshal([]byte(vec), &rec.Vector); err != nil {
			return nil, fmt.Errorf("decode vector of %q: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *symptomRepo) Count(ctx context.Context) (int, error) {
	query, args := r.b.Select("COUNT(*)").From(r.b.Table(symptomRecordsTable)).Query()
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count symptom records: %w", err)
	}
	return n, nil
}
