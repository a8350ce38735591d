package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

var turnEventColumns = []string{
	"id", "timestamp", "session_id", "outcome", "depth", "asked_symptom",
	"excluded", "diagnosis", "confidence", "latency_ms", "error_message",
}

func (r *eventRepo) AppendTurn(ctx context.Context, data TurnEventData) error {
	excluded, err := json.Marshal(nonNil(data.Excluded))
	if err != nil {
		return fmt.Errorf("marshal excluded: %w", err)
	}

	query, args := r.b.Insert(turnEventsTable).
		Columns(turnEventColumns[1:]...).
		Values(
			time.Now().UTC(),
			data.SessionID,
			data.Outcome,
			data.Depth,
			data.AskedSymptom,
			string(excluded),
			data.Diagnosis,
			data.Confidence,
			data.LatencyMs,
			data.ErrorMessage,
		).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save turn event: %w", err)
	}
	return nil
}

func (r *eventRepo) QueryTurns(ctx context.Context, opts QueryOpts) ([]TurnEvent, error) {
	sel := r.b.Select(turnEventColumns...).From(r.b.Table(turnEventsTable))
	preds := rangePredicates(opts)
	if opts.Session != "" {
		preds = append(preds, entsql.EQ("session_id", opts.Session))
	}
	if len(preds) > 0 {
		sel.Where(entsql.And(preds...))
	}
	sel.OrderBy(entsql.Desc("id"))
	if opts.Limit > 0 {
		sel.Limit(opts.Limit)
	}

	query, args := sel.Query()
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query turn events: %w", err)
	}
	defer rows.Close()

	var events []TurnEvent
	for rows.Next() {
		var (
			e                             TurnEvent
			asked, excluded, diag, errMsg sql.NullString
			conf                          sql.NullFloat64
		)
		err := rows.Scan(
			&e.ID, &e.Timestamp, &e.SessionID, &e.Outcome, &e.Depth, &asked,
			&excluded, &diag, &conf, &e.LatencyMs, &errMsg,
		)
		if err != nil {
			return nil, fmt.Errorf("scan turn event: %w", err)
		}
		e.AskedSymptom = asked.String
		e.Diagnosis = diag.String
		e.Confidence = conf.Float64
		e.ErrorMessage = errMsg.String
		if excluded.Valid && excluded.String != "" {
			if err := json.Unmarshal([]byte(excluded.String), &e.Excluded); err != nil {
				return nil, fmt.Errorf("decode excluded of turn %d: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *eventRepo) TurnOutcomes(ctx context.Context) ([]OutcomeCount, error) {
	query, args := r.b.Select("outcome", "COUNT(*) AS turns").
		From(r.b.Table(turnEventsTable)).
		GroupBy("outcome").
		OrderBy("outcome").
		Query()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query turn outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeCount
	for rows.Next() {
		var c OutcomeCount
		if err := rows.Scan(&c.Outcome, &c.Count); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
