package store

import (
	"context"
	"time"
)

// QueryOpts configures event queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int       // id > After
	Before  int       // id < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Purpose string    // LLM events only
	Session string
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	SessionID    string
	Streamed     bool
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEvent is a stored LLM request event.
type LLMEvent struct {
	ID        int
	Timestamp time.Time
	LLMRequestEventData
}

// PurposeUsage aggregates token usage per request purpose.
type PurposeUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// ModelUsage aggregates token usage per model.
type ModelUsage struct {
	Model        string
	Calls        int
	InputTokens  int
	OutputTokens int
}

// TurnEventData captures the outcome of one dialogue turn.
type TurnEventData struct {
	SessionID    string
	Outcome      string
	Depth        int
	AskedSymptom string
	Excluded     []string
	Diagnosis    string
	Confidence   float64
	LatencyMs    int64
	ErrorMessage string
}

// TurnEvent is a stored turn event.
type TurnEvent struct {
	ID        int
	Timestamp time.Time
	TurnEventData
}

// OutcomeCount is the number of turns that ended with an outcome.
type OutcomeCount struct {
	Outcome string
	Count   int
}

// EventRepo provides append and query access to domain events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns LLM events, newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEvent, error)

	// GetLLMEvent returns a single event or nil if it does not exist.
	GetLLMEvent(ctx context.Context, id int) (*LLMEvent, error)

	// LLMUsageByPurpose aggregates usage by purpose.
	LLMUsageByPurpose(ctx context.Context) ([]PurposeUsage, error)

	// LLMUsageByModel aggregates usage by model.
	LLMUsageByModel(ctx context.Context) ([]ModelUsage, error)

	// AppendTurn records a dialogue turn outcome.
	AppendTurn(ctx context.Context, data TurnEventData) error

	// QueryTurns returns turn events, newest first.
	QueryTurns(ctx context.Context, opts QueryOpts) ([]TurnEvent, error)

	// TurnOutcomes counts turns by outcome.
	TurnOutcomes(ctx context.Context) ([]OutcomeCount, error)
}

// SymptomRecord is one entry of the seeded corpus.
type SymptomRecord struct {
	ID        string
	Symptom   string
	Disease   string
	Treatment string
	Vector    []float32
	CreatedAt time.Time
}

// SymptomRepo stores the seeded corpus.
type SymptomRepo interface {
	// Upsert inserts records or replaces those with the same ID.
	Upsert(ctx context.Context, records []SymptomRecord) error

	// List returns every record ordered by ID.
	List(ctx context.Context) ([]SymptomRecord, error)

	// Count returns the number of records.
	Count(ctx context.Context) (int, error)
}
