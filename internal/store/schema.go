package store

import (
	"context"
	"fmt"
	"math"

	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table and column names.
const (
	symptomRecordsTable   = "symptom_records"
	llmRequestEventsTable = "llm_request_events"
	turnEventsTable       = "turn_events"
)

var (
	// SymptomRecordsColumns holds the columns of the seeded corpus.
	SymptomRecordsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "symptom", Type: field.TypeString, Size: math.MaxInt32},
		{Name: "disease", Type: field.TypeString},
		{Name: "treatment", Type: field.TypeString, Size: math.MaxInt32},
		{Name: "vector", Type: field.TypeString, Size: math.MaxInt32},
		{Name: "created_at", Type: field.TypeTime},
	}
	// SymptomRecordsTable holds the seeded corpus with embeddings.
	SymptomRecordsTable = &schema.Table{
		Name:       symptomRecordsTable,
		Columns:    SymptomRecordsColumns,
		PrimaryKey: []*schema.Column{SymptomRecordsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "symptomrecord_disease", Columns: []*schema.Column{SymptomRecordsColumns[2]}},
		},
	}

	// LLMRequestEventsColumns holds the columns of logged LLM calls.
	LLMRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "session_id", Type: field.TypeString, Nullable: true},
		{Name: "streamed", Type: field.TypeBool, Default: false},
		{Name: "input_tokens", Type: field.TypeInt},
		{Name: "output_tokens", Type: field.TypeInt},
		{Name: "latency_ms", Type: field.TypeInt64},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Nullable: true},
		{Name: "request_body", Type: field.TypeString, Size: math.MaxInt32, Nullable: true},
		{Name: "response_body", Type: field.TypeString, Size: math.MaxInt32, Nullable: true},
	}
	// LLMRequestEventsTable holds one row per LLM request.
	LLMRequestEventsTable = &schema.Table{
		Name:       llmRequestEventsTable,
		Columns:    LLMRequestEventsColumns,
		PrimaryKey: []*schema.Column{LLMRequestEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_purpose", Columns: []*schema.Column{LLMRequestEventsColumns[4]}},
			{Name: "llmrequestevent_session_id", Columns: []*schema.Column{LLMRequestEventsColumns[5]}},
		},
	}

	// TurnEventsColumns holds the columns of dialogue turn outcomes.
	TurnEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt, Increment: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "session_id", Type: field.TypeString},
		{Name: "outcome", Type: field.TypeString},
		{Name: "depth", Type: field.TypeInt},
		{Name: "asked_symptom", Type: field.TypeString, Nullable: true},
		{Name: "excluded", Type: field.TypeString, Size: math.MaxInt32, Nullable: true},
		{Name: "diagnosis", Type: field.TypeString, Nullable: true},
		{Name: "confidence", Type: field.TypeFloat64, Nullable: true},
		{Name: "latency_ms", Type: field.TypeInt64},
		{Name: "error_message", Type: field.TypeString, Nullable: true},
	}
	// TurnEventsTable holds one row per dialogue turn.
	TurnEventsTable = &schema.Table{
		Name:       turnEventsTable,
		Columns:    TurnEventsColumns,
		PrimaryKey: []*schema.Column{TurnEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "turnevent_session_id", Columns: []*schema.Column{TurnEventsColumns[2]}},
		},
	}

	// Tables lists every table managed by the store.
	Tables = []*schema.Table{
		SymptomRecordsTable,
		LLMRequestEventsTable,
		TurnEventsTable,
	}
)

// migrate creates or updates the tables to match Tables.
func (s *Store) migrate(ctx context.Context) error {
	m, err := schema.NewMigrate(s.drv)
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}
	return m.Create(ctx, Tables...)
}
