package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// SymptomRecord is one seeded corpus entry together with its embedding.
type SymptomRecord struct {
	ent.Schema
}

func (SymptomRecord) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Immutable(),
		field.Text("symptom").
			Comment("Comma-separated symptom list"),
		field.String("disease"),
		field.Text("treatment"),
		field.Text("vector").
			Comment("JSON array of float32 embedding values"),
		field.Time("created_at").
			Default(time.Now),
	}
}

func (SymptomRecord) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("disease"),
	}
}
