package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// TurnEvent records how one consultation turn ended.
type TurnEvent struct {
	ent.Schema
}

func (TurnEvent) Mixin() []ent.Mixin {
	return []ent.Mixin{EventMixin{}}
}

func (TurnEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("session_id").
			Comment("Value of the X-Session-ID header"),
		field.String("outcome").
			Comment("prompt, question, diagnosis, no_match, referral or error"),
		field.Int("depth"),
		field.String("asked_symptom").
			Optional(),
		field.Text("excluded").
			Optional().
			Comment("JSON array of excluded diseases"),
		field.String("diagnosis").
			Optional(),
		field.Float("confidence").
			Optional(),
		field.Int64("latency_ms").
			Default(0),
		field.String("error_message").
			Optional(),
	}
}

func (TurnEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("session_id"),
	}
}
