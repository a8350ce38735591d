package store

import (
	"testing"

	"entgo.io/ent"
	"entgo.io/ent/dialect/sql/schema"

	entschema "github.com/Yahya305/Daaktar-Saab/ent/schema"
)

type entityDef interface {
	Fields() []ent.Field
	Mixin() []ent.Mixin
}

// fieldNames lists mixin fields first, matching the table column order.
func fieldNames(e entityDef) []string {
	var names []string
	for _, m := range e.Mixin() {
		for _, f := range m.Fields() {
			names = append(names, f.Descriptor().Name)
		}
	}
	for _, f := range e.Fields() {
		names = append(names, f.Descriptor().Name)
	}
	return names
}

func columnNames(t *schema.Table, skipID bool) []string {
	var names []string
	for _, c := range t.Columns {
		if skipID && c.Name == "id" {
			continue
		}
		names = append(names, c.Name)
	}
	return names
}

func TestTablesMatchEntitySchemas(t *testing.T) {
	cases := []struct {
		name   string
		entity entityDef
		table  *schema.Table
		skipID bool
	}{
		{"symptom records", entschema.SymptomRecord{}, SymptomRecordsTable, false},
		{"llm request events", entschema.LLMRequestEvent{}, LLMRequestEventsTable, true},
		{"turn events", entschema.TurnEvent{}, TurnEventsTable, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := columnNames(tc.table, tc.skipID)
			want := fieldNames(tc.entity)
			if len(got) != len(want) {
				t.Fatalf("columns = %v, entity fields = %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("column %d = %q, entity field = %q", i, got[i], want[i])
				}
			}
		})
	}
}
