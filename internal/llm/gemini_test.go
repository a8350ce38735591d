package llm

import (
	"slices"
	"testing"

	"google.golang.org/genai"
)

func TestGeminiModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gemini-flash", "gemini-2.5-flash"},
		{"gemini-flash-lite", "gemini-2.5-flash-lite"},
		{"gemini-pro", "gemini-2.5-pro"},
		{"gemini-2.0-flash", "gemini-2.0-flash"}, // pass-through
	}
	for _, tt := range tests {
		if got := resolveModel(tt.input, geminiModels); got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestBuildGeminiSchema(t *testing.T) {
	def := map[string]any{
		"type":        "object",
		"description": "Interpretation of a patient's reply",
		"properties": map[string]any{
			"affirmed": map[string]any{"type": "boolean"},
			"severity": map[string]any{"type": "string", "enum": []string{"mild", "moderate", "severe"}},
			"days":     map[string]any{"type": "integer"},
			"extra_symptoms": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []any{"affirmed", "extra_symptoms"},
	}

	schema := buildGeminiSchema(def)

	if schema.Type != genai.TypeObject || schema.Description == "" {
		t.Fatalf("top level = %+v", schema)
	}
	want := map[string]genai.Type{
		"affirmed":       genai.TypeBoolean,
		"severity":       genai.TypeString,
		"days":           genai.TypeInteger,
		"extra_symptoms": genai.TypeArray,
	}
	if len(schema.Properties) != len(want) {
		t.Fatalf("expected %d properties, got %d", len(want), len(schema.Properties))
	}
	for name, typ := range want {
		if got := schema.Properties[name].Type; got != typ {
			t.Errorf("%s: type = %s, want %s", name, got, typ)
		}
	}
	if got := schema.Properties["extra_symptoms"].Items.Type; got != genai.TypeString {
		t.Errorf("items type = %s", got)
	}
	if !slices.Equal(schema.Properties["severity"].Enum, []string{"mild", "moderate", "severe"}) {
		t.Errorf("enum = %v", schema.Properties["severity"].Enum)
	}
	if !slices.Equal(schema.Required, []string{"affirmed", "extra_symptoms"}) {
		t.Errorf("required = %v", schema.Required)
	}
}

func TestStringList(t *testing.T) {
	if got := stringList([]any{"a", 1, "b"}); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("[]any: %v", got)
	}
	if got := stringList([]string{"x"}); !slices.Equal(got, []string{"x"}) {
		t.Errorf("[]string: %v", got)
	}
	if got := stringList(nil); got != nil {
		t.Errorf("nil: %v", got)
	}
}
