package llm

import (
	"math"
	"testing"
)

func TestLookupCost(t *testing.T) {
	cases := []struct {
		id      string
		wantIn  float64
		unknown bool
	}{
		{id: "gpt-4o-mini", wantIn: 0.15},
		{id: "gpt-4o-mini-2024-07-18", wantIn: 0.15},
		{id: "gpt-4o-2024-05-13", wantIn: 5},
		{id: "openai/gpt-4o-mini", wantIn: 0.15},
		{id: "claude-haiku-4-5-20251001", wantIn: 1},
		{id: "claude-sonnet-4-20250514", wantIn: 3},
		{id: "google/gemini-2.5-flash", wantIn: 0.3},
		{id: "meta-llama/llama-3-8b", unknown: true},
		{id: "", unknown: true},
	}
	for _, tc := range cases {
		c := LookupCost(tc.id)
		if tc.unknown {
			if c != nil {
				t.Errorf("%q: expected no price, got %+v", tc.id, c)
			}
			continue
		}
		if c == nil {
			t.Errorf("%q: no price", tc.id)
			continue
		}
		if c.InputPerMTok != tc.wantIn {
			t.Errorf("%q: input = %v, want %v", tc.id, c.InputPerMTok, tc.wantIn)
		}
	}
}

func TestModelCost(t *testing.T) {
	c := ModelCost{InputPerMTok: 0.15, OutputPerMTok: 0.6}
	got := c.Cost(2_000_000, 500_000)
	if math.Abs(got-0.6) > 1e-9 {
		t.Fatalf("cost = %v, want 0.6", got)
	}
}
