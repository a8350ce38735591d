// Package enrich folds a patient's raw chat message into the dialogue state
// before the engine runs.
//
// The first message becomes the symptom description. Later messages answer
// the most recently asked symptom: a yes appends that symptom to the
// description, and any symptoms the patient volunteers are appended too.
package enrich

import (
	"context"
	"strings"

	"github.com/Yahya305/Daaktar-Saab/internal/dialogue"
)

// DefaultThreshold is the confidence threshold applied when the client sends
// none.
const DefaultThreshold = 0.7

// Enricher rewrites the dialogue state from a patient message.
type Enricher interface {
	Enrich(ctx context.Context, message string, st dialogue.State) (dialogue.State, error)
}

// Reply is the interpretation of a patient's answer to a clarifying
// question.
type Reply struct {
	Affirmed      bool     `json:"affirmed"`
	ExtraSymptoms []string `json:"extra_symptoms"`
}

// apply merges a classified reply into st. It is shared by every Enricher so
// the state rules stay identical regardless of how the reply was read.
func apply(st dialogue.State, symptom string, r Reply) dialogue.State {
	out := st.Clone()
	if r.Affirmed && symptom != "" {
		out.InitialPrompt = appendSymptom(out.InitialPrompt, symptom)
	}
	for _, s := range r.ExtraSymptoms {
		out.InitialPrompt = appendSymptom(out.InitialPrompt, s)
	}
	return out
}

// prepare handles the parts of enrichment that need no interpretation. It
// returns done=true when the message has been fully applied.
func prepare(message string, st dialogue.State, defaultThreshold float64) (out dialogue.State, symptom string, done bool) {
	out = st.Normalize()
	out.ConfidenceThreshold = threshold(out.ConfidenceThreshold, defaultThreshold)

	message = strings.TrimSpace(message)
	if !out.Started() {
		out.InitialPrompt = message
		return out, "", true
	}
	if message == "" {
		return out, "", true
	}

	last, ok := out.LastAsked()
	if !ok {
		out.InitialPrompt = appendSymptom(out.InitialPrompt, message)
		return out, "", true
	}
	return out, last, false
}

func threshold(v, def float64) float64 {
	if def <= 0 {
		def = DefaultThreshold
	}
	if v <= 0 {
		v = def
	}
	return min(v, 1)
}

// appendSymptom adds symptom to the description unless it is already one of
// its phrases.
func appendSymptom(prompt, symptom string) string {
	symptom = strings.TrimSpace(symptom)
	if symptom == "" {
		return prompt
	}
	for _, p := range dialogue.SplitSymptoms(prompt) {
		if strings.EqualFold(p, symptom) {
			return prompt
		}
	}
	if strings.TrimSpace(prompt) == "" {
		return symptom
	}
	return prompt + ", " + symptom
}
