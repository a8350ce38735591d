package dialogue

import (
	"slices"
	"strings"
)

// State is the client-held memory of a diagnostic session. It is echoed back
// verbatim on every turn, so every field tolerates being absent.
type State struct {
	// InitialPrompt is the patient's symptom description. Empty means the
	// session has not started yet. The engine never rewrites it.
	InitialPrompt string `json:"initial_prompt"`

	// AskedSymptoms holds every symptom already raised as a clarifying
	// question. It behaves as a set but keeps insertion order, so the last
	// element is the most recently asked symptom.
	AskedSymptoms []string `json:"asked_symptoms"`

	// ExcludedCandidates lists disease labels ruled out for the session.
	ExcludedCandidates []string `json:"excluded_candidates"`

	// Depth counts clarifying questions asked so far.
	Depth int `json:"depth"`

	// ConfidenceThreshold is the minimum confidence needed to commit to a
	// diagnosis.
	ConfidenceThreshold float64 `json:"confidence_threshold"`
}

// Clone returns a deep copy. Slices in the copy are never nil so they
// serialize as empty JSON arrays.
func (s State) Clone() State {
	out := s
	out.AskedSymptoms = append(make([]string, 0, len(s.AskedSymptoms)), s.AskedSymptoms...)
	out.ExcludedCandidates = append(make([]string, 0, len(s.ExcludedCandidates)), s.ExcludedCandidates...)
	return out
}

// Normalize cleans a client-supplied state: blank and duplicate entries are
// dropped (first occurrence wins) and a negative depth becomes zero.
func (s State) Normalize() State {
	out := s.Clone()
	out.AskedSymptoms = dedupe(out.AskedSymptoms)
	out.ExcludedCandidates = dedupe(out.ExcludedCandidates)
	if out.Depth < 0 {
		out.Depth = 0
	}
	return out
}

// Started reports whether the patient has described their symptoms.
func (s State) Started() bool {
	return strings.TrimSpace(s.InitialPrompt) != ""
}

// HasAsked reports whether symptom was already raised as a question.
func (s State) HasAsked(symptom string) bool {
	return slices.Contains(s.AskedSymptoms, symptom)
}

// IsExcluded reports whether disease was ruled out.
func (s State) IsExcluded(disease string) bool {
	return slices.Contains(s.ExcludedCandidates, disease)
}

// LastAsked returns the most recently asked symptom, if any.
func (s State) LastAsked() (string, bool) {
	if len(s.AskedSymptoms) == 0 {
		return "", false
	}
	return s.AskedSymptoms[len(s.AskedSymptoms)-1], true
}

// WithAsked returns a copy with symptom recorded as asked.
func (s State) WithAsked(symptom string) State {
	out := s.Clone()
	if !out.HasAsked(symptom) {
		out.AskedSymptoms = append(out.AskedSymptoms, symptom)
	}
	return out
}

// WithExcluded returns a copy with disease ruled out.
func (s State) WithExcluded(disease string) State {
	out := s.Clone()
	if !out.IsExcluded(disease) {
		out.ExcludedCandidates = append(out.ExcludedCandidates, disease)
	}
	return out
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
