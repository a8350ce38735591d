package dialogue

import (
	"regexp"
	"strings"

	"github.com/Yahya305/Daaktar-Saab/internal/index"
)

// patientSeparators splits a free-text description into symptom phrases.
// "and" only counts as a whole word so "hand pain" stays intact.
var patientSeparators = regexp.MustCompile(`(?i)[;,]|\band\b`)

// SplitSymptoms breaks a patient description into trimmed, non-empty phrases.
func SplitSymptoms(prompt string) []string {
	return splitTrim(patientSeparators.Split(prompt, -1))
}

// SplitStored breaks a stored comma-separated symptom list into phrases.
func SplitStored(symptoms string) []string {
	return splitTrim(strings.Split(symptoms, ","))
}

func splitTrim(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// maxSimilarity is the best match of v against any of refs, floored at 0.
func maxSimilarity(v []float32, refs [][]float32) float64 {
	best := 0.0
	for _, r := range refs {
		best = max(best, index.CosineSimilarity(v, r))
	}
	return best
}
