package enrich

import (
	"context"
	"strings"

	"github.com/Yahya305/Daaktar-Saab/internal/dialogue"
)

var (
	affirmWords = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true, "yup": true, "ya": true,
		"sure": true, "definitely": true, "correct": true, "indeed": true,
		"absolutely": true, "affirmative": true, "true": true, "right": true,
	}
	denyWords = map[string]bool{
		"no": true, "n": true, "nope": true, "nah": true, "never": true,
		"not": true, "negative": true, "false": true,
	}
	// fillers are dropped from the front of volunteered symptom phrases.
	fillers = []string{"but", "also", "i have", "i've got", "i also have", "i am", "i'm", "i feel", "there is", "some", "a", "really", "i do", "i don't", "i"}
)

// RuleEnricher classifies replies with yes/no keywords.
type RuleEnricher struct {
	DefaultThreshold float64
}

var _ Enricher = (*RuleEnricher)(nil)

// NewRuleEnricher creates a keyword-based enricher.
func NewRuleEnricher(defaultThreshold float64) *RuleEnricher {
	return &RuleEnricher{DefaultThreshold: defaultThreshold}
}

func (r *RuleEnricher) Enrich(_ context.Context, message string, st dialogue.State) (dialogue.State, error) {
	out, symptom, done := prepare(message, st, r.DefaultThreshold)
	if done {
		return out, nil
	}
	return apply(out, symptom, Classify(message)), nil
}

// Classify reads a reply to a yes/no question. The first phrase carries the
// answer; the remaining phrases are volunteered symptoms. A reply that opens
// with neither yes nor no is treated entirely as a symptom description.
func Classify(message string) Reply {
	phrases := dialogue.SplitSymptoms(message)
	if len(phrases) == 0 {
		return Reply{}
	}

	first := strings.Fields(strings.ToLower(phrases[0]))
	answer := strings.Trim(first[0], ".!?")
	var reply Reply
	switch {
	case affirmWords[answer]:
		reply.Affirmed = true
	case denyWords[answer]:
	default:
		for _, p := range phrases {
			if s := trimFillers(p); s != "" {
				reply.ExtraSymptoms = append(reply.ExtraSymptoms, s)
			}
		}
		return reply
	}

	if rest := trimFillers(strings.Join(strings.Fields(phrases[0])[1:], " ")); rest != "" && !isAnswerTail(rest) {
		reply.ExtraSymptoms = append(reply.ExtraSymptoms, rest)
	}
	for _, p := range phrases[1:] {
		if s := trimFillers(p); s != "" && !isAnswerTail(s) {
			reply.ExtraSymptoms = append(reply.ExtraSymptoms, s)
		}
	}
	return reply
}

// isAnswerTail reports whether rest only elaborates on the yes/no answer,
// as in "yes I do" or "no not really".
func isAnswerTail(rest string) bool {
	for _, w := range strings.Fields(strings.ToLower(rest)) {
		w = strings.Trim(w, ".!?")
		if !affirmWords[w] && !denyWords[w] && w != "really" && w != "do" && w != "am" && w != "don't" && w != "it" && w != "that" && w != "i" {
			return false
		}
	}
	return true
}

func trimFillers(phrase string) string {
	s := strings.TrimSpace(strings.Trim(strings.TrimSpace(phrase), ".!?"))
	for changed := true; changed; {
		changed = false
		lower := strings.ToLower(s)
		for _, f := range fillers {
			if lower == f {
				return ""
			}
			if strings.HasPrefix(lower, f+" ") {
				s = strings.TrimSpace(s[len(f)+1:])
				changed = true
				break
			}
		}
	}
	return s
}
