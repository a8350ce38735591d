package dialogue

import "context"

// OutcomeKind classifies how a turn ended.
type OutcomeKind string

const (
	OutcomePrompt    OutcomeKind = "prompt"
	OutcomeQuestion  OutcomeKind = "question"
	OutcomeDiagnosis OutcomeKind = "diagnosis"
	OutcomeNoMatch   OutcomeKind = "no_match"
	OutcomeReferral  OutcomeKind = "referral"
	OutcomeError     OutcomeKind = "error"
	OutcomeAbandoned OutcomeKind = "abandoned"
)

// Outcome summarizes a finished turn for logging and metrics.
type Outcome struct {
	Kind      OutcomeKind
	Depth     int        // depth the client will send back next turn
	Asked     string     // symptom asked about, for OutcomeQuestion
	Excluded  []string   // candidates ruled out during this turn
	Diagnosis *Diagnosis // set for OutcomeDiagnosis
	Err       error      // set for OutcomeError
}

// Complete reports whether the session ends with this turn.
func (o Outcome) Complete() bool {
	switch o.Kind {
	case OutcomeDiagnosis, OutcomeNoMatch, OutcomeReferral, OutcomeError:
		return true
	}
	return false
}

// Observer receives the outcome of every turn along with the context the
// turn ran under.
type Observer func(context.Context, Outcome)
