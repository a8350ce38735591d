package dialogue

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/Yahya305/Daaktar-Saab/internal/index"
	"github.com/Yahya305/Daaktar-Saab/internal/llm"
)

// Embedder turns text into vectors. Output is order-preserving and
// deterministic for identical input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher returns at most k candidates nearest to vector, in ascending
// distance order, never including a label from exclude.
type Searcher interface {
	Query(ctx context.Context, vector []float32, k int, exclude []string) ([]index.Candidate, error)
}

// Generator streams generated text for prompt, capped at maxTokens. The
// sequence ends on its own; a non-nil error ends it early.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) iter.Seq2[string, error]
}

// Config holds the engine's tunables.
type Config struct {
	// MaxDepth is the number of clarifying questions after which the
	// patient is referred to a professional.
	MaxDepth int

	// TopK is how many candidates are pulled from the index per turn.
	TopK int

	// SymptomSimilarity is the similarity at or above which a stored
	// symptom counts as already reported by the patient.
	SymptomSimilarity float64

	// MaxTokens caps every generated question or treatment explanation.
	MaxTokens int
}

// DefaultConfig returns the standard dialogue limits.
func DefaultConfig() Config {
	return Config{
		MaxDepth:          5,
		TopK:              3,
		SymptomSimilarity: 0.7,
		MaxTokens:         150,
	}
}

// Engine runs diagnostic turns. It holds no per-session data and is safe
// for concurrent use as long as its collaborators are.
type Engine struct {
	embedder  Embedder
	searcher  Searcher
	generator Generator
	cfg       Config
	logger    *slog.Logger
	observer  Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the default limits.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the logger used for collaborator failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithObserver registers a callback invoked once at the end of every turn.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates an Engine. The searcher is wrapped with index.Checked so
// that an index breaking its ordering or exclusion contract fails the turn
// instead of silently skewing it.
func NewEngine(embedder Embedder, searcher Searcher, generator Generator, opts ...Option) *Engine {
	e := &Engine{
		embedder:  embedder,
		searcher:  index.Checked(searcher),
		generator: generator,
		cfg:       DefaultConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's limits.
func (e *Engine) Config() Config {
	return e.cfg
}

// Step runs one turn for state and returns its events. The sequence can be
// consumed once; ranging over it again yields nothing. The caller's state is
// never modified.
func (e *Engine) Step(ctx context.Context, state State) iter.Seq[Event] {
	var used atomic.Bool
	return func(yield func(Event) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}
		t := &turn{
			Engine: e,
			ctx:    ctx,
			state:  state.Normalize(),
			yield:  yield,
		}
		out := t.run()
		if e.observer != nil {
			e.observer(ctx, out)
		}
	}
}

// errStopped signals that the consumer stopped pulling events.
var errStopped = errors.New("consumer stopped")

// turn is the working state of a single Step.
type turn struct {
	*Engine
	ctx     context.Context
	state   State
	yield   func(Event) bool
	stopped bool
}

func (t *turn) emit(ev Event) bool {
	if t.stopped {
		return false
	}
	if !t.yield(ev) {
		t.stopped = true
	}
	return !t.stopped
}

func (t *turn) run() Outcome {
	st := t.state
	if st.Depth >= t.cfg.MaxDepth {
		t.emit(Terminal{Kind: TerminalReferral, Text: ReferralMessage})
		return Outcome{Kind: OutcomeReferral, Depth: st.Depth}
	}
	if !st.Started() {
		t.emit(Prompt{Text: DescribePrompt})
		return Outcome{Kind: OutcomePrompt, Depth: st.Depth}
	}

	out, err := t.diagnose(st)
	switch {
	case err == nil:
		return out
	case errors.Is(err, errStopped):
		out.Kind = OutcomeAbandoned
		return out
	}

	t.logger.ErrorContext(t.ctx, "diagnostic turn failed",
		"session", llm.SessionFrom(t.ctx),
		"depth", st.Depth,
		"excluded", st.ExcludedCandidates,
		"error", err,
	)
	t.emit(Terminal{Kind: TerminalError, Text: ErrorMessage})
	out.Kind = OutcomeError
	out.Err = err
	return out
}

func (t *turn) diagnose(st State) (Outcome, error) {
	out := Outcome{Depth: st.Depth}

	phrases := SplitSymptoms(st.InitialPrompt)
	vectors, err := t.embedder.Embed(t.ctx, append(slices.Clone(phrases), st.InitialPrompt))
	if err != nil {
		return out, fmt.Errorf("embed patient description: %w", err)
	}
	if len(vectors) != len(phrases)+1 {
		return out, fmt.Errorf("embed patient description: got %d vectors for %d texts", len(vectors), len(phrases)+1)
	}
	patient, query := vectors[:len(phrases)], vectors[len(phrases)]

	candidates, err := t.searcher.Query(t.ctx, query, t.cfg.TopK, st.ExcludedCandidates)
	if err != nil {
		return out, fmt.Errorf("search candidates: %w", err)
	}

	for _, c := range candidates {
		confidence := c.Confidence()
		if confidence >= st.ConfidenceThreshold {
			d := Diagnosis{Disease: c.Disease, Confidence: confidence}
			out.Kind = OutcomeDiagnosis
			out.Diagnosis = &d
			return out, t.announce(st, c, d)
		}

		fresh, err := t.newSymptoms(st, c, patient)
		if err != nil {
			return out, err
		}
		if len(fresh) == 0 {
			st = st.WithExcluded(c.Disease)
			out.Excluded = append(out.Excluded, c.Disease)
			continue
		}

		out.Kind = OutcomeQuestion
		out.Asked = fresh[0]
		out.Depth = st.Depth + 1
		return out, t.ask(st, fresh[0])
	}

	out.Kind = OutcomeNoMatch
	t.emit(Terminal{Kind: TerminalNoMatch, Text: NoMatchMessage})
	return out, nil
}

// newSymptoms returns the candidate's stored symptoms the patient has neither
// described nor been asked about, in stored order.
func (t *turn) newSymptoms(st State, c index.Candidate, patient [][]float32) ([]string, error) {
	var unasked []string
	for _, s := range SplitStored(c.Symptoms) {
		if !st.HasAsked(s) {
			unasked = append(unasked, s)
		}
	}
	if len(unasked) == 0 {
		return nil, nil
	}

	vectors, err := t.embedder.Embed(t.ctx, unasked)
	if err != nil {
		return nil, fmt.Errorf("embed symptoms of %q: %w", c.Disease, err)
	}
	if len(vectors) != len(unasked) {
		return nil, fmt.Errorf("embed symptoms of %q: got %d vectors for %d texts", c.Disease, len(vectors), len(unasked))
	}

	var fresh []string
	for i, s := range unasked {
		if maxSimilarity(vectors[i], patient) < t.cfg.SymptomSimilarity {
			fresh = append(fresh, s)
		}
	}
	return fresh, nil
}

func (t *turn) announce(st State, c index.Candidate, d Diagnosis) error {
	if !t.emit(Token{Text: AnnouncementText(c.Disease), Diagnosis: &d}) {
		return errStopped
	}
	if err := t.stream(PurposeTreatment, TreatmentPrompt(c.Treatment, c.Disease)); err != nil {
		return err
	}
	if !t.emit(StateUpdate{State: st, Diagnosis: &d, Complete: true}) {
		return errStopped
	}
	return nil
}

func (t *turn) ask(st State, symptom string) error {
	next := st.WithAsked(symptom)
	next.Depth++
	if err := t.stream(PurposeQuestion, QuestionPrompt(symptom)); err != nil {
		return err
	}
	if !t.emit(StateUpdate{State: next}) {
		return errStopped
	}
	return nil
}

// stream relays generated text as Token events. The purpose travels on the
// context for request logging.
func (t *turn) stream(purpose, prompt string) error {
	ctx := llm.WithPurpose(t.ctx, purpose)
	for tok, err := range t.generator.Generate(ctx, prompt, t.cfg.MaxTokens) {
		if err != nil {
			return fmt.Errorf("generate: %w", err)
		}
		if tok == "" {
			continue
		}
		if !t.emit(Token{Text: tok}) {
			return errStopped
		}
	}
	return nil
}

// AnnouncementText opens a diagnosis.
func AnnouncementText(disease string) string {
	return fmt.Sprintf("Based on your symptoms, I believe you may have %s. ", disease)
}

const (
	treatmentPrefix  = "Explain this treatment in simple terms: "
	treatmentContext = " Context: Patient showed symptoms matching "
)

// TreatmentPrompt asks the generator to explain a treatment.
func TreatmentPrompt(treatment, disease string) string {
	return treatmentPrefix + treatment + treatmentContext + disease
}

// QuestionPrompt asks the generator to phrase a yes/no question.
func QuestionPrompt(symptom string) string {
	return "are you experiencing " + symptom
}
