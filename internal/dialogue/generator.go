package dialogue

import (
	"context"
	"iter"
	"strings"

	"github.com/Yahya305/Daaktar-Saab/internal/llm"
)

// Purpose labels attached to generation requests.
const (
	PurposeQuestion  = "question"
	PurposeTreatment = "treatment"
)

const generatorSystem = "You are a friendly medical assistant talking to a patient. " +
	"Answer in plain language, in at most three short sentences. " +
	"When asked to pose a question, ask exactly one yes/no question and nothing else."

// LLMGenerator streams text from an llm.Provider.
type LLMGenerator struct {
	provider llm.Provider
}

var _ Generator = (*LLMGenerator)(nil)

// NewLLMGenerator adapts provider to the Generator interface.
func NewLLMGenerator(provider llm.Provider) *LLMGenerator {
	return &LLMGenerator{provider: provider}
}

// Generate implements Generator.
func (g *LLMGenerator) Generate(ctx context.Context, prompt string, maxTokens int) iter.Seq2[string, error] {
	req := llm.Request{
		System:    generatorSystem,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens: maxTokens,
	}
	return func(yield func(string, error) bool) {
		for chunk, err := range g.provider.Stream(ctx, req) {
			if err != nil {
				yield("", err)
				return
			}
			if chunk.Text == "" {
				continue
			}
			if !yield(chunk.Text, nil) {
				return
			}
		}
	}
}

// TemplateGenerator phrases questions and treatments without a language
// model. It recognizes the prompts built by QuestionPrompt and
// TreatmentPrompt and passes anything else through unchanged.
type TemplateGenerator struct{}

var _ Generator = TemplateGenerator{}

// Generate implements Generator. maxTokens is approximated by words.
func (TemplateGenerator) Generate(ctx context.Context, prompt string, maxTokens int) iter.Seq2[string, error] {
	text := templateText(prompt)
	return func(yield func(string, error) bool) {
		if err := ctx.Err(); err != nil {
			yield("", err)
			return
		}
		for i, w := range strings.SplitAfter(text, " ") {
			if maxTokens > 0 && i >= maxTokens {
				return
			}
			if !yield(w, nil) {
				return
			}
		}
	}
}

func templateText(prompt string) string {
	if symptom, ok := strings.CutPrefix(prompt, QuestionPrompt("")); ok {
		return "Are you experiencing " + symptom + "?"
	}
	if rest, ok := strings.CutPrefix(prompt, treatmentPrefix); ok {
		treatment, _, _ := strings.Cut(rest, treatmentContext)
		return "Recommended care: " + strings.TrimSpace(treatment)
	}
	return prompt
}
