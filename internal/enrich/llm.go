package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Yahya305/Daaktar-Saab/internal/dialogue"
	"github.com/Yahya305/Daaktar-Saab/internal/llm"
)

// PurposeEnrich labels enrichment requests in the LLM event log.
const PurposeEnrich = "enrich"

// ReplySchema constrains the model's reading of a patient reply.
var ReplySchema = &llm.Schema{
	Name:        "patient-reply",
	Description: "Interpretation of a patient's answer to a yes/no symptom question",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"affirmed": map[string]any{
				"type":        "boolean",
				"description": "True if the patient confirms having the asked symptom",
			},
			"extra_symptoms": map[string]any{
				"type":        "array",
				"description": "Other symptoms the patient mentions, as short phrases",
				"items":       map[string]any{"type": "string"},
			},
		},
		"required":             []any{"affirmed", "extra_symptoms"},
		"additionalProperties": false,
	},
}

const replySystemPrompt = `You read a patient's reply in a symptom-checking chat. The patient was asked whether they have one specific symptom. Decide whether they confirmed it and list any other symptoms they mentioned. Do not invent symptoms.`

// LLMEnricher reads replies with a language model and falls back to keyword
// rules when the model fails.
type LLMEnricher struct {
	provider llm.Provider
	fallback *RuleEnricher
	logger   *slog.Logger
}

var _ Enricher = (*LLMEnricher)(nil)

// NewLLMEnricher creates an enricher backed by provider.
func NewLLMEnricher(provider llm.Provider, defaultThreshold float64, logger *slog.Logger) *LLMEnricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMEnricher{
		provider: provider,
		fallback: NewRuleEnricher(defaultThreshold),
		logger:   logger,
	}
}

func (e *LLMEnricher) Enrich(ctx context.Context, message string, st dialogue.State) (dialogue.State, error) {
	out, symptom, done := prepare(message, st, e.fallback.DefaultThreshold)
	if done {
		return out, nil
	}

	reply, err := e.classify(ctx, symptom, message)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return st, ctxErr
		}
		e.logger.WarnContext(ctx, "LLM reply classification failed, using keyword rules", "error", err)
		reply = Classify(message)
	}
	return apply(out, symptom, reply), nil
}

func (e *LLMEnricher) classify(ctx context.Context, symptom, message string) (Reply, error) {
	req := llm.Request{
		System: replySystemPrompt,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("Question: are you experiencing %s?\nReply: %s", symptom, message),
		}},
		Schema:    ReplySchema,
		MaxTokens: 200,
	}

	resp, err := e.provider.Generate(llm.WithPurpose(ctx, PurposeEnrich), req)
	if err != nil {
		return Reply{}, fmt.Errorf("reply classification: %w", err)
	}

	var reply Reply
	if err := json.Unmarshal(resp.Content, &reply); err != nil {
		return Reply{}, fmt.Errorf("parse reply classification: %w", err)
	}
	return reply, nil
}
