package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"strings"
	"time"

	"github.com/Yahya305/Daaktar-Saab/internal/store"
)

// LoggingProvider is a decorator that records every LLM request as an event.
type LoggingProvider struct {
	inner     Provider
	eventRepo store.EventRepo
}

// WithLogging wraps a Provider with event logging.
func WithLogging(p Provider, repo store.EventRepo) Provider {
	return &LoggingProvider{inner: p, eventRepo: repo}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := l.inner.Generate(ctx, req)

	latencyMs := time.Since(start).Milliseconds()

	data := store.LLMRequestEventData{
		Provider:    providerName(l.inner),
		Model:       l.inner.ModelID(),
		Purpose:     purpose,
		SessionID:   SessionFrom(ctx),
		LatencyMs:   latencyMs,
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}

	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Model = resp.Model
		data.ResponseBody = string(resp.Content)
	}

	if err != nil {
		data.ErrorMessage = err.Error()
	}

	l.record(ctx, data)
	return resp, err
}

// Stream relays the inner stream and records one event when it ends,
// holding the concatenated text as the response body.
func (l *LoggingProvider) Stream(ctx context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		start := time.Now()
		data := store.LLMRequestEventData{
			Provider:    providerName(l.inner),
			Model:       l.inner.ModelID(),
			Purpose:     PurposeFrom(ctx),
			SessionID:   SessionFrom(ctx),
			Streamed:    true,
			RequestBody: serializeRequest(req),
			Success:     true,
		}
		var text strings.Builder

		defer func() {
			data.LatencyMs = time.Since(start).Milliseconds()
			data.ResponseBody = text.String()
			l.record(ctx, data)
		}()

		for chunk, err := range l.inner.Stream(ctx, req) {
			if err != nil {
				data.Success = false
				data.ErrorMessage = err.Error()
				yield(chunk, err)
				return
			}
			text.WriteString(chunk.Text)
			if chunk.Model != "" {
				data.Model = chunk.Model
			}
			if chunk.Usage != nil {
				data.InputTokens = chunk.Usage.InputTokens
				data.OutputTokens = chunk.Usage.OutputTokens
			}
			if !yield(chunk, nil) {
				data.ErrorMessage = "stream abandoned by consumer"
				return
			}
		}
	}
}

// record appends the event but never fails the request.
func (l *LoggingProvider) record(ctx context.Context, data store.LLMRequestEventData) {
	if l.eventRepo == nil {
		return
	}
	if err := l.eventRepo.AppendLLMRequest(context.WithoutCancel(ctx), data); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to log LLM request event: %v\n", err)
	}
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

// serializeRequest builds a readable representation of the LLM request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		b.WriteString(fmt.Sprintf("[%s]\n", m.Role))
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	if req.Schema != nil {
		schemaDef, err := json.Marshal(req.Schema.Definition)
		if err == nil {
			b.WriteString(fmt.Sprintf("[schema: %s]\n", req.Schema.Name))
			b.WriteString(string(schemaDef))
			b.WriteString("\n")
		}
	}

	return b.String()
}
