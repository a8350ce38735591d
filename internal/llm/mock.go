package llm

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"sync"
)

var errMockExhausted = errors.New("no canned responses left")

// MockResponse is a canned response for the MockProvider.
type MockResponse struct {
	Content json.RawMessage
	Usage   Usage
	Err     error

	// Chunks are the pieces yielded by Stream. When empty, Stream yields
	// Content as a single chunk.
	Chunks []string

	// ErrAfter, when positive, makes Stream fail with Err after yielding
	// that many chunks instead of failing up front.
	ErrAfter int
}

// MockProvider is a deterministic Provider for testing.
// It returns canned responses in FIFO order and records all requests.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// Generate returns the next canned response or ErrProviderUnavailable if
// the queue is empty.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	resp, ok := m.next(req)
	if !ok {
		return nil, &ErrProviderUnavailable{Provider: "mock", Err: errMockExhausted}
	}

	if resp.Err != nil {
		return nil, resp.Err
	}

	return &Response{
		Content:    resp.Content,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: StopEnd,
	}, nil
}

// Stream yields the next canned response chunk by chunk.
func (m *MockProvider) Stream(_ context.Context, req Request) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		m.mu.Lock()
		resp, ok := m.next(req)
		m.mu.Unlock()

		if !ok {
			yield(Chunk{}, &ErrProviderUnavailable{Provider: "mock", Err: errMockExhausted})
			return
		}
		if resp.Err != nil && resp.ErrAfter <= 0 {
			yield(Chunk{}, resp.Err)
			return
		}

		chunks := resp.Chunks
		if len(chunks) == 0 {
			chunks = []string{mockText(resp.Content)}
		}
		for i, c := range chunks {
			if resp.Err != nil && i == resp.ErrAfter {
				yield(Chunk{}, resp.Err)
				return
			}
			if !yield(Chunk{Text: c}, nil) {
				return
			}
		}
		if resp.Err != nil {
			yield(Chunk{}, resp.Err)
			return
		}

		usage := resp.Usage
		yield(Chunk{Usage: &usage, Model: "mock", StopReason: StopEnd}, nil)
	}
}

// next records req and pops the next canned response. Callers hold m.mu.
func (m *MockProvider) next(req Request) (MockResponse, bool) {
	m.Calls = append(m.Calls, req)
	if len(m.responses) == 0 {
		return MockResponse{}, false
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, true
}

// mockText returns content as plain text, unquoting a JSON string.
func mockText(content json.RawMessage) string {
	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s
	}
	return string(content)
}

func (m *MockProvider) Name() string { return "mock" }

// ModelID returns "mock".
func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Generate and Stream calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
