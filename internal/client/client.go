// Package client talks to the daaktar /chat endpoint.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"sync"

	"github.com/Yahya305/Daaktar-Saab/internal/dialogue"
	"github.com/Yahya305/Daaktar-Saab/internal/server"
)

// Client sends chat turns and reads the streamed frames. It remembers the
// session ID the server assigns.
type Client struct {
	baseURL string
	http    *http.Client

	mu        sync.Mutex
	sessionID string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. Streams can run for a while,
// so it should not carry a short overall timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID returns the current session, empty before the first turn.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// ResetSession forgets the session so the next turn starts a new one.
func (c *Client) ResetSession() {
	c.mu.Lock()
	c.sessionID = ""
	c.mu.Unlock()
}

// Chat runs one turn. Frames are yielded as they arrive; a transport or
// decoding failure is yielded once as the final error.
func (c *Client) Chat(ctx context.Context, message string, state *dialogue.State) iter.Seq2[server.Frame, error] {
	return func(yield func(server.Frame, error) bool) {
		resp, err := c.post(ctx, server.ChatRequest{Message: message, State: state})
		if err != nil {
			yield(server.Frame{}, err)
			return
		}
		defer resp.Body.Close()

		if id := resp.Header.Get(server.SessionHeader); id != "" {
			c.mu.Lock()
			c.sessionID = id
			c.mu.Unlock()
		}

		for f, err := range ReadFrames(resp.Body) {
			if !yield(f, err) || err != nil {
				return
			}
		}
	}
}

func (c *Client) post(ctx context.Context, req server.ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if id := c.SessionID(); id != "" {
		httpReq.Header.Set(server.SessionHeader, id)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send chat: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("chat: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// ReadFrames parses a "data: <json>" event stream. Lines that are not data
// lines (comments, event names, blank separators) are skipped.
func ReadFrames(r io.Reader) iter.Seq2[server.Frame, error] {
	return func(yield func(server.Frame, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			data, ok := strings.CutPrefix(sc.Text(), "data:")
			if !ok {
				continue
			}
			var f server.Frame
			if err := json.Unmarshal([]byte(strings.TrimSpace(data)), &f); err != nil {
				yield(server.Frame{}, fmt.Errorf("decode frame: %w", err))
				return
			}
			if !yield(f, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(server.Frame{}, fmt.Errorf("read stream: %w", err))
		}
	}
}
