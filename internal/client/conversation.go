package client

import (
	"context"
	"strings"
	"sync"

	"github.com/Yahya305/Daaktar-Saab/internal/dialogue"
	"github.com/Yahya305/Daaktar-Saab/internal/server"
)

// Conversation keeps the client-side state of one diagnostic session and
// merges it with the frames of each turn.
type Conversation struct {
	State     *dialogue.State
	Diagnosis *dialogue.Diagnosis
	Done      bool

	// Failed is set when the last turn ended with a server error. The held
	// state is the last good one, so resending the message retries the turn.
	Failed bool
}

// Apply folds a frame into the conversation. A full state replaces the
// held one; a completed session drops it so the next message starts over.
// An error frame ends the turn but not the session.
func (c *Conversation) Apply(f server.Frame) {
	if f.Error != "" {
		c.Failed = true
		return
	}
	if f.State != nil {
		if f.State.State != nil {
			st := f.State.State.Clone()
			c.State = &st
		}
		if f.State.Diagnosis != "" {
			d := dialogue.Diagnosis{Disease: f.State.Diagnosis}
			if f.State.Confidence != nil {
				d.Confidence = *f.State.Confidence
			}
			c.Diagnosis = &d
		}
	}
	if f.Done() {
		c.Done = true
		c.State = nil
	}
}

// Reset starts a fresh session.
func (c *Conversation) Reset() {
	*c = Conversation{}
}

// Send runs one turn through cl, applying each frame and passing its text to
// onText. It returns the full reply text. A finished conversation is reset
// before sending.
func (c *Conversation) Send(ctx context.Context, cl *Client, message string, onText func(string)) (string, error) {
	if c.Done {
		c.Reset()
		cl.ResetSession()
	}
	c.Failed = false

	var reply strings.Builder
	for f, err := range cl.Chat(ctx, message, c.State) {
		if err != nil {
			return reply.String(), err
		}
		c.Apply(f)
		if text := f.Text(); text != "" {
			reply.WriteString(text)
			if onText != nil {
				onText(text)
			}
		}
	}
	return reply.String(), nil
}

// Session pairs a Client with its Conversation. It is safe to read the
// conversation from another goroutine while a turn is running.
type Session struct {
	client *Client

	mu   sync.Mutex
	conv Conversation
}

// NewSession starts a session against cl.
func NewSession(cl *Client) *Session {
	return &Session{client: cl}
}

// Send runs one turn; see Conversation.Send.
func (s *Session) Send(ctx context.Context, message string, onText func(string)) (string, error) {
	s.mu.Lock()
	conv := s.conv
	s.mu.Unlock()

	reply, err := conv.Send(ctx, s.client, message, onText)

	s.mu.Lock()
	s.conv = conv
	s.mu.Unlock()
	return reply, err
}

// Conversation returns a copy of the current conversation.
func (s *Session) Conversation() Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.conv
	if out.State != nil {
		st := out.State.Clone()
		out.State = &st
	}
	return out
}

// Reset abandons the conversation and the server session.
func (s *Session) Reset() {
	s.mu.Lock()
	s.conv.Reset()
	s.mu.Unlock()
	s.client.ResetSession()
}
