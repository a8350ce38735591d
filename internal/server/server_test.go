package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yahya305/Daaktar-Saab/internal/dialogue"
	"github.com/Yahya305/Daaktar-Saab/internal/embedding"
	"github.com/Yahya305/Daaktar-Saab/internal/enrich"
	"github.com/Yahya305/Daaktar-Saab/internal/index"
	"github.com/Yahya305/Daaktar-Saab/internal/store"
)

var testVectors = map[string][]float32{
	"fever":  {1, 0, 0, 0},
	"chills": {0, 1, 0, 0},
}

type fixture struct {
	srv    *httptest.Server
	events store.EventRepo
	index  *index.Memory
}

func newFixture(t *testing.T, records ...index.Record) *fixture {
	t.Helper()

	st, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	idx := index.NewMemory()
	require.NoError(t, idx.Upsert(context.Background(), records))

	events := st.EventRepo()
	observer := TurnRecorder(events, nil)
	engine := dialogue.NewEngine(
		embedding.NewStaticProvider(testVectors),
		idx,
		dialogue.TemplateGenerator{},
		dialogue.WithObserver(observer),
	)

	s, err := New(Options{
		Engine:   engine,
		Enricher: enrich.NewRuleEnricher(enrich.DefaultThreshold),
		Index:    idx,
		Observer: observer,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, events: events, index: idx}
}

func (f *fixture) chat(t *testing.T, sessionID string, req ChatRequest) (*http.Response, []Frame) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPost, f.srv.URL+"/chat", bytes.NewReader(body))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		httpReq.Header.Set(SessionHeader, sessionID)
	}

	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp, readFrames(t, resp.Body)
}

func readFrames(t *testing.T, r io.Reader) []Frame {
	t.Helper()
	var frames []Frame
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		data, ok := strings.CutPrefix(line, "data: ")
		require.True(t, ok, "unexpected line %q", line)
		var f Frame
		require.NoError(t, json.Unmarshal([]byte(data), &f))
		frames = append(frames, f)
	}
	require.NoError(t, sc.Err())
	return frames
}

func fluRecord(vector []float32) index.Record {
	return index.Record{ID: "1", Symptom: "fever, chills", Disease: "Flu", Treatment: "Rest well.", Vector: vector}
}

func TestChatNewSessionPrompts(t *testing.T) {
	f := newFixture(t, fluRecord([]float32{1, 0, 0, 0}))

	resp, frames := f.chat(t, "", ChatRequest{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get(SessionHeader))

	require.Len(t, frames, 1)
	require.NotNil(t, frames[0].Token)
	assert.Equal(t, dialogue.DescribePrompt, *frames[0].Token)
	assert.False(t, frames[0].Done())
}

func TestChatDiagnosis(t *testing.T) {
	f := newFixture(t, fluRecord([]float32{1, 0, 0, 0}))

	resp, frames := f.chat(t, "sess-1", ChatRequest{Message: "fever"})
	assert.Equal(t, "sess-1", resp.Header.Get(SessionHeader))
	require.GreaterOrEqual(t, len(frames), 3)

	first := frames[0]
	require.NotNil(t, first.State)
	assert.Equal(t, "Flu", first.State.Diagnosis)
	assert.False(t, first.State.Complete)
	assert.Contains(t, first.Text(), "Flu")

	var treatment strings.Builder
	for _, fr := range frames[1 : len(frames)-1] {
		treatment.WriteString(fr.Text())
	}
	assert.Equal(t, "Recommended care: Rest well.", treatment.String())

	last := frames[len(frames)-1]
	require.NotNil(t, last.State)
	assert.True(t, last.State.Complete)
	assert.True(t, last.Done())
	assert.Equal(t, "Flu", last.State.Diagnosis)
	require.NotNil(t, last.State.Confidence)
	assert.InDelta(t, 1.0, *last.State.Confidence, 1e-6)
	assert.Nil(t, last.State.State, "diagnosis frames carry no conversation state")

	turns, err := f.events.QueryTurns(context.Background(), store.QueryOpts{Session: "sess-1"})
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "diagnosis", turns[0].Outcome)
	assert.Equal(t, "Flu", turns[0].Diagnosis)
}

func TestChatClarifyingQuestion(t *testing.T) {
	// cos([1,0,0,0], [0.6,0.8,0,0]) = 0.6, below the default threshold.
	f := newFixture(t, fluRecord([]float32{0.6, 0.8, 0, 0}))

	_, frames := f.chat(t, "sess-2", ChatRequest{Message: "fever"})
	require.GreaterOrEqual(t, len(frames), 2)

	var question strings.Builder
	for _, fr := range frames[:len(frames)-1] {
		question.WriteString(fr.Text())
	}
	assert.Equal(t, "Are you experiencing chills?", question.String())

	last := frames[len(frames)-1]
	require.NotNil(t, last.Token)
	assert.Equal(t, "", *last.Token)
	require.NotNil(t, last.State)
	require.NotNil(t, last.State.State)
	assert.False(t, last.Done())
	assert.Equal(t, "fever", last.State.InitialPrompt)
	assert.Equal(t, []string{"chills"}, last.State.AskedSymptoms)
	assert.Equal(t, 1, last.State.Depth)
	assert.InDelta(t, enrich.DefaultThreshold, last.State.ConfidenceThreshold, 1e-9)

	// A "no" appends nothing; the candidate then has no new symptoms left.
	next := *last.State.State
	_, frames = f.chat(t, "sess-2", ChatRequest{Message: "no", State: &next})
	require.Len(t, frames, 1)
	assert.Equal(t, dialogue.NoMatchMessage, frames[0].Message)
	assert.True(t, frames[0].Done())

	turns, err := f.events.QueryTurns(context.Background(), store.QueryOpts{Session: "sess-2"})
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "no_match", turns[0].Outcome, "newest first")
	assert.Equal(t, []string{"Flu"}, turns[0].Excluded)
	assert.Equal(t, "question", turns[1].Outcome)
	assert.Equal(t, "chills", turns[1].AskedSymptom)
}

func TestChatReferral(t *testing.T) {
	f := newFixture(t, fluRecord([]float32{1, 0, 0, 0}))

	st := dialogue.State{InitialPrompt: "fever", Depth: 5, ConfidenceThreshold: 0.7}
	_, frames := f.chat(t, "", ChatRequest{Message: "yes", State: &st})
	require.Len(t, frames, 1)
	require.NotNil(t, frames[0].Token)
	assert.Equal(t, dialogue.ReferralMessage, *frames[0].Token)
	assert.True(t, frames[0].Complete)
}

func TestChatMalformedBody(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.srv.URL+"/chat", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

type failingEnricher struct{}

func (failingEnricher) Enrich(context.Context, string, dialogue.State) (dialogue.State, error) {
	return dialogue.State{}, errors.New("boom")
}

type stepperFunc func(context.Context, dialogue.State) iter.Seq[dialogue.Event]

func (f stepperFunc) Step(ctx context.Context, st dialogue.State) iter.Seq[dialogue.Event] {
	return f(ctx, st)
}

func TestChatEnrichmentFailure(t *testing.T) {
	var observed []dialogue.Outcome
	stepped := false
	s, err := New(Options{
		Engine: stepperFunc(func(context.Context, dialogue.State) iter.Seq[dialogue.Event] {
			stepped = true
			return func(func(dialogue.Event) bool) {}
		}),
		Enricher: failingEnricher{},
		Observer: func(_ context.Context, o dialogue.Outcome) { observed = append(observed, o) },
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`))
	s.ServeHTTP(rec, req)

	frames := readFrames(t, rec.Body)
	require.Len(t, frames, 1)
	assert.Equal(t, dialogue.ErrorMessage, frames[0].Error)
	assert.True(t, frames[0].Complete)
	assert.False(t, stepped)
	require.Len(t, observed, 1)
	assert.Equal(t, dialogue.OutcomeError, observed[0].Kind)
}

func TestChatStopsWhenClientLeaves(t *testing.T) {
	pulled := make(chan int, 1)
	s, err := New(Options{
		Engine: stepperFunc(func(ctx context.Context, _ dialogue.State) iter.Seq[dialogue.Event] {
			return func(yield func(dialogue.Event) bool) {
				n := 0
				defer func() { pulled <- n }()
				for {
					if ctx.Err() != nil {
						return
					}
					n++
					if !yield(dialogue.Token{Text: "x"}) {
						return
					}
					time.Sleep(time.Millisecond)
				}
			}
		}),
		Enricher: enrich.NewRuleEnricher(0.7),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(s)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/chat", strings.NewReader(`{"message":"fever"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	buf := make([]byte, 16)
	_, err = resp.Body.Read(buf)
	require.NoError(t, err)
	cancel()
	resp.Body.Close()

	select {
	case n := <-pulled:
		assert.Positive(t, n)
	case <-time.After(5 * time.Second):
		t.Fatal("engine kept running after the client disconnected")
	}
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, "empty index is not ready")

	require.NoError(t, f.index.Upsert(context.Background(), []index.Record{fluRecord([]float32{1, 0, 0, 0})}))
	resp, err = http.Get(f.srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 1, body["records"])
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadyChecksDependencies(t *testing.T) {
	var down atomic.Bool
	s, err := New(Options{
		Engine:   dialogue.NewEngine(embedding.NewHashingProvider(8), index.NewMemory(), dialogue.TemplateGenerator{}),
		Enricher: enrich.NewRuleEnricher(enrich.DefaultThreshold),
		Checks: map[string]Pinger{
			"embedding cache": pingFunc(func(context.Context) error {
				if down.Load() {
					return errors.New("connection refused")
				}
				return nil
			}),
		},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(s)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down.Store(true)
	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "embedding cache", body["check"])
	assert.Equal(t, "connection refused", body["error"])
}

func TestCORS(t *testing.T) {
	s, err := New(Options{
		Engine: stepperFunc(func(context.Context, dialogue.State) iter.Seq[dialogue.Event] {
			return func(func(dialogue.Event) bool) {}
		}),
		Enricher:       enrich.NewRuleEnricher(0.7),
		AllowedOrigins: []string{"http://app.test"},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	req.Header.Set("Origin", "http://app.test")
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://app.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), SessionHeader)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.test")
	s.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{Enricher: enrich.NewRuleEnricher(0.7)})
	require.Error(t, err)
	_, err = New(Options{Engine: stepperFunc(nil)})
	require.Error(t, err)
}

func TestEncodeEvent(t *testing.T) {
	d := &dialogue.Diagnosis{Disease: "Flu", Confidence: 0.9}
	tests := []struct {
		name string
		ev   dialogue.Event
		want string
	}{
		{"prompt", dialogue.Prompt{Text: "Describe"}, `{"token":"Describe"}`},
		{"token", dialogue.Token{Text: "hi"}, `{"token":"hi"}`},
		{"tagged token", dialogue.Token{Text: "hi", Diagnosis: d}, `{"token":"hi","state":{"diagnosis":"Flu","confidence":0.9,"complete":false}}`},
		{"diagnosis", dialogue.StateUpdate{Diagnosis: d, Complete: true}, `{"state":{"diagnosis":"Flu","confidence":0.9,"complete":true}}`},
		{
			"question",
			dialogue.StateUpdate{State: dialogue.State{InitialPrompt: "fever", AskedSymptoms: []string{"chills"}, Depth: 1, ConfidenceThreshold: 0.7}},
			`{"token":"","state":{"initial_prompt":"fever","asked_symptoms":["chills"],"excluded_candidates":[],"depth":1,"confidence_threshold":0.7,"complete":false}}`,
		},
		{"referral", dialogue.Terminal{Kind: dialogue.TerminalReferral, Text: "see a doctor"}, `{"token":"see a doctor","complete":true}`},
		{"no match", dialogue.Terminal{Kind: dialogue.TerminalNoMatch, Text: "none"}, `{"message":"none","complete":true}`},
		{"error", dialogue.Terminal{Kind: dialogue.TerminalError, Text: "oops"}, `{"error":"oops","complete":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := EncodeEvent(tt.ev)
			require.NoError(t, err)
			var buf bytes.Buffer
			require.NoError(t, WriteFrame(&buf, f))
			assert.Equal(t, "data: "+tt.want+"\n\n", buf.String())
		})
	}
}

func TestListenAndServeShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ListenAndServe(ctx, "127.0.0.1:0", http.NotFoundHandler(), time.Second, testLogger())
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
