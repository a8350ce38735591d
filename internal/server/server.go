// Package server exposes the diagnostic engine over HTTP.
//
// POST /chat runs one turn and streams its events as server-sent events;
// the client owns the conversation state and echoes it back each turn.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/Yahya305/Daaktar-Saab/internal/dialogue"
	"github.com/Yahya305/Daaktar-Saab/internal/enrich"
	"github.com/Yahya305/Daaktar-Saab/internal/llm"
	"github.com/Yahya305/Daaktar-Saab/internal/store"
)

// SessionHeader carries the session ID in both directions.
const SessionHeader = "X-Session-ID"

// Stepper runs one diagnostic turn.
type Stepper interface {
	Step(ctx context.Context, state dialogue.State) iter.Seq[dialogue.Event]
}

// Counter reports how many records the index holds.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ChatRequest is the body of POST /chat. A missing state starts a session.
type ChatRequest struct {
	Message string          `json:"message"`
	State   *dialogue.State `json:"state,omitempty"`
}

// Options configures a Server.
type Options struct {
	Engine   Stepper
	Enricher enrich.Enricher
	Index    Counter           // optional, enables /readyz checks
	Checks   map[string]Pinger // optional, named dependencies /readyz pings
	Observer dialogue.Observer // optional, told about turns the engine never saw
	Logger   *slog.Logger

	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string
}

// Server handles chat sessions.
type Server struct {
	opts   Options
	logger *slog.Logger
	router chi.Router
}

// New builds a Server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, errors.New("server: engine is required")
	}
	if opts.Enricher == nil {
		return nil, errors.New("server: enricher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Post("/chat", s.handleChat)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, "+SessionHeader)
			w.Header().Set("Access-Control-Expose-Headers", SessionHeader)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowOrigin(origin string) string {
	if slices.Contains(s.opts.AllowedOrigins, "*") {
		return "*"
	}
	if origin != "" && slices.Contains(s.opts.AllowedOrigins, origin) {
		return origin
	}
	return ""
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set(SessionHeader, sessionID)
	w.WriteHeader(http.StatusOK)

	ctx := withTurn(r.Context(), sessionID, time.Now())
	logger := s.logger.With("session", sessionID, "request_id", middleware.GetReqID(ctx))

	var state dialogue.State
	if req.State != nil {
		state = *req.State
	}

	state, err := s.opts.Enricher.Enrich(ctx, req.Message, state)
	if err != nil {
		logger.ErrorContext(ctx, "enrichment failed", "depth", state.Depth, "error", err)
		if s.opts.Observer != nil {
			s.opts.Observer(ctx, dialogue.Outcome{Kind: dialogue.OutcomeError, Depth: state.Depth, Err: err})
		}
		frame, _ := EncodeEvent(dialogue.Terminal{Kind: dialogue.TerminalError, Text: dialogue.ErrorMessage})
		if err := WriteFrame(w, frame); err == nil {
			flusher.Flush()
		}
		return
	}

	for ev := range s.opts.Engine.Step(ctx, state) {
		frame, err := EncodeEvent(ev)
		if err != nil {
			logger.ErrorContext(ctx, "encode event", "error", err)
			return
		}
		if err := WriteFrame(w, frame); err != nil {
			logger.WarnContext(ctx, "client went away", "error", err)
			return
		}
		flusher.Flush()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	for name, c := range s.opts.Checks {
		if err := c.Ping(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "readiness check failed", "check", name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "check": name, "error": err.Error()})
			return
		}
	}
	if s.opts.Index == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	n, err := s.opts.Index.Count(r.Context())
	switch {
	case err != nil:
		s.logger.WarnContext(r.Context(), "readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "error": err.Error()})
	case n == 0:
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "empty", "records": 0})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": n})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// TurnRecorder returns a dialogue.Observer that appends every turn outcome
// to events. Prompt-only turns are not recorded.
func TurnRecorder(events store.EventRepo, logger *slog.Logger) dialogue.Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, out dialogue.Outcome) {
		if out.Kind == dialogue.OutcomePrompt {
			return
		}
		info, _ := ctx.Value(turnKey{}).(turnInfo)

		data := store.TurnEventData{
			SessionID:    info.sessionID,
			Outcome:      string(out.Kind),
			Depth:        out.Depth,
			AskedSymptom: out.Asked,
			Excluded:     out.Excluded,
		}
		if !info.start.IsZero() {
			data.LatencyMs = time.Since(info.start).Milliseconds()
		}
		if out.Diagnosis != nil {
			data.Diagnosis = out.Diagnosis.Disease
			data.Confidence = out.Diagnosis.Confidence
		}
		if out.Err != nil {
			data.ErrorMessage = out.Err.Error()
		}

		// The request context may already be canceled by a departed client.
		if err := events.AppendTurn(context.WithoutCancel(ctx), data); err != nil {
			logger.Warn("failed to record turn", "session", info.sessionID, "error", err)
		}
	}
}

type turnKey struct{}

type turnInfo struct {
	sessionID string
	start     time.Time
}

func withTurn(ctx context.Context, sessionID string, start time.Time) context.Context {
	ctx = llm.WithSession(ctx, sessionID)
	return context.WithValue(ctx, turnKey{}, turnInfo{sessionID: sessionID, start: start})
}

// SessionID returns the session a turn context belongs to.
func SessionID(ctx context.Context) string {
	info, _ := ctx.Value(turnKey{}).(turnInfo)
	return info.sessionID
}

// ListenAndServe serves h on addr until ctx is canceled, then shuts down
// gracefully, waiting at most shutdownTimeout for open streams.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
