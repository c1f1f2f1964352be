package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/golem/internal/logging"
	"github.com/aretw0/golem/internal/runtime"
	"github.com/aretw0/golem/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Engine is the part of the bot the HTTP surface drives.
type Engine interface {
	Process(ctx context.Context, ev domain.Event) (*runtime.Outcome, error)
	Inspect(ctx context.Context, sessionID string) (*runtime.Snapshot, error)
	Clear(ctx context.Context, sessionID string) error
	Sessions(ctx context.Context) ([]string, error)
}

// Server serves the session API.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	channel string
	version string
	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithChannelName sets the channel bound to sessions created over HTTP. Defaults to "web".
func WithChannelName(name string) Option {
	return func(s *Server) {
		s.channel = name
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithMetrics mounts h on /metrics, e.g. promhttp.Handler().
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithStreams shares a stream manager created before the server,
// typically to register the web channel with the bot first.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates the server. Register Server.Channel() with the bot so
// replies reach the SSE stream of the session.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		Engine:  engine,
		channel: "web",
		version: "dev",
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}
	return s
}

// Channel returns the channel that feeds the SSE streams.
func (s *Server) Channel() *Channel {
	return NewChannel(s.channel, s.Streams)
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.ClearSession)
			r.Post("/events", s.PostEvent)
			r.Get("/stream", s.SubscribeEvents)
		})
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// EventRequest is the body of POST /sessions/{id}/events.
// Entities bypass extraction; otherwise Text and Postback are handed to the extractor.
type EventRequest struct {
	Type     domain.EventType `json:"type"`
	Entities map[string]any   `json:"entities,omitempty"`
	Text     string           `json:"text,omitempty"`
	Postback map[string]any   `json:"postback,omitempty"`
}

// PostEvent handles POST /sessions/{id}/events.
func (s *Server) PostEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body EventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("PostEvent: Invalid request body", "error", err)
		return
	}
	if body.Type == "" {
		body.Type = domain.EventMessage
		if body.Postback != nil {
			body.Type = domain.EventPostback
		}
	}

	ev := domain.Event{
		Type:     body.Type,
		Session:  s.session(id),
		Entities: body.Entities,
	}
	if ev.Entities == nil {
		raw := map[string]any{}
		if body.Text != "" {
			raw["text"] = body.Text
		}
		if body.Postback != nil {
			raw["postback"] = body.Postback
		}
		ev.Raw = raw
	}

	out, err := s.Engine.Process(r.Context(), ev)
	if err != nil {
		s.fail(w, "PostEvent", id, err)
		return
	}
	writeJSON(w, http.StatusOK, out, s.logger)
}

// session binds ids with the channel's prefix to the channel; other ids keep their stored binding.
func (s *Server) session(id string) domain.Session {
	prefix, chatID, ok := strings.Cut(id, "_")
	if ok && prefix == s.channel {
		return domain.NewSession(prefix, s.channel, chatID)
	}
	return domain.Session{ID: id}
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.Engine.Inspect(r.Context(), id)
	if err != nil {
		s.fail(w, "GetSession", id, err)
		return
	}
	writeJSON(w, http.StatusOK, snap, s.logger)
}

// ClearSession handles DELETE /sessions/{id}.
func (s *Server) ClearSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Engine.Clear(r.Context(), id); err != nil {
		s.fail(w, "ClearSession", id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Sessions(r.Context())
	if err != nil {
		s.fail(w, "ListSessions", "", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids}, s.logger)
}

// GetHealth handles the GET /healthz request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":     "golem-http",
		"version": strings.TrimSpace(s.version),
		"channel": s.channel,
	}, s.logger)
}

// SubscribeEvents handles GET /sessions/{id}/stream (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	id := chi.URLParam(r, "id")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe(id)
	defer cancel()
	s.logger.Info("SSE: Subscribing to session", "session_id", id)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "session_id", id)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) fail(w http.ResponseWriter, op, id string, err error) {
	var perr *domain.PersistenceError
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrUnknownChannel):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "turn timed out", http.StatusGatewayTimeout)
	case errors.As(err, &perr):
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		s.logger.Error(op+" failed", "session_id", id, "error", err)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
		s.logger.Warn(op+" rejected", "session_id", id, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}
