package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// Engine defines the interface of the Parley engine served over HTTP.
type Engine interface {
	StartScenario(ctx context.Context, sessionID string, scenarioID int64) *domain.ExecutionResult
	ExecuteStep(ctx context.Context, sessionID string, stepID int64, input string) *domain.ExecutionResult
	GetContext(ctx context.Context, sessionID string) (*domain.ConversationContext, error)
	ClearContext(ctx context.Context, sessionID string) error
	Chat(ctx context.Context, sessionID string, req parley.ChatRequest) *parley.ChatResponse
	Respond(sessionID string, result *domain.ExecutionResult) *parley.ChatResponse
	Store() ports.ScenarioStore
}

var _ Engine = (*parley.Engine)(nil)

// Server holds the handlers' dependencies.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	logger  *slog.Logger
	metrics http.Handler
	origins []string
	filter  func(*domain.ConversationContext) *domain.ConversationContext
}

// Option defines a functional option for configuring the Server.
type Option func(*Server)

// WithLogger sets a custom structured logger for the handlers.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts h (usually promhttp) on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithAllowedOrigins restricts the WebSocket origin check. Empty allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithContextFilter transforms contexts before GET /api/scenarios/context
// returns them, e.g. to redact sensitive variables.
func WithContextFilter(filter func(*domain.ConversationContext) *domain.ConversationContext) Option {
	return func(s *Server) {
		s.filter = filter
	}
}

// NewServer creates the handlers for the engine.
func NewServer(engine Engine, opts ...Option) *Server {
	server := &Server{
		Engine: engine,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(server)
	}
	server.Streams = NewStreamManager(server.logger)
	return server
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	return NewServer(engine, opts...).Handler()
}

// Handler routes requests to the server's handlers.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Get("/health", s.GetHealth)
	router.Get("/version", s.GetVersion)
	if s.metrics != nil {
		router.Method(http.MethodGet, "/metrics", s.metrics)
	}

	router.Route("/api/scenarios", func(r chi.Router) {
		r.Get("/", s.ListScenarios)
		r.Post("/", s.CreateScenario)
		r.Get("/context/{sessionId}", s.GetContext)
		r.Delete("/context/{sessionId}", s.ClearContext)
		r.Post("/steps/{stepId}/execute", s.ExecuteStep)
		r.Get("/{id}", s.GetScenario)
		r.Put("/{id}", s.UpdateScenario)
		r.Delete("/{id}", s.DeleteScenario)
		r.Get("/{id}/steps", s.GetSteps)
		r.Post("/{id}/start", s.StartScenario)
	})

	router.Get("/events", s.SubscribeEvents)
	router.Get("/ws/chat/{sessionId}", s.Chat)

	return enableCORS(router)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetVersion handles the GET /version request.
func (s *Server) GetVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "parley-http",
		"version": parley.Version,
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorBody{Error: message})
}

// writeStoreError maps store errors to HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrScenarioNotFound),
		errors.Is(err, domain.ErrStepNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error("Store operation failed", "op", op, "err", err)
		s.writeError(w, http.StatusInternalServerError, op+" failed")
	}
}
