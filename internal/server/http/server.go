// Package httpserver provides the HTTP API of the thematic screener service.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/thematic-screener-service/internal/database"
	"github.com/helixir/thematic-screener-service/internal/domain"
	"github.com/helixir/thematic-screener-service/internal/observability"
)

// Submitter accepts validated requests and schedules them in the background.
type Submitter interface {
	Submit(ctx context.Context, req *domain.ScreenRequest) (uuid.UUID, error)
}

// StatusReader returns the lifecycle record and report of a request.
type StatusReader interface {
	GetReport(ctx context.Context, id uuid.UUID) (*domain.StatusReport, error)
}

// RequestValidator checks a decoded request.
type RequestValidator interface {
	Validate(req *domain.ScreenRequest) error
}

// ExampleCatalog serves the bundled example reports.
type ExampleCatalog interface {
	List() []domain.Example
	Get(name string) (*domain.Example, error)
}

// HealthChecker reports database health. Nil when running on the in-memory store.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Version is reported by /health and the frontend.
	Version string
	// AccessToken enables the token query check when non-empty.
	AccessToken string
	// DemoMode disables new submissions.
	DemoMode     bool
	TemplatesDir string

	// Request defaults applied before the body is decoded. Zero values keep
	// the built-in defaults.
	DefaultLLMModel      string
	DefaultDocumentLimit int
	DefaultBatchSize     int

	// StreamInterval is how often the progress stream polls the status store.
	StreamInterval time.Duration
}

// Dependencies are the collaborators of the HTTP server.
type Dependencies struct {
	Submitter Submitter
	Statuses  StatusReader
	Validator RequestValidator
	Examples  ExampleCatalog
	DB        HealthChecker
	Metrics   *observability.Metrics
	Logger    zerolog.Logger
}

// Server is the HTTP REST API server.
type Server struct {
	cfg        Config
	router     chi.Router
	httpServer *http.Server
	submitter  Submitter
	statuses   StatusReader
	validator  RequestValidator
	examples   ExampleCatalog
	db         HealthChecker
	metrics    *observability.Metrics
	index      *template.Template
	logger     zerolog.Logger
}

// NewServer creates a new HTTP server with all dependencies.
func NewServer(cfg Config, deps Dependencies) *Server {
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = sseQueryInterval
	}

	s := &Server{
		cfg:       cfg,
		submitter: deps.Submitter,
		statuses:  deps.Statuses,
		validator: deps.Validator,
		examples:  deps.Examples,
		db:        deps.DB,
		metrics:   deps.Metrics,
		logger:    observability.WithComponent(deps.Logger, "http-server"),
	}

	index, err := loadIndexTemplate(cfg.TemplatesDir)
	if err != nil {
		s.logger.Warn().Err(err).Str("templates_dir", cfg.TemplatesDir).Msg("frontend template not loaded")
	}
	s.index = index

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.instrumentMiddleware)

	// Probes (no token)
	r.Get("/health", s.healthHandler)
	r.Get("/ready", s.readinessHandler)

	r.Group(func(r chi.Router) {
		r.Use(s.tokenMiddleware)

		r.Get("/", s.indexHandler)

		r.Group(func(r chi.Router) {
			r.Use(jsonContentTypeMiddleware)

			r.Post("/thematic-screener", s.submitScreening)
			r.Get("/status/{requestID}", s.getStatus)
			r.Get("/examples", s.listExamples)
			r.Get("/examples/{name}", s.getExample)
		})

		r.Get("/status/{requestID}/stream", s.streamProgress)
	})

	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Version: s.cfg.Version})
}

// readinessHandler reports whether the status store backend is reachable.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "ready",
			"database": "memory",
		})
		return
	}

	health := s.db.Health(r.Context())
	if !health.Healthy() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": database.StatusHealthy,
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Error: message})
}
