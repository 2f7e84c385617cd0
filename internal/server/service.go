// Package server provides the HTTP façade for autovoyce: session creation
// plus synchronous search, background pipeline dispatch, live status
// streaming, and namespace-scoped retrieval queries.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/autovoyce/autovoyce/internal/config"
	"github.com/autovoyce/autovoyce/internal/events"
	"github.com/autovoyce/autovoyce/internal/genai"
	"github.com/autovoyce/autovoyce/internal/pipeline"
	"github.com/autovoyce/autovoyce/internal/session"
	"github.com/autovoyce/autovoyce/internal/youtube"
)

const (
	// DefaultHTTPTimeout bounds the synchronous endpoints. The SSE stream is
	// exempted per-route.
	DefaultHTTPTimeout = 30 * time.Second

	// SessionCookieName is the cookie carrying the session id between the
	// search and processing requests.
	SessionCookieName = "session_id"

	// SessionHeaderName is the header checked first when resolving a query's
	// session.
	SessionHeaderName = "X-Session-ID"

	// sessionCookieMaxAge is 24 hours; the server-side idle timeout is far
	// shorter, so the cookie outliving the session is expected.
	sessionCookieMaxAge = 86400
)

// Retriever is the namespace-scoped search path of the store.
type Retriever interface {
	Search(ctx context.Context, namespace, query string, topK int) ([]string, error)
}

// Service wires the HTTP surface to the session registry, event log,
// pipeline dispatcher, and the retrieval/answering path.
type Service struct {
	cfg *config.Config

	registry   *session.Registry
	events     *events.Log
	runner     *pipeline.Runner
	dispatcher *pipeline.Dispatcher

	searcher  youtube.Searcher
	retriever Retriever
	answerer  genai.Answerer

	// queryGroup coalesces identical concurrent queries per namespace so a
	// burst of the same question costs one retrieval and one generation.
	queryGroup singleflight.Group

	router *chi.Mux
	server *http.Server
}

// NewService builds the service and its router.
func NewService(
	cfg *config.Config,
	registry *session.Registry,
	eventLog *events.Log,
	runner *pipeline.Runner,
	dispatcher *pipeline.Dispatcher,
	searcher youtube.Searcher,
	retriever Retriever,
	answerer genai.Answerer,
) *Service {
	s := &Service{
		cfg:        cfg,
		registry:   registry,
		events:     eventLog,
		runner:     runner,
		dispatcher: dispatcher,
		searcher:   searcher,
		retriever:  retriever,
		answerer:   answerer,
		router:     chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Service) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(CORS(s.cfg.AllowedOrigins))
}

func (s *Service) setupRoutes() {
	s.router.Get("/", s.handleHealth)

	s.router.Route("/upload", func(r chi.Router) {
		r.With(middleware.Timeout(DefaultHTTPTimeout)).Post("/", s.handleUpload)
		r.With(middleware.Timeout(DefaultHTTPTimeout)).Post("/process", s.handleProcess)
		// No timeout here: the stream lives until the client disconnects.
		r.Get("/status/{session_id}", s.handleStatus)
	})

	s.router.With(middleware.Timeout(DefaultHTTPTimeout)).Post("/query", s.handleQuery)
}

// Router exposes the configured router, mainly for tests.
func (s *Service) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server until Shutdown is called or the listener fails.
func (s *Service) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// WriteTimeout stays unset so SSE connections are not severed.
		IdleTimeout: 120 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context's deadline.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
