package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bookscout/internal/book"
	"bookscout/internal/discovery"
	"bookscout/internal/logging"
	"bookscout/internal/metrics"
	"bookscout/internal/search"
)

// Searcher is the catalog surface served under /api.
type Searcher interface {
	SearchBooks(ctx context.Context, params book.SearchParams) (book.SearchResults, error)
	GetBookDetails(ctx context.Context, id string, source book.Source) (*book.Book, error)
	Status() search.Status
}

// Discoverer serves prompt-driven discovery.
type Discoverer interface {
	Available() bool
	Discover(ctx context.Context, prompt string, params book.SearchParams) (discovery.Result, error)
}

// Server owns the HTTP listener and router.
type Server struct {
	bind       string
	token      string
	logger     *slog.Logger
	metrics    *metrics.Collectors
	gatherer   prometheus.Gatherer
	searcher   Searcher
	discoverer Discoverer

	listener net.Listener
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records per-route request counts.
func WithMetrics(m *metrics.Collectors) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGatherer mounts /metrics for the given registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithToken requires a bearer token on /api routes. Empty disables auth.
func WithToken(token string) Option {
	return func(s *Server) { s.token = strings.TrimSpace(token) }
}

// New builds a server bound to bind. discoverer may be nil, in which case
// /api/discover answers 503.
func New(bind string, searcher Searcher, discoverer Discoverer, opts ...Option) *Server {
	s := &Server{
		bind:       strings.TrimSpace(bind),
		logger:     logging.NewNop(),
		searcher:   searcher,
		discoverer: discoverer,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler. Exposed for tests and embedding.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware(s.token))
		r.Get("/search", s.handleSearch)
		r.Get("/books/{id}", s.handleBook)
		r.Post("/discover", s.handleDiscover)
		r.Get("/status", s.handleStatus)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Addr reports the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start listens on the configured bind and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	if s.bind == "" {
		return errors.New("api: empty bind address")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, waiting up to five seconds for in-flight requests.
func (s *Server) Stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api")
}
