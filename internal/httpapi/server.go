// Package httpapi exposes a docdex index over HTTP: a JSON search API, a
// refresh endpoint, status, Prometheus metrics and a small search page.
//
// Route table:
//
//	GET      /               search page
//	GET      /api/search     ?q=<query>&limit=<n>  → []Hit
//	GET|POST /api/refresh    full rescan           → {status, count}
//	GET      /api/status     index status
//	GET      /health         liveness
//	GET      /metrics        Prometheus exposition
package httpapi

import (
	"context"
	_ "embed"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Aman-CERP/docdex/internal/metrics"
	"github.com/Aman-CERP/docdex/pkg/docdex"
)

const shutdownTimeout = 10 * time.Second

//go:embed index.html
var indexPage []byte

// Backend is the index served over HTTP. *docdex.Service implements it.
type Backend interface {
	Search(ctx context.Context, query string, limit int) ([]docdex.Hit, error)
	Reindex(ctx context.Context) (int, error)
	Status() docdex.Status
}

// Server serves a Backend over HTTP.
type Server struct {
	backend  Backend
	metrics  *metrics.Metrics
	logger   *slog.Logger
	maxLimit int
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics records request metrics and serves /metrics from m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxLimit caps the limit a search may request.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// New creates a server for backend.
func New(backend Backend, opts ...Option) *Server {
	s := &Server{
		backend:  backend,
		logger:   slog.Default(),
		maxLimit: 1000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	var chain http.Handler = mux
	chain = s.instrument(chain)
	return chain
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Refresh rescans the whole tree.
		WriteTimeout: 10 * time.Minute,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	stopped := make(chan struct{})
	defer close(stopped)
	shutdownDone := make(chan error, 1)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		shutdownDone <- server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http_listening", slog.String("addr", ln.Addr().String()))
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdownDone; err != nil {
		s.logger.Warn("http_shutdown_failed", slog.String("error", err.Error()))
	}
	s.logger.Info("http_stopped")
	return nil
}
