// Package api exposes the query workflow over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/askql/internal/workflow"
	"golang.org/x/sync/errgroup"
)

// Runner answers questions. *workflow.Controller implements it.
type Runner interface {
	RunObserved(ctx context.Context, question string, obs workflow.Observer) *workflow.Result
	Schema() string
}

// Config holds configuration for the API server.
type Config struct {
	Addr   string
	Runner Runner
	Logger *slog.Logger
	// ShutdownTimeout bounds graceful shutdown. Zero means 5s.
	ShutdownTimeout time.Duration
}

// Server serves the HTTP API.
type Server struct {
	addr            string
	runner          atomic.Pointer[runnerBox]
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

type runnerBox struct{ Runner }

// NewServer creates a new API server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	s := &Server{addr: cfg.Addr, logger: logger, shutdownTimeout: timeout}
	s.SetRunner(cfg.Runner)
	return s
}

// SetRunner swaps the runner used by new requests. In-flight requests keep
// the runner they started with.
func (s *Server) SetRunner(r Runner) {
	s.runner.Store(&runnerBox{r})
}

func (s *Server) current() Runner {
	return s.runner.Load().Runner
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Post("/query/stream", s.handleQueryStream)
		r.Get("/schema", s.handleSchema)
	})
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
