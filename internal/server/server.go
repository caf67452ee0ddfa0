// Package server provides the webhook listener that turns incoming
// repository events into pipeline runs. It exposes a small HTTP surface:
// a webhook endpoint, a health check, and read-only run listings.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/slipwayci/slipway/internal/domain"
	"github.com/slipwayci/slipway/internal/run"
)

// readHeaderTimeout bounds header reads to mitigate slowloris clients.
const readHeaderTimeout = 10 * time.Second

// Dispatcher turns trigger events into pipeline runs.
// Implemented by engine.Engine via a small adapter; abstracted for testing.
type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.TriggerEvent) (*domain.RunRecord, error)
}

// Options configures the server.
type Options struct {
	// Addr is the listen address (host:port).
	Addr string

	// WebhookSecret is the HMAC key for signature verification.
	// Empty disables verification.
	WebhookSecret []byte

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// Server is the webhook listener.
type Server struct {
	dispatcher Dispatcher
	runs       run.Store
	opts       Options
	logger     zerolog.Logger
	httpServer *http.Server
}

// New creates a Server.
func New(dispatcher Dispatcher, runs run.Store, opts Options, logger zerolog.Logger) *Server {
	s := &Server{
		dispatcher: dispatcher,
		runs:       runs,
		opts:       opts,
		logger:     logger,
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// routes builds the HTTP router.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Post("/webhook", s.handleWebhook)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{runID}", s.handleGetRun)

	return r
}

// Run starts the listener and blocks until the context is canceled or
// the listener fails. Shutdown is graceful, bounded by ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("webhook listener started")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down webhook listener")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// logRequests logs each request at debug level with the request ID.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
