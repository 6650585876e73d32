// Package api provides the HTTP REST API for sourcedesk.
//
// Endpoints:
//
//	POST /api/chat       guardrail-gated question answering
//	POST /api/ingest     trigger ingestion for a registered document
//	GET  /api/documents  list registered documents
//	DELETE /api/documents/{id}  soft-delete a document
//	GET  /health         liveness probe
//	GET  /ready          readiness probe (pings the database)
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: logging and panic recovery
//   - ratelimit.go: per-IP token bucket rate limiting
//   - health.go: /health and /ready probes
//   - chat.go: chat endpoint
//   - ingest.go: ingestion trigger endpoint
//   - documents.go: document listing and deletion
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sourcedesk/sourcedesk/internal/document"
	"github.com/sourcedesk/sourcedesk/internal/guardrail"
	"github.com/sourcedesk/sourcedesk/internal/ingest"
	"github.com/sourcedesk/sourcedesk/internal/log"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:3500"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds request header reads, guarding against
	// slowloris-style connection exhaustion.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is the maximum duration for writing the response.
	// Completion calls dominate chat latency, so this stays generous.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// ServerConfig carries the dependencies and policy for the API server.
type ServerConfig struct {
	Engine    *guardrail.Engine
	Pipeline  *ingest.Pipeline
	Documents *document.Store
	Pool      *pgxpool.Pool
	Logger    log.Logger

	// RatePerSec and RateBurst size the per-IP token bucket. Zero values
	// select defaults (1 token/sec, burst 30).
	RatePerSec float64
	RateBurst  int

	// TrustProxy enables client IP extraction from X-Real-IP and
	// X-Forwarded-For. Leave false unless a reverse proxy sets them.
	TrustProxy bool
}

// Server is the HTTP server for the sourcedesk REST API.
type Server struct {
	mux     *http.ServeMux
	limiter *rateLimiter
	logger  log.Logger

	trustProxy bool
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ratePerSec := cfg.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 1.0
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 30
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:        mux,
		limiter:    newRateLimiter(ratePerSec, burst),
		logger:     logger,
		trustProxy: cfg.TrustProxy,
	}

	NewHealthHandler(cfg.Pool, logger).RegisterRoutes(mux)
	if cfg.Engine != nil {
		NewChatHandler(cfg.Engine, logger).RegisterRoutes(mux)
	}
	if cfg.Pipeline != nil {
		NewIngestHandler(cfg.Pipeline, logger).RegisterRoutes(mux)
	}
	if cfg.Documents != nil {
		NewDocumentHandler(cfg.Documents, logger).RegisterRoutes(mux)
	}

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → rate limit → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
		rateLimitMiddleware(s.limiter, s.trustProxy, s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
