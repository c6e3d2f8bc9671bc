// Package api exposes the HTTP surface: document upload and analysis plus
// health checks.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"findoc/internal/config"
	"findoc/internal/finance"
	"findoc/internal/store"
)

// Version is reported by the liveness endpoint.
const Version = "1.0.0"

// Analyzer runs the crew pipeline for one uploaded document.
// *finance.Service satisfies it.
type Analyzer interface {
	Analyze(ctx context.Context, processingID, query, filePath string, pipelines []finance.Pipeline) (string, error)
}

// Server serves the analysis REST API.
type Server struct {
	addr           string
	maxUploadBytes int64
	dataRoot       string
	store          *store.FS
	analyzer       Analyzer
}

// NewServer constructs the API server.
func NewServer(cfg config.Config, st *store.FS, analyzer Analyzer) *Server {
	return &Server{
		addr:           cfg.Addr,
		maxUploadBytes: cfg.MaxUploadBytes,
		dataRoot:       cfg.DataRoot,
		store:          st,
		analyzer:       analyzer,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/analyze", s.handleAnalyze)
	return r
}

// Start runs the HTTP server until ctx is cancelled or the listener fails.
// On cancellation it drains in-flight requests with a bounded shutdown.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
