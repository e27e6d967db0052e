// Package server exposes the backend over HTTP.
//
// Every response body is the backend's result envelope
// ({"ok", "data", "errors", "warnings"}). Successful operations answer 200
// (201 for creates); failures map their error code to a status with
// [StatusFor].
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mbuck21/BOM-Manager/pkg/backend"
	"github.com/mbuck21/BOM-Manager/pkg/errors"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Options configures [New].
type Options struct {
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
}

// Server routes API requests to a backend.
type Server struct {
	b       *backend.Backend
	logger  *log.Logger
	metrics http.Handler
}

// New returns a server for b.
func New(b *backend.Backend, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{b: b, logger: logger, metrics: opts.Metrics}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/parts", func(r chi.Router) {
			r.Get("/", s.listParts)
			r.Post("/", s.createPart)
			r.Route("/{partNumber}", func(r chi.Router) {
				r.Get("/", s.getPart)
				r.Put("/", s.upsertPart)
				r.Delete("/", s.deletePart)
				r.Patch("/attributes", s.updateAttributes)
				r.Get("/children", s.children)
				r.Get("/parents", s.parents)
				r.Get("/subgraph", s.subgraph)
			})
		})
		r.Route("/relationships", func(r chi.Router) {
			r.Put("/", s.upsertRelationship)
			r.Delete("/{relID}", s.deleteRelationship)
		})
		r.Route("/rollups", func(r chi.Router) {
			r.Post("/numeric", s.numericRollup)
			r.Post("/weight", s.weightRollup)
		})
		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", s.listSnapshots)
			r.Post("/", s.createSnapshot)
			r.Get("/{snapshotID}", s.getSnapshot)
		})
		r.Get("/diff", s.diff)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("listening", "addr", addr)

	select {
	case err := <-errc:
		return errors.Wrap(errors.ErrCodeInternal, err, "serve %s", addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "shutdown")
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// StatusFor maps an error code to an HTTP status.
func StatusFor(code errors.Code) int {
	switch code {
	case errors.ErrCodeValidation, errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeConflict:
		return http.StatusConflict
	case errors.ErrCodeCycle, errors.ErrCodeDanglingReference:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeUnsupported:
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}
