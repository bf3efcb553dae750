// Package server wires the HTTP router and owns the listener lifecycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/terradash/terradash/internal/errors"
	"github.com/terradash/terradash/internal/server/handlers"
	"github.com/terradash/terradash/internal/server/middleware"
)

// Options tune listener behavior beyond the defaults.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server hosts the dashboard API.
type Server struct {
	host    string
	port    int
	h       *handlers.Handlers
	logger  *zap.Logger
	httpSrv *http.Server
	opts    Options
}

// New builds a server around the given handler set.
func New(host string, port int, h *handlers.Handlers, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 120 * time.Second
	}
	return &Server{
		host:   host,
		port:   port,
		h:      h,
		logger: logger,
		opts:   opts,
	}
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// Handler assembles the router. Safe to call without starting the listener,
// which is how the tests drive it.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(middleware.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteJSON(w, http.StatusNotFound, apperrors.CodeNotFound,
			"resource not found", middleware.GetRequestID(req.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.WriteJSON(w, http.StatusMethodNotAllowed, apperrors.CodeMethodNotAllowed,
			"method not allowed", middleware.GetRequestID(req.Context()))
	})

	r.Get("/health", s.h.Health)
	r.Get("/version", s.h.Version)

	r.Route("/api", func(r chi.Router) {
		r.Get("/templates", s.h.ListTemplates)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.h.ListJobs)
			r.Post("/template", s.h.SubmitTemplate)
			r.Post("/custom", s.h.SubmitCustom)

			r.Route("/{jobID}", func(r chi.Router) {
				r.Get("/", s.h.GetJob)
				r.Post("/destroy", s.h.Destroy)
				r.Get("/logs", s.h.GetLogs)
				r.Get("/outputs", s.h.GetOutputs)
			})
		})
	})

	return r
}

// Start runs the listener until the context is canceled, then drains
// in-flight requests within shutdownTimeout.
func (s *Server) Start(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  s.opts.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpSrv.Addr))
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("shutting down http server")
		return s.httpSrv.Shutdown(shutdownCtx)
	}
}
