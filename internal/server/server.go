// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server is the HTTP upload boundary. It accepts multipart
// uploads, runs them through the conversion core as one batch, and
// returns the single converted document or a ZIP of all outputs.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pdiddy/docswap/internal/convert"
	"github.com/pdiddy/docswap/internal/ledger"
	"github.com/pdiddy/docswap/internal/storage"
	"github.com/pdiddy/docswap/pkg/types"
)

const shutdownTimeout = 30 * time.Second

// Deps are the collaborators a Server uses. Ledger and Publisher are
// optional.
type Deps struct {
	Dispatcher *convert.Dispatcher
	Ledger     *ledger.Store
	Publisher  storage.Publisher
	Logger     *slog.Logger
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	cfg  types.Config
	deps Deps

	httpServer *http.Server
}

// New builds and wires all routes.
func New(cfg types.Config, deps Deps) (*Server, error) {
	if deps.Dispatcher == nil {
		return nil, errors.New("server needs a dispatcher")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &Server{cfg: cfg, deps: deps}
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", headerBatchID, headerLocation},
		AllowCredentials: true,
	}))

	// public endpoints
	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)

	// protected endpoints
	r.Group(func(protected chi.Router) {
		if s.cfg.Server.JWTSecret != "" {
			protected.Use(RequireJWT([]byte(s.cfg.Server.JWTSecret)))
		}
		protected.Post("/convert", s.handleConvert)
		protected.Get("/api/jobs", s.handleJobs)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("http server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.deps.Logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
