// Resourced - Device Resource Policy Daemon
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/resarbiter/resourced

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/resarbiter/resourced/internal/arbiter"
	"github.com/resarbiter/resourced/internal/config"
	"github.com/resarbiter/resourced/internal/logging"
	"github.com/resarbiter/resourced/internal/middleware"
	"github.com/resarbiter/resourced/internal/transaction"
	ws "github.com/resarbiter/resourced/internal/websocket"
)

// Server is the admin/debug HTTP surface. It implements suture.Service
// via Serve so the supervisor tree owns its lifecycle.
type Server struct {
	cfg     config.WebConfig
	manager *arbiter.Manager
	txns    *transaction.Coordinator
	hub     *ws.Hub
	ready   func() bool
	perf    *middleware.PerformanceMonitor

	httpServer *http.Server
}

// NewServer wires the admin surface. ready reports transport readiness
// for the readiness probe; pass nil to always report ready. hub may be
// nil when the websocket push endpoint is disabled.
func NewServer(cfg config.WebConfig, manager *arbiter.Manager, txns *transaction.Coordinator, hub *ws.Hub, ready func() bool) *Server {
	s := &Server{
		cfg:     cfg,
		manager: manager,
		txns:    txns,
		hub:     hub,
		ready:   ready,
		perf:    middleware.NewPerformanceMonitor(1024),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Route("/api/v1", func(r chi.Router) {
		reqs := s.cfg.RateLimitReqs
		if reqs <= 0 {
			reqs = 60
		}
		window := s.cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		r.Use(httprate.LimitByIP(reqs, window))
		r.Use(middleware.Metrics)
		r.Use(s.perf.Middleware)
		r.Use(middleware.Compression)

		r.Get("/health", s.handleHealth)
		r.Get("/health/ready", s.handleReady)

		r.Group(func(r chi.Router) {
			if s.cfg.JWTSecret != "" {
				r.Use(bearerAuth(s.cfg.JWTSecret))
			}
			r.Get("/sets", s.handleSets)
			r.Get("/sets/{id}", s.handleSet)
			r.Get("/classes", s.handleClasses)
			r.Get("/classes/{name}", s.handleClassMembers)
			r.Get("/transactions", s.handleTransactions)
			r.Get("/debug/performance", s.handlePerformance)
			if s.hub != nil {
				r.Get("/ws", s.handleWebSocket)
			}
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	if s.cfg.SwaggerEnabled {
		r.Get("/swagger/*", httpSwagger.Handler())
	}

	return r
}

// Serve runs the HTTP listener until ctx is cancelled; it satisfies
// suture.Service so the supervisor restarts it on failure.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()
	logging.Info().Str("addr", s.cfg.Addr).Msg("api: admin surface listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("api: shutdown")
		}
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
