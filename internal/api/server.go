// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

// Package api serves the HTTP surface: triggering runs, browsing run
// history, recording operator actions, and editing preferences. There is no
// authentication; deployments front this with their own access layer.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/barhound/barhound/internal/agent"
	"github.com/barhound/barhound/internal/config"
	"github.com/barhound/barhound/internal/logging"
	"github.com/barhound/barhound/internal/metrics"
	"github.com/barhound/barhound/internal/store"
)

// Server wires the agent service and the store behind a chi router.
type Server struct {
	agent   *agent.Service
	store   *store.Store
	metrics *metrics.Metrics
	cfg     *config.Config
	logger  zerolog.Logger
}

// NewServer creates the HTTP surface. metrics may be nil, in which case the
// /metrics route is omitted.
func NewServer(svc *agent.Service, st *store.Store, m *metrics.Metrics, cfg *config.Config) *Server {
	return &Server{
		agent:   svc,
		store:   st,
		metrics: m,
		cfg:     cfg,
		logger:  logging.With().Str("component", "api").Logger(),
	}
}

// Router builds the route tree with CORS and per-IP rate limiting applied to
// the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.API.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         86400,
		}))
		r.Use(httprate.Limit(
			s.cfg.API.RateLimit,
			s.cfg.API.RateWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))

		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
		r.Post("/runs/{runID}/actions", s.handleSaveActions)

		r.Get("/preferences", s.handleListPreferences)
		r.Get("/preferences/{itemID}", s.handleGetPreference)
		r.Put("/preferences/{itemID}", s.handlePutPreference)

		r.Get("/items/{itemID}/history", s.handleItemHistory)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "healthy"})
}
