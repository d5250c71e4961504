// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/api/handlers"
	"github.com/autobrr/janitor/internal/api/middleware"
)

// Dependencies are the services the API serves. Metrics may be nil.
type Dependencies struct {
	Config      handlers.ConfigSource
	Scans       handlers.ScanRunner
	Plans       handlers.PlanStore
	Runs        handlers.RunReader
	Protections handlers.ProtectionStore
	Applier     handlers.PlanApplier
	Diagnostics handlers.DiagnosticsRunner
	Metrics     prometheus.Gatherer
}

type Server struct {
	deps *Dependencies

	mu       sync.Mutex
	server   *http.Server
	shutdown bool
}

func NewServer(deps *Dependencies) *Server {
	return &Server{deps: deps}
}

// Handler builds the full router. The API key and CORS origins are read from
// the configuration at build time.
func (s *Server) Handler() (http.Handler, error) {
	cfg := s.deps.Config.Current()

	compress, err := middleware.SelectiveCompress(1024)
	if err != nil {
		return nil, fmt.Errorf("compression middleware: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(s.corsMiddleware(cfg.CORSAllowedOrigins).Handler)
	r.Use(compress)

	health := handlers.NewHealthHandler()
	r.Route("/health", health.Routes)

	requireKey := middleware.RequireAPIKey(cfg.APIKey)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyFromQuery("apikey"))
		r.Use(requireKey)

		r.Get("/version", handlers.NewVersionHandler().GetVersion)
		r.Get("/diagnostics", handlers.NewDiagnosticsHandler(s.deps.Diagnostics).GetDiagnostics)

		r.Route("/scans", handlers.NewScansHandler(s.deps.Scans).Routes)
		r.Route("/plans", handlers.NewPlansHandler(
			s.deps.Plans,
			s.deps.Applier,
			func() string { return s.deps.Config.Current().App.RequireConfirmPhrase },
			func() bool { return s.deps.Config.Current().App.DryRunDefault },
		).Routes)
		r.Route("/runs", handlers.NewRunsHandler(s.deps.Runs, s.deps.Plans).Routes)
		r.Route("/protections", handlers.NewProtectionsHandler(s.deps.Protections).Routes)

		handlers.NewConfigHandler(s.deps.Config).RegisterRoutes(r)
	})

	if s.deps.Metrics != nil {
		r.With(middleware.APIKeyFromQuery("apikey"), requireKey).Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Metrics, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}

	baseURL := normalizeBaseURL(cfg.BaseURL)
	if baseURL == "/" {
		return r, nil
	}

	root := chi.NewRouter()
	root.Mount(strings.TrimSuffix(baseURL, "/"), r)
	root.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, baseURL, http.StatusFound)
	})
	return root, nil
}

func (s *Server) corsMiddleware(origins []string) *cors.Cors {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}

	opts := cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if len(allowed) == 0 {
		// Reflect any origin; every API route still requires the key.
		opts.AllowOriginFunc = func(string) bool { return true }
	}
	return cors.New(opts)
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" || baseURL == "/" {
		return "/"
	}
	if !strings.HasPrefix(baseURL, "/") {
		baseURL = "/" + baseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL
}

// ListenAndServe blocks until the server stops. http.ErrServerClosed is
// returned as nil.
func (s *Server) ListenAndServe() error {
	handler, err := s.Handler()
	if err != nil {
		return err
	}

	cfg := s.deps.Config.Current()
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return nil
	}
	s.server = srv
	s.mu.Unlock()

	log.Info().Str("address", addr).Msg("api: starting HTTP server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server. Called before ListenAndServe, it makes the later
// ListenAndServe return without listening.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
