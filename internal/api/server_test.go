// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/janitor/internal/domain"
	"github.com/autobrr/janitor/internal/models"
	"github.com/autobrr/janitor/internal/services/diagnostics"
	"github.com/autobrr/janitor/internal/services/executor"
	"github.com/autobrr/janitor/internal/services/pipeline"
	"github.com/autobrr/janitor/internal/testdb"
)

const testAPIKey = "test-api-key"

type routeKey struct {
	Method string
	Path   string
}

type staticConfig struct {
	cfg domain.Config
}

func (c *staticConfig) Current() domain.Config { return c.cfg }

func (c *staticConfig) UpdateLogSettings(level, logPath string, maxSize, maxBackups int) error {
	c.cfg.LogLevel, c.cfg.LogPath, c.cfg.LogMaxSize, c.cfg.LogMaxBackups = level, logPath, maxSize, maxBackups
	return nil
}

type idleScans struct{}

func (idleScans) StartScan(context.Context) (string, error) { return "", pipeline.ErrScanInProgress }
func (idleScans) Progress(string) (pipeline.Progress, bool) { return pipeline.Progress{}, false }
func (idleScans) Running() string { return "" }

type noopApplier struct{}

func (noopApplier) ApplyWithOptions(context.Context, int64, executor.Options) (*models.Run, error) {
	return nil, executor.ErrNoSelectedItems
}

func newTestDependencies(t *testing.T) *Dependencies {
	t.Helper()

	db := testdb.Open(t, "api")

	return &Dependencies{
		Config: &staticConfig{cfg: domain.Config{
			APIKey: testAPIKey,
			App:    domain.AppConfig{RequireConfirmPhrase: "DELETE", DryRunDefault: true},
		}},
		Scans:       idleScans{},
		Plans:       models.NewPlanStore(db),
		Runs:        models.NewRunStore(db),
		Protections: models.NewProtectionStore(db),
		Applier:     noopApplier{},
		Diagnostics: diagnostics.NewService(0),
		Metrics:     prometheus.NewRegistry(),
	}
}

func TestRegisteredRoutes(t *testing.T) {
	router, err := NewServer(newTestDependencies(t)).Handler()
	require.NoError(t, err)

	routes, ok := router.(chi.Routes)
	require.True(t, ok)

	expected := map[routeKey]struct{}{
		{http.MethodGet, "/health"}:                            {},
		{http.MethodGet, "/health/readiness"}:                  {},
		{http.MethodGet, "/health/liveness"}:                   {},
		{http.MethodGet, "/metrics"}:                           {},
		{http.MethodGet, "/api/version"}:                       {},
		{http.MethodGet, "/api/diagnostics"}:                   {},
		{http.MethodPost, "/api/scans"}:                        {},
		{http.MethodGet, "/api/scans/current"}:                 {},
		{http.MethodGet, "/api/scans/{scanID}"}:                {},
		{http.MethodGet, "/api/plans"}:                         {},
		{http.MethodGet, "/api/plans/latest"}:                  {},
		{http.MethodGet, "/api/plans/{planID}"}:                {},
		{http.MethodPatch, "/api/plans/{planID}/items"}:        {},
		{http.MethodPost, "/api/plans/{planID}/cancel"}:        {},
		{http.MethodPost, "/api/plans/{planID}/apply"}:         {},
		{http.MethodGet, "/api/runs"}:                          {},
		{http.MethodGet, "/api/runs/{runID}"}:                  {},
		{http.MethodGet, "/api/runs/{runID}/logs"}:             {},
		{http.MethodGet, "/api/protections"}:                   {},
		{http.MethodPost, "/api/protections"}:                  {},
		{http.MethodDelete, "/api/protections/{protectionID}"}: {},
		{http.MethodGet, "/api/config"}:                        {},
		{http.MethodPatch, "/api/config/logs"}:                 {},
	}

	actual := collectRouterRoutes(t, routes)

	if missing := diffRoutes(expected, actual); len(missing) > 0 {
		t.Fatalf("found %d routes without handlers:\n%s", len(missing), formatRoutes(missing))
	}
	if extra := diffRoutes(actual, expected); len(extra) > 0 {
		t.Fatalf("found %d unexpected routes:\n%s", len(extra), formatRoutes(extra))
	}
}

func TestAPIRequiresKey(t *testing.T) {
	router, err := NewServer(newTestDependencies(t)).Handler()
	require.NoError(t, err)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{"health is public", "/health", "", http.StatusOK},
		{"missing key", "/api/plans", "", http.StatusUnauthorized},
		{"wrong key", "/api/plans", "nope", http.StatusUnauthorized},
		{"header key", "/api/plans", testAPIKey, http.StatusOK},
		{"query key", "/api/plans?apikey=" + testAPIKey, "", http.StatusOK},
		{"metrics need key", "/metrics", "", http.StatusUnauthorized},
		{"metrics with key", "/metrics", testAPIKey, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestApplyRequiresConfirmPhrase(t *testing.T) {
	deps := newTestDependencies(t)
	plan, err := deps.Plans.(*models.PlanStore).Create(context.Background(), "scan", models.PlanSummary{}, nil)
	require.NoError(t, err)

	router, err := NewServer(deps).Handler()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/plans/%d/apply", plan.ID), strings.NewReader(`{"confirmPhrase":"nope"}`))
	req.Header.Set("X-API-Key", testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Expected: DELETE")
}

func TestBaseURL(t *testing.T) {
	deps := newTestDependencies(t)
	deps.Config.(*staticConfig).cfg.BaseURL = "janitor"

	router, err := NewServer(deps).Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/janitor/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/janitor/", rec.Header().Get("Location"))
}

func collectRouterRoutes(t *testing.T, r chi.Routes) map[routeKey]struct{} {
	t.Helper()

	routes := make(map[routeKey]struct{})
	err := chi.Walk(r, func(method string, path string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		method = strings.ToUpper(method)
		if !isComparableMethod(method) {
			return nil
		}

		normalizedPath, ok := normalizeRoutePath(path)
		if !ok {
			return nil
		}

		routes[routeKey{Method: method, Path: normalizedPath}] = struct{}{}
		return nil
	})
	require.NoError(t, err)

	return routes
}

func normalizeRoutePath(path string) (string, bool) {
	if path == "" || strings.Contains(path, "/*") {
		return "", false
	}

	if path != "/" {
		path = strings.TrimSuffix(path, "/")
	}

	return path, true
}

func isComparableMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func diffRoutes(left, right map[routeKey]struct{}) []routeKey {
	diff := make([]routeKey, 0)
	for route := range left {
		if _, exists := right[route]; !exists {
			diff = append(diff, route)
		}
	}

	sort.Slice(diff, func(i, j int) bool {
		if diff[i].Path == diff[j].Path {
			return diff[i].Method < diff[j].Method
		}
		return diff[i].Path < diff[j].Path
	})

	return diff
}

func formatRoutes(routes []routeKey) string {
	lines := make([]string, len(routes))
	for i, route := range routes {
		lines[i] = fmt.Sprintf("%s %s", route.Method, route.Path)
	}
	return strings.Join(lines, "\n")
}

func TestShutdownBeforeListen(t *testing.T) {
	server := NewServer(newTestDependencies(t))

	require.NoError(t, server.Shutdown(context.Background()))
	assert.NoError(t, server.ListenAndServe(), "a stopped server never starts listening")
}

func TestShutdownStopsListener(t *testing.T) {
	deps := newTestDependencies(t)
	deps.Config.(*staticConfig).cfg.Host = "127.0.0.1"
	server := NewServer(deps)

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	require.Eventually(t, func() bool {
		server.mu.Lock()
		defer server.mu.Unlock()
		return server.server != nil
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, server.Shutdown(context.Background()))

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return after Shutdown")
	}
}
