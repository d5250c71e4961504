// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/janitor/internal/models"
	"github.com/autobrr/janitor/internal/services/executor"
	"github.com/autobrr/janitor/internal/services/pipeline"
)

func TestRespondJSON(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	RespondJSON(w, http.StatusOK, []int{1, 2, 3})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `[1,2,3]`, w.Body.String())

	w = httptest.NewRecorder()
	RespondJSON(w, http.StatusNoContent, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = httptest.NewRecorder()
	assert.NotPanics(t, func() {
		RespondJSON(w, http.StatusOK, map[string]any{"fn": func() {}})
	})
}

func TestRespondError(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	RespondError(w, http.StatusNotFound, "Plan not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "Plan not found", resp.Error)
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		body         string
		wantStrict   bool
		wantOptional bool
	}{
		{name: "valid body", body: `{"confirmPhrase":"DELETE","dryRun":false}`, wantStrict: true, wantOptional: true},
		{name: "empty body", body: "", wantStrict: false, wantOptional: true},
		{name: "malformed body", body: `{"confirmPhrase":`, wantStrict: false, wantOptional: false},
		{name: "wrong type", body: `{"dryRun":"yes"}`, wantStrict: false, wantOptional: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var strict ApplyPlanRequest
			w := httptest.NewRecorder()
			ok := DecodeJSON(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)), &strict)
			assert.Equal(t, tt.wantStrict, ok)
			if !ok {
				assert.Equal(t, http.StatusBadRequest, w.Code)
			}

			var optional ApplyPlanRequest
			w = httptest.NewRecorder()
			ok = DecodeJSONOptional(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body)), &optional)
			assert.Equal(t, tt.wantOptional, ok)
			if tt.wantStrict {
				assert.Equal(t, "DELETE", optional.ConfirmPhrase)
				require.NotNil(t, optional.DryRun)
				assert.False(t, *optional.DryRun)
			}
		})
	}
}

func TestParsePagination(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 50, 0},
		{"?limit=20&offset=40", 20, 40},
		{"?limit=9000", 500, 0},
		{"?limit=abc&offset=abc", 50, 0},
		{"?limit=0&offset=-5", 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()

			p := ParsePagination(httptest.NewRequest(http.MethodGet, "/api/plans"+tt.query, nil), 50, 500)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset)
		})
	}
}

func TestParseStringParam(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	var got string
	var gotOK bool
	r.Get("/scans/{scanID}", func(w http.ResponseWriter, r *http.Request) {
		got, gotOK = ParseStringParam(w, r, "scanID", "scan ID")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scans/%20abc%20", nil))
	assert.True(t, gotOK)
	assert.Equal(t, "abc", got)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/scans/%20", nil))
	assert.False(t, gotOK)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParsePlanID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		planID     string
		wantID     int64
		wantOK     bool
		wantStatus int
	}{
		{name: "valid ID", planID: "42", wantID: 42, wantOK: true},
		{name: "zero ID is invalid", planID: "0", wantStatus: http.StatusBadRequest},
		{name: "negative ID is invalid", planID: "-3", wantStatus: http.StatusBadRequest},
		{name: "non-numeric ID", planID: "latest", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := chi.NewRouter()
			var gotID int64
			var gotOK bool

			r.Get("/plans/{planID}", func(w http.ResponseWriter, r *http.Request) {
				gotID, gotOK = ParsePlanID(w, r)
			})

			req := httptest.NewRequest("GET", "/plans/"+tt.planID, nil)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantID, gotID)
			assert.Equal(t, tt.wantOK, gotOK)
			if !tt.wantOK {
				assert.Equal(t, tt.wantStatus, w.Code)
			}
		})
	}
}

func TestRespondServiceError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"plan not found", models.ErrPlanNotFound, http.StatusNotFound, models.ErrPlanNotFound.Error()},
		{"wrapped not draft", fmt.Errorf("apply: %w", models.ErrPlanNotDraft), http.StatusConflict, "apply: " + models.ErrPlanNotDraft.Error()},
		{"scan running", pipeline.ErrScanInProgress, http.StatusConflict, pipeline.ErrScanInProgress.Error()},
		{"nothing selected", executor.ErrNoSelectedItems, http.StatusBadRequest, executor.ErrNoSelectedItems.Error()},
		{"invalid protection", models.ErrInvalidProtection, http.StatusBadRequest, models.ErrInvalidProtection.Error()},
		{"protection missing", models.ErrProtectionNotFound, http.StatusNotFound, models.ErrProtectionNotFound.Error()},
		{"unknown error hides details", errors.New("disk I/O error"), http.StatusInternalServerError, "Failed to do the thing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			RespondServiceError(w, tt.err, "Failed to do the thing")

			assert.Equal(t, tt.wantStatus, w.Code)

			var resp ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.wantError, resp.Error)
		})
	}
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	s := []int{1, 2, 3, 4, 5}
	assert.Equal(t, []int{3, 4}, paginate(s, PaginationParams{Limit: 2, Offset: 2}))
	assert.Equal(t, []int{5}, paginate(s, PaginationParams{Limit: 10, Offset: 4}))
	assert.Equal(t, []int{}, paginate(s, PaginationParams{Limit: 10, Offset: 5}))
	assert.Equal(t, s, paginate(s, PaginationParams{}))
}
