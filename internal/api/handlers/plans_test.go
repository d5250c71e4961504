// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/janitor/internal/database"
	"github.com/autobrr/janitor/internal/media"
	"github.com/autobrr/janitor/internal/models"
	"github.com/autobrr/janitor/internal/services/executor"
	"github.com/autobrr/janitor/internal/testdb"
)

func setupHandlerDB(t *testing.T) *database.DB {
	t.Helper()

	return testdb.Open(t, "handlers")
}

type fakeApplier struct {
	calls []executor.Options
	run   *models.Run
	err   error
}

func (f *fakeApplier) ApplyWithOptions(_ context.Context, planID int64, opts executor.Options) (*models.Run, error) {
	f.calls = append(f.calls, opts)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Run{ID: 7, PlanID: planID, Status: models.RunStatusCompleted, DryRun: opts.DryRun}, nil
}

func newPlansRouter(t *testing.T, applier PlanApplier) (*chi.Mux, *models.PlanStore, *models.Plan) {
	t.Helper()

	store := models.NewPlanStore(setupHandlerDB(t))
	plan, err := store.Create(context.Background(), "scan-1", models.PlanSummary{MoviesCount: 3}, []models.PlanItem{
		{Selected: true, MediaType: media.KindMovie, Title: "The Matrix", Rule: "never_watched_60d", SizeBytes: 4 << 30},
		{Selected: true, MediaType: media.KindMovie, Title: "Matrix Reloaded", Rule: "never_watched_60d", SizeBytes: 5 << 30},
		{Selected: true, MediaType: media.KindEpisode, Title: "Dark S01E01", Rule: "episode_not_watched_60d", SizeBytes: 1 << 30},
	})
	require.NoError(t, err)

	h := NewPlansHandler(store, applier, func() string { return "DELETE" }, func() bool { return true })
	r := chi.NewRouter()
	r.Route("/plans", h.Routes)
	return r, store, plan
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestPlansHandler_GetPlan(t *testing.T) {
	r, _, plan := newPlansRouter(t, &fakeApplier{})

	rec := doJSON(t, r, http.MethodGet, fmt.Sprintf("/plans/%d", plan.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp PlanResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, plan.ID, resp.ID)
	assert.Equal(t, models.PlanStatusDraft, resp.Status)
	assert.Len(t, resp.Items, 3)

	rec = doJSON(t, r, http.MethodGet, "/plans/9999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/plans/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPlansHandler_SearchAndFilter(t *testing.T) {
	r, _, plan := newPlansRouter(t, &fakeApplier{})

	tests := []struct {
		name   string
		query  string
		titles []string
	}{
		{"fuzzy title", "?search=matrx", []string{"The Matrix", "Matrix Reloaded"}},
		{"case insensitive", "?search=DARK", []string{"Dark S01E01"}},
		{"media type", "?mediaType=episode", []string{"Dark S01E01"}},
		{"no match", "?search=zzz", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, r, http.MethodGet, fmt.Sprintf("/plans/%d%s", plan.ID, tt.query), nil)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp PlanResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

			titles := make([]string, 0, len(resp.Items))
			for _, item := range resp.Items {
				titles = append(titles, item.Title)
			}
			assert.ElementsMatch(t, tt.titles, titles)
		})
	}
}

func TestPlansHandler_UpdateItems(t *testing.T) {
	r, store, plan := newPlansRouter(t, &fakeApplier{})
	path := fmt.Sprintf("/plans/%d/items", plan.ID)

	rec := doJSON(t, r, http.MethodPatch, path, UpdateItemsRequest{SelectAll: ptrBool(false)})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated models.Plan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Zero(t, updated.SelectedCount)

	items, err := store.Items(context.Background(), plan.ID)
	require.NoError(t, err)

	rec = doJSON(t, r, http.MethodPatch, path, UpdateItemsRequest{Items: []ItemSelection{{ItemID: items[1].ID, Selected: true}}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Equal(t, 1, updated.SelectedCount)

	rec = doJSON(t, r, http.MethodPatch, path, UpdateItemsRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, r, http.MethodPost, fmt.Sprintf("/plans/%d/cancel", plan.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, r, http.MethodPatch, path, UpdateItemsRequest{SelectAll: ptrBool(true)})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, r, http.MethodPost, fmt.Sprintf("/plans/%d/cancel", plan.ID), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPlansHandler_ApplyPlan(t *testing.T) {
	applier := &fakeApplier{}
	r, _, plan := newPlansRouter(t, applier)
	path := fmt.Sprintf("/plans/%d/apply", plan.ID)

	rec := doJSON(t, r, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Expected: DELETE")

	rec = doJSON(t, r, http.MethodPost, path, ApplyPlanRequest{ConfirmPhrase: "delete"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, applier.calls)

	rec = doJSON(t, r, http.MethodPost, path, ApplyPlanRequest{ConfirmPhrase: "DELETE"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, applier.calls, 1)
	assert.True(t, applier.calls[0].DryRun)

	rec = doJSON(t, r, http.MethodPost, path, ApplyPlanRequest{ConfirmPhrase: "DELETE", DryRun: ptrBool(false)})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, applier.calls, 2)
	assert.False(t, applier.calls[1].DryRun)

	var run models.Run
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
	assert.Equal(t, plan.ID, run.PlanID)
}

func TestPlansHandler_ApplyErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"not draft", executor.ErrPlanNotDraft, http.StatusConflict},
		{"not found", executor.ErrPlanNotFound, http.StatusNotFound},
		{"nothing selected", executor.ErrNoSelectedItems, http.StatusBadRequest},
		{"store failure", fmt.Errorf("create run: %w", context.DeadlineExceeded), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, plan := newPlansRouter(t, &fakeApplier{err: tt.err})
			rec := doJSON(t, r, http.MethodPost, fmt.Sprintf("/plans/%d/apply", plan.ID), ApplyPlanRequest{ConfirmPhrase: "DELETE"})
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestPlansHandler_ListPlans(t *testing.T) {
	r, store, _ := newPlansRouter(t, &fakeApplier{})
	_, err := store.Create(context.Background(), "scan-2", models.PlanSummary{}, nil)
	require.NoError(t, err)

	rec := doJSON(t, r, http.MethodGet, "/plans?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var plans []models.Plan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&plans))
	require.Len(t, plans, 1)
	assert.Equal(t, "scan-2", plans[0].ScanID)

	rec = doJSON(t, r, http.MethodGet, "/plans?limit=1&offset=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&plans))
	require.Len(t, plans, 1)
	assert.Equal(t, "scan-1", plans[0].ScanID)
}

func ptrBool(v bool) *bool { return &v }
