// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autobrr/janitor/internal/models"
)

type RunReader interface {
	Get(ctx context.Context, id int64) (*models.Run, error)
	List(ctx context.Context, limit int) ([]*models.Run, error)
	Items(ctx context.Context, runID int64) ([]*models.RunItem, error)
}

type PlanItemReader interface {
	Items(ctx context.Context, planID int64) ([]*models.PlanItem, error)
}

type RunsHandler struct {
	runs  RunReader
	items PlanItemReader
}

func NewRunsHandler(runs RunReader, items PlanItemReader) *RunsHandler {
	return &RunsHandler{runs: runs, items: items}
}

func (h *RunsHandler) Routes(r chi.Router) {
	r.Get("/", h.ListRuns)
	r.Get("/{runID}", h.GetRun)
	r.Get("/{runID}/logs", h.GetRunLogs)
}

// RunResponse is a run together with its per-item audit trail.
type RunResponse struct {
	*models.Run
	Items []*models.RunItem `json:"items"`
}

// ListRuns handles GET /api/runs
func (h *RunsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, 50, 500)
	runs, err := h.runs.List(r.Context(), p.Offset+p.Limit)
	if err != nil {
		RespondServiceError(w, err, "Failed to list runs")
		return
	}
	RespondJSON(w, http.StatusOK, paginate(runs, p))
}

// GetRun handles GET /api/runs/{runID}
func (h *RunsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, ok := ParseRunID(w, r)
	if !ok {
		return
	}

	run, err := h.runs.Get(r.Context(), runID)
	if err != nil {
		RespondServiceError(w, err, "Failed to load run")
		return
	}
	if run == nil {
		RespondError(w, http.StatusNotFound, "Run not found")
		return
	}

	items, err := h.runs.Items(r.Context(), runID)
	if err != nil {
		RespondServiceError(w, err, "Failed to load run items")
		return
	}
	if items == nil {
		items = []*models.RunItem{}
	}

	RespondJSON(w, http.StatusOK, RunResponse{Run: run, Items: items})
}

// RunLogEntry is a run item annotated with the title of its plan item.
type RunLogEntry struct {
	PlanItemID            int64                `json:"planItemId"`
	Title                 string               `json:"title"`
	Status                models.RunItemStatus `json:"status"`
	Error                 string               `json:"error,omitempty"`
	TorrentRemoved        bool                 `json:"torrentRemoved"`
	CatalogEntryRemoved   bool                 `json:"catalogEntryRemoved"`
	PresentationRefreshed bool                 `json:"presentationRefreshed"`
	ManualReconciliation  bool                 `json:"manualReconciliation"`
}

// GetRunLogs handles GET /api/runs/{runID}/logs
func (h *RunsHandler) GetRunLogs(w http.ResponseWriter, r *http.Request) {
	runID, ok := ParseRunID(w, r)
	if !ok {
		return
	}

	run, err := h.runs.Get(r.Context(), runID)
	if err != nil {
		RespondServiceError(w, err, "Failed to load run")
		return
	}
	if run == nil {
		RespondError(w, http.StatusNotFound, "Run not found")
		return
	}

	runItems, err := h.runs.Items(r.Context(), runID)
	if err != nil {
		RespondServiceError(w, err, "Failed to load run items")
		return
	}

	planItems, err := h.items.Items(r.Context(), run.PlanID)
	if err != nil {
		RespondServiceError(w, err, "Failed to load plan items")
		return
	}
	titles := make(map[int64]string, len(planItems))
	for _, item := range planItems {
		titles[item.ID] = item.Title
	}

	logs := make([]RunLogEntry, 0, len(runItems))
	for _, item := range runItems {
		title, ok := titles[item.PlanItemID]
		if !ok {
			title = "Unknown"
		}
		logs = append(logs, RunLogEntry{
			PlanItemID:            item.PlanItemID,
			Title:                 title,
			Status:                item.Status,
			Error:                 item.Error,
			TorrentRemoved:        item.TorrentRemoved,
			CatalogEntryRemoved:   item.CatalogEntryRemoved,
			PresentationRefreshed: item.PresentationRefreshed,
			ManualReconciliation:  item.ManualReconciliation,
		})
	}

	RespondJSON(w, http.StatusOK, map[string]any{"logs": logs})
}
