// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/autobrr/janitor/internal/services/pipeline"
)

// ScanRunner starts background scans and reports their progress.
type ScanRunner interface {
	StartScan(ctx context.Context) (string, error)
	Progress(scanID string) (pipeline.Progress, bool)
	Running() string
}

type ScansHandler struct {
	scans ScanRunner
}

func NewScansHandler(scans ScanRunner) *ScansHandler {
	return &ScansHandler{scans: scans}
}

func (h *ScansHandler) Routes(r chi.Router) {
	r.Post("/", h.StartScan)
	r.Get("/current", h.Current)
	r.Get("/{scanID}", h.GetProgress)
}

type StartScanResponse struct {
	ScanID string `json:"scanId"`
}

// StartScan handles POST /api/scans
func (h *ScansHandler) StartScan(w http.ResponseWriter, r *http.Request) {
	scanID, err := h.scans.StartScan(r.Context())
	if err != nil {
		RespondServiceError(w, err, "Failed to start scan")
		return
	}
	RespondJSON(w, http.StatusAccepted, StartScanResponse{ScanID: scanID})
}

// Current handles GET /api/scans/current
func (h *ScansHandler) Current(w http.ResponseWriter, r *http.Request) {
	scanID := h.scans.Running()
	if scanID == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.respondProgress(w, scanID)
}

// GetProgress handles GET /api/scans/{scanID}
func (h *ScansHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	scanID, ok := ParseStringParam(w, r, "scanID", "scan ID")
	if !ok {
		return
	}
	h.respondProgress(w, scanID)
}

func (h *ScansHandler) respondProgress(w http.ResponseWriter, scanID string) {
	progress, ok := h.scans.Progress(scanID)
	if !ok {
		RespondError(w, http.StatusNotFound, "Scan not found")
		return
	}
	RespondJSON(w, http.StatusOK, progress)
}
