// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"

	"github.com/autobrr/janitor/internal/services/diagnostics"
)

type DiagnosticsRunner interface {
	Run(ctx context.Context) []diagnostics.Check
}

type DiagnosticsHandler struct {
	runner DiagnosticsRunner
}

func NewDiagnosticsHandler(runner DiagnosticsRunner) *DiagnosticsHandler {
	return &DiagnosticsHandler{runner: runner}
}

type DiagnosticsResponse struct {
	Healthy bool                `json:"healthy"`
	Checks  []diagnostics.Check `json:"checks"`
}

// GetDiagnostics handles GET /api/diagnostics. Healthy is false when any
// enabled service failed its probe.
func (h *DiagnosticsHandler) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	checks := h.runner.Run(r.Context())
	if checks == nil {
		checks = []diagnostics.Check{}
	}

	healthy := true
	for _, c := range checks {
		if c.Enabled && !c.OK {
			healthy = false
		}
	}

	RespondJSON(w, http.StatusOK, DiagnosticsResponse{Healthy: healthy, Checks: checks})
}
