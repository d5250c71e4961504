// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/media"
	"github.com/autobrr/janitor/internal/models"
)

type ProtectionStore interface {
	List(ctx context.Context) ([]*models.Protection, error)
	Create(ctx context.Context, p *models.Protection) (*models.Protection, error)
	Delete(ctx context.Context, id int64) error
}

type ProtectionsHandler struct {
	store ProtectionStore
}

func NewProtectionsHandler(store ProtectionStore) *ProtectionsHandler {
	return &ProtectionsHandler{store: store}
}

func (h *ProtectionsHandler) Routes(r chi.Router) {
	r.Get("/", h.ListProtections)
	r.Post("/", h.CreateProtection)
	r.Delete("/{protectionID}", h.DeleteProtection)
}

type CreateProtectionRequest struct {
	MediaType string `json:"mediaType"`
	TMDBID    int    `json:"tmdbId"`
	TVDBID    int    `json:"tvdbId"`
	IMDBID    string `json:"imdbId"`
	Path      string `json:"path"`
	Reason    string `json:"reason"`
}

// ListProtections handles GET /api/protections
func (h *ProtectionsHandler) ListProtections(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		RespondServiceError(w, err, "Failed to list protections")
		return
	}
	if list == nil {
		list = []*models.Protection{}
	}
	RespondJSON(w, http.StatusOK, list)
}

// CreateProtection handles POST /api/protections
func (h *ProtectionsHandler) CreateProtection(w http.ResponseWriter, r *http.Request) {
	var req CreateProtectionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	created, err := h.store.Create(r.Context(), &models.Protection{
		MediaType: media.Kind(strings.ToLower(strings.TrimSpace(req.MediaType))),
		TMDBID:    req.TMDBID,
		TVDBID:    req.TVDBID,
		IMDBID:    strings.TrimSpace(req.IMDBID),
		Path:      strings.TrimSpace(req.Path),
		Reason:    strings.TrimSpace(req.Reason),
	})
	if err != nil {
		RespondServiceError(w, err, "Failed to create protection")
		return
	}

	log.Info().Int64("protectionID", created.ID).Str("mediaType", string(created.MediaType)).Msg("api: protection created")
	RespondJSON(w, http.StatusCreated, created)
}

// DeleteProtection handles DELETE /api/protections/{protectionID}
func (h *ProtectionsHandler) DeleteProtection(w http.ResponseWriter, r *http.Request) {
	id, ok := ParsePositiveID64(w, r, "protectionID", "protection ID")
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		RespondServiceError(w, err, "Failed to delete protection")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
