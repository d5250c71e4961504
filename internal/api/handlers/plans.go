// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/models"
	"github.com/autobrr/janitor/internal/services/executor"
)

type PlanStore interface {
	Get(ctx context.Context, id int64) (*models.Plan, error)
	List(ctx context.Context, limit int) ([]*models.Plan, error)
	Latest(ctx context.Context) (*models.Plan, error)
	Items(ctx context.Context, planID int64) ([]*models.PlanItem, error)
	SetItemSelection(ctx context.Context, planID int64, selection map[int64]bool) error
	SetAllSelection(ctx context.Context, planID int64, selected bool) error
	Cancel(ctx context.Context, planID int64) error
}

// PlanApplier executes the selected items of a plan.
type PlanApplier interface {
	ApplyWithOptions(ctx context.Context, planID int64, opts executor.Options) (*models.Run, error)
}

type PlansHandler struct {
	plans         PlanStore
	applier       PlanApplier
	confirmPhrase func() string
	dryRunDefault func() bool
}

// NewPlansHandler returns a handler for plan review and apply. confirmPhrase
// and dryRunDefault are read on every apply so config reloads take effect.
func NewPlansHandler(plans PlanStore, applier PlanApplier, confirmPhrase func() string, dryRunDefault func() bool) *PlansHandler {
	return &PlansHandler{
		plans:         plans,
		applier:       applier,
		confirmPhrase: confirmPhrase,
		dryRunDefault: dryRunDefault,
	}
}

func (h *PlansHandler) Routes(r chi.Router) {
	r.Get("/", h.ListPlans)
	r.Get("/latest", h.GetLatestPlan)
	r.Route("/{planID}", func(r chi.Router) {
		r.Get("/", h.GetPlan)
		r.Patch("/items", h.UpdateItems)
		r.Post("/cancel", h.CancelPlan)
		r.Post("/apply", h.ApplyPlan)
	})
}

// PlanResponse is a plan with its (optionally filtered) items.
type PlanResponse struct {
	*models.Plan
	Items []*models.PlanItem `json:"items"`
}

type ItemSelection struct {
	ItemID   int64 `json:"itemId"`
	Selected bool  `json:"selected"`
}

type UpdateItemsRequest struct {
	SelectAll *bool           `json:"selectAll"`
	Items     []ItemSelection `json:"items"`
}

type ApplyPlanRequest struct {
	ConfirmPhrase string `json:"confirmPhrase"`
	DryRun        *bool  `json:"dryRun"`
}

// ListPlans handles GET /api/plans
func (h *PlansHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, 50, 500)
	plans, err := h.plans.List(r.Context(), p.Offset+p.Limit)
	if err != nil {
		RespondServiceError(w, err, "Failed to list plans")
		return
	}
	RespondJSON(w, http.StatusOK, paginate(plans, p))
}

// GetLatestPlan handles GET /api/plans/latest
func (h *PlansHandler) GetLatestPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.plans.Latest(r.Context())
	if err != nil {
		RespondServiceError(w, err, "Failed to load plan")
		return
	}
	if plan == nil {
		RespondError(w, http.StatusNotFound, "Plan not found")
		return
	}
	h.respondPlan(w, r, plan)
}

// GetPlan handles GET /api/plans/{planID}
func (h *PlansHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	planID, ok := ParsePlanID(w, r)
	if !ok {
		return
	}

	plan, err := h.plans.Get(r.Context(), planID)
	if err != nil {
		RespondServiceError(w, err, "Failed to load plan")
		return
	}
	if plan == nil {
		RespondError(w, http.StatusNotFound, "Plan not found")
		return
	}
	h.respondPlan(w, r, plan)
}

func (h *PlansHandler) respondPlan(w http.ResponseWriter, r *http.Request, plan *models.Plan) {
	items, err := h.plans.Items(r.Context(), plan.ID)
	if err != nil {
		RespondServiceError(w, err, "Failed to load plan items")
		return
	}

	query := r.URL.Query()
	items = filterItems(items, query.Get("search"), query.Get("mediaType"))
	if items == nil {
		items = []*models.PlanItem{}
	}

	RespondJSON(w, http.StatusOK, PlanResponse{Plan: plan, Items: items})
}

// filterItems keeps items of mediaType (when set) whose title fuzzy-matches
// search. Matches are ordered by distance, closest first.
func filterItems(items []*models.PlanItem, search, mediaType string) []*models.PlanItem {
	if mediaType = strings.TrimSpace(mediaType); mediaType != "" {
		filtered := items[:0:0]
		for _, item := range items {
			if strings.EqualFold(string(item.MediaType), mediaType) {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	search = strings.TrimSpace(search)
	if search == "" {
		return items
	}

	titles := make([]string, len(items))
	for i, item := range items {
		titles[i] = item.Title
	}

	ranks := fuzzy.RankFindNormalizedFold(search, titles)
	sort.Stable(ranks)

	matched := make([]*models.PlanItem, 0, len(ranks))
	for _, rank := range ranks {
		matched = append(matched, items[rank.OriginalIndex])
	}
	return matched
}

// UpdateItems handles PATCH /api/plans/{planID}/items
func (h *PlansHandler) UpdateItems(w http.ResponseWriter, r *http.Request) {
	planID, ok := ParsePlanID(w, r)
	if !ok {
		return
	}

	var req UpdateItemsRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	var err error
	switch {
	case req.SelectAll != nil:
		err = h.plans.SetAllSelection(r.Context(), planID, *req.SelectAll)
	case len(req.Items) > 0:
		selection := make(map[int64]bool, len(req.Items))
		for _, item := range req.Items {
			selection[item.ItemID] = item.Selected
		}
		err = h.plans.SetItemSelection(r.Context(), planID, selection)
	default:
		RespondError(w, http.StatusBadRequest, "selectAll or items is required")
		return
	}
	if err != nil {
		RespondServiceError(w, err, "Failed to update plan items")
		return
	}

	plan, err := h.plans.Get(r.Context(), planID)
	if err != nil {
		RespondServiceError(w, err, "Failed to load plan")
		return
	}
	if plan == nil {
		RespondError(w, http.StatusNotFound, "Plan not found")
		return
	}
	RespondJSON(w, http.StatusOK, plan)
}

// CancelPlan handles POST /api/plans/{planID}/cancel
func (h *PlansHandler) CancelPlan(w http.ResponseWriter, r *http.Request) {
	planID, ok := ParsePlanID(w, r)
	if !ok {
		return
	}
	if err := h.plans.Cancel(r.Context(), planID); err != nil {
		RespondServiceError(w, err, "Failed to cancel plan")
		return
	}
	log.Info().Int64("planID", planID).Msg("api: plan cancelled")
	w.WriteHeader(http.StatusNoContent)
}

// ApplyPlan handles POST /api/plans/{planID}/apply. The run executes
// synchronously and the finished run is returned.
func (h *PlansHandler) ApplyPlan(w http.ResponseWriter, r *http.Request) {
	planID, ok := ParsePlanID(w, r)
	if !ok {
		return
	}

	var req ApplyPlanRequest
	if !DecodeJSONOptional(w, r, &req) {
		return
	}

	if phrase := h.confirmPhrase(); phrase != "" && req.ConfirmPhrase != phrase {
		RespondError(w, http.StatusBadRequest, "Confirmation phrase required. Expected: "+phrase)
		return
	}

	dryRun := h.dryRunDefault()
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	// The run must not be abandoned halfway when the client disconnects.
	run, err := h.applier.ApplyWithOptions(context.WithoutCancel(r.Context()), planID, executor.Options{DryRun: dryRun})
	if err != nil {
		RespondServiceError(w, err, "Failed to apply plan")
		return
	}
	RespondJSON(w, http.StatusOK, run)
}
