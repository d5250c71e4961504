// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package executor applies an approved plan. Every selected item goes through
// the same three steps in fixed order:
//
//  1. Remove the linked torrents from the download client, keeping the files.
//  2. Delete the entry and its files through the owning catalog manager.
//  3. Ask the library server to refresh the affected section.
//
// A step-1 failure stops the item before anything is deleted. A step-2
// failure after step 1 succeeded leaves the files on disk without a torrent;
// the item is flagged for manual reconciliation. Step 3 is best effort.
//
// There is no cross-service transaction. Failures are recorded per item and
// the run continues with the next one.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/media"
	"github.com/autobrr/janitor/internal/models"
)

var (
	ErrPlanNotFound    = models.ErrPlanNotFound
	ErrPlanNotDraft    = models.ErrPlanNotDraft
	ErrNoSelectedItems = errors.New("plan has no selected items")
)

const manualReconciliationSuffix = " (torrent already removed; needs manual reconciliation)"

type TorrentRemover interface {
	DeleteTorrents(ctx context.Context, hashes []string, deleteFiles bool) error
}

type MovieDeleter interface {
	DeleteMovie(ctx context.Context, id int, deleteFiles, addImportExclusion bool) error
}

type SeriesDeleter interface {
	DeleteSeries(ctx context.Context, id int, deleteFiles bool) error
	DeleteEpisodeFile(ctx context.Context, id int) error
}

type LibraryRefresher interface {
	RefreshSection(ctx context.Context, kind media.Kind) error
}

type PlanStore interface {
	Get(ctx context.Context, id int64) (*models.Plan, error)
	SelectedItems(ctx context.Context, planID int64) ([]*models.PlanItem, error)
	Transition(ctx context.Context, id int64, from, to models.PlanStatus) error
}

type RunStore interface {
	Create(ctx context.Context, planID int64, dryRun bool) (*models.Run, error)
	Finish(ctx context.Context, runID int64, status models.RunStatus, results models.RunResults) error
	Get(ctx context.Context, id int64) (*models.Run, error)
	CreateItem(ctx context.Context, runID, planItemID int64) (*models.RunItem, error)
	UpdateItem(ctx context.Context, item *models.RunItem) error
}

// Clients are the external services touched by a run. Any may be nil.
type Clients struct {
	Torrents TorrentRemover
	Radarr   MovieDeleter
	Sonarr   SeriesDeleter
	Library  LibraryRefresher
}

// RunObserver is notified after every finished run.
type RunObserver interface {
	RunFinished(run *models.Run, deletedBytes int64)
}

type Service struct {
	plans    PlanStore
	runs     RunStore
	clients  Clients
	dryRun   bool
	observer RunObserver
	now      func() time.Time
}

// NewService returns an executor. dryRunDefault is used by Apply.
func NewService(plans PlanStore, runs RunStore, clients Clients, dryRunDefault bool) *Service {
	return &Service{
		plans:   plans,
		runs:    runs,
		clients: clients,
		dryRun:  dryRunDefault,
		now:     time.Now,
	}
}

// SetObserver registers o to be told about finished runs.
func (s *Service) SetObserver(o RunObserver) {
	s.observer = o
}

// Apply executes the selected items of a DRAFT plan using the default
// dry-run setting.
func (s *Service) Apply(ctx context.Context, planID int64) (*models.Run, error) {
	return s.ApplyWithOptions(ctx, planID, Options{DryRun: s.dryRun})
}

// Options control a single run.
type Options struct {
	// DryRun records every step as done without calling any client. The plan
	// stays DRAFT so it can be applied for real afterwards.
	DryRun bool
}

// ApplyWithOptions executes the selected items of a DRAFT plan. Once the run
// has started it is not interrupted by ctx cancellation.
func (s *Service) ApplyWithOptions(ctx context.Context, planID int64, opts Options) (*models.Run, error) {
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("get plan %d: %w", planID, err)
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	if plan.Status != models.PlanStatusDraft {
		return nil, ErrPlanNotDraft
	}

	items, err := s.plans.SelectedItems(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("list selected items of plan %d: %w", planID, err)
	}
	if len(items) == 0 {
		return nil, ErrNoSelectedItems
	}

	ctx = context.WithoutCancel(ctx)

	if !opts.DryRun {
		// Transition is conditional on DRAFT, so a concurrent apply loses here.
		if err := s.plans.Transition(ctx, planID, models.PlanStatusDraft, models.PlanStatusApplied); err != nil {
			return nil, err
		}
	}

	run, err := s.runs.Create(ctx, planID, opts.DryRun)
	if err != nil {
		if !opts.DryRun {
			// Nothing was touched yet, hand the plan back for another attempt.
			if rbErr := s.plans.Transition(ctx, planID, models.PlanStatusApplied, models.PlanStatusDraft); rbErr != nil {
				log.Error().Err(rbErr).Int64("planID", planID).Msg("executor: failed to restore plan to draft")
			}
		}
		return nil, fmt.Errorf("create run for plan %d: %w", planID, err)
	}

	log.Info().
		Int64("planID", planID).
		Int64("runID", run.ID).
		Int("items", len(items)).
		Bool("dryRun", opts.DryRun).
		Msg("executor: run started")

	results := models.RunResults{Errors: []string{}, DryRun: opts.DryRun}
	var deletedBytes int64

	for _, item := range items {
		runItem, err := s.runs.CreateItem(ctx, run.ID, item.ID)
		if err != nil {
			// Without a run item there is no audit trail; do not touch the item.
			results.FailedCount++
			results.Errors = append(results.Errors, itemError(item, fmt.Errorf("record run item: %w", err)))
			log.Error().Err(err).Int64("planItemID", item.ID).Msg("executor: failed to create run item")
			continue
		}

		stepErr := s.executeItem(ctx, item, runItem, opts.DryRun)
		if stepErr != nil {
			runItem.Status = models.RunItemStatusFailed
			runItem.Error = stepErr.Error()
			results.FailedCount++
			results.Errors = append(results.Errors, itemError(item, stepErr))
			if runItem.ManualReconciliation {
				results.ManualReconciliation = append(results.ManualReconciliation, item.ID)
			}
			log.Warn().
				Err(stepErr).
				Int64("runID", run.ID).
				Int64("planItemID", item.ID).
				Str("title", item.Title).
				Msg("executor: item failed")
		} else {
			runItem.Status = models.RunItemStatusSuccess
			results.SuccessCount++
			if !opts.DryRun {
				deletedBytes += item.SizeBytes
			}
		}

		if err := s.runs.UpdateItem(ctx, runItem); err != nil {
			log.Error().Err(err).Int64("runItemID", runItem.ID).Msg("executor: failed to record run item outcome")
		}
	}

	status := models.RunStatusCompleted
	if results.FailedCount > 0 {
		status = models.RunStatusFailed
	}
	if err := s.runs.Finish(ctx, run.ID, status, results); err != nil {
		return nil, fmt.Errorf("finish run %d: %w", run.ID, err)
	}

	finished, err := s.runs.Get(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("reload run %d: %w", run.ID, err)
	}
	if finished == nil {
		return nil, fmt.Errorf("run %d disappeared", run.ID)
	}

	if s.observer != nil {
		s.observer.RunFinished(finished, deletedBytes)
	}

	log.Info().
		Int64("planID", planID).
		Int64("runID", run.ID).
		Str("status", string(status)).
		Int("success", results.SuccessCount).
		Int("failed", results.FailedCount).
		Msg("executor: run finished")

	return finished, nil
}

func itemError(item *models.PlanItem, err error) string {
	return fmt.Sprintf("Item %d (%s): %s", item.ID, item.Title, err)
}
