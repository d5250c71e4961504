// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/autobrr/janitor/internal/dbinterface"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

type RunItemStatus string

const (
	RunItemStatusRunning RunItemStatus = "RUNNING"
	RunItemStatusSuccess RunItemStatus = "SUCCESS"
	RunItemStatusFailed  RunItemStatus = "FAILED"
)

// RunResults aggregates the outcome of a run.
type RunResults struct {
	SuccessCount int      `json:"successCount"`
	FailedCount  int      `json:"failedCount"`
	Errors       []string `json:"errors"`
	// ManualReconciliation lists plan items whose torrent was removed but whose
	// catalog entry could not be deleted.
	ManualReconciliation []int64 `json:"manualReconciliation,omitempty"`
	DryRun               bool    `json:"dryRun,omitempty"`
}

// Run is one application of a plan.
type Run struct {
	ID         int64      `json:"id"`
	PlanID     int64      `json:"planId"`
	Status     RunStatus  `json:"status"`
	DryRun     bool       `json:"dryRun"`
	Results    RunResults `json:"results"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// RunItem records the per-step outcome of one plan item within a run.
type RunItem struct {
	ID                      int64         `json:"id"`
	RunID                   int64         `json:"runId"`
	PlanItemID              int64         `json:"planItemId"`
	Status                  RunItemStatus `json:"status"`
	Error                   string        `json:"error,omitempty"`
	TorrentRemoved          bool          `json:"torrentRemoved"`
	TorrentRemovedAt        *time.Time    `json:"torrentRemovedAt,omitempty"`
	CatalogEntryRemoved     bool          `json:"catalogEntryRemoved"`
	CatalogEntryRemovedAt   *time.Time    `json:"catalogEntryRemovedAt,omitempty"`
	PresentationRefreshed   bool          `json:"presentationRefreshed"`
	PresentationRefreshedAt *time.Time    `json:"presentationRefreshedAt,omitempty"`
	ManualReconciliation    bool          `json:"manualReconciliation"`
	CreatedAt               time.Time     `json:"createdAt"`
}

// RunStore handles database operations for runs and run items.
type RunStore struct {
	db dbinterface.Querier
}

func NewRunStore(db dbinterface.Querier) *RunStore {
	return &RunStore{db: db}
}

// Create inserts a RUNNING run for planID.
func (s *RunStore) Create(ctx context.Context, planID int64, dryRun bool) (*Run, error) {
	results, err := json.Marshal(RunResults{Errors: []string{}, DryRun: dryRun})
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (plan_id, status, dry_run, results) VALUES (?, ?, ?, ?)
	`, planID, string(RunStatusRunning), boolToInt(dryRun), string(results))
	if err != nil {
		if isForeignKeyConstraintError(err) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("run last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

// Finish stores the final status and results of a run.
func (s *RunStore) Finish(ctx context.Context, runID int64, status RunStatus, results RunResults) error {
	if results.Errors == nil {
		results.Errors = []string{}
	}
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal run results: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, results = ?, finished_at = ? WHERE id = ?
	`, string(status), string(resultsJSON), time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", runID, err)
	}
	return nil
}

const runSelect = `SELECT id, plan_id, status, dry_run, results, started_at, finished_at FROM runs`

func scanRun(row rowScanner) (*Run, error) {
	var (
		run         Run
		status      string
		dryRun      int
		resultsJSON sql.NullString
		finishedAt  sql.NullTime
	)
	if err := row.Scan(&run.ID, &run.PlanID, &status, &dryRun, &resultsJSON, &run.StartedAt, &finishedAt); err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)
	run.DryRun = dryRun != 0
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	if resultsJSON.Valid && resultsJSON.String != "" {
		if err := json.Unmarshal([]byte(resultsJSON.String), &run.Results); err != nil {
			return nil, fmt.Errorf("decode run %d results: %w", run.ID, err)
		}
	}
	if run.Results.Errors == nil {
		run.Results.Errors = []string{}
	}
	return &run, nil
}

// Get returns the run with id, or nil when it does not exist.
func (s *RunStore) Get(ctx context.Context, id int64) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, runSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	return run, nil
}

func (s *RunStore) scanRunsQuery(ctx context.Context, label, query string, args ...any) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", label, err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", label, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", label, err)
	}
	return runs, nil
}

// List returns the most recent runs. A non-positive limit returns all runs.
func (s *RunStore) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		return s.scanRunsQuery(ctx, "runs", runSelect+` ORDER BY started_at DESC, id DESC`)
	}
	return s.scanRunsQuery(ctx, "runs", runSelect+` ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
}

// ListByPlan returns every run of a plan, newest first.
func (s *RunStore) ListByPlan(ctx context.Context, planID int64) ([]*Run, error) {
	return s.scanRunsQuery(ctx, "plan runs", runSelect+` WHERE plan_id = ? ORDER BY started_at DESC, id DESC`, planID)
}

// MarkRunningFailed fails runs left RUNNING by a previous process.
func (s *RunStore) MarkRunningFailed(ctx context.Context, message string) (int64, error) {
	results, err := json.Marshal(RunResults{Errors: []string{message}})
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, results = ?, finished_at = ? WHERE status = ?
	`, string(RunStatusFailed), string(results), time.Now().UTC(), string(RunStatusRunning))
	if err != nil {
		return 0, fmt.Errorf("fail interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

// CreateItem inserts a RUNNING run item.
func (s *RunStore) CreateItem(ctx context.Context, runID, planItemID int64) (*RunItem, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO run_items (run_id, plan_item_id, status) VALUES (?, ?, ?)
	`, runID, planItemID, string(RunItemStatusRunning))
	if err != nil {
		return nil, fmt.Errorf("insert run item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("run item last insert id: %w", err)
	}

	return &RunItem{
		ID:         id,
		RunID:      runID,
		PlanItemID: planItemID,
		Status:     RunItemStatusRunning,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// UpdateItem writes the status, error and step flags of item.
func (s *RunStore) UpdateItem(ctx context.Context, item *RunItem) error {
	if item == nil {
		return errors.New("run item is nil")
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE run_items SET
			status = ?,
			error = ?,
			torrent_removed = ?,
			torrent_removed_at = ?,
			catalog_entry_removed = ?,
			catalog_entry_removed_at = ?,
			presentation_refreshed = ?,
			presentation_refreshed_at = ?,
			manual_reconciliation = ?
		WHERE id = ?
	`,
		string(item.Status),
		nullString(item.Error),
		boolToInt(item.TorrentRemoved),
		nullTime(item.TorrentRemovedAt),
		boolToInt(item.CatalogEntryRemoved),
		nullTime(item.CatalogEntryRemovedAt),
		boolToInt(item.PresentationRefreshed),
		nullTime(item.PresentationRefreshedAt),
		boolToInt(item.ManualReconciliation),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update run item %d: %w", item.ID, err)
	}
	return nil
}

// Items returns the items of a run in execution order.
func (s *RunStore) Items(ctx context.Context, runID int64) ([]*RunItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, plan_item_id, status, error,
		       torrent_removed, torrent_removed_at,
		       catalog_entry_removed, catalog_entry_removed_at,
		       presentation_refreshed, presentation_refreshed_at,
		       manual_reconciliation, created_at
		FROM run_items
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run items: %w", err)
	}
	defer rows.Close()

	var items []*RunItem
	for rows.Next() {
		var (
			item                                            RunItem
			status                                          string
			errMsg                                          sql.NullString
			torrentRemoved, catalogRemoved, refreshed       int
			manual                                          int
			torrentRemovedAt, catalogRemovedAt, refreshedAt sql.NullTime
		)
		if err := rows.Scan(
			&item.ID,
			&item.RunID,
			&item.PlanItemID,
			&status,
			&errMsg,
			&torrentRemoved,
			&torrentRemovedAt,
			&catalogRemoved,
			&catalogRemovedAt,
			&refreshed,
			&refreshedAt,
			&manual,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan run item row: %w", err)
		}

		item.Status = RunItemStatus(status)
		item.Error = errMsg.String
		item.TorrentRemoved = torrentRemoved != 0
		item.TorrentRemovedAt = timePtr(torrentRemovedAt)
		item.CatalogEntryRemoved = catalogRemoved != 0
		item.CatalogEntryRemovedAt = timePtr(catalogRemovedAt)
		item.PresentationRefreshed = refreshed != 0
		item.PresentationRefreshedAt = timePtr(refreshedAt)
		item.ManualReconciliation = manual != 0
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run item rows: %w", err)
	}
	return items, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
