// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/autobrr/janitor/internal/dbinterface"
	"github.com/autobrr/janitor/internal/media"
)

type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "DRAFT"
	PlanStatusApplied   PlanStatus = "APPLIED"
	PlanStatusCancelled PlanStatus = "CANCELLED"
)

var (
	ErrPlanNotFound = errors.New("plan not found")
	ErrPlanNotDraft = errors.New("plan is not a draft")
)

// Plan item metadata keys.
const (
	MetaRadarrID       = "radarr_id"
	MetaSonarrID       = "sonarr_id"
	MetaEpisodeFileID  = "episode_file_id"
	MetaSeriesRef      = "series_ref"
	MetaSeason         = "season"
	MetaEpisode        = "episode"
	MetaPlexRatingKey  = "plex_rating_key"
	MetaRequestID      = "request_id"
	MetaRequestStatus  = "request_status"
	MetaRequestedBy    = "requested_by"
	MetaTags           = "tags"
	MetaMonitored      = "monitored"
	MetaCategories     = "qb_categories"
	MetaTorrentReasons = "qb_match_reasons"
)

// PlanSummary aggregates a plan at creation time.
type PlanSummary struct {
	MoviesCount    int   `json:"moviesCount"`
	SeriesCount    int   `json:"seriesCount"`
	EpisodesCount  int   `json:"episodesCount"`
	TotalSizeBytes int64 `json:"totalSizeBytes"`

	CandidatesCount int      `json:"candidatesCount"`
	ProtectedCount  int      `json:"protectedCount"`
	SkippedCount    int      `json:"skippedCount"`
	KeptCount       int      `json:"keptCount"`
	TruncatedCount  int      `json:"truncatedCount"`
	FailedSources   []string `json:"failedSources,omitempty"`
}

// Plan is a reviewable deletion proposal.
type Plan struct {
	ID            int64       `json:"id"`
	ScanID        string      `json:"scanId,omitempty"`
	Status        PlanStatus  `json:"status"`
	Summary       PlanSummary `json:"summary"`
	ItemCount     int         `json:"itemCount"`
	SelectedCount int         `json:"selectedCount"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// PlanItem is one entity proposed for deletion.
type PlanItem struct {
	ID           int64          `json:"id"`
	PlanID       int64          `json:"planId"`
	Selected     bool           `json:"selected"`
	MediaType    media.Kind     `json:"mediaType"`
	Title        string         `json:"title"`
	Year         int            `json:"year,omitempty"`
	TMDBID       int            `json:"tmdbId,omitempty"`
	TVDBID       int            `json:"tvdbId,omitempty"`
	IMDBID       string         `json:"imdbId,omitempty"`
	Path         string         `json:"path,omitempty"`
	SizeBytes    int64          `json:"sizeBytes"`
	LastViewedAt *time.Time     `json:"lastViewedAt,omitempty"`
	ViewCount    int            `json:"viewCount"`
	NeverWatched bool           `json:"neverWatched"`
	Rule         string         `json:"rule"`
	QBHashes     []string       `json:"qbHashes"`
	Meta         map[string]any `json:"meta"`
}

// MetaInt reads an integer metadata value. Values decoded from JSON arrive as
// float64, values set in memory may be any integer type or a numeric string.
func (i *PlanItem) MetaInt(key string) int {
	switch v := i.Meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// MetaString reads a string metadata value.
func (i *PlanItem) MetaString(key string) string {
	if s, ok := i.Meta[key].(string); ok {
		return s
	}
	return ""
}

// PlanStore handles database operations for plans and their items.
type PlanStore struct {
	db dbinterface.Querier
}

func NewPlanStore(db dbinterface.Querier) *PlanStore {
	return &PlanStore{db: db}
}

const planItemInsertBatch = 100

// Create persists a DRAFT plan with its items. When the store is backed by a
// database that supports transactions the whole plan is written atomically.
func (s *PlanStore) Create(ctx context.Context, scanID string, summary PlanSummary, items []PlanItem) (*Plan, error) {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return nil, fmt.Errorf("marshal plan summary: %w", err)
	}

	var planID int64
	err = s.withTx(ctx, func(q dbinterface.Querier) error {
		res, err := q.ExecContext(ctx, `INSERT INTO plans (scan_id, status, summary) VALUES (?, ?, ?)`,
			nullString(scanID), string(PlanStatusDraft), string(summaryJSON))
		if err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}
		if planID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("plan last insert id: %w", err)
		}
		return insertPlanItems(ctx, q, planID, items)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, planID)
}

func (s *PlanStore) withTx(ctx context.Context, fn func(q dbinterface.Querier) error) error {
	beginner, ok := s.db.(dbinterface.TxBeginner)
	if !ok {
		return fn(s.db)
	}

	tx, err := beginner.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin plan tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit plan tx: %w", err)
	}
	return nil
}

const planItemColumns = 16

func insertPlanItems(ctx context.Context, q dbinterface.Querier, planID int64, items []PlanItem) error {
	for i := 0; i < len(items); i += planItemInsertBatch {
		batch := items[i:min(i+planItemInsertBatch, len(items))]

		query := dbinterface.BuildQueryWithPlaceholders(`
			INSERT INTO plan_items
				(plan_id, selected, media_type, title, year, tmdb_id, tvdb_id, imdb_id, path,
				 size_bytes, last_viewed_at, view_count, never_watched, rule, qb_hashes, meta)
			VALUES %s`, planItemColumns, len(batch))

		args := make([]any, 0, len(batch)*planItemColumns)
		for _, item := range batch {
			hashes := item.QBHashes
			if hashes == nil {
				hashes = []string{}
			}
			hashesJSON, err := json.Marshal(hashes)
			if err != nil {
				return fmt.Errorf("marshal qb hashes for %q: %w", item.Title, err)
			}
			meta := item.Meta
			if meta == nil {
				meta = map[string]any{}
			}
			metaJSON, err := json.Marshal(meta)
			if err != nil {
				return fmt.Errorf("marshal meta for %q: %w", item.Title, err)
			}

			var lastViewed any
			if item.LastViewedAt != nil {
				lastViewed = item.LastViewedAt.UTC()
			}
			var year any
			if item.Year != 0 {
				year = item.Year
			}

			args = append(args,
				planID,
				boolToInt(item.Selected),
				string(item.MediaType),
				item.Title,
				year,
				nullInt(item.TMDBID),
				nullInt(item.TVDBID),
				nullString(item.IMDBID),
				nullString(item.Path),
				item.SizeBytes,
				lastViewed,
				item.ViewCount,
				boolToInt(item.NeverWatched),
				item.Rule,
				string(hashesJSON),
				string(metaJSON),
			)
		}

		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert plan items: %w", err)
		}
	}
	return nil
}

const planSelect = `
	SELECT p.id, p.scan_id, p.status, p.summary, p.created_at, p.updated_at,
	       (SELECT COUNT(*) FROM plan_items i WHERE i.plan_id = p.id),
	       (SELECT COUNT(*) FROM plan_items i WHERE i.plan_id = p.id AND i.selected = 1)
	FROM plans p`

func scanPlan(row rowScanner) (*Plan, error) {
	var (
		p           Plan
		scanID      sql.NullString
		status      string
		summaryJSON sql.NullString
	)
	if err := row.Scan(&p.ID, &scanID, &status, &summaryJSON, &p.CreatedAt, &p.UpdatedAt, &p.ItemCount, &p.SelectedCount); err != nil {
		return nil, err
	}

	p.ScanID = scanID.String
	p.Status = PlanStatus(status)
	if summaryJSON.Valid && summaryJSON.String != "" {
		if err := json.Unmarshal([]byte(summaryJSON.String), &p.Summary); err != nil {
			return nil, fmt.Errorf("decode plan %d summary: %w", p.ID, err)
		}
	}
	return &p, nil
}

// Get returns the plan with id, or nil when it does not exist.
func (s *PlanStore) Get(ctx context.Context, id int64) (*Plan, error) {
	p, err := scanPlan(s.db.QueryRowContext(ctx, planSelect+` WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %d: %w", id, err)
	}
	return p, nil
}

// List returns the most recent plans. A non-positive limit returns all plans.
func (s *PlanStore) List(ctx context.Context, limit int) ([]*Plan, error) {
	query := planSelect + ` ORDER BY p.created_at DESC, p.id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	var plans []*Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plan rows: %w", err)
	}
	return plans, nil
}

// Latest returns the newest plan, or nil when none exist.
func (s *PlanStore) Latest(ctx context.Context) (*Plan, error) {
	plans, err := s.List(ctx, 1)
	if err != nil || len(plans) == 0 {
		return nil, err
	}
	return plans[0], nil
}

const planItemSelect = `
	SELECT id, plan_id, selected, media_type, title, year, tmdb_id, tvdb_id, imdb_id, path,
	       size_bytes, last_viewed_at, view_count, never_watched, rule, qb_hashes, meta
	FROM plan_items`

func scanPlanItem(row rowScanner) (*PlanItem, error) {
	var (
		item       PlanItem
		selected   int
		kind       string
		year       sql.NullInt64
		tmdbID     sql.NullInt64
		tvdbID     sql.NullInt64
		imdbID     sql.NullString
		path       sql.NullString
		lastViewed sql.NullTime
		never      int
		hashesJSON sql.NullString
		metaJSON   sql.NullString
	)

	if err := row.Scan(
		&item.ID,
		&item.PlanID,
		&selected,
		&kind,
		&item.Title,
		&year,
		&tmdbID,
		&tvdbID,
		&imdbID,
		&path,
		&item.SizeBytes,
		&lastViewed,
		&item.ViewCount,
		&never,
		&item.Rule,
		&hashesJSON,
		&metaJSON,
	); err != nil {
		return nil, err
	}

	item.Selected = selected != 0
	item.MediaType = media.Kind(kind)
	item.Year = int(year.Int64)
	item.TMDBID = int(tmdbID.Int64)
	item.TVDBID = int(tvdbID.Int64)
	item.IMDBID = imdbID.String
	item.Path = path.String
	item.NeverWatched = never != 0
	if lastViewed.Valid {
		t := lastViewed.Time
		item.LastViewedAt = &t
	}

	if hashesJSON.Valid && hashesJSON.String != "" {
		if err := json.Unmarshal([]byte(hashesJSON.String), &item.QBHashes); err != nil {
			return nil, fmt.Errorf("decode plan item %d hashes: %w", item.ID, err)
		}
	}
	if item.QBHashes == nil {
		item.QBHashes = []string{}
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &item.Meta); err != nil {
			return nil, fmt.Errorf("decode plan item %d meta: %w", item.ID, err)
		}
	}
	if item.Meta == nil {
		item.Meta = map[string]any{}
	}

	return &item, nil
}

func (s *PlanStore) queryItems(ctx context.Context, label, query string, args ...any) ([]*PlanItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", label, err)
	}
	defer rows.Close()

	var items []*PlanItem
	for rows.Next() {
		item, err := scanPlanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s row: %w", label, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", label, err)
	}
	return items, nil
}

// Items returns every item of a plan in insertion order.
func (s *PlanStore) Items(ctx context.Context, planID int64) ([]*PlanItem, error) {
	return s.queryItems(ctx, "plan items", planItemSelect+` WHERE plan_id = ? ORDER BY id`, planID)
}

// SelectedItems returns the selected items of a plan in insertion order.
func (s *PlanStore) SelectedItems(ctx context.Context, planID int64) ([]*PlanItem, error) {
	return s.queryItems(ctx, "selected plan items", planItemSelect+` WHERE plan_id = ? AND selected = 1 ORDER BY id`, planID)
}

// requireDraft returns ErrPlanNotFound or ErrPlanNotDraft unless the plan is a draft.
func (s *PlanStore) requireDraft(ctx context.Context, planID int64) error {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM plans WHERE id = ?`, planID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPlanNotFound
	}
	if err != nil {
		return fmt.Errorf("get plan %d status: %w", planID, err)
	}
	if PlanStatus(status) != PlanStatusDraft {
		return ErrPlanNotDraft
	}
	return nil
}

// SetItemSelection updates the selection flag of individual items. Item ids
// that do not belong to the plan are ignored.
func (s *PlanStore) SetItemSelection(ctx context.Context, planID int64, selection map[int64]bool) error {
	if err := s.requireDraft(ctx, planID); err != nil {
		return err
	}

	for itemID, selected := range selection {
		if _, err := s.db.ExecContext(ctx, `
			UPDATE plan_items SET selected = ?
			WHERE id = ? AND plan_id = ?
			  AND EXISTS (SELECT 1 FROM plans WHERE id = ? AND status = ?)
		`, boolToInt(selected), itemID, planID, planID, string(PlanStatusDraft)); err != nil {
			return fmt.Errorf("update plan item %d selection: %w", itemID, err)
		}
	}
	return nil
}

// SetAllSelection selects or deselects every item of a draft plan.
func (s *PlanStore) SetAllSelection(ctx context.Context, planID int64, selected bool) error {
	if err := s.requireDraft(ctx, planID); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE plan_items SET selected = ?
		WHERE plan_id = ?
		  AND EXISTS (SELECT 1 FROM plans WHERE id = ? AND status = ?)
	`, boolToInt(selected), planID, planID, string(PlanStatusDraft)); err != nil {
		return fmt.Errorf("update plan %d selection: %w", planID, err)
	}
	return nil
}

// Transition moves a plan from one status to another. It fails with
// ErrPlanNotDraft when the plan is no longer in the from status, which makes
// it usable as a guard against concurrent applies.
func (s *PlanStore) Transition(ctx context.Context, planID int64, from, to PlanStatus) error {
	res, err := s.db.ExecContext(ctx, `UPDATE plans SET status = ? WHERE id = ? AND status = ?`,
		string(to), planID, string(from))
	if err != nil {
		return fmt.Errorf("update plan %d status: %w", planID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM plans WHERE id = ?`, planID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPlanNotFound
	}
	if err != nil {
		return fmt.Errorf("check plan %d: %w", planID, err)
	}
	return ErrPlanNotDraft
}

// Cancel moves a draft plan to CANCELLED.
func (s *PlanStore) Cancel(ctx context.Context, planID int64) error {
	return s.Transition(ctx, planID, PlanStatusDraft, PlanStatusCancelled)
}

// Delete removes a plan together with its items and runs.
func (s *PlanStore) Delete(ctx context.Context, planID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, planID)
	if err != nil {
		return fmt.Errorf("delete plan %d: %w", planID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPlanNotFound
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
