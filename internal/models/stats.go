// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"fmt"

	"github.com/autobrr/janitor/internal/dbinterface"
)

// table is always one of the constants below, never user input.
func countByStatus(ctx context.Context, db dbinterface.Querier, table string) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM `+table+` GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count %s by status: %w", table, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan %s count: %w", table, err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s counts: %w", table, err)
	}
	return counts, nil
}

// CountByStatus returns the number of plans per status.
func (s *PlanStore) CountByStatus(ctx context.Context) (map[PlanStatus]int, error) {
	raw, err := countByStatus(ctx, s.db, "plans")
	if err != nil {
		return nil, err
	}
	out := make(map[PlanStatus]int, len(raw))
	for k, v := range raw {
		out[PlanStatus(k)] = v
	}
	return out, nil
}

// ReclaimableBytes sums the selected items of the newest DRAFT plan.
func (s *PlanStore) ReclaimableBytes(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(pi.size_bytes), 0)
		FROM plan_items pi
		WHERE pi.selected = 1 AND pi.plan_id = (
			SELECT id FROM plans WHERE status = ? ORDER BY created_at DESC, id DESC LIMIT 1
		)
	`, string(PlanStatusDraft)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum reclaimable bytes: %w", err)
	}
	return total, nil
}

// CountByStatus returns the number of runs per status.
func (s *RunStore) CountByStatus(ctx context.Context) (map[RunStatus]int, error) {
	raw, err := countByStatus(ctx, s.db, "runs")
	if err != nil {
		return nil, err
	}
	out := make(map[RunStatus]int, len(raw))
	for k, v := range raw {
		out[RunStatus(k)] = v
	}
	return out, nil
}

// CountItemsByStatus returns the number of run items per status.
func (s *RunStore) CountItemsByStatus(ctx context.Context) (map[RunItemStatus]int, error) {
	raw, err := countByStatus(ctx, s.db, "run_items")
	if err != nil {
		return nil, err
	}
	out := make(map[RunItemStatus]int, len(raw))
	for k, v := range raw {
		out[RunItemStatus(k)] = v
	}
	return out, nil
}
