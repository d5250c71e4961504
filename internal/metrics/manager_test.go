// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/janitor/internal/models"
)

type fakePlanStats struct {
	counts map[models.PlanStatus]int
	bytes  int64
	err    error
}

func (f fakePlanStats) CountByStatus(context.Context) (map[models.PlanStatus]int, error) {
	return f.counts, f.err
}

func (f fakePlanStats) ReclaimableBytes(context.Context) (int64, error) {
	return f.bytes, f.err
}

type fakeRunStats struct {
	runs  map[models.RunStatus]int
	items map[models.RunItemStatus]int
}

func (f fakeRunStats) CountByStatus(context.Context) (map[models.RunStatus]int, error) {
	return f.runs, nil
}

func (f fakeRunStats) CountItemsByStatus(context.Context) (map[models.RunItemStatus]int, error) {
	return f.items, nil
}

func TestManager_GetRegistry(t *testing.T) {
	manager := NewMetricsManager(nil, nil)

	metricFamilies, err := manager.GetRegistry().Gather()
	require.NoError(t, err)

	foundGoMetrics := false
	foundProcessMetrics := false
	for _, mf := range metricFamilies {
		name := mf.GetName()
		if strings.HasPrefix(name, "go_") {
			foundGoMetrics = true
		}
		if strings.HasPrefix(name, "process_") {
			foundProcessMetrics = true
		}
	}

	assert.True(t, foundGoMetrics)
	if runtime.GOOS == "darwin" {
		assert.False(t, foundProcessMetrics)
	} else {
		assert.True(t, foundProcessMetrics)
	}
}

func TestManager_RegistryIsolation(t *testing.T) {
	manager1 := NewMetricsManager(nil, nil)
	manager2 := NewMetricsManager(nil, nil)

	assert.NotSame(t, manager1.registry, manager2.registry)
	assert.NotSame(t, manager1.planCollector, manager2.planCollector)
}

func TestPlanCollector(t *testing.T) {
	plans := fakePlanStats{
		counts: map[models.PlanStatus]int{models.PlanStatusDraft: 2, models.PlanStatusApplied: 5},
		bytes:  42 << 30,
	}
	runs := fakeRunStats{
		runs:  map[models.RunStatus]int{models.RunStatusCompleted: 4, models.RunStatusFailed: 1},
		items: map[models.RunItemStatus]int{models.RunItemStatusSuccess: 30, models.RunItemStatusFailed: 2},
	}

	c := NewPlanCollector(plans, runs)
	expected := `
# HELP janitor_plans_total Number of stored plans by status
# TYPE janitor_plans_total gauge
janitor_plans_total{status="APPLIED"} 5
janitor_plans_total{status="CANCELLED"} 0
janitor_plans_total{status="DRAFT"} 2
# HELP janitor_reclaimable_bytes Size of the selected items of the newest draft plan
# TYPE janitor_reclaimable_bytes gauge
janitor_reclaimable_bytes 4.5097156608e+10
# HELP janitor_run_items_total Number of stored run items by status
# TYPE janitor_run_items_total gauge
janitor_run_items_total{status="FAILED"} 2
janitor_run_items_total{status="RUNNING"} 0
janitor_run_items_total{status="SUCCESS"} 30
# HELP janitor_runs_total Number of stored runs by status
# TYPE janitor_runs_total gauge
janitor_runs_total{status="COMPLETED"} 4
janitor_runs_total{status="FAILED"} 1
janitor_runs_total{status="RUNNING"} 0
# HELP janitor_stats_scrape_error 1 if reading plan and run statistics failed during the last scrape
# TYPE janitor_stats_scrape_error gauge
janitor_stats_scrape_error 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestPlanCollectorReportsScrapeErrors(t *testing.T) {
	c := NewPlanCollector(fakePlanStats{err: errors.New("database is locked")}, fakeRunStats{})

	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(`
# HELP janitor_stats_scrape_error 1 if reading plan and run statistics failed during the last scrape
# TYPE janitor_stats_scrape_error gauge
janitor_stats_scrape_error 1
`), "janitor_stats_scrape_error"))
}

func TestManager_RunFinished(t *testing.T) {
	manager := NewMetricsManager(nil, nil)

	manager.RunFinished(nil, 100)
	manager.RunFinished(&models.Run{
		Status:  models.RunStatusCompleted,
		Results: models.RunResults{SuccessCount: 2},
	}, 2048)
	manager.RunFinished(&models.Run{
		Status:  models.RunStatusCompleted,
		DryRun:  true,
		Results: models.RunResults{SuccessCount: 2, DryRun: true},
	}, 2048)

	assert.InDelta(t, 2048, testutil.ToFloat64(manager.Executor.DeletedBytesTotal), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(manager.Executor.RunsTotal.WithLabelValues("COMPLETED", "true")), 0)
}
