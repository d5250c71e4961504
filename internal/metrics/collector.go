// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/models"
)

// PlanStats is read on every scrape.
type PlanStats interface {
	CountByStatus(ctx context.Context) (map[models.PlanStatus]int, error)
	ReclaimableBytes(ctx context.Context) (int64, error)
}

type RunStats interface {
	CountByStatus(ctx context.Context) (map[models.RunStatus]int, error)
	CountItemsByStatus(ctx context.Context) (map[models.RunItemStatus]int, error)
}

type PlanCollector struct {
	plans PlanStats
	runs  RunStats

	plansTotalDesc       *prometheus.Desc
	runsTotalDesc        *prometheus.Desc
	runItemsTotalDesc    *prometheus.Desc
	reclaimableBytesDesc *prometheus.Desc
	scrapeErrorDesc      *prometheus.Desc
}

func NewPlanCollector(plans PlanStats, runs RunStats) *PlanCollector {
	return &PlanCollector{
		plans: plans,
		runs:  runs,

		plansTotalDesc: prometheus.NewDesc(
			"janitor_plans_total",
			"Number of stored plans by status",
			[]string{"status"},
			nil,
		),
		runsTotalDesc: prometheus.NewDesc(
			"janitor_runs_total",
			"Number of stored runs by status",
			[]string{"status"},
			nil,
		),
		runItemsTotalDesc: prometheus.NewDesc(
			"janitor_run_items_total",
			"Number of stored run items by status",
			[]string{"status"},
			nil,
		),
		reclaimableBytesDesc: prometheus.NewDesc(
			"janitor_reclaimable_bytes",
			"Size of the selected items of the newest draft plan",
			nil,
			nil,
		),
		scrapeErrorDesc: prometheus.NewDesc(
			"janitor_stats_scrape_error",
			"1 if reading plan and run statistics failed during the last scrape",
			nil,
			nil,
		),
	}
}

func (c *PlanCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.plansTotalDesc
	ch <- c.runsTotalDesc
	ch <- c.runItemsTotalDesc
	ch <- c.reclaimableBytesDesc
	ch <- c.scrapeErrorDesc
}

func (c *PlanCollector) Collect(ch chan<- prometheus.Metric) {
	if c.plans == nil || c.runs == nil {
		log.Debug().Msg("metrics: stores not configured, skipping plan metrics")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	failed := 0.0

	if counts, err := c.plans.CountByStatus(ctx); err != nil {
		log.Error().Err(err).Msg("metrics: failed to count plans")
		failed = 1
	} else {
		for _, status := range []models.PlanStatus{models.PlanStatusDraft, models.PlanStatusApplied, models.PlanStatusCancelled} {
			ch <- prometheus.MustNewConstMetric(c.plansTotalDesc, prometheus.GaugeValue, float64(counts[status]), string(status))
		}
	}

	if counts, err := c.runs.CountByStatus(ctx); err != nil {
		log.Error().Err(err).Msg("metrics: failed to count runs")
		failed = 1
	} else {
		for _, status := range []models.RunStatus{models.RunStatusRunning, models.RunStatusCompleted, models.RunStatusFailed} {
			ch <- prometheus.MustNewConstMetric(c.runsTotalDesc, prometheus.GaugeValue, float64(counts[status]), string(status))
		}
	}

	if counts, err := c.runs.CountItemsByStatus(ctx); err != nil {
		log.Error().Err(err).Msg("metrics: failed to count run items")
		failed = 1
	} else {
		for _, status := range []models.RunItemStatus{models.RunItemStatusRunning, models.RunItemStatusSuccess, models.RunItemStatusFailed} {
			ch <- prometheus.MustNewConstMetric(c.runItemsTotalDesc, prometheus.GaugeValue, float64(counts[status]), string(status))
		}
	}

	if bytes, err := c.plans.ReclaimableBytes(ctx); err != nil {
		log.Error().Err(err).Msg("metrics: failed to sum reclaimable bytes")
		failed = 1
	} else {
		ch <- prometheus.MustNewConstMetric(c.reclaimableBytesDesc, prometheus.GaugeValue, float64(bytes))
	}

	ch <- prometheus.MustNewConstMetric(c.scrapeErrorDesc, prometheus.GaugeValue, failed)
}
