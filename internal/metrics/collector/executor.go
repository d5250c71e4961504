// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package collector

import (
	"github.com/prometheus/client_golang/prometheus"
)

type ExecutorCollector struct {
	DeletedBytesTotal prometheus.Counter
	ItemsTotal        *prometheus.CounterVec
	RunsTotal         *prometheus.CounterVec
}

func NewExecutorCollector(r *prometheus.Registry) *ExecutorCollector {
	m := &ExecutorCollector{
		DeletedBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "janitor",
			Name:      "deleted_bytes_total",
			Help:      "Bytes reclaimed by successful, non dry-run plan items since start",
		}),
		ItemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "janitor",
			Subsystem: "executor",
			Name:      "items_total",
			Help:      "Plan items processed by the executor since start",
		}, []string{"result", "dry_run"}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "janitor",
			Subsystem: "executor",
			Name:      "runs_total",
			Help:      "Runs finished by the executor since start",
		}, []string{"status", "dry_run"}),
	}

	r.MustRegister(m.DeletedBytesTotal)
	r.MustRegister(m.ItemsTotal)
	r.MustRegister(m.RunsTotal)
	return m
}

func dryRunLabel(dryRun bool) string {
	if dryRun {
		return "true"
	}
	return "false"
}

// ObserveRun records a finished run.
func (m *ExecutorCollector) ObserveRun(status string, dryRun bool, succeeded, failed int, deletedBytes int64) {
	label := dryRunLabel(dryRun)
	m.RunsTotal.WithLabelValues(status, label).Inc()
	m.ItemsTotal.WithLabelValues("success", label).Add(float64(succeeded))
	m.ItemsTotal.WithLabelValues("failed", label).Add(float64(failed))
	if !dryRun && deletedBytes > 0 {
		m.DeletedBytesTotal.Add(float64(deletedBytes))
	}
}
