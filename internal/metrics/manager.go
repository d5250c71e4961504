// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/database"
	"github.com/autobrr/janitor/internal/metrics/collector"
	"github.com/autobrr/janitor/internal/models"
)

type Manager struct {
	registry      *prometheus.Registry
	planCollector *PlanCollector
	Executor      *collector.ExecutorCollector
}

func NewMetricsManager(plans PlanStats, runs RunStats) *Manager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(database.NewMetricsCollector())

	planCollector := NewPlanCollector(plans, runs)
	registry.MustRegister(planCollector)

	log.Debug().Msg("metrics: manager initialized")

	return &Manager{
		registry:      registry,
		planCollector: planCollector,
		Executor:      collector.NewExecutorCollector(registry),
	}
}

func (m *Manager) GetRegistry() *prometheus.Registry {
	return m.registry
}

// RunFinished records a run finished by the executor.
func (m *Manager) RunFinished(run *models.Run, deletedBytes int64) {
	if run == nil {
		return
	}
	m.Executor.ObserveRun(string(run.Status), run.DryRun, run.Results.SuccessCount, run.Results.FailedCount, deletedBytes)
}
