// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/buildinfo"
	"github.com/autobrr/janitor/internal/config"
	"github.com/autobrr/janitor/internal/database"
	"github.com/autobrr/janitor/internal/domain"
	"github.com/autobrr/janitor/internal/models"
	"github.com/autobrr/janitor/internal/qbittorrent"
	"github.com/autobrr/janitor/internal/services/diagnostics"
	"github.com/autobrr/janitor/internal/services/executor"
	"github.com/autobrr/janitor/internal/services/pipeline"
	"github.com/autobrr/janitor/internal/services/safety"
	"github.com/autobrr/janitor/pkg/arr"
	"github.com/autobrr/janitor/pkg/overseerr"
	"github.com/autobrr/janitor/pkg/plex"
	"github.com/autobrr/janitor/pkg/tautulli"
)

const diagnosticsTimeout = 10 * time.Second

// app holds the wired services shared by serve and the one-shot commands.
type app struct {
	cfg         *config.AppConfig
	db          *database.DB
	plans       *models.PlanStore
	runs        *models.RunStore
	protections *models.ProtectionStore
	pipeline    *pipeline.Service
	executor    *executor.Service
	diagnostics *diagnostics.Service
}

func loadConfig(path string) (*config.AppConfig, error) {
	cfg, err := config.New(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyLogConfig()
	return cfg, nil
}

func openApp(configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

func newApp(cfg *config.AppConfig) (*app, error) {
	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{
		cfg:         cfg,
		db:          db,
		plans:       models.NewPlanStore(db),
		runs:        models.NewRunStore(db),
		protections: models.NewProtectionStore(db),
	}

	current := cfg.Current()
	clients := newServiceClients(current)

	var requests safety.RequestPolicy
	if current.Overseerr.Enabled() {
		requests = overseerr.NewPolicy(current.Overseerr.ProtectIfRequestActive, current.Overseerr.ProtectIfRequestYoungerThanDays)
	}

	a.pipeline, err = pipeline.NewService(pipeline.ConfigFromDomain(&current), clients.sources(), a.plans, a.protections, requests)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	a.executor = executor.NewService(a.plans, a.runs, clients.executorClients(), current.App.DryRunDefault)
	a.diagnostics = diagnostics.NewService(diagnosticsTimeout, clients.targets()...)

	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// serviceClients are the configured collaborators. Unconfigured services stay
// nil.
type serviceClients struct {
	radarr    *arr.Radarr
	sonarr    *arr.Sonarr
	plex      *plex.Client
	tautulli  *tautulli.Client
	overseerr *overseerr.Client
	qbit      *qbittorrent.Client
}

func newServiceClients(cfg domain.Config) serviceClients {
	var c serviceClients

	if cfg.Radarr.Enabled() {
		c.radarr = arr.NewRadarr(arr.Config{Host: cfg.Radarr.URL, APIKey: cfg.Radarr.APIKey, UserAgent: buildinfo.UserAgent})
	}
	if cfg.Sonarr.Enabled() {
		c.sonarr = arr.NewSonarr(arr.Config{Host: cfg.Sonarr.URL, APIKey: cfg.Sonarr.APIKey, UserAgent: buildinfo.UserAgent})
	}
	if cfg.Plex.Enabled() {
		c.plex = plex.NewClient(plex.Config{
			Host:          cfg.Plex.URL,
			Token:         cfg.Plex.Token,
			MoviesLibrary: cfg.Plex.MoviesLibrary,
			SeriesLibrary: cfg.Plex.SeriesLibrary,
		})
	}
	if cfg.Tautulli.Enabled() {
		c.tautulli = tautulli.NewClient(tautulli.Config{
			Host:          cfg.Tautulli.URL,
			APIKey:        cfg.Tautulli.APIKey,
			HistoryLength: cfg.Tautulli.HistoryLength,
		})
	}
	if cfg.Overseerr.Enabled() {
		c.overseerr = overseerr.NewClient(overseerr.Config{Host: cfg.Overseerr.URL, APIKey: cfg.Overseerr.APIKey, UserAgent: buildinfo.UserAgent})
	}
	if cfg.QBittorrent.Enabled() {
		c.qbit = qbittorrent.NewClient(qbittorrent.Config{
			Host:              cfg.QBittorrent.URL,
			Username:          cfg.QBittorrent.Username,
			Password:          cfg.QBittorrent.Password,
			BasicUser:         cfg.QBittorrent.BasicUser,
			BasicPass:         cfg.QBittorrent.BasicPass,
			ProtectCategories: cfg.QBittorrent.ProtectCategories,
		})
	}

	log.Debug().
		Bool("radarr", c.radarr != nil).
		Bool("sonarr", c.sonarr != nil).
		Bool("plex", c.plex != nil).
		Bool("tautulli", c.tautulli != nil).
		Bool("overseerr", c.overseerr != nil).
		Bool("qbittorrent", c.qbit != nil).
		Msg("janitor: configured services")

	return c
}

// sources only sets interfaces for configured clients so that the pipeline
// sees a true nil for the others.
func (c serviceClients) sources() pipeline.Sources {
	var s pipeline.Sources
	if c.radarr != nil {
		s.Radarr = c.radarr
	}
	if c.sonarr != nil {
		s.Sonarr = c.sonarr
	}
	if c.plex != nil {
		s.Library = c.plex
	}
	if c.tautulli != nil {
		s.Ledger = c.tautulli
	}
	if c.overseerr != nil {
		s.Requests = c.overseerr
	}
	if c.qbit != nil {
		s.Torrents = c.qbit
	}
	return s
}

func (c serviceClients) executorClients() executor.Clients {
	var e executor.Clients
	if c.qbit != nil {
		e.Torrents = c.qbit
	}
	if c.radarr != nil {
		e.Radarr = c.radarr
	}
	if c.sonarr != nil {
		e.Sonarr = c.sonarr
	}
	if c.plex != nil {
		e.Library = c.plex
	}
	return e
}

func (c serviceClients) targets() []diagnostics.Target {
	targets := []diagnostics.Target{
		{Name: pipeline.SourceRadarr, MinVersion: "3.0.0"},
		{Name: pipeline.SourceSonarr, MinVersion: "3.0.0"},
		{Name: pipeline.SourcePlex},
		{Name: pipeline.SourceTautulli},
		{Name: pipeline.SourceOverseerr},
		{Name: pipeline.SourceQBittorrent},
	}
	if c.radarr != nil {
		targets[0].Prober = diagnostics.ArrProber(c.radarr)
	}
	if c.sonarr != nil {
		targets[1].Prober = diagnostics.ArrProber(c.sonarr)
	}
	if c.plex != nil {
		targets[2].Prober = diagnostics.ProberFunc(c.plex.Identity)
	}
	if c.tautulli != nil {
		targets[3].Prober = c.tautulli
	}
	if c.overseerr != nil {
		targets[4].Prober = c.overseerr
	}
	if c.qbit != nil {
		targets[5].Prober = diagnostics.ProberFunc(c.qbit.HealthCheck)
	}
	return targets
}
