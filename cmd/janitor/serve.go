// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/janitor/internal/api"
	"github.com/autobrr/janitor/internal/buildinfo"
	"github.com/autobrr/janitor/internal/metrics"
	"github.com/autobrr/janitor/internal/services/scheduler"
)

const (
	lockFileName    = "janitor.lock"
	shutdownTimeout = 10 * time.Second
)

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, scheduler and metrics server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			lock, err := acquireDataDirLock(cfg.GetDataDir())
			if err != nil {
				return err
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					log.Warn().Err(err).Msg("janitor: failed to release data dir lock")
				}
			}()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg.WatchConfig()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info().Str("version", buildinfo.Version).Str("config", cfg.Path()).Msg("janitor: starting")

			if n, err := a.runs.MarkRunningFailed(ctx, "interrupted by restart"); err != nil {
				log.Error().Err(err).Msg("janitor: failed to close interrupted runs")
			} else if n > 0 {
				log.Warn().Int64("runs", n).Msg("janitor: marked interrupted runs as failed")
			}

			manager := metrics.NewMetricsManager(a.plans, a.runs)
			a.executor.SetObserver(manager)

			current := cfg.Current()

			if current.Scheduler.Enabled {
				sched, err := scheduler.New(current.Scheduler, a.pipeline)
				if err != nil {
					return fmt.Errorf("scheduler: %w", err)
				}
				if err := sched.Start(ctx); err != nil {
					return fmt.Errorf("scheduler: %w", err)
				}
				defer sched.Stop()
				log.Info().Str("cron", current.Scheduler.Cron).Time("next", sched.Next()).Msg("janitor: scheduler enabled")
			}

			server := api.NewServer(&api.Dependencies{
				Config:      cfg,
				Scans:       a.pipeline,
				Plans:       a.plans,
				Runs:        a.runs,
				Protections: a.protections,
				Applier:     a.executor,
				Diagnostics: a.diagnostics,
				Metrics:     manager.GetRegistry(),
			})

			var metricsServer *metrics.Server
			if current.MetricsEnabled {
				metricsServer = metrics.NewMetricsServer(manager, current.MetricsHost, current.MetricsPort, current.MetricsBasicAuthUsers)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(server.ListenAndServe)
			if metricsServer != nil {
				g.Go(metricsServer.ListenAndServe)
			}
			g.Go(func() error {
				<-gctx.Done()
				log.Info().Msg("janitor: shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				var errs []error
				if err := server.Shutdown(shutdownCtx); err != nil {
					errs = append(errs, fmt.Errorf("api shutdown: %w", err))
				}
				if metricsServer != nil {
					if err := metricsServer.Shutdown(shutdownCtx); err != nil {
						errs = append(errs, fmt.Errorf("metrics shutdown: %w", err))
					}
				}
				return errors.Join(errs...)
			})

			return g.Wait()
		},
	}
}

// acquireDataDirLock keeps two serve processes from sharing one database.
func acquireDataDirLock(dataDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	lockPath := filepath.Join(dataDir, lockFileName)
	lock := flock.New(lockPath)

	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("another janitor instance is already running (lock %s)", lockPath)
	}
	return lock, nil
}
