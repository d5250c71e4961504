// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scheduler triggers periodic scans. Scheduled scans only produce
// DRAFT plans; applying them always needs an operator.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/domain"
	"github.com/autobrr/janitor/internal/models"
	"github.com/autobrr/janitor/internal/services/pipeline"
)

// Scanner runs one scan.
type Scanner interface {
	Scan(ctx context.Context, scanID string) (*models.Plan, error)
}

type Service struct {
	scanner  Scanner
	cronExpr string
	loc      *time.Location

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	lastRun time.Time
	lastErr error
}

// New validates the cron expression and timezone of cfg.
func New(cfg domain.SchedulerConfig, scanner Scanner) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}
	if _, err := cron.ParseStandard(cfg.Cron); err != nil {
		return nil, fmt.Errorf("scheduler cron %q: %w", cfg.Cron, err)
	}

	return &Service{scanner: scanner, cronExpr: cfg.Cron, loc: loc}, nil
}

// Start registers the scan job and starts the cron runner. Scans triggered
// after ctx is done are skipped.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.cronExpr, s.trigger); err != nil {
		return fmt.Errorf("add scan job: %w", err)
	}

	s.ctx = ctx
	s.cron = c
	c.Start()

	log.Info().Str("cron", s.cronExpr).Str("timezone", s.loc.String()).Time("next", s.nextLocked()).Msg("scheduler: started")
	return nil
}

// Stop stops the runner and waits for a running scan to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	log.Info().Msg("scheduler: stopped")
}

func (s *Service) trigger() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	if ctx == nil || ctx.Err() != nil {
		return
	}

	plan, err := s.scanner.Scan(ctx, "")

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()

	switch {
	case errors.Is(err, pipeline.ErrScanInProgress):
		log.Info().Msg("scheduler: scan already in progress, skipping")
	case err != nil:
		log.Error().Err(err).Msg("scheduler: scheduled scan failed")
	default:
		log.Info().Int64("planID", plan.ID).Int("items", plan.ItemCount).Msg("scheduler: scheduled scan complete")
	}
}

// Next returns the next scheduled run, or the zero time when stopped.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextLocked()
}

func (s *Service) nextLocked() time.Time {
	if s.cron == nil {
		return time.Time{}
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now().In(s.loc))
}

// LastRun returns when the last scheduled scan finished and its error.
func (s *Service) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}
