// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/janitor/internal/domain"
	"github.com/autobrr/janitor/internal/models"
	"github.com/autobrr/janitor/internal/services/pipeline"
)

type fakeScanner struct {
	calls int
	err   error
}

func (f *fakeScanner) Scan(context.Context, string) (*models.Plan, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.Plan{ID: 1}, nil
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(domain.SchedulerConfig{Cron: "not a cron"}, &fakeScanner{})
	require.Error(t, err)

	_, err = New(domain.SchedulerConfig{Cron: "0 3 * * *", Timezone: "Mars/Olympus"}, &fakeScanner{})
	require.Error(t, err)

	svc, err := New(domain.SchedulerConfig{Cron: "0 3 * * *", Timezone: "Europe/Paris"}, &fakeScanner{})
	require.NoError(t, err)
	assert.True(t, svc.Next().IsZero())
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	svc, err := New(domain.SchedulerConfig{Cron: "0 3 * * *", Timezone: "UTC"}, &fakeScanner{})
	require.NoError(t, err)

	require.NoError(t, svc.Start(context.Background()))
	require.Error(t, svc.Start(context.Background()))

	next := svc.Next()
	require.False(t, next.IsZero())
	assert.Equal(t, 3, next.Hour())

	svc.Stop()
	assert.True(t, svc.Next().IsZero())
	svc.Stop()
}

func TestTrigger(t *testing.T) {
	t.Parallel()

	scanner := &fakeScanner{}
	svc, err := New(domain.SchedulerConfig{Cron: "@daily"}, scanner)
	require.NoError(t, err)

	svc.trigger()
	assert.Zero(t, scanner.calls, "not started")

	ctx, cancel := context.WithCancel(context.Background())
	svc.ctx = ctx
	svc.trigger()
	assert.Equal(t, 1, scanner.calls)
	last, lastErr := svc.LastRun()
	assert.False(t, last.IsZero())
	assert.NoError(t, lastErr)

	scanner.err = pipeline.ErrScanInProgress
	svc.trigger()
	_, lastErr = svc.LastRun()
	assert.True(t, errors.Is(lastErr, pipeline.ErrScanInProgress))

	cancel()
	svc.trigger()
	assert.Equal(t, 2, scanner.calls, "cancelled context skips the scan")
}
