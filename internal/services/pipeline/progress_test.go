// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTrackerLifecycle(t *testing.T) {
	t.Parallel()

	tracker := NewProgressTracker()
	require.NoError(t, tracker.Start("a"))
	assert.ErrorIs(t, tracker.Start("b"), ErrScanInProgress)
	assert.Equal(t, "a", tracker.Running())

	tracker.Step("a", "fetch", "fetching sources", 5)
	tracker.Count("a", 2, 10)

	p, ok := tracker.Get("a")
	require.True(t, ok)
	assert.Equal(t, "fetch", p.Step)
	assert.Equal(t, 2, p.Current)
	assert.Equal(t, 10, p.Total)
	assert.Equal(t, ProgressRunning, p.Status)

	tracker.Complete("a", 7, nil)
	p, _ = tracker.Get("a")
	assert.Equal(t, ProgressCompleted, p.Status)
	assert.EqualValues(t, 7, p.PlanID)
	require.NotNil(t, p.FinishedAt)
	assert.Empty(t, tracker.Running())

	tracker.Fail("a", errors.New("late"))
	p, _ = tracker.Get("a")
	assert.Equal(t, ProgressCompleted, p.Status, "finished scans are not overwritten")

	require.NoError(t, tracker.Start("b"))
}

func TestProgressLogTailIsCapped(t *testing.T) {
	t.Parallel()

	tracker := NewProgressTracker()
	require.NoError(t, tracker.Start("a"))
	for i := range 150 {
		tracker.Log("a", fmt.Sprintf("line %d", i))
	}

	p, _ := tracker.Get("a")
	require.Len(t, p.Logs, maxProgressLogs)
	assert.Equal(t, "line 50", p.Logs[0])
	assert.Equal(t, "line 149", p.Logs[maxProgressLogs-1])

	p.Logs[0] = "mutated"
	again, _ := tracker.Get("a")
	assert.Equal(t, "line 50", again.Logs[0], "Get returns a copy")
}

func TestProgressEvictsOldScans(t *testing.T) {
	t.Parallel()

	tracker := NewProgressTracker()
	for i := range maxFinishedScans + 5 {
		id := fmt.Sprintf("scan-%d", i)
		require.NoError(t, tracker.Start(id))
		tracker.Complete(id, int64(i), nil)
	}

	_, ok := tracker.Get("scan-0")
	assert.False(t, ok)
	_, ok = tracker.Get(fmt.Sprintf("scan-%d", maxFinishedScans+4))
	assert.True(t, ok)
}
