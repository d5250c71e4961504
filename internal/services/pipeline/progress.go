// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pipeline

import (
	"slices"
	"sync"
	"time"
)

const (
	maxProgressLogs = 100
	// maxFinishedScans bounds how many finished scans stay queryable.
	maxFinishedScans = 20
)

type ProgressStatus string

const (
	ProgressRunning   ProgressStatus = "running"
	ProgressCompleted ProgressStatus = "completed"
	ProgressFailed    ProgressStatus = "failed"
)

// ProtectedEntry records an entity vetoed by the safety gate.
type ProtectedEntry struct {
	Title  string `json:"title"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Progress is the latest known state of one scan.
type Progress struct {
	ScanID     string           `json:"scanId"`
	Step       string           `json:"step"`
	Message    string           `json:"message"`
	Percent    int              `json:"percent"`
	Current    int              `json:"current"`
	Total      int              `json:"total"`
	Status     ProgressStatus   `json:"status"`
	Error      string           `json:"error,omitempty"`
	PlanID     int64            `json:"planId,omitempty"`
	Protected  []ProtectedEntry `json:"protected,omitempty"`
	Logs       []string         `json:"logs"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
}

// ProgressTracker keeps an overwrite-latest Progress per scan id. At most one
// scan runs at a time.
type ProgressTracker struct {
	mu       sync.RWMutex
	scans    map[string]*Progress
	finished []string
	active   string
	now      func() time.Time
}

func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{scans: make(map[string]*Progress), now: time.Now}
}

// Start registers a running scan. It fails with ErrScanInProgress while
// another scan is running.
func (t *ProgressTracker) Start(scanID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != "" {
		return ErrScanInProgress
	}
	t.active = scanID
	t.scans[scanID] = &Progress{
		ScanID:    scanID,
		Step:      "starting",
		Status:    ProgressRunning,
		Logs:      []string{},
		StartedAt: t.now().UTC(),
	}
	return nil
}

// Running returns the id of the running scan, or "".
func (t *ProgressTracker) Running() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.active
}

func (t *ProgressTracker) update(scanID string, fn func(p *Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.scans[scanID]; ok {
		fn(p)
	}
}

func appendLog(p *Progress, line string) {
	p.Logs = append(p.Logs, line)
	if over := len(p.Logs) - maxProgressLogs; over > 0 {
		p.Logs = slices.Delete(p.Logs, 0, over)
	}
}

// Step moves the scan to a new step and logs its message.
func (t *ProgressTracker) Step(scanID, step, message string, percent int) {
	t.update(scanID, func(p *Progress) {
		p.Step = step
		p.Message = message
		p.Percent = percent
		p.Current, p.Total = 0, 0
		appendLog(p, message)
	})
}

// Count records the position within the current step.
func (t *ProgressTracker) Count(scanID string, current, total int) {
	t.update(scanID, func(p *Progress) {
		p.Current, p.Total = current, total
	})
}

// Log appends a line to the scan log.
func (t *ProgressTracker) Log(scanID, line string) {
	t.update(scanID, func(p *Progress) { appendLog(p, line) })
}

func (t *ProgressTracker) finish(scanID string, fn func(p *Progress)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == scanID {
		t.active = ""
	}
	p, ok := t.scans[scanID]
	if !ok || p.FinishedAt != nil {
		return
	}
	fn(p)
	now := t.now().UTC()
	p.FinishedAt = &now

	t.finished = append(t.finished, scanID)
	for len(t.finished) > maxFinishedScans {
		delete(t.scans, t.finished[0])
		t.finished = t.finished[1:]
	}
}

// Complete marks the scan finished with the plan it produced.
func (t *ProgressTracker) Complete(scanID string, planID int64, protected []ProtectedEntry) {
	t.finish(scanID, func(p *Progress) {
		p.Status = ProgressCompleted
		p.Step = "done"
		p.Percent = 100
		p.PlanID = planID
		p.Protected = protected
		appendLog(p, "scan complete")
	})
}

// Fail marks the scan failed.
func (t *ProgressTracker) Fail(scanID string, err error) {
	t.finish(scanID, func(p *Progress) {
		p.Status = ProgressFailed
		if err != nil {
			p.Error = err.Error()
			appendLog(p, "scan failed: "+err.Error())
		}
	})
}

// Get returns a copy of the progress of scanID.
func (t *ProgressTracker) Get(scanID string) (Progress, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p, ok := t.scans[scanID]
	if !ok {
		return Progress{}, false
	}
	out := *p
	out.Logs = slices.Clone(p.Logs)
	out.Protected = slices.Clone(p.Protected)
	return out, true
}
