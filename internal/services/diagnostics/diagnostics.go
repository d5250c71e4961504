// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package diagnostics probes every configured collaborator for reachability
// and version.
package diagnostics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/janitor/pkg/arr"
)

// Prober returns the version reported by a collaborator.
type Prober interface {
	Version(ctx context.Context) (string, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) (string, error)

func (f ProberFunc) Version(ctx context.Context) (string, error) { return f(ctx) }

// ArrStatus adapts an arr client to Prober.
type ArrStatus interface {
	SystemStatus(ctx context.Context) (*arr.SystemStatus, error)
}

func ArrProber(c ArrStatus) Prober {
	return ProberFunc(func(ctx context.Context) (string, error) {
		status, err := c.SystemStatus(ctx)
		if err != nil {
			return "", err
		}
		return status.Version, nil
	})
}

// Target is one collaborator to probe. MinVersion is optional.
type Target struct {
	Name       string
	Prober     Prober
	MinVersion string
}

// Check is the outcome of probing one collaborator.
type Check struct {
	Service   string `json:"service"`
	Enabled   bool   `json:"enabled"`
	OK        bool   `json:"ok"`
	Version   string `json:"version,omitempty"`
	Warning   string `json:"warning,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

type Service struct {
	targets []Target
	timeout time.Duration
}

// NewService returns a service probing targets. A target with a nil Prober is
// reported as disabled.
func NewService(timeout time.Duration, targets ...Target) *Service {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Service{targets: targets, timeout: timeout}
}

// Run probes all targets concurrently and returns the checks sorted by name.
func (s *Service) Run(ctx context.Context) []Check {
	checks := make([]Check, len(s.targets))

	g, gctx := errgroup.WithContext(ctx)
	for i, target := range s.targets {
		if target.Prober == nil {
			checks[i] = Check{Service: target.Name}
			continue
		}

		g.Go(func() error {
			checks[i] = s.probe(gctx, target)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(checks, func(i, j int) bool { return checks[i].Service < checks[j].Service })
	return checks
}

func (s *Service) probe(ctx context.Context, target Target) Check {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	check := Check{Service: target.Name, Enabled: true}

	start := time.Now()
	v, err := target.Prober.Version(ctx)
	check.LatencyMS = time.Since(start).Milliseconds()

	if err != nil {
		check.Error = err.Error()
		log.Warn().Err(err).Str("service", target.Name).Msg("diagnostics: probe failed")
		return check
	}

	check.OK = true
	check.Version = v
	check.Warning = versionWarning(v, target.MinVersion)
	return check
}

func versionWarning(current, minimum string) string {
	if minimum == "" || current == "" {
		return ""
	}

	cur, err := version.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return fmt.Sprintf("unrecognised version %q", current)
	}
	req, err := version.NewVersion(minimum)
	if err != nil {
		return ""
	}
	if cur.LessThan(req) {
		return fmt.Sprintf("version %s is older than the supported minimum %s", current, minimum)
	}
	return ""
}
