// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package safety vetoes deletion candidates that are protected by
// configuration, by an external request or by an operator.
package safety

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/media"
	"github.com/autobrr/janitor/internal/models"
	"github.com/autobrr/janitor/pkg/pathcmp"
)

const (
	manualProtection = "Manual protection"
	lookupFailed     = "Protected in DB: lookup failed"
)

// RequestPolicy decides whether an external media request protects an entity.
type RequestPolicy interface {
	IsProtected(e media.Entity) (bool, string)
}

// ProtectionSource lists operator protections.
type ProtectionSource interface {
	List(ctx context.Context) ([]*models.Protection, error)
}

// Options configure a Gate. Nil collaborators disable their check.
type Options struct {
	ExcludedPaths []string
	MovieTags     []string
	SeriesTags    []string
	Categories    []string
	Expressions   []string

	Requests    RequestPolicy
	Protections ProtectionSource
}

type excludedPath struct {
	raw  string
	norm string
}

type rule struct {
	source  string
	program *vm.Program
}

// Gate runs the protection checks in a fixed order; the first hit wins.
type Gate struct {
	excludedPaths []excludedPath
	movieTags     []string
	seriesTags    []string
	categories    []string
	rules         []rule

	requests    RequestPolicy
	protections ProtectionSource
}

// NewGate compiles the protection expressions and returns a Gate.
func NewGate(opts Options) (*Gate, error) {
	g := &Gate{
		movieTags:   nonEmpty(opts.MovieTags),
		seriesTags:  nonEmpty(opts.SeriesTags),
		categories:  nonEmpty(opts.Categories),
		requests:    opts.Requests,
		protections: opts.Protections,
	}

	for _, p := range opts.ExcludedPaths {
		if n := pathcmp.NormalizePath(p); n != "" {
			g.excludedPaths = append(g.excludedPaths, excludedPath{raw: strings.TrimSpace(p), norm: n})
		}
	}

	for _, src := range opts.Expressions {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		program, err := expr.Compile(src, expr.Env(Env{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile protection expression %q: %w", src, err)
		}
		g.rules = append(g.rules, rule{source: src, program: program})
	}

	return g, nil
}

// IsProtected reports whether e must not be deleted and why.
func (g *Gate) IsProtected(ctx context.Context, e media.Entity) (bool, string) {
	entityPath := pathcmp.NormalizePath(e.Path())

	if entityPath != "" {
		for _, excluded := range g.excludedPaths {
			if pathcmp.Related(entityPath, excluded.norm) {
				return true, "Path excluded: " + excluded.raw
			}
		}
	}

	tags := g.seriesTags
	if e.Kind == media.KindMovie {
		tags = g.movieTags
	}
	for _, tag := range e.Tags {
		if containsFold(tags, tag) {
			return true, "Protected tag: " + tag
		}
	}

	for _, category := range e.TorrentCategories {
		if containsFold(g.categories, category) {
			return true, "Protected qB category: " + category
		}
	}

	if g.requests != nil {
		if ok, reason := g.requests.IsProtected(e); ok {
			return true, reason
		}
	}

	if g.protections != nil {
		protections, err := g.protections.List(ctx)
		if err != nil {
			log.Error().Err(err).Str("title", e.Title).Msg("safety: protection lookup failed, treating as protected")
			return true, lookupFailed
		}
		if p := MatchProtection(protections, e); p != nil {
			reason := p.Reason
			if reason == "" {
				reason = manualProtection
			}
			return true, "Protected in DB: " + reason
		}
	}

	if len(g.rules) > 0 {
		env := NewEnv(e)
		for _, r := range g.rules {
			out, err := expr.Run(r.program, env)
			if err != nil {
				log.Warn().Err(err).Str("expr", r.source).Str("title", e.Title).Msg("safety: protection expression failed")
				continue
			}
			if hit, ok := out.(bool); ok && hit {
				return true, "Protected by rule: " + r.source
			}
		}
	}

	return false, ""
}

// MatchProtection returns the first protection covering e, by identifier or
// by path containment in either direction.
func MatchProtection(protections []*models.Protection, e media.Entity) *models.Protection {
	return models.FirstMatch(protections, e.Kind, e.IDs, e.Path())
}

// Env is the environment protection expressions are evaluated against.
type Env struct {
	Title      string
	Year       int
	Kind       string
	SizeBytes  int64
	Tags       []string
	Categories []string
	ViewCount  int
	Monitored  bool
}

// NewEnv builds the expression environment for e.
func NewEnv(e media.Entity) Env {
	return Env{
		Title:      e.Title,
		Year:       e.Year,
		Kind:       string(e.Kind),
		SizeBytes:  e.SizeBytes,
		Tags:       e.Tags,
		Categories: e.TorrentCategories,
		ViewCount:  e.Watch.ViewCount,
		Monitored:  e.Monitored,
	}
}

// ProtectionSnapshot loads protections once and serves the same list for the
// rest of a scan.
type ProtectionSnapshot struct {
	src  ProtectionSource
	once sync.Once
	list []*models.Protection
	err  error
}

func NewProtectionSnapshot(src ProtectionSource) *ProtectionSnapshot {
	return &ProtectionSnapshot{src: src}
}

func (s *ProtectionSnapshot) List(ctx context.Context) ([]*models.Protection, error) {
	s.once.Do(func() {
		s.list, s.err = s.src.List(ctx)
	})
	return s.list, s.err
}

func containsFold(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
