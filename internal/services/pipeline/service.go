// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pipeline turns the state of every configured source into a DRAFT
// deletion plan: fetch, convert, unify, associate torrents, attach requests,
// evaluate retention rules, veto protected entities and persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/domain"
	"github.com/autobrr/janitor/internal/media"
	"github.com/autobrr/janitor/internal/models"
	"github.com/autobrr/janitor/internal/qbittorrent"
	"github.com/autobrr/janitor/internal/services/matcher"
	"github.com/autobrr/janitor/internal/services/rules"
	"github.com/autobrr/janitor/internal/services/safety"
	"github.com/autobrr/janitor/internal/services/torrentmatch"
	"github.com/autobrr/janitor/pkg/overseerr"
)

// ErrScanInProgress is returned when a scan is requested while one is running.
var ErrScanInProgress = errors.New("scan already in progress")

// Config holds the scan policy.
type Config struct {
	Rules domain.RulesConfig

	ExcludedPaths      []string
	MovieTags          []string
	SeriesTags         []string
	ProtectCategories  []string
	ProtectExpressions []string

	// MaxItemsPerScan caps the number of plan items. 0 means unlimited.
	MaxItemsPerScan        int
	ParallelFetch          bool
	TorrentYearFromRelease bool
}

// ConfigFromDomain extracts the scan policy from the application config.
func ConfigFromDomain(cfg *domain.Config) Config {
	return Config{
		Rules:                  cfg.Rules,
		ExcludedPaths:          cfg.Safety.ExcludedPaths,
		MovieTags:              cfg.Radarr.ProtectedTags,
		SeriesTags:             cfg.Sonarr.ProtectedTags,
		ProtectCategories:      cfg.QBittorrent.ProtectCategories,
		ProtectExpressions:     cfg.Safety.ProtectExpressions,
		MaxItemsPerScan:        cfg.App.MaxItemsPerScan,
		ParallelFetch:          cfg.App.ParallelFetch,
		TorrentYearFromRelease: cfg.QBittorrent.TorrentYearFromRelease,
	}
}

// PlanCreator persists a plan with its items.
type PlanCreator interface {
	Create(ctx context.Context, scanID string, summary models.PlanSummary, items []models.PlanItem) (*models.Plan, error)
}

type Service struct {
	cfg         Config
	sources     Sources
	plans       PlanCreator
	protections safety.ProtectionSource
	requests    safety.RequestPolicy

	rules      *rules.Engine
	associator *torrentmatch.Associator
	progress   *ProgressTracker
	now        func() time.Time
}

// NewService validates the protection expressions and returns a Service.
// protections and requests may be nil.
func NewService(cfg Config, sources Sources, plans PlanCreator, protections safety.ProtectionSource, requests safety.RequestPolicy) (*Service, error) {
	s := &Service{
		cfg:         cfg,
		sources:     sources,
		plans:       plans,
		protections: protections,
		requests:    requests,
		rules:       rules.New(cfg.Rules),
		associator:  torrentmatch.New(torrentmatch.Options{YearFromRelease: cfg.TorrentYearFromRelease}),
		progress:    NewProgressTracker(),
		now:         time.Now,
	}

	if _, err := s.newGate(); err != nil {
		return nil, err
	}
	return s, nil
}

// newGate builds a gate with a protection snapshot scoped to one scan.
func (s *Service) newGate() (*safety.Gate, error) {
	opts := safety.Options{
		ExcludedPaths: s.cfg.ExcludedPaths,
		MovieTags:     s.cfg.MovieTags,
		SeriesTags:    s.cfg.SeriesTags,
		Categories:    s.cfg.ProtectCategories,
		Expressions:   s.cfg.ProtectExpressions,
		Requests:      s.requests,
	}
	if s.protections != nil {
		opts.Protections = safety.NewProtectionSnapshot(s.protections)
	}
	return safety.NewGate(opts)
}

// Progress returns the latest progress of scanID.
func (s *Service) Progress(scanID string) (Progress, bool) {
	return s.progress.Get(scanID)
}

// Running returns the id of the running scan, or "".
func (s *Service) Running() string {
	return s.progress.Running()
}

// StartScan registers a scan and runs it in the background. Cancelling ctx
// does not stop the scan.
func (s *Service) StartScan(ctx context.Context) (string, error) {
	scanID := uuid.NewString()
	if err := s.progress.Start(scanID); err != nil {
		return "", err
	}

	go func() {
		_, _ = s.execute(context.WithoutCancel(ctx), scanID)
	}()

	return scanID, nil
}

// Scan runs a full reconciliation and persists the result as a DRAFT plan.
// An empty scanID is replaced by a new uuid.
func (s *Service) Scan(ctx context.Context, scanID string) (*models.Plan, error) {
	if scanID == "" {
		scanID = uuid.NewString()
	}
	if err := s.progress.Start(scanID); err != nil {
		return nil, err
	}
	return s.execute(ctx, scanID)
}

func (s *Service) execute(ctx context.Context, scanID string) (plan *models.Plan, err error) {
	start := time.Now()
	log.Info().Str("scanID", scanID).Msg("pipeline: scan started")

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("scanID", scanID).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("pipeline: scan panicked")
			plan = nil
			err = fmt.Errorf("scan %s panicked: %v", scanID, r)
		}
		if err != nil {
			log.Error().Err(err).Str("scanID", scanID).Msg("pipeline: scan failed")
			s.progress.Fail(scanID, err)
		}
	}()

	plan, protected, err := s.run(ctx, scanID)
	if err != nil {
		return nil, err
	}

	s.progress.Complete(scanID, plan.ID, protected)
	log.Info().
		Str("scanID", scanID).
		Int64("planID", plan.ID).
		Int("items", plan.ItemCount).
		Int64("bytes", plan.Summary.TotalSizeBytes).
		Dur("duration", time.Since(start)).
		Msg("pipeline: scan complete")

	return plan, nil
}

func (s *Service) run(ctx context.Context, scanID string) (*models.Plan, []ProtectedEntry, error) {
	gate, err := s.newGate()
	if err != nil {
		return nil, nil, fmt.Errorf("build safety gate: %w", err)
	}

	s.progress.Step(scanID, "fetch", "fetching sources", 5)
	data := s.fetchAll(ctx, scanID)
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("fetch sources: %w", err)
	}

	s.progress.Step(scanID, "convert", "converting catalog records", 25)
	entities, episodes, skipped := s.convert(ctx, scanID, data)

	s.progress.Step(scanID, "unify", "unifying library records", 45)
	library := make([]media.Entity, 0, len(data.libMovies)+len(data.libSeries))
	for _, item := range slices.Concat(data.libMovies, data.libSeries) {
		if e, ok := LibraryEntity(item); ok {
			library = append(library, e)
		}
	}
	entities = matcher.Unify(entities, library)

	s.progress.Step(scanID, "associate", "associating torrents", 60)
	torrents := qbittorrent.ForMatching(data.torrents)
	s.associate(entities, torrents)
	s.associate(episodes, torrents)

	s.progress.Step(scanID, "requests", "attaching requests", 70)
	index := overseerr.NewIndex(data.requests)
	attachRequests(entities, index)
	attachRequests(episodes, index)

	s.progress.Step(scanID, "evaluate", "evaluating retention rules", 80)
	now := s.now()
	selection := s.rules.SelectCandidates(entities, episodes, now)

	s.progress.Step(scanID, "protect", "applying safety checks", 90)
	approved, protected := s.applyGate(ctx, scanID, gate, selection.Candidates)

	truncated := 0
	if limit := s.cfg.MaxItemsPerScan; limit > 0 && len(approved) > limit {
		truncated = len(approved) - limit
		approved = approved[:limit]
		log.Info().Int("limit", limit).Int("dropped", truncated).Msg("pipeline: candidate cap reached")
	}

	s.progress.Step(scanID, "persist", "saving plan", 95)
	summary := models.PlanSummary{
		CandidatesCount: len(selection.Candidates),
		ProtectedCount:  len(protected),
		SkippedCount:    selection.Skipped + skipped,
		KeptCount:       selection.Kept,
		TruncatedCount:  truncated,
		FailedSources:   sortedUnique(data.failed),
	}
	items := make([]models.PlanItem, 0, len(approved))
	for _, c := range approved {
		item := PlanItemFromCandidate(c)
		switch item.MediaType {
		case media.KindMovie:
			summary.MoviesCount++
		case media.KindSeries:
			summary.SeriesCount++
		case media.KindEpisode:
			summary.EpisodesCount++
		}
		summary.TotalSizeBytes += item.SizeBytes
		items = append(items, item)
	}

	plan, err := s.plans.Create(ctx, scanID, summary, items)
	if err != nil {
		return nil, nil, fmt.Errorf("create plan: %w", err)
	}
	return plan, protected, nil
}

// convert builds catalog entities and episodes. Series whose episodes could
// not be listed are left out entirely and counted as skipped, so a failed
// episode fetch can never promote the whole series to a candidate.
func (s *Service) convert(ctx context.Context, scanID string, data *fetched) ([]media.Entity, []media.Entity, int) {
	entities := make([]media.Entity, 0, len(data.movies)+len(data.series))
	for _, m := range data.movies {
		entities = append(entities, MovieEntity(m, data.movieTags, data.watch))
	}

	var (
		episodes []media.Entity
		skipped  int
	)
	for i, series := range data.series {
		s.progress.Count(scanID, i+1, len(data.series))

		eps, err := s.sources.Sonarr.ListEpisodes(ctx, series.ID)
		if err != nil {
			log.Warn().Err(err).Int("seriesID", series.ID).Str("title", series.Title).Msg("pipeline: failed to list episodes, skipping series")
			s.progress.Log(scanID, "skipping "+series.Title+": episodes unavailable")
			skipped++
			continue
		}

		entities = append(entities, SeriesEntity(series, data.seriesTags, data.watch))
		for _, ep := range eps {
			if e, ok := EpisodeEntity(series, ep, data.seriesTags, data.watch); ok {
				episodes = append(episodes, e)
			}
		}
	}

	log.Debug().
		Int("movies", len(data.movies)).
		Int("series", len(data.series)).
		Int("episodes", len(episodes)).
		Msg("pipeline: converted catalog records")

	return entities, episodes, skipped
}

func (s *Service) associate(arena []media.Entity, torrents []torrentmatch.Torrent) {
	if len(torrents) == 0 {
		return
	}
	for i := range arena {
		matches := s.associator.FindMatches(arena[i].Path(), arena[i].Title, torrents)
		if len(matches) == 0 {
			continue
		}
		reasons := make([]string, 0, len(matches))
		for _, m := range matches {
			reasons = append(reasons, m.Hash+":"+m.Reason)
		}
		arena[i] = arena[i].
			WithTorrents(matches.Hashes(), matches.Categories()).
			WithMeta(models.MetaTorrentReasons, reasons)
	}
}

func attachRequests(arena []media.Entity, index *overseerr.Index) {
	for i := range arena {
		if req := index.Lookup(arena[i].Kind, arena[i].IDs); req != nil {
			arena[i] = arena[i].WithRequest(req)
		}
	}
}

func (s *Service) applyGate(ctx context.Context, scanID string, gate *safety.Gate, candidates []rules.Candidate) ([]rules.Candidate, []ProtectedEntry) {
	approved := make([]rules.Candidate, 0, len(candidates))
	var protected []ProtectedEntry

	for i, c := range candidates {
		s.progress.Count(scanID, i+1, len(candidates))

		ok, reason := gate.IsProtected(ctx, c.Entity)
		if !ok {
			approved = append(approved, c)
			continue
		}

		c.Entity = c.Entity.WithMeta(MetaProtectedReason, reason)
		protected = append(protected, ProtectedEntry{Title: c.Entity.Title, Kind: string(c.Entity.Kind), Reason: reason})
		log.Debug().Str("title", c.Entity.Title).Str("reason", reason).Msg("pipeline: candidate protected")
	}

	return approved, protected
}

func sortedUnique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
