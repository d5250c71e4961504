// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package rules decides whether a unified entity is a deletion candidate.
package rules

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/domain"
	"github.com/autobrr/janitor/internal/media"
)

const day = 24 * time.Hour

// addedMetaKeys are consulted in order when an entity has no AddedAt.
var addedMetaKeys = []string{"added_at", "radarr_added", "sonarr_added"}

// Engine evaluates retention rules.
type Engine struct {
	cfg domain.RulesConfig
}

// New returns an Engine using cfg.
func New(cfg domain.RulesConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the thresholds the engine was built with.
func (e *Engine) Config() domain.RulesConfig {
	return e.cfg
}

// Evaluate reports whether ent is a deletion candidate at now and the tag of
// the rule that fired. Unknown kinds are never candidates.
func (e *Engine) Evaluate(ent media.Entity, now time.Time) (bool, string) {
	switch ent.Kind {
	case media.KindMovie:
		return e.evaluateMovie(ent, now)
	case media.KindSeries:
		return e.evaluateSeries(ent, now)
	case media.KindEpisode:
		return e.evaluateEpisode(ent, now)
	default:
		return false, ""
	}
}

func (e *Engine) evaluateMovie(ent media.Entity, now time.Time) (bool, string) {
	r := e.cfg.Movies

	if ent.Watch.NeverWatched || ent.Watch.ViewCount == 0 {
		added, ok := AddedAt(ent)
		if ok && DaysSince(added, now) >= r.NeverWatchedDays {
			return true, fmt.Sprintf("never_watched_%dd", r.NeverWatchedDays)
		}
		return false, ""
	}

	if r.NeverWatchedOnly {
		return false, ""
	}
	if last := ent.Watch.LastWatchedAt; last != nil && DaysSince(*last, now) >= r.NotWatchedDays {
		return true, fmt.Sprintf("not_watched_%dd", r.NotWatchedDays)
	}
	return false, ""
}

func (e *Engine) evaluateEpisode(ent media.Entity, now time.Time) (bool, string) {
	r := e.cfg.Series

	if ent.Watch.NeverWatched || ent.Watch.ViewCount == 0 {
		added, ok := AddedAt(ent)
		if ok && DaysSince(added, now) >= r.EpisodeNeverWatchedDays {
			return true, fmt.Sprintf("episode_never_watched_%dd", r.EpisodeNeverWatchedDays)
		}
		return false, ""
	}

	if last := ent.Watch.LastWatchedAt; last != nil && DaysSince(*last, now) >= r.EpisodeNotWatchedDays {
		return true, fmt.Sprintf("episode_not_watched_%dd", r.EpisodeNotWatchedDays)
	}
	return false, ""
}

func (e *Engine) evaluateSeries(ent media.Entity, now time.Time) (bool, string) {
	days := e.cfg.Series.InactiveDays
	tag := fmt.Sprintf("series_inactive_%dd", days)

	if last := ent.Watch.LastWatchedAt; last != nil {
		if DaysSince(*last, now) >= days {
			return true, tag
		}
		return false, ""
	}
	if ent.Watch.NeverWatched {
		if added, ok := AddedAt(ent); ok && DaysSince(added, now) >= days {
			return true, tag
		}
	}
	return false, ""
}

// DaysSince returns the number of whole days elapsed between ts and now,
// measured in ts's location. Future timestamps yield a negative count.
func DaysSince(ts, now time.Time) int {
	d := now.In(ts.Location()).Sub(ts)
	if d < 0 {
		return -int((-d) / day)
	}
	return int(d / day)
}

// AddedAt resolves when ent was added, falling back to RFC3339 metadata values.
func AddedAt(ent media.Entity) (time.Time, bool) {
	if ent.AddedAt != nil && !ent.AddedAt.IsZero() {
		return *ent.AddedAt, true
	}
	for _, key := range addedMetaKeys {
		switch v := ent.Metadata[key].(type) {
		case time.Time:
			if !v.IsZero() {
				return v, true
			}
		case string:
			if v == "" {
				continue
			}
			if ts, err := time.Parse(time.RFC3339, v); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// Candidate is an entity selected for deletion together with its rule tag.
type Candidate struct {
	Entity media.Entity
	Rule   string
}

// Selection is the result of SelectCandidates.
type Selection struct {
	Candidates []Candidate
	// Skipped counts entities of an unknown kind.
	Skipped int
	// Kept counts episodes held back by KeepLastEpisodes.
	Kept int
}

// SelectCandidates evaluates entities and episodes in order. Episodes are
// evaluated first; a series is only evaluated when none of its episodes is a
// candidate or kept by KeepLastEpisodes, so a plan never deletes both a series
// and one of its episodes.
// Candidates are returned with entities first, then episodes, each group in
// input order.
func (e *Engine) SelectCandidates(entities, episodes []media.Entity, now time.Time) Selection {
	var sel Selection

	kept := e.keptEpisodes(episodes)

	var episodeCandidates []Candidate
	// Series not evaluated: they have an episode candidate or a kept episode.
	seriesWithCandidates := make(map[int]struct{})
	for i, ep := range episodes {
		if _, ok := kept[i]; ok {
			sel.Kept++
			// Deleting the series would take the kept episodes with it.
			if ep.SeriesRef != 0 {
				seriesWithCandidates[ep.SeriesRef] = struct{}{}
			}
			continue
		}
		ok, rule := e.Evaluate(ep, now)
		if !ok {
			continue
		}
		episodeCandidates = append(episodeCandidates, Candidate{Entity: ep, Rule: rule})
		if ep.SeriesRef != 0 {
			seriesWithCandidates[ep.SeriesRef] = struct{}{}
		}
	}

	for _, ent := range entities {
		if !ent.Kind.Valid() {
			sel.Skipped++
			log.Debug().Str("title", ent.Title).Str("kind", string(ent.Kind)).Msg("rules: skipping unknown kind")
			continue
		}
		if ent.Kind == media.KindSeries && ent.SonarrID != 0 {
			if _, ok := seriesWithCandidates[ent.SonarrID]; ok {
				log.Trace().Str("title", ent.Title).Msg("rules: series has episode candidates, not evaluated")
				continue
			}
		}
		ok, rule := e.Evaluate(ent, now)
		if !ok {
			continue
		}
		sel.Candidates = append(sel.Candidates, Candidate{Entity: ent, Rule: rule})
	}

	sel.Candidates = append(sel.Candidates, episodeCandidates...)

	log.Debug().
		Int("entities", len(entities)).
		Int("episodes", len(episodes)).
		Int("candidates", len(sel.Candidates)).
		Int("skipped", sel.Skipped).
		Int("kept", sel.Kept).
		Msg("rules: selection complete")

	return sel
}

// keptEpisodes returns the indexes of the newest KeepLastEpisodes episodes of
// every series.
func (e *Engine) keptEpisodes(episodes []media.Entity) map[int]struct{} {
	n := e.cfg.Series.KeepLastEpisodes
	if n <= 0 || len(episodes) == 0 {
		return nil
	}

	bySeries := make(map[int][]int)
	for i, ep := range episodes {
		bySeries[ep.SeriesRef] = append(bySeries[ep.SeriesRef], i)
	}

	kept := make(map[int]struct{})
	for _, idxs := range bySeries {
		slices.SortFunc(idxs, func(a, b int) int {
			ea, eb := episodes[a], episodes[b]
			if c := cmp.Compare(eb.Season, ea.Season); c != 0 {
				return c
			}
			return cmp.Compare(eb.Episode, ea.Episode)
		})
		for _, i := range idxs[:min(n, len(idxs))] {
			kept[i] = struct{}{}
		}
	}
	return kept
}
