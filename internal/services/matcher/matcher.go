// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package matcher folds records from several sources into one set of unified
// entities. Catalog-manager records seed the set and are authoritative for
// identifiers and paths; library-server records are folded in afterwards.
package matcher

import (
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/media"
	"github.com/autobrr/janitor/pkg/pathcmp"
	"github.com/autobrr/janitor/pkg/stringutils"
)

const (
	// TitleThreshold is the minimum adjusted similarity for a title+year match.
	TitleThreshold = 0.8
	yearBonus      = 0.2
	yearPenalty    = 0.3
)

// Strategy names reported by FindTarget.
const (
	StrategyID    = "id"
	StrategyTitle = "title_year"
	StrategyPath  = "path"
)

// strategy looks for the index of an existing entity matching item, or -1.
type strategy struct {
	name string
	find func(existing []media.Entity, item media.Entity) int
}

var strategies = []strategy{
	{name: StrategyID, find: findByID},
	{name: StrategyTitle, find: findByTitleYear},
	{name: StrategyPath, find: findByPath},
}

// Unify merges primary and secondary records into one deduplicated set.
//
// Primary records are deduplicated by identifier only. Each secondary record is
// matched by identifier, then title+year, then path; the first strategy that
// finds a target wins and the record is merged into it. Unmatched records are
// appended as standalone entities. Inputs are not modified.
func Unify(primary, secondary []media.Entity) []media.Entity {
	unified := make([]media.Entity, 0, len(primary)+len(secondary))

	for _, item := range primary {
		if idx := findByID(unified, item); idx >= 0 {
			unified[idx] = Merge(item, unified[idx])
			continue
		}
		unified = append(unified, item.Clone().Normalize())
	}

	merged := 0
	for _, item := range secondary {
		idx, name := FindTarget(unified, item)
		if idx < 0 {
			unified = append(unified, item.Clone().Normalize())
			continue
		}
		log.Trace().
			Str("title", item.Title).
			Str("target", unified[idx].Title).
			Str("strategy", name).
			Msg("matcher: merged record")
		unified[idx] = Merge(item, unified[idx])
		merged++
	}

	log.Debug().
		Int("primary", len(primary)).
		Int("secondary", len(secondary)).
		Int("merged", merged).
		Int("unified", len(unified)).
		Msg("matcher: unify complete")

	return unified
}

// FindTarget returns the index of the entity in existing that item should be
// merged into and the name of the strategy that matched, or -1.
func FindTarget(existing []media.Entity, item media.Entity) (int, string) {
	for _, s := range strategies {
		if idx := s.find(existing, item); idx >= 0 {
			return idx, s.name
		}
	}
	return -1, ""
}

func findByID(existing []media.Entity, item media.Entity) int {
	if item.IDs.Empty() {
		return -1
	}
	for i, e := range existing {
		if e.Kind != item.Kind {
			continue
		}
		if IDsMatch(item.Kind, e.IDs, item.IDs) {
			return i
		}
	}
	return -1
}

// IDsMatch compares the identifiers appropriate for kind. Only identifiers
// present on both sides are compared.
func IDsMatch(kind media.Kind, a, b media.IDs) bool {
	switch kind {
	case media.KindMovie:
		if a.TMDB != 0 && a.TMDB == b.TMDB {
			return true
		}
	case media.KindSeries, media.KindEpisode:
		if a.TVDB != 0 && a.TVDB == b.TVDB {
			return true
		}
		if a.TMDB != 0 && a.TMDB == b.TMDB {
			return true
		}
	default:
		return false
	}
	return a.IMDB != "" && strings.EqualFold(a.IMDB, b.IMDB)
}

func findByTitleYear(existing []media.Entity, item media.Entity) int {
	title := foldTitle(item.Title)
	if title == "" {
		return -1
	}

	best, bestScore := -1, 0.0
	for i, e := range existing {
		if e.Kind != item.Kind {
			continue
		}
		score := TitleYearScore(title, foldTitle(e.Title), item.Year, e.Year)
		if score >= TitleThreshold && score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

// TitleYearScore returns the title similarity adjusted by the year bonus or penalty.
// Titles are expected to be case-folded already.
func TitleYearScore(a, b string, yearA, yearB int) float64 {
	score := stringutils.SimilarityRatio(a, b)
	if yearsCompatible(yearA, yearB) {
		return score + yearBonus
	}
	return score - yearPenalty
}

func yearsCompatible(a, b int) bool {
	if a == 0 && b == 0 {
		return true
	}
	if a == 0 || b == 0 {
		return false
	}
	diff := a - b
	return diff >= -1 && diff <= 1
}

func foldTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func findByPath(existing []media.Entity, item media.Entity) int {
	p := pathcmp.NormalizePath(item.Path())
	if p == "" {
		return -1
	}
	for i, e := range existing {
		if e.Kind != item.Kind {
			continue
		}
		for _, candidate := range []string{e.Paths.Catalog, e.Paths.Library} {
			if pathcmp.Related(p, pathcmp.NormalizePath(candidate)) {
				return i
			}
		}
	}
	return -1
}

// Merge folds source into target and returns the result. Target identifiers and
// paths win; source only fills gaps. Watch stats take the latest view and the
// highest count, collections are unioned and metadata is shallow-merged with
// source keys winning.
func Merge(source, target media.Entity) media.Entity {
	out := target.Clone()

	if out.IDs.TMDB == 0 {
		out.IDs.TMDB = source.IDs.TMDB
	}
	if out.IDs.TVDB == 0 {
		out.IDs.TVDB = source.IDs.TVDB
	}
	if out.IDs.IMDB == "" {
		out.IDs.IMDB = source.IDs.IMDB
	}
	if out.Paths.Library == "" {
		out.Paths.Library = source.Paths.Library
	}
	if out.Paths.Catalog == "" {
		out.Paths.Catalog = source.Paths.Catalog
	}
	if out.PlexRatingKey == "" {
		out.PlexRatingKey = source.PlexRatingKey
	}
	if out.RadarrID == 0 {
		out.RadarrID = source.RadarrID
	}
	if out.SonarrID == 0 {
		out.SonarrID = source.SonarrID
	}
	if out.Title == "" {
		out.Title = source.Title
	}
	if out.Year == 0 {
		out.Year = source.Year
	}
	if out.SizeBytes == 0 {
		out.SizeBytes = source.SizeBytes
	}
	if out.AddedAt == nil && source.AddedAt != nil {
		t := *source.AddedAt
		out.AddedAt = &t
	}

	if src := source.Watch.LastWatchedAt; src != nil {
		if out.Watch.LastWatchedAt == nil || src.After(*out.Watch.LastWatchedAt) {
			t := *src
			out.Watch.LastWatchedAt = &t
			if source.Watch.LastUser != "" {
				out.Watch.LastUser = source.Watch.LastUser
			}
		}
	}
	out.Watch.ViewCount = max(out.Watch.ViewCount, source.Watch.ViewCount)

	out.TorrentHashes = media.UnionStrings(out.TorrentHashes, source.TorrentHashes)
	out.TorrentCategories = media.UnionStrings(out.TorrentCategories, source.TorrentCategories)
	out.Tags = media.UnionStrings(out.Tags, source.Tags)

	if len(source.Metadata) > 0 {
		if out.Metadata == nil {
			out.Metadata = make(map[string]any, len(source.Metadata))
		}
		for k, v := range source.Metadata {
			out.Metadata[k] = v
		}
	}

	return out.Normalize()
}
