// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tautulli

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// WatchStats are the aggregated plays of one title.
type WatchStats struct {
	LastWatchedAt *time.Time
	ViewCount     int
	LastUser      string
}

func (s WatchStats) add(at *time.Time, user string) WatchStats {
	s.ViewCount++
	if at != nil && (s.LastWatchedAt == nil || at.After(*s.LastWatchedAt)) {
		t := *at
		s.LastWatchedAt = &t
		s.LastUser = user
	}
	return s
}

// EpisodeKey identifies an episode by series TVDB id, season and number.
type EpisodeKey struct {
	TVDB    int
	Season  int
	Episode int
}

// WatchMaps index watch statistics by external id.
type WatchMaps struct {
	Movies   map[int]WatchStats
	Episodes map[EpisodeKey]WatchStats
	Series   map[int]WatchStats
}

// Movie returns the stats of a movie by TMDB id.
func (m *WatchMaps) Movie(tmdbID int) (WatchStats, bool) {
	if m == nil || tmdbID == 0 {
		return WatchStats{}, false
	}
	s, ok := m.Movies[tmdbID]
	return s, ok
}

// Episode returns the stats of an episode.
func (m *WatchMaps) Episode(tvdbID, season, episode int) (WatchStats, bool) {
	if m == nil || tvdbID == 0 {
		return WatchStats{}, false
	}
	s, ok := m.Episodes[EpisodeKey{TVDB: tvdbID, Season: season, Episode: episode}]
	return s, ok
}

// SeriesStats returns the aggregated stats of a series by TVDB id.
func (m *WatchMaps) SeriesStats(tvdbID int) (WatchStats, bool) {
	if m == nil || tvdbID == 0 {
		return WatchStats{}, false
	}
	s, ok := m.Series[tvdbID]
	return s, ok
}

// BuildWatchMaps folds history entries into watch maps. Every entry counts as
// one view; the latest play decides LastWatchedAt and LastUser. Series stats
// sum the views of their episodes.
func BuildWatchMaps(history []HistoryEntry) *WatchMaps {
	maps := &WatchMaps{
		Movies:   make(map[int]WatchStats),
		Episodes: make(map[EpisodeKey]WatchStats),
		Series:   make(map[int]WatchStats),
	}

	var skipped int
	for _, entry := range history {
		at := entry.WatchedAt()

		switch strings.ToLower(entry.MediaType) {
		case "movie", "film":
			id := entry.TMDBID()
			if id == 0 {
				skipped++
				continue
			}
			maps.Movies[id] = maps.Movies[id].add(at, entry.User)

		case "episode", "show":
			id := entry.SeriesTVDBID()
			season, episode, ok := entry.SeasonEpisode()
			if id == 0 || !ok {
				skipped++
				continue
			}
			key := EpisodeKey{TVDB: id, Season: season, Episode: episode}
			maps.Episodes[key] = maps.Episodes[key].add(at, entry.User)
			maps.Series[id] = maps.Series[id].add(at, entry.User)
		}
	}

	log.Debug().
		Int("history", len(history)).
		Int("movies", len(maps.Movies)).
		Int("episodes", len(maps.Episodes)).
		Int("series", len(maps.Series)).
		Int("skipped", skipped).
		Msg("tautulli: watch maps built")

	return maps
}
