// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pipeline

import (
	"fmt"
	"time"

	"github.com/autobrr/janitor/internal/media"
	"github.com/autobrr/janitor/pkg/arr"
	"github.com/autobrr/janitor/pkg/plex"
	"github.com/autobrr/janitor/pkg/tautulli"
)

// Metadata keys set on entities during conversion.
const (
	metaRadarrAdded = "radarr_added"
	metaSonarrAdded = "sonarr_added"
	metaAddedAt     = "added_at"
	metaSeriesTitle = "series_title"
	// MetaProtectedReason is stamped on entities vetoed by the safety gate.
	MetaProtectedReason = "protected_reason"
)

func timeRef(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}

func applyWatch(e media.Entity, stats tautulli.WatchStats, ok bool) media.Entity {
	if !ok {
		return e.Normalize()
	}
	return e.WithWatch(stats.LastWatchedAt, stats.ViewCount, stats.LastUser)
}

// MovieEntity converts a Radarr movie, enriched with ledger stats.
func MovieEntity(m arr.Movie, tags arr.TagTable, watch *tautulli.WatchMaps) media.Entity {
	e := media.Entity{
		Kind:      media.KindMovie,
		Title:     m.Title,
		Year:      m.Year,
		IDs:       media.IDs{TMDB: m.TMDBID, IMDB: m.IMDBID},
		Paths:     media.Paths{Catalog: m.Path},
		Tags:      tags.Labels(m.Tags),
		Monitored: m.Monitored,
		SizeBytes: m.Size(),
		AddedAt:   timeRef(m.Added),
		RadarrID:  m.ID,
	}
	if !m.Added.IsZero() {
		e = e.WithMeta(metaRadarrAdded, m.Added.UTC().Format(time.RFC3339))
	}

	stats, ok := watch.Movie(m.TMDBID)
	return applyWatch(e, stats, ok)
}

// SeriesEntity converts a Sonarr series, enriched with ledger stats.
func SeriesEntity(s arr.Series, tags arr.TagTable, watch *tautulli.WatchMaps) media.Entity {
	e := media.Entity{
		Kind:      media.KindSeries,
		Title:     s.Title,
		Year:      s.Year,
		IDs:       media.IDs{TVDB: s.TVDBID, TMDB: s.TMDBID, IMDB: s.IMDBID},
		Paths:     media.Paths{Catalog: s.Path},
		Tags:      tags.Labels(s.Tags),
		Monitored: s.Monitored,
		SizeBytes: s.Size(),
		AddedAt:   timeRef(s.Added),
		SonarrID:  s.ID,
	}
	if !s.Added.IsZero() {
		e = e.WithMeta(metaSonarrAdded, s.Added.UTC().Format(time.RFC3339))
	}

	stats, ok := watch.SeriesStats(s.TVDBID)
	return applyWatch(e, stats, ok)
}

// EpisodeTitle formats the display title of an episode.
func EpisodeTitle(series string, season, episode int) string {
	return fmt.Sprintf("%s S%02dE%02d", series, season, episode)
}

// EpisodeEntity converts a Sonarr episode. Episodes without a file are not
// deletable and yield ok=false.
func EpisodeEntity(s arr.Series, ep arr.Episode, tags arr.TagTable, watch *tautulli.WatchMaps) (media.Entity, bool) {
	if !ep.HasFile || ep.EpisodeFileID == 0 {
		return media.Entity{}, false
	}

	e := media.Entity{
		Kind:          media.KindEpisode,
		Title:         EpisodeTitle(s.Title, ep.SeasonNumber, ep.EpisodeNumber),
		Year:          s.Year,
		IDs:           media.IDs{TVDB: s.TVDBID, TMDB: s.TMDBID, IMDB: s.IMDBID},
		Tags:          tags.Labels(s.Tags),
		Monitored:     ep.Monitored,
		SonarrID:      s.ID,
		EpisodeFileID: ep.EpisodeFileID,
		SeriesRef:     s.ID,
		Season:        ep.SeasonNumber,
		Episode:       ep.EpisodeNumber,
	}
	e = e.WithMeta(metaSeriesTitle, s.Title)

	if f := ep.EpisodeFile; f != nil {
		e.Paths.Catalog = f.Path
		e.SizeBytes = f.Size
		e.AddedAt = timeRef(f.DateAdded)
		if !f.DateAdded.IsZero() {
			e = e.WithMeta(metaSonarrAdded, f.DateAdded.UTC().Format(time.RFC3339))
		}
	}

	stats, ok := watch.Episode(s.TVDBID, ep.SeasonNumber, ep.EpisodeNumber)
	return applyWatch(e, stats, ok), true
}

// LibraryEntity converts a Plex movie or show. Other item types yield ok=false.
func LibraryEntity(item plex.Item) (media.Entity, bool) {
	var kind media.Kind
	switch item.Type {
	case "movie":
		kind = media.KindMovie
	case "show":
		kind = media.KindSeries
	default:
		return media.Entity{}, false
	}

	e := media.Entity{
		Kind:          kind,
		Title:         item.Title,
		Year:          item.Year,
		IDs:           item.IDs(),
		Paths:         media.Paths{Library: item.Path()},
		SizeBytes:     item.Size(),
		AddedAt:       item.Added(),
		PlexRatingKey: item.RatingKey,
	}
	if added := item.Added(); added != nil {
		e = e.WithMeta(metaAddedAt, added.Format(time.RFC3339))
	}

	return e.WithWatch(item.LastViewed(), item.Views(), ""), true
}
