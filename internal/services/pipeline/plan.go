// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pipeline

import (
	"maps"
	"slices"

	"github.com/autobrr/janitor/internal/media"
	"github.com/autobrr/janitor/internal/models"
	"github.com/autobrr/janitor/internal/services/rules"
)

// PlanItemFromCandidate materializes a candidate as a selected plan item.
// Catalog references needed by the executor travel in Meta.
func PlanItemFromCandidate(c rules.Candidate) models.PlanItem {
	e := c.Entity

	// Free-form entity metadata first; the named keys below win.
	meta := make(map[string]any, len(e.Metadata)+8)
	maps.Copy(meta, e.Metadata)
	meta[models.MetaMonitored] = e.Monitored
	if len(e.Tags) > 0 {
		meta[models.MetaTags] = slices.Clone(e.Tags)
	}
	if len(e.TorrentCategories) > 0 {
		meta[models.MetaCategories] = slices.Clone(e.TorrentCategories)
	}
	if e.RadarrID != 0 {
		meta[models.MetaRadarrID] = e.RadarrID
	}
	if e.SonarrID != 0 {
		meta[models.MetaSonarrID] = e.SonarrID
	}
	if e.Kind == media.KindEpisode {
		meta[models.MetaEpisodeFileID] = e.EpisodeFileID
		meta[models.MetaSeriesRef] = e.SeriesRef
		meta[models.MetaSeason] = e.Season
		meta[models.MetaEpisode] = e.Episode
	}
	if e.PlexRatingKey != "" {
		meta[models.MetaPlexRatingKey] = e.PlexRatingKey
	}
	if r := e.Request; r != nil {
		meta[models.MetaRequestID] = r.ID
		meta[models.MetaRequestStatus] = r.Status
		if r.RequestedBy != "" {
			meta[models.MetaRequestedBy] = r.RequestedBy
		}
	}

	item := models.PlanItem{
		Selected:     true,
		MediaType:    e.Kind,
		Title:        e.Title,
		Year:         e.Year,
		TMDBID:       e.IDs.TMDB,
		TVDBID:       e.IDs.TVDB,
		IMDBID:       e.IDs.IMDB,
		Path:         e.Path(),
		SizeBytes:    e.SizeBytes,
		ViewCount:    e.Watch.ViewCount,
		NeverWatched: e.Watch.NeverWatched,
		Rule:         c.Rule,
		QBHashes:     slices.Clone(e.TorrentHashes),
		Meta:         meta,
	}
	if t := e.Watch.LastWatchedAt; t != nil {
		v := *t
		item.LastViewedAt = &v
	}
	return item
}
