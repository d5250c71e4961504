// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package media defines the unified entity that every source record is
// converted into before matching, evaluation and planning.
//
// Entities are plain values. Enrichment helpers return modified copies and
// never mutate their receiver, so a slice of entities can be shared between
// pipeline stages without aliasing surprises.
package media

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// Kind identifies what an entity represents.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindSeries  Kind = "series"
	KindEpisode Kind = "episode"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindMovie, KindSeries, KindEpisode:
		return true
	default:
		return false
	}
}

// IDs holds the external identifiers of a title. Zero / empty means absent.
type IDs struct {
	TMDB int    `json:"tmdb,omitempty"`
	TVDB int    `json:"tvdb,omitempty"`
	IMDB string `json:"imdb,omitempty"`
}

// Empty reports whether no identifier is set.
func (ids IDs) Empty() bool {
	return ids.TMDB == 0 && ids.TVDB == 0 && ids.IMDB == ""
}

// Paths holds the on-disk locations reported by each source.
type Paths struct {
	// Library is the path reported by the library server.
	Library string `json:"library,omitempty"`
	// Catalog is the path owned by the catalog manager and is authoritative.
	Catalog string `json:"catalog,omitempty"`
}

// WatchStats are the viewing statistics of an entity.
type WatchStats struct {
	LastWatchedAt *time.Time `json:"lastWatchedAt,omitempty"`
	ViewCount     int        `json:"viewCount"`
	NeverWatched  bool       `json:"neverWatched"`
	LastUser      string     `json:"lastUser,omitempty"`
}

// Request is an external media request associated with an entity.
type Request struct {
	ID          int       `json:"id"`
	Status      string    `json:"status"`
	RequestedAt time.Time `json:"requestedAt"`
	RequestedBy string    `json:"requestedBy,omitempty"`
}

// Entity is one movie, series or episode reconciled across sources.
type Entity struct {
	Kind  Kind   `json:"kind"`
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`

	IDs   IDs        `json:"ids"`
	Paths Paths      `json:"paths"`
	Watch WatchStats `json:"watch"`

	Request *Request `json:"request,omitempty"`

	TorrentHashes     []string `json:"torrentHashes,omitempty"`
	TorrentCategories []string `json:"torrentCategories,omitempty"`
	Tags              []string `json:"tags,omitempty"`

	Monitored bool       `json:"monitored"`
	SizeBytes int64      `json:"sizeBytes"`
	AddedAt   *time.Time `json:"addedAt,omitempty"`

	// Catalog manager references used when executing deletions.
	RadarrID      int `json:"radarrId,omitempty"`
	SonarrID      int `json:"sonarrId,omitempty"`
	EpisodeFileID int `json:"episodeFileId,omitempty"`

	// Episode placement. SeriesRef links an episode to its parent series
	// (the series' SonarrID) for the series/episode exclusion rule.
	SeriesRef int `json:"seriesRef,omitempty"`
	Season    int `json:"season,omitempty"`
	Episode   int `json:"episode,omitempty"`

	PlexRatingKey string `json:"plexRatingKey,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// Path returns the authoritative path of the entity, falling back to the library path.
func (e Entity) Path() string {
	if e.Paths.Catalog != "" {
		return e.Paths.Catalog
	}
	return e.Paths.Library
}

// Clone returns a deep copy of e.
func (e Entity) Clone() Entity {
	out := e
	out.TorrentHashes = slices.Clone(e.TorrentHashes)
	out.TorrentCategories = slices.Clone(e.TorrentCategories)
	out.Tags = slices.Clone(e.Tags)
	out.Metadata = maps.Clone(e.Metadata)
	if e.Watch.LastWatchedAt != nil {
		t := *e.Watch.LastWatchedAt
		out.Watch.LastWatchedAt = &t
	}
	if e.AddedAt != nil {
		t := *e.AddedAt
		out.AddedAt = &t
	}
	if e.Request != nil {
		r := *e.Request
		out.Request = &r
	}
	return out
}

// Normalize re-derives computed fields. It must be applied after every change
// to watch statistics.
func (e Entity) Normalize() Entity {
	e.Watch.NeverWatched = e.Watch.ViewCount == 0 && e.Watch.LastWatchedAt == nil
	return e
}

// WithWatch returns a copy of e with the given watch statistics applied.
func (e Entity) WithWatch(last *time.Time, viewCount int, user string) Entity {
	out := e.Clone()
	if last != nil {
		t := *last
		out.Watch.LastWatchedAt = &t
	} else {
		out.Watch.LastWatchedAt = nil
	}
	out.Watch.ViewCount = viewCount
	out.Watch.LastUser = user
	return out.Normalize()
}

// WithTorrents returns a copy of e with the torrent hashes and categories unioned in.
func (e Entity) WithTorrents(hashes, categories []string) Entity {
	out := e.Clone()
	out.TorrentHashes = UnionStrings(out.TorrentHashes, hashes)
	out.TorrentCategories = UnionStrings(out.TorrentCategories, categories)
	return out
}

// WithRequest returns a copy of e carrying the given request.
func (e Entity) WithRequest(req *Request) Entity {
	out := e.Clone()
	if req == nil {
		out.Request = nil
		return out
	}
	r := *req
	out.Request = &r
	return out
}

// WithMeta returns a copy of e with key set in its metadata.
func (e Entity) WithMeta(key string, value any) Entity {
	out := e.Clone()
	if out.Metadata == nil {
		out.Metadata = make(map[string]any, 1)
	}
	out.Metadata[key] = value
	return out
}

// MetaString returns a string metadata value or "".
func (e Entity) MetaString(key string) string {
	if e.Metadata == nil {
		return ""
	}
	if s, ok := e.Metadata[key].(string); ok {
		return s
	}
	return ""
}

// HasTag reports whether e carries tag, compared case-insensitively.
func (e Entity) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// UnionStrings appends values from b that are not already in a, preserving order.
// Empty strings are dropped.
func UnionStrings(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, v := range b {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
