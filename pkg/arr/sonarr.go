// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package arr

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// Series is a Sonarr catalog entry.
type Series struct {
	ID         int         `json:"id"`
	Title      string      `json:"title"`
	Year       int         `json:"year"`
	TVDBID     int         `json:"tvdbId"`
	TMDBID     int         `json:"tmdbId"`
	IMDBID     string      `json:"imdbId"`
	Path       string      `json:"path"`
	Monitored  bool        `json:"monitored"`
	Tags       []int       `json:"tags"`
	Added      time.Time   `json:"added"`
	Statistics *Statistics `json:"statistics,omitempty"`
}

// Size returns the size on disk reported in the statistics block.
func (s Series) Size() int64 {
	if s.Statistics != nil {
		return s.Statistics.SizeOnDisk
	}
	return 0
}

// EpisodeFile is the file backing an episode.
type EpisodeFile struct {
	ID        int       `json:"id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	DateAdded time.Time `json:"dateAdded"`
}

// Episode is a Sonarr episode.
type Episode struct {
	ID            int          `json:"id"`
	SeriesID      int          `json:"seriesId"`
	TVDBID        int          `json:"tvdbId"`
	EpisodeFileID int          `json:"episodeFileId"`
	SeasonNumber  int          `json:"seasonNumber"`
	EpisodeNumber int          `json:"episodeNumber"`
	Title         string       `json:"title"`
	HasFile       bool         `json:"hasFile"`
	Monitored     bool         `json:"monitored"`
	AirDateUTC    *time.Time   `json:"airDateUtc,omitempty"`
	EpisodeFile   *EpisodeFile `json:"episodeFile,omitempty"`
}

// Sonarr is a Sonarr v3 client.
type Sonarr struct {
	*Client
}

func NewSonarr(cfg Config) *Sonarr {
	return &Sonarr{Client: newClient("sonarr", cfg)}
}

// ListSeries returns every series in the catalog.
func (s *Sonarr) ListSeries(ctx context.Context) ([]Series, error) {
	var series []Series
	if err := s.get(ctx, "series", nil, &series); err != nil {
		return nil, err
	}
	return series, nil
}

// ListEpisodes returns the episodes of a series including their file details.
func (s *Sonarr) ListEpisodes(ctx context.Context, seriesID int) ([]Episode, error) {
	query := url.Values{}
	query.Set("seriesId", strconv.Itoa(seriesID))
	query.Set("includeEpisodeFile", "true")

	var episodes []Episode
	if err := s.get(ctx, "episode", query, &episodes); err != nil {
		return nil, err
	}
	return episodes, nil
}

// DeleteSeries removes a series from the catalog.
func (s *Sonarr) DeleteSeries(ctx context.Context, id int, deleteFiles bool) error {
	query := url.Values{}
	query.Set("deleteFiles", strconv.FormatBool(deleteFiles))
	query.Set("addImportExclusion", "false")
	return s.delete(ctx, "series/"+strconv.Itoa(id), query)
}

// DeleteEpisodeFile removes a single episode file from disk and the catalog.
func (s *Sonarr) DeleteEpisodeFile(ctx context.Context, episodeFileID int) error {
	return s.delete(ctx, "episodefile/"+strconv.Itoa(episodeFileID), nil)
}
