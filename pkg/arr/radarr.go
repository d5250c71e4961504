// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package arr

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// Statistics is the statistics block returned with catalog entries.
type Statistics struct {
	SizeOnDisk        int64 `json:"sizeOnDisk"`
	EpisodeFileCount  int   `json:"episodeFileCount,omitempty"`
	TotalEpisodeCount int   `json:"totalEpisodeCount,omitempty"`
}

// Movie is a Radarr catalog entry.
type Movie struct {
	ID         int         `json:"id"`
	Title      string      `json:"title"`
	Year       int         `json:"year"`
	TMDBID     int         `json:"tmdbId"`
	IMDBID     string      `json:"imdbId"`
	Path       string      `json:"path"`
	Monitored  bool        `json:"monitored"`
	HasFile    bool        `json:"hasFile"`
	SizeOnDisk int64       `json:"sizeOnDisk"`
	Tags       []int       `json:"tags"`
	Added      time.Time   `json:"added"`
	Statistics *Statistics `json:"statistics,omitempty"`
}

// Size returns sizeOnDisk, falling back to the statistics block.
func (m Movie) Size() int64 {
	if m.SizeOnDisk > 0 {
		return m.SizeOnDisk
	}
	if m.Statistics != nil {
		return m.Statistics.SizeOnDisk
	}
	return 0
}

// Radarr is a Radarr v3 client.
type Radarr struct {
	*Client
}

func NewRadarr(cfg Config) *Radarr {
	return &Radarr{Client: newClient("radarr", cfg)}
}

// ListMovies returns every movie in the catalog.
func (r *Radarr) ListMovies(ctx context.Context) ([]Movie, error) {
	var movies []Movie
	if err := r.get(ctx, "movie", nil, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// DeleteMovie removes a movie from the catalog.
func (r *Radarr) DeleteMovie(ctx context.Context, id int, deleteFiles, addImportExclusion bool) error {
	query := url.Values{}
	query.Set("deleteFiles", strconv.FormatBool(deleteFiles))
	query.Set("addImportExclusion", strconv.FormatBool(addImportExclusion))
	return r.delete(ctx, "movie/"+strconv.Itoa(id), query)
}
