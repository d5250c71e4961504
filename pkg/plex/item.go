// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package plex

import (
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/janitor/internal/media"
)

type GUID struct {
	ID string `json:"id"`
}

type Part struct {
	File string `json:"file"`
	Size int64  `json:"size"`
}

type Media struct {
	Part []Part `json:"Part"`
}

type Location struct {
	Path string `json:"path"`
}

// Item is a movie, show or episode as returned by the library endpoints.
type Item struct {
	RatingKey        string     `json:"ratingKey"`
	Type             string     `json:"type"`
	Title            string     `json:"title"`
	GrandparentTitle string     `json:"grandparentTitle"`
	Year             int        `json:"year"`
	ParentIndex      int        `json:"parentIndex"`
	Index            int        `json:"index"`
	ViewCount        int        `json:"viewCount"`
	ViewedLeafCount  int        `json:"viewedLeafCount"`
	LastViewedAt     int64      `json:"lastViewedAt"`
	AddedAt          int64      `json:"addedAt"`
	GUIDs            []GUID     `json:"Guid"`
	Media            []Media    `json:"Media"`
	Location         []Location `json:"Location"`
}

// Path returns the first file of a movie or episode, or the first folder of a show.
func (i Item) Path() string {
	for _, m := range i.Media {
		for _, p := range m.Part {
			if p.File != "" {
				return p.File
			}
		}
	}
	for _, l := range i.Location {
		if l.Path != "" {
			return l.Path
		}
	}
	return ""
}

// Size sums the parts of every media version.
func (i Item) Size() int64 {
	var total int64
	for _, m := range i.Media {
		for _, p := range m.Part {
			total += p.Size
		}
	}
	return total
}

// Views returns the play count, falling back to watched episodes for shows.
func (i Item) Views() int {
	if i.ViewCount > 0 {
		return i.ViewCount
	}
	return i.ViewedLeafCount
}

// LastViewed returns the last play time, or nil when never played.
func (i Item) LastViewed() *time.Time {
	return unixPtr(i.LastViewedAt)
}

// Added returns when the item was added to the library.
func (i Item) Added() *time.Time {
	return unixPtr(i.AddedAt)
}

// IDs extracts the external ids from the guid list.
func (i Item) IDs() media.IDs {
	var ids media.IDs
	for _, g := range i.GUIDs {
		scheme, value, ok := strings.Cut(g.ID, "://")
		if !ok {
			continue
		}
		switch strings.ToLower(scheme) {
		case "tmdb":
			if n, err := strconv.Atoi(value); err == nil {
				ids.TMDB = n
			}
		case "tvdb":
			if n, err := strconv.Atoi(value); err == nil {
				ids.TVDB = n
			}
		case "imdb":
			ids.IMDB = value
		}
	}
	return ids
}

func unixPtr(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
