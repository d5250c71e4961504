// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package overseerr

import (
	"fmt"
	"time"

	"github.com/autobrr/janitor/internal/media"
)

// Index resolves the request attached to an entity. When several requests
// target the same title the most recent one wins.
type Index struct {
	movies   map[int]Request
	tvByTVDB map[int]Request
	tvByTMDB map[int]Request
}

func NewIndex(requests []Request) *Index {
	idx := &Index{
		movies:   make(map[int]Request),
		tvByTVDB: make(map[int]Request),
		tvByTMDB: make(map[int]Request),
	}

	put := func(m map[int]Request, id int, r Request) {
		if id == 0 {
			return
		}
		if prev, ok := m[id]; ok && !r.CreatedAt.After(prev.CreatedAt) {
			return
		}
		m[id] = r
	}

	for _, r := range requests {
		switch r.Type {
		case "movie":
			put(idx.movies, r.Media.TMDBID, r)
		case "tv":
			put(idx.tvByTVDB, r.Media.TVDBID, r)
			put(idx.tvByTMDB, r.Media.TMDBID, r)
		}
	}
	return idx
}

// Lookup returns the request matching kind and ids, or nil. Movies match by
// TMDB; series and episodes by TVDB, then TMDB.
func (idx *Index) Lookup(kind media.Kind, ids media.IDs) *media.Request {
	if idx == nil {
		return nil
	}

	var (
		r  Request
		ok bool
	)
	switch kind {
	case media.KindMovie:
		if ids.TMDB != 0 {
			r, ok = idx.movies[ids.TMDB]
		}
	case media.KindSeries, media.KindEpisode:
		if ids.TVDB != 0 {
			r, ok = idx.tvByTVDB[ids.TVDB]
		}
		if !ok && ids.TMDB != 0 {
			r, ok = idx.tvByTMDB[ids.TMDB]
		}
	}
	if !ok {
		return nil
	}

	return &media.Request{
		ID:          r.ID,
		Status:      StatusName(r.Status),
		RequestedAt: r.CreatedAt,
		RequestedBy: r.RequestedBy.Name(),
	}
}

// Policy decides whether a request attached to an entity protects it.
type Policy struct {
	ProtectIfActive bool
	YoungerThanDays int

	now func() time.Time
}

func NewPolicy(protectIfActive bool, youngerThanDays int) *Policy {
	return &Policy{ProtectIfActive: protectIfActive, YoungerThanDays: youngerThanDays, now: time.Now}
}

// IsProtected reports whether e's request protects it and why.
func (p *Policy) IsProtected(e media.Entity) (bool, string) {
	req := e.Request
	if req == nil || req.Status == "" {
		return false, ""
	}

	if p.ProtectIfActive && (req.Status == "pending" || req.Status == "approved") {
		return true, "Overseerr request " + req.Status
	}

	if !req.RequestedAt.IsZero() && p.YoungerThanDays > 0 {
		now := time.Now
		if p.now != nil {
			now = p.now
		}
		age := int(now().Sub(req.RequestedAt) / (24 * time.Hour))
		if age < p.YoungerThanDays {
			return true, fmt.Sprintf("Overseerr request recent (%d days old)", age)
		}
	}

	return false, ""
}
