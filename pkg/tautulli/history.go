// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tautulli

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// HistoryEntry is one row of get_history.
type HistoryEntry struct {
	Date            flexInt  `json:"date"`
	MediaType       string   `json:"media_type"`
	Title           string   `json:"full_title"`
	User            string   `json:"user"`
	RatingKey       flexInt  `json:"rating_key"`
	GUID            string   `json:"guid"`
	GUIDs           guidList `json:"guids"`
	GrandparentGUID string   `json:"grandparent_guid"`
	// GrandparentGUIDs carries the series ids of an episode entry.
	GrandparentGUIDs guidList `json:"grandparent_guids"`
	SeasonNum        *flexInt `json:"season_num"`
	EpisodeNum       *flexInt `json:"episode_num"`
	ParentMediaIndex *flexInt `json:"parent_media_index"`
	MediaIndex       *flexInt `json:"media_index"`
}

// WatchedAt returns the watch time, or nil when the entry has no date.
func (e HistoryEntry) WatchedAt() *time.Time {
	if e.Date <= 0 {
		return nil
	}
	t := time.Unix(int64(e.Date), 0).UTC()
	return &t
}

// TMDBID extracts the TMDB id from the entry guids.
func (e HistoryEntry) TMDBID() int {
	return findID("tmdb", e.GUIDs, e.GUID)
}

// SeriesTVDBID extracts the TVDB id used to key episodes. Grandparent guids
// identify the series and are preferred.
func (e HistoryEntry) SeriesTVDBID() int {
	if id := findID("tvdb", e.GrandparentGUIDs, e.GrandparentGUID); id != 0 {
		return id
	}
	return findID("tvdb", e.GUIDs, e.GUID)
}

// SeasonEpisode returns the season and episode numbers of an episode entry.
func (e HistoryEntry) SeasonEpisode() (int, int, bool) {
	season := firstSet(e.SeasonNum, e.ParentMediaIndex)
	episode := firstSet(e.EpisodeNum, e.MediaIndex)
	if season == nil || episode == nil {
		return 0, 0, false
	}
	return int(*season), int(*episode), true
}

func firstSet(values ...*flexInt) *flexInt {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// ParseGUID extracts the numeric id of source from guids such as
// "tmdb://12345", "tmdb:12345" or "com.plexapp.agents.thetvdb://81189/1/2?lang=en".
func ParseGUID(source, guid string) (int, bool) {
	lower := strings.ToLower(strings.TrimSpace(guid))
	if lower == "" || !strings.Contains(lower, source) {
		return 0, false
	}

	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	tail := lower[strings.LastIndex(lower, ":")+1:]
	tail = strings.Trim(tail, "/")
	if i := strings.Index(tail, "/"); i >= 0 {
		tail = tail[:i]
	}

	id, err := strconv.Atoi(tail)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func findID(source string, guids guidList, single string) int {
	for _, g := range guids {
		if id, ok := ParseGUID(source, g); ok {
			return id
		}
	}
	if id, ok := ParseGUID(source, single); ok {
		return id
	}
	return 0
}

// flexInt decodes numbers that may be encoded as JSON strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Unparseable values are treated as absent.
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}

// guidList decodes guids given either as strings or as {"id": "..."} objects.
type guidList []string

func (g *guidList) UnmarshalJSON(b []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		// Not a list; ignore rather than failing the whole history.
		*g = nil
		return nil
	}

	out := make(guidList, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.ID != "" {
			out = append(out, obj.ID)
		}
	}
	*g = out
	return nil
}
