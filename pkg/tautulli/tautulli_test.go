// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package tautulli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGUID(t *testing.T) {
	tests := []struct {
		source string
		guid   string
		want   int
		ok     bool
	}{
		{"tmdb", "tmdb://949", 949, true},
		{"tmdb", "TMDB:949", 949, true},
		{"tvdb", "com.plexapp.agents.thetvdb://81189/1/2?lang=en", 81189, true},
		{"tmdb", "imdb://tt0113277", 0, false},
		{"tmdb", "tmdb://abc", 0, false},
		{"tvdb", "", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseGUID(tt.source, tt.guid)
		assert.Equal(t, tt.ok, ok, tt.guid)
		assert.Equal(t, tt.want, got, tt.guid)
	}
}

const historyJSON = `{"response": {"result": "success", "data": {"data": [
	{"date": 1700000000, "media_type": "movie", "user": "alice", "guids": ["imdb://tt0113277", "tmdb://949"]},
	{"date": "1710000000", "media_type": "movie", "user": "bob", "guids": [{"id": "tmdb://949"}]},
	{"date": 1600000000, "media_type": "movie", "user": "carol", "guids": ["tmdb://949"]},
	{"date": 1700000000, "media_type": "movie", "user": "dave", "guid": "plex://movie/abc"},
	{"date": 1705000000, "media_type": "episode", "user": "erin", "grandparent_guids": ["tvdb://334824"], "guids": ["tvdb://999"], "parent_media_index": "1", "media_index": 2},
	{"date": 1706000000, "media_type": "episode", "user": "frank", "grandparent_guid": "com.plexapp.agents.thetvdb://334824?lang=en", "season_num": 1, "episode_num": 3},
	{"date": 1707000000, "media_type": "episode", "user": "gina", "guids": ["tvdb://334824"]},
	{"date": 1708000000, "media_type": "track", "user": "hank"}
]}}}`

func TestWatchMaps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2", r.URL.Path)
		assert.Equal(t, "get_history", r.URL.Query().Get("cmd"))
		assert.Equal(t, "key", r.URL.Query().Get("apikey"))
		assert.Equal(t, "500", r.URL.Query().Get("length"))
		_, _ = w.Write([]byte(historyJSON))
	}))
	defer srv.Close()

	maps, err := NewClient(Config{Host: srv.URL, APIKey: "key", HistoryLength: 500}).WatchMaps(context.Background())
	require.NoError(t, err)

	heat, ok := maps.Movie(949)
	require.True(t, ok)
	assert.Equal(t, 3, heat.ViewCount)
	assert.Equal(t, "bob", heat.LastUser)
	require.NotNil(t, heat.LastWatchedAt)
	assert.Equal(t, time.Unix(1710000000, 0).UTC(), *heat.LastWatchedAt)

	ep, ok := maps.Episode(334824, 1, 2)
	require.True(t, ok)
	assert.Equal(t, 1, ep.ViewCount)
	assert.Equal(t, "erin", ep.LastUser)

	_, ok = maps.Episode(999, 1, 2)
	assert.False(t, ok)

	series, ok := maps.SeriesStats(334824)
	require.True(t, ok)
	assert.Equal(t, 2, series.ViewCount)
	assert.Equal(t, "frank", series.LastUser)

	assert.Len(t, maps.Movies, 1)
	assert.Len(t, maps.Episodes, 2)
}

func TestDecodeHistoryBareList(t *testing.T) {
	entries, err := decodeHistory([]byte(`[{"date": 1, "media_type": "movie"}]`))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	entries, err = decodeHistory(nil)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHistoryAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response": {"result": "error", "message": "Invalid apikey", "data": {}}}`))
	}))
	defer srv.Close()

	_, err := NewClient(Config{Host: srv.URL}).History(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid apikey")
}

func TestNilWatchMaps(t *testing.T) {
	var maps *WatchMaps
	_, ok := maps.Movie(1)
	assert.False(t, ok)
}

func TestVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "get_tautulli_info", r.URL.Query().Get("cmd"))
		_, _ = w.Write([]byte(`{"response": {"result": "success", "data": {"tautulli_version": "v2.14.3"}}}`))
	}))
	defer srv.Close()

	version, err := NewClient(Config{Host: srv.URL, APIKey: "k"}).Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v2.14.3", version)
}
