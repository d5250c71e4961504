// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package plex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/janitor/internal/media"
)

const sectionsJSON = `{"MediaContainer":{"size":2,"Directory":[
	{"key":"1","title":"Films","type":"movie"},
	{"key":"2","title":"Series","type":"show"}
]}}`

func newTestServer(t *testing.T, refreshes *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Plex-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(sectionsJSON))
	})
	mux.HandleFunc("/library/sections/1/all", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("includeGuids"))
		_, _ = w.Write([]byte(`{"MediaContainer":{"Metadata":[{
			"ratingKey":"10","type":"movie","title":"Heat","year":1995,
			"viewCount":2,"lastViewedAt":1700000000,"addedAt":1600000000,
			"Guid":[{"id":"imdb://tt0113277"},{"id":"tmdb://949"}],
			"Media":[{"Part":[{"file":"/movies/Heat (1995)/Heat.mkv","size":1024}]}]
		}]}}`))
	})
	mux.HandleFunc("/library/sections/2/all", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"MediaContainer":{"Metadata":[{
			"ratingKey":"20","type":"show","title":"Dark","year":2017,"viewedLeafCount":3,
			"Guid":[{"id":"tvdb://334824"}],
			"Location":[{"path":"/tv/Dark"}]
		}]}}`))
	})
	mux.HandleFunc("/library/metadata/20/allLeaves", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"MediaContainer":{"Metadata":[{
			"ratingKey":"21","type":"episode","title":"Secrets","grandparentTitle":"Dark",
			"parentIndex":1,"index":1,"viewCount":1,
			"Media":[{"Part":[{"file":"/tv/Dark/Season 01/Dark S01E01.mkv","size":512}]}]
		}]}}`))
	})
	mux.HandleFunc("/library/sections/2/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(Config{
		Host:          srv.URL + "/",
		Token:         "secret",
		MoviesLibrary: "films",
		SeriesLibrary: "Series",
	})
}

func TestListMovies(t *testing.T) {
	var refreshes atomic.Int32
	client := newTestClient(newTestServer(t, &refreshes))

	movies, err := client.ListMovies(context.Background())
	require.NoError(t, err)
	require.Len(t, movies, 1)

	heat := movies[0]
	assert.Equal(t, "Heat", heat.Title)
	assert.Equal(t, 1995, heat.Year)
	assert.Equal(t, media.IDs{TMDB: 949, IMDB: "tt0113277"}, heat.IDs())
	assert.Equal(t, "/movies/Heat (1995)/Heat.mkv", heat.Path())
	assert.EqualValues(t, 1024, heat.Size())
	assert.Equal(t, 2, heat.Views())
	require.NotNil(t, heat.LastViewed())
	assert.True(t, heat.LastViewed().Equal(time.Unix(1700000000, 0)))
	require.NotNil(t, heat.Added())
}

func TestListSeriesAndEpisodes(t *testing.T) {
	var refreshes atomic.Int32
	client := newTestClient(newTestServer(t, &refreshes))
	ctx := context.Background()

	shows, err := client.ListSeries(ctx)
	require.NoError(t, err)
	require.Len(t, shows, 1)
	assert.Equal(t, "/tv/Dark", shows[0].Path())
	assert.Equal(t, 334824, shows[0].IDs().TVDB)
	assert.Equal(t, 3, shows[0].Views())
	assert.Nil(t, shows[0].LastViewed())

	episodes, err := client.ListEpisodes(ctx, shows[0].RatingKey)
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	assert.Equal(t, "Dark", episodes[0].GrandparentTitle)
	assert.Equal(t, 1, episodes[0].ParentIndex)
	assert.Equal(t, 1, episodes[0].Index)
}

func TestRefreshSection(t *testing.T) {
	var refreshes atomic.Int32
	client := newTestClient(newTestServer(t, &refreshes))

	require.NoError(t, client.RefreshSection(context.Background(), media.KindEpisode))
	assert.EqualValues(t, 1, refreshes.Load())
}

func TestSectionNotFound(t *testing.T) {
	var refreshes atomic.Int32
	srv := newTestServer(t, &refreshes)
	client := NewClient(Config{Host: srv.URL, Token: "secret", MoviesLibrary: "Movies"})

	_, err := client.ListMovies(context.Background())
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{Host: srv.URL, Token: "bad"})
	_, err := client.Sections(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/identity", r.URL.Path)
		_, _ = w.Write([]byte(`{"MediaContainer":{"size":0,"machineIdentifier":"abc","version":"1.40.2.8395"}}`))
	}))
	defer srv.Close()

	version, err := NewClient(Config{Host: srv.URL, Token: "secret"}).Identity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.40.2.8395", version)
}
