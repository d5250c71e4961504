// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/janitor/internal/domain"
	"github.com/autobrr/janitor/internal/media"
	"github.com/autobrr/janitor/internal/models"
	"github.com/autobrr/janitor/internal/qbittorrent"
	"github.com/autobrr/janitor/internal/testdb"
	"github.com/autobrr/janitor/pkg/arr"
	"github.com/autobrr/janitor/pkg/overseerr"
	"github.com/autobrr/janitor/pkg/plex"
	"github.com/autobrr/janitor/pkg/tautulli"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time {
	return now.Add(-time.Duration(n) * 24 * time.Hour)
}

type fakeRadarr struct {
	movies []arr.Movie
	tags   arr.TagTable
	err    error
	panic  bool
}

func (f *fakeRadarr) ListMovies(context.Context) ([]arr.Movie, error) {
	if f.panic {
		panic("radarr exploded")
	}
	return f.movies, f.err
}

func (f *fakeRadarr) ListTags(context.Context) (arr.TagTable, error) {
	return f.tags, nil
}

type fakeSonarr struct {
	series      []arr.Series
	episodes    map[int][]arr.Episode
	episodesErr map[int]error
	tags        arr.TagTable
}

func (f *fakeSonarr) ListSeries(context.Context) ([]arr.Series, error) {
	return f.series, nil
}

func (f *fakeSonarr) ListEpisodes(_ context.Context, seriesID int) ([]arr.Episode, error) {
	if err := f.episodesErr[seriesID]; err != nil {
		return nil, err
	}
	return f.episodes[seriesID], nil
}

func (f *fakeSonarr) ListTags(context.Context) (arr.TagTable, error) {
	return f.tags, nil
}

type fakeLibrary struct {
	movies []plex.Item
	series []plex.Item
}

func (f *fakeLibrary) ListMovies(context.Context) ([]plex.Item, error) { return f.movies, nil }
func (f *fakeLibrary) ListSeries(context.Context) ([]plex.Item, error) { return f.series, nil }

type fakeLedger struct {
	maps *tautulli.WatchMaps
	err  error
}

func (f *fakeLedger) WatchMaps(context.Context) (*tautulli.WatchMaps, error) {
	return f.maps, f.err
}

type fakeTorrents struct {
	torrents []qbittorrent.Torrent
}

func (f *fakeTorrents) ListTorrents(context.Context) ([]qbittorrent.Torrent, error) {
	return f.torrents, nil
}

type fakeRequests struct {
	requests []overseerr.Request
}

func (f *fakeRequests) ListRequests(context.Context) ([]overseerr.Request, error) {
	return f.requests, nil
}

type failingPlans struct{}

func (failingPlans) Create(context.Context, string, models.PlanSummary, []models.PlanItem) (*models.Plan, error) {
	return nil, errors.New("disk full")
}

func testConfig() Config {
	return Config{
		Rules: domain.RulesConfig{
			Movies: domain.MovieRules{NeverWatchedDays: 60, NotWatchedDays: 60},
			Series: domain.SeriesRules{EpisodeNotWatchedDays: 60, EpisodeNeverWatchedDays: 60, InactiveDays: 120},
		},
		MovieTags:  []string{"keep"},
		SeriesTags: []string{"keep"},
	}
}

func setupPlans(t *testing.T) *models.PlanStore {
	t.Helper()

	return models.NewPlanStore(testdb.Open(t, "pipeline"))
}

func newTestService(t *testing.T, cfg Config, sources Sources, plans PlanCreator) *Service {
	t.Helper()

	svc, err := NewService(cfg, sources, plans, nil, overseerr.NewPolicy(true, 0))
	require.NoError(t, err)
	svc.now = func() time.Time { return now }
	return svc
}

func TestScanMoviesEndToEnd(t *testing.T) {
	plans := setupPlans(t)
	sources := Sources{
		Radarr: &fakeRadarr{
			tags: arr.TagTable{1: "keep"},
			movies: []arr.Movie{
				{ID: 1, Title: "Heat", Year: 1995, TMDBID: 949, Path: "/movies/Heat (1995)", Tags: []int{1}, Added: daysAgo(90), SizeOnDisk: 100},
				{ID: 2, Title: "Inception", Year: 2010, TMDBID: 27205, Path: "/movies/Inception (2010)", Added: daysAgo(90), SizeOnDisk: 200},
				{ID: 3, Title: "Alien", Year: 1979, TMDBID: 348, Path: "/movies/Alien (1979)", Added: daysAgo(90), SizeOnDisk: 300},
			},
		},
		Library: &fakeLibrary{movies: []plex.Item{{
			RatingKey: "55",
			Type:      "movie",
			Title:     "Inception",
			Year:      2010,
			GUIDs:     []plex.GUID{{ID: "tmdb://27205"}},
		}}},
		Ledger: &fakeLedger{maps: &tautulli.WatchMaps{Movies: map[int]tautulli.WatchStats{}}},
		Torrents: &fakeTorrents{torrents: []qbittorrent.Torrent{
			{Hash: "abc", Name: "Inception (2010)", SavePath: "/movies", Category: "movies"},
		}},
		Requests: &fakeRequests{requests: []overseerr.Request{
			{ID: 9, Status: overseerr.StatusApproved, Type: "movie", CreatedAt: daysAgo(200), Media: overseerr.Media{TMDBID: 348}},
		}},
	}
	svc := newTestService(t, testConfig(), sources, plans)

	plan, err := svc.Scan(context.Background(), "scan-1")
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, models.PlanStatusDraft, plan.Status)
	assert.Equal(t, 1, plan.ItemCount)
	assert.Equal(t, 1, plan.Summary.MoviesCount)
	assert.EqualValues(t, 200, plan.Summary.TotalSizeBytes)
	assert.Equal(t, 3, plan.Summary.CandidatesCount)
	assert.Equal(t, 2, plan.Summary.ProtectedCount)
	assert.Empty(t, plan.Summary.FailedSources)

	items, err := plans.Items(context.Background(), plan.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	inception := items[0]
	assert.Equal(t, "Inception", inception.Title)
	assert.Equal(t, "never_watched_60d", inception.Rule)
	assert.True(t, inception.Selected)
	assert.Equal(t, []string{"abc"}, inception.QBHashes)
	assert.Equal(t, 2, inception.MetaInt(models.MetaRadarrID))
	assert.Equal(t, "55", inception.MetaString(models.MetaPlexRatingKey))

	progress, ok := svc.Progress("scan-1")
	require.True(t, ok)
	assert.Equal(t, ProgressCompleted, progress.Status)
	assert.Equal(t, plan.ID, progress.PlanID)
	assert.Equal(t, 100, progress.Percent)
	assert.ElementsMatch(t, []ProtectedEntry{
		{Title: "Heat", Kind: "movie", Reason: "Protected tag: keep"},
		{Title: "Alien", Kind: "movie", Reason: "Overseerr request approved"},
	}, progress.Protected)
	assert.Empty(t, svc.Running())
}

func TestScanSeriesEpisodeExclusion(t *testing.T) {
	plans := setupPlans(t)
	sources := Sources{
		Sonarr: &fakeSonarr{
			series: []arr.Series{
				{ID: 3, Title: "Dark", Year: 2017, TVDBID: 334824, Path: "/tv/Dark", Added: daysAgo(300)},
				{ID: 4, Title: "Fargo", Year: 2014, TVDBID: 269613, Path: "/tv/Fargo", Added: daysAgo(300)},
			},
			episodes: map[int][]arr.Episode{
				3: {
					{ID: 30, SeriesID: 3, EpisodeFileID: 77, SeasonNumber: 1, EpisodeNumber: 1, HasFile: true,
						EpisodeFile: &arr.EpisodeFile{ID: 77, Path: "/tv/Dark/Season 01/Dark S01E01.mkv", Size: 10, DateAdded: daysAgo(100)}},
					{ID: 31, SeriesID: 3, SeasonNumber: 1, EpisodeNumber: 2, HasFile: false},
				},
			},
		},
	}
	svc := newTestService(t, testConfig(), sources, plans)

	plan, err := svc.Scan(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, plan.ScanID)

	items, err := plans.Items(context.Background(), plan.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byTitle := map[string]*models.PlanItem{}
	for _, item := range items {
		byTitle[item.Title] = item
	}

	require.Contains(t, byTitle, "Dark S01E01")
	assert.NotContains(t, byTitle, "Dark", "series with an episode candidate is not evaluated")
	require.Contains(t, byTitle, "Fargo")

	ep := byTitle["Dark S01E01"]
	assert.Equal(t, media.KindEpisode, ep.MediaType)
	assert.Equal(t, "episode_never_watched_60d", ep.Rule)
	assert.Equal(t, 77, ep.MetaInt(models.MetaEpisodeFileID))
	assert.Equal(t, 3, ep.MetaInt(models.MetaSonarrID))
	assert.Equal(t, 334824, ep.TVDBID)

	assert.Equal(t, "series_inactive_120d", byTitle["Fargo"].Rule)
	assert.Equal(t, 1, plan.Summary.SeriesCount)
	assert.Equal(t, 1, plan.Summary.EpisodesCount)
}

func TestScanEpisodeFetchFailureSkipsSeries(t *testing.T) {
	plans := setupPlans(t)
	sources := Sources{
		Sonarr: &fakeSonarr{
			series:      []arr.Series{{ID: 3, Title: "Dark", TVDBID: 334824, Path: "/tv/Dark", Added: daysAgo(300)}},
			episodesErr: map[int]error{3: errors.New("timeout")},
		},
	}
	svc := newTestService(t, testConfig(), sources, plans)

	plan, err := svc.Scan(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, plan.ItemCount)
	assert.Equal(t, 1, plan.Summary.SkippedCount)
}

func TestScanDegradesFailedSources(t *testing.T) {
	plans := setupPlans(t)

	for _, parallel := range []bool{false, true} {
		cfg := testConfig()
		cfg.ParallelFetch = parallel

		sources := Sources{
			Radarr: &fakeRadarr{err: errors.New("connection refused")},
			Ledger: &fakeLedger{err: errors.New("bad api key")},
			Library: &fakeLibrary{movies: []plex.Item{{
				Type: "movie", Title: "Solaris", Year: 1972, AddedAt: daysAgo(90).Unix(),
			}}},
		}
		svc := newTestService(t, cfg, sources, plans)

		plan, err := svc.Scan(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, []string{SourceRadarr, SourceTautulli}, plan.Summary.FailedSources)
		assert.Equal(t, 1, plan.ItemCount, "library-only records are still evaluated")
	}
}

func TestScanCapsCandidates(t *testing.T) {
	plans := setupPlans(t)
	cfg := testConfig()
	cfg.MaxItemsPerScan = 1

	sources := Sources{Radarr: &fakeRadarr{movies: []arr.Movie{
		{ID: 1, Title: "A", TMDBID: 1, Path: "/movies/A", Added: daysAgo(90)},
		{ID: 2, Title: "B", TMDBID: 2, Path: "/movies/B", Added: daysAgo(90)},
	}}}
	svc := newTestService(t, cfg, sources, plans)

	plan, err := svc.Scan(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, plan.ItemCount)
	assert.Equal(t, 1, plan.Summary.TruncatedCount)
	assert.Equal(t, 2, plan.Summary.CandidatesCount)
}

func TestScanRejectsConcurrentScan(t *testing.T) {
	svc := newTestService(t, testConfig(), Sources{}, setupPlans(t))
	require.NoError(t, svc.progress.Start("other"))

	_, err := svc.Scan(context.Background(), "")
	assert.ErrorIs(t, err, ErrScanInProgress)

	_, err = svc.StartScan(context.Background())
	assert.ErrorIs(t, err, ErrScanInProgress)
}

func TestScanRecoversPanic(t *testing.T) {
	svc := newTestService(t, testConfig(), Sources{Radarr: &fakeRadarr{panic: true}}, setupPlans(t))

	_, err := svc.Scan(context.Background(), "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "radarr exploded")

	progress, ok := svc.Progress("boom")
	require.True(t, ok)
	assert.Equal(t, ProgressFailed, progress.Status)
	assert.Empty(t, svc.Running(), "a panicking scan releases the slot")
}

func TestScanPlanCreateFailure(t *testing.T) {
	svc := newTestService(t, testConfig(), Sources{}, failingPlans{})

	_, err := svc.Scan(context.Background(), "s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	progress, _ := svc.Progress("s")
	assert.Equal(t, ProgressFailed, progress.Status)
	assert.Contains(t, progress.Error, "create plan")
}

func TestNewServiceRejectsBadExpression(t *testing.T) {
	cfg := testConfig()
	cfg.ProtectExpressions = []string{"Title +"}

	_, err := NewService(cfg, Sources{}, failingPlans{}, nil, nil)
	require.Error(t, err)
}

func TestStartScanRunsInBackground(t *testing.T) {
	svc := newTestService(t, testConfig(), Sources{}, setupPlans(t))

	scanID, err := svc.StartScan(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, scanID)

	require.Eventually(t, func() bool {
		p, ok := svc.Progress(scanID)
		return ok && p.Status == ProgressCompleted
	}, 5*time.Second, 10*time.Millisecond)
}
