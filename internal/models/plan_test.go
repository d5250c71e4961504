// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/janitor/internal/database"
	"github.com/autobrr/janitor/internal/media"
	"github.com/autobrr/janitor/internal/testdb"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	return testdb.Open(t, "models")
}

func samplePlanItems() []PlanItem {
	watched := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	return []PlanItem{
		{
			Selected:     true,
			MediaType:    media.KindMovie,
			Title:        "Heat",
			Year:         1995,
			TMDBID:       949,
			IMDBID:       "tt0113277",
			Path:         "/movies/Heat (1995)",
			SizeBytes:    8 << 30,
			NeverWatched: true,
			Rule:         "never_watched_60d",
			QBHashes:     []string{"abc", "def"},
			Meta:         map[string]any{MetaRadarrID: 12, MetaTags: []string{"4k"}},
		},
		{
			Selected:     true,
			MediaType:    media.KindEpisode,
			Title:        "Dark S01E01",
			TVDBID:       334824,
			Path:         "/tv/Dark/Season 01/Dark S01E01.mkv",
			SizeBytes:    1 << 30,
			LastViewedAt: &watched,
			ViewCount:    2,
			Rule:         "episode_not_watched_60d",
			Meta:         map[string]any{MetaSonarrID: 3, MetaEpisodeFileID: 77},
		},
		{
			Selected:  true,
			MediaType: media.KindSeries,
			Title:     "Fargo",
			TVDBID:    269613,
			Rule:      "series_inactive_120d",
		},
	}
}

func TestPlanStoreCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	store := NewPlanStore(db)
	ctx := context.Background()

	summary := PlanSummary{MoviesCount: 1, SeriesCount: 1, EpisodesCount: 1, TotalSizeBytes: 9 << 30, FailedSources: []string{"tautulli"}}
	plan, err := store.Create(ctx, "scan-1", summary, samplePlanItems())
	require.NoError(t, err)
	require.NotNil(t, plan)

	assert.Equal(t, PlanStatusDraft, plan.Status)
	assert.Equal(t, "scan-1", plan.ScanID)
	assert.Equal(t, summary, plan.Summary)
	assert.Equal(t, 3, plan.ItemCount)
	assert.Equal(t, 3, plan.SelectedCount)
	assert.False(t, plan.CreatedAt.IsZero())

	items, err := store.Items(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)

	heat := items[0]
	assert.Equal(t, plan.ID, heat.PlanID)
	assert.Equal(t, media.KindMovie, heat.MediaType)
	assert.Equal(t, 1995, heat.Year)
	assert.Equal(t, 949, heat.TMDBID)
	assert.Equal(t, "tt0113277", heat.IMDBID)
	assert.True(t, heat.NeverWatched)
	assert.Nil(t, heat.LastViewedAt)
	assert.Equal(t, []string{"abc", "def"}, heat.QBHashes)
	assert.Equal(t, 12, heat.MetaInt(MetaRadarrID))

	dark := items[1]
	require.NotNil(t, dark.LastViewedAt)
	assert.True(t, dark.LastViewedAt.Equal(time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)))
	assert.Equal(t, 77, dark.MetaInt(MetaEpisodeFileID))

	fargo := items[2]
	assert.Zero(t, fargo.Year)
	assert.Empty(t, fargo.Path)
	assert.Equal(t, []string{}, fargo.QBHashes)
	assert.NotNil(t, fargo.Meta)
}

func TestPlanStoreCreateBatches(t *testing.T) {
	db := setupTestDB(t)
	store := NewPlanStore(db)
	ctx := context.Background()

	items := make([]PlanItem, 0, 250)
	for i := range 250 {
		items = append(items, PlanItem{
			Selected:  i%2 == 0,
			MediaType: media.KindMovie,
			Title:     fmt.Sprintf("Movie %d", i),
			Rule:      "never_watched_60d",
		})
	}

	plan, err := store.Create(ctx, "", PlanSummary{MoviesCount: 250}, items)
	require.NoError(t, err)
	assert.Equal(t, 250, plan.ItemCount)
	assert.Equal(t, 125, plan.SelectedCount)

	selected, err := store.SelectedItems(ctx, plan.ID)
	require.NoError(t, err)
	require.Len(t, selected, 125)
	assert.Equal(t, "Movie 0", selected[0].Title)
	assert.Equal(t, "Movie 248", selected[124].Title)
}

func TestPlanStoreGetMissing(t *testing.T) {
	db := setupTestDB(t)
	store := NewPlanStore(db)

	plan, err := store.Get(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, plan)
}

func TestPlanStoreSelection(t *testing.T) {
	db := setupTestDB(t)
	store := NewPlanStore(db)
	ctx := context.Background()

	plan, err := store.Create(ctx, "scan", PlanSummary{}, samplePlanItems())
	require.NoError(t, err)

	items, err := store.Items(ctx, plan.ID)
	require.NoError(t, err)

	require.NoError(t, store.SetItemSelection(ctx, plan.ID, map[int64]bool{items[0].ID: false, 9999: false}))
	plan, err = store.Get(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, plan.SelectedCount)

	require.NoError(t, store.SetAllSelection(ctx, plan.ID, false))
	plan, err = store.Get(ctx, plan.ID)
	require.NoError(t, err)
	assert.Zero(t, plan.SelectedCount)

	require.NoError(t, store.SetAllSelection(ctx, plan.ID, true))
	require.NoError(t, store.Cancel(ctx, plan.ID))

	err = store.SetAllSelection(ctx, plan.ID, false)
	assert.ErrorIs(t, err, ErrPlanNotDraft)
	err = store.SetItemSelection(ctx, plan.ID, map[int64]bool{items[1].ID: false})
	assert.ErrorIs(t, err, ErrPlanNotDraft)

	plan, err = store.Get(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, PlanStatusCancelled, plan.Status)
	assert.Equal(t, 3, plan.SelectedCount)

	assert.ErrorIs(t, store.SetAllSelection(ctx, 9999, true), ErrPlanNotFound)
}

func TestPlanStoreTransition(t *testing.T) {
	db := setupTestDB(t)
	store := NewPlanStore(db)
	ctx := context.Background()

	plan, err := store.Create(ctx, "scan", PlanSummary{}, nil)
	require.NoError(t, err)

	require.NoError(t, store.Transition(ctx, plan.ID, PlanStatusDraft, PlanStatusApplied))
	assert.ErrorIs(t, store.Transition(ctx, plan.ID, PlanStatusDraft, PlanStatusApplied), ErrPlanNotDraft)
	assert.ErrorIs(t, store.Cancel(ctx, plan.ID), ErrPlanNotDraft)
	assert.ErrorIs(t, store.Transition(ctx, 9999, PlanStatusDraft, PlanStatusApplied), ErrPlanNotFound)
}

func TestPlanStoreListAndDelete(t *testing.T) {
	db := setupTestDB(t)
	store := NewPlanStore(db)
	ctx := context.Background()

	first, err := store.Create(ctx, "a", PlanSummary{}, nil)
	require.NoError(t, err)
	second, err := store.Create(ctx, "b", PlanSummary{}, samplePlanItems())
	require.NoError(t, err)

	plans, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, second.ID, plans[0].ID)

	latest, err := store.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	require.NoError(t, store.Delete(ctx, second.ID))
	assert.ErrorIs(t, store.Delete(ctx, second.ID), ErrPlanNotFound)

	plans, err = store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, first.ID, plans[0].ID)
}

func TestPlanItemMetaInt(t *testing.T) {
	item := PlanItem{Meta: map[string]any{
		"int":    7,
		"float":  float64(8),
		"string": "9",
		"bad":    "x",
	}}

	assert.Equal(t, 7, item.MetaInt("int"))
	assert.Equal(t, 8, item.MetaInt("float"))
	assert.Equal(t, 9, item.MetaInt("string"))
	assert.Zero(t, item.MetaInt("bad"))
	assert.Zero(t, item.MetaInt("missing"))
}
