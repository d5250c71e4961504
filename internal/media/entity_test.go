// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityNormalizeDerivesNeverWatched(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		last  *time.Time
		views int
		want  bool
	}{
		{"no stats", nil, 0, true},
		{"views only", nil, 2, false},
		{"last watched only", &now, 0, false},
		{"both", &now, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := Entity{Kind: KindMovie, Watch: WatchStats{NeverWatched: !tt.want}}
			e = e.WithWatch(tt.last, tt.views, "")
			assert.Equal(t, tt.want, e.Watch.NeverWatched)
		})
	}
}

func TestEntityCopyOnEnrich(t *testing.T) {
	t.Parallel()

	added := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orig := Entity{
		Kind:          KindMovie,
		Title:         "Heat",
		Tags:          []string{"keep"},
		TorrentHashes: []string{"aaa"},
		AddedAt:       &added,
		Metadata:      map[string]any{"a": 1},
	}

	enriched := orig.WithTorrents([]string{"bbb", "aaa"}, []string{"movies"}).WithMeta("b", 2)

	assert.Equal(t, []string{"aaa"}, orig.TorrentHashes)
	assert.Nil(t, orig.TorrentCategories)
	assert.NotContains(t, orig.Metadata, "b")

	assert.Equal(t, []string{"aaa", "bbb"}, enriched.TorrentHashes)
	assert.Equal(t, []string{"movies"}, enriched.TorrentCategories)
	assert.Equal(t, 2, enriched.Metadata["b"])

	clone := orig.Clone()
	clone.Tags[0] = "changed"
	*clone.AddedAt = added.Add(time.Hour)
	assert.Equal(t, "keep", orig.Tags[0])
	assert.Equal(t, added, *orig.AddedAt)
}

func TestEntityPathPrefersCatalog(t *testing.T) {
	t.Parallel()

	e := Entity{Paths: Paths{Library: "/plex/Heat", Catalog: "/radarr/Heat"}}
	assert.Equal(t, "/radarr/Heat", e.Path())

	e.Paths.Catalog = ""
	assert.Equal(t, "/plex/Heat", e.Path())
}

func TestEntityWithRequest(t *testing.T) {
	t.Parallel()

	req := &Request{ID: 7, Status: "approved"}
	e := Entity{}.WithRequest(req)
	require.NotNil(t, e.Request)
	req.Status = "pending"
	assert.Equal(t, "approved", e.Request.Status)

	assert.Nil(t, e.WithRequest(nil).Request)
}

func TestHasTagAndMeta(t *testing.T) {
	t.Parallel()

	e := Entity{Tags: []string{"Keep"}, Metadata: map[string]any{"s": "x", "n": 1}}
	assert.True(t, e.HasTag("keep"))
	assert.False(t, e.HasTag("other"))
	assert.Equal(t, "x", e.MetaString("s"))
	assert.Equal(t, "", e.MetaString("n"))
	assert.Equal(t, "", Entity{}.MetaString("s"))
}

func TestUnionStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b", "c"}, UnionStrings([]string{"a", "b", "a"}, []string{"c", "b", ""}))
	assert.Equal(t, []string{"x"}, UnionStrings([]string{"x"}, nil))
}

func TestKindValid(t *testing.T) {
	t.Parallel()

	assert.True(t, KindMovie.Valid())
	assert.True(t, KindSeries.Valid())
	assert.True(t, KindEpisode.Valid())
	assert.False(t, Kind("album").Valid())
}
