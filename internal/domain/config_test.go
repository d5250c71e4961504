// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port: 7474,
		Rules: RulesConfig{
			Movies: MovieRules{NeverWatchedDays: 60, NotWatchedDays: 60},
			Series: SeriesRules{EpisodeNotWatchedDays: 60, EpisodeNeverWatchedDays: 60, InactiveDays: 120},
		},
		App: AppConfig{RequireConfirmPhrase: "DELETE"},
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("accepts defaults", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("reports every problem", func(t *testing.T) {
		cfg := validConfig()
		cfg.Port = 70000
		cfg.Radarr.URL = "radarr:7878"
		cfg.Rules.Movies.NotWatchedDays = 0
		cfg.App.RequireConfirmPhrase = " "

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "port")
		assert.Contains(t, err.Error(), "radarr.url")
		assert.Contains(t, err.Error(), "rules.movies.notWatchedDays")
		assert.Contains(t, err.Error(), "app.requireConfirmPhrase")
	})

	t.Run("scheduler needs cron and a known timezone", func(t *testing.T) {
		cfg := validConfig()
		cfg.Scheduler = SchedulerConfig{Enabled: true, Timezone: "Mars/Olympus"}

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "scheduler.cron")
		assert.Contains(t, err.Error(), "scheduler.timezone")
	})
}

func TestServiceEnabled(t *testing.T) {
	t.Parallel()

	assert.False(t, PlexConfig{URL: "http://plex"}.Enabled())
	assert.True(t, PlexConfig{URL: "http://plex", Token: "t"}.Enabled())
	assert.True(t, QBittorrentConfig{URL: "http://qb"}.Enabled())
	assert.False(t, ArrConfig{APIKey: "k"}.Enabled())
}
