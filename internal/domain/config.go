// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	Version               string   `toml:"-" mapstructure:"-" json:"-"`
	Host                  string   `toml:"host" mapstructure:"host" json:"host"`
	Port                  int      `toml:"port" mapstructure:"port" json:"port"`
	BaseURL               string   `toml:"baseUrl" mapstructure:"baseUrl" json:"baseUrl"`
	APIKey                string   `toml:"apiKey" mapstructure:"apiKey" json:"-"`
	LogLevel              string   `toml:"logLevel" mapstructure:"logLevel" json:"logLevel"`
	LogPath               string   `toml:"logPath" mapstructure:"logPath" json:"logPath"`
	LogMaxSize            int      `toml:"logMaxSize" mapstructure:"logMaxSize" json:"logMaxSize"`
	LogMaxBackups         int      `toml:"logMaxBackups" mapstructure:"logMaxBackups" json:"logMaxBackups"`
	DataDir               string   `toml:"dataDir" mapstructure:"dataDir" json:"dataDir"`
	DatabasePath          string   `toml:"databasePath" mapstructure:"databasePath" json:"databasePath"`
	MetricsEnabled        bool     `toml:"metricsEnabled" mapstructure:"metricsEnabled" json:"metricsEnabled"`
	MetricsHost           string   `toml:"metricsHost" mapstructure:"metricsHost" json:"metricsHost"`
	MetricsPort           int      `toml:"metricsPort" mapstructure:"metricsPort" json:"metricsPort"`
	MetricsBasicAuthUsers string   `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers" json:"-"`
	CORSAllowedOrigins    []string `toml:"corsAllowedOrigins" mapstructure:"corsAllowedOrigins" json:"corsAllowedOrigins"`

	Plex        PlexConfig        `toml:"plex" mapstructure:"plex" json:"plex"`
	Tautulli    TautulliConfig    `toml:"tautulli" mapstructure:"tautulli" json:"tautulli"`
	Radarr      ArrConfig         `toml:"radarr" mapstructure:"radarr" json:"radarr"`
	Sonarr      ArrConfig         `toml:"sonarr" mapstructure:"sonarr" json:"sonarr"`
	Overseerr   OverseerrConfig   `toml:"overseerr" mapstructure:"overseerr" json:"overseerr"`
	QBittorrent QBittorrentConfig `toml:"qbittorrent" mapstructure:"qbittorrent" json:"qbittorrent"`
	Rules       RulesConfig       `toml:"rules" mapstructure:"rules" json:"rules"`
	Safety      SafetyConfig      `toml:"safety" mapstructure:"safety" json:"safety"`
	App         AppConfig         `toml:"app" mapstructure:"app" json:"app"`
	Scheduler   SchedulerConfig   `toml:"scheduler" mapstructure:"scheduler" json:"scheduler"`
}

// PlexConfig configures the library server.
type PlexConfig struct {
	URL           string `toml:"url" mapstructure:"url" json:"url"`
	Token         string `toml:"token" mapstructure:"token" json:"-"`
	MoviesLibrary string `toml:"moviesLibrary" mapstructure:"moviesLibrary" json:"moviesLibrary"`
	SeriesLibrary string `toml:"seriesLibrary" mapstructure:"seriesLibrary" json:"seriesLibrary"`
}

// Enabled reports whether the library server is configured.
func (c PlexConfig) Enabled() bool { return c.URL != "" && c.Token != "" }

// TautulliConfig configures the watch-history ledger.
type TautulliConfig struct {
	URL           string `toml:"url" mapstructure:"url" json:"url"`
	APIKey        string `toml:"apiKey" mapstructure:"apiKey" json:"-"`
	HistoryLength int    `toml:"historyLength" mapstructure:"historyLength" json:"historyLength"`
}

func (c TautulliConfig) Enabled() bool { return c.URL != "" && c.APIKey != "" }

// ArrConfig configures a catalog manager (Radarr or Sonarr).
type ArrConfig struct {
	URL           string   `toml:"url" mapstructure:"url" json:"url"`
	APIKey        string   `toml:"apiKey" mapstructure:"apiKey" json:"-"`
	ProtectedTags []string `toml:"protectedTags" mapstructure:"protectedTags" json:"protectedTags"`
}

func (c ArrConfig) Enabled() bool { return c.URL != "" && c.APIKey != "" }

// OverseerrConfig configures the request tracker and its protection policy.
type OverseerrConfig struct {
	URL                             string `toml:"url" mapstructure:"url" json:"url"`
	APIKey                          string `toml:"apiKey" mapstructure:"apiKey" json:"-"`
	ProtectIfRequestActive          bool   `toml:"protectIfRequestActive" mapstructure:"protectIfRequestActive" json:"protectIfRequestActive"`
	ProtectIfRequestYoungerThanDays int    `toml:"protectIfRequestYoungerThanDays" mapstructure:"protectIfRequestYoungerThanDays" json:"protectIfRequestYoungerThanDays"`
}

func (c OverseerrConfig) Enabled() bool { return c.URL != "" && c.APIKey != "" }

// QBittorrentConfig configures the download client.
type QBittorrentConfig struct {
	URL               string   `toml:"url" mapstructure:"url" json:"url"`
	Username          string   `toml:"username" mapstructure:"username" json:"username"`
	Password          string   `toml:"password" mapstructure:"password" json:"-"`
	BasicUser         string   `toml:"basicUser" mapstructure:"basicUser" json:"basicUser"`
	BasicPass         string   `toml:"basicPass" mapstructure:"basicPass" json:"-"`
	ProtectCategories []string `toml:"protectCategories" mapstructure:"protectCategories" json:"protectCategories"`
	// TorrentYearFromRelease parses scene-style torrent names for a release
	// year when matching by year and title.
	TorrentYearFromRelease bool `toml:"torrentYearFromRelease" mapstructure:"torrentYearFromRelease" json:"torrentYearFromRelease"`
}

func (c QBittorrentConfig) Enabled() bool { return c.URL != "" }

// RulesConfig holds the retention thresholds.
type RulesConfig struct {
	Movies MovieRules  `toml:"movies" mapstructure:"movies" json:"movies"`
	Series SeriesRules `toml:"series" mapstructure:"series" json:"series"`
}

type MovieRules struct {
	NeverWatchedDays int  `toml:"neverWatchedDays" mapstructure:"neverWatchedDays" json:"neverWatchedDays"`
	NotWatchedDays   int  `toml:"notWatchedDays" mapstructure:"notWatchedDays" json:"notWatchedDays"`
	NeverWatchedOnly bool `toml:"neverWatchedOnly" mapstructure:"neverWatchedOnly" json:"neverWatchedOnly"`
}

type SeriesRules struct {
	EpisodeNotWatchedDays   int `toml:"episodeNotWatchedDays" mapstructure:"episodeNotWatchedDays" json:"episodeNotWatchedDays"`
	EpisodeNeverWatchedDays int `toml:"episodeNeverWatchedDays" mapstructure:"episodeNeverWatchedDays" json:"episodeNeverWatchedDays"`
	InactiveDays            int `toml:"inactiveDays" mapstructure:"inactiveDays" json:"inactiveDays"`
	// KeepLastEpisodes protects the newest N episodes of every series.
	KeepLastEpisodes int `toml:"keepLastEpisodes" mapstructure:"keepLastEpisodes" json:"keepLastEpisodes"`
}

// SafetyConfig holds global protections.
type SafetyConfig struct {
	ExcludedPaths      []string `toml:"excludedPaths" mapstructure:"excludedPaths" json:"excludedPaths"`
	ProtectExpressions []string `toml:"protectExpressions" mapstructure:"protectExpressions" json:"protectExpressions"`
}

// AppConfig holds planning and execution behaviour.
type AppConfig struct {
	DryRunDefault        bool   `toml:"dryRunDefault" mapstructure:"dryRunDefault" json:"dryRunDefault"`
	RequireConfirmPhrase string `toml:"requireConfirmPhrase" mapstructure:"requireConfirmPhrase" json:"requireConfirmPhrase"`
	// MaxItemsPerScan caps the number of candidates per plan. 0 means unlimited.
	MaxItemsPerScan int  `toml:"maxItemsPerScan" mapstructure:"maxItemsPerScan" json:"maxItemsPerScan"`
	ParallelFetch   bool `toml:"parallelFetch" mapstructure:"parallelFetch" json:"parallelFetch"`
}

// SchedulerConfig configures periodic scans.
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled" mapstructure:"enabled" json:"enabled"`
	Cron     string `toml:"cron" mapstructure:"cron" json:"cron"`
	Timezone string `toml:"timezone" mapstructure:"timezone" json:"timezone"`
}

// Location resolves the scheduler timezone, defaulting to local time.
func (c SchedulerConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Validate checks the configuration for values that would make the service
// misbehave. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port: %d out of range", c.Port))
	}
	if c.MetricsEnabled && (c.MetricsPort <= 0 || c.MetricsPort > 65535) {
		errs = append(errs, fmt.Errorf("metricsPort: %d out of range", c.MetricsPort))
	}

	for name, raw := range map[string]string{
		"plex.url":        c.Plex.URL,
		"tautulli.url":    c.Tautulli.URL,
		"radarr.url":      c.Radarr.URL,
		"sonarr.url":      c.Sonarr.URL,
		"overseerr.url":   c.Overseerr.URL,
		"qbittorrent.url": c.QBittorrent.URL,
	} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s: invalid url %q", name, raw))
		}
	}

	for name, days := range map[string]int{
		"rules.movies.neverWatchedDays":        c.Rules.Movies.NeverWatchedDays,
		"rules.movies.notWatchedDays":          c.Rules.Movies.NotWatchedDays,
		"rules.series.episodeNotWatchedDays":   c.Rules.Series.EpisodeNotWatchedDays,
		"rules.series.episodeNeverWatchedDays": c.Rules.Series.EpisodeNeverWatchedDays,
		"rules.series.inactiveDays":            c.Rules.Series.InactiveDays,
	} {
		if days <= 0 {
			errs = append(errs, fmt.Errorf("%s: must be positive, got %d", name, days))
		}
	}
	if c.Rules.Series.KeepLastEpisodes < 0 {
		errs = append(errs, fmt.Errorf("rules.series.keepLastEpisodes: must not be negative"))
	}
	if c.Overseerr.ProtectIfRequestYoungerThanDays < 0 {
		errs = append(errs, fmt.Errorf("overseerr.protectIfRequestYoungerThanDays: must not be negative"))
	}
	if c.App.MaxItemsPerScan < 0 {
		errs = append(errs, fmt.Errorf("app.maxItemsPerScan: must not be negative"))
	}
	if strings.TrimSpace(c.App.RequireConfirmPhrase) == "" {
		errs = append(errs, errors.New("app.requireConfirmPhrase: must not be empty"))
	}

	if c.Scheduler.Enabled {
		if strings.TrimSpace(c.Scheduler.Cron) == "" {
			errs = append(errs, errors.New("scheduler.cron: required when the scheduler is enabled"))
		}
		if _, err := c.Scheduler.Location(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}

	return errors.Join(errs...)
}
