// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/janitor/internal/buildinfo"
	"github.com/autobrr/janitor/internal/domain"
)

const (
	envPrefix        = "JANITOR__"
	configFileName   = "config.toml"
	databaseFileName = "janitor.db"
)

const configHeader = `# config.toml - Auto-generated on first run
#
# Every key can be overridden from the environment with the JANITOR__ prefix.
# Nested keys are joined with a double underscore and camelCase becomes
# SNAKE_CASE, e.g. JANITOR__DATABASE_PATH or JANITOR__RULES__MOVIES__NEVER_WATCHED_DAYS.
#
# Scans only ever produce draft plans. Nothing is deleted until a plan is
# applied with the confirmation phrase below.

`

// AppConfig owns the loaded configuration and the viper instance backing it.
type AppConfig struct {
	Config *domain.Config

	mu        sync.RWMutex
	viper     *viper.Viper
	path      string
	configDir string
}

// New loads the configuration from path, which may be a config.toml file or
// the directory containing it. An empty path uses the default config
// directory. A commented default file is written when none exists.
func New(path string) (*AppConfig, error) {
	configPath, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	c := &AppConfig{
		Config:    &domain.Config{},
		viper:     viper.New(),
		path:      configPath,
		configDir: filepath.Dir(configPath),
	}

	if err := writeDefaultConfig(configPath); err != nil {
		return nil, err
	}

	defaults := DefaultConfig()
	if err := walkKeys(reflect.ValueOf(defaults), "", func(key string, value any) {
		c.viper.SetDefault(key, value)
		_ = c.viper.BindEnv(key, envName(key))
	}); err != nil {
		return nil, err
	}

	c.viper.SetConfigFile(configPath)
	c.viper.SetConfigType("toml")
	if err := c.viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", configPath, err)
	}

	if err := c.load(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *AppConfig) load() error {
	var cfg domain.Config
	if err := c.viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	cfg.Version = buildinfo.Version

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", c.path, err)
	}

	c.mu.Lock()
	c.Config = &cfg
	c.mu.Unlock()
	return nil
}

// Current returns a copy of the active configuration.
func (c *AppConfig) Current() domain.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.Config
}

// Path returns the config file in use.
func (c *AppConfig) Path() string {
	return c.path
}

// GetDataDir returns the directory for the database, lock and log files.
func (c *AppConfig) GetDataDir() string {
	c.mu.RLock()
	dataDir := c.Config.DataDir
	c.mu.RUnlock()

	if dataDir == "" {
		return c.configDir
	}
	return c.resolve(dataDir)
}

// GetDatabasePath returns the configured database path, defaulting to
// janitor.db inside the data directory.
func (c *AppConfig) GetDatabasePath() string {
	c.mu.RLock()
	dbPath := c.Config.DatabasePath
	c.mu.RUnlock()

	if dbPath == "" {
		return filepath.Join(c.GetDataDir(), databaseFileName)
	}
	return c.resolve(dbPath)
}

// GetLogPath returns the log file path, or "" when logging to stdout only.
func (c *AppConfig) GetLogPath() string {
	c.mu.RLock()
	logPath := c.Config.LogPath
	c.mu.RUnlock()

	if logPath == "" {
		return ""
	}
	return c.resolve(logPath)
}

func (c *AppConfig) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}

// WatchConfig reapplies logging settings when the config file changes.
// Other settings take effect on restart.
func (c *AppConfig) WatchConfig() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		before := c.Current()
		if err := c.load(); err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("config: reload failed, keeping previous settings")
			return
		}

		after := c.Current()
		if before.LogLevel != after.LogLevel || before.LogPath != after.LogPath ||
			before.LogMaxSize != after.LogMaxSize || before.LogMaxBackups != after.LogMaxBackups {
			c.ApplyLogConfig()
		}
		log.Info().Str("file", e.Name).Msg("config: reloaded, restart to apply changes other than logging")
	})
	c.viper.WatchConfig()
}

// UpdateLogSettings persists new log settings into the config file and
// applies them immediately.
func (c *AppConfig) UpdateLogSettings(level, logPath string, maxSize, maxBackups int) error {
	if _, err := parseLevel(level); err != nil {
		return err
	}
	if maxSize < 0 || maxBackups < 0 {
		return errors.New("log rotation values must not be negative")
	}

	content, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	updated := updateLogSettingsInTOML(string(content), level, logPath, maxSize, maxBackups)
	if err := os.WriteFile(c.path, []byte(updated), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	c.mu.Lock()
	c.Config.LogLevel = level
	c.Config.LogPath = logPath
	c.Config.LogMaxSize = maxSize
	c.Config.LogMaxBackups = maxBackups
	c.mu.Unlock()

	c.viper.Set("logLevel", level)
	c.viper.Set("logPath", logPath)
	c.viper.Set("logMaxSize", maxSize)
	c.viper.Set("logMaxBackups", maxBackups)

	c.ApplyLogConfig()
	return nil
}

// DefaultConfig returns the configuration used for unset keys.
func DefaultConfig() domain.Config {
	return domain.Config{
		Host:               "127.0.0.1",
		Port:               7480,
		LogLevel:           "INFO",
		LogMaxSize:         50,
		LogMaxBackups:      3,
		MetricsHost:        "127.0.0.1",
		MetricsPort:        9074,
		CORSAllowedOrigins: []string{},
		Plex: domain.PlexConfig{
			MoviesLibrary: "Films",
			SeriesLibrary: "Series",
		},
		Tautulli: domain.TautulliConfig{
			HistoryLength: 10000,
		},
		Radarr: domain.ArrConfig{ProtectedTags: []string{}},
		Sonarr: domain.ArrConfig{ProtectedTags: []string{}},
		Overseerr: domain.OverseerrConfig{
			ProtectIfRequestActive:          true,
			ProtectIfRequestYoungerThanDays: 30,
		},
		QBittorrent: domain.QBittorrentConfig{
			ProtectCategories: []string{},
		},
		Rules: domain.RulesConfig{
			Movies: domain.MovieRules{
				NeverWatchedDays: 60,
				NotWatchedDays:   60,
			},
			Series: domain.SeriesRules{
				EpisodeNotWatchedDays:   60,
				EpisodeNeverWatchedDays: 60,
				InactiveDays:            120,
			},
		},
		Safety: domain.SafetyConfig{
			ExcludedPaths:      []string{},
			ProtectExpressions: []string{},
		},
		App: domain.AppConfig{
			DryRunDefault:        true,
			RequireConfirmPhrase: "DELETE",
		},
		Scheduler: domain.SchedulerConfig{
			Cron: "0 3 * * *",
		},
	}
}

// RenderTOML renders cfg as TOML. Secrets are redacted.
func RenderTOML(cfg domain.Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

func writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}

	cfg := DefaultConfig()
	apiKey, err := generateAPIKey()
	if err != nil {
		return err
	}
	cfg.APIKey = apiKey

	var buf bytes.Buffer
	buf.WriteString(configHeader)
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("render default config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	log.Info().Str("path", path).Msg("config: wrote default configuration")
	return nil
}

func generateAPIKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func resolveConfigPath(path string) (string, error) {
	if path == "" {
		path = getDefaultConfigDir()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve config path %q: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(abs), ".toml") {
		return abs, nil
	}
	return filepath.Join(abs, configFileName), nil
}

func getDefaultConfigDir() string {
	// Container images mount the config volume at XDG_CONFIG_HOME=/config.
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if xdg == "/config" {
			return xdg
		}
		return filepath.Join(xdg, "janitor")
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "janitor")
}

// walkKeys calls fn with the dotted camelCase key and value of every leaf
// field carrying a mapstructure tag.
func walkKeys(v reflect.Value, prefix string, fn func(key string, value any)) error {
	t := v.Type()
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("walk config keys: %s is not a struct", t)
	}

	for i := range t.NumField() {
		field := t.Field(i)
		tag := strings.Split(field.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			if err := walkKeys(fv, key, fn); err != nil {
				return err
			}
			continue
		}
		fn(key, fv.Interface())
	}
	return nil
}

// envName maps "rules.movies.neverWatchedDays" to
// JANITOR__RULES__MOVIES__NEVER_WATCHED_DAYS.
func envName(key string) string {
	parts := strings.Split(key, ".")
	for i, part := range parts {
		parts[i] = toSnake(part)
	}
	return envPrefix + strings.Join(parts, "__")
}

func toSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
