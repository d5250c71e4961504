// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package qbittorrent wraps go-qbittorrent with the operations the
// reconciliation pipeline and deletion executor need.
package qbittorrent

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog/log"
)

// torrents/files has been part of the web API since 2.0.
var minFilesVersion = semver.MustParse("2.0.0")

// api is the subset of *qbt.Client used here.
type api interface {
	LoginCtx(ctx context.Context) error
	GetWebAPIVersionCtx(ctx context.Context) (string, error)
	GetTorrentsCtx(ctx context.Context, o qbt.TorrentFilterOptions) ([]qbt.Torrent, error)
	GetFilesInformationCtx(ctx context.Context, hash string) (*qbt.TorrentFiles, error)
	DeleteTorrentsCtx(ctx context.Context, hashes []string, deleteFiles bool) error
}

// Config holds the connection settings.
type Config struct {
	Host      string
	Username  string
	Password  string
	BasicUser string
	BasicPass string
	// ProtectCategories are categories whose torrents must never be deleted.
	ProtectCategories []string
}

type Client struct {
	api               api
	host              string
	protectCategories []string

	mu            sync.RWMutex
	loggedIn      bool
	webAPIVersion string
	supportsFiles bool
}

// filteredWriter drops the "Unsolicited response received on idle HTTP channel"
// lines qBittorrent triggers in net/http.
type filteredWriter struct {
	writer io.Writer
}

func (fw *filteredWriter) Write(p []byte) (n int, err error) {
	if strings.Contains(string(p), "Unsolicited response received on idle HTTP channel") {
		return len(p), nil
	}
	return fw.writer.Write(p)
}

func init() {
	stdlog.SetOutput(&filteredWriter{writer: os.Stderr})
}

// NewClient builds a client. The session is established lazily on first use.
func NewClient(cfg Config) *Client {
	qbtCfg := qbt.Config{
		Host:     cfg.Host,
		Username: cfg.Username,
		Password: cfg.Password,
		Timeout:  30,
	}
	if cfg.BasicUser != "" {
		qbtCfg.BasicUser = cfg.BasicUser
		qbtCfg.BasicPass = cfg.BasicPass
	}

	return newClient(qbt.NewClient(qbtCfg), cfg)
}

func newClient(a api, cfg Config) *Client {
	return &Client{
		api:               a,
		host:              cfg.Host,
		protectCategories: cfg.ProtectCategories,
	}
}

// Connect logs in and records the web API version.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked(ctx)
}

func (c *Client) connectLocked(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := c.api.LoginCtx(ctx); err != nil {
		return fmt.Errorf("failed to connect to qBittorrent: %w", err)
	}

	webAPIVersion, err := c.api.GetWebAPIVersionCtx(ctx)
	if err != nil {
		webAPIVersion = ""
	}

	// Unknown versions are assumed modern.
	supportsFiles := true
	if webAPIVersion != "" {
		if v, err := semver.NewVersion(webAPIVersion); err == nil {
			supportsFiles = !v.LessThan(minFilesVersion)
		}
	}

	c.loggedIn = true
	c.webAPIVersion = webAPIVersion
	c.supportsFiles = supportsFiles

	log.Debug().
		Str("host", c.host).
		Str("webAPIVersion", webAPIVersion).
		Bool("supportsFiles", supportsFiles).
		Msg("qbittorrent: client connected")

	return nil
}

func (c *Client) ensureConnected(ctx context.Context) error {
	c.mu.RLock()
	ok := c.loggedIn
	c.mu.RUnlock()
	if ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loggedIn {
		return nil
	}
	return c.connectLocked(ctx)
}

// WebAPIVersion returns the version reported at login, or "" before Connect.
func (c *Client) WebAPIVersion() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.webAPIVersion
}

func (c *Client) SupportsFiles() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.supportsFiles
}

// HealthCheck re-authenticates and reports the web API version.
func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", fmt.Errorf("health check failed: %w", err)
	}
	return c.WebAPIVersion(), nil
}
