// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package plex is a minimal Plex Media Server client covering library
// listing and section refreshes.
package plex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"

	"github.com/autobrr/janitor/internal/media"
)

const defaultTimeout = 30 * time.Second

// ErrSectionNotFound is returned when no library matches the configured title.
var ErrSectionNotFound = errors.New("plex library section not found")

// Config holds the options for constructing a Client.
type Config struct {
	Host          string
	Token         string
	Timeout       int
	HTTPClient    *http.Client
	MoviesLibrary string
	SeriesLibrary string
}

type Client struct {
	host          string
	token         string
	httpClient    *http.Client
	moviesLibrary string
	seriesLibrary string
}

func NewClient(cfg Config) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	return &Client{
		host:          strings.TrimRight(strings.TrimSpace(cfg.Host), "/"),
		token:         cfg.Token,
		httpClient:    client,
		moviesLibrary: cfg.MoviesLibrary,
		seriesLibrary: cfg.SeriesLibrary,
	}
}

type container struct {
	MediaContainer struct {
		Size      int       `json:"size"`
		Directory []Section `json:"Directory"`
		Metadata  []Item    `json:"Metadata"`
	} `json:"MediaContainer"`
}

func (c *Client) request(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.host + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "build plex request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("X-Plex-Product", "janitor")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "plex request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err := fmt.Errorf("plex %s returned status %d", path, resp.StatusCode)
		if resp.StatusCode < http.StatusInternalServerError {
			return retry.Unrecoverable(err)
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode plex %s response", path)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return retry.Do(
		func() error { return c.request(ctx, path, query, out) },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

// Section is a library section.
type Section struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Sections lists the library sections.
func (c *Client) Sections(ctx context.Context) ([]Section, error) {
	var resp container
	if err := c.get(ctx, "/library/sections", nil, &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Directory, nil
}

// SectionByTitle finds a section by title, ignoring case.
func (c *Client) SectionByTitle(ctx context.Context, title string) (*Section, error) {
	sections, err := c.Sections(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range sections {
		if strings.EqualFold(s.Title, strings.TrimSpace(title)) {
			return &s, nil
		}
	}
	return nil, errors.Wrapf(ErrSectionNotFound, "%q", title)
}

func (c *Client) sectionItems(ctx context.Context, title string) ([]Item, error) {
	section, err := c.SectionByTitle(ctx, title)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("includeGuids", "1")

	var resp container
	if err := c.get(ctx, "/library/sections/"+url.PathEscape(section.Key)+"/all", query, &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Metadata, nil
}

// ListMovies returns every item of the movies library.
func (c *Client) ListMovies(ctx context.Context) ([]Item, error) {
	return c.sectionItems(ctx, c.moviesLibrary)
}

// ListSeries returns every show of the series library.
func (c *Client) ListSeries(ctx context.Context) ([]Item, error) {
	return c.sectionItems(ctx, c.seriesLibrary)
}

// ListEpisodes returns every episode of a show.
func (c *Client) ListEpisodes(ctx context.Context, seriesRatingKey string) ([]Item, error) {
	query := url.Values{}
	query.Set("includeGuids", "1")

	var resp container
	if err := c.get(ctx, "/library/metadata/"+url.PathEscape(seriesRatingKey)+"/allLeaves", query, &resp); err != nil {
		return nil, err
	}
	return resp.MediaContainer.Metadata, nil
}

// RefreshSection asks Plex to rescan the library holding kind.
func (c *Client) RefreshSection(ctx context.Context, kind media.Kind) error {
	title := c.seriesLibrary
	if kind == media.KindMovie {
		title = c.moviesLibrary
	}

	section, err := c.SectionByTitle(ctx, title)
	if err != nil {
		return err
	}
	return c.request(ctx, "/library/sections/"+url.PathEscape(section.Key)+"/refresh", nil, nil)
}

// Identity returns the server version. It is not retried.
func (c *Client) Identity(ctx context.Context) (string, error) {
	var resp struct {
		MediaContainer struct {
			Version string `json:"version"`
		} `json:"MediaContainer"`
	}
	if err := c.request(ctx, "/identity", nil, &resp); err != nil {
		return "", err
	}
	return resp.MediaContainer.Version, nil
}
