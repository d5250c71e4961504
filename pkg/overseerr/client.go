// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package overseerr reads media requests from Overseerr and decides whether a
// request protects an entity from deletion.
package overseerr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 100
	maxPages        = 1000
)

// Config holds the options for constructing a Client.
type Config struct {
	Host       string
	APIKey     string
	Timeout    int
	HTTPClient *http.Client
	UserAgent  string
	PageSize   int
}

// Client is a minimal Overseerr API v1 client.
type Client struct {
	host       string
	apiKey     string
	httpClient *http.Client
	userAgent  string
	pageSize   int
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
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = "janitor"
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Client{
		host:       strings.TrimRight(strings.TrimSpace(cfg.Host), "/"),
		apiKey:     cfg.APIKey,
		httpClient: client,
		userAgent:  ua,
		pageSize:   pageSize,
	}
}

// Request status codes as reported by the API.
const (
	StatusPending  = 1
	StatusApproved = 2
	StatusDeclined = 3
)

// StatusName maps a numeric request status to its lowercase name.
func StatusName(status int) string {
	switch status {
	case StatusPending:
		return "pending"
	case StatusApproved:
		return "approved"
	case StatusDeclined:
		return "declined"
	default:
		return strconv.Itoa(status)
	}
}

type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Name returns the best available display name.
func (u *User) Name() string {
	if u == nil {
		return ""
	}
	switch {
	case u.Username != "":
		return u.Username
	case u.DisplayName != "":
		return u.DisplayName
	default:
		return u.Email
	}
}

type Media struct {
	ID        int    `json:"id"`
	MediaType string `json:"mediaType"`
	TMDBID    int    `json:"tmdbId"`
	TVDBID    int    `json:"tvdbId"`
}

// Request is one media request.
type Request struct {
	ID          int       `json:"id"`
	Status      int       `json:"status"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
	Media       Media     `json:"media"`
	RequestedBy *User     `json:"requestedBy"`
}

type pageInfo struct {
	Pages   int `json:"pages"`
	Page    int `json:"page"`
	Results int `json:"results"`
}

type requestPage struct {
	PageInfo pageInfo  `json:"pageInfo"`
	Results  []Request `json:"results"`
}

// ListRequests returns every request, following pagination.
func (c *Client) ListRequests(ctx context.Context) ([]Request, error) {
	var all []Request

	for page := 0; page < maxPages; page++ {
		var resp requestPage
		query := url.Values{}
		query.Set("take", strconv.Itoa(c.pageSize))
		query.Set("skip", strconv.Itoa(page*c.pageSize))

		err := retry.Do(
			func() error { return c.get(ctx, "request", query, &resp) },
			retry.Context(ctx),
			retry.Attempts(3),
			retry.Delay(500*time.Millisecond),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			return nil, err
		}

		all = append(all, resp.Results...)
		if len(resp.Results) < c.pageSize || (resp.PageInfo.Pages > 0 && page+1 >= resp.PageInfo.Pages) {
			break
		}
	}

	return all, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint, err := url.JoinPath(c.host, "api", "v1", path)
	if err != nil {
		return errors.Wrap(err, "build overseerr endpoint")
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "build overseerr request")
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "overseerr request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("overseerr returned status %d", resp.StatusCode)
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Unrecoverable(err)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode overseerr response")
	}
	return nil
}

// Version returns the server version from /status. It is not retried.
func (c *Client) Version(ctx context.Context) (string, error) {
	var status struct {
		Version string `json:"version"`
	}
	if err := c.get(ctx, "status", nil, &status); err != nil {
		return "", err
	}
	return status.Version, nil
}
