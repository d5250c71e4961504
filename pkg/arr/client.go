// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package arr is a small client for the Radarr and Sonarr v3 APIs.
package arr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultAttempts = 3
	defaultDelay    = 500 * time.Millisecond
	maxErrorBody    = 512
)

// Config holds the options for constructing a client.
type Config struct {
	Host       string
	APIKey     string
	Timeout    int
	HTTPClient *http.Client
	UserAgent  string
	Version    string

	// Attempts is the number of tries for idempotent GET requests.
	Attempts uint
	// RetryDelay is the base delay between attempts.
	RetryDelay time.Duration
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Service    string
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s %s returned status %d", e.Service, e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s %s returned status %d: %s", e.Service, e.Method, e.Path, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// Client is the shared transport used by Radarr and Sonarr.
type Client struct {
	service    string
	host       string
	apiKey     string
	httpClient *http.Client
	userAgent  string
	attempts   uint
	delay      time.Duration
}

func newClient(service string, cfg Config) *Client {
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
	if version := strings.TrimSpace(cfg.Version); version != "" && !strings.Contains(ua, version) {
		ua = fmt.Sprintf("%s/%s", ua, version)
	}

	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = defaultAttempts
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = defaultDelay
	}

	return &Client{
		service:    service,
		host:       strings.TrimRight(strings.TrimSpace(cfg.Host), "/"),
		apiKey:     cfg.APIKey,
		httpClient: client,
		userAgent:  ua,
		attempts:   attempts,
		delay:      delay,
	}
}

// Service returns "radarr" or "sonarr".
func (c *Client) Service() string {
	return c.service
}

func (c *Client) endpoint(path string, query url.Values) (string, error) {
	endpoint, err := url.JoinPath(c.host, "api", "v3", path)
	if err != nil {
		return "", errors.Wrapf(err, "build %s endpoint", c.service)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return endpoint, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	endpoint, err := c.endpoint(path, query)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return errors.Wrapf(err, "build %s request", c.service)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s request failed", c.service)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Service:    c.service,
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode %s %s response", c.service, path)
	}
	return nil
}

// get performs a GET with retries on transport errors, 429 and 5xx.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return retry.Do(
		func() error {
			return c.do(ctx, http.MethodGet, path, query, out)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	)
}

// delete is never retried; a failed delete may already have been applied.
func (c *Client) delete(ctx context.Context, path string, query url.Values) error {
	return c.do(ctx, http.MethodDelete, path, query, nil)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	return true
}

// SystemStatus is the subset of /system/status used for diagnostics.
type SystemStatus struct {
	AppName string `json:"appName"`
	Version string `json:"version"`
}

// SystemStatus returns the application name and version.
func (c *Client) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	var status SystemStatus
	if err := c.get(ctx, "system/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Tag is a label attached to catalog entries.
type Tag struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// ListTags returns the tag table used to resolve tag ids to labels.
func (c *Client) ListTags(ctx context.Context) (TagTable, error) {
	var tags []Tag
	if err := c.get(ctx, "tag", nil, &tags); err != nil {
		return nil, err
	}
	return NewTagTable(tags), nil
}
