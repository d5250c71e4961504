// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tautulli reads watch history from Tautulli and folds it into
// per-title watch statistics.
package tautulli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
)

const (
	defaultTimeout       = 60 * time.Second
	defaultHistoryLength = 10000
)

// Config holds the options for constructing a Client.
type Config struct {
	Host          string
	APIKey        string
	Timeout       int
	HTTPClient    *http.Client
	HistoryLength int
}

type Client struct {
	host          string
	apiKey        string
	httpClient    *http.Client
	historyLength int
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
	length := cfg.HistoryLength
	if length <= 0 {
		length = defaultHistoryLength
	}

	return &Client{
		host:          strings.TrimRight(strings.TrimSpace(cfg.Host), "/"),
		apiKey:        cfg.APIKey,
		httpClient:    client,
		historyLength: length,
	}
}

type envelope struct {
	Response struct {
		Result  string          `json:"result"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	} `json:"response"`
}

// History returns the most recent watch history entries.
func (c *Client) History(ctx context.Context) ([]HistoryEntry, error) {
	query := url.Values{}
	query.Set("cmd", "get_history")
	query.Set("length", strconv.Itoa(c.historyLength))

	var env envelope
	err := retry.Do(
		func() error { return c.call(ctx, query, &env) },
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	if env.Response.Result != "" && env.Response.Result != "success" {
		return nil, errors.Errorf("tautulli get_history failed: %s", env.Response.Message)
	}

	return decodeHistory(env.Response.Data)
}

// decodeHistory accepts both {"data": [...]} and a bare list, which differ
// between Tautulli versions.
func decodeHistory(raw json.RawMessage) ([]HistoryEntry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var entries []HistoryEntry
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, errors.Wrap(err, "decode tautulli history list")
		}
		return entries, nil
	}

	var nested struct {
		Data []HistoryEntry `json:"data"`
	}
	if err := json.Unmarshal(raw, &nested); err != nil {
		return nil, errors.Wrap(err, "decode tautulli history")
	}
	return nested.Data, nil
}

func (c *Client) call(ctx context.Context, query url.Values, out any) error {
	endpoint, err := url.JoinPath(c.host, "api", "v2")
	if err != nil {
		return errors.Wrap(err, "build tautulli endpoint")
	}

	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return errors.Wrap(err, "build tautulli request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "tautulli request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err := fmt.Errorf("tautulli returned status %d", resp.StatusCode)
		if resp.StatusCode < http.StatusInternalServerError {
			return retry.Unrecoverable(err)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode tautulli response")
	}
	return nil
}

// WatchMaps fetches the history and builds the watch maps.
func (c *Client) WatchMaps(ctx context.Context) (*WatchMaps, error) {
	history, err := c.History(ctx)
	if err != nil {
		return nil, err
	}
	return BuildWatchMaps(history), nil
}

// Version returns the Tautulli version. It is not retried.
func (c *Client) Version(ctx context.Context) (string, error) {
	query := url.Values{}
	query.Set("cmd", "get_tautulli_info")

	var env envelope
	if err := c.call(ctx, query, &env); err != nil {
		return "", err
	}
	if env.Response.Result != "" && env.Response.Result != "success" {
		return "", errors.Errorf("tautulli get_tautulli_info failed: %s", env.Response.Message)
	}

	var info struct {
		Version string `json:"tautulli_version"`
	}
	if err := json.Unmarshal(env.Response.Data, &info); err != nil {
		return "", errors.Wrap(err, "decode tautulli info")
	}
	return info.Version, nil
}
