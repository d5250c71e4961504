// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

const apiKeyHeader = "X-API-Key"

// APIKeyFromQuery promotes an API key query param into the X-API-Key header.
// Use this only on routes that explicitly allow query param auth.
func APIKeyFromQuery(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(apiKeyHeader) == "" {
				if apiKey := r.URL.Query().Get(param); apiKey != "" {
					r.Header.Set(apiKeyHeader, apiKey)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// providedKey reads the key from X-API-Key, falling back to a bearer token.
func providedKey(r *http.Request) string {
	if key := r.Header.Get(apiKeyHeader); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// RequireAPIKey rejects requests that do not carry apiKey. An empty apiKey
// rejects everything.
func RequireAPIKey(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := providedKey(r)
			if apiKey == "" || provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				if provided != "" {
					log.Warn().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Msg("api: invalid API key")
				}
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
