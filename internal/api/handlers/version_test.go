// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/janitor/internal/buildinfo"
)

func TestVersionHandler_GetVersion(t *testing.T) {
	t.Parallel()

	h := NewVersionHandler()

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	rec := httptest.NewRecorder()

	h.GetVersion(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, buildinfo.Version, resp.Version)
	assert.Contains(t, resp.UserAgent, "janitor/")
}
