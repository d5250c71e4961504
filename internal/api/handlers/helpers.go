// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/models"
	"github.com/autobrr/janitor/internal/services/executor"
	"github.com/autobrr/janitor/internal/services/pipeline"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("Failed to encode JSON response")
		}
	}
}

// RespondError sends an error response
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{
		Error: message,
	})
}

// statusForError maps service sentinel errors onto HTTP status codes.
func statusForError(err error) (int, bool) {
	switch {
	case errors.Is(err, models.ErrPlanNotFound), errors.Is(err, models.ErrProtectionNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, models.ErrPlanNotDraft), errors.Is(err, pipeline.ErrScanInProgress):
		return http.StatusConflict, true
	case errors.Is(err, executor.ErrNoSelectedItems), errors.Is(err, models.ErrInvalidProtection):
		return http.StatusBadRequest, true
	}
	return 0, false
}

// RespondServiceError writes the status matching a known sentinel error, or a
// 500 with fallbackMessage. The underlying error is only logged for 500s.
func RespondServiceError(w http.ResponseWriter, err error, fallbackMessage string) {
	if status, ok := statusForError(err); ok {
		RespondError(w, status, err.Error())
		return
	}
	log.Error().Err(err).Msg(fallbackMessage)
	RespondError(w, http.StatusInternalServerError, fallbackMessage)
}

// DecodeJSON decodes the request body into the provided struct.
// Returns false if decoding fails (error already sent to client).
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, dest *T) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// DecodeJSONOptional decodes the request body into the provided struct.
// Returns true if decoding succeeds or body is empty (io.EOF).
func DecodeJSONOptional[T any](w http.ResponseWriter, r *http.Request, dest *T) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil && err != io.EOF {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// ParseIntParam64 extracts and validates a generic int64 URL parameter.
func ParseIntParam64(w http.ResponseWriter, r *http.Request, paramName, displayName string) (int64, bool) {
	str, ok := ParseStringParam(w, r, paramName, displayName)
	if !ok {
		return 0, false
	}
	value, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid "+displayName)
		return 0, false
	}
	return value, true
}

// ParsePositiveID64 is ParseIntParam64 restricted to values > 0. Database ids
// are always positive.
func ParsePositiveID64(w http.ResponseWriter, r *http.Request, paramName, displayName string) (int64, bool) {
	value, ok := ParseIntParam64(w, r, paramName, displayName)
	if !ok {
		return 0, false
	}
	if value <= 0 {
		RespondError(w, http.StatusBadRequest, "Invalid "+displayName)
		return 0, false
	}
	return value, true
}

// ParseStringParam extracts a URL parameter, trimmed of whitespace.
// Returns false if missing (error already sent).
func ParseStringParam(w http.ResponseWriter, r *http.Request, paramName, displayName string) (string, bool) {
	value := strings.TrimSpace(chi.URLParam(r, paramName))
	if value == "" {
		RespondError(w, http.StatusBadRequest, displayName+" is required")
		return "", false
	}
	return value, true
}

// ParsePlanID extracts the planID URL parameter.
func ParsePlanID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return ParsePositiveID64(w, r, "planID", "plan ID")
}

// ParseRunID extracts the runID URL parameter.
func ParseRunID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	return ParsePositiveID64(w, r, "runID", "run ID")
}

// PaginationParams holds parsed pagination parameters.
type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination extracts and validates pagination parameters from query string.
// Uses provided defaults and enforces maxLimit. Invalid values are silently ignored.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) PaginationParams {
	p := PaginationParams{Limit: defaultLimit, Offset: 0}

	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			if parsed > maxLimit {
				parsed = maxLimit
			}
			p.Limit = parsed
		}
	}

	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			p.Offset = parsed
		}
	}

	return p
}

// paginate returns the window of s described by p.
func paginate[T any](s []T, p PaginationParams) []T {
	if p.Offset >= len(s) {
		return []T{}
	}
	end := p.Offset + p.Limit
	if p.Limit <= 0 || end > len(s) {
		end = len(s)
	}
	return s[p.Offset:end]
}
