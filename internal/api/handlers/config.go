// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/buildinfo"
	"github.com/autobrr/janitor/internal/domain"
)

// ConfigSource is the live application configuration.
type ConfigSource interface {
	Current() domain.Config
	UpdateLogSettings(level, logPath string, maxSize, maxBackups int) error
}

// ConfigHandler exposes the non-secret part of the configuration.
type ConfigHandler struct {
	cfg ConfigSource
}

func NewConfigHandler(cfg ConfigSource) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

func (h *ConfigHandler) RegisterRoutes(r chi.Router) {
	r.Route("/config", func(r chi.Router) {
		r.Get("/", h.getConfig)
		r.Patch("/logs", h.updateLogSettings)
	})
}

type ServiceEndpoint struct {
	URL        string `json:"url"`
	Configured bool   `json:"configured"`
}

// ConfigResponse never carries tokens, API keys or passwords.
type ConfigResponse struct {
	Version       string                     `json:"version"`
	Host          string                     `json:"host"`
	Port          int                        `json:"port"`
	BaseURL       string                     `json:"baseUrl"`
	LogLevel      string                     `json:"logLevel"`
	LogPath       string                     `json:"logPath"`
	LogMaxSize    int                        `json:"logMaxSize"`
	LogMaxBackups int                        `json:"logMaxBackups"`
	Services      map[string]ServiceEndpoint `json:"services"`
	Rules         domain.RulesConfig         `json:"rules"`
	Safety        domain.SafetyConfig        `json:"safety"`
	App           domain.AppConfig           `json:"app"`
	Scheduler     domain.SchedulerConfig     `json:"scheduler"`
}

type LogSettingsRequest struct {
	LogLevel      *string `json:"logLevel"`
	LogPath       *string `json:"logPath"`
	LogMaxSize    *int    `json:"logMaxSize"`
	LogMaxBackups *int    `json:"logMaxBackups"`
}

func endpoint(url string) ServiceEndpoint {
	url = strings.TrimSpace(url)
	return ServiceEndpoint{URL: url, Configured: url != ""}
}

func (h *ConfigHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, newConfigResponse(h.cfg.Current()))
}

func newConfigResponse(cfg domain.Config) ConfigResponse {
	return ConfigResponse{
		Version:       buildinfo.Version,
		Host:          cfg.Host,
		Port:          cfg.Port,
		BaseURL:       cfg.BaseURL,
		LogLevel:      cfg.LogLevel,
		LogPath:       cfg.LogPath,
		LogMaxSize:    cfg.LogMaxSize,
		LogMaxBackups: cfg.LogMaxBackups,
		Services: map[string]ServiceEndpoint{
			"plex":        endpoint(cfg.Plex.URL),
			"tautulli":    endpoint(cfg.Tautulli.URL),
			"radarr":      endpoint(cfg.Radarr.URL),
			"sonarr":      endpoint(cfg.Sonarr.URL),
			"overseerr":   endpoint(cfg.Overseerr.URL),
			"qbittorrent": endpoint(cfg.QBittorrent.URL),
		},
		Rules:     cfg.Rules,
		Safety:    cfg.Safety,
		App:       cfg.App,
		Scheduler: cfg.Scheduler,
	}
}

func (h *ConfigHandler) updateLogSettings(w http.ResponseWriter, r *http.Request) {
	var req LogSettingsRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	cur := h.cfg.Current()
	level, logPath, maxSize, maxBackups := cur.LogLevel, cur.LogPath, cur.LogMaxSize, cur.LogMaxBackups
	if req.LogLevel != nil {
		level = strings.TrimSpace(*req.LogLevel)
	}
	if req.LogPath != nil {
		logPath = strings.TrimSpace(*req.LogPath)
	}
	if req.LogMaxSize != nil {
		maxSize = *req.LogMaxSize
	}
	if req.LogMaxBackups != nil {
		maxBackups = *req.LogMaxBackups
	}
	if maxSize < 0 || maxBackups < 0 {
		RespondError(w, http.StatusBadRequest, "Log rotation settings must not be negative")
		return
	}

	if err := h.cfg.UpdateLogSettings(level, logPath, maxSize, maxBackups); err != nil {
		log.Error().Err(err).Msg("api: failed to update log settings")
		RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, newConfigResponse(h.cfg.Current()))
}
