// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/internal/media"
	"github.com/autobrr/janitor/internal/models"
)

// catalogStep deletes the catalog entry of one item.
type catalogStep struct {
	service string
	run     func(ctx context.Context) error
}

// resolveCatalogStep works out how the catalog entry of item is deleted.
// It fails when the item cannot be deleted at all, before any step runs.
func (s *Service) resolveCatalogStep(item *models.PlanItem) (catalogStep, error) {
	switch item.MediaType {
	case media.KindMovie:
		id := item.MetaInt(models.MetaRadarrID)
		if s.clients.Radarr == nil {
			return catalogStep{}, errors.New("Radarr deletion failed: radarr is not configured")
		}
		if id == 0 {
			return catalogStep{}, errors.New("Radarr deletion failed: item has no radarr id")
		}
		return catalogStep{service: "Radarr", run: func(ctx context.Context) error {
			return s.clients.Radarr.DeleteMovie(ctx, id, true, false)
		}}, nil

	case media.KindSeries:
		id := item.MetaInt(models.MetaSonarrID)
		if s.clients.Sonarr == nil {
			return catalogStep{}, errors.New("Sonarr deletion failed: sonarr is not configured")
		}
		if id == 0 {
			return catalogStep{}, errors.New("Sonarr deletion failed: item has no sonarr id")
		}
		return catalogStep{service: "Sonarr", run: func(ctx context.Context) error {
			return s.clients.Sonarr.DeleteSeries(ctx, id, true)
		}}, nil

	case media.KindEpisode:
		fileID := item.MetaInt(models.MetaEpisodeFileID)
		if s.clients.Sonarr == nil {
			return catalogStep{}, errors.New("Sonarr deletion failed: sonarr is not configured")
		}
		if fileID == 0 {
			return catalogStep{}, errors.New("Sonarr deletion failed: item has no episode file id")
		}
		return catalogStep{service: "Sonarr", run: func(ctx context.Context) error {
			return s.clients.Sonarr.DeleteEpisodeFile(ctx, fileID)
		}}, nil
	}

	return catalogStep{}, fmt.Errorf("unsupported media type %q", item.MediaType)
}

// executeItem runs the three steps for item and records them on runItem.
func (s *Service) executeItem(ctx context.Context, item *models.PlanItem, runItem *models.RunItem, dryRun bool) error {
	catalog, err := s.resolveCatalogStep(item)
	if err != nil {
		return err
	}

	logger := log.With().Int64("runID", runItem.RunID).Int64("planItemID", item.ID).Str("title", item.Title).Logger()

	// 1. torrents, keeping the files for the catalog manager to delete.
	if len(item.QBHashes) > 0 {
		if s.clients.Torrents == nil && !dryRun {
			return errors.New("qBittorrent deletion failed: qbittorrent is not configured")
		}
		if !dryRun {
			if err := s.clients.Torrents.DeleteTorrents(ctx, item.QBHashes, false); err != nil {
				return fmt.Errorf("qBittorrent deletion failed: %w", err)
			}
		}
		now := s.now().UTC()
		runItem.TorrentRemoved = true
		runItem.TorrentRemovedAt = &now
		logger.Debug().Strs("hashes", item.QBHashes).Bool("dryRun", dryRun).Msg("executor: torrents removed")
	}

	// 2. catalog entry and files.
	if !dryRun {
		if err := catalog.run(ctx); err != nil {
			err = fmt.Errorf("%s deletion failed: %w", catalog.service, err)
			if runItem.TorrentRemoved {
				runItem.ManualReconciliation = true
				return errors.New(err.Error() + manualReconciliationSuffix)
			}
			return err
		}
	}
	now := s.now().UTC()
	runItem.CatalogEntryRemoved = true
	runItem.CatalogEntryRemovedAt = &now
	logger.Debug().Str("service", catalog.service).Bool("dryRun", dryRun).Msg("executor: catalog entry removed")

	// 3. library refresh, best effort.
	if s.clients.Library != nil {
		if !dryRun {
			if err := s.clients.Library.RefreshSection(ctx, item.MediaType); err != nil {
				logger.Debug().Err(err).Msg("executor: library refresh failed")
				return nil
			}
		}
		now := s.now().UTC()
		runItem.PresentationRefreshed = true
		runItem.PresentationRefreshedAt = &now
	}

	return nil
}
