// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package qbittorrent

import (
	"context"
	"fmt"
	"strings"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/janitor/internal/services/torrentmatch"
)

const filesConcurrency = 8

// Torrent is the flattened torrent state exposed to the rest of the service.
type Torrent struct {
	Hash        string
	Name        string
	SavePath    string
	ContentPath string
	Category    string
	Tags        []string
	State       string
	Size        int64
	Files       []string
}

// ForMatching converts t into the associator's input type.
func (t Torrent) ForMatching() torrentmatch.Torrent {
	return torrentmatch.Torrent{
		Hash:        t.Hash,
		Name:        t.Name,
		SavePath:    t.SavePath,
		ContentPath: t.ContentPath,
		Category:    t.Category,
		Files:       t.Files,
	}
}

// ForMatching converts a slice of torrents.
func ForMatching(torrents []Torrent) []torrentmatch.Torrent {
	out := make([]torrentmatch.Torrent, 0, len(torrents))
	for _, t := range torrents {
		out = append(out, t.ForMatching())
	}
	return out
}

// ListTorrents returns every torrent with its file list. File listing is
// skipped on web API versions that lack it, and a per-torrent file failure
// only drops that torrent's files.
func (c *Client) ListTorrents(ctx context.Context) ([]Torrent, error) {
	if err := c.ensureConnected(ctx); err != nil {
		return nil, err
	}

	raw, err := c.api.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{})
	if err != nil {
		return nil, fmt.Errorf("list torrents: %w", err)
	}

	torrents := make([]Torrent, len(raw))
	for i, t := range raw {
		torrents[i] = Torrent{
			Hash:        t.Hash,
			Name:        t.Name,
			SavePath:    t.SavePath,
			ContentPath: t.ContentPath,
			Category:    t.Category,
			Tags:        splitTags(t.Tags),
			State:       string(t.State),
			Size:        t.Size,
		}
	}

	if !c.SupportsFiles() {
		return torrents, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(filesConcurrency)
	for i := range torrents {
		if torrents[i].Hash == "" {
			continue
		}
		g.Go(func() error {
			files, err := c.api.GetFilesInformationCtx(gctx, torrents[i].Hash)
			if err != nil {
				log.Debug().Err(err).Str("hash", torrents[i].Hash).Msg("qbittorrent: failed to list torrent files")
				return nil
			}
			if files == nil {
				return nil
			}
			names := make([]string, 0, len(*files))
			for _, f := range *files {
				names = append(names, f.Name)
			}
			torrents[i].Files = names
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return torrents, nil
}

// DeleteTorrents removes the given torrents.
func (c *Client) DeleteTorrents(ctx context.Context, hashes []string, deleteFiles bool) error {
	if len(hashes) == 0 {
		return nil
	}
	if err := c.ensureConnected(ctx); err != nil {
		return err
	}
	if err := c.api.DeleteTorrentsCtx(ctx, hashes, deleteFiles); err != nil {
		return fmt.Errorf("delete %d torrents: %w", len(hashes), err)
	}

	log.Info().Int("count", len(hashes)).Bool("deleteFiles", deleteFiles).Msg("qbittorrent: torrents deleted")
	return nil
}

// IsProtectedCategory reports whether category is configured as protected.
func (c *Client) IsProtectedCategory(category string) bool {
	for _, p := range c.protectCategories {
		if strings.EqualFold(strings.TrimSpace(p), strings.TrimSpace(category)) {
			return true
		}
	}
	return false
}

func splitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
