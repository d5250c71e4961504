// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/autobrr/janitor/internal/qbittorrent"
	"github.com/autobrr/janitor/pkg/arr"
	"github.com/autobrr/janitor/pkg/overseerr"
	"github.com/autobrr/janitor/pkg/plex"
	"github.com/autobrr/janitor/pkg/tautulli"
)

// Source names recorded in Plan.Summary.FailedSources.
const (
	SourceRadarr      = "radarr"
	SourceSonarr      = "sonarr"
	SourcePlex        = "plex"
	SourceTautulli    = "tautulli"
	SourceOverseerr   = "overseerr"
	SourceQBittorrent = "qbittorrent"
)

type MovieCatalog interface {
	ListMovies(ctx context.Context) ([]arr.Movie, error)
	ListTags(ctx context.Context) (arr.TagTable, error)
}

type SeriesCatalog interface {
	ListSeries(ctx context.Context) ([]arr.Series, error)
	ListEpisodes(ctx context.Context, seriesID int) ([]arr.Episode, error)
	ListTags(ctx context.Context) (arr.TagTable, error)
}

type LibraryIndex interface {
	ListMovies(ctx context.Context) ([]plex.Item, error)
	ListSeries(ctx context.Context) ([]plex.Item, error)
}

type WatchLedger interface {
	WatchMaps(ctx context.Context) (*tautulli.WatchMaps, error)
}

type RequestTracker interface {
	ListRequests(ctx context.Context) ([]overseerr.Request, error)
}

type TorrentLister interface {
	ListTorrents(ctx context.Context) ([]qbittorrent.Torrent, error)
}

// Sources are the collaborators a scan reads from. Any of them may be nil.
type Sources struct {
	Radarr   MovieCatalog
	Sonarr   SeriesCatalog
	Library  LibraryIndex
	Ledger   WatchLedger
	Requests RequestTracker
	Torrents TorrentLister
}

// fetched is the raw data of one scan.
type fetched struct {
	movies      []arr.Movie
	movieTags   arr.TagTable
	series      []arr.Series
	seriesTags  arr.TagTable
	libMovies   []plex.Item
	libSeries   []plex.Item
	watch       *tautulli.WatchMaps
	requests    []overseerr.Request
	torrents    []qbittorrent.Torrent
	failed      []string
	failedMutex sync.Mutex
}

func (f *fetched) fail(source string, err error) {
	log.Warn().Err(err).Str("source", source).Msg("pipeline: source fetch failed, continuing without it")
	f.failedMutex.Lock()
	f.failed = append(f.failed, source)
	f.failedMutex.Unlock()
}

type fetchTask struct {
	name string
	run  func(ctx context.Context, out *fetched) error
}

func (s *Service) fetchTasks() []fetchTask {
	var tasks []fetchTask

	if s.sources.Radarr != nil {
		tasks = append(tasks, fetchTask{name: SourceRadarr, run: func(ctx context.Context, out *fetched) error {
			// Tags are fetched first: without labels the protected-tag check
			// would silently pass every movie.
			tags, err := s.sources.Radarr.ListTags(ctx)
			if err != nil {
				return fmt.Errorf("list tags: %w", err)
			}
			movies, err := s.sources.Radarr.ListMovies(ctx)
			if err != nil {
				return fmt.Errorf("list movies: %w", err)
			}
			out.movieTags, out.movies = tags, movies
			return nil
		}})
	}

	if s.sources.Sonarr != nil {
		tasks = append(tasks, fetchTask{name: SourceSonarr, run: func(ctx context.Context, out *fetched) error {
			tags, err := s.sources.Sonarr.ListTags(ctx)
			if err != nil {
				return fmt.Errorf("list tags: %w", err)
			}
			series, err := s.sources.Sonarr.ListSeries(ctx)
			if err != nil {
				return fmt.Errorf("list series: %w", err)
			}
			out.seriesTags, out.series = tags, series
			return nil
		}})
	}

	if s.sources.Library != nil {
		tasks = append(tasks, fetchTask{name: SourcePlex, run: func(ctx context.Context, out *fetched) error {
			movies, err := s.sources.Library.ListMovies(ctx)
			if err != nil {
				return fmt.Errorf("list movies: %w", err)
			}
			series, err := s.sources.Library.ListSeries(ctx)
			if err != nil {
				return fmt.Errorf("list series: %w", err)
			}
			out.libMovies, out.libSeries = movies, series
			return nil
		}})
	}

	if s.sources.Ledger != nil {
		tasks = append(tasks, fetchTask{name: SourceTautulli, run: func(ctx context.Context, out *fetched) error {
			maps, err := s.sources.Ledger.WatchMaps(ctx)
			if err != nil {
				return err
			}
			out.watch = maps
			return nil
		}})
	}

	if s.sources.Requests != nil {
		tasks = append(tasks, fetchTask{name: SourceOverseerr, run: func(ctx context.Context, out *fetched) error {
			requests, err := s.sources.Requests.ListRequests(ctx)
			if err != nil {
				return err
			}
			out.requests = requests
			return nil
		}})
	}

	if s.sources.Torrents != nil {
		tasks = append(tasks, fetchTask{name: SourceQBittorrent, run: func(ctx context.Context, out *fetched) error {
			torrents, err := s.sources.Torrents.ListTorrents(ctx)
			if err != nil {
				return err
			}
			out.torrents = torrents
			return nil
		}})
	}

	return tasks
}

// fetchAll runs every configured source. Failures degrade the source to empty
// and are recorded; they never abort the scan.
func (s *Service) fetchAll(ctx context.Context, scanID string) *fetched {
	out := &fetched{}
	tasks := s.fetchTasks()

	run := func(t fetchTask) {
		s.progress.Log(scanID, "fetching "+t.name)
		// Each task writes only its own fields of out.
		if err := t.run(ctx, out); err != nil {
			out.fail(t.name, err)
		}
	}

	if !s.cfg.ParallelFetch {
		for _, t := range tasks {
			run(t)
		}
		return out
	}

	var g errgroup.Group
	for _, t := range tasks {
		g.Go(func() error {
			run(t)
			return nil
		})
	}
	_ = g.Wait()

	return out
}
