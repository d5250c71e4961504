// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torrentmatch associates download-client torrents with media entities.
//
// Each torrent is run through an ordered list of pure strategies and the first
// one that matches decides the reason. Paths are compared case-folded with
// forward-slash semantics; the reported content path of a torrent is never
// trusted and is always rebuilt from its save path and name.
package torrentmatch

import (
	"path"
	"strings"

	"github.com/moistari/rls"
	"github.com/rs/zerolog/log"

	"github.com/autobrr/janitor/pkg/pathcmp"
	"github.com/autobrr/janitor/pkg/stringutils"
)

// Torrent is the subset of download-client state used for matching.
type Torrent struct {
	Hash        string
	Name        string
	SavePath    string
	ContentPath string
	Category    string
	// Files are paths relative to the content path, or absolute.
	Files []string
}

// Match is one torrent associated with a media path.
type Match struct {
	Hash     string `json:"hash"`
	Category string `json:"category,omitempty"`
	Reason   string `json:"reason"`
}

// Matches is the result of FindMatches.
type Matches []Match

// Hashes returns the torrent hashes of m in order.
func (m Matches) Hashes() []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for _, match := range m {
		out = append(out, match.Hash)
	}
	return out
}

// Categories returns the distinct non-empty categories of m in order.
func (m Matches) Categories() []string {
	var out []string
	seen := make(map[string]struct{}, len(m))
	for _, match := range m {
		if match.Category == "" {
			continue
		}
		if _, ok := seen[match.Category]; ok {
			continue
		}
		seen[match.Category] = struct{}{}
		out = append(out, match.Category)
	}
	return out
}

// Options tune the associator.
type Options struct {
	// YearFromRelease parses scene-style torrent names for a year when the name
	// has no parenthesised year.
	YearFromRelease bool
}

// Associator runs the matching strategies against a torrent list.
type Associator struct {
	strategies []Strategy
	opts       Options
}

// New returns an Associator with the default strategies.
func New(opts Options) *Associator {
	return &Associator{strategies: DefaultStrategies(), opts: opts}
}

// FindMatches returns every torrent associated with mediaPath using the default
// options.
func FindMatches(mediaPath, mediaTitle string, torrents []Torrent) Matches {
	return New(Options{}).FindMatches(mediaPath, mediaTitle, torrents)
}

// FindMatches returns every torrent associated with mediaPath. mediaTitle is
// optional and improves name based matching. Torrents without a hash are
// skipped and an empty media path never matches.
func (a *Associator) FindMatches(mediaPath, mediaTitle string, torrents []Torrent) Matches {
	if strings.TrimSpace(mediaPath) == "" || len(torrents) == 0 {
		return nil
	}

	target := NewTarget(mediaPath, mediaTitle)

	var matches Matches
	for _, t := range torrents {
		if t.Hash == "" {
			continue
		}
		p := a.prepare(t)
		for _, s := range a.strategies {
			res := s.Match(target, p)
			if !res.Matched {
				continue
			}
			matches = append(matches, Match{Hash: t.Hash, Category: t.Category, Reason: res.Reason})
			log.Trace().
				Str("hash", t.Hash).
				Str("torrent", t.Name).
				Str("media", target.path).
				Str("reason", res.Reason).
				Msg("torrentmatch: matched")
			break
		}
	}

	if len(matches) > 0 {
		log.Debug().
			Str("media", target.path).
			Int("matches", len(matches)).
			Int("torrents", len(torrents)).
			Msg("torrentmatch: association complete")
	}

	return matches
}

// Target is the precomputed media side of a comparison.
type Target struct {
	path       string
	base       string
	baseClean  string
	titleClean string
	year       int
	dirParts   []string
	tailParts  []string
}

// NewTarget precomputes the comparable forms of a media path and title.
func NewTarget(mediaPath, mediaTitle string) Target {
	p := pathcmp.NormalizePathFold(mediaPath)
	t := Target{path: p}
	if p == "" {
		return t
	}

	t.base = path.Base(p)
	t.baseClean = stringutils.CleanTitle(t.base)

	title := mediaTitle
	if strings.TrimSpace(title) == "" {
		title = path.Base(pathcmp.NormalizePath(mediaPath))
	}
	t.titleClean = stringutils.CleanTitle(title)

	t.year = stringutils.ParenYear(title)
	if t.year == 0 {
		t.year = stringutils.ParenYear(mediaPath)
	}

	t.dirParts = significantParts(path.Dir(p))

	parts := significantParts(p)
	if len(parts) > pathPartCount {
		parts = parts[len(parts)-pathPartCount:]
	}
	t.tailParts = parts

	return t
}

type preparedFile struct {
	path      string
	base      string
	baseClean string
}

// prepared is the precomputed torrent side of a comparison.
type prepared struct {
	contentPath string
	savePath    string
	nameLower   string
	nameClean   string
	year        int
	files       []preparedFile
}

func (a *Associator) prepare(t Torrent) prepared {
	p := prepared{
		savePath:  pathcmp.NormalizePathFold(t.SavePath),
		nameLower: strings.ToLower(t.Name),
		nameClean: stringutils.CleanTitle(t.Name),
		year:      stringutils.ParenYear(t.Name),
	}

	if t.SavePath != "" && t.Name != "" {
		p.contentPath = strings.ToLower(pathcmp.Join(t.SavePath, t.Name))
	}

	if p.year == 0 && a.opts.YearFromRelease && t.Name != "" {
		p.year = rls.ParseString(t.Name).Year
	}

	base := p.contentPath
	if base == "" {
		base = p.savePath
	}
	for _, f := range t.Files {
		if strings.TrimSpace(f) == "" {
			continue
		}
		full := f
		if !isAbs(f) && base != "" {
			full = pathcmp.Join(base, f)
		}
		norm := pathcmp.NormalizePathFold(full)
		p.files = append(p.files, preparedFile{
			path:      norm,
			base:      path.Base(norm),
			baseClean: stringutils.CleanTitle(path.Base(norm)),
		})
	}

	return p
}

func isAbs(p string) bool {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.HasPrefix(p, "/") || pathcmp.IsWindowsDriveAbs(p)
}
