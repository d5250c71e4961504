// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentmatch

import (
	"strings"

	"github.com/autobrr/janitor/pkg/pathcmp"
	"github.com/autobrr/janitor/pkg/stringutils"
)

// Match reasons, grouped by the strategy that produces them.
const (
	ReasonExactContentPath   = "exact_content_path"
	ReasonContentParentChild = "path_parent_child"
	ReasonExactSavePath      = "exact_save_path"
	ReasonSavePathParent     = "save_path_parent_child"

	ReasonExactFilename   = "exact_filename_match"
	ReasonFilePath        = "file_path_match"
	ReasonFilenamePartial = "filename_partial_match"

	ReasonNameMatch      = "torrent_name_match"
	ReasonNameCommonPath = "torrent_name_with_common_path"
	ReasonNameSimilarity = "torrent_name_similarity"

	ReasonYearTitle = "year_and_title_match"

	ReasonPartInContent = "path_part_in_content"
	ReasonPartInSave    = "path_part_in_save"
	ReasonPartInName    = "path_part_in_name"
)

const (
	fileOverlapThreshold = 0.8
	nameOverlapThreshold = 0.6
	titlePrefixLen       = 5
	pathPartCount        = 3
)

// Result is the outcome of one strategy for one torrent.
type Result struct {
	Matched bool
	Reason  string
}

func hit(reason string) Result { return Result{Matched: true, Reason: reason} }

// Strategy is a pure matching function.
type Strategy struct {
	Name  string
	Match func(target Target, t prepared) Result
}

// DefaultStrategies returns the strategies in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "path", Match: matchPath},
		{Name: "files", Match: matchFiles},
		{Name: "name", Match: matchName},
		{Name: "year_title", Match: matchYearTitle},
		{Name: "path_parts", Match: matchPathParts},
	}
}

// matchPath compares the media path against the reconstructed content path
// (save path + name) and the raw save path.
func matchPath(target Target, t prepared) Result {
	if target.path == "" {
		return Result{}
	}

	if t.contentPath != "" {
		if target.path == t.contentPath {
			return hit(ReasonExactContentPath)
		}
		if pathcmp.Related(target.path, t.contentPath) {
			return hit(ReasonContentParentChild)
		}
	}

	if t.savePath != "" {
		if target.path == t.savePath {
			return hit(ReasonExactSavePath)
		}
		if pathcmp.Related(target.path, t.savePath) {
			return hit(ReasonSavePathParent)
		}
	}

	return Result{}
}

// matchFiles compares the media path against every file listed in the torrent.
func matchFiles(target Target, t prepared) Result {
	if target.path == "" || len(t.files) == 0 {
		return Result{}
	}

	for _, f := range t.files {
		if target.base == f.base {
			return hit(ReasonExactFilename)
		}
		if target.path == f.path {
			return hit(ReasonFilePath)
		}
		if strings.Contains(f.path, target.path) || strings.Contains(target.path, f.path) {
			return hit(ReasonFilePath)
		}

		if len(target.baseClean) > 3 && f.baseClean != "" &&
			(strings.Contains(f.baseClean, target.baseClean) || strings.Contains(target.baseClean, f.baseClean)) &&
			stringutils.CharOverlap(target.baseClean, f.baseClean) >= fileOverlapThreshold {
			return hit(ReasonFilenamePartial)
		}
	}

	return Result{}
}

// matchName compares the cleaned media title with the cleaned torrent name.
func matchName(target Target, t prepared) Result {
	if t.nameClean == "" || len([]rune(target.titleClean)) < 3 {
		return Result{}
	}

	if strings.Contains(t.nameClean, target.titleClean) || strings.Contains(target.titleClean, t.nameClean) {
		if sharesSegment(target.dirParts, t.savePath) {
			return hit(ReasonNameCommonPath)
		}
		return hit(ReasonNameMatch)
	}

	if len([]rune(target.titleClean)) > 5 &&
		stringutils.CharOverlap(target.titleClean, t.nameClean) >= nameOverlapThreshold {
		return hit(ReasonNameSimilarity)
	}

	return Result{}
}

func sharesSegment(dirParts []string, savePath string) bool {
	if len(dirParts) == 0 || savePath == "" {
		return false
	}
	for _, p := range significantParts(savePath) {
		for _, d := range dirParts {
			if p == d {
				return true
			}
		}
	}
	return false
}

// matchYearTitle requires a year on both sides within one year and a shared
// five-character title prefix.
func matchYearTitle(target Target, t prepared) Result {
	if target.year == 0 || t.year == 0 {
		return Result{}
	}
	diff := target.year - t.year
	if diff < -1 || diff > 1 {
		return Result{}
	}

	title := []rune(target.titleClean)
	if len(title) <= titlePrefixLen {
		return Result{}
	}
	if strings.Contains(t.nameClean, string(title[:titlePrefixLen])) {
		return hit(ReasonYearTitle)
	}
	if name := []rune(t.nameClean); len(name) >= titlePrefixLen && strings.Contains(target.titleClean, string(name[:titlePrefixLen])) {
		return hit(ReasonYearTitle)
	}
	return Result{}
}

// matchPathParts is the last resort: one of the last three significant path
// segments appears verbatim in the torrent's paths or name.
func matchPathParts(target Target, t prepared) Result {
	if len(target.tailParts) == 0 {
		return Result{}
	}

	for _, part := range target.tailParts {
		if t.contentPath != "" && strings.Contains(t.contentPath, part) {
			return hit(ReasonPartInContent)
		}
	}
	for _, part := range target.tailParts {
		if t.savePath != "" && strings.Contains(t.savePath, part) {
			return hit(ReasonPartInSave)
		}
	}
	for _, part := range target.tailParts {
		if t.nameLower != "" && strings.Contains(t.nameLower, part) {
			return hit(ReasonPartInName)
		}
	}
	return Result{}
}

func significantParts(p string) []string {
	parts := pathcmp.Segments(p)
	out := parts[:0]
	for _, part := range parts {
		if len([]rune(part)) > 2 {
			out = append(out, part)
		}
	}
	return out
}
