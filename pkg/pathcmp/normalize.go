// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pathcmp provides shared path normalization helpers used when comparing
// paths reported by different services. Library servers, catalog managers and
// torrent clients may run on different hosts and operating systems, so paths are
// compared using forward-slash path semantics (not filepath) and are never
// resolved against the local filesystem.
package pathcmp

import (
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// IsWindowsDriveAbs returns true if p is a Windows absolute path (e.g., C:/...).
// It requires a drive letter, colon, and forward slash. Backslashes should be
// normalized before calling.
func IsWindowsDriveAbs(p string) bool {
	if len(p) < 3 {
		return false
	}
	c := p[0]
	return isDriveLetter(c) && p[1] == ':' && p[2] == '/'
}

func isDriveLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

// NormalizePath normalizes a path for comparison by:
// - Converting backslashes to forward slashes
// - Composing unicode to NFC so macOS and Linux spellings compare equal
// - Cleaning the path (removing . and .. where possible)
// - Removing trailing slashes (preserving Windows drive roots like C:/)
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = strings.ReplaceAll(p, "\\", "/")
	p = norm.NFC.String(p)

	// path.Clean turns C:/ into C:, keep the drive root intact.
	if len(p) >= 2 && isDriveLetter(p[0]) && p[1] == ':' {
		drive := p[:2]
		rest := p[2:]
		if rest == "" {
			return drive
		}

		rest = path.Clean(rest)
		if rest == "/" || rest == "." {
			return drive + "/"
		}
		return drive + rest
	}

	p = path.Clean(p)
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// NormalizePathFold is a case-folded version of NormalizePath for case-insensitive comparisons.
func NormalizePathFold(p string) string {
	return strings.ToLower(NormalizePath(p))
}

// IsAncestor reports whether parent is a strict ancestor directory of child.
// Both arguments must already be normalized.
func IsAncestor(parent, child string) bool {
	if parent == "" || child == "" || parent == child {
		return false
	}
	if parent == "/" || strings.HasSuffix(parent, ":/") {
		return strings.HasPrefix(child, parent)
	}
	return strings.HasPrefix(child, parent+"/")
}

// Related reports whether a and b are equal or one contains the other.
// Both arguments must already be normalized.
func Related(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return a == b || IsAncestor(a, b) || IsAncestor(b, a)
}

// Join joins a base directory with a child name using forward slashes.
func Join(base, name string) string {
	if base == "" {
		return NormalizePath(name)
	}
	if name == "" {
		return NormalizePath(base)
	}
	return NormalizePath(strings.TrimRight(strings.ReplaceAll(base, "\\", "/"), "/") + "/" + strings.ReplaceAll(name, "\\", "/"))
}

// Base returns the last element of a normalized path.
func Base(p string) string {
	p = NormalizePath(p)
	if p == "" {
		return ""
	}
	return path.Base(p)
}

// Dir returns all but the last element of a normalized path.
func Dir(p string) string {
	p = NormalizePath(p)
	if p == "" {
		return ""
	}
	return path.Dir(p)
}

// Segments splits a normalized path into its non-empty elements.
func Segments(p string) []string {
	p = NormalizePath(p)
	if p == "" {
		return nil
	}
	parts := strings.Split(p, "/")
	out := parts[:0]
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
