// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	videoExtRe   = regexp.MustCompile(`(?i)\.(mkv|mp4|avi|mov|m4v)$`)
	parenYearRe  = regexp.MustCompile(`\((\d{4})\)`)
	yearSuffixRe = regexp.MustCompile(`\s*\(\d{4}\)`)

	titleCleaner = NewMemo(memoTTL, cleanTitleInner)
)

func cleanTitleInner(s string) string {
	s = strings.ToLower(NormalizeUnicode(s))
	s = videoExtRe.ReplaceAllString(s, "")
	s = yearSuffixRe.ReplaceAllString(s, "")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// CleanTitle reduces a title or file name to a comparable form:
//   - diacritics removed, lower-cased
//   - trailing video extension and "(YYYY)" groups stripped
//   - punctuation dropped, whitespace collapsed
//
// Examples:
//   - "Inception (2010).mkv" → "inception"
//   - "Amélie: Le Fabuleux Destin" → "amelie le fabuleux destin"
func CleanTitle(s string) string {
	if s == "" {
		return ""
	}
	return titleCleaner.Apply(s)
}

// ParenYear extracts the first parenthesised four digit year, e.g. "Heat (1995)".
// It returns 0 when none is present.
func ParenYear(s string) int {
	m := parenYearRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return year
}

// CharOverlap returns the fraction of runes in a that also occur somewhere in b.
func CharOverlap(a, b string) float64 {
	ar := []rune(a)
	if len(ar) == 0 {
		return 0
	}
	set := make(map[rune]struct{}, len(b))
	for _, r := range b {
		set[r] = struct{}{}
	}
	common := 0
	for _, r := range ar {
		if _, ok := set[r]; ok {
			common++
		}
	}
	return float64(common) / float64(len(ar))
}

// SimilarityRatio returns 2*M/T where M is the number of runes in the matching
// blocks found by recursive longest-common-substring search and T is the total
// rune count of both inputs. Two empty strings are identical (1.0).
func SimilarityRatio(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	total := len(ar) + len(br)
	if total == 0 {
		return 1
	}

	b2j := make(map[rune][]int, len(br))
	for j, r := range br {
		b2j[r] = append(b2j[r], j)
	}

	type span struct{ alo, ahi, blo, bhi int }
	matched := 0
	queue := []span{{0, len(ar), 0, len(br)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(ar, b2j, s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		matched += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}

	return 2 * float64(matched) / float64(total)
}

// longestMatch finds the longest block a[i:i+k] == b[j:j+k] inside the given
// bounds, preferring the earliest start in a and then in b.
func longestMatch(a []rune, b2j map[rune][]int, alo, ahi, blo, bhi int) (int, int, int) {
	besti, bestj, bestk := alo, blo, 0
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return besti, bestj, bestk
}
