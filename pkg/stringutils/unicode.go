// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var diacriticFolder = NewMemo(memoTTL, foldDiacritics)

// Letters without an NFKD decomposition to ASCII.
var ligatures = strings.NewReplacer(
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O",
	"ß", "ss",
	"ð", "d", "Ð", "D",
	"þ", "th", "Þ", "TH",
)

func dropMarks(r rune) rune {
	if unicode.Is(unicode.Mn, r) {
		return -1
	}
	return r
}

func foldDiacritics(s string) string {
	return strings.Map(dropMarks, norm.NFKD.String(ligatures.Replace(s)))
}

// NormalizeUnicode folds accented letters and ligatures to their plain
// form, so "Shōgun" and "Shogun" compare equal. Results are memoized.
func NormalizeUnicode(s string) string {
	if s == "" {
		return ""
	}
	return diacriticFolder.Apply(s)
}
