// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package stringutils

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemo(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	memo := NewMemo(time.Minute, func(s string) string {
		calls.Add(1)
		return strings.ToLower(s)
	})

	assert.Equal(t, "the matrix", memo.Apply("The Matrix"))
	assert.Equal(t, "the matrix", memo.Apply("The Matrix"))
	assert.Equal(t, int32(1), calls.Load())

	memo.Forget("The Matrix")
	assert.Equal(t, "the matrix", memo.Apply("The Matrix"))
	assert.Equal(t, int32(2), calls.Load())

	years := NewMemo(time.Minute, func(y int) bool { return y >= 2000 })
	assert.True(t, years.Apply(2024))
	assert.False(t, years.Apply(1999))
}

func TestNormalizeUnicode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"Shōgun", "Shogun"},
		{"Amélie", "Amelie"},
		{"Björk", "Bjork"},
		{"Ærø", "AEro"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, NormalizeUnicode(tt.input))
		})
	}
}

func TestCleanTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"extension and year", "Inception (2010).mkv", "inception"},
		{"punctuation", "Amélie: Le Fabuleux Destin", "amelie le fabuleux destin"},
		{"dotted release", "Inception.2010.1080p.BluRay", "inception20101080pbluray"},
		{"whitespace", "  The   Office  ", "the office"},
		{"uppercase extension", "HEAT.MP4", "heat"},
		{"underscore kept", "some_file", "some_file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, CleanTitle(tt.input))
		})
	}
}

func TestParenYear(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2010, ParenYear("Inception (2010)"))
	assert.Equal(t, 1995, ParenYear("/movies/Heat (1995)/Heat (1995).mkv"))
	assert.Equal(t, 0, ParenYear("Inception.2010.1080p"))
	assert.Equal(t, 0, ParenYear(""))
}

func TestCharOverlap(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, CharOverlap("abc", "cba"), 0.0001)
	assert.InDelta(t, 0.5, CharOverlap("abzz", "ab"), 0.0001)
	assert.InDelta(t, 0.0, CharOverlap("", "abc"), 0.0001)
}

func TestSimilarityRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical", "inception", "inception", 1.0},
		{"both empty", "", "", 1.0},
		{"one empty", "abc", "", 0.0},
		{"disjoint", "abc", "xyz", 0.0},
		// difflib.SequenceMatcher(None, "abcd", "bcde").ratio() == 0.75
		{"shifted", "abcd", "bcde", 0.75},
		// difflib.SequenceMatcher(None, "the matrix", "matrix").ratio() == 0.75
		{"prefix dropped", "the matrix", "matrix", 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.expected, SimilarityRatio(tt.a, tt.b), 0.0001)
		})
	}
}
