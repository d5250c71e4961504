// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package stringutils cleans titles and file names for the entity and torrent
// matchers. A scan cleans the same strings once per media item per torrent,
// so the transforms are memoized.
package stringutils

import (
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
)

const memoTTL = 10 * time.Minute

// Memo caches the results of a pure function of its key.
type Memo[K comparable, V any] struct {
	cache *ttlcache.Cache[K, V]
	fn    func(K) V
}

// NewMemo wraps fn. Results expire ttl after they were computed.
func NewMemo[K comparable, V any](ttl time.Duration, fn func(K) V) *Memo[K, V] {
	return &Memo[K, V]{
		cache: ttlcache.New(ttlcache.Options[K, V]{}.SetDefaultTTL(ttl)),
		fn:    fn,
	}
}

func (m *Memo[K, V]) Apply(key K) V {
	if v, ok := m.cache.Get(key); ok {
		return v
	}
	v := m.fn(key)
	m.cache.Set(key, v, ttlcache.DefaultTTL)
	return v
}

// Forget drops the cached result for key.
func (m *Memo[K, V]) Forget(key K) {
	m.cache.Delete(key)
}
