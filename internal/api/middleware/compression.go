// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/http"

	"github.com/CAFxX/httpcompression"
)

// SelectiveCompress compresses responses of at least minSize bytes with the
// best encoding the client accepts (zstd, brotli, gzip or deflate).
func SelectiveCompress(minSize int) (func(http.Handler) http.Handler, error) {
	if minSize < 0 {
		minSize = 1024
	}
	return httpcompression.DefaultAdapter(
		httpcompression.MinSize(minSize),
		httpcompression.ContentTypes([]string{
			"application/json",
			"text/plain",
			"application/openmetrics-text",
		}, false),
	)
}
