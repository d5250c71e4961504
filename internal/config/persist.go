// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// updateLogSettingsInTOML rewrites the top-level log keys in place,
// uncommenting them when needed. Keys that are missing entirely are inserted
// before the first table so they stay top-level.
func updateLogSettingsInTOML(content, level, logPath string, maxSize, maxBackups int) string {
	values := []struct {
		key   string
		value string
	}{
		{"logLevel", strconv.Quote(level)},
		{"logPath", strconv.Quote(logPath)},
		{"logMaxSize", strconv.Itoa(maxSize)},
		{"logMaxBackups", strconv.Itoa(maxBackups)},
	}

	lines := strings.Split(content, "\n")
	firstTable := len(lines)
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "[") {
			firstTable = i
			break
		}
	}

	var missing []string
	for _, kv := range values {
		replacement := fmt.Sprintf("%s = %s", kv.key, kv.value)
		if kv.key == "logPath" && logPath == "" {
			replacement = `#logPath = ""`
		}

		found := false
		for i := 0; i < firstTable; i++ {
			if isKeyLine(lines[i], kv.key) {
				lines[i] = replacement
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, replacement)
		}
	}

	if len(missing) > 0 {
		insert := append(missing, "")
		lines = append(lines[:firstTable], append(insert, lines[firstTable:]...)...)
	}

	return strings.Join(lines, "\n")
}

func isKeyLine(line, key string) bool {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimLeft(trimmed, "#")
	trimmed = strings.TrimSpace(trimmed)
	if !strings.HasPrefix(trimmed, key) {
		return false
	}
	rest := strings.TrimSpace(trimmed[len(key):])
	return strings.HasPrefix(rest, "=")
}
