// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// RedactedStr replaces secrets in rendered configuration and API responses.
const RedactedStr = "<redacted>"

// RedactString returns RedactedStr for any non-empty value.
func RedactString(s string) string {
	if s == "" {
		return ""
	}
	return RedactedStr
}

// IsRedactedString reports whether s is the redaction placeholder. Clients
// echo the placeholder back when a secret was left unchanged.
func IsRedactedString(s string) bool {
	return s == RedactedStr
}

// Redacted returns a copy of c with every credential replaced by RedactedStr.
func (c Config) Redacted() Config {
	out := c
	out.APIKey = RedactString(c.APIKey)
	out.MetricsBasicAuthUsers = RedactString(c.MetricsBasicAuthUsers)
	out.Plex.Token = RedactString(c.Plex.Token)
	out.Tautulli.APIKey = RedactString(c.Tautulli.APIKey)
	out.Radarr.APIKey = RedactString(c.Radarr.APIKey)
	out.Sonarr.APIKey = RedactString(c.Sonarr.APIKey)
	out.Overseerr.APIKey = RedactString(c.Overseerr.APIKey)
	out.QBittorrent.Password = RedactString(c.QBittorrent.Password)
	out.QBittorrent.BasicPass = RedactString(c.QBittorrent.BasicPass)
	return out
}
