// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package arr

import "strconv"

// TagTable maps tag ids to labels. A table is built per scan and passed
// explicitly; nothing caches it across runs.
type TagTable map[int]string

func NewTagTable(tags []Tag) TagTable {
	table := make(TagTable, len(tags))
	for _, tag := range tags {
		table[tag.ID] = tag.Label
	}
	return table
}

// Labels resolves ids to labels. Unknown ids keep their numeric form.
func (t TagTable) Labels(ids []int) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if label, ok := t[id]; ok && label != "" {
			out = append(out, label)
			continue
		}
		out = append(out, strconv.Itoa(id))
	}
	return out
}
