// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newScanCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run a reconciliation scan and create a draft plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			plan, err := a.pipeline.Scan(cmd.Context(), "")
			if err != nil {
				return err
			}

			s := plan.Summary
			cmd.Printf("Plan %d created (scan %s)\n", plan.ID, plan.ScanID)
			cmd.Println(renderTable(
				[]string{"Movies", "Series", "Episodes", "Size", "Candidates", "Protected", "Skipped", "Kept"},
				[][]string{{
					strconv.Itoa(s.MoviesCount),
					strconv.Itoa(s.SeriesCount),
					strconv.Itoa(s.EpisodesCount),
					formatBytes(s.TotalSizeBytes),
					strconv.Itoa(s.CandidatesCount),
					strconv.Itoa(s.ProtectedCount),
					strconv.Itoa(s.SkippedCount),
					strconv.Itoa(s.KeptCount),
				}},
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
			))
			if s.TruncatedCount > 0 {
				cmd.Printf("%d candidates dropped by the plan size limit\n", s.TruncatedCount)
			}
			if len(s.FailedSources) > 0 {
				cmd.Printf("Failed sources: %s\n", strings.Join(s.FailedSources, ", "))
			}
			return nil
		},
	}
}
