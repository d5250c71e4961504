// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newRunCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Inspect plan runs",
	}

	cmd.AddCommand(newRunListCommand(configPath), newRunShowCommand(configPath))
	return cmd
}

func newRunListCommand(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.runs.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				cmd.Println("No runs yet.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				started := r.StartedAt
				rows = append(rows, []string{
					strconv.FormatInt(r.ID, 10),
					strconv.FormatInt(r.PlanID, 10),
					string(r.Status),
					strconv.FormatBool(r.DryRun),
					strconv.Itoa(r.Results.SuccessCount),
					strconv.Itoa(r.Results.FailedCount),
					formatTime(&started),
				})
			}
			cmd.Println(renderTable(
				[]string{"ID", "Plan", "Status", "Dry run", "OK", "Failed", "Started"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}

func newRunShowCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and its per-item steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.runs.Get(cmd.Context(), runID)
			if err != nil {
				return err
			}
			if run == nil {
				return fmt.Errorf("run %d not found", runID)
			}
			printRun(cmd, run)

			items, err := a.runs.Items(cmd.Context(), runID)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				rows = append(rows, []string{
					strconv.FormatInt(item.PlanItemID, 10),
					string(item.Status),
					checkMark(item.TorrentRemoved),
					checkMark(item.CatalogEntryRemoved),
					checkMark(item.PresentationRefreshed),
					item.Error,
				})
			}
			cmd.Println(renderTable(
				[]string{"Plan item", "Status", "Torrent", "Catalog", "Refresh", "Error"},
				rows,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
}

func checkMark(v bool) string {
	if v {
		return "yes"
	}
	return "-"
}
