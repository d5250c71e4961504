// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/autobrr/janitor/internal/models"
	"github.com/autobrr/janitor/internal/services/executor"
)

func newApplyCommand(configPath *string) *cobra.Command {
	var (
		confirm string
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "apply <plan-id>",
		Short: "Delete the selected items of a draft plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			planID, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			current := a.cfg.Current()
			if !cmd.Flags().Changed("dry-run") {
				dryRun = current.App.DryRunDefault
			}

			if phrase := current.App.RequireConfirmPhrase; phrase != "" {
				if confirm == "" && isInteractive(cmd.InOrStdin()) {
					confirm = promptLine(cmd, fmt.Sprintf("Type %q to delete the selected items of plan %d: ", phrase, planID))
				}
				if confirm != phrase {
					return fmt.Errorf("confirmation phrase required, expected %q", phrase)
				}
			}

			run, err := a.executor.ApplyWithOptions(cmd.Context(), planID, executor.Options{DryRun: dryRun})
			if err != nil {
				return err
			}
			printRun(cmd, run)
			return nil
		},
	}

	cmd.Flags().StringVar(&confirm, "confirm", "", "Confirmation phrase")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Record the run without calling any service (default from config)")
	return cmd
}

func isInteractive(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func promptLine(cmd *cobra.Command, prompt string) string {
	cmd.Print(prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.TrimSpace(line)
}

func printRun(cmd *cobra.Command, run *models.Run) {
	mode := "live"
	if run.DryRun {
		mode = "dry-run"
	}
	cmd.Printf("Run %d for plan %d: %s (%s)\n", run.ID, run.PlanID, run.Status, mode)
	cmd.Printf("Succeeded: %d  Failed: %d\n", run.Results.SuccessCount, run.Results.FailedCount)

	for _, e := range run.Results.Errors {
		cmd.Printf("  error: %s\n", e)
	}
	if len(run.Results.ManualReconciliation) > 0 {
		ids := make([]string, len(run.Results.ManualReconciliation))
		for i, id := range run.Results.ManualReconciliation {
			ids[i] = strconv.FormatInt(id, 10)
		}
		cmd.Printf("Needs manual reconciliation (plan items): %s\n", strings.Join(ids, ", "))
	}
}
