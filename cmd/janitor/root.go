// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/spf13/cobra"

	"github.com/autobrr/janitor/internal/buildinfo"
)

func newRootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "janitor",
		Short:         "Reconcile media services and delete stale media safely",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file or directory (default: user config dir)")

	rootCmd.AddCommand(
		newServeCommand(&configPath),
		newScanCommand(&configPath),
		newPlanCommand(&configPath),
		newApplyCommand(&configPath),
		newRunCommand(&configPath),
		newProtectCommand(&configPath),
		newDBCommand(&configPath),
		newConfigCommand(&configPath),
		newDiagnosticsCommand(&configPath),
		newVersionCommand(),
	)

	return rootCmd
}
