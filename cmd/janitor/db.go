// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"github.com/spf13/cobra"
)

func newDBCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database operations",
	}

	cmd.AddCommand(newDBMigrateCommand(configPath), newDBStatusCommand(configPath))
	return cmd
}

func newDBMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			applied, err := a.db.Migrate()
			if err != nil {
				return err
			}
			for _, name := range applied {
				cmd.Printf("Applied %s\n", name)
			}
			cmd.Printf("Database at %s is up to date\n", a.cfg.GetDatabasePath())
			return nil
		},
	}
}

func newDBStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List applied and pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			applied, err := a.db.Migrations(cmd.Context())
			if err != nil {
				return err
			}
			pending, err := a.db.PendingMigrations(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(applied)+len(pending))
			for _, m := range applied {
				rows = append(rows, []string{m.Filename, formatTime(&m.AppliedAt)})
			}
			for _, name := range pending {
				rows = append(rows, []string{name, "pending"})
			}
			cmd.Println(renderTable([]string{"Migration", "Applied"}, rows, nil))
			return nil
		},
	}
}
