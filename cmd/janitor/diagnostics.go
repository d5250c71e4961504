// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"
)

func newDiagnosticsCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "diagnostics",
		Short: "Check connectivity and versions of the configured services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			checks := a.diagnostics.Run(cmd.Context())

			healthy := true
			rows := make([][]string, 0, len(checks))
			for _, c := range checks {
				status := "disabled"
				detail := c.Warning
				switch {
				case c.Enabled && c.OK:
					status = "ok"
				case c.Enabled:
					status = "error"
					detail = c.Error
					healthy = false
				}
				rows = append(rows, []string{c.Service, status, c.Version, strconv.FormatInt(c.LatencyMS, 10) + "ms", detail})
			}
			cmd.Println(renderTable(
				[]string{"Service", "Status", "Version", "Latency", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))

			if !healthy {
				return errors.New("one or more services are unreachable")
			}
			return nil
		},
	}
}
