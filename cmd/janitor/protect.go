// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/autobrr/janitor/internal/media"
	"github.com/autobrr/janitor/internal/models"
)

func newProtectCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "protect",
		Short: "Manage protections that keep media out of plans",
	}

	cmd.AddCommand(newProtectAddCommand(configPath), newProtectListCommand(configPath), newProtectRemoveCommand(configPath))
	return cmd
}

func newProtectAddCommand(configPath *string) *cobra.Command {
	var p models.Protection
	var mediaType string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a protection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			p.MediaType = media.Kind(strings.ToLower(strings.TrimSpace(mediaType)))
			created, err := a.protections.Create(cmd.Context(), &p)
			if err != nil {
				return err
			}
			cmd.Printf("Protection %d created\n", created.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&mediaType, "type", "", "Media type: movie, series or episode")
	cmd.Flags().IntVar(&p.TMDBID, "tmdb", 0, "TMDB id")
	cmd.Flags().IntVar(&p.TVDBID, "tvdb", 0, "TVDB id")
	cmd.Flags().StringVar(&p.IMDBID, "imdb", "", "IMDB id")
	cmd.Flags().StringVar(&p.Path, "path", "", "Path prefix")
	cmd.Flags().StringVar(&p.Reason, "reason", "", "Why this media is protected")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newProtectListCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List protections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			protections, err := a.protections.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(protections) == 0 {
				cmd.Println("No protections.")
				return nil
			}

			rows := make([][]string, 0, len(protections))
			for _, p := range protections {
				rows = append(rows, []string{
					strconv.FormatInt(p.ID, 10),
					string(p.MediaType),
					optionalInt(p.TMDBID),
					optionalInt(p.TVDBID),
					p.IMDBID,
					p.Path,
					p.Reason,
				})
			}
			cmd.Println(renderTable(
				[]string{"ID", "Type", "TMDB", "TVDB", "IMDB", "Path", "Reason"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}

func newProtectRemoveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <protection-id>",
		Aliases: []string{"remove"},
		Short:   "Remove a protection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.protections.Delete(cmd.Context(), id); err != nil {
				return err
			}
			cmd.Printf("Protection %d removed\n", id)
			return nil
		},
	}
}

func optionalInt(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}
