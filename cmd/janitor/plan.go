// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"github.com/autobrr/janitor/internal/models"
)

func newPlanCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect deletion plans",
	}

	cmd.AddCommand(newPlanListCommand(configPath), newPlanShowCommand(configPath), newPlanCancelCommand(configPath))
	return cmd
}

func newPlanListCommand(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			plans, err := a.plans.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(plans) == 0 {
				cmd.Println("No plans yet. Run `janitor scan` to create one.")
				return nil
			}

			rows := make([][]string, 0, len(plans))
			for _, p := range plans {
				created := p.CreatedAt
				rows = append(rows, []string{
					strconv.FormatInt(p.ID, 10),
					string(p.Status),
					strconv.Itoa(p.ItemCount),
					strconv.Itoa(p.SelectedCount),
					formatBytes(p.Summary.TotalSizeBytes),
					formatTime(&created),
				})
			}
			cmd.Println(renderTable(
				[]string{"ID", "Status", "Items", "Selected", "Size", "Created"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of plans to list")
	return cmd
}

func newPlanShowCommand(configPath *string) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "show <plan-id|latest>",
		Short: "Show the items of a plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			var plan *models.Plan
			if args[0] == "latest" {
				plan, err = a.plans.Latest(cmd.Context())
			} else {
				var id int64
				if id, err = parseID(args[0]); err != nil {
					return err
				}
				plan, err = a.plans.Get(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			if plan == nil {
				return models.ErrPlanNotFound
			}

			items, err := a.plans.Items(cmd.Context(), plan.ID)
			if err != nil {
				return err
			}
			items = searchItems(items, search)

			cmd.Printf("Plan %d: %s, %d items, %d selected, %s\n",
				plan.ID, plan.Status, plan.ItemCount, plan.SelectedCount, formatBytes(plan.Summary.TotalSizeBytes))

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				selected := ""
				if item.Selected {
					selected = "x"
				}
				rows = append(rows, []string{
					strconv.FormatInt(item.ID, 10),
					selected,
					string(item.MediaType),
					itemLabel(item),
					formatBytes(item.SizeBytes),
					formatTime(item.LastViewedAt),
					item.Rule,
					strconv.Itoa(len(item.QBHashes)),
				})
			}
			cmd.Println(renderTable(
				[]string{"ID", "Sel", "Type", "Title", "Size", "Last viewed", "Rule", "Torrents"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Fuzzy filter on item titles")
	return cmd
}

func newPlanCancelCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <plan-id>",
		Short: "Cancel a draft plan",
		Args:  cobra.ExactArgs(1),
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

			if err := a.plans.Cancel(cmd.Context(), id); err != nil {
				return err
			}
			cmd.Printf("Plan %d cancelled\n", id)
			return nil
		},
	}
}

func itemLabel(item *models.PlanItem) string {
	label := item.Title
	if item.Year > 0 {
		label = fmt.Sprintf("%s (%d)", label, item.Year)
	}
	return label
}

// searchItems keeps items whose title fuzzy-matches search, closest first.
func searchItems(items []*models.PlanItem, search string) []*models.PlanItem {
	search = strings.TrimSpace(search)
	if search == "" {
		return items
	}

	titles := make([]string, len(items))
	for i, item := range items {
		titles[i] = item.Title
	}

	ranks := fuzzy.RankFindNormalizedFold(search, titles)
	sort.Stable(ranks)

	matched := make([]*models.PlanItem, 0, len(ranks))
	for _, rank := range ranks {
		matched = append(matched, items[rank.OriginalIndex])
	}
	return matched
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id: " + raw)
	}
	return id, nil
}
