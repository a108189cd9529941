package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"attune/internal/media"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	var missingOnly bool
	var rootFilter string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "items",
		Short: "List cached library items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv(func(e *env) error {
				e.cache.Load(cmd.Context())
				items := e.cache.Snapshot()

				filtered := items[:0]
				for _, it := range items {
					if missingOnly && !it.Missing {
						continue
					}
					if rootFilter != "" && !strings.HasPrefix(it.Path, rootFilter) {
						continue
					}
					filtered = append(filtered, it)
				}

				if jsonOut {
					return writeJSON(cmd, filtered)
				}
				printItemsTable(cmd, filtered)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&missingOnly, "missing", false, "Show only items whose file is gone")
	cmd.Flags().StringVar(&rootFilter, "root", "", "Limit to items under this path prefix")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func printItemsTable(cmd *cobra.Command, items []media.Item) {
	if len(items) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No items")
		return
	}
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		title := it.Title
		if it.Missing {
			title += " (missing)"
		}
		rows = append(rows, []string{
			title,
			it.Artist,
			it.Album,
			ratingLabel(it.Rating),
			formatDuration(it.Duration),
			it.Path,
		})
	}
	out := renderTable(
		[]column{
			{title: "Title"}, {title: "Artist"}, {title: "Album"},
			{title: "Rating", numeric: true}, {title: "Length", numeric: true},
			{title: "Path"},
		},
		rows,
	)
	fmt.Fprintln(cmd.OutOrStdout(), out)
	fmt.Fprintf(cmd.OutOrStdout(), "%d items\n", len(items))
}
