package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Cache maintenance utilities",
	}
	cmd.AddCommand(newCacheExportCommand(ctx))
	cmd.AddCommand(newCacheImportCommand(ctx))
	cmd.AddCommand(newCacheHealthCommand(ctx))
	return cmd
}

func newCacheExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Export the cache as compressed JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv(func(e *env) error {
				e.cache.Load(cmd.Context())
				if err := e.cache.Export(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d items to %s\n", e.cache.Len(), args[0])
				return nil
			})
		},
	}
}

func newCacheImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the cache from a compressed JSON export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func(e *env) error {
				count, err := e.cache.Import(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d items from %s\n", count, args[0])
				return nil
			})
		},
	}
}

func newCacheHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the cache database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv(func(e *env) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Cache database: %s\n", e.store.Path())
				if err := e.store.Healthy(cmd.Context()); err != nil {
					return fmt.Errorf("cache unhealthy: %w", err)
				}
				e.cache.Load(cmd.Context())
				missing := 0
				for _, it := range e.cache.Snapshot() {
					if it.Missing {
						missing++
					}
				}
				fmt.Fprintf(out, "Items: %d (%d missing)\n", e.cache.Len(), missing)
				fmt.Fprintln(out, "Cache healthy")
				return nil
			})
		},
	}
}
