package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"attune/internal/policy"
)

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage watched directories and their metadata source policies",
	}
	cmd.AddCommand(newSourcesListCommand(ctx))
	cmd.AddCommand(newSourcesAddCommand(ctx))
	cmd.AddCommand(newSourcesRemoveCommand(ctx))
	cmd.AddCommand(newSourcesImportCommand(ctx))
	return cmd
}

func newSourcesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List watched directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEnv(func(e *env) error {
				policies := e.policies.List()
				if len(policies) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No watched directories")
					return nil
				}
				rows := make([][]string, 0, len(policies))
				for _, p := range policies {
					rows = append(rows, []string{
						p.Path, string(p.Primary), string(p.Secondary), string(p.Mode),
					})
				}
				out := renderTable(
					[]column{
						{title: "Path"}, {title: "Primary"},
						{title: "Secondary"}, {title: "Conflicts"},
					},
					rows,
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}

func newSourcesAddCommand(ctx *commandContext) *cobra.Command {
	var primaryFlag, secondaryFlag, modeFlag string

	cmd := &cobra.Command{
		Use:   "add <path>",
		Short: "Watch a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func(e *env) error {
				path, err := filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}

				p := policy.Default(path)
				if primaryFlag != "" {
					if p.Primary, err = policy.ParseSource(primaryFlag); err != nil {
						return err
					}
				}
				if secondaryFlag != "" {
					if p.Secondary, err = policy.ParseSource(secondaryFlag); err != nil {
						return err
					}
				}
				if modeFlag != "" {
					if p.Mode, err = policy.ParseConflictMode(modeFlag); err != nil {
						return err
					}
				}

				if err := e.policies.Upsert(p); err != nil {
					return err
				}
				if err := e.policies.Save(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (primary=%s secondary=%s conflicts=%s)\n",
					p.Path, p.Primary, p.Secondary, p.Mode)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&primaryFlag, "primary", "", "Primary metadata source (tags|attributes)")
	cmd.Flags().StringVar(&secondaryFlag, "secondary", "", "Secondary metadata source (tags|attributes|none)")
	cmd.Flags().StringVar(&modeFlag, "mode", "", "Conflict handling (overwrite|fill-empty|ask)")
	return cmd
}

func newSourcesRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>",
		Short: "Stop watching a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func(e *env) error {
				path, err := filepath.Abs(args[0])
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}
				if !e.policies.Remove(path) {
					return fmt.Errorf("not watched: %s", path)
				}
				if err := e.policies.Save(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Stopped watching %s\n", path)
				fmt.Fprintln(cmd.OutOrStdout(), "Cached entries under it are removed on the next scan")
				return nil
			})
		},
	}
}

func newSourcesImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import a legacy one-path-per-line directory list",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func(e *env) error {
				source := e.cfg.LegacyPolicyPath()
				if len(args) == 1 {
					source = args[0]
				}
				data, err := os.ReadFile(source)
				if err != nil {
					return fmt.Errorf("read legacy list: %w", err)
				}

				// Legacy entries carry no policy, so they get the
				// tags-only defaults the old tool behaved like.
				imported := 0
				for _, line := range strings.Split(string(data), "\n") {
					line = strings.TrimSpace(line)
					if line == "" || strings.HasPrefix(line, "#") {
						continue
					}
					if e.policies.Contains(line) {
						continue
					}
					p := policy.SourcePolicy{
						Path:      filepath.Clean(line),
						Primary:   policy.SourceTags,
						Secondary: policy.SourceNone,
						Mode:      policy.ModeOverwrite,
					}
					if err := e.policies.Upsert(p); err != nil {
						return fmt.Errorf("import %s: %w", line, err)
					}
					imported++
				}
				if imported > 0 {
					if err := e.policies.Save(); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d directories from %s\n", imported, source)
				return nil
			})
		},
	}
}
