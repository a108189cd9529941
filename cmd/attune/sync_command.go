package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"attune/internal/metaedit"
	"attune/internal/policy"
	"attune/internal/tagio"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "sync [path...]",
		Short: "Reconcile embedded tags with filesystem attributes",
		Long: "Reconciles the two metadata sources of every file under the given\n" +
			"paths per their root's source policy. Without arguments every\n" +
			"watched directory is synced. Files whose sources disagree under an\n" +
			"ask policy are reported and left untouched. --mode forces one\n" +
			"direction for this run, overriding the stored policies.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func(e *env) error {
				files, err := collectAudioFiles(args, e)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to sync")
					return nil
				}

				editor := metaedit.New(metaedit.Options{
					Attrs:    e.attrs,
					Policies: e.policies,
					Events:   &syncPrinter{cmd: cmd},
					Logger:   e.logger,
				})
				var summary metaedit.Summary
				if modeFlag != "" {
					mode, err := policy.ParseConflictMode(modeFlag)
					if err != nil {
						return err
					}
					summary, err = editor.SyncWithMode(files, mode)
					if err != nil {
						return err
					}
				} else {
					summary, err = editor.Sync(files)
					if err != nil {
						return err
					}
				}
				if summary.Conflicts > 0 {
					return fmt.Errorf("%d files have conflicting metadata; resolve with `attune tags set`", summary.Conflicts)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&modeFlag, "mode", "", "Force a sync direction (overwrite|fill-empty|ask)")
	return cmd
}

// collectAudioFiles expands the argument paths into audio files. With no
// arguments every watched root is walked.
func collectAudioFiles(args []string, e *env) ([]string, error) {
	paths := args
	if len(paths) == 0 {
		paths = e.policies.Roots()
	}

	seen := map[string]bool{}
	var files []string
	for _, arg := range paths {
		path, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("resolve path: %w", err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			if tagio.Allowed(path) && !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			continue
		}
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			name := d.Name()
			if d.IsDir() {
				if p != path && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(name, ".") || !tagio.Allowed(p) {
				return nil
			}
			if !seen[p] {
				seen[p] = true
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	sort.Strings(files)
	return files, nil
}

type syncPrinter struct {
	cmd *cobra.Command
}

func (p *syncPrinter) SyncProgress(current, total int) {}

func (p *syncPrinter) SyncConflict(path string, index, total int) {
	fmt.Fprintf(p.cmd.OutOrStdout(), "Conflict (%d/%d): %s\n", index, total, path)
}

func (p *syncPrinter) SyncDone(s metaedit.Summary) {
	fmt.Fprintf(p.cmd.OutOrStdout(), "Synced %d of %d files (%d conflicts, %d failures)\n",
		s.Written, s.Files, s.Conflicts, s.Failures)
}

func (p *syncPrinter) WriteFailure(path string, err error) {
	fmt.Fprintf(p.cmd.ErrOrStderr(), "Write failed: %s: %v\n", path, err)
}
