package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"attune/internal/library"
	"attune/internal/media"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan all watched directories and update the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func(e *env) error {
				runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				listener := newScanPrinter(cmd)
				lib := library.New(library.Options{
					Cache:          e.cache,
					Policies:       e.policies,
					Attrs:          e.attrs,
					Listener:       listener,
					FollowSymlinks: e.cfg.Scan.FollowSymlinks,
						Workers:        e.cfg.Scan.Workers,
					Logger:         e.logger,
				})
				defer lib.Close()

				lib.Load(runCtx)
				if len(e.policies.Roots()) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No watched directories; add one with `attune sources add`")
					return nil
				}
				_, err := lib.Rescan(runCtx)
				return err
			})
		},
	}
}

// scanPrinter renders scan progress. On a terminal the progress line is
// rewritten in place; otherwise only the final summary is printed.
type scanPrinter struct {
	cmd       *cobra.Command
	terminal  bool
	items     int
	lastWrite bool
}

func newScanPrinter(cmd *cobra.Command) *scanPrinter {
	return &scanPrinter{
		cmd:      cmd,
		terminal: isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
	}
}

func (p *scanPrinter) CacheLoaded(count int) {
	fmt.Fprintf(p.cmd.OutOrStdout(), "Cache loaded: %d items\n", count)
}

func (p *scanPrinter) ItemsUpdated(items []media.Item) {
	p.items += len(items)
}

func (p *scanPrinter) ScanProgress(root string, dirsVisited, filesFound int, _ time.Duration) {
	if !p.terminal {
		return
	}
	fmt.Fprintf(p.cmd.OutOrStdout(), "\rScanning %s: %d dirs, %d files", root, dirsVisited, filesFound)
	p.lastWrite = true
}

func (p *scanPrinter) RootUnreachable(root string) {
	p.endProgressLine()
	fmt.Fprintf(p.cmd.OutOrStdout(), "Root unreachable, entries marked missing: %s\n", root)
}

func (p *scanPrinter) SessionDone(_ string, elapsed time.Duration) {
	p.endProgressLine()
	fmt.Fprintf(p.cmd.OutOrStdout(), "Scan finished in %s: %d items updated\n",
		elapsed.Round(time.Millisecond), p.items)
}

func (p *scanPrinter) endProgressLine() {
	if p.lastWrite {
		fmt.Fprintln(p.cmd.OutOrStdout())
		p.lastWrite = false
	}
}
