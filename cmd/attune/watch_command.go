package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"attune/internal/library"
	"attune/internal/volmon"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Scan, then keep watching for volume removal and rescan periodically",
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

				monitor := volmon.New(e.logger,
					e.policies.Roots,
					func(root string) {
						e.cache.MarkRootUnreachable(root)
						_ = e.cache.Save(context.Background())
						fmt.Fprintf(cmd.OutOrStdout(), "Volume removed, entries marked missing: %s\n", root)
					})
				if err := monitor.Start(runCtx); err != nil {
					return err
				}
				defer monitor.Stop()

				if _, err := lib.Rescan(runCtx); err != nil {
					return err
				}

				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-runCtx.Done():
						return nil
					case <-ticker.C:
						if _, err := lib.Rescan(runCtx); err != nil {
							if runCtx.Err() != nil {
								return nil
							}
							return err
						}
					}
				}
			})
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 15*time.Minute, "Time between rescans")
	return cmd
}
