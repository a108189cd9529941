package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"attune/internal/media"
	"attune/internal/metaedit"
)

func newCoverCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cover",
		Short: "Manage embedded cover art",
	}
	cmd.AddCommand(newCoverApplyCommand(ctx))
	cmd.AddCommand(newCoverClearCommand(ctx))
	return cmd
}

func newCoverApplyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <image> <path...>",
		Short: "Embed an image into files or whole directories",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func(e *env) error {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				mime := media.SniffMIME(data)
				if mime == "" {
					return fmt.Errorf("%s is not a PNG or JPEG image", args[0])
				}

				files, err := collectAudioFiles(args[1:], e)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					return fmt.Errorf("no audio files under the given paths")
				}

				editor := metaedit.New(metaedit.Options{
					Attrs:    e.attrs,
					Policies: e.policies,
					Events:   &syncPrinter{cmd: cmd},
					Logger:   e.logger,
				})
				if err := editor.ApplyCover(files, media.CoverBlob{Data: data, MIME: mime}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cover applied to %d files\n", len(files))
				return nil
			})
		},
	}
}

func newCoverClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <path...>",
		Short: "Remove embedded cover art from files or whole directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func(e *env) error {
				files, err := collectAudioFiles(args, e)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					return fmt.Errorf("no audio files under the given paths")
				}

				editor := metaedit.New(metaedit.Options{
					Attrs:    e.attrs,
					Policies: e.policies,
					Events:   &syncPrinter{cmd: cmd},
					Logger:   e.logger,
				})
				if err := editor.ClearCover(files); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cover removed from %d files\n", len(files))
				return nil
			})
		},
	}
}
