package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/MediaDNA/pkg/mediadna"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/hasher"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var noProgress bool
	var videoStrategy string

	cmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Hash and index every file under the given paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []mediadna.Option
			switch videoStrategy {
			case "":
			case hasher.VideoSample, hasher.VideoBarcode, hasher.VideoOff:
				opts = append(opts, mediadna.WithVideoStrategy(videoStrategy))
			default:
				return fmt.Errorf("--video must be sample, barcode or off, got %q", videoStrategy)
			}

			bar := newProgress(cmd.ErrOrStderr(), !noProgress)
			opts = append(opts, mediadna.WithProgress(func(string, mediadna.Outcome) {
				bar.Add(1)
			}))

			return ctx.withService(cmd.Context(), true, opts, func(svc mediadna.Service) error {
				summary, err := svc.AddPaths(cmd.Context(), args)
				bar.Finish()
				printSummary(cmd.OutOrStdout(), summary)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Do not draw the progress spinner")
	cmd.Flags().StringVar(&videoStrategy, "video", "", "Video hashing: sample, barcode or off")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>...",
		Short: "Forget every indexed file at or beneath the given paths",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), true, nil, func(svc mediadna.Service) error {
				n, err := svc.RemovePaths(cmd.Context(), args)
				if err != nil {
					return err
				}
				okLine(cmd.OutOrStdout(), "Removed %d records", n)
				return nil
			})
		},
	}
}

func newPruneCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Forget indexed files that no longer exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), true, nil, func(svc mediadna.Service) error {
				n, err := svc.Prune(cmd.Context())
				if err != nil {
					return err
				}
				okLine(cmd.OutOrStdout(), "Pruned %d records", n)
				return nil
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every record from the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), true, nil, func(svc mediadna.Service) error {
				n, err := svc.Count(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if n == 0 {
					fmt.Fprintln(out, "Index is already empty")
					return nil
				}
				if !yes && !confirm(cmd, fmt.Sprintf("Delete all %d records?", n)) {
					warnLine(out, "Aborted")
					return nil
				}
				if err := svc.Clear(cmd.Context()); err != nil {
					return err
				}
				okLine(out, "Cleared %d records", n)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
