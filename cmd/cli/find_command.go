package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/MediaDNA/pkg/mediadna"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/dedup"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

type findFlags struct {
	print       bool
	json        bool
	delete      bool
	matchTime   bool
	threshold   int
	keepLargest bool
	trash       string
}

func newFindCommand(ctx *commandContext) *cobra.Command {
	var f findFlags

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Report duplicate clusters, or move the extra copies to the trash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("match-time") {
				f.matchTime = cfg.Dedup.MatchCaptureTime
			}
			if !flags.Changed("threshold") {
				f.threshold = cfg.Dedup.Threshold
			}
			if !f.json && !f.delete {
				f.print = true
			}
			if f.threshold > models.PerceptualBits {
				return fmt.Errorf("--threshold must be at most %d", models.PerceptualBits)
			}

			var opts []mediadna.Option
			if flags.Changed("keep-largest") {
				opts = append(opts, mediadna.WithKeepLargest(f.keepLargest))
			}
			if f.trash != "" {
				opts = append(opts, mediadna.WithTrashDir(f.trash))
			}

			return ctx.withService(cmd.Context(), f.delete, opts, func(svc mediadna.Service) error {
				clusters, err := svc.FindDuplicates(cmd.Context(), mediadna.FindOptions{
					MatchCaptureTime: f.matchTime,
					Threshold:        f.threshold,
				})
				if err != nil {
					return err
				}

				switch {
				case f.json:
					return writeJSON(cmd, clusters)
				case f.delete:
					rep := svc.DeleteDuplicates(cmd.Context(), clusters)
					printReport(cmd.OutOrStdout(), rep)
					if len(rep.Failures) > 0 {
						return fmt.Errorf("%d files could not be moved", len(rep.Failures))
					}
					return nil
				case f.print:
					printClusters(cmd.OutOrStdout(), clusters)
				}
				return nil
			})
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&f.print, "print", false, "List duplicate clusters (the default when neither --json nor --delete is set)")
	fl.BoolVar(&f.json, "json", false, "Print duplicate clusters as JSON")
	fl.BoolVar(&f.delete, "delete", false, "Move all but one file of each cluster to the trash")
	fl.BoolVar(&f.matchTime, "match-time", false, "Only report clusters whose capture times agree")
	fl.IntVar(&f.threshold, "threshold", mediadna.ExactMatch, "Hamming distance for perceptual matching, -1 for exact tokens")
	fl.BoolVar(&f.keepLargest, "keep-largest", false, "Keep the largest file of each cluster")
	fl.StringVar(&f.trash, "trash", "", "Trash directory for --delete")
	cmd.MarkFlagsMutuallyExclusive("print", "json", "delete")
	return cmd
}

func printClusters(w io.Writer, clusters []models.DuplicateCluster) {
	if len(clusters) == 0 {
		okLine(w, "No duplicates found")
		return
	}
	extra := 0
	for _, c := range clusters {
		headColor.Fprintf(w, "%s  (%d files, largest %s)\n", c.Token, c.Total, humanize.Bytes(uint64(c.MaxFileSize)))
		for _, it := range c.Items {
			fmt.Fprintf(w, "  %-10s %s\n", humanize.Bytes(uint64(it.Metadata.FileSize())), it.Path)
		}
		extra += c.Total - 1
	}
	fmt.Fprintf(w, "\n%d clusters, %d duplicate files\n", len(clusters), extra)
}

func printReport(w io.Writer, rep dedup.Report) {
	okLine(w, "Deleted %d/%d files", rep.Deleted, rep.Attempted)
	for _, p := range rep.StaleRecords {
		warnLine(w, "%s was trashed but its record remains; run prune", p)
	}
	for _, f := range rep.Failures {
		errColor.Fprintf(w, "✗ %s: %s\n", f.Path, f.Err)
	}
}
