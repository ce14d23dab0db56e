package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/himanishpuri/MediaDNA/pkg/mediadna"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

type recordView struct {
	Path        string   `json:"file_name"`
	FileSize    int64    `json:"file_size"`
	CaptureTime string   `json:"capture_time"`
	Tokens      []string `json:"tokens"`
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List indexed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd.Context(), false, nil, func(svc mediadna.Service) error {
				records, err := svc.Records(cmd.Context())
				if err != nil {
					return err
				}
				sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })

				if asJSON {
					views := make([]recordView, 0, len(records))
					for _, r := range records {
						views = append(views, viewOf(r))
					}
					return writeJSON(cmd, views)
				}

				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No files indexed")
					return nil
				}
				fmt.Fprintln(out, renderRecords(records))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

func viewOf(r models.FileRecord) recordView {
	return recordView{
		Path:        r.Path,
		FileSize:    r.Metadata.FileSize(),
		CaptureTime: r.Metadata.CaptureTime(),
		Tokens:      models.TokenKeys(r.Tokens),
	}
}

func renderRecords(records []models.FileRecord) string {
	var total int64
	rows := make([][]string, 0, len(records))
	for i, r := range records {
		size := r.Metadata.FileSize()
		total += size
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			r.Path,
			humanize.Bytes(uint64(size)),
			r.Metadata.String(models.MetaImageSize),
			r.Metadata.CaptureTime(),
			strconv.Itoa(len(r.Tokens)),
		})
	}
	return renderTable(
		[]string{"#", "File", "Size", "Dimensions", "Captured", "Tokens"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignRight},
		"", fmt.Sprintf("%d files", len(records)), humanize.Bytes(uint64(total)),
	)
}
