// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bartekus/vcgen/internal/dataset"
	"github.com/bartekus/vcgen/internal/report"
)

func newInspectCommand(_ *rootOptions) *cobra.Command {
	var (
		rows     int
		markdown bool
		withCode bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <dataset-file>",
		Short: "Preview the rows of a dataset",
		Long: `Print the first rows of a .jsonl, .csv or .sqlite dataset with finding counts
per analyzer. With --context the source lines each finding points at are shown.`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, tools, err := dataset.Read(cmd.Context(), args[0])
			if err != nil {
				return exitError(err)
			}
			total := len(records)
			if rows > 0 && len(records) > rows {
				records = records[:rows]
			}

			mode := report.ASCII
			if markdown {
				mode = report.Markdown
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprint(out, report.Rows(records, tools, mode))
			_, _ = fmt.Fprintf(out, "%d of %d rows\n", len(records), total)

			if withCode {
				for _, rec := range records {
					_, _ = fmt.Fprintln(out)
					_, _ = fmt.Fprint(out, report.Context(rec, tools))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&rows, "rows", "n", 10, "rows to show (0 = all)")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render a Markdown table")
	cmd.Flags().BoolVar(&withCode, "context", false, "print the code lines findings refer to")
	return cmd
}
