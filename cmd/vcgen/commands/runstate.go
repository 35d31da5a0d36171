// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bartekus/vcgen/internal/report"
	"github.com/bartekus/vcgen/internal/runstate"
)

func stateStore(root *rootOptions, cmd *cobra.Command) *runstate.Store {
	dir := root.cfg.StateDir
	if v, err := cmd.Flags().GetString("state-dir"); err == nil && cmd.Flags().Changed("state-dir") {
		dir = v
	}
	return runstate.NewStore(dir)
}

func newReportCommand(root *rootOptions) *cobra.Command {
	var (
		markdown bool
		asJSON   bool
		worker   int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the outcome of the last generate run",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := stateStore(root, cmd)
			out := cmd.OutOrStdout()
			mode := report.ASCII
			if markdown {
				mode = report.Markdown
			}

			if cmd.Flags().Changed("worker") {
				rep, err := store.ReadWorker(worker)
				if err != nil {
					return err
				}
				if rep == nil {
					_, _ = fmt.Fprintf(out, "No report for worker %d.\n", worker)
					return nil
				}
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(rep)
				}
				_, _ = fmt.Fprint(out, report.Worker(*rep, mode))
				return nil
			}

			last, err := store.ReadLastRun()
			if err != nil {
				return err
			}
			if last == nil {
				_, _ = fmt.Fprintln(out, "No run recorded.")
				return nil
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(last)
			}
			_, _ = fmt.Fprint(out, report.Summary(*last, mode))
			return nil
		},
	}

	cmd.Flags().String("state-dir", "", "run state directory (default "+runstate.DefaultDir+")")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render a Markdown table")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	cmd.Flags().IntVar(&worker, "worker", 0, "show the report of one worker")
	return cmd
}

func newResetCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear recorded run state",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := stateStore(root, cmd)
			if err := store.Reset(); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", store.Dir())
			return nil
		},
	}
	cmd.Flags().String("state-dir", "", "run state directory (default "+runstate.DefaultDir+")")
	return cmd
}
