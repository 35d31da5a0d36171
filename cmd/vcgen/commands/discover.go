// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bartekus/vcgen/internal/app"
	"github.com/bartekus/vcgen/internal/report"
)

func newDiscoverCommand(root *rootOptions) *cobra.Command {
	var (
		language    string
		source      string
		maxRepoSize int64
		limit       int
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the repositories a generate run would mine",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			if cmd.Flags().Changed("language") {
				cfg.Language = language
			}
			if cmd.Flags().Changed("source") {
				cfg.Discovery.Source = source
			}
			if cmd.Flags().Changed("max-repo-size") {
				cfg.MaxRepoSizeKB = maxRepoSize
			}

			locs, err := app.Discover(cmd.Context(), cfg, nil)
			if err != nil {
				return exitError(err)
			}
			if limit > 0 && len(locs) > limit {
				locs = locs[:limit]
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(locs)
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), report.Locations(locs, report.ASCII))
			return nil
		},
	}

	cmd.Flags().StringVar(&language, "language", "", "repository language")
	cmd.Flags().StringVar(&source, "source", "", "discovery source: search or trending")
	cmd.Flags().Int64VarP(&maxRepoSize, "max-repo-size", "m", 0, "drop repositories larger than this many KB")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "print at most this many repositories")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}
