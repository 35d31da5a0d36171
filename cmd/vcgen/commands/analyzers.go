// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bartekus/vcgen/internal/analyzer"
	"github.com/bartekus/vcgen/internal/app"
	"github.com/bartekus/vcgen/internal/report"
)

func newAnalyzersCommand(root *rootOptions) *cobra.Command {
	var (
		asJSON bool
		check  bool
	)

	cmd := &cobra.Command{
		Use:   "analyzers",
		Short: "Show where each static analyzer is installed",
		Long: `List the supported analyzers, whether the config enables them and the
executable each resolves to. The <TOOL>_PATH environment variable overrides
the default install location.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := analyzer.Statuses(root.cfg.Analyzers)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(map[string]any{"analyzers": statuses}); err != nil {
					return err
				}
			} else {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), report.Analyzers(statuses, report.ASCII))
			}

			if !check {
				return nil
			}
			var missing []string
			for _, s := range statuses {
				if s.Enabled && !s.Installed() {
					missing = append(missing, s.Name)
				}
			}
			if len(missing) > 0 {
				return exitError(fmt.Errorf("%w: analyzer not installed: %s", app.ErrDependencyMissing, strings.Join(missing, ", ")))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	cmd.Flags().BoolVar(&check, "check", false, "exit non-zero when an enabled analyzer is missing")
	return cmd
}
