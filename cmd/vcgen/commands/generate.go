// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bartekus/vcgen/internal/analyzer"
	"github.com/bartekus/vcgen/internal/app"
	"github.com/bartekus/vcgen/internal/config"
	"github.com/bartekus/vcgen/internal/logging"
	"github.com/bartekus/vcgen/internal/progress"
	"github.com/bartekus/vcgen/internal/report"
	"github.com/bartekus/vcgen/internal/runstate"
)

type generateFlags struct {
	disableFlawfinder bool
	disableCppcheck   bool
	disableInfer      bool
	workers           int
	maxRepoSize       int64
	policy            string
	division          string
	seed              uint64
	language          string
	source            string
	workDir           string
	stateDir          string
	upload            string
	cloneTimeout      time.Duration
	scanTimeout       time.Duration
	noProgress        bool
	json              bool
}

func newGenerateCommand(root *rootOptions) *cobra.Command {
	f := &generateFlags{}

	cmd := &cobra.Command{
		Use:   "generate <entries> <dataset-file>",
		Short: "Mine repositories and write a vulnerable code dataset",
		Long: `Discover repositories, mine their security-relevant commits and write up to
<entries> analyzed files to <dataset-file>.

The format follows the destination: .jsonl, .csv, .sqlite or a postgres:// URL.
Falling short of <entries> is reported as a note and still writes the dataset.`,
		Args: exactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := positiveInt("entries", args[0])
			if err != nil {
				return err
			}
			cfg := root.cfg
			if err := f.apply(cmd, &cfg); err != nil {
				return usageError(err)
			}

			reporter := newReporter(cfg.Workers, f.noProgress)
			defer func() { _ = reporter.Close() }()
			sum, err := app.Generate(cmd.Context(), cfg, app.Request{
				Entries:     entries,
				Destination: args[1],
				Upload:      f.upload,
			}, app.Deps{
				Reporter: reporter,
				Store:    runstate.NewStore(cfg.StateDir),
			})
			if sum.LastRun.Status != "" {
				printSummary(cmd, sum, f.json)
			}
			return exitError(err)
		},
	}

	fl := cmd.Flags()
	fl.BoolVar(&f.disableFlawfinder, "disable-flawfinder", false, "do not run Flawfinder")
	fl.BoolVar(&f.disableCppcheck, "disable-cppcheck", false, "do not run Cppcheck")
	fl.BoolVar(&f.disableInfer, "disable-infer", false, "do not run Infer")
	fl.IntVarP(&f.workers, "worker-threads", "w", 4, "concurrent workers, each mining one repository at a time")
	fl.Int64VarP(&f.maxRepoSize, "max-repo-size", "m", 0, "skip repositories larger than this many KB (0 = no limit)")
	fl.StringVar(&f.policy, "policy", "", "commit classification policy: strong, medium or low")
	fl.StringVar(&f.division, "division", "", "work division: successive, percentile or random")
	fl.Uint64Var(&f.seed, "seed", 0, "seed for the random division")
	fl.StringVar(&f.language, "language", "", "repository language to discover")
	fl.StringVar(&f.source, "source", "", "discovery source: search or trending")
	fl.StringVar(&f.workDir, "work-dir", "", "parent directory for temporary clones")
	fl.StringVar(&f.stateDir, "state-dir", "", "directory for run state (default "+runstate.DefaultDir+")")
	fl.StringVar(&f.upload, "upload", "", "upload the dataset to s3://bucket/prefix after writing")
	fl.DurationVar(&f.cloneTimeout, "clone-timeout", 0, "bound for a single clone (0 = config value)")
	fl.DurationVar(&f.scanTimeout, "scan-timeout", 0, "bound for a single analyzer run (0 = config value)")
	fl.BoolVar(&f.noProgress, "no-progress", false, "log progress instead of drawing bars")
	fl.BoolVar(&f.json, "json", false, "print the run summary as JSON")

	return cmd
}

// apply overlays explicitly set flags on the loaded config.
func (f *generateFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	for name, off := range map[string]bool{
		analyzer.FlawfinderName: f.disableFlawfinder,
		analyzer.CppcheckName:   f.disableCppcheck,
		analyzer.InferName:      f.disableInfer,
	} {
		if off {
			if err := cfg.SetAnalyzer(name, false); err != nil {
				return err
			}
		}
	}
	if changed("worker-threads") {
		cfg.Workers = f.workers
	}
	if changed("max-repo-size") {
		cfg.MaxRepoSizeKB = f.maxRepoSize
	}
	if changed("policy") {
		cfg.Policy = f.policy
	}
	if changed("division") {
		cfg.Division = f.division
	}
	if changed("seed") {
		cfg.Seed = f.seed
	}
	if changed("language") {
		cfg.Language = f.language
	}
	if changed("source") {
		cfg.Discovery.Source = f.source
	}
	if changed("work-dir") {
		cfg.WorkDir = f.workDir
	}
	if changed("state-dir") {
		cfg.StateDir = f.stateDir
	}
	if f.cloneTimeout > 0 {
		cfg.Timeouts.Clone = f.cloneTimeout
	}
	if f.scanTimeout > 0 {
		cfg.Timeouts.Scan = f.scanTimeout
	}
	return cfg.Validate()
}

func newReporter(workers int, noProgress bool) progress.Reporter {
	if !noProgress && isTerminal(os.Stderr) {
		if r, err := progress.NewBarReporter(workers); err == nil {
			return r
		}
	}
	return progress.NewLogReporter(logging.New("progress"), workers)
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func printSummary(cmd *cobra.Command, sum app.Summary, asJSON bool) {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(sum.LastRun)
		return
	}
	_, _ = fmt.Fprint(out, report.Summary(sum.LastRun, report.ASCII))
	if sum.Shortfall() > 0 {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "note: %s\n", sum.LastRun.Note)
	}
}
