// SPDX-License-Identifier: AGPL-3.0-or-later

/*
vcgen mines public repositories for security-relevant commits and labels the
changed source files with static-analyzer findings, producing a dataset of
vulnerable code.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package commands contains the Cobra commands of the vcgen CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bartekus/vcgen/internal/config"
	"github.com/bartekus/vcgen/internal/logging"
)

// rootOptions are the persistent flags plus the config they resolve to.
type rootOptions struct {
	configPath string
	envFile    string
	verbose    bool
	logFormat  string

	cfg config.Config
}

// NewRootCmd constructs the vcgen root Cobra command.
func NewRootCmd() *cobra.Command {
	version := os.Getenv("VCGEN_VERSION")
	if version == "" {
		version = "0.0.0-dev"
	}
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "vcgen",
		Short: "Vulnerable code dataset generator",
		Long: `vcgen discovers popular repositories, walks their history for
security-relevant commits, runs static analyzers over the files those commits
touched and writes the findings as a dataset.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./"+config.DefaultFile+" when present)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: text or json")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of vcgen",
		// version must work without a readable config
		PersistentPreRun: func(*cobra.Command, []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "vcgen version %s\n", version)
		},
	})

	cmd.AddCommand(newGenerateCommand(opts))
	cmd.AddCommand(newAnalyzersCommand(opts))
	cmd.AddCommand(newDiscoverCommand(opts))
	cmd.AddCommand(newInspectCommand(opts))
	cmd.AddCommand(newReportCommand(opts))
	cmd.AddCommand(newResetCommand(opts))

	return cmd
}

// setup loads .env and the config file, then configures logging.
func (o *rootOptions) setup(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return usageError(err)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return usageError(err)
	}
	cfg.ApplyEnv(nil)

	if o.verbose {
		cfg.Log.Level = "debug"
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return usageError(err)
	}
	logging.Init(level, cfg.Log.Format, cmd.ErrOrStderr())

	o.cfg = cfg
	return nil
}
