// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bartekus/vcgen/cmd/vcgen/internal/clierr"
	"github.com/bartekus/vcgen/internal/app"
	"github.com/bartekus/vcgen/internal/config"
	"github.com/bartekus/vcgen/internal/dataset"
	"github.com/bartekus/vcgen/internal/scheduler"
)

// exitError attaches the exit code for err's category.
func exitError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, config.ErrInvalid), errors.Is(err, dataset.ErrUnsupportedFormat):
		return clierr.Wrap(clierr.ExitUsage, "", err)
	case errors.Is(err, app.ErrDependencyMissing):
		return clierr.Wrap(clierr.ExitDependency, "", err)
	case errors.Is(err, scheduler.ErrScheduling):
		return clierr.Wrap(clierr.ExitScheduling, "", err)
	default:
		return err
	}
}

func usageError(err error) error {
	return clierr.Wrap(clierr.ExitUsage, "", err)
}

// exactArgs is cobra.ExactArgs with a usage exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

func positiveInt(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, clierr.Newf(clierr.ExitUsage, "%s must be an integer, got %q", name, s)
	}
	if n <= 0 {
		return 0, clierr.Newf(clierr.ExitUsage, "%s must be a positive integer, got %d", name, n)
	}
	return n, nil
}
