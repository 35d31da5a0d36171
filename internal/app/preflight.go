// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires discovery, mining, persistence and run state into the
// generate operation.
package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bartekus/vcgen/internal/analyzer"
	"github.com/bartekus/vcgen/internal/config"
	"github.com/bartekus/vcgen/internal/dataset"
	"github.com/bartekus/vcgen/internal/discovery"
	"github.com/bartekus/vcgen/internal/objectstore"
)

// ErrDependencyMissing is fatal and reported before any work starts.
var ErrDependencyMissing = errors.New("dependency missing")

// Preflight checks everything a run needs before it clones anything. tools
// overrides the analyzers built from cfg; they must still be installed.
func Preflight(cfg config.Config, req Request, tools []analyzer.Tool, opts ...analyzer.Option) ([]analyzer.Tool, error) {
	if req.Entries < 1 {
		return nil, fmt.Errorf("%w: entries must be a positive integer, got %d", config.ErrInvalid, req.Entries)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, err := dataset.FormatFor(req.Destination)
	if err != nil {
		return nil, err
	}

	if tools == nil {
		if len(cfg.EnabledAnalyzers()) == 0 {
			return nil, fmt.Errorf("%w: no analyzer enabled", ErrDependencyMissing)
		}
		tools, err = analyzer.Select(cfg.Analyzers, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", config.ErrInvalid, err)
		}
	}
	if len(tools) == 0 {
		return nil, fmt.Errorf("%w: no analyzer enabled", ErrDependencyMissing)
	}
	var missing []string
	for _, t := range tools {
		if _, ok := t.InstallLocation(); ok {
			continue
		}
		hint := t.Name()
		if e, ok := t.(interface{ EnvVar() string }); ok {
			hint += " (set " + e.EnvVar() + ")"
		}
		missing = append(missing, hint)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: analyzer not installed: %s", ErrDependencyMissing, strings.Join(missing, ", "))
	}

	if strings.EqualFold(cfg.Discovery.Source, discovery.SourceSearch) && cfg.GitHubToken == "" {
		return nil, fmt.Errorf("%w: %s is required for the %s source", ErrDependencyMissing, config.EnvGitHubToken, discovery.SourceSearch)
	}

	if req.Upload != "" {
		if !format.IsFile() {
			return nil, fmt.Errorf("%w: --upload needs a file destination, not %s", config.ErrInvalid, format)
		}
		if _, err := uploadConfig(cfg, req.Upload); err != nil {
			return nil, err
		}
	}
	return tools, nil
}

// uploadConfig merges an s3:// location into the configured endpoint and
// credentials.
func uploadConfig(cfg config.Config, location string) (objectstore.Config, error) {
	bucket, prefix, err := objectstore.ParseURL(location)
	if err != nil {
		return objectstore.Config{}, fmt.Errorf("%w: %w", config.ErrInvalid, err)
	}
	uc := cfg.Upload
	uc.Bucket = bucket
	if prefix != "" {
		uc.Prefix = prefix
	}
	if uc.Endpoint == "" {
		return objectstore.Config{}, fmt.Errorf("%w: upload.endpoint is not configured", ErrDependencyMissing)
	}
	if uc.AccessKey == "" || uc.SecretKey == "" {
		return objectstore.Config{}, fmt.Errorf("%w: %s and %s are required for uploads",
			ErrDependencyMissing, config.EnvS3AccessKey, config.EnvS3SecretKey)
	}
	return uc, nil
}
