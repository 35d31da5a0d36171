// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bartekus/vcgen/internal/analyzer"
	"github.com/bartekus/vcgen/internal/classify"
	"github.com/bartekus/vcgen/internal/config"
	"github.com/bartekus/vcgen/internal/dataset"
	"github.com/bartekus/vcgen/internal/discovery"
	"github.com/bartekus/vcgen/internal/domain"
	"github.com/bartekus/vcgen/internal/logging"
	"github.com/bartekus/vcgen/internal/miner"
	"github.com/bartekus/vcgen/internal/objectstore"
	"github.com/bartekus/vcgen/internal/progress"
	"github.com/bartekus/vcgen/internal/runstate"
	"github.com/bartekus/vcgen/internal/scheduler"
)

// Request is what the caller asks one run to produce.
type Request struct {
	Entries     int
	Destination string
	// Upload is an optional s3://bucket/prefix location for the written file.
	Upload string
}

// Uploader stores a finished dataset file remotely.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Deps holds collaborators. Zero fields are built from the config.
type Deps struct {
	Source    discovery.Source
	Tools     []analyzer.Tool
	Collector scheduler.Collector
	Reporter  progress.Reporter
	Uploader  Uploader
	Store     *runstate.Store

	AnalyzerOptions []analyzer.Option
	Now             func() time.Time
}

// Summary describes a finished run.
type Summary struct {
	Dataset  dataset.Handle
	Uploaded string
	Result   scheduler.Result
	LastRun  runstate.LastRun
}

// Shortfall is the number of rows missing against the request.
func (s Summary) Shortfall() int { return s.Result.Shortfall() }

// Generate discovers repositories, mines them across the worker pool and
// writes whatever was collected. A shortfall is reported in the summary and
// is not an error. On scheduling failure the partial dataset is still
// written and the error returned.
func Generate(ctx context.Context, cfg config.Config, req Request, deps Deps) (Summary, error) {
	logger := logging.New("generate")
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	started := now().UTC()
	if deps.Reporter != nil {
		// a bar pool holds the terminal until closed, including on early returns
		defer func() {
			if err := deps.Reporter.Close(); err != nil {
				logger.Debug("closing progress", "err", err)
			}
		}()
	}

	tools, err := Preflight(cfg, req, deps.Tools, deps.AnalyzerOptions...)
	if err != nil {
		return Summary{}, err
	}
	toolNames := analyzer.Names(tools)

	locs, err := discover(ctx, cfg, deps.Source)
	if err != nil {
		return Summary{}, err
	}
	logger.Info("repositories discovered", "count", len(locs), "source", cfg.Discovery.Source)

	collector := deps.Collector
	if collector == nil {
		collector = newCollector(cfg, tools)
	}
	strategy, _ := scheduler.ParseStrategy(cfg.Division)
	sched := scheduler.New(scheduler.Config{
		Workers:  cfg.Workers,
		Entries:  req.Entries,
		Strategy: strategy,
		Seed:     cfg.Seed,
	}, collector, deps.Reporter)

	res, runErr := sched.Run(ctx, locs)

	last := runstate.LastRun{
		StartedAt: started,
		Language:  cfg.Language,
		Policy:    cfg.Policy,
		Division:  cfg.Division,
		Analyzers: toolNames,
		Entries:   req.Entries,
		Collected: len(res.Files),
		Shortfall: runstate.ShortWorkers(res.Workers),
		Workers:   res.Workers,
	}
	sum := Summary{Result: res}

	// the dataset is written even when the run was cancelled
	writeCtx := context.WithoutCancel(ctx)
	handle, err := dataset.Write(writeCtx, res.Files, toolNames, req.Destination)
	if err != nil {
		last.Status = runstate.StatusFail
		last.Note = err.Error()
		finish(deps.Store, &last, now, logger)
		sum.LastRun = last
		return sum, err
	}
	sum.Dataset = handle
	last.Dataset = handle.Destination
	logger.Info("dataset written", "destination", handle.Destination, "rows", handle.Rows, "format", handle.Format)

	if req.Upload != "" && runErr == nil {
		loc, err := upload(writeCtx, cfg, req, deps.Uploader)
		if err != nil {
			last.Status = runstate.StatusFail
			last.Note = err.Error()
			finish(deps.Store, &last, now, logger)
			sum.LastRun = last
			return sum, err
		}
		sum.Uploaded = loc
		last.Uploaded = loc
		logger.Info("dataset uploaded", "location", loc)
	}

	last.Status = runstate.StatusFor(res, runErr)
	switch {
	case runErr != nil:
		last.Note = runErr.Error()
	case !res.QuotaMet():
		last.Note = fmt.Sprintf("collected %d of %d entries; %d worker(s) failed to reach quota",
			len(res.Files), req.Entries, len(last.Shortfall))
	}
	finish(deps.Store, &last, now, logger)
	sum.LastRun = last
	return sum, runErr
}

// Discover lists the repositories a run with cfg would mine.
func Discover(ctx context.Context, cfg config.Config, src discovery.Source) ([]domain.RepositoryLocation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return discover(ctx, cfg, src)
}

func discover(ctx context.Context, cfg config.Config, src discovery.Source) ([]domain.RepositoryLocation, error) {
	if src == nil {
		var err error
		src, err = discovery.New(cfg.Discovery.Source, cfg.GitHubToken, discovery.Options{
			Pages:   cfg.Discovery.Pages,
			PerPage: cfg.Discovery.PerPage,
			Timeout: cfg.Timeouts.Discovery,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDependencyMissing, err)
		}
	}
	if cfg.Timeouts.Discovery > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeouts.Discovery)
		defer cancel()
	}
	locs, err := src.Discover(ctx, discovery.Query{Language: cfg.Language, SizeLimitKB: cfg.MaxRepoSizeKB})
	if err != nil {
		return nil, fmt.Errorf("discovering repositories: %w", err)
	}
	return locs, nil
}

func newCollector(cfg config.Config, tools []analyzer.Tool) *miner.Collector {
	policy, _ := classify.ParsePolicy(cfg.Policy)
	return &miner.Collector{
		Tools:   tools,
		WorkDir: cfg.WorkDir,
		Options: miner.Options{
			Policy:       policy,
			Filter:       cfg.FilterOptions(),
			MaxSizeKB:    cfg.MaxRepoSizeKB,
			CloneTimeout: cfg.Timeouts.Clone,
			ScanTimeout:  cfg.Timeouts.Scan,
			CacheSize:    cfg.CacheSize,
			Logger:       logging.New("miner"),
		},
	}
}

func upload(ctx context.Context, cfg config.Config, req Request, up Uploader) (string, error) {
	if up == nil {
		uc, err := uploadConfig(cfg, req.Upload)
		if err != nil {
			return "", err
		}
		u, err := objectstore.New(uc)
		if err != nil {
			return "", err
		}
		up = u
	}
	return up.Upload(ctx, req.Destination)
}

func finish(store *runstate.Store, last *runstate.LastRun, now func() time.Time, logger *slog.Logger) {
	last.FinishedAt = now().UTC()
	if store == nil {
		return
	}
	if err := store.WriteLastRun(*last); err != nil {
		logger.Warn("recording run state", "err", err)
	}
}
