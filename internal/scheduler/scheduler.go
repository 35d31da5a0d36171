// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scheduler fans repository mining out over a fixed worker pool and
// joins the results in worker order.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"golang.org/x/sync/errgroup"

	"github.com/bartekus/vcgen/internal/domain"
	"github.com/bartekus/vcgen/internal/logging"
	"github.com/bartekus/vcgen/internal/progress"
)

// ErrScheduling is returned for invalid pool parameters and when the run is
// cancelled before every worker finished.
var ErrScheduling = errors.New("scheduling error")

// Collector mines one repository for at most quota rows.
type Collector interface {
	Collect(ctx context.Context, loc domain.RepositoryLocation, quota int, sink progress.Sink) ([]domain.AnalyzedFile, error)
}

// CollectorFunc adapts a function to Collector.
type CollectorFunc func(ctx context.Context, loc domain.RepositoryLocation, quota int, sink progress.Sink) ([]domain.AnalyzedFile, error)

func (f CollectorFunc) Collect(ctx context.Context, loc domain.RepositoryLocation, quota int, sink progress.Sink) ([]domain.AnalyzedFile, error) {
	return f(ctx, loc, quota, sink)
}

// Config sizes the pool.
type Config struct {
	Workers  int
	Entries  int
	Strategy Strategy
	Seed     uint64
}

func (c Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: worker count must be positive, got %d", ErrScheduling, c.Workers)
	}
	if c.Entries < 1 {
		return fmt.Errorf("%w: entry count must be positive, got %d", ErrScheduling, c.Entries)
	}
	if !c.Strategy.Valid() {
		return fmt.Errorf("%w: unknown division strategy %q", ErrScheduling, c.Strategy)
	}
	return nil
}

// Assignment is one worker's exclusive share of the run.
type Assignment struct {
	Index        int
	Repositories []domain.RepositoryLocation
	Quota        int
}

// Plan splits locations and entries across the configured workers.
func Plan(cfg Config, locations []domain.RepositoryLocation) ([]Assignment, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	out := make([]Assignment, cfg.Workers)
	for i := range out {
		out[i] = Assignment{
			Index:        i,
			Repositories: WorkerSlice(i, cfg.Workers, locations, cfg.Strategy, cfg.Seed),
			Quota:        WorkerQuota(i, cfg.Workers, cfg.Entries),
		}
	}
	return out, nil
}

// WorkerReport summarizes one worker after the join.
type WorkerReport struct {
	Index        int    `json:"index"`
	Quota        int    `json:"quota"`
	Repositories int    `json:"repositories"`
	Visited      int    `json:"visited"`
	Skipped      int    `json:"skipped"`
	Collected    int    `json:"collected"`
	Err          string `json:"error,omitempty"`
}

// Shortfall is how many rows the worker is missing against its quota.
func (r WorkerReport) Shortfall() int {
	if r.Collected >= r.Quota {
		return 0
	}
	return r.Quota - r.Collected
}

func (r WorkerReport) QuotaMet() bool { return r.Shortfall() == 0 }

// Result is the joined output of a run.
type Result struct {
	Files   []domain.AnalyzedFile
	Workers []WorkerReport
}

// Shortfall is the total number of rows missing across workers.
func (r Result) Shortfall() int {
	n := 0
	for _, w := range r.Workers {
		n += w.Shortfall()
	}
	return n
}

func (r Result) QuotaMet() bool { return r.Shortfall() == 0 }

// Scheduler runs one Collector call per repository, one goroutine per worker.
type Scheduler struct {
	cfg       Config
	collector Collector
	reporter  progress.Reporter
	logger    *slog.Logger
}

func New(cfg Config, collector Collector, reporter progress.Reporter) *Scheduler {
	if reporter == nil {
		reporter = progress.NopReporter{}
	}
	return &Scheduler{
		cfg:       cfg,
		collector: collector,
		reporter:  reporter,
		logger:    logging.New("scheduler"),
	}
}

// Run mines locations and returns every worker's rows concatenated in worker
// order. Falling short of the quota is reported in Result, not as an error.
// On cancellation the rows gathered so far are returned with ErrScheduling.
func (s *Scheduler) Run(ctx context.Context, locations []domain.RepositoryLocation) (Result, error) {
	plan, err := Plan(s.cfg, locations)
	if err != nil {
		return Result{}, err
	}

	sinks := make([]progress.Sink, len(plan))
	for i, a := range plan {
		sinks[i] = s.reporter.Worker(i, a.Quota)
	}

	// Each worker writes only its own slot; slots are read after Wait.
	files := make([][]domain.AnalyzedFile, len(plan))
	reports := make([]WorkerReport, len(plan))

	var g errgroup.Group
	g.SetLimit(len(plan))
	for i, a := range plan {
		g.Go(func() error {
			reports[i], files[i] = s.work(ctx, a, sinks[i])
			s.reporter.Finish(i, reports[i].QuotaMet())
			return nil
		})
	}
	_ = g.Wait()
	if err := s.reporter.Close(); err != nil {
		s.logger.Debug("closing progress", "err", err)
	}

	res := Result{Workers: reports}
	for _, f := range files {
		res.Files = append(res.Files, f...)
	}
	for _, r := range reports {
		if !r.QuotaMet() {
			s.logger.Warn("failed to reach quota", "worker", r.Index, "collected", r.Collected, "quota", r.Quota)
		}
	}

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("%w: %v", ErrScheduling, err)
	}
	return res, nil
}

// work mines a worker's repositories one at a time until its quota is met.
// A panic degrades to an empty result for this worker only.
func (s *Scheduler) work(ctx context.Context, a Assignment, sink progress.Sink) (rep WorkerReport, out []domain.AnalyzedFile) {
	rep = WorkerReport{Index: a.Index, Quota: a.Quota, Repositories: len(a.Repositories)}
	logger := s.logger.With("worker", a.Index)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("worker panicked", "panic", r, "stack", string(debug.Stack()))
			rep.Err = fmt.Sprintf("panic: %v", r)
			rep.Collected = 0
			out = nil
		}
	}()

	for _, loc := range a.Repositories {
		if len(out) >= a.Quota {
			break
		}
		if err := ctx.Err(); err != nil {
			rep.Err = err.Error()
			break
		}

		remaining := a.Quota - len(out)
		got, err := s.collector.Collect(ctx, loc, remaining, sink)
		rep.Visited++
		if len(got) > remaining {
			got = got[:remaining]
		}
		out = append(out, got...)
		if err != nil {
			rep.Skipped++
			logger.Warn("repository skipped", "repo", loc.URL, "err", err)
			sink.SetStatus("skipped " + loc.Name())
		}
	}
	rep.Collected = len(out)
	return rep, out
}
