// Package progress reports mining progress. Sinks are observational only:
// nothing in the pipeline branches on them.
package progress

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/cheggaaa/pb/v3"
)

// Sink receives per-worker progress.
type Sink interface {
	// Advance records one emitted dataset row.
	Advance()
	// SetStatus replaces the current status message.
	SetStatus(msg string)
}

// Reporter hands out one Sink per worker and closes them all at the end.
type Reporter interface {
	Worker(index, quota int) Sink
	// Finish marks a worker done; met is false when it fell short of quota.
	Finish(index int, met bool)
	// Close may be called more than once.
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Advance()         {}
func (Nop) SetStatus(string) {}

// NopReporter hands out Nop sinks.
type NopReporter struct{}

func (NopReporter) Worker(int, int) Sink { return Nop{} }
func (NopReporter) Finish(int, bool)     {}
func (NopReporter) Close() error         { return nil }

// LogSink logs status changes at debug level and counts advances.
type LogSink struct {
	logger *slog.Logger
	count  atomic.Int64
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Advance() { s.count.Add(1) }

func (s *LogSink) SetStatus(msg string) {
	s.logger.Debug(msg, "collected", s.count.Load())
}

// Count returns the number of Advance calls so far.
func (s *LogSink) Count() int64 { return s.count.Load() }

// LogReporter is the Reporter used when stderr is not a terminal.
type LogReporter struct {
	logger *slog.Logger
	sinks  []*LogSink
}

// NewLogReporter sizes the reporter for a fixed worker count.
func NewLogReporter(logger *slog.Logger, workers int) *LogReporter {
	return &LogReporter{logger: logger, sinks: make([]*LogSink, workers)}
}

func (r *LogReporter) Worker(index, quota int) Sink {
	s := NewLogSink(r.logger.With("worker", index, "quota", quota))
	r.sinks[index] = s
	return s
}

func (r *LogReporter) Finish(index int, met bool) {
	s := r.sinks[index]
	if s == nil {
		return
	}
	if met {
		s.logger.Info("worker finished", "collected", s.Count())
		return
	}
	s.logger.Warn("failed to reach quota", "collected", s.Count())
}

func (r *LogReporter) Close() error { return nil }

const barTemplate = `{{string . "prefix"}} {{counters . }} {{bar . "[" "=" ">" "-" "]"}} {{etime . }} {{string . "status"}}`

// BarReporter draws one pb bar per worker in a shared pool.
type BarReporter struct {
	pool *pb.Pool
	bars []*pb.ProgressBar

	stopOnce sync.Once
	stopErr  error
}

// NewBarReporter starts an empty pool sized for workers bars.
func NewBarReporter(workers int) (*BarReporter, error) {
	pool, err := pb.StartPool()
	if err != nil {
		return nil, fmt.Errorf("starting progress pool: %w", err)
	}
	return &BarReporter{pool: pool, bars: make([]*pb.ProgressBar, workers)}, nil
}

func (r *BarReporter) Worker(index, quota int) Sink {
	bar := pb.ProgressBarTemplate(barTemplate).New(quota)
	bar.Set("prefix", fmt.Sprintf("worker %d", index))
	bar.Set("status", "")
	r.bars[index] = bar
	r.pool.Add(bar)
	return barSink{bar: bar}
}

func (r *BarReporter) Finish(index int, met bool) {
	bar := r.bars[index]
	if bar == nil {
		return
	}
	if met {
		bar.Set("status", "done")
	} else {
		bar.Set("status", "failed to reach quota")
	}
	bar.Finish()
}

// Close stops the pool and restores the terminal. Later calls are no-ops.
func (r *BarReporter) Close() error {
	r.stopOnce.Do(func() { r.stopErr = r.pool.Stop() })
	return r.stopErr
}

type barSink struct {
	bar *pb.ProgressBar
}

func (s barSink) Advance()             { s.bar.Increment() }
func (s barSink) SetStatus(msg string) { s.bar.Set("status", msg) }
