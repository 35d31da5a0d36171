package miner

import (
	"context"

	"github.com/bartekus/vcgen/internal/analyzer"
	"github.com/bartekus/vcgen/internal/domain"
	"github.com/bartekus/vcgen/internal/progress"
)

// Collector mines each repository with a fresh Miner and always removes its
// clone before returning.
type Collector struct {
	Tools   []analyzer.Tool
	WorkDir string
	Options Options
}

func (c *Collector) Collect(ctx context.Context, loc domain.RepositoryLocation, quota int, sink progress.Sink) ([]domain.AnalyzedFile, error) {
	if sink == nil {
		sink = progress.Nop{}
	}
	sink.SetStatus("cloning " + loc.Name())
	m, err := New(ctx, loc, c.WorkDir, c.Options)
	if err != nil {
		return nil, err
	}
	defer func() { _ = m.Close() }()

	return m.Collect(ctx, c.Tools, quota, sink)
}
