// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dataset persists analyzed files as a table, one row per file.
//
// Columns are "GitHub URL", "Commit Hash", "File", "Code", then
// "<Tool> Vulnerabilities" and "<Tool> CWEs" for every enabled analyzer.
// Multi-valued cells are joined with a single space and split on whitespace
// when read back, so a finding that contains spaces does not survive a round
// trip as one element. Cells of an analyzer that did not run are null where
// the format has nulls (JSON, SQL) and empty otherwise (CSV).
package dataset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bartekus/vcgen/internal/domain"
)

var ErrUnsupportedFormat = errors.New("unsupported dataset format")

const (
	ColRepository = "GitHub URL"
	ColCommit     = "Commit Hash"
	ColFile       = "File"
	ColCode       = "Code"

	findingsSuffix = " Vulnerabilities"
	weaknessSuffix = " CWEs"
)

type Format string

const (
	JSONL    Format = "jsonl"
	CSV      Format = "csv"
	SQLite   Format = "sqlite"
	Postgres Format = "postgres"
)

// FormatFor picks the format from a destination path or URL.
func FormatFor(dest string) (Format, error) {
	lower := strings.ToLower(dest)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return Postgres, nil
	}
	switch filepath.Ext(lower) {
	case ".jsonl", ".json", ".ndjson":
		return JSONL, nil
	case ".csv":
		return CSV, nil
	case ".db", ".sqlite", ".sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("%w: %q (use .jsonl, .csv, .sqlite or a postgres:// URL)", ErrUnsupportedFormat, dest)
}

// IsFile reports whether the format writes a local file.
func (f Format) IsFile() bool { return f != Postgres }

// Columns returns the header for the given analyzers, in order.
func Columns(tools []string) []string {
	cols := []string{ColRepository, ColCommit, ColFile, ColCode}
	for _, t := range tools {
		cols = append(cols, t+findingsSuffix, t+weaknessSuffix)
	}
	return cols
}

// Handle describes a written dataset.
type Handle struct {
	Destination string   `json:"destination"`
	Format      Format   `json:"format"`
	Rows        int      `json:"rows"`
	Columns     []string `json:"columns"`
}

// Write persists records to dest. tools fixes the analyzer columns and their
// order; results for analyzers not listed are dropped.
func Write(ctx context.Context, records []domain.AnalyzedFile, tools []string, dest string) (Handle, error) {
	format, err := FormatFor(dest)
	if err != nil {
		return Handle{}, err
	}
	switch format {
	case JSONL:
		err = writeJSONL(records, tools, dest)
	case CSV:
		err = writeCSV(records, tools, dest)
	case SQLite:
		err = writeSQLite(ctx, records, tools, dest)
	case Postgres:
		err = writePostgres(ctx, records, tools, dest)
	}
	if err != nil {
		return Handle{}, fmt.Errorf("writing %s dataset: %w", format, err)
	}
	return Handle{
		Destination: redact(dest),
		Format:      format,
		Rows:        len(records),
		Columns:     Columns(tools),
	}, nil
}

// Read loads a dataset written by Write. It returns the rows and the
// analyzer names found in the header.
func Read(ctx context.Context, src string) ([]domain.AnalyzedFile, []string, error) {
	format, err := FormatFor(src)
	if err != nil {
		return nil, nil, err
	}
	switch format {
	case JSONL:
		return readJSONL(src)
	case CSV:
		return readCSV(src)
	case SQLite:
		return readSQLite(ctx, src)
	default:
		return nil, nil, fmt.Errorf("%w: reading %s is not supported", ErrUnsupportedFormat, format)
	}
}

// cell is one table value; null marks an analyzer that did not run.
type cell struct {
	value string
	null  bool
}

func toCells(f domain.AnalyzedFile, tools []string) []cell {
	cells := []cell{{value: f.Repository}, {value: f.CommitHash}, {value: f.Path}, {value: f.Code}}
	for _, t := range tools {
		res, ok := f.Result(t)
		if !ok {
			cells = append(cells, cell{null: true}, cell{null: true})
			continue
		}
		cells = append(cells,
			cell{value: strings.Join(res.Findings, " ")},
			cell{value: strings.Join(res.WeaknessIDs, " ")},
		)
	}
	return cells
}

// toolsFromHeader lists analyzers in header order.
func toolsFromHeader(header []string) []string {
	var tools []string
	for _, h := range header {
		if name, ok := strings.CutSuffix(h, findingsSuffix); ok {
			tools = append(tools, name)
		}
	}
	return tools
}

func fromCells(header []string, cells []cell) (domain.AnalyzedFile, error) {
	if len(header) != len(cells) {
		return domain.AnalyzedFile{}, fmt.Errorf("row has %d cells, header has %d", len(cells), len(header))
	}
	f := domain.AnalyzedFile{Results: map[string]domain.ToolResult{}}
	for i, h := range header {
		c := cells[i]
		switch {
		case h == ColRepository:
			f.Repository = c.value
		case h == ColCommit:
			f.CommitHash = c.value
		case h == ColFile:
			f.Path = c.value
		case h == ColCode:
			f.Code = c.value
		case strings.HasSuffix(h, findingsSuffix):
			if c.null {
				continue
			}
			name := strings.TrimSuffix(h, findingsSuffix)
			r := f.Results[name]
			r.Findings = split(c.value)
			f.Results[name] = r
		case strings.HasSuffix(h, weaknessSuffix):
			if c.null {
				continue
			}
			name := strings.TrimSuffix(h, weaknessSuffix)
			r := f.Results[name]
			r.WeaknessIDs = split(c.value)
			f.Results[name] = r
		}
	}
	return f, nil
}

func split(s string) []string {
	fields := strings.Fields(s)
	if fields == nil {
		return []string{}
	}
	return fields
}
