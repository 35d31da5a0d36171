package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bartekus/vcgen/internal/domain"
	"github.com/bartekus/vcgen/internal/fsutil"
)

func EncodeCSV(w io.Writer, records []domain.AnalyzedFile, tools []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns(tools)); err != nil {
		return err
	}
	row := make([]string, 0, len(Columns(tools)))
	for _, rec := range records {
		row = row[:0]
		for _, c := range toCells(rec, tools) {
			row = append(row, c.value)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeCSV(records []domain.AnalyzedFile, tools []string, dest string) error {
	return fsutil.AtomicWriteFunc(dest, func(w io.Writer) error {
		return EncodeCSV(w, records, tools)
	})
}

// DecodeCSV reads a table written by EncodeCSV. CSV has no nulls, so every
// analyzer column in the header yields a result, possibly empty.
func DecodeCSV(r io.Reader) ([]domain.AnalyzedFile, []string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	var records []domain.AnalyzedFile
	for n := 2; ; n++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", n, err)
		}
		cells := make([]cell, len(row))
		for i, v := range row {
			cells[i] = cell{value: v}
		}
		rec, err := fromCells(header, cells)
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", n, err)
		}
		records = append(records, rec)
	}
	return records, toolsFromHeader(header), nil
}

func readCSV(src string) ([]domain.AnalyzedFile, []string, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return DecodeCSV(f)
}
