package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/bartekus/vcgen/internal/domain"
	"github.com/bartekus/vcgen/internal/fsutil"
)

// EncodeJSONL writes one object per record with keys in column order.
func EncodeJSONL(w io.Writer, records []domain.AnalyzedFile, tools []string) error {
	cols := Columns(tools)
	bw := bufio.NewWriter(w)
	var line bytes.Buffer
	for _, rec := range records {
		line.Reset()
		line.WriteByte('{')
		for i, c := range toCells(rec, tools) {
			if i > 0 {
				line.WriteByte(',')
			}
			key, err := json.Marshal(cols[i])
			if err != nil {
				return err
			}
			line.Write(key)
			line.WriteByte(':')
			if c.null {
				line.WriteString("null")
				continue
			}
			val, err := json.Marshal(c.value)
			if err != nil {
				return err
			}
			line.Write(val)
		}
		line.WriteString("}\n")
		if _, err := bw.Write(line.Bytes()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeJSONL(records []domain.AnalyzedFile, tools []string, dest string) error {
	return fsutil.AtomicWriteFunc(dest, func(w io.Writer) error {
		return EncodeJSONL(w, records, tools)
	})
}

// DecodeJSONL reads objects written by EncodeJSONL. The header is taken from
// the key order of the first object.
func DecodeJSONL(r io.Reader) ([]domain.AnalyzedFile, []string, error) {
	dec := json.NewDecoder(r)
	var (
		header  []string
		records []domain.AnalyzedFile
	)
	for n := 1; dec.More(); n++ {
		keys, cells, err := decodeObject(dec)
		if err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", n, err)
		}
		if header == nil {
			header = keys
		}
		rec, err := fromCells(keys, cells)
		if err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", n, err)
		}
		records = append(records, rec)
	}
	return records, toolsFromHeader(header), nil
}

// decodeObject reads one flat object of string or null values, keeping key order.
func decodeObject(dec *json.Decoder) ([]string, []cell, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}
	var (
		keys  []string
		cells []cell
	)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected key, got %v", tok)
		}
		var v *string
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("field %q: %w", key, err)
		}
		keys = append(keys, key)
		if v == nil {
			cells = append(cells, cell{null: true})
		} else {
			cells = append(cells, cell{value: *v})
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, cells, nil
}

func readJSONL(src string) ([]domain.AnalyzedFile, []string, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return DecodeJSONL(f)
}
