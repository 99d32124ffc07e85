// Package csvutil reads and writes header-first CSV tables.
package csvutil

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/brightsidebudget/bsb/internal/apperr"
)

// Table is a CSV header plus its data rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Read reads a whole comma-separated table. Every row must be as wide as the
// header, otherwise an *apperr.RowShapeError is returned.
func Read(r io.Reader) (*Table, error) {
	return ReadDelim(r, ',')
}

// ReadDelim is Read with another field delimiter.
func ReadDelim(r io.Reader, comma rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	t := &Table{Header: records[0], Rows: records[1:]}
	for i, rec := range t.Rows {
		if len(rec) != len(t.Header) {
			return nil, &apperr.RowShapeError{Row: i + 2, Got: len(rec), Want: len(t.Header)}
		}
	}
	return t, nil
}

// Index returns the column of name, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Records returns one map per row keyed by rename(header). A nil rename keeps
// the header labels. Empty cells are omitted. Two non-blank labels that
// rename to the same key are an apperr.ErrDuplicateColumn.
func (t *Table) Records(rename func(string) string) ([]map[string]string, error) {
	keys := make([]string, len(t.Header))
	seen := make(map[string]string, len(t.Header))
	for i, h := range t.Header {
		k := h
		if rename != nil {
			k = rename(h)
		}
		if prev, ok := seen[k]; ok && k != "" {
			return nil, fmt.Errorf("%w: %q and %q", apperr.ErrDuplicateColumn, prev, h)
		}
		seen[k] = h
		keys[i] = k
	}

	out := make([]map[string]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]string, len(row))
		for i, v := range row {
			if v == "" {
				continue
			}
			rec[keys[i]] = v
		}
		out = append(out, rec)
	}
	return out, nil
}

// Write writes a header and rows. Rows must match the header width.
func Write(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range rows {
		if len(row) != len(header) {
			return &apperr.RowShapeError{Row: i + 2, Got: len(row), Want: len(header)}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
