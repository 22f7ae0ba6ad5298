package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaMismatch reports a table whose shape is internally inconsistent:
// a data row with a cell count that disagrees with the header count, or a
// grid with no header row at all. Wrapped instances carry the offending row
// index and widths. Match with errors.Is.
var ErrSchemaMismatch = errors.New("schema mismatch")

// Table is the in-memory form of one tabular dataset: an ordered header row
// plus zero or more data rows aligned positionally with the headers.
//
// Headers are lookup keys for policy matching and are not required to be
// unique. When a header is duplicated, exclusion drops every column carrying
// that name and renaming applies to every survivor; consumers that key by
// header (rather than by position) see the first occurrence win.
//
// Cell values are already-stringified by the storage adapter (empty string,
// text, numeric text, or timestamp text); no further type coercion happens
// here. The invariant every operation relies on: len(row) == len(Headers)
// for every row. Malformed tables are rejected, never repaired.
type Table struct {
	Headers []string   `json:"headers" validate:"required,min=1"`
	Rows    [][]string `json:"rows"`
}

// ColumnPolicy holds the exclude/rename rules applied when projecting a
// Table. Exclusion is evaluated before renaming; a header absent from Rename
// keeps its original name. Entries naming headers that do not exist are
// ignored so an evolving question set cannot break the pipeline.
type ColumnPolicy struct {
	Exclude []string          `json:"exclude,omitempty" yaml:"exclude"`
	Rename  map[string]string `json:"rename,omitempty" yaml:"rename"`
}

// NewTable builds a Table from the raw 2-D cell grid a storage adapter
// delivers: first row headers, remaining rows data. Header names are trimmed
// of surrounding whitespace; data cells are taken verbatim.
func NewTable(grid [][]string) (Table, error) {
	if len(grid) == 0 {
		return Table{}, fmt.Errorf("%w: grid has no header row", ErrSchemaMismatch)
	}

	headers := make([]string, len(grid[0]))
	for i, h := range grid[0] {
		headers[i] = strings.TrimSpace(h)
	}

	rows := make([][]string, 0, len(grid)-1)
	for _, row := range grid[1:] {
		rows = append(rows, append([]string(nil), row...))
	}

	t := Table{Headers: headers, Rows: rows}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Validate checks the positional-alignment invariant.
func (t Table) Validate() error {
	if len(t.Headers) == 0 {
		return fmt.Errorf("%w: table has no headers", ErrSchemaMismatch)
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			return fmt.Errorf("%w: row %d has %d cells, header has %d",
				ErrSchemaMismatch, i, len(row), len(t.Headers))
		}
	}
	return nil
}

// Project applies a ColumnPolicy: drop excluded columns, rename survivors,
// keep column order and every row. The receiver is not modified.
//
// Guarantees: output column count = input count minus excluded count; output
// row count = input row count; surviving columns keep their relative order.
// Fails with ErrSchemaMismatch when any row violates the alignment invariant;
// no partial result is returned.
func (t Table) Project(policy ColumnPolicy) (Table, error) {
	if err := t.Validate(); err != nil {
		return Table{}, err
	}

	excluded := make(map[string]struct{}, len(policy.Exclude))
	for _, h := range policy.Exclude {
		excluded[h] = struct{}{}
	}

	keep := make([]int, 0, len(t.Headers))
	headers := make([]string, 0, len(t.Headers))
	for i, h := range t.Headers {
		if _, drop := excluded[h]; drop {
			continue
		}
		keep = append(keep, i)
		if renamed, ok := policy.Rename[h]; ok {
			h = renamed
		}
		headers = append(headers, h)
	}

	rows := make([][]string, len(t.Rows))
	for ri, row := range t.Rows {
		projected := make([]string, len(keep))
		for pi, ci := range keep {
			projected[pi] = row[ci]
		}
		rows[ri] = projected
	}

	return Table{Headers: headers, Rows: rows}, nil
}

// Clone returns a deep copy, so callers can hand tables across goroutine or
// storage boundaries without aliasing the backing slices.
func (t Table) Clone() Table {
	headers := append([]string(nil), t.Headers...)
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = append([]string(nil), row...)
	}
	return Table{Headers: headers, Rows: rows}
}

// Grid flattens the table back into the adapter wire shape: header row first,
// data rows after.
func (t Table) Grid() [][]string {
	grid := make([][]string, 0, len(t.Rows)+1)
	grid = append(grid, append([]string(nil), t.Headers...))
	for _, row := range t.Rows {
		grid = append(grid, append([]string(nil), row...))
	}
	return grid
}

// RowCount returns the number of data rows (header excluded).
func (t Table) RowCount() int { return len(t.Rows) }

// ColumnCount returns the number of columns.
func (t Table) ColumnCount() int { return len(t.Headers) }

// IsEmpty reports whether the table has headers but no data rows.
func (t Table) IsEmpty() bool { return len(t.Rows) == 0 }

// Column returns the cells of column i in row order. It panics if i is out of
// range, mirroring slice indexing; callers iterate bounded by ColumnCount.
func (t Table) Column(i int) []string {
	cells := make([]string, len(t.Rows))
	for ri, row := range t.Rows {
		cells[ri] = row[i]
	}
	return cells
}
