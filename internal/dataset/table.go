package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ErrDataLoad is wrapped by every load failure: unreadable stream, malformed
// CSV, or a header with zero columns.
var ErrDataLoad = errors.New("dataset could not be loaded")

// Kind is the inferred type of a column.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
)

// Column is a named column with its inferred kind.
type Column struct {
	Name string
	Kind Kind
}

// Table is an immutable in-memory dataset. It is built once by Load and
// never mutated; a re-upload replaces the whole Table.
type Table struct {
	cols []Column
	rows [][]string
}

// Load parses a CSV stream into a Table. The first record is the header;
// every data record must have the same number of fields as the header.
func Load(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrDataLoad)
		}
		return nil, fmt.Errorf("%w: %v", ErrDataLoad, err)
	}
	named := false
	for _, name := range header {
		if name != "" {
			named = true
			break
		}
	}
	if len(header) == 0 || !named {
		return nil, fmt.Errorf("%w: no columns", ErrDataLoad)
	}

	var rows [][]string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDataLoad, err)
		}
		row := make([]string, len(record))
		copy(row, record)
		rows = append(rows, row)
	}

	cols := make([]Column, len(header))
	for i, name := range header {
		cols[i] = Column{Name: name, Kind: inferKind(rows, i)}
	}

	return &Table{cols: cols, rows: rows}, nil
}

// inferKind reports numeric when every non-empty cell in the column parses
// as a float and at least one cell is non-empty.
func inferKind(rows [][]string, col int) Kind {
	nonEmpty := 0
	for _, row := range rows {
		v := row[col]
		if v == "" {
			continue
		}
		nonEmpty++
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return KindText
		}
	}
	if nonEmpty == 0 {
		return KindText
	}
	return KindNumeric
}

// Columns returns a copy of the column descriptors in order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.cols))
	copy(out, t.cols)
	return out
}

// RowCount returns the number of data rows.
func (t *Table) RowCount() int { return len(t.rows) }

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int { return len(t.cols) }

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.cols {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Values returns the raw cell values of the named column in row order.
func (t *Table) Values(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("no such column: %q", name)
	}
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[idx]
	}
	return out, nil
}

// NumericValues returns the non-empty cells of a numeric column as floats.
func (t *Table) NumericValues(name string) ([]float64, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("no such column: %q", name)
	}
	if t.cols[idx].Kind != KindNumeric {
		return nil, fmt.Errorf("column %q is not numeric", name)
	}
	var out []float64
	for _, row := range t.rows {
		v := row[idx]
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", name, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// head returns up to n data rows.
func (t *Table) head(n int) [][]string {
	if n > len(t.rows) {
		n = len(t.rows)
	}
	return t.rows[:n]
}
