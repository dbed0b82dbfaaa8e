// Package dataset holds time-ordered sensor readings as named float64 columns.
package dataset

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrEmpty is returned when a dataset has no records.
	ErrEmpty = errors.New("dataset has no records")

	// ErrLengthMismatch is returned when a column's length differs from the record count.
	ErrLengthMismatch = errors.New("column length does not match record count")

	// ErrColumnExists is returned when adding a column whose name is already taken.
	ErrColumnExists = errors.New("column already exists")
)

// Dataset is an ordered sequence of records sharing one schema.
// Row order is time order and is never changed by this package.
// Columns are append-only: values of an existing column are never replaced.
type Dataset struct {
	names []string
	cols  map[string][]float64
	n     int
}

// New builds a Dataset from a header and row-major values.
func New(names []string, rows [][]float64) (*Dataset, error) {
	d := &Dataset{
		names: make([]string, 0, len(names)),
		cols:  make(map[string][]float64, len(names)),
		n:     len(rows),
	}

	for j, name := range names {
		if _, ok := d.cols[name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnExists, name)
		}
		col := make([]float64, len(rows))
		for i, row := range rows {
			if len(row) != len(names) {
				return nil, fmt.Errorf("row %d has %d values, header has %d: %w",
					i, len(row), len(names), ErrLengthMismatch)
			}
			col[i] = row[j]
		}
		d.names = append(d.names, name)
		d.cols[name] = col
	}

	return d, nil
}

// FromColumns builds a Dataset from named columns in the given order.
func FromColumns(names []string, columns map[string][]float64) (*Dataset, error) {
	d := &Dataset{
		cols: make(map[string][]float64, len(names)),
	}
	for _, name := range names {
		values, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("column %q has no values", name)
		}
		if err := d.AddColumn(name, values); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	return d.n
}

// Names returns the column names in schema order.
func (d *Dataset) Names() []string {
	return slices.Clone(d.names)
}

// Has reports whether the named column exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.cols[name]
	return ok
}

// Column returns a copy of the named column.
func (d *Dataset) Column(name string) ([]float64, bool) {
	col, ok := d.cols[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(col), true
}

// Value returns a single cell.
func (d *Dataset) Value(row int, name string) float64 {
	return d.cols[name][row]
}

// Row returns the values of record i in schema order.
func (d *Dataset) Row(i int) []float64 {
	row := make([]float64, len(d.names))
	for j, name := range d.names {
		row[j] = d.cols[name][i]
	}
	return row
}

// Matrix returns the named columns as a row-major matrix.
// Each row holds the values in the order of names.
func (d *Dataset) Matrix(names []string) ([][]float64, error) {
	cols := make([][]float64, len(names))
	for j, name := range names {
		col, ok := d.cols[name]
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		cols[j] = col
	}

	m := make([][]float64, d.n)
	for i := range m {
		row := make([]float64, len(names))
		for j := range cols {
			row[j] = cols[j][i]
		}
		m[i] = row
	}
	return m, nil
}

// AddColumn appends a new column. The values are copied.
func (d *Dataset) AddColumn(name string, values []float64) error {
	if _, ok := d.cols[name]; ok {
		return fmt.Errorf("%w: %q", ErrColumnExists, name)
	}
	if len(d.names) > 0 && len(values) != d.n {
		return fmt.Errorf("column %q has %d values, dataset has %d records: %w",
			name, len(values), d.n, ErrLengthMismatch)
	}
	if len(d.names) == 0 {
		d.n = len(values)
	}
	d.names = append(d.names, name)
	d.cols[name] = slices.Clone(values)
	return nil
}

// Clone returns a Dataset with the same schema and values.
// Column storage is shared; it is never written after insertion.
func (d *Dataset) Clone() *Dataset {
	c := &Dataset{
		names: slices.Clone(d.names),
		cols:  make(map[string][]float64, len(d.cols)),
		n:     d.n,
	}
	for k, v := range d.cols {
		c.cols[k] = v
	}
	return c
}
