// Package csv provides CSV file reading for sensor datasets.
package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/hed1ad/turbineguard/pkg/dataset"
)

// Reader reads a dataset from a CSV source with a header row.
type Reader struct {
	file    *os.File
	reader  *csv.Reader
	headers []string
	skipped int
	dropped []string
	trim    bool
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithComma sets the field delimiter.
func WithComma(r rune) Option {
	return func(rd *Reader) {
		rd.reader.Comma = r
	}
}

// WithTrimSpace trims whitespace around header names and cells.
func WithTrimSpace(trim bool) Option {
	return func(rd *Reader) {
		rd.trim = trim
	}
}

// NewReader opens filename and reads its header.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	r, err := newReader(file, opts...)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.file = file
	return r, nil
}

// NewReaderFrom reads CSV data from src.
func NewReaderFrom(src io.Reader, opts ...Option) (*Reader, error) {
	return newReader(src, opts...)
}

func newReader(src io.Reader, opts ...Option) (*Reader, error) {
	r := &Reader{
		reader: csv.NewReader(src),
		trim:   true,
	}
	r.reader.FieldsPerRecord = -1

	for _, opt := range opts {
		opt(r)
	}

	headers, err := r.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv: missing header row")
		}
		return nil, fmt.Errorf("csv: read header: %w", err)
	}
	for i, h := range headers {
		if r.trim {
			h = strings.TrimSpace(h)
		}
		headers[i] = strings.TrimPrefix(h, "\ufeff")
	}
	r.headers = headers

	return r, nil
}

// Headers returns the column headers.
func (r *Reader) Headers() []string {
	return r.headers
}

// Skipped returns the number of rows dropped by the last Read.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Dropped returns the text columns left out by the last Read, in header
// order.
func (r *Reader) Dropped() []string {
	return r.dropped
}

// Read returns all rows as a dataset.
// Rows with the wrong number of fields are skipped. A column with any
// non-numeric, non-missing cell is a text column and is left out.
func (r *Reader) Read() (*dataset.Dataset, error) {
	var records [][]string
	r.skipped = 0
	r.dropped = nil

	for {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if len(record) != len(r.headers) {
			r.skipped++
			continue
		}
		if r.trim {
			for i := range record {
				record[i] = strings.TrimSpace(record[i])
			}
		}
		records = append(records, record)
	}

	numeric := make([]int, 0, len(r.headers))
	names := make([]string, 0, len(r.headers))
	for j, name := range r.headers {
		if isNumericColumn(records, j) {
			numeric = append(numeric, j)
			names = append(names, name)
		} else {
			r.dropped = append(r.dropped, name)
		}
	}

	rows := make([][]float64, len(records))
	for i, record := range records {
		rows[i] = parseRow(record, numeric)
	}

	return dataset.New(names, rows)
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

func isNumericColumn(records [][]string, j int) bool {
	for _, record := range records {
		val := record[j]
		if isMissing(val) {
			continue
		}
		if _, err := strconv.ParseFloat(val, 64); err != nil {
			return false
		}
	}
	return true
}

// parseRow converts the numeric columns of record to floats. Missing cells
// become NaN.
func parseRow(record []string, columns []int) []float64 {
	row := make([]float64, len(columns))
	for i, j := range columns {
		val := record[j]
		if isMissing(val) {
			row[i] = math.NaN()
			continue
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			f = math.NaN()
		}
		row[i] = f
	}
	return row
}

func isMissing(val string) bool {
	switch strings.ToLower(val) {
	case "", "na", "nan", "null":
		return true
	}
	return false
}
