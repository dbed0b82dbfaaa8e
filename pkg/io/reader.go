// Package io provides input/output interfaces for sensor datasets and reports.
package io

import (
	"github.com/hed1ad/turbineguard/pkg/dataset"
	"github.com/hed1ad/turbineguard/pkg/io/csv"
	"github.com/hed1ad/turbineguard/pkg/report"
	"github.com/hed1ad/turbineguard/pkg/store"
)

// Reader is the interface for reading a dataset from a source.
type Reader interface {
	// Read returns the complete dataset in source order.
	Read() (*dataset.Dataset, error)

	// Close releases resources.
	Close() error
}

// Writer is the interface for persisting an assembled anomaly report.
// Nothing written is visible until Close succeeds.
type Writer interface {
	// Write stages the whole report.
	Write(table report.Table) error

	// Close publishes the staged report and releases resources.
	Close() error

	// Abort discards the staged report and releases resources.
	Abort() error
}

var (
	_ Reader = (*csv.Reader)(nil)
	_ Writer = (*report.CSVWriter)(nil)
	_ Writer = (*store.Writer)(nil)
)
