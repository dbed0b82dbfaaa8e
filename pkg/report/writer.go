package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// CSVWriter writes a report to a CSV file. Write stages the report in a
// temporary file next to the destination; the file appears under its final
// name only on Close.
type CSVWriter struct {
	path string
	tmp  string
}

// NewCSVWriter returns a writer for path. Nothing is created until Write.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{path: path}
}

// Path returns the destination file.
func (w *CSVWriter) Path() string {
	return w.path
}

// Write writes t to a temporary file in the destination directory.
func (w *CSVWriter) Write(t Table) error {
	if w.tmp != "" {
		return errors.New("report: already staged")
	}
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("report: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".report-*.csv")
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := WriteCSV(tmp, t); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("report: %w", err)
	}
	w.tmp = tmp.Name()
	return nil
}

// Close renames the staged file into place. It is a no-op if nothing was
// written.
func (w *CSVWriter) Close() error {
	if w.tmp == "" {
		return nil
	}
	tmp := w.tmp
	w.tmp = ""
	if err := os.Rename(tmp, w.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// Abort removes the staged file.
func (w *CSVWriter) Abort() error {
	if w.tmp == "" {
		return nil
	}
	tmp := w.tmp
	w.tmp = ""
	if err := os.Remove(tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}
