package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hed1ad/turbineguard/pkg/report"
)

// Writer saves reports to a Store it owns. Write stages the report in an open
// transaction; Close commits it and Abort rolls it back. Both close the store.
type Writer struct {
	ctx    context.Context
	store  *Store
	tx     *sql.Tx
	staged report.Table
}

// NewWriter returns a Writer that saves with ctx and closes s when done.
func NewWriter(ctx context.Context, s *Store) *Writer {
	return &Writer{ctx: ctx, store: s}
}

// Write inserts t without committing.
func (w *Writer) Write(t report.Table) error {
	if w.tx != nil {
		return errors.New("store: report already staged")
	}
	tx, err := w.store.stageReport(w.ctx, t)
	if err != nil {
		return err
	}
	w.tx = tx
	w.staged = t
	return nil
}

// Close commits the staged report, if any, and closes the store.
func (w *Writer) Close() error {
	var err error
	if w.tx != nil {
		err = w.store.commit(w.tx, w.staged)
		w.tx = nil
	}
	return errors.Join(err, w.store.Close())
}

// Abort discards the staged report and closes the store.
func (w *Writer) Abort() error {
	var err error
	if w.tx != nil {
		err = w.tx.Rollback()
		w.tx = nil
	}
	return errors.Join(err, w.store.Close())
}
