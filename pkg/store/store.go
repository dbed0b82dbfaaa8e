// Package store persists anomaly reports in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hed1ad/turbineguard/pkg/detectors"
	"github.com/hed1ad/turbineguard/pkg/report"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("store: run not found")

// Store reads and writes reports.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New wraps an open database. Call Migrate before use.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens the SQLite database at path and migrates it.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := New(db, opts...)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is the summary row of one stored report.
type Run struct {
	ID        string
	CreatedAt time.Time
	Rows      int
	Anomalies int
	Sensors   []string
	Sigma     float64
	Threshold float64
}

// Anomaly is one flagged record of a stored report.
type Anomaly struct {
	Row       int
	ZFlag     bool
	IsoFlag   bool
	ResFlag   bool
	Predicted float64
	Residual  float64
	Values    map[string]float64
}

// SaveReport stores t in a single transaction.
func (s *Store) SaveReport(ctx context.Context, t report.Table) error {
	tx, err := s.stageReport(ctx, t)
	if err != nil {
		return err
	}
	return s.commit(tx, t)
}

// stageReport inserts t inside a new transaction and returns it uncommitted.
// The transaction is rolled back if any insert fails.
func (s *Store) stageReport(ctx context.Context, t report.Table) (_ *sql.Tx, err error) {
	frame := t.Frame
	flags := make(map[string][]int, len(report.FlagColumns))
	for _, name := range report.FlagColumns {
		values, err := frame.Col(name).Int()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		flags[name] = values
	}
	predicted := frame.Col(detectors.ColTEYPred).Float()
	residuals := frame.Col(detectors.ColResidual).Float()
	sensors := make(map[string][]float64, len(t.SensorColumns))
	for _, name := range t.SensorColumns {
		sensors[name] = frame.Col(name).Float()
	}

	anomalies := 0
	for _, v := range flags[detectors.ColAnomaly] {
		anomalies += v
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, created_at, row_count, anomalies, sensors, sigma_res, threshold)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.RunID, time.Now().UTC(), t.Rows(), anomalies, strings.Join(t.SensorColumns, ","), t.Sigma, t.Threshold); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	rowStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO report_rows (run_id, row_index, anomaly, z_flag, iso_flag, res_flag, tey_pred, residual)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare report rows: %w", err)
	}
	defer rowStmt.Close()

	valueStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sensor_values (run_id, row_index, column_name, value)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare sensor values: %w", err)
	}
	defer valueStmt.Close()

	for i := 0; i < t.Rows(); i++ {
		if _, err := rowStmt.ExecContext(ctx, t.RunID, i,
			flags[detectors.ColAnomaly][i], flags[detectors.ColZFlag][i],
			flags[detectors.ColIsoFlag][i], flags[detectors.ColResFlag][i],
			predicted[i], residuals[i],
		); err != nil {
			return nil, fmt.Errorf("insert row %d: %w", i, err)
		}
		for _, name := range t.SensorColumns {
			if _, err := valueStmt.ExecContext(ctx, t.RunID, i, name, sensors[name][i]); err != nil {
				return nil, fmt.Errorf("insert %s row %d: %w", name, i, err)
			}
		}
	}

	return tx, nil
}

func (s *Store) commit(tx *sql.Tx, t report.Table) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("report stored", "run_id", t.RunID, "rows", t.Rows(), "anomalies", t.Anomalies().Nrow())
	return nil
}

// GetRun returns the summary of a stored run.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, created_at, row_count, anomalies, sensors, sigma_res, threshold
		FROM runs
		WHERE run_id = ?
	`, runID)

	var r Run
	var sensors string
	err := row.Scan(&r.ID, &r.CreatedAt, &r.Rows, &r.Anomalies, &sensors, &r.Sigma, &r.Threshold)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	if sensors != "" {
		r.Sensors = strings.Split(sensors, ",")
	}
	return &r, nil
}

// ListAnomalies returns the flagged records of a run in row order.
func (s *Store) ListAnomalies(ctx context.Context, runID string) ([]Anomaly, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT row_index, z_flag, iso_flag, res_flag, tey_pred, residual
		FROM report_rows
		WHERE run_id = ? AND anomaly = 1
		ORDER BY row_index ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var anomalies []Anomaly
	index := make(map[int]int)
	for rows.Next() {
		a := Anomaly{Values: make(map[string]float64)}
		if err := rows.Scan(&a.Row, &a.ZFlag, &a.IsoFlag, &a.ResFlag, &a.Predicted, &a.Residual); err != nil {
			return nil, err
		}
		index[a.Row] = len(anomalies)
		anomalies = append(anomalies, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	values, err := s.db.QueryContext(ctx, `
		SELECT v.row_index, v.column_name, v.value
		FROM sensor_values v
		JOIN report_rows r ON r.run_id = v.run_id AND r.row_index = v.row_index
		WHERE v.run_id = ? AND r.anomaly = 1
	`, runID)
	if err != nil {
		return nil, err
	}
	defer values.Close()

	for values.Next() {
		var (
			row   int
			name  string
			value float64
		)
		if err := values.Scan(&row, &name, &value); err != nil {
			return nil, err
		}
		if i, ok := index[row]; ok {
			anomalies[i].Values[name] = value
		}
	}
	return anomalies, values.Err()
}
