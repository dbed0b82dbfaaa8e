package store

import (
	"context"
	"fmt"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL,
    row_count INTEGER NOT NULL,
    anomalies INTEGER NOT NULL,
    sensors TEXT NOT NULL,
    sigma_res REAL,
    threshold REAL
);

CREATE TABLE IF NOT EXISTS report_rows (
    run_id TEXT NOT NULL REFERENCES runs(run_id),
    row_index INTEGER NOT NULL,
    anomaly INTEGER NOT NULL,
    z_flag INTEGER NOT NULL,
    iso_flag INTEGER NOT NULL,
    res_flag INTEGER NOT NULL,
    tey_pred REAL,
    residual REAL,
    PRIMARY KEY (run_id, row_index)
);

CREATE TABLE IF NOT EXISTS sensor_values (
    run_id TEXT NOT NULL REFERENCES runs(run_id),
    row_index INTEGER NOT NULL,
    column_name TEXT NOT NULL,
    value REAL,
    PRIMARY KEY (run_id, row_index, column_name)
);
`,
	},
	{
		Version:     2,
		Description: "Index flagged rows",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_report_rows_anomaly ON report_rows(run_id, anomaly);
`,
	},
}

// Migrate applies every migration not yet recorded in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.ensureMigrationsTable(ctx); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		s.logger.Info("applying migration", "version", m.Version, "description", m.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (s *Store) ensureMigrationsTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations(ctx context.Context) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
