package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/turbineguard/pkg/report"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTable() report.Table {
	frame := dataframe.New(
		series.New([]int{0, 1, 0, 1}, series.Int, "anomaly"),
		series.New([]int{0, 1, 0, 0}, series.Int, "z_flag"),
		series.New([]int{0, 0, 0, 0}, series.Int, "iso_flag"),
		series.New([]int{0, 0, 0, 1}, series.Int, "res_flag"),
		series.New([]float64{1050, 1300, 1051, 1049}, series.Float, "TIT"),
		series.New([]float64{130.1, 131.0, 129.8, 160.4}, series.Float, "TEY"),
		series.New([]float64{130.0, 130.9, 129.9, 130.2}, series.Float, "TEY_pred"),
		series.New([]float64{0.1, 0.1, -0.1, 30.2}, series.Float, "residual"),
	)
	return report.Table{
		RunID:         "3f2c1d1e-9c1b-4c53-8d1e-6e5b0b7d2a10",
		Frame:         frame,
		SensorColumns: []string{"TIT", "TEY"},
		Sigma:         0.5,
		Threshold:     1.5,
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, len(migrations), n)
}

func TestSaveAndGetRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	table := sampleTable()

	require.NoError(t, s.SaveReport(ctx, table))

	run, err := s.GetRun(ctx, table.RunID)
	require.NoError(t, err)
	assert.Equal(t, table.RunID, run.ID)
	assert.Equal(t, 4, run.Rows)
	assert.Equal(t, 2, run.Anomalies)
	assert.Equal(t, []string{"TIT", "TEY"}, run.Sensors)
	assert.Equal(t, 0.5, run.Sigma)
	assert.Equal(t, 1.5, run.Threshold)
	assert.WithinDuration(t, time.Now(), run.CreatedAt, time.Minute)
}

func TestGetRunNotFound(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListAnomalies(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	table := sampleTable()
	require.NoError(t, s.SaveReport(ctx, table))

	anomalies, err := s.ListAnomalies(ctx, table.RunID)
	require.NoError(t, err)
	require.Len(t, anomalies, 2)

	assert.Equal(t, 1, anomalies[0].Row)
	assert.True(t, anomalies[0].ZFlag)
	assert.False(t, anomalies[0].ResFlag)
	assert.Equal(t, 1300.0, anomalies[0].Values["TIT"])

	assert.Equal(t, 3, anomalies[1].Row)
	assert.True(t, anomalies[1].ResFlag)
	assert.InDelta(t, 30.2, anomalies[1].Residual, 1e-9)
	assert.InDelta(t, 160.4, anomalies[1].Values["TEY"], 1e-9)

	// Matches the rows the report itself marks.
	assert.Equal(t, table.Anomalies().Nrow(), len(anomalies))
}

func TestSaveReportRejectsDuplicateRun(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveReport(ctx, sampleTable()))
	assert.Error(t, s.SaveReport(ctx, sampleTable()))

	anomalies, err := s.ListAnomalies(ctx, sampleTable().RunID)
	require.NoError(t, err)
	assert.Len(t, anomalies, 2, "failed save leaves the first report intact")
}

func TestWriter(t *testing.T) {
	tests := []struct {
		name      string
		finish    func(w *Writer) error
		wantSaved bool
	}{
		{
			name:      "close commits",
			finish:    func(w *Writer) error { return w.Close() },
			wantSaved: true,
		},
		{
			name:      "abort rolls back",
			finish:    func(w *Writer) error { return w.Abort() },
			wantSaved: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "runs.db")
			s, err := Open(ctx, path)
			require.NoError(t, err)

			w := NewWriter(ctx, s)
			table := sampleTable()
			require.NoError(t, w.Write(table))
			require.NoError(t, tt.finish(w))

			_, err = s.GetRun(ctx, table.RunID)
			assert.Error(t, err, "store is closed")

			reopened, err := Open(ctx, path)
			require.NoError(t, err)
			defer reopened.Close()

			run, err := reopened.GetRun(ctx, table.RunID)
			if !tt.wantSaved {
				assert.ErrorIs(t, err, ErrRunNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2, run.Anomalies)
		})
	}
}

func TestWriterWriteFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.ExecContext(ctx, `
		CREATE TRIGGER reject_rows BEFORE INSERT ON report_rows
		BEGIN SELECT RAISE(ABORT, 'rejected'); END
	`)
	require.NoError(t, err)

	table := sampleTable()
	w := NewWriter(ctx, s)
	require.Error(t, w.Write(table))

	_, err = s.GetRun(ctx, table.RunID)
	assert.ErrorIs(t, err, ErrRunNotFound, "run row rolled back")
}
