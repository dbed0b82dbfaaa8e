package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		names   []string
		rows    [][]float64
		wantLen int
		wantErr error
	}{
		{
			name:    "empty",
			names:   []string{"TIT"},
			rows:    nil,
			wantLen: 0,
		},
		{
			name:    "two columns",
			names:   []string{"TIT", "TEY"},
			rows:    [][]float64{{1, 2}, {3, 4}, {5, 6}},
			wantLen: 3,
		},
		{
			name:    "ragged row",
			names:   []string{"TIT", "TEY"},
			rows:    [][]float64{{1, 2}, {3}},
			wantErr: ErrLengthMismatch,
		},
		{
			name:    "duplicate header",
			names:   []string{"TIT", "TIT"},
			rows:    [][]float64{{1, 2}},
			wantErr: ErrColumnExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.names, tt.rows)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, d.Len())
			assert.Equal(t, tt.names, d.Names())
		})
	}
}

func TestColumnIsACopy(t *testing.T) {
	d, err := New([]string{"TIT"}, [][]float64{{1}, {2}})
	require.NoError(t, err)

	col, ok := d.Column("TIT")
	require.True(t, ok)
	col[0] = 99

	assert.Equal(t, 1.0, d.Value(0, "TIT"))
}

func TestAddColumn(t *testing.T) {
	d, err := New([]string{"TIT"}, [][]float64{{1}, {2}})
	require.NoError(t, err)

	require.NoError(t, d.AddColumn("z_flag", []float64{0, 1}))
	assert.Equal(t, []string{"TIT", "z_flag"}, d.Names())

	assert.ErrorIs(t, d.AddColumn("z_flag", []float64{1, 1}), ErrColumnExists)
	assert.ErrorIs(t, d.AddColumn("residual", []float64{1}), ErrLengthMismatch)

	col, _ := d.Column("z_flag")
	assert.Equal(t, []float64{0, 1}, col, "existing column must not be overwritten")
}

func TestCloneIsIndependentSchema(t *testing.T) {
	d, err := New([]string{"TIT"}, [][]float64{{1}, {2}})
	require.NoError(t, err)

	c := d.Clone()
	require.NoError(t, c.AddColumn("anomaly", []float64{0, 0}))

	assert.False(t, d.Has("anomaly"))
	assert.True(t, c.Has("anomaly"))
}

func TestMatrix(t *testing.T) {
	d, err := FromColumns([]string{"A", "B", "C"}, map[string][]float64{
		"A": {1, 2},
		"B": {3, 4},
		"C": {5, 6},
	})
	require.NoError(t, err)

	m, err := d.Matrix([]string{"C", "A"})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{5, 1}, {6, 2}}, m)

	_, err = d.Matrix([]string{"missing"})
	assert.Error(t, err)
}

func TestRenameColumns(t *testing.T) {
	d, err := New([]string{"TIT (°C)", "NOX", "TEY"}, [][]float64{{1, 2, 3}})
	require.NoError(t, err)

	r, err := RenameColumns(d, StandardRenames)
	require.NoError(t, err)
	assert.Equal(t, []string{"TIT", "NOx", "TEY"}, r.Names())
	assert.Equal(t, []string{"TIT (°C)", "NOX", "TEY"}, d.Names())

	t.Run("collision", func(t *testing.T) {
		d, err := New([]string{"NOX", "NOx"}, [][]float64{{1, 2}})
		require.NoError(t, err)
		_, err = RenameColumns(d, StandardRenames)
		assert.ErrorIs(t, err, ErrColumnExists)
	})
}

func TestClean(t *testing.T) {
	nan := math.NaN()
	d, err := New([]string{"TIT", "TEY"}, [][]float64{
		{nan, 10},
		{1, 11},
		{1, 11},
		{nan, 12},
		{2, nan},
		{nan, 13},
	})
	require.NoError(t, err)

	c, stats := Clean(d)

	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 3, stats.Filled)
	assert.Equal(t, 1, stats.Unfilled)
	require.Equal(t, 5, c.Len())

	tit, _ := c.Column("TIT")
	tey, _ := c.Column("TEY")
	assert.True(t, math.IsNaN(tit[0]), "leading gap stays NaN")
	assert.Equal(t, []float64{1, 1, 2, 2}, tit[1:])
	assert.Equal(t, []float64{10, 11, 12, 12, 13}, tey)
	assert.Equal(t, 6, d.Len(), "input is not modified")
}

func TestCleanNaNRowsAreDuplicates(t *testing.T) {
	nan := math.NaN()
	d, err := New([]string{"TIT"}, [][]float64{{nan}, {nan}, {0}, {math.Copysign(0, -1)}})
	require.NoError(t, err)

	c, stats := Clean(d)
	assert.Equal(t, 2, stats.Duplicates)
	assert.Equal(t, 2, c.Len())
}
