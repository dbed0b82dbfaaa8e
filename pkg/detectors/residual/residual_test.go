package residual

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/turbineguard/pkg/dataset"
	"github.com/hed1ad/turbineguard/pkg/detectors"
)

// linearTurbine builds n records with TEY = 150 - 1.2*AT + 0.05*AP exactly.
func linearTurbine(t *testing.T, n int, perturb map[int]float64) *dataset.Dataset {
	t.Helper()
	at := make([]float64, n)
	ap := make([]float64, n)
	tey := make([]float64, n)
	for i := 0; i < n; i++ {
		at[i] = 5 + float64(i%7)*2.5 + 0.3*float64(i)
		ap[i] = 1005 + float64((i*i)%11)
		tey[i] = 150 - 1.2*at[i] + 0.05*ap[i] + perturb[i]
	}
	ds, err := dataset.FromColumns([]string{"AT", "AP", "TEY"}, map[string][]float64{
		"AT": at, "AP": ap, "TEY": tey,
	})
	require.NoError(t, err)
	return ds
}

func TestDetectRecoversExactModel(t *testing.T) {
	ds := linearTurbine(t, 50, nil)

	res, err := New(detectors.DefaultConfig()).Detect(ds, []string{"AT", "AP"})
	require.NoError(t, err)

	assert.InDelta(t, 150.0, res.Model.Intercept, 1e-6)
	assert.InDeltaSlice(t, []float64{-1.2, 0.05}, res.Model.Coefficients, 1e-9)
	assert.Equal(t, []string{"AT", "AP"}, res.Model.Predictors)
	assert.Less(t, res.Sigma, 1e-9)
}

func TestDetectFlagsOnlyPerturbedRow(t *testing.T) {
	ds := linearTurbine(t, 50, map[int]float64{31: 25})

	res, err := New(detectors.DefaultConfig()).Detect(ds, []string{"AT", "AP"})
	require.NoError(t, err)

	require.Len(t, res.Flags, 50)
	for i, f := range res.Flags {
		if i == 31 {
			assert.Equal(t, uint8(1), f, "perturbed row")
		} else {
			assert.Equal(t, uint8(0), f, "row %d", i)
		}
	}
}

func TestResidualIsTargetMinusPrediction(t *testing.T) {
	ds := linearTurbine(t, 40, map[int]float64{3: 4, 17: -6})
	tey, _ := ds.Column("TEY")

	res, err := New(detectors.DefaultConfig()).Detect(ds, []string{"AT", "AP"})
	require.NoError(t, err)

	for i := range tey {
		assert.InDelta(t, tey[i]-res.Predicted[i], res.Residuals[i], 1e-12)
	}
}

func TestSigmaComputedOnce(t *testing.T) {
	ds := linearTurbine(t, 60, map[int]float64{5: 9, 20: -3, 40: 12})

	res, err := New(detectors.DefaultConfig()).Detect(ds, []string{"AT", "AP"})
	require.NoError(t, err)

	var sum, sumSq float64
	for _, r := range res.Residuals {
		sum += r
	}
	mean := sum / float64(len(res.Residuals))
	for _, r := range res.Residuals {
		sumSq += (r - mean) * (r - mean)
	}
	sigma := math.Sqrt(sumSq / float64(len(res.Residuals)-1))

	assert.InDelta(t, sigma, res.Sigma, 1e-9)
	assert.InDelta(t, 3*sigma, res.Threshold, 1e-9)
	for i, r := range res.Residuals {
		want := uint8(0)
		if math.Abs(r) > res.Threshold {
			want = 1
		}
		assert.Equal(t, want, res.Flags[i], "row %d uses the run-wide threshold", i)
	}
}

func TestDetectSchemaErrors(t *testing.T) {
	ds := linearTurbine(t, 10, nil)
	d := New(detectors.DefaultConfig())

	tests := []struct {
		name       string
		predictors []string
	}{
		{name: "one predictor", predictors: []string{"AT"}},
		{name: "no predictors", predictors: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Detect(ds, tt.predictors)
			var schemaErr *detectors.SchemaError
			assert.True(t, errors.As(err, &schemaErr))
		})
	}

	t.Run("missing target", func(t *testing.T) {
		noTarget, err := dataset.FromColumns([]string{"AT", "AP"}, map[string][]float64{
			"AT": {1, 2, 3}, "AP": {3, 1, 2},
		})
		require.NoError(t, err)
		_, err = d.Detect(noTarget, []string{"AT", "AP"})
		var schemaErr *detectors.SchemaError
		assert.True(t, errors.As(err, &schemaErr))
	})
}

func TestModelPredict(t *testing.T) {
	m := Model{Intercept: 2, Coefficients: []float64{3, -1}}
	assert.Equal(t, 2.0+3*4-1*5, m.Predict([]float64{4, 5}))
}

// ambientTurbine builds n records with TEY = 2*AT + 0.5*RH plus small noise.
// ap derives the AP column from AT and the row index.
func ambientTurbine(t *testing.T, n int, ap func(i int, at float64) float64) *dataset.Dataset {
	t.Helper()
	cols := map[string][]float64{
		"AT":  make([]float64, n),
		"AP":  make([]float64, n),
		"RH":  make([]float64, n),
		"TEY": make([]float64, n),
	}
	for i := 0; i < n; i++ {
		at := 10 + 0.25*float64(i)
		rh := 60 + float64((i*3)%11)
		cols["AT"][i] = at
		cols["AP"][i] = ap(i, at)
		cols["RH"][i] = rh
		cols["TEY"][i] = 2*at + 0.5*rh + 0.1*math.Sin(float64(i))
	}
	ds, err := dataset.FromColumns([]string{"AT", "AP", "RH", "TEY"}, cols)
	require.NoError(t, err)
	return ds
}

func TestDetectRankDeficientPredictors(t *testing.T) {
	tests := []struct {
		name string
		ap   func(i int, at float64) float64
		// check inspects the AT and AP coefficients.
		check func(t *testing.T, at, ap float64)
	}{
		{
			name: "constant predictor",
			ap:   func(int, float64) float64 { return 1013 },
			check: func(t *testing.T, at, ap float64) {
				assert.InDelta(t, 0, ap, 1e-9, "a stuck sensor gets no weight")
			},
		},
		{
			name: "collinear predictors",
			ap:   func(_ int, at float64) float64 { return 2 * at },
			check: func(t *testing.T, at, ap float64) {
				assert.InDelta(t, 2*at, ap, 1e-6, "minimum-norm split across AT and AP")
			},
		},
	}

	d := New(detectors.DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := ambientTurbine(t, 40, tt.ap)

			res, err := d.Detect(ds, []string{"AT", "AP", "RH"})
			require.NoError(t, err)
			require.Len(t, res.Model.Coefficients, 3)
			tt.check(t, res.Model.Coefficients[0], res.Model.Coefficients[1])

			reduced, err := d.Detect(ds, []string{"AT", "RH"})
			require.NoError(t, err)
			assert.InDeltaSlice(t, reduced.Predicted, res.Predicted, 1e-6,
				"same fitted values as without the redundant column")
			assert.InDelta(t, reduced.Sigma, res.Sigma, 1e-9)
		})
	}
}

func TestDetectAllPredictorsConstant(t *testing.T) {
	ds, err := dataset.FromColumns([]string{"AT", "AP", "TEY"}, map[string][]float64{
		"AT":  {15, 15, 15, 15},
		"AP":  {1013, 1013, 1013, 1013},
		"TEY": {130, 132, 131, 135},
	})
	require.NoError(t, err)

	res, err := New(detectors.DefaultConfig()).Detect(ds, []string{"AT", "AP"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, res.Model.Coefficients)
	for _, p := range res.Predicted {
		assert.InDelta(t, 132.0, p, 1e-12, "prediction falls back to the target mean")
	}
}
