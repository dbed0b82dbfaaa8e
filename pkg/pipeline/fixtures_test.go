package pipeline

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hed1ad/turbineguard/pkg/dataset"
	"github.com/hed1ad/turbineguard/pkg/detectors"
)

// allInliers is an outlier model that never flags.
var allInliers = detectors.OutlierModelFunc(func(data [][]float64) ([]bool, error) {
	return make([]bool, len(data)), nil
})

func columns(t testing.TB, order []string, cols map[string][]float64) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.FromColumns(order, cols)
	require.NoError(t, err)
	return ds
}

// turbine generates n plausible gas-turbine records. TEY follows the ambient
// predictors with mild noise.
func turbine(t testing.TB, n int, seed int64) *dataset.Dataset {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	names := []string{"AT", "AP", "RH", "TIT", "TAT", "TEY", "CDP", "CO", "NOx"}
	cols := make(map[string][]float64, len(names))
	for _, name := range names {
		cols[name] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		at := 17 + 7*math.Sin(float64(i)/40) + rng.NormFloat64()
		ap := 1013 + 6*rng.NormFloat64()
		rh := 78 + 12*rng.NormFloat64()
		cdp := 12 + 0.05*at + 0.4*rng.NormFloat64()
		cols["AT"][i] = at
		cols["AP"][i] = ap
		cols["RH"][i] = rh
		cols["CDP"][i] = cdp
		cols["TIT"][i] = 1081 + 0.9*at + 3*rng.NormFloat64()
		cols["TAT"][i] = 546 - 0.2*at + 2*rng.NormFloat64()
		cols["TEY"][i] = 60 - 0.5*at + 0.05*ap - 0.02*rh + 5*cdp + 0.5*rng.NormFloat64()
		cols["CO"][i] = 2.4 + 0.6*rng.NormFloat64()
		cols["NOx"][i] = 65 + 5*rng.NormFloat64()
	}

	return columns(t, names, cols)
}
