// Package detectors defines the shared contracts of the anomaly detectors:
// configuration, column resolution, per-record flags and error types.
package detectors

// Column names of the derived fields added by the pipeline.
const (
	ColZFlag    = "z_flag"
	ColIsoFlag  = "iso_flag"
	ColResFlag  = "res_flag"
	ColAnomaly  = "anomaly"
	ColTEYPred  = "TEY_pred"
	ColResidual = "residual"
)

// OutlierModel is an unsupervised outlier estimator treated as a black box.
type OutlierModel interface {
	// FitPredict fits the model on data, where each row is a sample and each
	// column is a feature, and reports for every row whether it is an outlier.
	FitPredict(data [][]float64) ([]bool, error)
}

// OutlierModelFunc adapts a function to the OutlierModel interface.
type OutlierModelFunc func(data [][]float64) ([]bool, error)

// FitPredict calls f(data).
func (f OutlierModelFunc) FitPredict(data [][]float64) ([]bool, error) {
	return f(data)
}

// Flags holds one binary verdict per record, 0 or 1.
type Flags []uint8

// NewFlags converts boolean verdicts to flags.
func NewFlags(b []bool) Flags {
	f := make(Flags, len(b))
	for i, v := range b {
		if v {
			f[i] = 1
		}
	}
	return f
}

// Count returns the number of flagged records.
func (f Flags) Count() int {
	n := 0
	for _, v := range f {
		if v != 0 {
			n++
		}
	}
	return n
}

// Floats returns the flags as 0/1 float64 values for dataset columns.
func (f Flags) Floats() []float64 {
	out := make([]float64, len(f))
	for i, v := range f {
		out[i] = float64(v)
	}
	return out
}
