// Package density flags records with an unsupervised outlier model fitted on
// standardized sensor columns.
package density

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/hed1ad/turbineguard/pkg/dataset"
	"github.com/hed1ad/turbineguard/pkg/detectors"
)

// Detector delegates outlier labelling to an OutlierModel.
type Detector struct {
	model detectors.OutlierModel
}

// Scaler holds per-column standardization parameters.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// Result is the outcome of a density pass.
type Result struct {
	Flags  detectors.Flags
	Scaler Scaler
}

// New creates a Detector backed by model.
func New(model detectors.OutlierModel) *Detector {
	return &Detector{model: model}
}

// Detect standardizes cols over the full dataset, fits the model on the same
// rows and maps outlier labels to flags.
func (d *Detector) Detect(ds *dataset.Dataset, cols []string) (*Result, error) {
	if d.model == nil {
		return nil, errors.New("density: no outlier model")
	}
	if ds.Len() == 0 {
		return nil, dataset.ErrEmpty
	}

	m, err := ds.Matrix(cols)
	if err != nil {
		return nil, fmt.Errorf("density: %w", err)
	}

	scaler := FitScaler(m)
	labels, err := d.model.FitPredict(scaler.Transform(m))
	if err != nil {
		return nil, fmt.Errorf("density: fit outlier model: %w", err)
	}
	if len(labels) != ds.Len() {
		return nil, fmt.Errorf("density: model returned %d labels for %d records", len(labels), ds.Len())
	}

	return &Result{
		Flags:  detectors.NewFlags(labels),
		Scaler: scaler,
	}, nil
}

// FitScaler computes the population mean and standard deviation of each
// column. A zero-variance column gets scale 1.
func FitScaler(m [][]float64) Scaler {
	if len(m) == 0 {
		return Scaler{}
	}
	nFeatures := len(m[0])
	s := Scaler{
		Mean:  make([]float64, nFeatures),
		Scale: make([]float64, nFeatures),
	}

	col := make([]float64, len(m))
	for j := 0; j < nFeatures; j++ {
		for i, row := range m {
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return s
}

// Transform returns a standardized copy of m.
func (s Scaler) Transform(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		z := make([]float64, len(row))
		for j, v := range row {
			z[j] = (v - s.Mean[j]) / s.Scale[j]
		}
		out[i] = z
	}
	return out
}
