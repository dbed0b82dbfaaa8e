// Package residual flags records whose target sensor deviates from a linear
// expectation model by more than a multiple of the residual spread.
package residual

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/hed1ad/turbineguard/pkg/dataset"
	"github.com/hed1ad/turbineguard/pkg/detectors"
)

// Detector fits target ~ predictors by ordinary least squares.
type Detector struct {
	target        string
	sigmas        float64
	minPredictors int
}

// Model is a fitted linear expectation model.
type Model struct {
	Predictors   []string
	Intercept    float64
	Coefficients []float64
}

// Predict returns the model's expected target value for one record.
func (m Model) Predict(x []float64) float64 {
	y := m.Intercept
	for j, b := range m.Coefficients {
		y += b * x[j]
	}
	return y
}

// Result is the outcome of a residual pass.
type Result struct {
	Flags     detectors.Flags
	Model     Model
	Predicted []float64
	Residuals []float64
	// Sigma is the sample standard deviation of all residuals, computed once.
	Sigma float64
	// Threshold is Sigma times the configured multiple.
	Threshold float64
}

// New creates a Detector from cfg.
func New(cfg detectors.Config) *Detector {
	return &Detector{
		target:        cfg.Target,
		sigmas:        cfg.ResidualSigmas,
		minPredictors: cfg.MinPredictors,
	}
}

// Detect fits the model over the whole dataset, computes
// residual = target - predicted per record and flags |residual| > Threshold.
func (d *Detector) Detect(ds *dataset.Dataset, predictors []string) (*Result, error) {
	if len(predictors) < d.minPredictors || !ds.Has(d.target) {
		return nil, &detectors.SchemaError{
			Reason: fmt.Sprintf("residual model needs %s plus at least %d predictors, got %v",
				d.target, d.minPredictors, predictors),
			Available: ds.Names(),
		}
	}
	if ds.Len() == 0 {
		return nil, dataset.ErrEmpty
	}

	y, _ := ds.Column(d.target)
	x, err := ds.Matrix(predictors)
	if err != nil {
		return nil, fmt.Errorf("residual: %w", err)
	}

	model, err := fit(x, y)
	if err != nil {
		return nil, fmt.Errorf("residual: fit linear model: %w", err)
	}
	model.Predictors = append([]string(nil), predictors...)

	res := &Result{
		Flags:     make(detectors.Flags, len(y)),
		Model:     model,
		Predicted: make([]float64, len(y)),
		Residuals: make([]float64, len(y)),
	}
	for i, row := range x {
		res.Predicted[i] = model.Predict(row)
		res.Residuals[i] = y[i] - res.Predicted[i]
	}

	res.Sigma = stat.StdDev(res.Residuals, nil)
	if math.IsNaN(res.Sigma) {
		res.Sigma = 0
	}
	res.Threshold = d.sigmas * res.Sigma

	for i, r := range res.Residuals {
		if math.Abs(r) > res.Threshold {
			res.Flags[i] = 1
		}
	}

	return res, nil
}

// fit solves the least-squares problem on mean-centred data and recovers the
// intercept from the means. The solve goes through a thin SVD so a constant
// or collinear predictor gets the minimum-norm coefficients instead of an
// error.
func fit(x [][]float64, y []float64) (Model, error) {
	n := len(x)
	p := len(x[0])

	xMean := make([]float64, p)
	for _, row := range x {
		for j, v := range row {
			xMean[j] += v
		}
	}
	for j := range xMean {
		xMean[j] /= float64(n)
	}
	yMean := stat.Mean(y, nil)

	a := mat.NewDense(n, p, nil)
	b := mat.NewVecDense(n, nil)
	for i, row := range x {
		for j, v := range row {
			a.Set(i, j, v-xMean[j])
		}
		b.SetVec(i, y[i]-yMean)
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return Model{}, errors.New("svd factorization failed")
	}

	m := Model{
		Intercept:    yMean,
		Coefficients: make([]float64, p),
	}

	// Singular values below rcond relative to the largest are treated as
	// zero, as LAPACK gelsd does.
	rcond := epsilon * float64(max(n, p))
	rank := svd.Rank(rcond)
	if rank == 0 {
		// Every predictor is constant: the model is the target mean.
		return m, nil
	}

	var beta mat.VecDense
	svd.SolveVecTo(&beta, b, rank)

	for j := 0; j < p; j++ {
		m.Coefficients[j] = beta.AtVec(j)
		m.Intercept -= m.Coefficients[j] * xMean[j]
	}
	return m, nil
}

// epsilon is the float64 machine epsilon.
var epsilon = math.Nextafter(1, 2) - 1
