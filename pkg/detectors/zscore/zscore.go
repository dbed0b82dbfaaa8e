// Package zscore flags records whose standardized deviation from the column
// mean exceeds a fixed threshold on any selected sensor column.
package zscore

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/hed1ad/turbineguard/pkg/dataset"
	"github.com/hed1ad/turbineguard/pkg/detectors"
)

// Detector computes batch z-scores over the whole dataset.
type Detector struct {
	threshold float64
}

// ColumnStats holds the population statistics of one column.
type ColumnStats struct {
	Column string
	Mean   float64
	Std    float64
	// Flagged is the number of records over the threshold on this column.
	Flagged int
}

// Result is the outcome of a z-score pass.
type Result struct {
	Flags      detectors.Flags
	Columns    []ColumnStats
	Degenerate []detectors.DegenerateColumnWarning
}

// New creates a Detector from cfg.
func New(cfg detectors.Config) *Detector {
	return &Detector{threshold: cfg.ZThreshold}
}

// Detect flags a record when |(x - mean) / std| > threshold for any column.
// A zero-variance column contributes no flags and is reported as degenerate.
func (d *Detector) Detect(ds *dataset.Dataset, cols []string) (*Result, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("zscore: no columns selected")
	}

	res := &Result{
		Flags:   make(detectors.Flags, ds.Len()),
		Columns: make([]ColumnStats, 0, len(cols)),
	}

	for _, name := range cols {
		values, ok := ds.Column(name)
		if !ok {
			return nil, fmt.Errorf("zscore: column %q not found", name)
		}

		cs := ColumnStats{Column: name}
		if len(values) > 0 {
			cs.Mean, cs.Std = stat.PopMeanStdDev(values, nil)
		}
		if cs.Std == 0 || math.IsNaN(cs.Std) || constant(values) {
			res.Degenerate = append(res.Degenerate, detectors.DegenerateColumnWarning{Column: name})
			res.Columns = append(res.Columns, cs)
			continue
		}

		for i, v := range values {
			if math.Abs((v-cs.Mean)/cs.Std) > d.threshold {
				res.Flags[i] = 1
				cs.Flagged++
			}
		}
		res.Columns = append(res.Columns, cs)
	}

	return res, nil
}

func constant(values []float64) bool {
	if len(values) == 0 {
		return true
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
