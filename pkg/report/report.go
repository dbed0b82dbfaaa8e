// Package report assembles the external anomaly report from a pipeline result.
package report

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/hed1ad/turbineguard/pkg/detectors"
	"github.com/hed1ad/turbineguard/pkg/pipeline"
)

// FlagColumns are the leading 0/1 columns of every report.
var FlagColumns = []string{
	detectors.ColAnomaly,
	detectors.ColZFlag,
	detectors.ColIsoFlag,
	detectors.ColResFlag,
}

// Columns returns the report column order for the given sensor set.
func Columns(sensors []string) []string {
	return slices.Concat(FlagColumns, sensors, []string{detectors.ColTEYPred, detectors.ColResidual})
}

// Table is an assembled report: one row per input record, input order kept.
type Table struct {
	RunID         string
	Frame         dataframe.DataFrame
	SensorColumns []string

	// Sigma and Threshold describe the residual detector of the run.
	Sigma     float64
	Threshold float64
}

// Rows returns the number of records in the report.
func (t Table) Rows() int {
	return t.Frame.Nrow()
}

// Anomalies returns the rows with anomaly set.
func (t Table) Anomalies() dataframe.DataFrame {
	return t.Frame.Filter(dataframe.F{
		Colname:    detectors.ColAnomaly,
		Comparator: series.Eq,
		Comparando: 1,
	})
}

// Assemble selects and orders the report columns from res. Values are not
// altered.
func Assemble(res *pipeline.Result) (Table, error) {
	if res == nil || res.Dataset == nil {
		return Table{}, errors.New("report: no result to assemble")
	}

	ds := res.Dataset
	cols := make([]series.Series, 0, len(FlagColumns)+len(res.SensorColumns)+2)
	for _, name := range Columns(res.SensorColumns) {
		values, ok := ds.Column(name)
		if !ok {
			return Table{}, fmt.Errorf("report: result has no column %q", name)
		}
		if slices.Contains(FlagColumns, name) {
			cols = append(cols, series.New(toInts(values), series.Int, name))
			continue
		}
		cols = append(cols, series.New(values, series.Float, name))
	}

	frame := dataframe.New(cols...)
	if frame.Err != nil {
		return Table{}, fmt.Errorf("report: %w", frame.Err)
	}

	t := Table{
		RunID:         res.RunID.String(),
		Frame:         frame,
		SensorColumns: slices.Clone(res.SensorColumns),
	}
	if res.Residual != nil {
		t.Sigma = res.Residual.Sigma
		t.Threshold = res.Residual.Threshold
	}
	return t, nil
}

// WriteCSV writes the report with a header row.
func WriteCSV(w io.Writer, t Table) error {
	if err := t.Frame.WriteCSV(w); err != nil {
		return fmt.Errorf("report: write csv: %w", err)
	}
	return nil
}

func toInts(values []float64) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}
