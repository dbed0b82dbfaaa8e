package detectors

import (
	"fmt"
	"math"
	"slices"
)

// ResolveColumns returns the candidates present in schema, in candidate order.
// It fails with a *SchemaError when none is present.
func ResolveColumns(schema, candidates []string) ([]string, error) {
	present := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if slices.Contains(schema, c) && !slices.Contains(present, c) {
			present = append(present, c)
		}
	}
	if len(present) == 0 {
		return nil, &SchemaError{
			Reason:    fmt.Sprintf("none of the expected sensor columns %v found", candidates),
			Available: slices.Clone(schema),
		}
	}
	return present, nil
}

// ResolvePredictors returns the predictor candidates present in schema for
// the residual model. The target must be present and at least minPredictors
// predictors must resolve.
func ResolvePredictors(schema, candidates []string, target string, minPredictors int) ([]string, error) {
	present := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c != target && slices.Contains(schema, c) && !slices.Contains(present, c) {
			present = append(present, c)
		}
	}
	if len(present) < minPredictors || !slices.Contains(schema, target) {
		return nil, &SchemaError{
			Reason: fmt.Sprintf("residual model needs %s plus at least %d of %v, found %s=%t and %v",
				target, minPredictors, candidates, target, slices.Contains(schema, target), present),
			Available: slices.Clone(schema),
		}
	}
	return present, nil
}

// CheckFinite returns an error wrapping ErrNonFinite naming the first column
// and record holding NaN or Inf.
func CheckFinite(name string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("column %q record %d: %w", name, i, ErrNonFinite)
		}
	}
	return nil
}
