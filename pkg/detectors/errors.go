package detectors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNonFinite is returned when a column used by a detector holds NaN or Inf.
var ErrNonFinite = errors.New("non-finite value")

// SchemaError reports that the dataset lacks the columns a detector needs.
// It is fatal: no detector runs and no report is produced.
type SchemaError struct {
	Reason    string
	Available []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: %s; available columns are: [%s]",
		e.Reason, strings.Join(e.Available, ", "))
}

// DegenerateColumnWarning reports a zero-variance sensor column whose
// z-score is undefined. The column is ignored by the z-score detector.
type DegenerateColumnWarning struct {
	Column string
}

func (w DegenerateColumnWarning) Error() string {
	return fmt.Sprintf("column %q has zero variance; z-score ignored", w.Column)
}
