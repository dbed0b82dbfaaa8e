// Package ensemble combines per-detector verdicts into one anomaly flag.
package ensemble

import (
	"fmt"

	"github.com/hed1ad/turbineguard/pkg/detectors"
)

// Combine returns the logical OR of the given flag sets, record by record.
// Any single detector is sufficient to mark a record anomalous.
func Combine(sets ...detectors.Flags) (detectors.Flags, error) {
	if len(sets) == 0 {
		return nil, fmt.Errorf("ensemble: no flag sets")
	}

	n := len(sets[0])
	for i, s := range sets[1:] {
		if len(s) != n {
			return nil, fmt.Errorf("ensemble: flag set %d has %d records, want %d", i+1, len(s), n)
		}
	}

	out := make(detectors.Flags, n)
	for _, s := range sets {
		for i, v := range s {
			out[i] |= v
		}
	}
	return out, nil
}
