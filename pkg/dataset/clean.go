package dataset

import (
	"encoding/binary"
	"fmt"
	"math"
)

// StandardRenames maps header variants found in turbine exports to the
// canonical sensor names.
var StandardRenames = map[string]string{
	"NOx (mg/m3)": "NOx",
	"NOX":         "NOx",
	"TIT (°C)":    "TIT",
	"TAT (°C)":    "TAT",
}

// CleanStats summarizes what Clean changed.
type CleanStats struct {
	Duplicates int // rows dropped as exact duplicates
	Filled     int // cells filled from the previous record
	Unfilled   int // NaN cells left because no earlier value exists
}

// RenameColumns returns a copy of d with columns renamed according to renames.
// Columns not in the map keep their name.
func RenameColumns(d *Dataset, renames map[string]string) (*Dataset, error) {
	out := &Dataset{
		names: make([]string, 0, len(d.names)),
		cols:  make(map[string][]float64, len(d.cols)),
		n:     d.n,
	}
	for _, name := range d.names {
		target := name
		if to, ok := renames[name]; ok {
			target = to
		}
		if _, ok := out.cols[target]; ok {
			return nil, fmt.Errorf("rename %q to %q: %w", name, target, ErrColumnExists)
		}
		out.names = append(out.names, target)
		out.cols[target] = d.cols[name]
	}
	return out, nil
}

// Clean drops exact duplicate records, keeping the first occurrence, and then
// forward-fills NaN cells column by column. Record order is preserved.
// All dataset-wide statistics downstream are computed over the result.
func Clean(d *Dataset) (*Dataset, CleanStats) {
	var stats CleanStats

	seen := make(map[string]struct{}, d.n)
	keep := make([]int, 0, d.n)
	key := make([]byte, 0, 8*len(d.names))
	for i := 0; i < d.n; i++ {
		key = key[:0]
		for _, name := range d.names {
			key = binary.LittleEndian.AppendUint64(key, canonicalBits(d.cols[name][i]))
		}
		if _, dup := seen[string(key)]; dup {
			stats.Duplicates++
			continue
		}
		seen[string(key)] = struct{}{}
		keep = append(keep, i)
	}

	out := &Dataset{
		names: make([]string, 0, len(d.names)),
		cols:  make(map[string][]float64, len(d.cols)),
		n:     len(keep),
	}
	for _, name := range d.names {
		src := d.cols[name]
		col := make([]float64, len(keep))
		last := math.NaN()
		for j, i := range keep {
			v := src[i]
			switch {
			case !math.IsNaN(v):
				last = v
			case !math.IsNaN(last):
				v = last
				stats.Filled++
			default:
				stats.Unfilled++
			}
			col[j] = v
		}
		out.names = append(out.names, name)
		out.cols[name] = col
	}

	return out, stats
}

// canonicalBits maps every NaN to one pattern and -0 to +0 so that equal
// readings produce equal keys.
func canonicalBits(v float64) uint64 {
	if math.IsNaN(v) {
		return math.Float64bits(math.NaN())
	}
	if v == 0 {
		return 0
	}
	return math.Float64bits(v)
}
