package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnPrivateRegistry(t *testing.T) {
	a := New()
	b := New()

	a.FlagsTotal.WithLabelValues(DetectorZScore).Add(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(a.FlagsTotal.WithLabelValues(DetectorZScore)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FlagsTotal.WithLabelValues(DetectorZScore)))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RunsTotal.WithLabelValues("ok").Inc()
	m.ResidualSigma.Set(1.25)

	path := filepath.Join(t.TempDir(), "turbineguard.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `turbineguard_runs_total{status="ok"} 1`)
	assert.Contains(t, string(data), "turbineguard_residual_sigma 1.25")
}
