package monitoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlotConvergence_WritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "convergence.png")

	samples := []ResidualSample{{0, 10}, {1, 5}, {2, 1}}
	require.NoError(t, PlotConvergence(samples, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestPlotSlice_WritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slice.png")

	samples := []SliceSample{{X: 0, Y: 0, Distance: -0.1}, {X: 1, Y: 0, Distance: 0.2}}
	require.NoError(t, PlotSlice(samples, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}
