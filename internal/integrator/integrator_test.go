package integrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

func testConfig() Config {
	return Config{
		VoxelSize:      0.1,
		VoxelsPerSide:  8,
		TruncationDist: 0.3,
		MaxWeight:      10000,
		MaxRayLength:   20,
		MinRayLength:   0.05,
		Threads:        4,
	}
}

func TestNew_SelectsStrategy(t *testing.T) {
	cfg := testConfig()
	_, okSimple := New(Simple, cfg, voxel.ConstantWeight{}).(*simpleIntegrator)
	assert.True(t, okSimple)

	_, okMerged := New(Merged, cfg, voxel.ConstantWeight{}).(*mergedIntegrator)
	assert.True(t, okMerged)

	_, okFast := New(Fast, cfg, voxel.ConstantWeight{}).(*fastIntegrator)
	assert.True(t, okFast)

	_, okDefault := New(Method("unknown"), cfg, voxel.ConstantWeight{}).(*mergedIntegrator)
	assert.True(t, okDefault, "unrecognized method falls back to merged")
}

// syntheticCloud places each point in its own voxel along a flat wall
// at x=2, so simple and merged strategies see exactly one point per
// bin and should produce identical layers.
func syntheticCloud(n int) []Point {
	pts := make([]Point, n)
	for i := 0; i < n; i++ {
		pts[i] = Point{Position: r3.Vec{X: 2, Y: float64(i) * 0.5, Z: 0}}
	}
	return pts
}

func integrateWith(t *testing.T, method Method, points []Point) *voxel.Layer {
	t.Helper()
	cfg := testConfig()
	integ := New(method, cfg, voxel.ConstantWeight{})
	layer := voxel.NewLayer(cfg.VoxelSize, cfg.VoxelsPerSide)
	integ.Integrate(context.Background(), layer, geom.Identity(), points, false, false)
	return layer
}

func snapshotDistances(layer *voxel.Layer) map[voxel.BlockIndex][]float32 {
	out := make(map[voxel.BlockIndex][]float32)
	for _, idx := range layer.IterateAll() {
		blk, ok := layer.Get(idx)
		if !ok {
			continue
		}
		ds := make([]float32, blk.NumVoxels())
		for i, v := range blk.Snapshot() {
			ds[i] = v.Distance
		}
		out[idx] = ds
	}
	return out
}

func TestMergedMatchesSimple_OnePointPerVoxel(t *testing.T) {
	points := syntheticCloud(20)

	simpleLayer := integrateWith(t, Simple, points)
	mergedLayer := integrateWith(t, Merged, points)

	simpleSnap := snapshotDistances(simpleLayer)
	mergedSnap := snapshotDistances(mergedLayer)

	require.Equal(t, len(simpleSnap), len(mergedSnap))
	for idx, ds := range simpleSnap {
		other, ok := mergedSnap[idx]
		require.True(t, ok, "merged missing block %v", idx)
		require.Equal(t, len(ds), len(other))
		for i := range ds {
			assert.InDelta(t, ds[i], other[i], 1e-5)
		}
	}
}

func TestIntegrateThenDeintegrate_IsIdentity(t *testing.T) {
	cfg := testConfig()
	integ := New(Simple, cfg, voxel.ConstantWeight{})
	layer := voxel.NewLayer(cfg.VoxelSize, cfg.VoxelsPerSide)

	points := syntheticCloud(10)
	ctx := context.Background()

	integ.Integrate(ctx, layer, geom.Identity(), points, false, false)
	integ.Integrate(ctx, layer, geom.Identity(), points, false, true)

	for _, idx := range layer.IterateAll() {
		blk, ok := layer.Get(idx)
		require.True(t, ok)
		for _, v := range blk.Snapshot() {
			assert.True(t, v.Unobserved(), "voxel should be back to unobserved after deintegration")
		}
	}
}

func TestIntegrate_FreespaceCarvesWithoutSurface(t *testing.T) {
	cfg := testConfig()
	integ := New(Simple, cfg, voxel.ConstantWeight{})
	layer := voxel.NewLayer(cfg.VoxelSize, cfg.VoxelsPerSide)

	points := []Point{{Position: r3.Vec{X: 2, Y: 0, Z: 0}}}
	integ.Integrate(context.Background(), layer, geom.Identity(), points, true, false)

	found := false
	for _, idx := range layer.IterateAll() {
		blk, ok := layer.Get(idx)
		require.True(t, ok)
		for _, v := range blk.Snapshot() {
			if !v.Unobserved() {
				found = true
				assert.Greater(t, v.Distance, float32(0), "freespace voxels should read as free (positive distance)")
			}
		}
	}
	assert.True(t, found, "expected at least one carved voxel")
}

func TestIntegrate_RespectsContextCancellation(t *testing.T) {
	cfg := testConfig()
	integ := New(Simple, cfg, voxel.ConstantWeight{})
	layer := voxel.NewLayer(cfg.VoxelSize, cfg.VoxelsPerSide)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NotPanics(t, func() {
		integ.Integrate(ctx, layer, geom.Identity(), syntheticCloud(5), false, false)
	})
}
