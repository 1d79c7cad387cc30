package submap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/integrator"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

func testIntegrator() integrator.Integrator {
	return integrator.New(integrator.Simple, integrator.Config{
		VoxelSize:      0.1,
		VoxelsPerSide:  8,
		TruncationDist: 0.3,
		MaxWeight:      10000,
		MaxRayLength:   20,
		MinRayLength:   0.05,
		Threads:        2,
	}, voxel.ConstantWeight{})
}

func cloud(n int) []integrator.Point {
	pts := make([]integrator.Point, n)
	for i := 0; i < n; i++ {
		pts[i] = integrator.Point{Position: r3.Vec{X: 2, Y: float64(i) * 0.5, Z: 0}}
	}
	return pts
}

func TestMaybeRotate_DisabledWhenIntervalZero(t *testing.T) {
	start := time.Now()
	c := New(Config{SubmapInterval: 0, VoxelSize: 0.1, VoxelsPerSide: 8}, start, geom.Identity(), nil)
	got := c.MaybeRotate(context.Background(), start.Add(time.Hour), geom.Identity(), testIntegrator())
	assert.Nil(t, got)
}

func TestMaybeRotate_FiresAfterInterval(t *testing.T) {
	start := time.Now()
	c := New(Config{SubmapInterval: time.Second, VoxelSize: 0.1, VoxelsPerSide: 8}, start, geom.Identity(), nil)

	before := c.Current()
	assert.Nil(t, c.MaybeRotate(context.Background(), start.Add(500*time.Millisecond), geom.Identity(), testIntegrator()))

	finished := c.MaybeRotate(context.Background(), start.Add(2*time.Second), geom.Identity(), testIntegrator())
	require.NotNil(t, finished)
	assert.Same(t, before, finished)
	assert.True(t, finished.Finished)
	assert.NotSame(t, before, c.Current())
	assert.Len(t, c.Finished(), 1)
}

func TestMaybeRotate_FlushesPendingDeintegration(t *testing.T) {
	start := time.Now()
	integ := testIntegrator()
	c := New(Config{SubmapInterval: time.Second, VoxelSize: 0.1, VoxelsPerSide: 8}, start, geom.Identity(), nil)

	integ.Integrate(context.Background(), c.Current().Layer, geom.Identity(), cloud(10), false, false)
	c.RecordObservation(start, geom.Identity(), cloud(10))

	finished := c.MaybeRotate(context.Background(), start.Add(2*time.Second), geom.Identity(), integ)
	require.NotNil(t, finished)

	for _, idx := range finished.Layer.IterateAll() {
		blk, ok := finished.Layer.Get(idx)
		require.True(t, ok)
		for _, v := range blk.Snapshot() {
			assert.True(t, v.Unobserved(), "flushed deintegration should leave the finished submap empty")
		}
	}
}

func TestMaybeRotate_EmptyPointsIsNoOp(t *testing.T) {
	start := time.Now()
	integ := testIntegrator()
	c := New(Config{SubmapInterval: time.Second, VoxelSize: 0.1, VoxelsPerSide: 8}, start, geom.Identity(), nil)

	c.RecordObservation(start, geom.Identity(), nil)
	assert.NotPanics(t, func() {
		c.MaybeRotate(context.Background(), start.Add(2*time.Second), geom.Identity(), integ)
	})
}
