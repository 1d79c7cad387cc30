package raycast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

func params() Params {
	return Params{
		VoxelSize:      0.1,
		TruncationDist: 0.3,
		MaxRayLength:   20,
		MinRayLength:   0.05,
	}
}

func TestCast_DropsOutOfRangeEndpoints(t *testing.T) {
	_, ok := Cast(r3.Vec{}, r3.Vec{X: 25}, params())
	assert.False(t, ok, "range beyond max_ray_length_m must be dropped")

	_, ok = Cast(r3.Vec{}, r3.Vec{X: 0.01}, params())
	assert.False(t, ok, "range below min_ray_length_m must be dropped")
}

func TestCast_KeepsBoundaryJustInsideMax(t *testing.T) {
	p := params()
	_, ok := Cast(r3.Vec{}, r3.Vec{X: p.MaxRayLength - 0.01}, p)
	assert.True(t, ok)
}

func TestCast_VisitsEachVoxelOnce(t *testing.T) {
	indices, ok := Cast(r3.Vec{}, r3.Vec{X: 2.0}, params())
	require.True(t, ok)
	require.NotEmpty(t, indices)

	seen := make(map[voxel.GlobalVoxelIndex]bool)
	for _, idx := range indices {
		require.False(t, seen[idx], "voxel %v revisited", idx)
		seen[idx] = true
	}
}

func TestCast_IncludesTruncationBandPastEndpoint(t *testing.T) {
	p := params()
	indices, ok := Cast(r3.Vec{}, r3.Vec{X: 2.0}, p)
	require.True(t, ok)

	last := indices[len(indices)-1]
	endVoxel := voxel.GlobalVoxelIndexFromPosition(r3.Vec{X: 2.0 + p.TruncationDist}, p.VoxelSize)
	assert.Equal(t, endVoxel, last)
}

func TestCast_NearTruncationSkipsFreeSpaceBehindSensor(t *testing.T) {
	p := params()
	indices, ok := Cast(r3.Vec{}, r3.Vec{X: 5.0}, p)
	require.True(t, ok)

	firstVoxel := indices[0]
	nearStart := voxel.GlobalVoxelIndexFromPosition(r3.Vec{X: 5.0 - p.TruncationDist}, p.VoxelSize)
	assert.Equal(t, nearStart, firstVoxel)
}

func TestCast_StartFromOriginCarvesAllFreeSpace(t *testing.T) {
	p := params()
	p.StartFromOrigin = true
	indices, ok := Cast(r3.Vec{}, r3.Vec{X: 5.0}, p)
	require.True(t, ok)

	originVoxel := voxel.GlobalVoxelIndexFromPosition(r3.Vec{}, p.VoxelSize)
	assert.Equal(t, originVoxel, indices[0])
}
