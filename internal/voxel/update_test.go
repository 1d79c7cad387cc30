package voxel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate_WeightedAverage(t *testing.T) {
	v := Voxel{Distance: 0.2, Weight: 2}
	obs := Observation{Distance: 0.1, Weight: 1}

	got := Update(v, obs, 100)

	assert.InDelta(t, (0.2*2+0.1*1)/3.0, got.Distance, 1e-6)
	assert.InDelta(t, 3.0, got.Weight, 1e-6)
}

func TestUpdate_ClampsAtWMax(t *testing.T) {
	v := Voxel{Distance: 0.1, Weight: 99}
	obs := Observation{Distance: 0.2, Weight: 5}

	got := Update(v, obs, 100)

	assert.InDelta(t, 100.0, got.Weight, 1e-6)
}

func TestDeintegrate_IsExactInverse(t *testing.T) {
	v := Voxel{}
	obs := Observation{Distance: 0.15, Weight: 4}

	up := Update(v, obs, 1000)
	require.Greater(t, up.Weight, float32(0))

	down := Deintegrate(up, obs, 1000)
	assert.LessOrEqual(t, down.Weight, float32(WMaxEpsilon))
}

func TestUpdate_ResetsToUnobservedWhenWeightClampsToZero(t *testing.T) {
	v := Voxel{Distance: 0.3, Weight: 2}
	obs := Observation{Distance: 0.3, Weight: -5} // deintegrating more than was ever added

	got := Update(v, obs, 1000)

	assert.Equal(t, Voxel{}, got)
}

func TestConstantWeight(t *testing.T) {
	var w ConstantWeight
	assert.Equal(t, 1.0, w.Weight(3.0, 0.1, 0.3))
}

func TestLinearWeight(t *testing.T) {
	var w LinearWeight
	assert.InDelta(t, 1.0/4.0, w.Weight(2.0, 0.0, 0.3), 1e-9)
	assert.Equal(t, 0.0, w.Weight(0, 0, 0.3))
}

func TestQuadraticDropoffWeight(t *testing.T) {
	var w QuadraticDropoffWeight
	// In front of the surface: behaves like LinearWeight.
	assert.InDelta(t, 1.0/4.0, w.Weight(2.0, 0.1, 0.3), 1e-9)
	// At d = -tau the weight drops to zero.
	assert.InDelta(t, 0.0, w.Weight(2.0, -0.3, 0.3), 1e-9)
	// Halfway behind the surface: half weight.
	assert.InDelta(t, 1.0/4.0*0.5, w.Weight(2.0, -0.15, 0.3), 1e-9)
}
