package voxel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestLayer_AllocateOrGet_CreatesWithData(t *testing.T) {
	l := NewLayer(0.1, 8)
	idx := BlockIndex{1, 2, 3}

	b := l.AllocateOrGet(idx)
	require.NotNil(t, b)
	assert.True(t, b.HasData)
	assert.Equal(t, l.NumVoxelsPerBlock(), b.NumVoxels())

	again := l.AllocateOrGet(idx)
	assert.Same(t, b, again, "allocate_or_get on an existing index must return the same block")
}

func TestLayer_Get_MissingReturnsAbsence(t *testing.T) {
	l := NewLayer(0.1, 8)
	_, ok := l.Get(BlockIndex{9, 9, 9})
	assert.False(t, ok)
}

func TestLayer_Remove(t *testing.T) {
	l := NewLayer(0.1, 8)
	idx := BlockIndex{0, 0, 0}
	l.AllocateOrGet(idx)
	l.Remove(idx)
	_, ok := l.Get(idx)
	assert.False(t, ok)
}

func TestLayer_Clear(t *testing.T) {
	l := NewLayer(0.1, 8)
	l.AllocateOrGet(BlockIndex{0, 0, 0})
	l.AllocateOrGet(BlockIndex{1, 0, 0})
	l.Clear()
	assert.Equal(t, 0, l.Len())
}

func TestLayer_IterateAll_Snapshot(t *testing.T) {
	l := NewLayer(0.1, 8)
	l.AllocateOrGet(BlockIndex{0, 0, 0})
	l.AllocateOrGet(BlockIndex{1, 0, 0})

	keys := l.IterateAll()
	assert.Len(t, keys, 2)

	// Mutating the layer after taking the snapshot must not affect it.
	l.AllocateOrGet(BlockIndex{2, 0, 0})
	assert.Len(t, keys, 2)
}

func TestLayer_RemoveDistant(t *testing.T) {
	l := NewLayer(1.0, 1) // block_size = 1
	near := BlockIndex{0, 0, 0}
	far := BlockIndex{100, 0, 0}
	l.AllocateOrGet(near)
	l.AllocateOrGet(far)

	removed := l.RemoveDistant(r3.Vec{}, 5.0)
	assert.Contains(t, removed, far)
	assert.NotContains(t, removed, near)

	_, stillThere := l.Get(near)
	assert.True(t, stillThere)
	_, gone := l.Get(far)
	assert.False(t, gone)
}

func TestLayer_PruneFullyDeintegrated(t *testing.T) {
	l := NewLayer(0.1, 2)
	idx := BlockIndex{0, 0, 0}
	b := l.AllocateOrGet(idx)
	// All voxels default to {0,0,{}} i.e. weight 0: fully deintegrated.
	b.SetUpdated(FlagMap)

	pruned := l.PruneFullyDeintegrated(l.IterateUpdated(FlagMap), 1e-6)
	assert.Equal(t, []BlockIndex{idx}, pruned)
	assert.Equal(t, 0, l.Len())
}

func TestBlockIndexFromPosition(t *testing.T) {
	blockSize := 0.8 // e.g. voxels_per_side=8, voxel_size=0.1
	assert.Equal(t, BlockIndex{0, 0, 0}, BlockIndexFromPosition(r3.Vec{X: 0.1, Y: 0.1, Z: 0.1}, blockSize))
	assert.Equal(t, BlockIndex{-1, 0, 0}, BlockIndexFromPosition(r3.Vec{X: -0.1, Y: 0.1, Z: 0.1}, blockSize))
}
