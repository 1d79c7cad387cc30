package voxel

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// Layer is the sparse mapping from BlockIndex to Block that spec.md §3
// and §4.A describe. It is grounded on the teacher's two sparse-hash
// patterns: internal/lidar/l4perception/voxel.go's map[[3]int64]*...
// spatial hash for the key shape, and internal/lidar/l3grid/background.go's
// BackgroundGrid for the single-writer/many-readers RWMutex discipline
// guarding the map itself (as opposed to the per-block locks Block owns
// for voxel writes).
type Layer struct {
	VoxelSize     float64
	VoxelsPerSide int

	mu     sync.RWMutex
	blocks map[BlockIndex]*Block
}

// BlockSize is voxels_per_side * voxel_size (spec.md §3).
func (l *Layer) BlockSize() float64 {
	return float64(l.VoxelsPerSide) * l.VoxelSize
}

// NumVoxelsPerBlock is voxels_per_side^3.
func (l *Layer) NumVoxelsPerBlock() int {
	return l.VoxelsPerSide * l.VoxelsPerSide * l.VoxelsPerSide
}

// NewLayer builds an empty layer with the given voxel geometry.
func NewLayer(voxelSize float64, voxelsPerSide int) *Layer {
	return &Layer{
		VoxelSize:     voxelSize,
		VoxelsPerSide: voxelsPerSide,
		blocks:        make(map[BlockIndex]*Block),
	}
}

// AllocateOrGet returns the block at idx, creating it (with has_data =
// true, per spec.md §3's invariant) if absent. allocate_or_get never
// fails except on OOM, which Go surfaces as a runtime panic rather than
// a return value, matching the contract in spec.md §4.A.
func (l *Layer) AllocateOrGet(idx BlockIndex) *Block {
	l.mu.RLock()
	b, ok := l.blocks[idx]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.blocks[idx]; ok {
		return b
	}
	b = newBlock(idx.Origin(l.BlockSize()), l.VoxelsPerSide)
	l.blocks[idx] = b
	return b
}

// Get returns the block at idx and whether it exists, without creating it.
func (l *Layer) Get(idx BlockIndex) (*Block, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.blocks[idx]
	return b, ok
}

// Remove deletes the block at idx. Per spec.md §3, any outstanding *Block
// reference obtained before the removal is invalidated for the purposes
// of subsequent layer operations (the caller must not assume it is still
// reachable via Get), though the Go value itself remains valid memory
// until its last reference is dropped.
func (l *Layer) Remove(idx BlockIndex) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.blocks, idx)
}

// RemoveDistant removes every block whose center is farther from center
// than radius + blockSize*sqrt(3)/2 (spec.md §8's boundary behavior for
// remove_distant_blocks), and returns the indices removed.
func (l *Layer) RemoveDistant(center r3.Vec, radius float64) []BlockIndex {
	blockSize := l.BlockSize()
	margin := blockSize * sqrt3Over2

	l.mu.Lock()
	defer l.mu.Unlock()

	var removed []BlockIndex
	for idx, b := range l.blocks {
		d := dist(b.Origin, center, blockSize)
		if d > radius+margin {
			removed = append(removed, idx)
			delete(l.blocks, idx)
		}
	}
	return removed
}

const sqrt3Over2 = 0.8660254037844386 // math.Sqrt(3) / 2

func dist(origin, center r3.Vec, blockSize float64) float64 {
	h := blockSize / 2
	cx, cy, cz := origin.X+h, origin.Y+h, origin.Z+h
	dx, dy, dz := cx-center.X, cy-center.Y, cz-center.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// IterateAll returns a snapshot of every allocated block index. Per
// spec.md §4.A, "all iteration returns a snapshot of keys": the caller
// may safely range over the result while concurrently calling Get,
// AllocateOrGet, or Remove on the layer.
func (l *Layer) IterateAll() []BlockIndex {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]BlockIndex, 0, len(l.blocks))
	for idx := range l.blocks {
		out = append(out, idx)
	}
	return out
}

// IterateUpdated returns a snapshot of the indices of blocks whose
// updated flags include flag.
func (l *Layer) IterateUpdated(flag UpdateFlag) []BlockIndex {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []BlockIndex
	for idx, b := range l.blocks {
		if b.IsUpdated(flag) {
			out = append(out, idx)
		}
	}
	return out
}

// Clear removes every block. After Clear, the layer contains zero
// blocks (spec.md §8's invariant).
func (l *Layer) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blocks = make(map[BlockIndex]*Block)
}

// Len returns the number of allocated blocks.
func (l *Layer) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.blocks)
}

// PruneFullyDeintegrated removes every recently-updated block (per
// candidates, typically IterateUpdated(FlagMap)) that is fully
// deintegrated, per spec.md §4.F, clearing FlagMap and setting FlagMesh
// on survivors is the caller's responsibility (it must tell the mesher
// which blocks vanished). Returns the indices actually pruned.
func (l *Layer) PruneFullyDeintegrated(candidates []BlockIndex, eps float32) []BlockIndex {
	var pruned []BlockIndex
	for _, idx := range candidates {
		b, ok := l.Get(idx)
		if !ok {
			continue
		}
		if b.FullyDeintegrated(eps) {
			l.Remove(idx)
			pruned = append(pruned, idx)
		}
	}
	return pruned
}
