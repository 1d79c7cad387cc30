package voxel

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"
)

// Block is a dense cubic array of voxelsPerSide^3 voxels plus metadata.
// It owns the per-block stripe lock called for in spec.md's design notes:
// rather than hand out raw voxel slices across goroutines, callers go
// through WithVoxel (or the Voxel/SetVoxel/Snapshot accessors), which
// acquire the lock on entry and release on every exit path.
type Block struct {
	Origin        r3.Vec
	VoxelsPerSide int
	HasData       bool

	mu      sync.Mutex
	voxels  []Voxel
	updated UpdateFlag
}

func newBlock(origin r3.Vec, voxelsPerSide int) *Block {
	return &Block{
		Origin:        origin,
		VoxelsPerSide: voxelsPerSide,
		HasData:       true,
		voxels:        make([]Voxel, voxelsPerSide*voxelsPerSide*voxelsPerSide),
	}
}

// LinearIndex converts a local (x, y, z) voxel coordinate, each in
// [0, voxelsPerSide), into the row-major offset used by the flat array
// and the §6 wire format's payload order.
func (b *Block) LinearIndex(x, y, z int) int {
	s := b.VoxelsPerSide
	return (z*s+y)*s + x
}

// NumVoxels returns voxelsPerSide^3.
func (b *Block) NumVoxels() int {
	return len(b.voxels)
}

// Voxel returns a copy of the voxel at the given linear index.
func (b *Block) Voxel(linear int) Voxel {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.voxels[linear]
}

// SetVoxel overwrites the voxel at the given linear index.
func (b *Block) SetVoxel(linear int, v Voxel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.voxels[linear] = v
}

// WithVoxel runs fn against a mutable pointer to the voxel at linear
// under the block's stripe lock, the scoped-access primitive spec.md's
// design notes call for in place of exposing raw voxel references.
func (b *Block) WithVoxel(linear int, fn func(v *Voxel)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.voxels[linear])
}

// Snapshot copies out every voxel in the block. Safe to call concurrently
// with writers; the copy may be torn across individual voxel boundaries
// only in the sense that it reflects a consistent lock acquisition, not a
// single atomic instant across the whole block (matches the teacher's
// BackgroundGrid.GridStatus snapshot discipline).
func (b *Block) Snapshot() []Voxel {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Voxel, len(b.voxels))
	copy(out, b.voxels)
	return out
}

// SetUpdated sets the given consumer flag(s).
func (b *Block) SetUpdated(flag UpdateFlag) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updated |= flag
}

// ClearUpdated clears exactly the given flag(s), leaving others owned by
// other consumers untouched.
func (b *Block) ClearUpdated(flag UpdateFlag) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updated &^= flag
}

// IsUpdated reports whether any bit of flag is set.
func (b *Block) IsUpdated(flag UpdateFlag) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updated&flag != 0
}

// FullyDeintegrated reports whether every voxel has weight <= eps, the
// pruning condition of spec.md §4.F.
func (b *Block) FullyDeintegrated(eps float32) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, v := range b.voxels {
		if v.Weight > eps {
			return false
		}
	}
	return true
}
