package voxel

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Voxel is a single TSDF cell: a truncated signed distance and a
// non-negative weight, plus an optional color accumulated the same way.
//
// weight == 0 means unobserved; any strictly positive weight means
// observed.
type Voxel struct {
	Distance float32
	Weight   float32
	Color    [3]uint8
}

// Unobserved reports whether v has never received an integration.
func (v Voxel) Unobserved() bool {
	return v.Weight <= 0
}

// BlockIndex is the 3D integer key of a Block within a Layer.
// index = floor(position / (voxels_per_side * voxel_size)).
type BlockIndex [3]int64

// UpdateFlag names a consumer-owned dirty bit tracked per block.
// Multiple consumers (map publisher, mesher, ESDF) each own a bit so
// none of them races to clear another's flag.
type UpdateFlag uint8

const (
	FlagMap UpdateFlag = 1 << iota
	FlagMesh
	FlagEsdf
)

// BlockIndexFromPosition computes the BlockIndex containing a world point.
func BlockIndexFromPosition(p r3.Vec, blockSize float64) BlockIndex {
	return BlockIndex{
		int64(math.Floor(p.X / blockSize)),
		int64(math.Floor(p.Y / blockSize)),
		int64(math.Floor(p.Z / blockSize)),
	}
}

// Origin returns the world-coordinate origin (minimum corner) of the
// block identified by idx.
func (idx BlockIndex) Origin(blockSize float64) r3.Vec {
	return r3.Vec{
		X: float64(idx[0]) * blockSize,
		Y: float64(idx[1]) * blockSize,
		Z: float64(idx[2]) * blockSize,
	}
}

// GlobalVoxelIndex is the 3D integer key of a single voxel in world
// voxel-grid coordinates (index = floor(position / voxel_size)), finer
// grained than BlockIndex. The ray caster (component C) works in this
// space; Locate converts a GlobalVoxelIndex into the (BlockIndex, linear
// offset) pair the block store and integrators use.
type GlobalVoxelIndex [3]int64

// GlobalVoxelIndexFromPosition computes the voxel containing p.
func GlobalVoxelIndexFromPosition(p r3.Vec, voxelSize float64) GlobalVoxelIndex {
	return GlobalVoxelIndex{
		int64(math.Floor(p.X / voxelSize)),
		int64(math.Floor(p.Y / voxelSize)),
		int64(math.Floor(p.Z / voxelSize)),
	}
}

// Locate resolves a global voxel index to the block that contains it and
// the voxel's linear offset within that block's flat array.
func (l *Layer) Locate(gv GlobalVoxelIndex) (BlockIndex, int) {
	s := int64(l.VoxelsPerSide)
	bx, lx := floorDivMod(gv[0], s)
	by, ly := floorDivMod(gv[1], s)
	bz, lz := floorDivMod(gv[2], s)
	block := BlockIndex{bx, by, bz}
	linear := int((lz*s+ly)*s + lx)
	return block, linear
}

// floorDivMod returns (q, r) such that a = q*b + r with 0 <= r < b,
// i.e. Euclidean/floor division, needed because negative voxel
// coordinates must still resolve to a non-negative in-block offset.
func floorDivMod(a, b int64) (int64, int64) {
	q := a / b
	r := a % b
	if r < 0 {
		q--
		r += b
	}
	return q, r
}

// Center returns the world-coordinate center of the block.
func (idx BlockIndex) Center(blockSize float64) r3.Vec {
	o := idx.Origin(blockSize)
	h := blockSize / 2
	return r3.Vec{X: o.X + h, Y: o.Y + h, Z: o.Z + h}
}
