package mesh

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// cornerOffset lists the 8 unit-cube corners indexed so bit 0 is x,
// bit 1 is y, bit 2 is z.
var cornerOffset = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1},
}

// cubeEdges lists the 12 edges of a unit cube as pairs of corner
// indices that differ in exactly one coordinate.
var cubeEdges = [12][2]int{
	{0, 1}, {0, 2}, {0, 4}, {1, 3},
	{1, 5}, {2, 3}, {2, 6}, {3, 7},
	{4, 5}, {4, 6}, {5, 7}, {6, 7},
}

// Generate is generate(only_updated, clear_flag) from spec.md §4.G.
// When onlyUpdated is true, only blocks with the Mesh flag set are
// retriangulated; clearFlag controls whether that flag is cleared
// afterward (a caller that hasn't finished publishing may defer
// clearing).
func (m *Mesh) Generate(layer *voxel.Layer, onlyUpdated bool, clearFlag bool) {
	var candidates []voxel.BlockIndex
	if onlyUpdated {
		candidates = layer.IterateUpdated(voxel.FlagMesh)
	} else {
		candidates = layer.IterateAll()
	}

	for _, idx := range candidates {
		blk, ok := layer.Get(idx)
		if !ok {
			continue
		}
		tris := generateBlock(layer, idx, blk)
		m.setTile(idx, tris)
		if clearFlag {
			blk.ClearUpdated(voxel.FlagMesh)
		}
	}
}

// generateBlock triangulates one block, reading across block
// boundaries for cells whose +x/+y/+z face lies in a neighbor block
// (spec.md §4.G's "subtle part").
func generateBlock(layer *voxel.Layer, idx voxel.BlockIndex, blk *voxel.Block) []Triangle {
	s := blk.VoxelsPerSide
	voxelSize := layer.VoxelSize

	vertices := make(map[[3]int]r3.Vec, s*s*s)

	for z := 0; z < s; z++ {
		for y := 0; y < s; y++ {
			for x := 0; x < s; x++ {
				corners, ok := fetchCorners(layer, idx, blk, x, y, z)
				if !ok {
					continue
				}
				if v, active := cellVertex(corners, cellOrigin(blk.Origin, x, y, z, voxelSize), voxelSize); active {
					vertices[[3]int{x, y, z}] = v
				}
			}
		}
	}

	return stitchXYQuads(vertices, s)
}

// fetchCorners resolves the 8 voxels forming the cell at local (x, y,
// z) in blk, fetching from neighbor blocks when a corner's coordinate
// equals s (the cell's +x/+y/+z face lies outside this block). A
// corner that falls in an unallocated neighbor block makes the whole
// cell inactive -- it is not observed at all the classification needs,
// matching the teacher's "treat absence conservatively" convention.
func fetchCorners(layer *voxel.Layer, idx voxel.BlockIndex, blk *voxel.Block, x, y, z int) ([8]voxel.Voxel, bool) {
	var out [8]voxel.Voxel
	s := blk.VoxelsPerSide

	for i, off := range cornerOffset {
		lx, ly, lz := x+off[0], y+off[1], z+off[2]

		targetIdx := idx
		if lx == s {
			lx = 0
			targetIdx[0]++
		}
		if ly == s {
			ly = 0
			targetIdx[1]++
		}
		if lz == s {
			lz = 0
			targetIdx[2]++
		}

		targetBlk := blk
		if targetIdx != idx {
			b, ok := layer.Get(targetIdx)
			if !ok {
				return out, false
			}
			targetBlk = b
		}

		v := targetBlk.Voxel(targetBlk.LinearIndex(lx, ly, lz))
		if v.Unobserved() {
			return out, false
		}
		out[i] = v
	}
	return out, true
}

func cellOrigin(blockOrigin r3.Vec, x, y, z int, voxelSize float64) r3.Vec {
	return r3.Add(blockOrigin, r3.Vec{
		X: float64(x) * voxelSize,
		Y: float64(y) * voxelSize,
		Z: float64(z) * voxelSize,
	})
}

// cellVertex computes a surface-nets-style vertex for a cell whose 8
// corners are given (in cornerOffset order) at positions offset from
// origin by voxelSize: the average of every edge's zero-crossing,
// where an edge crosses when one corner distance is negative and the
// other is zero or positive (a zero distance counts as the positive
// side). A cell with no sign change is inactive.
func cellVertex(corners [8]voxel.Voxel, origin r3.Vec, voxelSize float64) (r3.Vec, bool) {
	var sum r3.Vec
	var n int

	for _, e := range cubeEdges {
		da := float64(corners[e[0]].Distance)
		db := float64(corners[e[1]].Distance)
		if (da >= 0) == (db >= 0) {
			continue
		}
		t := da / (da - db)
		pa := r3.Add(origin, r3.Scale(voxelSize, vecOf(cornerOffset[e[0]])))
		pb := r3.Add(origin, r3.Scale(voxelSize, vecOf(cornerOffset[e[1]])))
		sum = r3.Add(sum, r3.Add(pa, r3.Scale(t, r3.Sub(pb, pa))))
		n++
	}

	if n == 0 {
		return r3.Vec{}, false
	}
	return r3.Scale(1/float64(n), sum), true
}

func vecOf(c [3]int) r3.Vec {
	return r3.Vec{X: float64(c[0]), Y: float64(c[1]), Z: float64(c[2])}
}

// stitchXYQuads connects each active cell to its +x, +y, and diagonal
// +x+y neighbors within the same z layer, emitting two triangles per
// unit square where all four corner cells are active. This is the
// documented single-orientation simplification (see doc.go): it
// produces continuous surfaces for roughly horizontal TSDFs without
// implementing full 3D dual-contouring edge stitching.
func stitchXYQuads(vertices map[[3]int]r3.Vec, s int) []Triangle {
	var tris []Triangle
	for key, v00 := range vertices {
		x, y, z := key[0], key[1], key[2]
		if x+1 >= s || y+1 >= s {
			continue
		}
		v10, ok1 := vertices[[3]int{x + 1, y, z}]
		v01, ok2 := vertices[[3]int{x, y + 1, z}]
		v11, ok3 := vertices[[3]int{x + 1, y + 1, z}]
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		tris = append(tris, Triangle{A: v00, B: v10, C: v11})
		tris = append(tris, Triangle{A: v00, B: v11, C: v01})
	}
	return tris
}
