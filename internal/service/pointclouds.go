package service

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// localCoords inverts Block.LinearIndex's (z*s+y)*s+x packing, the
// same derivation internal/submap.localCoords uses.
func localCoords(linear, s int) (x, y, z int) {
	x = linear % s
	y = (linear / s) % s
	z = linear / (s * s)
	return
}

func voxelCenter(blockOrigin r3.Vec, x, y, z int, voxelSize float64) r3.Vec {
	return r3.Add(blockOrigin, r3.Vec{
		X: (float64(x) + 0.5) * voxelSize,
		Y: (float64(y) + 0.5) * voxelSize,
		Z: (float64(z) + 0.5) * voxelSize,
	})
}

// generatePointCloud walks every allocated block of layer and selects
// points for req.Kind.
func generatePointCloud(layer *voxel.Layer, req PointCloudRequest) []ColoredPoint {
	s := layer.VoxelsPerSide
	voxelSize := layer.VoxelSize
	// occupancyBand and isoBand are both expressed in voxel-size units,
	// a documented tunable (spec.md names the products, not their
	// thresholds) matching internal/submap's registrationEps precedent.
	const isoBand = 1.0
	const occupancyBand = 3.0

	var out []ColoredPoint
	for _, idx := range layer.IterateAll() {
		blk, ok := layer.Get(idx)
		if !ok {
			continue
		}
		updated := req.Kind == UpdatedVoxelCloud && blk.IsUpdated(voxel.FlagMap)
		for linear, v := range blk.Snapshot() {
			if v.Unobserved() {
				continue
			}
			x, y, z := localCoords(linear, s)
			center := voxelCenter(blk.Origin, x, y, z, voxelSize)
			dist := float64(v.Distance)

			switch req.Kind {
			case UpdatedVoxelCloud:
				if !updated {
					continue
				}
			case IsosurfaceCloud:
				if dist < -isoBand*voxelSize || dist > isoBand*voxelSize {
					continue
				}
			case OccupancyCloud:
				if dist < -occupancyBand*voxelSize || dist > 0 {
					continue
				}
			case SliceCloud:
				if center.Z < req.SliceZ-req.SliceThickness || center.Z > req.SliceZ+req.SliceThickness {
					continue
				}
			case ReprojectedCloud:
				// every observed voxel qualifies
			}

			out = append(out, ColoredPoint{Position: center, Color: v.Color, Distance: v.Distance})
		}
		if req.Kind == UpdatedVoxelCloud && updated {
			blk.ClearUpdated(voxel.FlagMap)
		}
	}
	return out
}
