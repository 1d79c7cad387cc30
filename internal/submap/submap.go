package submap

import (
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// PoseSample is one entry of a submap's pose history: the body pose
// at a given timestamp, relative to the submap's own origin (spec.md
// §3's "ordered mapping from timestamp to T_submap_body").
type PoseSample struct {
	Timestamp time.Time
	Pose      geom.Transform
}

// AABB is an axis-aligned bounding box in the submap's local frame.
type AABB struct {
	Min, Max r3.Vec
}

// OBB is an oriented bounding box: an AABB in the submap's local frame
// together with the rotation that places it in the parent (world)
// frame, grounded on voxgraph_submap.h's cached AABB/OBB pair (see
// SPEC_FULL.md's supplemented features).
type OBB struct {
	Center       r3.Vec
	HalfExtents  r3.Vec
	Orientation  geom.Transform // rotation-only; Translation is zero
}

// Submap is spec.md §3's Submap record: a self-contained TSDF built
// over a bounded time window, gravity-aligned origin pose, and the
// caches populated once at the finished transition.
type Submap struct {
	ID         int64
	ExternalID uuid.UUID

	Origin geom.Transform // T_odom_submap, gravity-aligned (roll = pitch = 0)

	Layer *voxel.Layer
	ESDF  *voxel.Layer // nil until BuildESDF is called

	StartTime time.Time
	EndTime   time.Time
	Finished  bool

	PoseHistory []PoseSample

	RegistrationPoints []r3.Vec
	AABB               AABB
	OBB                OBB
}

func newSubmap(id int64, origin geom.Transform, start time.Time, voxelSize float64, voxelsPerSide int) *Submap {
	return &Submap{
		ID:         id,
		ExternalID: uuid.New(),
		Origin:     origin,
		Layer:      voxel.NewLayer(voxelSize, voxelsPerSide),
		StartTime:  start,
	}
}

// RecordPose appends a pose sample to the submap's trajectory. Valid
// on an unfinished submap only; the trajectory is immutable once the
// submap is finished (spec.md §3).
func (s *Submap) RecordPose(t time.Time, pose geom.Transform) {
	if s.Finished {
		return
	}
	s.PoseHistory = append(s.PoseHistory, PoseSample{Timestamp: t, Pose: pose})
}

// registrationEps is the half-band (in voxel-size units) around the
// zero level set that counts as a registration point, a documented
// tunable rather than a value spec.md pins down.
const registrationEps = 1.0

// Finish transitions the submap to finished at end: its TSDF/ESDF
// become immutable from the caller's perspective (the package does
// not enforce this at the type level, matching the teacher's
// convention of documenting rather than locking invariants that are
// the caller's responsibility to respect), and the registration-point
// and bounding-box caches are populated (spec.md §4.F step 1,
// §3's "populated once at that transition").
func (s *Submap) Finish(end time.Time) {
	if s.Finished {
		return
	}
	s.EndTime = end
	s.Finished = true
	s.RegistrationPoints = computeRegistrationPoints(s.Layer, registrationEps)
	s.AABB = computeAABB(s.Layer)
	s.OBB = computeOBB(s.AABB, s.Origin)
}

// BuildESDF lazily derives an ESDF from the TSDF, the optional field
// spec.md §3 names without specifying its computation. This is a
// documented placeholder, not a full Eikonal/fast-marching
// propagation (out of the core component budget per SPEC_FULL.md):
// it copies each allocated voxel's already-clamped TSDF distance
// into a same-shaped ESDF layer, correct only within the truncation
// band and not beyond it. A real ESDF would propagate distances past
// the band via a priority-queue wavefront; that pass is the
// documented extension point.
func (s *Submap) BuildESDF() *voxel.Layer {
	if s.ESDF != nil {
		return s.ESDF
	}
	esdf := voxel.NewLayer(s.Layer.VoxelSize, s.Layer.VoxelsPerSide)
	for _, idx := range s.Layer.IterateAll() {
		src, ok := s.Layer.Get(idx)
		if !ok {
			continue
		}
		dst := esdf.AllocateOrGet(idx)
		snap := src.Snapshot()
		for linear, v := range snap {
			if v.Unobserved() {
				continue
			}
			dst.WithVoxel(linear, func(out *voxel.Voxel) {
				*out = voxel.Voxel{Distance: v.Distance, Weight: v.Weight}
			})
		}
	}
	s.ESDF = esdf
	return esdf
}

func computeRegistrationPoints(layer *voxel.Layer, epsInVoxels float64) []r3.Vec {
	voxelSize := layer.VoxelSize
	s := layer.VoxelsPerSide
	threshold := float32(epsInVoxels * voxelSize)

	var out []r3.Vec
	for _, idx := range layer.IterateAll() {
		blk, ok := layer.Get(idx)
		if !ok {
			continue
		}
		for linear, v := range blk.Snapshot() {
			if v.Unobserved() {
				continue
			}
			if v.Distance < -threshold || v.Distance > threshold {
				continue
			}
			x, y, z := localCoords(linear, s)
			center := r3.Add(blk.Origin, r3.Vec{
				X: (float64(x) + 0.5) * voxelSize,
				Y: (float64(y) + 0.5) * voxelSize,
				Z: (float64(z) + 0.5) * voxelSize,
			})
			out = append(out, center)
		}
	}
	return out
}

// localCoords inverts Block.LinearIndex's (z*s+y)*s+x packing.
func localCoords(linear, s int) (x, y, z int) {
	x = linear % s
	y = (linear / s) % s
	z = linear / (s * s)
	return
}

func computeAABB(layer *voxel.Layer) AABB {
	blockSize := layer.BlockSize()
	indices := layer.IterateAll()
	if len(indices) == 0 {
		return AABB{}
	}

	first, _ := layer.Get(indices[0])
	min := first.Origin
	max := r3.Add(first.Origin, r3.Vec{X: blockSize, Y: blockSize, Z: blockSize})

	for _, idx := range indices[1:] {
		blk, ok := layer.Get(idx)
		if !ok {
			continue
		}
		corner := r3.Add(blk.Origin, r3.Vec{X: blockSize, Y: blockSize, Z: blockSize})
		min = r3.Vec{X: minF(min.X, blk.Origin.X), Y: minF(min.Y, blk.Origin.Y), Z: minF(min.Z, blk.Origin.Z)}
		max = r3.Vec{X: maxF(max.X, corner.X), Y: maxF(max.Y, corner.Y), Z: maxF(max.Z, corner.Z)}
	}
	return AABB{Min: min, Max: max}
}

func computeOBB(aabb AABB, origin geom.Transform) OBB {
	center := r3.Scale(0.5, r3.Add(aabb.Min, aabb.Max))
	half := r3.Scale(0.5, r3.Sub(aabb.Max, aabb.Min))
	return OBB{
		Center:      center,
		HalfExtents: half,
		Orientation: geom.Transform{Row0: origin.Row0, Row1: origin.Row1, Row2: origin.Row2},
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
