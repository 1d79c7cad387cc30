// Package raycast implements the ray caster (component C): given a
// sensor origin and a measured endpoint, it emits the sequence of voxel
// indices a 3D DDA (Amanatides & Woo) visits along the segment, honoring
// the near-truncation band and the start-from-origin flag of spec.md
// §4.C.
//
// Geometry here is grounded on internal/lidar/transform.go's pose-apply
// style (plain r3.Vec arithmetic rather than a heavier transform stack);
// gonum.org/v1/gonum/spatial/r3 supplies the vector type the teacher's
// hand-rolled [3]float64 helpers stood in for.
package raycast

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// Params configures a single Cast call; fields mirror the
// truncation_distance / max_ray_length_m / min_ray_length_m /
// start-from-origin tunables of spec.md §6.
type Params struct {
	VoxelSize       float64
	TruncationDist  float64
	MaxRayLength    float64
	MinRayLength    float64
	StartFromOrigin bool
}

// Cast returns the ordered, non-repeating sequence of voxel indices
// touched by the segment from origin to endpoint + tau*unit(direction),
// truncated at the near band per spec.md §4.C. It returns (nil, false)
// if the endpoint's range falls outside [MinRayLength, MaxRayLength].
func Cast(origin, endpoint r3.Vec, p Params) ([]voxel.GlobalVoxelIndex, bool) {
	dir := r3.Sub(endpoint, origin)
	rng := r3.Norm(dir)
	if rng == 0 || math.IsNaN(rng) || math.IsInf(rng, 0) {
		return nil, false
	}
	if rng > p.MaxRayLength || rng < p.MinRayLength {
		return nil, false
	}

	unit := r3.Scale(1/rng, dir)

	startDist := 0.0
	if !p.StartFromOrigin {
		startDist = math.Max(0, rng-p.TruncationDist)
	}
	endDist := rng + p.TruncationDist

	start := r3.Add(origin, r3.Scale(startDist, unit))
	end := r3.Add(origin, r3.Scale(endDist, unit))

	return dda(start, end, p.VoxelSize), true
}

// dda walks a 3D digital-differential-analyzer (Amanatides & Woo) from
// start to end in voxel-index space, visiting each traversed voxel
// exactly once.
func dda(start, end r3.Vec, voxelSize float64) []voxel.GlobalVoxelIndex {
	dir := r3.Sub(end, start)
	length := r3.Norm(dir)
	if length == 0 {
		return []voxel.GlobalVoxelIndex{voxel.GlobalVoxelIndexFromPosition(start, voxelSize)}
	}
	unit := r3.Scale(1/length, dir)

	cur := voxel.GlobalVoxelIndexFromPosition(start, voxelSize)
	last := voxel.GlobalVoxelIndexFromPosition(end, voxelSize)

	step := [3]int64{sign(unit.X), sign(unit.Y), sign(unit.Z)}

	// tMax[axis]: distance along the ray to the next voxel boundary
	// crossing on that axis. tDelta[axis]: distance between successive
	// boundary crossings on that axis.
	var tMax, tDelta [3]float64
	axes := [3]float64{unit.X, unit.Y, unit.Z}
	coords := [3]float64{start.X, start.Y, start.Z}
	idx := [3]int64{cur[0], cur[1], cur[2]}

	for a := 0; a < 3; a++ {
		if axes[a] == 0 {
			tMax[a] = math.Inf(1)
			tDelta[a] = math.Inf(1)
			continue
		}
		tDelta[a] = voxelSize / math.Abs(axes[a])
		boundary := float64(idx[a])
		if step[a] > 0 {
			boundary++
		}
		boundary *= voxelSize
		tMax[a] = (boundary - coords[a]) / axes[a]
	}

	out := []voxel.GlobalVoxelIndex{cur}
	visited := map[voxel.GlobalVoxelIndex]struct{}{cur: {}}

	// Bound the walk by the Manhattan distance between start and end
	// voxels (each DDA step moves one axis by one voxel) plus a small
	// safety margin, so a degenerate direction can never spin forever.
	maxSteps := manhattan(cur, last) + 4
	for i := 0; i < maxSteps && cur != last; i++ {
		axis := 0
		if tMax[1] < tMax[axis] {
			axis = 1
		}
		if tMax[2] < tMax[axis] {
			axis = 2
		}
		cur[axis] += step[axis]
		tMax[axis] += tDelta[axis]

		if _, seen := visited[cur]; !seen {
			visited[cur] = struct{}{}
			out = append(out, cur)
		}
	}

	return out
}

func sign(v float64) int64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func manhattan(a, b voxel.GlobalVoxelIndex) int {
	m := int64(0)
	for i := 0; i < 3; i++ {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		m += d
	}
	return int(m)
}
