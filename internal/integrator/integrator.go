// Package integrator implements the integrator family (component D):
// simple, merged, and fast strategies sharing the voxel update rule of
// internal/voxel but differing in how observations are grouped and
// parallelized across a fixed-size worker pool.
//
// Concurrency discipline is grounded on internal/lidar/l3grid/background.go
// (RWMutex-guarded shared grid, workers never holding the grid lock
// across a blocking call) and internal/lidar/pipeline/tracking_pipeline.go
// (the composition-root staged-callback shape, here staged into
// partition -> per-partition cast+update -> merge).
package integrator

import (
	"context"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/raycast"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// Method names an integrator strategy, selected by the factory in
// spec.md §9's "polymorphic integrator family" design note.
type Method string

const (
	Simple Method = "simple"
	Merged Method = "merged"
	Fast   Method = "fast"
)

// Point is a single measurement in the sensor frame, with an optional
// color carried through for the output point clouds.
type Point struct {
	Position r3.Vec
	Color    [3]uint8
	HasColor bool
}

// Config holds the integrator's geometric and concurrency parameters,
// the portion of internal/config.MapperConfig relevant to integration.
type Config struct {
	VoxelSize       float64
	VoxelsPerSide   int
	TruncationDist  float64
	MaxWeight       float64
	MaxRayLength    float64
	MinRayLength    float64
	Threads         int
	StartFromOrigin bool
}

func (c Config) blockSize() float64 { return float64(c.VoxelsPerSide) * c.VoxelSize }

func (c Config) raycastParams() raycast.Params {
	return raycast.Params{
		VoxelSize:       c.VoxelSize,
		TruncationDist:  c.TruncationDist,
		MaxRayLength:    c.MaxRayLength,
		MinRayLength:    c.MinRayLength,
		StartFromOrigin: c.StartFromOrigin,
	}
}

// Integrator is the common contract of spec.md §4.D:
// integrate(T_G_C, points_C, colors, is_freespace, deintegrate).
// is_freespace and deintegrate are ordinary parameters rather than
// separate methods: the "capability set" the design notes mention is
// realized here as behavior flags on one call, not a type switch,
// because every strategy needs all three combinations and gains nothing
// from splitting them into distinct interface methods.
type Integrator interface {
	Integrate(ctx context.Context, layer *voxel.Layer, tGC geom.Transform, points []Point, isFreespace, deintegrate bool)
}

// New builds the integrator named by method. Unknown methods fall back
// to Merged, the teacher's convention of defaulting to its best
// accuracy/speed trade-off rather than failing a request (mirrors
// TrackerConfigFromTuning's lenient handling of unrecognized tuning
// values).
func New(method Method, cfg Config, weighting voxel.WeightingPolicy) Integrator {
	base := base{cfg: cfg, weighting: weighting}
	switch method {
	case Simple:
		return &simpleIntegrator{base: base}
	case Fast:
		return &fastIntegrator{base: base}
	default:
		return &mergedIntegrator{base: base}
	}
}

type base struct {
	cfg       Config
	weighting voxel.WeightingPolicy
}

// applyObservation casts a ray from origin to endpoint (both world
// frame) and folds the weighting policy's output (scaled by
// weightMultiplier, the number of raw points a bin represents for the
// merged strategy, 1 for simple/fast) into every voxel along it, using
// the shared update rule. sign is -1 for deintegration, +1 otherwise.
// When freespace is true there is no measured surface at endpoint: every
// traversed voxel is recorded at the clamp distance +tau with constant
// weight, carving free space without depositing a surface.
func (b base) applyObservation(layer *voxel.Layer, origin, endpoint r3.Vec, color [3]uint8, hasColor bool, weightMultiplier, sign float64, freespace bool) {
	indices, ok := raycast.Cast(origin, endpoint, b.cfg.raycastParams())
	if !ok {
		return
	}

	rng := r3.Norm(r3.Sub(endpoint, origin))
	tau := b.cfg.TruncationDist

	for _, gv := range indices {
		var d, w float64
		if freespace {
			d = tau
			w = weightMultiplier
		} else {
			voxelCenter := r3.Scale(b.cfg.VoxelSize, r3.Vec{
				X: float64(gv[0]) + 0.5,
				Y: float64(gv[1]) + 0.5,
				Z: float64(gv[2]) + 0.5,
			})
			d = signedDistance(origin, endpoint, voxelCenter, rng)
			if d < -tau || d > tau {
				continue
			}
			w = weightMultiplier * b.weightFor(rng, d)
		}

		obs := voxel.Observation{
			Distance: float32(d),
			Weight:   float32(sign * w),
			Color:    color,
			HasColor: hasColor,
		}

		blockIdx, linear := layer.Locate(gv)
		blk := layer.AllocateOrGet(blockIdx)
		blk.WithVoxel(linear, func(v *voxel.Voxel) {
			*v = voxel.Update(*v, obs, float32(b.cfg.MaxWeight))
		})
		blk.SetUpdated(voxel.FlagMap)
	}
}

// signedDistance is the distance from a voxel center to the measurement
// surface along the ray: positive on the sensor side (free space),
// negative behind the surface, matching scenario 1 of spec.md §8.
func signedDistance(origin, endpoint, voxelCenter r3.Vec, rangeToSurface float64) float64 {
	unit := r3.Scale(1/rangeToSurface, r3.Sub(endpoint, origin))
	alongRay := r3.Dot(r3.Sub(voxelCenter, origin), unit)
	return rangeToSurface - alongRay
}

// weightFor evaluates the configured weighting policy for a point whose
// range is z and whose (already truncation-clamped) signed distance is d.
func (b base) weightFor(z, d float64) float64 {
	if b.weighting == nil {
		return 1
	}
	return b.weighting.Weight(z, d, b.cfg.TruncationDist)
}

// partition splits points into up to n roughly equal contiguous slices,
// the simplest fixed-size work partitioning, mirroring the teacher's
// worker-pool sizing in tracking_pipeline.go.
func partition(points []Point, n int) [][]Point {
	if n < 1 {
		n = 1
	}
	if n > len(points) {
		n = len(points)
	}
	if n == 0 {
		return nil
	}
	out := make([][]Point, n)
	chunk := (len(points) + n - 1) / n
	for i := 0; i < n; i++ {
		start := i * chunk
		if start >= len(points) {
			out[i] = nil
			continue
		}
		end := start + chunk
		if end > len(points) {
			end = len(points)
		}
		out[i] = points[start:end]
	}
	return out
}

func validPoint(p Point) bool {
	v := p.Position
	if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) {
		return false
	}
	if math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) || math.IsInf(v.Z, 0) {
		return false
	}
	if v.X == 0 && v.Y == 0 && v.Z == 0 {
		return false // zero range: silently skipped per spec.md §4.D
	}
	return true
}

func sign(deintegrate bool) float64 {
	if deintegrate {
		return -1
	}
	return 1
}
