package integrator

import (
	"context"
	"sync"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/raycast"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// fastIntegrator trades completeness for throughput: a fixed pool of
// workers pulls points round-robin, and two sets reset at the start of
// every Integrate call skip work that is already covered this call --
// a voxel that some other point already updated, and a ray whose
// endpoint voxel was already the target of another cast. Neither set
// persists across calls, so repeated integration still converges, just
// with one update per voxel per point cloud instead of one per point
// (spec.md §4.D's "fast" strategy and §9's bounded-skip design note).
type fastIntegrator struct {
	base
}

func (f *fastIntegrator) Integrate(ctx context.Context, layer *voxel.Layer, tGC geom.Transform, points []Point, isFreespace, deintegrate bool) {
	origin := tGC.Translation
	sgn := sign(deintegrate)

	recentVoxels := newRecencySet()
	recentRays := newRecencySet()

	n := f.cfg.Threads
	if n < 1 {
		n = 1
	}
	if n > len(points) {
		n = len(points)
		if n == 0 {
			n = 1
		}
	}

	var next int64
	var wg sync.WaitGroup
	for w := 0; w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := atomic.AddInt64(&next, 1) - 1
				if i >= int64(len(points)) {
					return
				}
				if ctx.Err() != nil {
					return
				}
				p := points[i]
				if !validPoint(p) {
					continue
				}
				endpoint := tGC.Apply(p.Position)

				rayKey := voxel.GlobalVoxelIndexFromPosition(endpoint, f.cfg.VoxelSize)
				if !recentRays.claim(voxel.BlockIndex(rayKey)) {
					continue
				}

				f.applyObservationSkippingRecent(layer, origin, endpoint, p.Color, p.HasColor, sgn, isFreespace, recentVoxels)
			}
		}()
	}
	wg.Wait()
}

// applyObservationSkippingRecent is applyObservation's traversal, but
// a voxel already claimed by recent during this call is left alone.
func (f *fastIntegrator) applyObservationSkippingRecent(layer *voxel.Layer, origin, endpoint r3.Vec, color [3]uint8, hasColor bool, sgn float64, freespace bool, recent *recencySet) {
	indices, ok := raycast.Cast(origin, endpoint, f.cfg.raycastParams())
	if !ok {
		return
	}

	rng := r3.Norm(r3.Sub(endpoint, origin))
	tau := f.cfg.TruncationDist

	for _, gv := range indices {
		if !recent.claim(voxel.BlockIndex{gv[0], gv[1], gv[2]}) {
			continue
		}

		var d, w float64
		if freespace {
			d = tau
			w = 1
		} else {
			voxelCenter := r3.Scale(f.cfg.VoxelSize, r3.Vec{
				X: float64(gv[0]) + 0.5,
				Y: float64(gv[1]) + 0.5,
				Z: float64(gv[2]) + 0.5,
			})
			d = signedDistance(origin, endpoint, voxelCenter, rng)
			if d < -tau || d > tau {
				continue
			}
			w = f.weightFor(rng, d)
		}

		obs := voxel.Observation{
			Distance: float32(d),
			Weight:   float32(sgn * w),
			Color:    color,
			HasColor: hasColor,
		}

		blockIdx, linear := layer.Locate(gv)
		blk := layer.AllocateOrGet(blockIdx)
		blk.WithVoxel(linear, func(v *voxel.Voxel) {
			*v = voxel.Update(*v, obs, float32(f.cfg.MaxWeight))
		})
		blk.SetUpdated(voxel.FlagMap)
	}
}

// recencySet is a concurrency-safe set of claims, used to implement
// "already handled this call" for both voxel indices and ray endpoint
// bins. A zero-value set is not usable; construct with newRecencySet.
type recencySet struct {
	mu      sync.Mutex
	claimed map[voxel.BlockIndex]struct{}
}

func newRecencySet() *recencySet {
	return &recencySet{claimed: make(map[voxel.BlockIndex]struct{})}
}

// claim returns true the first time key is seen, false on every
// subsequent call, across all goroutines sharing this set.
func (s *recencySet) claim(key voxel.BlockIndex) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claimed[key]; ok {
		return false
	}
	s.claimed[key] = struct{}{}
	return true
}
