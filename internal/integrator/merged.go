package integrator

import (
	"context"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// mergedIntegrator bins points by the voxel containing their (world
// frame) endpoint, computes a weighted centroid point and color per
// occupied bin, then casts one ray per bin with the bin's combined
// weight. Binning is a map-reduce: each worker accumulates into a
// thread-local shard, and the shards are merged before the per-bin
// rays are cast in parallel across disjoint bins (spec.md §4.D).
type mergedIntegrator struct {
	base
}

type binAccum struct {
	sumX, sumY, sumZ float64
	sumR, sumG, sumB float64
	count            int
	colorCount       int
}

func (m *mergedIntegrator) Integrate(ctx context.Context, layer *voxel.Layer, tGC geom.Transform, points []Point, isFreespace, deintegrate bool) {
	origin := tGC.Translation
	sgn := sign(deintegrate)

	parts := partition(points, m.cfg.Threads)

	// Phase 1: build thread-local shards in parallel.
	shards := make([]map[voxel.GlobalVoxelIndex]*binAccum, len(parts))
	var wg sync.WaitGroup
	for i, part := range parts {
		i, part := i, part
		wg.Add(1)
		go func() {
			defer wg.Done()
			shard := make(map[voxel.GlobalVoxelIndex]*binAccum)
			for _, p := range part {
				if !validPoint(p) {
					continue
				}
				endpoint := tGC.Apply(p.Position)
				key := voxel.GlobalVoxelIndexFromPosition(endpoint, m.cfg.VoxelSize)
				acc, ok := shard[key]
				if !ok {
					acc = &binAccum{}
					shard[key] = acc
				}
				acc.sumX += endpoint.X
				acc.sumY += endpoint.Y
				acc.sumZ += endpoint.Z
				acc.count++
				if p.HasColor {
					acc.sumR += float64(p.Color[0])
					acc.sumG += float64(p.Color[1])
					acc.sumB += float64(p.Color[2])
					acc.colorCount++
				}
			}
			shards[i] = shard
		}()
	}
	wg.Wait()

	// Phase 2: reduce shards into one bin map.
	merged := make(map[voxel.GlobalVoxelIndex]*binAccum)
	for _, shard := range shards {
		for key, acc := range shard {
			dst, ok := merged[key]
			if !ok {
				merged[key] = acc
				continue
			}
			dst.sumX += acc.sumX
			dst.sumY += acc.sumY
			dst.sumZ += acc.sumZ
			dst.sumR += acc.sumR
			dst.sumG += acc.sumG
			dst.sumB += acc.sumB
			dst.count += acc.count
			dst.colorCount += acc.colorCount
		}
	}

	// Phase 3: cast one ray per bin, bins processed in parallel (order
	// across bins is unspecified, per spec.md §4.D).
	keys := make([]voxel.GlobalVoxelIndex, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	binParts := partitionKeys(keys, m.cfg.Threads)

	var wg2 sync.WaitGroup
	for _, part := range binParts {
		part := part
		wg2.Add(1)
		go func() {
			defer wg2.Done()
			for _, key := range part {
				if ctx.Err() != nil {
					return
				}
				acc := merged[key]
				centroid := r3.Vec{
					X: acc.sumX / float64(acc.count),
					Y: acc.sumY / float64(acc.count),
					Z: acc.sumZ / float64(acc.count),
				}
				var color [3]uint8
				hasColor := acc.colorCount > 0
				if hasColor {
					color = [3]uint8{
						clampByte(acc.sumR / float64(acc.colorCount)),
						clampByte(acc.sumG / float64(acc.colorCount)),
						clampByte(acc.sumB / float64(acc.colorCount)),
					}
				}
				m.applyObservation(layer, origin, centroid, color, hasColor, float64(acc.count), sgn, isFreespace)
			}
		}()
	}
	wg2.Wait()
}

func clampByte(f float64) uint8 {
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f + 0.5)
}

func partitionKeys(keys []voxel.GlobalVoxelIndex, n int) [][]voxel.GlobalVoxelIndex {
	if n < 1 {
		n = 1
	}
	if n > len(keys) {
		n = len(keys)
	}
	if n == 0 {
		return nil
	}
	out := make([][]voxel.GlobalVoxelIndex, n)
	chunk := (len(keys) + n - 1) / n
	for i := 0; i < n; i++ {
		start := i * chunk
		if start >= len(keys) {
			continue
		}
		end := start + chunk
		if end > len(keys) {
			end = len(keys)
		}
		out[i] = keys[start:end]
	}
	return out
}
