package integrator

import (
	"context"
	"sync"

	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// simpleIntegrator casts a ray and updates every voxel on it serially
// for each point, with no coalescing: bounded memory, slowest of the
// three strategies (spec.md §4.D).
type simpleIntegrator struct {
	base
}

func (s *simpleIntegrator) Integrate(ctx context.Context, layer *voxel.Layer, tGC geom.Transform, points []Point, isFreespace, deintegrate bool) {
	origin := tGC.Translation
	sgn := sign(deintegrate)

	var wg sync.WaitGroup
	for _, part := range partition(points, s.cfg.Threads) {
		part := part
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, p := range part {
				if ctx.Err() != nil {
					return
				}
				if !validPoint(p) {
					continue
				}
				endpoint := tGC.Apply(p.Position)
				s.applyObservation(layer, origin, endpoint, p.Color, p.HasColor, 1, sgn, isFreespace)
			}
		}()
	}
	wg.Wait()
}
