package main

import (
	"context"
	"time"

	"github.com/banshee-data/voxgraph-go/internal/integrator"
	"github.com/banshee-data/voxgraph-go/internal/mesh"
	"github.com/banshee-data/voxgraph-go/internal/monitoring"
	"github.com/banshee-data/voxgraph-go/internal/pipeline"
	"github.com/banshee-data/voxgraph-go/internal/posegraph"
	"github.com/banshee-data/voxgraph-go/internal/submap"
)

// runSubmapRotation drives spec.md §4.F's fixed-interval rotation: once
// per tick it asks the collection whether the current submap's
// interval has elapsed and, if so, registers the just-finished submap
// with the pose graph, wires a relative-pose constraint against its
// predecessor (spec.md §4.H's submap-closure feed), and redirects p at
// the new current submap's layer so subsequent integration lands there.
func runSubmapRotation(ctx context.Context, interval time.Duration, collection *submap.Collection, graph *posegraph.PoseGraph, integ integrator.Integrator, oracle *latestPoseOracle, p *pipeline.Pipeline) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var previous *submap.Submap
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			bodyPose, _ := oracle.Resolve(now)
			finished := collection.MaybeRotate(ctx, now, bodyPose, integ)
			if finished == nil {
				continue
			}
			graph.AddSubmapNode(finished.ID, finished.Origin)
			if previous != nil {
				// Odometry-derived relative measurement between consecutive
				// submap origins (spec.md §4.H's "relative-pose" constraint
				// kind), the chained-origin prior before registration
				// constraints refine it.
				measured := previous.Origin.Inverse().Compose(finished.Origin)
				if err := graph.AddRelativePoseConstraint(posegraph.RelativePoseConstraint{
					A: previous.ID, B: finished.ID, Measured: measured,
				}); err != nil {
					monitoring.Logf("mapper: add relative constraint %d->%d: %v", previous.ID, finished.ID, err)
				}
			}
			previous = finished
			if newCurrent := collection.Current(); newCurrent != nil {
				p.SetLayer(newCurrent.Layer)
			}
			monitoring.Logf("mapper: submap %d finished, rotated in", finished.ID)
		}
	}
}

// runMeshRegeneration periodically re-triangulates the dirty blocks of
// the currently open submap (spec.md §4.G), feeding PublishMap.
func runMeshRegeneration(ctx context.Context, interval time.Duration, collection *submap.Collection, meshOut *mesh.Mesh) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			current := collection.Current()
			if current == nil {
				continue
			}
			meshOut.Generate(current.Layer, true, true)
		}
	}
}

// runGraphOptimization periodically re-solves the pose graph (spec.md
// §4.H), folding in any constraints submap rotation or an external
// registration feed has added since the last pass.
func runGraphOptimization(ctx context.Context, interval time.Duration, graph *posegraph.PoseGraph) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary := graph.Optimize(false, 1e-4)
			monitoring.Logf("mapper: pose graph optimize: %+v", summary)
		}
	}
}
