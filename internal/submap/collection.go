package submap

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/integrator"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// MeshEvictor lets Collection clear a mesh layer's tiles for blocks
// pruned after a submap closes, mirroring internal/pipeline's
// MeshEvictor seam (kept as a separate, identically-shaped interface
// per package so neither component imports the other -- spec.md §9's
// cyclic-reference-risk note applies here too).
type MeshEvictor interface {
	EvictBlocks(indices []voxel.BlockIndex)
}

// pendingObservation is spec.md §3's DeintegrationPacket as seen by the
// submap collection: a retained transform/points pair to deintegrate
// from the current submap's TSDF when it closes. Points may be empty;
// per spec.md §3, "in submap mode, the point-cloud and color
// references may be empty sentinels (used only to record the
// trajectory)" -- the open question of whether this is intentional is
// resolved here by making empty-points entries a harmless no-op
// deintegration rather than a special case (see DESIGN.md).
type pendingObservation struct {
	Transform geom.Transform
	Points    []integrator.Point
}

// Config is the submap lifecycle's tunable surface (spec.md §6's
// submap_interval plus the voxel geometry each new submap is built
// with).
type Config struct {
	SubmapInterval time.Duration // 0 disables fixed-interval rotation
	VoxelSize      float64
	VoxelsPerSide  int
	PruneEps       float32 // defaults to voxel.WMaxEpsilon if zero
}

// Collection owns the current (unfinished) submap and the ordered
// list of finished submaps, and drives the fixed-interval rotation of
// spec.md §4.F. All methods serialize through mu, matching spec.md
// §5's "the pose graph [and submap collection] is not thread-safe:
// callers serialize access."
type Collection struct {
	mu sync.Mutex

	cfg     Config
	nextID  int64
	current *Submap
	done    []*Submap
	pending []pendingObservation
	mesh    MeshEvictor
}

// New creates a collection with one open submap starting at start,
// with originAtStart as its gravity-aligned origin pose.
func New(cfg Config, start time.Time, originAtStart geom.Transform, mesh MeshEvictor) *Collection {
	c := &Collection{cfg: cfg, mesh: mesh}
	c.current = newSubmap(c.nextID, originAtStart, start, cfg.VoxelSize, cfg.VoxelsPerSide)
	c.nextID++
	return c
}

// Current returns the open submap.
func (c *Collection) Current() *Submap {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Finished returns a snapshot of the finished submaps, oldest first.
func (c *Collection) Finished() []*Submap {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Submap, len(c.done))
	copy(out, c.done)
	return out
}

// RecordObservation appends a pose sample to the current submap's
// trajectory and queues the (transform, points) pair for deintegration
// at the next rotation (spec.md §4.F step 3). Call once per message
// the pipeline processes.
func (c *Collection) RecordObservation(t time.Time, tGC geom.Transform, points []integrator.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.RecordPose(t, tGC)
	c.pending = append(c.pending, pendingObservation{Transform: tGC, Points: points})
}

// MaybeRotate checks the fixed-interval timer and, if due, finishes
// the current submap and opens a new one with origin bodyPoseAtNow.
// Returns the just-finished submap, or nil if no rotation occurred.
func (c *Collection) MaybeRotate(ctx context.Context, now time.Time, bodyPoseAtNow geom.Transform, integ integrator.Integrator) *Submap {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.SubmapInterval <= 0 {
		return nil
	}
	if now.Sub(c.current.StartTime) < c.cfg.SubmapInterval {
		return nil
	}

	finishing := c.current

	// Step 3: flush the deintegration queue against the finished submap.
	for _, p := range c.pending {
		integ.Integrate(ctx, finishing.Layer, p.Transform, p.Points, false, true)
	}
	c.pending = c.pending[:0]

	// Step 1: finish, populating the caches.
	finishing.Finish(now)

	// Pruning: remove fully-deintegrated blocks among those the flush
	// just touched, clearing the corresponding mesh tile.
	eps := c.cfg.PruneEps
	if eps == 0 {
		eps = voxel.WMaxEpsilon
	}
	candidates := finishing.Layer.IterateUpdated(voxel.FlagMap)
	pruned := finishing.Layer.PruneFullyDeintegrated(candidates, eps)
	if len(pruned) > 0 && c.mesh != nil {
		c.mesh.EvictBlocks(pruned)
	}

	c.done = append(c.done, finishing)

	// Step 2: open the next submap.
	c.current = newSubmap(c.nextID, bodyPoseAtNow, now, c.cfg.VoxelSize, c.cfg.VoxelsPerSide)
	c.nextID++

	return finishing
}
