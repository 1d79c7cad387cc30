package pipeline

import (
	"context"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/integrator"
	"github.com/banshee-data/voxgraph-go/internal/monitoring"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// kMaxQueueSize bounds the admission queue; beyond it the oldest
// message is dropped with a throttled warning (spec.md §4.E).
const kMaxQueueSize = 10

// PointRecord is one incoming measurement: position plus an optional
// color carried from the wire message.
type PointRecord struct {
	X, Y, Z  float64
	Color    [3]uint8
	HasColor bool
}

// Message is a timestamped point cloud as received from the
// transport layer, the unit spec.md §4.E's insert(msg) operates on.
type Message struct {
	Timestamp   time.Time
	Points      []PointRecord
	IsFreespace bool
}

// DeintegrationPacket is a retained observation the sliding window can
// later apply with an inverted weight sign (spec.md §3, §4.E).
type DeintegrationPacket struct {
	Transform   geom.Transform
	Points      []integrator.Point
	IsFreespace bool
}

// MeshEvictor is the narrow seam the mesh layer (component G) plugs
// into so the pipeline can evict distant blocks from both the TSDF
// layer and the mesh in the same step (spec.md §4.E step 5). Nil is a
// valid value: no mesh is wired.
type MeshEvictor interface {
	EvictBlocks(indices []voxel.BlockIndex)
}

// ObservationRecorder is the narrow seam the submap collection
// (component F) plugs into so every accepted message also extends the
// current submap's pose history and queues itself for the §4.F step 3
// deintegration flush on rotation. internal/submap.Collection
// implements this directly. Nil is a valid value: no submap lifecycle
// is wired, e.g. in tests exercising the pipeline alone.
type ObservationRecorder interface {
	RecordObservation(t time.Time, tGC geom.Transform, points []integrator.Point)
}

// Config is the subset of internal/config.MapperConfig the pipeline
// consumes directly.
type Config struct {
	MinTimeBetweenMsgs     time.Duration
	MaxBlockDistanceFromBody float64
	DeintegrationWindow    int
	EnableICP              bool
	AccumulateICPCorrections bool
	ICPAllowRollPitch      bool
}

// Pipeline is component E: admission, transform resolution, ICP
// refinement, integration, the deintegration sliding window, and
// distant-block eviction, all serialized behind one mutex the way
// spec.md §5 requires ("the message handler" and the periodic timers
// of §9 share one critical section).
type Pipeline struct {
	mu sync.Mutex

	layer      *voxel.Layer
	integrator integrator.Integrator
	oracle     TransformOracle
	mesh       MeshEvictor
	recorder   ObservationRecorder
	icp        *icpAccumulator

	cfg Config

	paused       bool
	lastAccepted time.Time
	haveAccepted bool

	queue        []Message
	deintegrate  []DeintegrationPacket
	lastDropWarn time.Time

	NeedsPruning bool
}

// New builds a Pipeline. hook may be nil; if cfg.EnableICP is true and
// hook is nil, refinement is silently skipped (equivalent to ICP being
// disabled) rather than panicking, since a missing hook is a wiring
// choice, not an invariant violation. recorder may also be nil, in
// which case accepted messages are integrated but never extend a
// submap's trajectory or queue for the rotation-time deintegration
// flush.
func New(layer *voxel.Layer, integ integrator.Integrator, oracle TransformOracle, mesh MeshEvictor, recorder ObservationRecorder, hook ICPHook, cfg Config) *Pipeline {
	p := &Pipeline{
		layer:      layer,
		integrator: integ,
		oracle:     oracle,
		mesh:       mesh,
		recorder:   recorder,
		cfg:        cfg,
	}
	if cfg.EnableICP && hook != nil {
		p.icp = newICPAccumulator(hook, cfg.AccumulateICPCorrections, cfg.ICPAllowRollPitch)
	}
	return p
}

// SetPaused toggles the globally-paused mapping state (the
// toggle_mapping service operation of spec.md §6).
func (p *Pipeline) SetPaused(paused bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = paused
}

// Paused reports the current pause state.
func (p *Pipeline) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// SetLayer redirects subsequent integration at a new TSDF layer,
// without otherwise disturbing queued messages or the deintegration
// window. The composition root calls this after a submap rotation
// (spec.md §4.F: "subsequent integrations target its layer"), since a
// Pipeline is built once per process but a submap's layer is not.
func (p *Pipeline) SetLayer(layer *voxel.Layer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.layer = layer
}

// Insert is insert(msg) from spec.md §4.E: admission check, throttle,
// enqueue, drain.
func (p *Pipeline) Insert(ctx context.Context, msg Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		return
	}

	if p.haveAccepted && msg.Timestamp.Sub(p.lastAccepted) < p.cfg.MinTimeBetweenMsgs {
		return
	}
	p.lastAccepted = msg.Timestamp
	p.haveAccepted = true

	p.queue = append(p.queue, msg)
	p.dropOverflowLocked()
	p.drainLocked(ctx)
}

// dropOverflowLocked trims the queue to kMaxQueueSize, oldest first,
// per spec.md §4.E / §7's ResourceExhaustion kind.
func (p *Pipeline) dropOverflowLocked() {
	if len(p.queue) <= kMaxQueueSize {
		return
	}
	drop := len(p.queue) - kMaxQueueSize
	if time.Since(p.lastDropWarn) > time.Second {
		monitoring.Logf("pipeline: queue overflow, dropping %d oldest message(s)", drop)
		p.lastDropWarn = time.Now()
	}
	p.queue = p.queue[drop:]
}

// drainLocked attempts to resolve and process messages from the head
// of the queue, stopping at the first one whose transform is not yet
// available (spec.md §4.E step 4).
func (p *Pipeline) drainLocked(ctx context.Context) {
	for len(p.queue) > 0 {
		msg := p.queue[0]
		tGC, ok := p.oracle.Resolve(msg.Timestamp)
		if !ok {
			return
		}
		p.queue = p.queue[1:]
		p.process(ctx, msg, tGC)
	}
}

// process converts, optionally refines, integrates, manages the
// deintegration window, and evicts distant blocks (spec.md §4.E step 5).
func (p *Pipeline) process(ctx context.Context, msg Message, tGC geom.Transform) {
	points := toIntegratorPoints(msg.Points)
	if len(points) == 0 {
		return
	}

	if p.icp != nil {
		tGC = p.icp.apply(p.layer, points, tGC)
	}

	p.integrator.Integrate(ctx, p.layer, tGC, points, msg.IsFreespace, false)

	if p.recorder != nil {
		p.recorder.RecordObservation(msg.Timestamp, tGC, points)
	}

	if p.cfg.DeintegrationWindow > 0 {
		p.deintegrate = append(p.deintegrate, DeintegrationPacket{Transform: tGC, Points: points, IsFreespace: msg.IsFreespace})
		for len(p.deintegrate) > p.cfg.DeintegrationWindow {
			oldest := p.deintegrate[0]
			p.deintegrate = p.deintegrate[1:]
			p.integrator.Integrate(ctx, p.layer, oldest.Transform, oldest.Points, oldest.IsFreespace, true)
			p.NeedsPruning = true
		}
	}

	if p.cfg.MaxBlockDistanceFromBody > 0 {
		removed := p.layer.RemoveDistant(tGC.Translation, p.cfg.MaxBlockDistanceFromBody)
		if len(removed) > 0 && p.mesh != nil {
			p.mesh.EvictBlocks(removed)
		}
	}
}

// toIntegratorPoints drops malformed records (non-finite coordinates,
// spec.md §7's InputInvalid kind) silently rather than rejecting the
// whole message.
func toIntegratorPoints(records []PointRecord) []integrator.Point {
	out := make([]integrator.Point, 0, len(records))
	for _, r := range records {
		if !finite(r.X) || !finite(r.Y) || !finite(r.Z) {
			continue
		}
		out = append(out, integrator.Point{
			Position: r3.Vec{X: r.X, Y: r.Y, Z: r.Z},
			Color:    r.Color,
			HasColor: r.HasColor,
		})
	}
	return out
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
