package posegraph

import (
	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// NodeKind distinguishes a submap node (normally free) from a
// reference-frame node (normally held constant, used to anchor the
// graph to a fixed world frame), matching pose_graph.h's two node
// collections.
type NodeKind int

const (
	SubmapNode NodeKind = iota
	ReferenceFrameNode
)

type node struct {
	kind     NodeKind
	pose     [4]float64 // x, y, z, yaw
	constant bool
}

// PoseGraph is the 4-DoF pose graph of spec.md §4.H: it is not
// thread-safe, callers serialize access the same way
// internal/pipeline and internal/submap do with their own mutexes.
type PoseGraph struct {
	nodes  map[int64]*node
	order  []int64 // insertion order, gives a stable parameter layout
	lookup TSDFLookup

	absolute          []AbsolutePoseConstraint
	relative          []RelativePoseConstraint
	registration      []RegistrationConstraint
	forceRegistration []RegistrationConstraint

	// built by Initialize; consumed by Optimize/EvaluateResiduals.
	paramIndex map[int64]int
	params     []float64
	active     constraintSet
}

// TSDFLookup resolves a submap's TSDF layer by node id for registration
// constraints (spec.md §4.H's "interpolated TSDF-of-B distance"). A
// duplicated-interface shape, like internal/pipeline.MeshEvictor and
// internal/submap.MeshEvictor, so this package never imports
// internal/submap.
type TSDFLookup interface {
	SubmapLayer(id int64) (*voxel.Layer, bool)
}

// New returns an empty pose graph backed by lookup for registration
// residual evaluation. lookup may be nil if no registration constraint
// will ever be added.
func New(lookup TSDFLookup) *PoseGraph {
	return &PoseGraph{
		nodes:  make(map[int64]*node),
		lookup: lookup,
	}
}

// AddSubmapNode adds a free submap node initialized at initial. It is a
// no-op if the id already exists.
func (g *PoseGraph) AddSubmapNode(id int64, initial geom.Transform) {
	g.addNode(id, SubmapNode, initial, false)
}

// AddReferenceFrameNode adds a reference-frame node anchoring the graph
// at pose; reference frame nodes default to constant since their role
// is to fix the world frame.
func (g *PoseGraph) AddReferenceFrameNode(id int64, pose geom.Transform) {
	g.addNode(id, ReferenceFrameNode, pose, true)
}

func (g *PoseGraph) addNode(id int64, kind NodeKind, pose geom.Transform, constant bool) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{kind: kind, pose: pose.Pose4(), constant: constant}
	g.order = append(g.order, id)
}

// HasNode reports whether id names any node, submap or reference frame.
func (g *PoseGraph) HasNode(id int64) bool {
	_, ok := g.nodes[id]
	return ok
}

// SetSubmapConstant toggles whether a submap node participates in the
// optimization, matching pose_graph.h's setSubmapNodeConstant. It
// returns false for an unknown id rather than panicking.
func (g *PoseGraph) SetSubmapConstant(id int64, constant bool) bool {
	n, ok := g.nodes[id]
	if !ok {
		return false
	}
	n.constant = constant
	return true
}

// NodePose returns the current (possibly optimized) pose of node id.
func (g *PoseGraph) NodePose(id int64) (geom.Transform, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return geom.Transform{}, false
	}
	p := n.pose
	return geom.FromYaw(p[0], p[1], p[2], p[3]), true
}

// NodeRecord is a flattened view of one node, used by internal/storage
// to persist and restore a graph without that package reaching into
// PoseGraph's unexported fields.
type NodeRecord struct {
	ID       int64
	Kind     NodeKind
	Constant bool
	Pose     geom.Transform
}

// Nodes returns every node in insertion order.
func (g *PoseGraph) Nodes() []NodeRecord {
	out := make([]NodeRecord, 0, len(g.order))
	for _, id := range g.order {
		n := g.nodes[id]
		p := n.pose
		out = append(out, NodeRecord{
			ID:       id,
			Kind:     n.kind,
			Constant: n.constant,
			Pose:     geom.FromYaw(p[0], p[1], p[2], p[3]),
		})
	}
	return out
}

// Constraints returns the four constraint collections verbatim, for
// persistence by internal/storage.
func (g *PoseGraph) Constraints() (absolute []AbsolutePoseConstraint, relative []RelativePoseConstraint, registration []RegistrationConstraint, forceRegistration []RegistrationConstraint) {
	return g.absolute, g.relative, g.registration, g.forceRegistration
}
