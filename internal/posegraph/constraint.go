package posegraph

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/geom"
)

// Weights4 is a diagonal information vector for a 4-DoF residual
// (x, y, z, yaw): a simplification of a full 4x4 information matrix to
// its diagonal, which is what the per-constraint Sigma reduces to once
// translation and yaw errors are treated as independent -- the
// off-diagonal coupling a full matrix would carry is dropped. The
// overall system Jacobian, normal equations, and covariance extraction
// still use full gonum.org/v1/gonum/mat matrices (see solve.go).
type Weights4 [4]float64

// UnitWeights4 is the identity information vector.
func UnitWeights4() Weights4 { return Weights4{1, 1, 1, 1} }

// AbsolutePoseConstraint anchors a single node to a measured pose:
// residual = log(Measured^-1 * T_node), spec.md §4.H.
type AbsolutePoseConstraint struct {
	Node     int64
	Measured geom.Transform
	Weight   Weights4
}

// RelativePoseConstraint ties two nodes' relative pose to a
// measurement: residual = log(Measured^-1 * (T_a^-1 * T_b)),
// spec.md §4.H.
type RelativePoseConstraint struct {
	A, B     int64
	Measured geom.Transform
	Weight   Weights4
}

// ReferencePoint is one sample of submap A's registration point cloud
// (internal/submap.Submap.RegistrationPoints), in A's local frame.
type ReferencePoint struct {
	Position r3.Vec
	Weight   float64
}

// RegistrationConstraint ties two overlapping submaps' TSDFs together:
// residual_i = TSDF_B(T_b^-1 * T_a * p_i) * weight_i for each reference
// point p_i of submap A, spec.md §4.H.
type RegistrationConstraint struct {
	SubmapA, SubmapB int64
	Points           []ReferencePoint
}

// AddAbsolutePoseConstraint validates the node reference and appends
// the constraint; an unknown node id is rejected at add time
// (spec.md §7's ConstraintMalformed kind), not deferred to optimize.
func (g *PoseGraph) AddAbsolutePoseConstraint(c AbsolutePoseConstraint) error {
	if !g.HasNode(c.Node) {
		return fmt.Errorf("posegraph: malformed absolute pose constraint: unknown node %d", c.Node)
	}
	if c.Weight == (Weights4{}) {
		c.Weight = UnitWeights4()
	}
	g.absolute = append(g.absolute, c)
	return nil
}

// AddRelativePoseConstraint validates both node references.
func (g *PoseGraph) AddRelativePoseConstraint(c RelativePoseConstraint) error {
	if !g.HasNode(c.A) {
		return fmt.Errorf("posegraph: malformed relative pose constraint: unknown node %d", c.A)
	}
	if !g.HasNode(c.B) {
		return fmt.Errorf("posegraph: malformed relative pose constraint: unknown node %d", c.B)
	}
	if c.Weight == (Weights4{}) {
		c.Weight = UnitWeights4()
	}
	g.relative = append(g.relative, c)
	return nil
}

// AddRegistrationConstraint validates both submap references. Points
// with zero weight are dropped; an empty result after filtering is
// still accepted (it simply contributes no residuals).
func (g *PoseGraph) AddRegistrationConstraint(c RegistrationConstraint) error {
	if !g.HasNode(c.SubmapA) {
		return fmt.Errorf("posegraph: malformed registration constraint: unknown submap %d", c.SubmapA)
	}
	if !g.HasNode(c.SubmapB) {
		return fmt.Errorf("posegraph: malformed registration constraint: unknown submap %d", c.SubmapB)
	}
	kept := make([]ReferencePoint, 0, len(c.Points))
	for _, p := range c.Points {
		if p.Weight != 0 {
			kept = append(kept, p)
		}
	}
	c.Points = kept
	g.registration = append(g.registration, c)
	return nil
}

// AddForceRegistrationConstraint is the same shape as
// AddRegistrationConstraint but kept in a separate collection that
// Optimize(excludeRegistration=true, ...) still evaluates, matching
// pose_graph.h's addForceRegistrationConstraint: a registration edge an
// operator wants honored even during a fast relative/absolute-only
// pass.
func (g *PoseGraph) AddForceRegistrationConstraint(c RegistrationConstraint) error {
	if !g.HasNode(c.SubmapA) {
		return fmt.Errorf("posegraph: malformed registration constraint: unknown submap %d", c.SubmapA)
	}
	if !g.HasNode(c.SubmapB) {
		return fmt.Errorf("posegraph: malformed registration constraint: unknown submap %d", c.SubmapB)
	}
	g.forceRegistration = append(g.forceRegistration, c)
	return nil
}

// ResetRegistrationConstraints drops every registration constraint,
// e.g. before recomputing them from refreshed submap overlaps
// (pose_graph.h's resetRegistrationConstraints).
func (g *PoseGraph) ResetRegistrationConstraints() { g.registration = nil }

// ResetRelativePoseConstraints drops every relative-pose constraint
// (pose_graph.h's resetRelativePoseConstraints).
func (g *PoseGraph) ResetRelativePoseConstraints() { g.relative = nil }

// ResetForceRegistrationConstraints drops every forced registration
// constraint (pose_graph.h's resetForceRegistrationConstraints).
func (g *PoseGraph) ResetForceRegistrationConstraints() { g.forceRegistration = nil }
