package posegraph

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// ResidualKind selects which constraint family EvaluateResiduals
// reports on (spec.md §4.H's evaluate_residuals(kind)).
type ResidualKind int

const (
	ResidualAll ResidualKind = iota
	ResidualAbsolute
	ResidualRelative
	ResidualRegistration
)

func (g *PoseGraph) poseTransform(id int64) geom.Transform {
	p := g.nodes[id].pose
	return geom.FromYaw(p[0], p[1], p[2], p[3])
}

// delta4 reduces a transform's log to its 4-DoF analogue: the
// translation plus the wrapped yaw, the same projection
// Transform.Pose4 performs, since every transform this package builds
// is already gravity-aligned (roll = pitch = 0).
func delta4(t geom.Transform) [4]float64 {
	p := t.Pose4()
	p[3] = geom.WrapAngle(p[3])
	return p
}

func appendWeighted4(out []float64, delta [4]float64, w Weights4) []float64 {
	for i := 0; i < 4; i++ {
		out = append(out, delta[i]*math.Sqrt(w[i]))
	}
	return out
}

func (g *PoseGraph) absoluteResiduals(out []float64, cs []AbsolutePoseConstraint) []float64 {
	for _, c := range cs {
		node := g.poseTransform(c.Node)
		delta := delta4(c.Measured.Inverse().Compose(node))
		out = appendWeighted4(out, delta, c.Weight)
	}
	return out
}

func (g *PoseGraph) relativeResiduals(out []float64, cs []RelativePoseConstraint) []float64 {
	for _, c := range cs {
		ta := g.poseTransform(c.A)
		tb := g.poseTransform(c.B)
		rel := ta.Inverse().Compose(tb)
		delta := delta4(c.Measured.Inverse().Compose(rel))
		out = appendWeighted4(out, delta, c.Weight)
	}
	return out
}

func (g *PoseGraph) registrationResiduals(out []float64, cs []RegistrationConstraint) []float64 {
	if g.lookup == nil {
		return out
	}
	for _, c := range cs {
		ta := g.poseTransform(c.SubmapA)
		tb := g.poseTransform(c.SubmapB)
		tbInv := tb.Inverse()
		layer, ok := g.lookup.SubmapLayer(c.SubmapB)
		for _, p := range c.Points {
			if !ok {
				out = append(out, 0)
				continue
			}
			world := ta.Apply(p.Position)
			local := tbInv.Apply(world)
			dist, found := sampleDistance(layer, local)
			if !found {
				out = append(out, 0)
				continue
			}
			out = append(out, dist*p.Weight)
		}
	}
	return out
}

// sampleDistance looks up the voxel containing p and returns its
// signed distance. This is a nearest-voxel sample, not a trilinear
// interpolation: a documented simplification (see DESIGN.md) of the
// "interpolated TSDF-of-B distance" spec.md §4.H describes.
func sampleDistance(layer *voxel.Layer, p r3.Vec) (float64, bool) {
	gv := voxel.GlobalVoxelIndexFromPosition(p, layer.VoxelSize)
	blockIdx, linear := layer.Locate(gv)
	blk, ok := layer.Get(blockIdx)
	if !ok {
		return 0, false
	}
	v := blk.Voxel(linear)
	if v.Unobserved() {
		return 0, false
	}
	return float64(v.Distance), true
}

// residual builds the full weighted residual vector for the
// constraint collections g.active selected, after syncing free node
// poses to x (see solve.go's Initialize/applyX).
func (g *PoseGraph) residual(x []float64) []float64 {
	g.applyX(x)
	var out []float64
	out = g.absoluteResiduals(out, g.active.absolute)
	out = g.relativeResiduals(out, g.active.relative)
	out = g.registrationResiduals(out, g.active.registration)
	out = g.registrationResiduals(out, g.active.forceRegistration)
	return out
}

// EvaluateResiduals returns the current residual vector restricted to
// one constraint family, without mutating node poses (spec.md §4.H's
// evaluate_residuals(kind)). Initialize must have run first.
func (g *PoseGraph) EvaluateResiduals(kind ResidualKind) []float64 {
	var out []float64
	switch kind {
	case ResidualAbsolute:
		out = g.absoluteResiduals(out, g.active.absolute)
	case ResidualRelative:
		out = g.relativeResiduals(out, g.active.relative)
	case ResidualRegistration:
		out = g.registrationResiduals(out, g.active.registration)
		out = g.registrationResiduals(out, g.active.forceRegistration)
	default:
		out = g.absoluteResiduals(out, g.active.absolute)
		out = g.relativeResiduals(out, g.active.relative)
		out = g.registrationResiduals(out, g.active.registration)
		out = g.registrationResiduals(out, g.active.forceRegistration)
	}
	return out
}
