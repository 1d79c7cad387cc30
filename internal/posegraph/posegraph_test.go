package posegraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

type fakeLookup struct {
	layers map[int64]*voxel.Layer
}

func (f *fakeLookup) SubmapLayer(id int64) (*voxel.Layer, bool) {
	l, ok := f.layers[id]
	return l, ok
}

func TestAddSubmapNode_DuplicateIsNoOp(t *testing.T) {
	g := New(nil)
	g.AddSubmapNode(1, geom.Identity())
	g.AddSubmapNode(1, geom.FromYaw(5, 5, 5, 1))

	pose, ok := g.NodePose(1)
	require.True(t, ok)
	assert.Equal(t, geom.Identity().Pose4(), pose.Pose4())
}

func TestSetSubmapConstant_UnknownIDReturnsFalse(t *testing.T) {
	g := New(nil)
	assert.False(t, g.SetSubmapConstant(99, true))

	g.AddSubmapNode(1, geom.Identity())
	assert.True(t, g.SetSubmapConstant(1, true))
}

func TestAddConstraints_RejectUnknownNodes(t *testing.T) {
	g := New(nil)
	g.AddSubmapNode(1, geom.Identity())

	err := g.AddAbsolutePoseConstraint(AbsolutePoseConstraint{Node: 2, Measured: geom.Identity()})
	assert.Error(t, err)

	err = g.AddRelativePoseConstraint(RelativePoseConstraint{A: 1, B: 2, Measured: geom.Identity()})
	assert.Error(t, err)

	err = g.AddRegistrationConstraint(RegistrationConstraint{SubmapA: 1, SubmapB: 2})
	assert.Error(t, err)
}

func TestResetMethods_ClearCollections(t *testing.T) {
	g := New(nil)
	g.AddSubmapNode(1, geom.Identity())
	g.AddSubmapNode(2, geom.Identity())

	require.NoError(t, g.AddRelativePoseConstraint(RelativePoseConstraint{A: 1, B: 2, Measured: geom.Identity()}))
	require.NoError(t, g.AddRegistrationConstraint(RegistrationConstraint{SubmapA: 1, SubmapB: 2}))
	require.NoError(t, g.AddForceRegistrationConstraint(RegistrationConstraint{SubmapA: 1, SubmapB: 2}))

	g.ResetRelativePoseConstraints()
	g.ResetRegistrationConstraints()
	g.ResetForceRegistrationConstraints()

	assert.Empty(t, g.relative)
	assert.Empty(t, g.registration)
	assert.Empty(t, g.forceRegistration)
}

// TestOptimize_TwoSubmapConvergence is spec.md §8 scenario 5: an
// absolute-pose constraint anchors submap 0 at identity, a
// relative-pose constraint ties submap 1 to submap 0 by
// translate(1, 0, 0); after Optimize both nodes should settle within
// tol of that configuration even started from a perturbed guess.
func TestOptimize_TwoSubmapConvergence(t *testing.T) {
	g := New(nil)
	g.AddSubmapNode(0, geom.FromYaw(0.2, -0.1, 0.05, 0.05))
	g.AddSubmapNode(1, geom.FromYaw(0.7, 0.4, -0.2, 0.2))

	require.NoError(t, g.AddAbsolutePoseConstraint(AbsolutePoseConstraint{
		Node:     0,
		Measured: geom.Identity(),
	}))
	require.NoError(t, g.AddRelativePoseConstraint(RelativePoseConstraint{
		A:        0,
		B:        1,
		Measured: geom.FromYaw(1, 0, 0, 0),
	}))

	const tol = 1e-4
	summary := g.Optimize(true, tol)
	require.True(t, summary.Converged, "summary: %+v", summary)

	pose0, _ := g.NodePose(0)
	pose1, _ := g.NodePose(1)

	assertPose4Close(t, [4]float64{0, 0, 0, 0}, pose0.Pose4(), tol)
	assertPose4Close(t, [4]float64{1, 0, 0, 0}, pose1.Pose4(), tol)
}

func assertPose4Close(t *testing.T, want, got [4]float64, eps float64) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], eps, "component %d", i)
	}
}

func TestOptimize_NoFreeParameters(t *testing.T) {
	g := New(nil)
	g.AddReferenceFrameNode(1, geom.Identity())

	summary := g.Optimize(true, 1e-4)
	assert.True(t, summary.Converged)
	assert.Equal(t, 0, summary.Iterations)
}

func TestOptimize_RegistrationWithoutLookupFails(t *testing.T) {
	g := New(nil)
	g.AddSubmapNode(1, geom.Identity())
	g.AddSubmapNode(2, geom.Identity())
	require.NoError(t, g.AddRegistrationConstraint(RegistrationConstraint{SubmapA: 1, SubmapB: 2}))

	summary := g.Optimize(false, 1e-4)
	assert.False(t, summary.Converged)
	assert.NotEmpty(t, summary.TerminationReason)
}

func TestEvaluateResiduals_AbsoluteMatchesMeasuredGap(t *testing.T) {
	g := New(nil)
	g.AddSubmapNode(1, geom.FromYaw(1, 0, 0, 0))
	require.NoError(t, g.AddAbsolutePoseConstraint(AbsolutePoseConstraint{Node: 1, Measured: geom.Identity()}))
	require.NoError(t, g.Initialize(true))

	res := g.EvaluateResiduals(ResidualAbsolute)
	require.Len(t, res, 4)
	assert.InDelta(t, 1.0, res[0], 1e-9)
}

func TestEdgeCovarianceMap_AfterOptimize(t *testing.T) {
	g := New(nil)
	g.AddSubmapNode(0, geom.Identity())
	g.AddSubmapNode(1, geom.FromYaw(0.9, 0.1, 0, 0))
	require.NoError(t, g.AddAbsolutePoseConstraint(AbsolutePoseConstraint{Node: 0, Measured: geom.Identity()}))
	require.NoError(t, g.AddRelativePoseConstraint(RelativePoseConstraint{A: 0, B: 1, Measured: geom.FromYaw(1, 0, 0, 0)}))

	summary := g.Optimize(true, 1e-4)
	require.True(t, summary.Converged)

	cov := g.EdgeCovarianceMap()
	require.NotNil(t, cov)
	block, ok := cov[[2]int64{0, 1}]
	require.True(t, ok)
	r, c := block.Dims()
	assert.Equal(t, 8, r)
	assert.Equal(t, 8, c)
}

func TestRegistrationConstraint_UsesLookupDistance(t *testing.T) {
	voxelSize, s := 0.1, 4
	layerB := voxel.NewLayer(voxelSize, s)
	blk := layerB.AllocateOrGet(voxel.BlockIndex{0, 0, 0})
	blk.WithVoxel(0, func(v *voxel.Voxel) { *v = voxel.Voxel{Distance: 0.25, Weight: 1} })

	g := New(&fakeLookup{layers: map[int64]*voxel.Layer{2: layerB}})
	g.AddSubmapNode(1, geom.Identity())
	g.AddSubmapNode(2, geom.Identity())
	require.NoError(t, g.AddRegistrationConstraint(RegistrationConstraint{
		SubmapA: 1,
		SubmapB: 2,
		Points:  []ReferencePoint{{Position: geom.Identity().Translation, Weight: 2}},
	}))
	require.NoError(t, g.Initialize(false))

	res := g.EvaluateResiduals(ResidualRegistration)
	require.Len(t, res, 1)
	assert.InDelta(t, 0.5, res[0], 1e-9)
}
