package pipeline

import (
	"github.com/banshee-data/voxgraph-go/internal/geom"
	"github.com/banshee-data/voxgraph-go/internal/integrator"
	"github.com/banshee-data/voxgraph-go/internal/voxel"
)

// ICPHook refines an initial pose estimate against the current TSDF,
// the contract of spec.md §4.E: refine(layer_snapshot, points_C,
// T_initial) -> (T_refined, n_successful_steps). The concrete
// registration algorithm is out of scope (spec.md's Non-goals); this
// interface is the seam a real ICP implementation plugs into.
type ICPHook interface {
	Refine(layer *voxel.Layer, points []integrator.Point, initial geom.Transform) (geom.Transform, int)
}

// AllowRollPitch controls whether icpAccumulator.apply's re-projection
// zeroes roll/pitch on the accumulated correction.
type AllowRollPitch bool

// icpAccumulator carries the ICP correction composition policy of
// spec.md §4.E: when accumulate is true the correction persists and
// composes with each new initial transform; when false it resets
// before every call. If the ICP policy disallows roll/pitch
// refinement, the accumulated correction is re-projected to yaw-only
// after every update.
type icpAccumulator struct {
	hook             ICPHook
	accumulate       bool
	allowRollPitch   bool
	correction       geom.Transform
}

func newICPAccumulator(hook ICPHook, accumulate bool, allowRollPitch bool) *icpAccumulator {
	return &icpAccumulator{hook: hook, accumulate: accumulate, allowRollPitch: allowRollPitch, correction: geom.Identity()}
}

// apply composes the accumulator's current correction onto initial,
// invokes the hook, folds the result back into the accumulator per the
// accumulate/allowRollPitch policy, and returns the refined transform.
func (a *icpAccumulator) apply(layer *voxel.Layer, points []integrator.Point, initial geom.Transform) geom.Transform {
	if !a.accumulate {
		a.correction = geom.Identity()
	}

	seed := a.correction.Compose(initial)
	refined, _ := a.hook.Refine(layer, points, seed)

	if a.accumulate {
		a.correction = refined.Compose(initial.Inverse())
		if !a.allowRollPitch {
			a.correction = geom.ProjectToYawOnly(a.correction)
		}
	}

	return refined
}
