// Package geom provides the rigid-transform arithmetic shared by the ray
// caster, integrators, submap lifecycle, and pose graph: sensor poses
// T_G_C (unconstrained rotation) and gravity-aligned submap origin poses
// (yaw-only rotation), grounded on internal/lidar/transform.go's
// SphericalToCartesian/ApplyPose style of plain, dependency-light pose
// math, generalized from a flattened [16]float64 matrix onto a 3x3
// rotation plus gonum's r3.Vec translation.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Transform is a rigid transform: rotate then translate. Rotation is a
// row-major 3x3 matrix; Row0/Row1/Row2 are its rows as vectors so Apply
// reads as three dot products, mirroring the teacher's flattened-matrix
// ApplyPose helper.
type Transform struct {
	Row0, Row1, Row2 r3.Vec
	Translation      r3.Vec
}

// Identity is the identity transform.
func Identity() Transform {
	return Transform{
		Row0:        r3.Vec{X: 1},
		Row1:        r3.Vec{Y: 1},
		Row2:        r3.Vec{Z: 1},
		Translation: r3.Vec{},
	}
}

// FromYaw builds a gravity-aligned transform (roll = pitch = 0) at the
// given translation and yaw (radians), the pose representation
// spec.md's data model mandates for submap origins and pose-graph nodes.
func FromYaw(x, y, z, yaw float64) Transform {
	c, s := math.Cos(yaw), math.Sin(yaw)
	return Transform{
		Row0:        r3.Vec{X: c, Y: -s, Z: 0},
		Row1:        r3.Vec{X: s, Y: c, Z: 0},
		Row2:        r3.Vec{X: 0, Y: 0, Z: 1},
		Translation: r3.Vec{X: x, Y: y, Z: z},
	}
}

// Apply maps a point from the transform's local frame into its parent
// frame: p_parent = R*p_local + t.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	return r3.Add(r3.Vec{
		X: r3.Dot(t.Row0, p),
		Y: r3.Dot(t.Row1, p),
		Z: r3.Dot(t.Row2, p),
	}, t.Translation)
}

// ApplyRotationOnly rotates p without translating it.
func (t Transform) ApplyRotationOnly(p r3.Vec) r3.Vec {
	return r3.Vec{X: r3.Dot(t.Row0, p), Y: r3.Dot(t.Row1, p), Z: r3.Dot(t.Row2, p)}
}

// Inverse returns the transform such that t.Inverse().Apply(t.Apply(p)) == p,
// exploiting R being orthogonal (its inverse is its transpose).
func (t Transform) Inverse() Transform {
	rt := Transform{
		Row0: r3.Vec{X: t.Row0.X, Y: t.Row1.X, Z: t.Row2.X},
		Row1: r3.Vec{X: t.Row0.Y, Y: t.Row1.Y, Z: t.Row2.Y},
		Row2: r3.Vec{X: t.Row0.Z, Y: t.Row1.Z, Z: t.Row2.Z},
	}
	rt.Translation = r3.Scale(-1, rt.ApplyRotationOnly(t.Translation))
	return rt
}

// Compose returns the transform equivalent to applying t first, then u:
// u.Compose(t).Apply(p) == u.Apply(t.Apply(p)).
func (u Transform) Compose(t Transform) Transform {
	mulRow := func(row r3.Vec) r3.Vec {
		return r3.Vec{
			X: row.X*t.Row0.X + row.Y*t.Row1.X + row.Z*t.Row2.X,
			Y: row.X*t.Row0.Y + row.Y*t.Row1.Y + row.Z*t.Row2.Y,
			Z: row.X*t.Row0.Z + row.Y*t.Row1.Z + row.Z*t.Row2.Z,
		}
	}
	return Transform{
		Row0:        mulRow(u.Row0),
		Row1:        mulRow(u.Row1),
		Row2:        mulRow(u.Row2),
		Translation: u.Apply(t.Translation),
	}
}

// Yaw extracts the rotation's yaw angle about +Z by rotating the local
// +X axis into the parent frame and taking its azimuth. For a pure
// gravity-aligned (roll=pitch=0) rotation this is exact; for a general
// rotation it is the projection onto the yaw component, the same
// approximation spec.md §4.E's ICP hook uses when "zeroing roll and
// pitch components in its logarithm and re-exponentiating."
func (t Transform) Yaw() float64 {
	fwd := t.ApplyRotationOnly(r3.Vec{X: 1})
	return math.Atan2(fwd.Y, fwd.X)
}

// Pose4 projects t onto the 4-DoF (x, y, z, yaw) representation the
// pose graph optimizes over.
func (t Transform) Pose4() [4]float64 {
	return [4]float64{t.Translation.X, t.Translation.Y, t.Translation.Z, t.Yaw()}
}

// ProjectToYawOnly rebuilds t keeping its translation and yaw but
// zeroing roll and pitch, the re-projection spec.md §4.E's ICP hook
// contract performs on an accumulated correction when the ICP policy
// disallows roll/pitch refinement ("zeroing its roll and pitch
// components in its logarithm and re-exponentiating" -- for a
// yaw-parameterized transform this reduces to reconstructing from
// (translation, yaw) alone).
func ProjectToYawOnly(t Transform) Transform {
	return FromYaw(t.Translation.X, t.Translation.Y, t.Translation.Z, t.Yaw())
}

// WrapAngle normalizes an angle (radians) into (-pi, pi].
func WrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
