package voxel

// WMaxEpsilon guards the d_new division in Update against dividing by a
// near-zero w_new; spec.md §4.B names it epsilon.
const WMaxEpsilon = 1e-6

// Observation is a single incoming measurement to fold into a voxel:
// a signed distance already clamped to [-tau, tau] and a weight already
// produced by the integrator's weighting policy.
type Observation struct {
	Distance float32
	Weight   float32
	Color    [3]uint8
	HasColor bool
}

// Update applies spec.md's weighted-average voxel update rule to v,
// folding in obs, and returns the new voxel state. wMax caps the
// accumulated weight so the map stays adaptive to later observations.
//
//	w_new = min(w + w', W_max)
//	d_new = (d*w + d'*w') / max(w_new, eps)
//
// Color is updated by the identical weighted average. This is the only
// place the update rule is expressed; every integrator strategy and the
// deintegration path route through it.
func Update(v Voxel, obs Observation, wMax float32) Voxel {
	wNew := v.Weight + obs.Weight
	if wNew > wMax {
		wNew = wMax
	}
	if wNew < 0 {
		wNew = 0
	}

	denom := wNew
	if denom < WMaxEpsilon {
		denom = WMaxEpsilon
	}

	dNew := (v.Distance*v.Weight + obs.Distance*obs.Weight) / denom

	out := Voxel{Distance: dNew, Weight: wNew, Color: v.Color}
	if obs.HasColor {
		for i := range out.Color {
			cOld := float32(v.Color[i])
			cNew := float32(obs.Color[i])
			blended := (cOld*v.Weight + cNew*obs.Weight) / denom
			out.Color[i] = clampByte(blended)
		}
	}

	// A deintegration (obs.Weight < 0) that drives the accumulated
	// weight to (or past) zero resets the voxel to unobserved, per
	// spec.md §4.D: "if the clamp activates, the voxel is reset to
	// unobserved (0, 0)".
	if wNew <= 0 {
		return Voxel{}
	}

	return out
}

func clampByte(f float32) uint8 {
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f + 0.5)
}

// Deintegrate is Update with the weight contribution's sign inverted, the
// exact inverse spec.md §4.D requires of integrate/deintegrate pairs.
func Deintegrate(v Voxel, obs Observation, wMax float32) Voxel {
	obs.Weight = -obs.Weight
	return Update(v, obs, wMax)
}

// WeightingPolicy selects how an integrator turns a raw measurement
// (already truncation-clamped distance, range, and signed distance from
// the surface) into the weight folded into Observation. All three
// policies produce the same Update math; only the weight differs.
type WeightingPolicy interface {
	// Weight returns w' for a point at range z whose (already clamped)
	// signed distance to the surface is d.
	Weight(z, d, tau float64) float64
}

// ConstantWeight assigns w' = 1 after clamping (spec.md §4.B).
type ConstantWeight struct{}

func (ConstantWeight) Weight(z, d, tau float64) float64 { return 1 }

// LinearWeight assigns w' = 1/z^2 (spec.md §4.B).
type LinearWeight struct{}

func (LinearWeight) Weight(z, d, tau float64) float64 {
	if z <= 0 {
		return 0
	}
	return 1 / (z * z)
}

// QuadraticDropoffWeight reduces w' linearly to zero at d = -tau (the
// "quadratic+behind-surface dropoff" policy of spec.md §4.B): the
// dropoff itself is linear in d, applied on top of the quadratic
// 1/z^2 range falloff.
type QuadraticDropoffWeight struct{}

func (QuadraticDropoffWeight) Weight(z, d, tau float64) float64 {
	if z <= 0 || tau <= 0 {
		return 0
	}
	base := 1 / (z * z)
	if d >= 0 {
		return base
	}
	dropoff := 1 + d/tau // 1 at d=0, 0 at d=-tau
	if dropoff < 0 {
		dropoff = 0
	}
	return base * dropoff
}
