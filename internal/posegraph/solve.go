package posegraph

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// constraintSet is the snapshot of constraint collections Initialize
// builds, so Optimize and EvaluateResiduals agree on what "active"
// means for the duration of one solve.
type constraintSet struct {
	absolute          []AbsolutePoseConstraint
	relative          []RelativePoseConstraint
	registration      []RegistrationConstraint
	forceRegistration []RegistrationConstraint
}

// Summary is the solver outcome spec.md §4.H's Failure clause
// describes: a non-convergent solve is recorded here, not returned as
// an error (spec.md §7's SolverNonConvergence kind is non-throwing).
type Summary struct {
	Converged         bool
	Iterations        int
	FinalCost         float64
	TerminationReason string
}

// Initialize is initialize(exclude_registration) from spec.md §4.H: it
// builds the flat optimization parameter vector over every non-constant
// node (in insertion order) and snapshots which constraint collections
// the following Optimize/EvaluateResiduals call will use.
func (g *PoseGraph) Initialize(excludeRegistration bool) error {
	g.paramIndex = make(map[int64]int)
	g.params = g.params[:0]
	idx := 0
	for _, id := range g.order {
		n := g.nodes[id]
		if n.constant {
			continue
		}
		g.paramIndex[id] = idx
		g.params = append(g.params, n.pose[0], n.pose[1], n.pose[2], n.pose[3])
		idx += 4
	}

	g.active = constraintSet{
		absolute:          g.absolute,
		relative:          g.relative,
		forceRegistration: g.forceRegistration,
	}
	if !excludeRegistration {
		g.active.registration = g.registration
	}

	if (len(g.active.registration) > 0 || len(g.active.forceRegistration) > 0) && g.lookup == nil {
		return fmt.Errorf("posegraph: registration constraints present but no TSDFLookup configured")
	}
	return nil
}

// applyX writes the flat parameter vector back into each free node's
// pose, the inverse of the packing Initialize performs.
func (g *PoseGraph) applyX(x []float64) {
	for id, i := range g.paramIndex {
		g.nodes[id].pose = [4]float64{x[i], x[i+1], x[i+2], x[i+3]}
	}
}

func (g *PoseGraph) currentX() []float64 {
	x := make([]float64, len(g.paramIndex)*4)
	for id, i := range g.paramIndex {
		p := g.nodes[id].pose
		x[i], x[i+1], x[i+2], x[i+3] = p[0], p[1], p[2], p[3]
	}
	return x
}

// jacobian is a forward-difference Jacobian of g.residual at x, given
// its already-computed value base. A numeric Jacobian rather than an
// analytic or auto-differentiated one: the residuals involve
// Transform.Compose/Inverse chains that would need a hand-derived
// derivative per constraint type, and spec.md §4.H does not mandate
// exact derivatives, only convergence within tol.
func (g *PoseGraph) jacobian(x, base []float64) *mat.Dense {
	const h = 1e-6
	m, n := len(base), len(x)
	J := mat.NewDense(m, n, nil)
	xh := make([]float64, n)
	for j := 0; j < n; j++ {
		copy(xh, x)
		xh[j] += h
		rh := g.residual(xh)
		for i := 0; i < m; i++ {
			J.Set(i, j, (rh[i]-base[i])/h)
		}
	}
	g.applyX(x) // residual(xh) left nodes synced to xh; restore x
	return J
}

func sumSquares(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x * x
	}
	return s
}

// Optimize is optimize(exclude_registration, tol) from spec.md §4.H: a
// Levenberg-Marquardt nonlinear least-squares solve over every free
// node's 4-DoF pose, built on gonum.org/v1/gonum/mat for the damped
// normal-equation solve (J^T J + lambda*diag(J^T J)) delta = -J^T r.
// It stops when the accepted step's norm falls below tol, or after a
// bounded number of iterations/retries; either way it returns a
// Summary rather than an error (non-throwing per spec.md §7).
func (g *PoseGraph) Optimize(excludeRegistration bool, tol float64) Summary {
	if err := g.Initialize(excludeRegistration); err != nil {
		return Summary{TerminationReason: err.Error()}
	}

	x := append([]float64{}, g.params...)
	n := len(x)
	r := g.residual(x)
	cost := 0.5 * sumSquares(r)

	if n == 0 {
		return Summary{Converged: true, FinalCost: cost, TerminationReason: "no free parameters"}
	}

	const maxIter = 100
	const maxRetries = 20
	lambda := 1e-3
	converged := false
	reason := "max iterations reached"
	iter := 0

	for ; iter < maxIter; iter++ {
		J := g.jacobian(x, r)
		var JtJ mat.Dense
		JtJ.Mul(J.T(), J)
		rMat := mat.NewDense(len(r), 1, append([]float64{}, r...))
		var Jtr mat.Dense
		Jtr.Mul(J.T(), rMat)

		accepted := false
		deltaNorm := math.Inf(1)

		for retry := 0; retry < maxRetries; retry++ {
			A := mat.DenseCopyOf(&JtJ)
			for i := 0; i < n; i++ {
				A.Set(i, i, A.At(i, i)+lambda*JtJ.At(i, i))
			}
			negJtr := mat.NewDense(n, 1, nil)
			negJtr.Scale(-1, &Jtr)

			var deltaMat mat.Dense
			if err := deltaMat.Solve(A, negJtr); err != nil {
				lambda *= 10
				continue
			}

			xNew := make([]float64, n)
			var dn float64
			for i := 0; i < n; i++ {
				d := deltaMat.At(i, 0)
				xNew[i] = x[i] + d
				dn += d * d
			}
			dn = math.Sqrt(dn)

			rNew := g.residual(xNew)
			newCost := 0.5 * sumSquares(rNew)
			if newCost < cost {
				x, r, cost = xNew, rNew, newCost
				deltaNorm = dn
				lambda /= 10
				accepted = true
				break
			}
			lambda *= 10
		}

		if !accepted {
			reason = "no improving step found"
			break
		}
		if deltaNorm < tol {
			converged = true
			reason = "parameter update below tolerance"
			iter++
			break
		}
	}

	g.applyX(x)
	return Summary{Converged: converged, Iterations: iter, FinalCost: cost, TerminationReason: reason}
}

// EdgeCovarianceMap is edge_covariance_map() from spec.md §4.H: the
// marginal covariance block for every node pair joined by a
// relative-pose constraint, plus the marginal covariance for every
// absolutely-constrained node against itself, extracted from the
// inverse of the current J^T J. Returns nil if Initialize has not run
// or J^T J is singular (spec.md §7's SolverNonConvergence kind:
// recorded by omission here, the caller already has Optimize's
// Summary for the hard failure signal).
func (g *PoseGraph) EdgeCovarianceMap() map[[2]int64]*mat.Dense {
	if len(g.paramIndex) == 0 {
		return nil
	}
	x := g.currentX()
	r := g.residual(x)
	J := g.jacobian(x, r)

	var JtJ mat.Dense
	JtJ.Mul(J.T(), J)
	var cov mat.Dense
	if err := cov.Inverse(&JtJ); err != nil {
		return nil
	}

	out := make(map[[2]int64]*mat.Dense)
	block := func(ia, ib int) *mat.Dense {
		b := mat.NewDense(8, 8, nil)
		for ri := 0; ri < 4; ri++ {
			for ci := 0; ci < 4; ci++ {
				b.Set(ri, ci, cov.At(ia+ri, ia+ci))
				b.Set(ri, 4+ci, cov.At(ia+ri, ib+ci))
				b.Set(4+ri, ci, cov.At(ib+ri, ia+ci))
				b.Set(4+ri, 4+ci, cov.At(ib+ri, ib+ci))
			}
		}
		return b
	}

	for _, c := range g.relative {
		ia, oka := g.paramIndex[c.A]
		ib, okb := g.paramIndex[c.B]
		if oka && okb {
			out[[2]int64{c.A, c.B}] = block(ia, ib)
		}
	}
	for _, c := range g.absolute {
		if ia, ok := g.paramIndex[c.Node]; ok {
			b := mat.NewDense(4, 4, nil)
			for ri := 0; ri < 4; ri++ {
				for ci := 0; ci < 4; ci++ {
					b.Set(ri, ci, cov.At(ia+ri, ia+ci))
				}
			}
			out[[2]int64{c.Node, c.Node}] = b
		}
	}
	return out
}
