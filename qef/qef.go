// Package qef implements the quadratic error function accumulator and
// bounded least-squares solver used to place a vertex inside a cell
// subspace from a set of position/normal/value samples.
package qef

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// EigenvalueCutoff is the default magnitude below which an eigenvalue
// direction of AᵀA is treated as degenerate.
const EigenvalueCutoff = 1e-12

// QEF is a symmetric quadratic error function accumulator over `dim`
// dimensions: it stores AᵀA (a dim x dim symmetric matrix), Aᵀb (a dim
// vector) and bᵀb (a scalar), plus a sample count. Dimension is fixed at
// construction time; a QEF is only ever combined with, or projected
// from, another QEF of a related dimension.
type QEF struct {
	dim   int
	ata   *mat.SymDense
	atb   *mat.VecDense
	btb   float64
	count int
}

// New returns a zeroed QEF over dim axes. A QEF over 0 axes (a fully
// fixed subspace) carries only bᵀb and its count.
func New(dim int) *QEF {
	q := &QEF{dim: dim}
	if dim > 0 {
		q.ata = mat.NewSymDense(dim, nil)
		q.atb = mat.NewVecDense(dim, nil)
	}
	return q
}

// Dim returns the dimension this QEF accumulates over.
func (q *QEF) Dim() int { return q.dim }

// Count returns the number of samples inserted (directly or via Add).
func (q *QEF) Count() int { return q.count }

// Insert adds the row [normal | normal·position - value] to the implicit
// normal equations: a sample at `position` with surface normal `normal`
// and field value `value` (0 for on-surface samples).
func (q *QEF) Insert(position, normal []float64, value float64) {
	if len(position) != q.dim || len(normal) != q.dim {
		panic("qef: dimension mismatch in Insert")
	}
	dot := 0.0
	for i := range normal {
		dot += normal[i] * position[i]
	}
	rhs := dot - value
	for i := 0; i < q.dim; i++ {
		for j := i; j < q.dim; j++ {
			q.ata.SetSym(i, j, q.ata.At(i, j)+normal[i]*normal[j])
		}
		q.atb.SetVec(i, q.atb.AtVec(i)+normal[i]*rhs)
	}
	q.btb += rhs * rhs
	q.count++
}

// Add accumulates other into q, in place.
func (q *QEF) Add(other *QEF) {
	if other.dim != q.dim {
		panic("qef: dimension mismatch in Add")
	}
	var sum mat.SymDense
	sum.AddSym(q.ata, other.ata)
	q.ata = &sum
	q.atb.AddVec(q.atb, other.atb)
	q.btb += other.btb
	q.count += other.count
}

// Sum returns a new QEF equal to the sum of qefs, all of the same
// dimension. Returns a zeroed QEF of that dimension if qefs is empty.
func Sum(dim int, qefs ...*QEF) *QEF {
	out := New(dim)
	for _, q := range qefs {
		out.Add(q)
	}
	return out
}

// SubFloating projects q onto the subspace spanned by the axes marked
// true in floating, substituting the axes marked false with the known
// values given in fixed (indexed by full-dimension axis index; entries
// at floating axes are ignored). Minimizing ||A_r x_r + A_f c - b||^2 is
// algebraically equivalent to minimizing over x_r alone using the
// reduced normal equations derived here, without needing the original
// per-sample rows.
func (q *QEF) SubFloating(floating []bool, fixed []float64) *QEF {
	if len(floating) != q.dim || len(fixed) != q.dim {
		panic("qef: dimension mismatch in SubFloating")
	}
	var floatIdx, fixedIdx []int
	for i, f := range floating {
		if f {
			floatIdx = append(floatIdx, i)
		} else {
			fixedIdx = append(fixedIdx, i)
		}
	}
	newDim := len(floatIdx)
	out := New(newDim)
	for a, i := range floatIdx {
		for b := a; b < newDim; b++ {
			j := floatIdx[b]
			out.ata.SetSym(a, b, q.ata.At(i, j))
		}
		rhs := q.atb.AtVec(i)
		for _, f := range fixedIdx {
			rhs -= q.ata.At(i, f) * fixed[f]
		}
		out.atb.SetVec(a, rhs)
	}
	btb := q.btb
	for _, f := range fixedIdx {
		btb -= 2 * q.atb.AtVec(f) * fixed[f]
	}
	for _, f1 := range fixedIdx {
		for _, f2 := range fixedIdx {
			btb += q.ata.At(f1, f2) * fixed[f1] * fixed[f2]
		}
	}
	out.btb = btb
	out.count = q.count
	return out
}

// Residual returns the squared residual ||Ax-b||^2 = xᵀ(AᵀA)x -
// 2xᵀ(Aᵀb) + bᵀb of the accumulated QEF at point x.
func (q *QEF) Residual(x []float64) float64 {
	if len(x) != q.dim {
		panic("qef: dimension mismatch in Residual")
	}
	xv := mat.NewVecDense(q.dim, x)
	var atax mat.VecDense
	atax.MulVec(q.ata, xv)
	quad := mat.Dot(xv, &atax)
	lin := mat.Dot(xv, q.atb)
	r := quad - 2*lin + q.btb
	if r < 0 {
		// Rounding noise around an exact zero residual.
		r = 0
	}
	return r
}

// Solution is the result of a bounded QEF solve: the chosen position and
// the residual error at that position.
type Solution struct {
	Position []float64
	Error    float64
}

// SolveBounded computes the minimum-norm least-squares solution of q,
// clamped to lie within the axis-aligned box [lo, hi]. Directions whose
// AᵀA eigenvalue has magnitude below cutoff are treated as degenerate and
// centered on the box centroid along that direction. If the unclamped
// solution exits the box, it is projected onto the active face and
// re-solved recursively in one lower dimension until feasible.
func (q *QEF) SolveBounded(lo, hi []float64, cutoff float64) Solution {
	if q.dim == 0 {
		return Solution{Position: nil, Error: 0}
	}
	if len(lo) != q.dim || len(hi) != q.dim {
		panic("qef: dimension mismatch in SolveBounded")
	}
	x := q.unboundedSolve(lo, hi, cutoff)
	for i := 0; i < q.dim; i++ {
		if lo[i] > hi[i] {
			panic("qef: empty bounding interval")
		}
	}
	pos := q.projectFeasible(x, lo, hi, cutoff)
	return Solution{Position: pos, Error: q.Residual(pos)}
}

// unboundedSolve returns the eigen-cutoff least squares solution of q,
// ignoring box constraints, centering degenerate directions on the box
// centroid.
func (q *QEF) unboundedSolve(lo, hi []float64, cutoff float64) []float64 {
	if cutoff <= 0 {
		cutoff = EigenvalueCutoff
	}
	var eig mat.EigenSym
	ok := eig.Factorize(q.ata, true)
	x := make([]float64, q.dim)
	centroid := make([]float64, q.dim)
	for i := range centroid {
		centroid[i] = 0.5 * (lo[i] + hi[i])
	}
	if !ok {
		copy(x, centroid)
		return x
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	// x = sum_i y_i * v_i, y_i = (v_i . atb)/lambda_i if |lambda_i| >= cutoff,
	// else y_i = v_i . centroid (keeps the centroid's component along a
	// degenerate direction unchanged).
	for i, lambda := range values {
		v := mat.Col(nil, i, &vecs)
		var y float64
		if math.Abs(lambda) >= cutoff {
			dot := 0.0
			for k, vk := range v {
				dot += vk * q.atb.AtVec(k)
			}
			y = dot / lambda
		} else {
			dot := 0.0
			for k, vk := range v {
				dot += vk * centroid[k]
			}
			y = dot
		}
		for k, vk := range v {
			x[k] += y * vk
		}
	}
	return x
}

// projectFeasible clamps x into [lo,hi], and if that requires moving off
// an unconstrained optimum, re-solves the problem restricted to the
// violated face(s) so the reported position remains the constrained
// optimum rather than merely the unconstrained solution truncated to
// the box.
func (q *QEF) projectFeasible(x, lo, hi []float64, cutoff float64) []float64 {
	floating := make([]bool, q.dim)
	fixed := make([]float64, q.dim)
	violated := false
	for i := range x {
		floating[i] = true
		switch {
		case x[i] < lo[i]:
			fixed[i] = lo[i]
			floating[i] = false
			violated = true
		case x[i] > hi[i]:
			fixed[i] = hi[i]
			floating[i] = false
			violated = true
		}
	}
	if !violated {
		return x
	}
	sub := q.SubFloating(floating, fixed)
	var subLo, subHi []float64
	for i := range floating {
		if floating[i] {
			subLo = append(subLo, lo[i])
			subHi = append(subHi, hi[i])
		}
	}
	var subPos []float64
	if sub.dim != 0 {
		subX := sub.unboundedSolve(subLo, subHi, cutoff)
		subPos = sub.projectFeasible(subX, subLo, subHi, cutoff)
	}
	out := make([]float64, q.dim)
	j := 0
	for i := range floating {
		if floating[i] {
			out[i] = subPos[j]
			j++
		} else {
			out[i] = fixed[i]
		}
	}
	return out
}
