// Package simplex implements the recursive spatial subdivision tree: an
// octree/quadtree of cells, each terminal cell (leaf) carrying one QEF
// per subspace (corner/edge/face/interior), collapsed upward wherever the
// merged QEF's error stays under a caller-supplied threshold.
package simplex

import (
	"math"

	"github.com/soypat/icad/eval/cpu"
	"github.com/soypat/icad/qef"
	"github.com/soypat/icad/subspace"
	"github.com/soypat/icad/tape"
)

// LeafSubspace holds one subspace's accumulated QEF and, once solved, its
// vertex position and inside/outside classification. Index is the shared
// global vertex identifier assigned by AssignIndices; two LeafSubspaces
// across different leaves sharing a subspace geometrically share Index.
type LeafSubspace struct {
	QEF    *qef.QEF
	Vert   []float64
	Inside bool
	Index  uint64
	Solved bool

	// released tracks whether this subspace has already been returned to
	// its pool, to catch a double release. Untouched by Reset: it must
	// survive the reset a Put performs and is only cleared by the next
	// Get, so a stale free-list entry stays flagged as released.
	released bool
}

// Reset implements pool.Resettable.
func (s *LeafSubspace) Reset() {
	s.QEF = nil
	s.Vert = nil
	s.Inside = false
	s.Index = 0
	s.Solved = false
}

// Leaf is a terminal (or collapsed) cell: one LeafSubspace per subspace of
// the cell (subspace.NumSubspaces(dim) of them), plus Level: 0 for a leaf
// built directly (a uniform FILLED/EMPTY cell or a cell at level 0), and
// for a leaf collapsed from a branch, one more than that branch's depth
// below the root (a collapsed root has Level 1).
type Leaf struct {
	Sub   []*LeafSubspace
	Level int
}

// Reset implements pool.Resettable.
func (l *Leaf) Reset() {
	l.Sub = l.Sub[:0]
	l.Level = 0
}

// sanitizeGradient replaces any non-finite component of g with 0, so an
// evaluator singularity (e.g. a gradient blowing up at a cusp) never
// poisons a subspace's QEF with a NaN or infinite row.
func sanitizeGradient(g [3]float64) [3]float64 {
	for i, v := range g {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			g[i] = 0
		}
	}
	return g
}

// vecTo3 pads a 2- or 3-length vertex into a [3]float64 for the Z-pinned
// evaluator contract, mirroring build2's to3.
func vecTo3(v []float64) [3]float64 {
	var p [3]float64
	copy(p[:], v)
	return p
}

// classifySigns sets each solved subspace's Inside flag by evaluating
// the scalar field at its own solved vertex, rather than at the sample
// point its QEF was built from: two subspaces solving to the same
// vertex must agree on sign regardless of which corner sample fed them.
func classifySigns(subs []*LeafSubspace, t *tape.Tape, pts *cpu.Points) {
	for _, ls := range subs {
		if !ls.Solved {
			continue
		}
		ls.Inside = pts.IsInside(t, vecTo3(ls.Vert))
	}
}

// classifySignsUniform sets every solved subspace's Inside flag to inside,
// for a cell whose interval evaluation already determined the whole region
// lies on one side of the surface: no per-vertex field evaluation is needed
// or meaningful, since there is no crossing within the cell.
func classifySignsUniform(subs []*LeafSubspace, inside bool) {
	for _, ls := range subs {
		if !ls.Solved {
			continue
		}
		ls.Inside = inside
	}
}

// boxer is the minimal region contract solveSubspaces needs, satisfied by
// both region.Box3 and region.Box2.
type boxer interface {
	SubspaceBounds(floating uint8) (lo, hi []float64)
	FixedValue(axis int, n subspace.NeighborIndex) float64
}

// solveSubspaces runs the per-subspace QEF collection and solve pass over
// a cell's raw per-subspace QEFs (sub, indexed by NeighborIndex, length
// subspace.NumSubspaces(dim)): for every subspace target, it sums the
// QEFs of every subspace the target contains (those whose fixed axes
// agree with the target's), reduces that
// sum to the target's floating axes via SubFloating, solves it bounded to
// the cell's extent on those axes, and unpacks the solution into the
// target's own vertex. It returns the worst per-subspace residual seen,
// the quantity a caller compares against a collapse threshold.
func solveSubspaces(sub []*LeafSubspace, box boxer, dim int, cutoff float64) float64 {
	n := subspace.NumSubspaces(dim)
	var maxErr float64
	for i := 0; i < n; i++ {
		target := subspace.NeighborIndex(i)
		floatingMask := target.Floating(dim)
		floatingBool := make([]bool, dim)
		fixedVals := make([]float64, dim)
		for axis := 0; axis < dim; axis++ {
			if floatingMask&(1<<axis) != 0 {
				floatingBool[axis] = true
			} else {
				fixedVals[axis] = box.FixedValue(axis, target)
			}
		}
		var contributors []*qef.QEF
		for j := 0; j < n; j++ {
			candidate := subspace.NeighborIndex(j)
			if target.Contains(dim, candidate) {
				contributors = append(contributors, sub[j].QEF)
			}
		}
		merged := qef.Sum(dim, contributors...)
		reduced := merged.SubFloating(floatingBool, fixedVals)
		lo, hi := box.SubspaceBounds(floatingMask)
		sol := reduced.SolveBounded(lo, hi, cutoff)
		full := unpackVertex(box, target, dim, sol.Position)
		sub[i].Vert = full
		sub[i].Solved = true
		if sol.Error > maxErr {
			maxErr = sol.Error
		}
	}
	return maxErr
}

// unpackVertex expands a reduced-dimension solution (one value per
// floating axis of n, in increasing axis order) into a full dim-length
// point using box's fixed-axis coordinates for n's fixed axes.
func unpackVertex(box boxer, n subspace.NeighborIndex, dim int, solved []float64) []float64 {
	out := make([]float64, dim)
	j := 0
	floatingMask := n.Floating(dim)
	for axis := 0; axis < dim; axis++ {
		if floatingMask&(1<<axis) != 0 {
			out[axis] = solved[j]
			j++
		} else {
			out[axis] = box.FixedValue(axis, n)
		}
	}
	return out
}
