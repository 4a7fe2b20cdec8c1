package simplex

import (
	"testing"

	"github.com/soypat/icad/eval"
	"github.com/soypat/icad/region"
	"github.com/soypat/icad/subspace"
	"github.com/soypat/icad/tape"
)

func sphereTape(radius float64) *tape.Tape {
	x, y, z := tape.X(), tape.Y(), tape.Z()
	sq := tape.ExprAdd(tape.ExprAdd(tape.ExprSquare(x), tape.ExprSquare(y)), tape.ExprSquare(z))
	return tape.Build(tape.ExprSub(tape.ExprSqrt(sq), tape.Const(radius)))
}

func TestBuildProducesLeavesForAmbiguousSphere(t *testing.T) {
	tp := sphereTape(0.5)
	box := region.Box3{Min: [3]float64{-1, -1, -1}, Max: [3]float64{1, 1, 1}}
	tree := Build(tp, box, BuildOptions{MaxLevel: 2, MaxErr: 1e-9}, Evaluators{}.Fresh())

	leaves := 0
	tree.Walk(func(n *Tree3) {
		if n.Leaf() != nil {
			leaves++
		}
	})
	if leaves == 0 {
		t.Fatal("Build produced no leaves for a sphere that crosses the region")
	}
}

func TestBuildEmptyFarFromSurface(t *testing.T) {
	tp := sphereTape(0.1)
	box := region.Box3{Min: [3]float64{50, 50, 50}, Max: [3]float64{51, 51, 51}}
	tree := Build(tp, box, BuildOptions{MaxLevel: 2, MaxErr: 1e-9}, Evaluators{}.Fresh())

	if tree.State() != eval.Empty {
		t.Errorf("State() = %v, want Empty (box is far outside a radius-0.1 sphere)", tree.State())
	}
	if !tree.IsLeaf() {
		t.Error("an Empty root should short-circuit without subdividing")
	}
}

func TestBuildCollapsesMoreAtLooserThreshold(t *testing.T) {
	tp := sphereTape(0.5)
	box := region.Box3{Min: [3]float64{-1, -1, -1}, Max: [3]float64{1, 1, 1}}

	tight := Build(tp.Clone(), box, BuildOptions{MaxLevel: 3, MaxErr: 1e-12}, Evaluators{}.Fresh())
	loose := Build(tp.Clone(), box, BuildOptions{MaxLevel: 3, MaxErr: 1.0}, Evaluators{}.Fresh())

	countLeaves := func(root *Tree3) int {
		n := 0
		root.Walk(func(t *Tree3) {
			if t.Leaf() != nil {
				n++
			}
		})
		return n
	}
	tightLeaves, looseLeaves := countLeaves(tight), countLeaves(loose)
	if looseLeaves > tightLeaves {
		t.Errorf("looser MaxErr produced more leaves (%d) than tighter MaxErr (%d); expected collapsing to reduce or match leaf count", looseLeaves, tightLeaves)
	}
}

func TestAssignIndicesSharesIndexForIdenticalSubspaceVertex(t *testing.T) {
	dim := 3
	n := subspace.NumSubspaces(dim)
	mkSub := func(vert []float64, target int) []*LeafSubspace {
		subs := make([]*LeafSubspace, n)
		for i := range subs {
			subs[i] = &LeafSubspace{}
		}
		subs[target] = &LeafSubspace{Solved: true, Vert: vert}
		return subs
	}
	faceIdx := int(subspace.New(subspace.High, subspace.Floating, subspace.Floating))
	sharedVert := []float64{1, 0.25, 0.5}

	child1 := &Tree3{leaf: &Leaf{Sub: mkSub(sharedVert, faceIdx)}}
	child2 := &Tree3{leaf: &Leaf{Sub: mkSub(sharedVert, faceIdx)}}
	other := &Tree3{leaf: &Leaf{Sub: mkSub([]float64{-1, 0, 0}, faceIdx)}}
	root := &Tree3{children: [8]*Tree3{child1, child2, other}}

	AssignIndices(root, dim)

	id1 := child1.leaf.Sub[faceIdx].Index
	id2 := child2.leaf.Sub[faceIdx].Index
	idOther := other.leaf.Sub[faceIdx].Index
	if id1 == 0 || id2 == 0 || idOther == 0 {
		t.Fatal("expected nonzero indices for solved subspaces")
	}
	if id1 != id2 {
		t.Errorf("identical shared-face vertices got different indices: %d vs %d", id1, id2)
	}
	if id1 == idOther {
		t.Error("distinct vertices collided on the same index")
	}
}
