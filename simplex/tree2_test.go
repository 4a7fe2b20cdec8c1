package simplex

import (
	"testing"

	"github.com/soypat/icad/eval"
	"github.com/soypat/icad/region"
	"github.com/soypat/icad/tape"
)

func circleTape(radius float64) *tape.Tape {
	x, y := tape.X(), tape.Y()
	sq := tape.ExprAdd(tape.ExprSquare(x), tape.ExprSquare(y))
	return tape.Build(tape.ExprSub(tape.ExprSqrt(sq), tape.Const(radius)))
}

func TestBuild2ProducesLeavesForAmbiguousCircle(t *testing.T) {
	tp := circleTape(0.5)
	box := region.Box2{Min: [2]float64{-1, -1}, Max: [2]float64{1, 1}}
	tree := Build2(tp, box, BuildOptions{MaxLevel: 2, MaxErr: 1e-9}, Evaluators{}.Fresh())

	leaves := 0
	tree.Walk(func(n *Tree2) {
		if n.Leaf() != nil {
			leaves++
		}
	})
	if leaves == 0 {
		t.Fatal("Build2 produced no leaves for a circle that crosses the region")
	}
}

func TestBuild2FilledFarInside(t *testing.T) {
	tp := circleTape(10)
	box := region.Box2{Min: [2]float64{-1, -1}, Max: [2]float64{1, 1}}
	tree := Build2(tp, box, BuildOptions{MaxLevel: 2, MaxErr: 1e-9}, Evaluators{}.Fresh())

	if tree.State() != eval.Filled {
		t.Errorf("State() = %v, want Filled (box is well inside a radius-10 circle)", tree.State())
	}
}

func TestAssignIndices2GivesEverySolvedSubspaceAnIndex(t *testing.T) {
	tp := circleTape(0.5)
	box := region.Box2{Min: [2]float64{-1, -1}, Max: [2]float64{1, 1}}
	tree := Build2(tp, box, BuildOptions{MaxLevel: 2, MaxErr: 1e-9}, Evaluators{}.Fresh())
	AssignIndices2(tree, 2)

	// Every solved subspace should carry a nonzero index once assigned.
	tree.Walk(func(n *Tree2) {
		if n.Leaf() == nil {
			return
		}
		for _, sub := range n.Leaf().Sub {
			if sub.Solved && sub.Index == 0 {
				t.Error("solved subspace left with a zero index after AssignIndices2")
			}
		}
	})
}
