package cpu

import (
	"testing"

	"github.com/soypat/icad/eval"
	"github.com/soypat/icad/region"
	"github.com/soypat/icad/tape"
)

func TestEvalAndPushVarXIsAmbiguousAtOrigin(t *testing.T) {
	tp := tape.Build(tape.X())
	box := region.Box3{Min: [3]float64{-1, -1, -1}, Max: [3]float64{1, 1, 1}}
	iv := new(Interval)
	result, h := iv.EvalAndPush(tp, box)
	defer h.Release()

	if result.Lo != -1 || result.Hi != 1 {
		t.Fatalf("interval = [%v,%v], want [-1,1]", result.Lo, result.Hi)
	}
	if result.State != eval.Ambiguous {
		t.Errorf("State = %v, want Ambiguous (box straddles the x=0 crossing)", result.State)
	}
}

func TestEvalAndPushSphereFilledFarInside(t *testing.T) {
	x, y, z := tape.X(), tape.Y(), tape.Z()
	sq := tape.ExprAdd(tape.ExprAdd(tape.ExprSquare(x), tape.ExprSquare(y)), tape.ExprSquare(z))
	sphere := tape.ExprSub(tape.ExprSqrt(sq), tape.Const(10))
	tp := tape.Build(sphere)
	box := region.Box3{Min: [3]float64{-1, -1, -1}, Max: [3]float64{1, 1, 1}}
	iv := new(Interval)
	result, h := iv.EvalAndPush(tp, box)
	defer h.Release()

	if result.State != eval.Filled {
		t.Errorf("State = %v, want Filled (box is well inside a radius-10 sphere)", result.State)
	}
}

func TestEvalAndPushSphereEmptyFarOutside(t *testing.T) {
	x, y, z := tape.X(), tape.Y(), tape.Z()
	sq := tape.ExprAdd(tape.ExprAdd(tape.ExprSquare(x), tape.ExprSquare(y)), tape.ExprSquare(z))
	sphere := tape.ExprSub(tape.ExprSqrt(sq), tape.Const(0.1))
	tp := tape.Build(sphere)
	box := region.Box3{Min: [3]float64{100, 100, 100}, Max: [3]float64{101, 101, 101}}
	iv := new(Interval)
	result, h := iv.EvalAndPush(tp, box)
	defer h.Release()

	if result.State != eval.Empty {
		t.Errorf("State = %v, want Empty (box is far outside a radius-0.1 sphere)", result.State)
	}
}

func TestPushPredicateResolvesMinWhenDisjoint(t *testing.T) {
	// x in [0,1], y in [2,3]: min(x,y) is provably x everywhere in the box.
	minExpr := tape.ExprMin(tape.X(), tape.Y())
	tp := tape.Build(minExpr)
	box := region.Box3{Min: [3]float64{0, 2, 0}, Max: [3]float64{1, 3, 0}}
	iv := new(Interval)
	_, h := iv.EvalAndPush(tp, box)
	defer h.Release()

	if got := tp.Active().Box(); got != box {
		t.Fatalf("pushed subtape box = %v, want %v", got, box)
	}
	if got, want := tp.Utilization(), 1.0; got >= want {
		t.Errorf("Utilization() = %v, want strictly less than %v (min should have been pruned)", got, want)
	}
}

func TestPushPredicateKeepsBothWhenIntervalsOverlap(t *testing.T) {
	// max(x,-x) over a box straddling zero: both branches can dominate.
	maxExpr := tape.ExprMax(tape.X(), tape.ExprNeg(tape.X()))
	tp := tape.Build(maxExpr)
	box := region.Box3{Min: [3]float64{-1, -1, -1}, Max: [3]float64{1, 1, 1}}
	iv := new(Interval)
	_, h := iv.EvalAndPush(tp, box)
	defer h.Release()

	if got, want := tp.Utilization(), 1.0; got != want {
		t.Errorf("Utilization() = %v, want %v (both branches must survive)", got, want)
	}
}
