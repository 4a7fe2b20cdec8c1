package tape

import (
	"testing"

	"github.com/soypat/icad/region"
)

func unitBox() region.Box3 {
	return region.Box3{Min: [3]float64{-1, -1, -1}, Max: [3]float64{1, 1, 1}}
}

// TestPushMinKeepA models an interval evaluator that has proven x < y
// everywhere in the region, so min(x,y) can be replaced by x alone.
func TestPushMinKeepA(t *testing.T) {
	tp := Build(ExprMin(X(), Y()))
	before := tp.Utilization()
	h := tp.Push(func(op Opcode, id, a, b ClauseID) KeepCode {
		if op == Min {
			return KeepA
		}
		return KeepAlways
	}, Interval, unitBox())
	defer h.Release()

	if got := tp.Utilization(); got >= before {
		t.Errorf("Utilization() = %v after KeepA push, want < %v (pruned)", got, before)
	}
	// Only X should remain reachable from the root.
	rootID := tp.Active().clauses[0].ID
	if tp.Active().clauses[0].Op != VarX {
		t.Errorf("root of pruned subtape is %v, want VarX (id %d)", tp.Active().clauses[0].Op, rootID)
	}
}

// TestPushMaxKeepBoth models max(x,-x) at x=0, where neither branch
// dominates: both operands must survive.
func TestPushMaxKeepBoth(t *testing.T) {
	tp := Build(ExprMax(X(), ExprNeg(X())))
	h := tp.Push(func(op Opcode, id, a, b ClauseID) KeepCode {
		if op == Max {
			return KeepBoth
		}
		return KeepAlways
	}, Interval, unitBox())
	defer h.Release()

	if got, want := tp.Utilization(), 1.0; got != want {
		t.Errorf("Utilization() = %v, want %v (KeepBoth prunes nothing)", got, want)
	}
}

func TestPushPopRestoresUtilization(t *testing.T) {
	tp := Build(ExprMin(X(), Y()))
	h := tp.Push(func(op Opcode, id, a, b ClauseID) KeepCode {
		if op == Min {
			return KeepA
		}
		return KeepAlways
	}, Interval, unitBox())
	h.Release()
	if got := tp.Utilization(); got != 1 {
		t.Errorf("Utilization() after release = %v, want 1", got)
	}
}

func TestPopUnderflowPanics(t *testing.T) {
	tp := Build(X())
	defer func() {
		if r := recover(); r == nil {
			t.Error("pop() at cursor 0 did not panic")
		}
	}()
	tp.pop()
}

func TestReentrantPushSharesDummy(t *testing.T) {
	tp := Build(ExprAdd(X(), Y()))
	keepAlways := func(op Opcode, id, a, b ClauseID) KeepCode { return KeepAlways }
	h1 := tp.Push(keepAlways, Interval, unitBox())
	cursorAfterFirst := tp.cursor
	h2 := tp.Push(keepAlways, Interval, unitBox())
	if tp.cursor != cursorAfterFirst {
		t.Errorf("second reentrant push grew the stack: cursor %d -> %d", cursorAfterFirst, tp.cursor)
	}
	h2.Release()
	if tp.cursor != cursorAfterFirst {
		t.Errorf("releasing the reentrant push moved the cursor: got %d, want %d", tp.cursor, cursorAfterFirst)
	}
	h1.Release()
	if tp.cursor != 0 {
		t.Errorf("cursor after both releases = %d, want 0", tp.cursor)
	}
}

func TestGetBaseFallsBackOutsideRegion(t *testing.T) {
	tp := Build(X())
	small := region.Box3{Min: [3]float64{0, 0, 0}, Max: [3]float64{1, 1, 1}}
	h := tp.Push(func(op Opcode, id, a, b ClauseID) KeepCode { return KeepAlways }, Interval, small)
	defer h.Release()

	outside := [3]float64{-5, -5, -5}
	bh := tp.GetBase(outside)
	if tp.cursor != 0 {
		t.Errorf("GetBase for a point outside every pushed region left cursor at %d, want 0", tp.cursor)
	}
	bh.Release()
	if tp.cursor != 1 {
		t.Errorf("releasing GetBase's handle left cursor at %d, want 1 (restored)", tp.cursor)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	tp := Build(ExprMin(X(), Y()))
	h := tp.Push(func(op Opcode, id, a, b ClauseID) KeepCode {
		if op == Min {
			return KeepA
		}
		return KeepAlways
	}, Interval, unitBox())
	defer h.Release()

	clone := tp.Clone()
	ch := clone.Push(func(op Opcode, id, a, b ClauseID) KeepCode { return KeepAlways }, Feature, unitBox())
	if tp.cursor == clone.cursor && tp.Active() == clone.Active() {
		t.Error("clone shares mutable subtape state with the original")
	}
	ch.Release()
}
