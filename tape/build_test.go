package tape

import "testing"

func TestBuildSingleVar(t *testing.T) {
	tp := Build(X())
	if tp.NumClauses() != 2 {
		t.Fatalf("NumClauses() = %d, want 2 (sentinel + X)", tp.NumClauses())
	}
	if tp.RootID() != 1 {
		t.Fatalf("RootID() = %d, want 1", tp.RootID())
	}
	if len(tp.subtapes[0].clauses) != 1 {
		t.Fatalf("base subtape has %d clauses, want 1", len(tp.subtapes[0].clauses))
	}
}

func TestBuildDedupesSharedSubexpr(t *testing.T) {
	x := X()
	root := ExprAdd(x, x) // same *Expr node used twice
	tp := Build(root)
	// Expect exactly 2 real clauses: X and Add, not 3.
	if tp.NumClauses() != 3 { // sentinel(0) + X + Add
		t.Fatalf("NumClauses() = %d, want 3 (sentinel + X + Add)", tp.NumClauses())
	}
}

func TestBuildStoresRootFirst(t *testing.T) {
	root := ExprAdd(X(), Y())
	tp := Build(root)
	base := tp.subtapes[0].clauses
	if base[0].ID != tp.RootID() {
		t.Fatalf("base subtape's first clause id = %d, want root id %d", base[0].ID, tp.RootID())
	}
	for i := 1; i < len(base); i++ {
		if base[i].ID >= base[i-1].ID {
			t.Fatalf("base subtape ids not strictly decreasing at %d: %d then %d", i, base[i-1].ID, base[i].ID)
		}
	}
}

func TestRWalkVisitsOperandsBeforeDependents(t *testing.T) {
	root := ExprMul(ExprAdd(X(), Y()), Z())
	tp := Build(root)
	seen := map[ClauseID]bool{}
	tp.RWalk(nil, func(op Opcode, id, a, b ClauseID) {
		if a != 0 && !op.HasDummyChildren() && !seen[a] {
			t.Errorf("clause %d visited before its operand %d", id, a)
		}
		if b != 0 && !op.HasDummyChildren() && !seen[b] {
			t.Errorf("clause %d visited before its operand %d", id, b)
		}
		seen[id] = true
	})
	if !seen[tp.RootID()] {
		t.Error("RWalk never visited the root")
	}
}
