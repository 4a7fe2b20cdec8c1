package tape

// ClauseID names a clause's result slot. 0 is reserved as the sentinel
// "no clause" id; real clauses are numbered starting at 1.
type ClauseID uint32

// Clause is a single three-address instruction: (op, id, a, b). For
// arithmetic opcodes a and b are ClauseIDs of same-subtape inputs. For
// CONSTANT, VAR_FREE and ORACLE, a is instead an index into the tape's
// side arrays (constants, vars, oracles respectively) and b is unused.
type Clause struct {
	Op Opcode
	ID ClauseID
	A  ClauseID
	B  ClauseID
}

// KeepCode is the decision a push predicate makes for one live clause.
type KeepCode uint8

const (
	// KeepA replaces this clause with its A operand: the clause is
	// removed and any reference to its id is remapped to A.
	KeepA KeepCode = iota
	// KeepB replaces this clause with its B operand.
	KeepB
	// KeepBoth enables both operands but keeps this clause itself.
	KeepBoth
	// KeepAlways is equivalent to KeepBoth but signals that no real
	// choice was available (used by opcodes outside MIN/MAX).
	KeepAlways
)
