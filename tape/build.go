package tape

// Expr is a node in an expression graph: pointer identity, not value
// equality, determines sharing. Two Expr values built independently are
// distinct clauses even if structurally identical; reusing the same
// *Expr pointer as an operand of two different parents is what makes
// Build emit a single shared clause instead of duplicating it.
type Expr struct {
	op     Opcode
	a, b   *Expr
	value  float64
	varID  int
	oracle OracleIface
}

func X() *Expr { return &Expr{op: VarX} }
func Y() *Expr { return &Expr{op: VarY} }
func Z() *Expr { return &Expr{op: VarZ} }

// Const wraps a literal value as a leaf expression.
func Const(v float64) *Expr { return &Expr{op: Constant, value: v} }

// Var wraps a free variable identified by id, resolved to a value by the
// evaluator at evaluation time rather than baked in at tape-build time.
func Var(id int) *Expr { return &Expr{op: VarFree, varID: id} }

// FromOracle splices a user-supplied implicit function into the
// expression graph as an opaque leaf.
func FromOracle(o OracleIface) *Expr { return &Expr{op: Oracle, oracle: o} }

func unary(op Opcode, a *Expr) *Expr     { return &Expr{op: op, a: a} }
func binary(op Opcode, a, b *Expr) *Expr { return &Expr{op: op, a: a, b: b} }

// ExprNeg and its siblings build a single unary or binary clause. Named
// with an Expr prefix since the bare opcode names (Neg, Add, Min, ...)
// are already Opcode constants in this package.
func ExprNeg(a *Expr) *Expr    { return unary(Neg, a) }
func ExprSqrt(a *Expr) *Expr   { return unary(Sqrt, a) }
func ExprSquare(a *Expr) *Expr { return unary(Square, a) }
func ExprAbs(a *Expr) *Expr    { return unary(Abs, a) }
func ExprSin(a *Expr) *Expr    { return unary(Sin, a) }
func ExprCos(a *Expr) *Expr    { return unary(Cos, a) }
func ExprTan(a *Expr) *Expr    { return unary(Tan, a) }
func ExprAsin(a *Expr) *Expr   { return unary(Asin, a) }
func ExprAcos(a *Expr) *Expr   { return unary(Acos, a) }
func ExprAtan(a *Expr) *Expr   { return unary(Atan, a) }
func ExprExp(a *Expr) *Expr    { return unary(Exp, a) }
func ExprLog(a *Expr) *Expr    { return unary(Log, a) }

func ExprAdd(a, b *Expr) *Expr   { return binary(Add, a, b) }
func ExprSub(a, b *Expr) *Expr   { return binary(Sub, a, b) }
func ExprMul(a, b *Expr) *Expr   { return binary(Mul, a, b) }
func ExprDiv(a, b *Expr) *Expr   { return binary(Div, a, b) }
func ExprMin(a, b *Expr) *Expr   { return binary(Min, a, b) }
func ExprMax(a, b *Expr) *Expr   { return binary(Max, a, b) }
func ExprAtan2(a, b *Expr) *Expr { return binary(Atan2, a, b) }
func ExprPow(a, b *Expr) *Expr   { return binary(Pow, a, b) }
func ExprMod(a, b *Expr) *Expr   { return binary(Mod, a, b) }

// ordered performs a post-order (children before parent) depth-first
// walk of root, deduplicated by pointer identity, so a subexpression
// referenced by more than one parent is visited, and later emitted as a
// clause, exactly once. The result lists leaves first and root last.
func ordered(root *Expr) []*Expr {
	visited := make(map[*Expr]bool)
	out := make([]*Expr, 0, 64)
	var visit func(e *Expr)
	visit = func(e *Expr) {
		if e == nil || visited[e] {
			return
		}
		visited[e] = true
		visit(e.a)
		visit(e.b)
		out = append(out, e)
	}
	visit(root)
	return out
}

// Build flattens an expression graph into a Tape. Ids are assigned
// increasing over the leaves-first order so that every clause's operands
// always have a strictly smaller id than the clause itself; the base
// subtape then stores clauses in the reverse of that order (root at
// index 0) so Push's disable-propagation, which must see a clause before
// deciding the fate of its operands, can walk the slice front-to-back.
func Build(root *Expr) *Tape {
	order := ordered(root)
	ids := make(map[*Expr]ClauseID, len(order))

	var constants []float64
	var vars []int
	var oracles []OracleIface
	forward := make([]Clause, len(order))

	for i, e := range order {
		id := ClauseID(i + 1)
		ids[e] = id
		switch e.op {
		case Constant:
			constants = append(constants, e.value)
			forward[i] = Clause{Op: Constant, ID: id, A: ClauseID(len(constants) - 1)}
		case VarFree:
			vars = append(vars, e.varID)
			forward[i] = Clause{Op: VarFree, ID: id, A: ClauseID(len(vars) - 1)}
		case Oracle:
			if e.oracle == nil {
				panic(errMsg("FromOracle used with a nil Oracle"))
			}
			oracles = append(oracles, e.oracle)
			forward[i] = Clause{Op: Oracle, ID: id, A: ClauseID(len(oracles) - 1)}
		case VarX, VarY, VarZ:
			forward[i] = Clause{Op: e.op, ID: id}
		default:
			var a, b ClauseID
			if e.a != nil {
				a = ids[e.a]
			}
			if e.b != nil {
				b = ids[e.b]
			}
			forward[i] = Clause{Op: e.op, ID: id, A: a, B: b}
		}
	}

	numClauses := len(order) + 1
	stored := make([]Clause, len(forward))
	for i, c := range forward {
		stored[len(forward)-1-i] = c
	}

	t := &Tape{
		subtapes:   []*Subtape{{kind: Base, clauses: stored}},
		constants:  constants,
		vars:       vars,
		oracles:    oracles,
		numClauses: numClauses,
		disabled:   make([]bool, numClauses),
		remap:      make([]ClauseID, numClauses),
	}
	t.assignSlots()
	return t
}
