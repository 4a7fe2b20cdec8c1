package tape

import (
	"sort"

	"github.com/soypat/icad/region"
)

// SubtapeKind marks what a subtape is: Base for the full program at the
// bottom of the stack (never pushed), Interval for a subtape pushed by
// interval pruning over a region (the only kind GetBase stops at), and
// Feature for a subtape pushed by feature evaluation to force MIN/MAX
// branches.
type SubtapeKind uint8

const (
	Base SubtapeKind = iota
	Interval
	Feature
)

// Subtape is one level of the tape's push/pop stack: a pruned copy of its
// parent's clause list plus the region it was pruned for. Clauses are
// stored root-first (the clause with the largest id is at index 0);
// dependencies of a clause always have a strictly smaller id and appear
// later in the slice. Evaluators walk a subtape back-to-front (RWalk) to
// visit dependencies before dependents; the push/pop pruning algorithm
// walks it front-to-back, in Walk order, so it sees the root, whose disabled state
// is known, before the children whose state it decides.
type Subtape struct {
	kind    SubtapeKind
	clauses []Clause
	box     region.Box3
	dummy   int
}

// Box returns the region a pushed subtape was pruned for. The base
// subtape (never pushed) returns the zero Box3.
func (s *Subtape) Box() region.Box3 { return s.box }

func (s *Subtape) reset() {
	s.clauses = s.clauses[:0]
	s.dummy = 0
}

// OracleIface is a user-supplied implicit function spliced into the tape as an
// opaque leaf. Eval computes its value at a point; IntervalBound returns
// a conservative range over box and reports whether that range is safe
// to prune on — an oracle that cannot bound itself must force AMBIGUOUS
// rather than let interval evaluation prune past it incorrectly.
type OracleIface interface {
	Eval(p [3]float64) float64
	IntervalBound(box region.Box3) (lo, hi float64, safe bool)
}

// Tape is a linearized, stack-structured evaluation program: a base
// subtape produced by flattening an expression graph, plus a stack of
// pruned subtapes produced by Push and unwound by Pop or a Handle's
// Release. Only the top of the stack (Active) is ever evaluated.
type Tape struct {
	subtapes []*Subtape
	cursor   int

	constants []float64
	vars      []int
	oracles   []OracleIface

	numClauses int
	slots      []int32 // clause id -> register slot, computed once over the base subtape

	disabled []bool
	remap    []ClauseID
}

// NumClauses returns the number of distinct clause ids in the tape,
// including the reserved sentinel id 0.
func (t *Tape) NumClauses() int { return t.numClauses }

// Constant returns the constant value a Constant clause's A field indexes.
func (t *Tape) Constant(i ClauseID) float64 { return t.constants[i] }

// Var returns the free-variable identifier a VarFree clause's A field
// indexes.
func (t *Tape) Var(i ClauseID) int { return t.vars[i] }

// OracleAt returns the Oracle an Oracle clause's A field indexes.
func (t *Tape) OracleAt(i ClauseID) OracleIface { return t.oracles[i] }

// Slot returns the register slot assigned to clause id, computed once at
// construction time by assignSlots and shared by every subtape (a pruned
// subtape only ever drops clauses, never renumbers surviving ones).
func (t *Tape) Slot(id ClauseID) int32 { return t.slots[id] }

// NumSlots returns the number of registers assignSlots allocated.
func (t *Tape) NumSlots() int {
	max := int32(0)
	for _, s := range t.slots {
		if s+1 > max {
			max = s + 1
		}
	}
	return int(max)
}

// Active returns the subtape currently on top of the stack.
func (t *Tape) Active() *Subtape { return t.subtapes[t.cursor] }

// Utilization returns the fraction of the base tape's clauses still
// present in the active subtape, a measure of how effectively pruning
// has shrunk the program for the current region.
func (t *Tape) Utilization() float64 {
	base := len(t.subtapes[0].clauses)
	if base == 0 {
		return 0
	}
	return float64(len(t.Active().clauses)) / float64(base)
}

// RootID returns the id of the tape's root clause.
func (t *Tape) RootID() ClauseID { return t.subtapes[0].clauses[0].ID }

// Walk visits every clause of the active subtape in stored (root-first)
// order, stopping early if abort is non-nil and becomes true between
// calls. Push's disable-propagation scans the subtape in this same
// order, since it must see a clause before the children it decides the
// fate of.
func (t *Tape) Walk(abort *bool, fn func(op Opcode, id, a, b ClauseID)) {
	for _, c := range t.Active().clauses {
		if abort != nil && *abort {
			return
		}
		fn(c.Op, c.ID, c.A, c.B)
	}
}

// RWalk visits every clause of the active subtape in reverse (leaves
// first, root last) order, the order in which an interpreter must
// compute clauses so that every operand is already available when its
// dependent is reached. Returns the root clause's id.
func (t *Tape) RWalk(abort *bool, fn func(op Opcode, id, a, b ClauseID)) ClauseID {
	cl := t.Active().clauses
	for i := len(cl) - 1; i >= 0; i-- {
		if abort != nil && *abort {
			break
		}
		c := cl[i]
		fn(c.Op, c.ID, c.A, c.B)
	}
	if len(cl) == 0 {
		return 0
	}
	return cl[0].ID
}

// KeepFunc decides, for one clause of the subtape being pruned, which of
// its operands (if either) can be substituted for the clause's own
// result. It is called once per surviving clause of the parent subtape,
// in Walk order, so its own result (KeepA/KeepB/KeepBoth/KeepAlways) may
// depend on state accumulated from clauses visited earlier in that walk
// (e.g. interval bounds carried alongside the tape by the caller).
type KeepFunc func(op Opcode, id, a, b ClauseID) KeepCode

// Handle represents ownership of one Push (or the temporary cursor move
// made by GetBase). Go has no destructors, so callers must arrange for
// Release to run, typically via defer, exactly once and before any
// sibling Push/GetBase on the same Tape is issued.
type Handle struct {
	tape       *Tape
	isBase     bool
	prevCursor int
	released   bool
}

// Release unwinds whatever cursor movement the Handle represents. It is
// a no-op on a nil Handle or one already released, so Release is always
// safe to defer unconditionally.
func (h *Handle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	if h.isBase {
		h.tape.cursor = h.prevCursor
		return
	}
	h.tape.pop()
}

// Push prunes the active subtape against pred and box, pushing the
// result as the new active subtape, and returns a Handle whose Release
// undoes the push. A pushed subtape is marked dummy when pred returned
// KeepBoth for none of its clauses, whether or not it pruned anything
// with KeepA/KeepB. If the active subtape is already a dummy, Push just
// increments its reentrancy count instead of allocating a new level, so
// nested calls on it share one subtape instead of growing the stack once
// per call.
func (t *Tape) Push(pred KeepFunc, kind SubtapeKind, box region.Box3) *Handle {
	cur := t.Active()
	if cur.dummy > 0 {
		cur.dummy++
		return &Handle{tape: t}
	}
	if len(cur.clauses) == 0 {
		panic(ErrEmptySubtape)
	}

	for i := range t.disabled {
		t.disabled[i] = true
	}
	for i := range t.remap {
		t.remap[i] = 0
	}
	rootID := cur.clauses[0].ID
	t.disabled[rootID] = false

	hasChoice := false
	for _, c := range cur.clauses {
		if t.disabled[c.ID] {
			continue
		}
		switch pred(c.Op, c.ID, c.A, c.B) {
		case KeepA:
			t.disabled[c.A] = false
			t.remap[c.ID] = c.A
		case KeepB:
			t.disabled[c.B] = false
			t.remap[c.ID] = c.B
		case KeepBoth:
			hasChoice = true
		}
		if t.remap[c.ID] != 0 {
			t.disabled[c.ID] = true
		} else if !c.Op.HasDummyChildren() {
			t.disabled[c.A] = false
			t.disabled[c.B] = false
		}
	}

	t.cursor++
	var next *Subtape
	if t.cursor == len(t.subtapes) {
		next = &Subtape{}
		t.subtapes = append(t.subtapes, next)
	} else {
		next = t.subtapes[t.cursor]
		next.reset()
	}
	next.kind = kind
	next.box = box
	if hasChoice {
		next.dummy = 0
	} else {
		next.dummy = 1
	}

	guardLimit := t.numClauses + 1
	for _, c := range cur.clauses {
		if t.disabled[c.ID] {
			continue
		}
		if c.Op.HasDummyChildren() {
			next.clauses = append(next.clauses, c)
			continue
		}
		a, b := c.A, c.B
		for g := 0; t.remap[a] != 0 && g < guardLimit; g++ {
			a = t.remap[a]
		}
		for g := 0; t.remap[b] != 0 && g < guardLimit; g++ {
			b = t.remap[b]
		}
		next.clauses = append(next.clauses, Clause{Op: c.Op, ID: c.ID, A: a, B: b})
	}
	return &Handle{tape: t}
}

// pop unwinds one level of the push stack, or decrements a dummy
// subtape's reentrancy counter if this pop merely undoes a reentrant
// Push that never allocated a new level.
func (t *Tape) pop() {
	if t.cursor == 0 {
		panic(ErrCursorUnderflow)
	}
	cur := t.subtapes[t.cursor]
	if cur.dummy > 1 {
		cur.dummy--
		return
	}
	t.cursor--
}

// GetBase walks the push stack down from the current cursor until it
// finds an Interval subtape whose region contains point (or reaches the base
// subtape, which has no region and always matches), and returns a
// Handle that restores the current cursor on Release. It lets an
// evaluator temporarily resume evaluating at the coarsest subtape known
// to still be valid at point, rather than at the tightly pruned subtape
// for whatever region last called Push.
func (t *Tape) GetBase(point [3]float64) *Handle {
	h := &Handle{tape: t, isBase: true, prevCursor: t.cursor}
	for t.cursor != 0 {
		cur := t.subtapes[t.cursor]
		if cur.kind == Interval && cur.box.Contains(point) {
			break
		}
		t.cursor--
	}
	return h
}

// Clone returns an independent copy of t at its current cursor depth,
// safe to hand to another goroutine: base program data (constants, vars,
// oracles, slots) is shared read-only, but every subtape up to the
// current cursor is deep-copied so the clone's own future Push/Pop calls
// can reuse and mutate its Subtape objects without racing t's.
func (t *Tape) Clone() *Tape {
	subtapes := make([]*Subtape, t.cursor+1)
	for i := 0; i <= t.cursor; i++ {
		src := t.subtapes[i]
		clauses := make([]Clause, len(src.clauses))
		copy(clauses, src.clauses)
		subtapes[i] = &Subtape{kind: src.kind, clauses: clauses, box: src.box, dummy: src.dummy}
	}
	return &Tape{
		subtapes:   subtapes,
		cursor:     t.cursor,
		constants:  t.constants,
		vars:       t.vars,
		oracles:    t.oracles,
		numClauses: t.numClauses,
		slots:      t.slots,
		disabled:   make([]bool, t.numClauses),
		remap:      make([]ClauseID, t.numClauses),
	}
}

// assignSlots computes a register allocation over the base subtape by
// live-range coloring: each clause's live range spans from the position
// it is defined (in leaves-first, dependency-safe execution order) to
// the position of its last use, and overlapping ranges are given
// distinct slots while disjoint ranges may share one. Reused across
// every pruned subtape, since pruning only removes clauses and register
// pressure for a subset of the base program is never higher than for the
// whole of it.
func (t *Tape) assignSlots() {
	base := t.subtapes[0].clauses
	n := len(base)
	type liveRange struct{ first, last int }
	ranges := make(map[ClauseID]liveRange, n)

	for pos, i := 0, n-1; i >= 0; i, pos = i-1, pos+1 {
		c := base[i]
		r, ok := ranges[c.ID]
		if !ok {
			r = liveRange{first: pos, last: pos + 1}
		} else {
			r.last = pos + 1
		}
		ranges[c.ID] = r
		if c.Op.HasDummyChildren() {
			continue
		}
		for _, operand := range [2]ClauseID{c.A, c.B} {
			if operand == 0 {
				continue
			}
			r := ranges[operand]
			if r.last < pos+1 {
				r.last = pos + 1
			}
			ranges[operand] = r
		}
	}

	const (
		evtDrop = 0
		evtLoad = 1
	)
	type event struct {
		pos  int
		kind int
		id   ClauseID
	}
	events := make([]event, 0, 2*len(ranges))
	for id, r := range ranges {
		events = append(events, event{pos: r.first, kind: evtLoad, id: id})
		events = append(events, event{pos: r.last, kind: evtDrop, id: id})
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].pos != events[j].pos {
			return events[i].pos < events[j].pos
		}
		return events[i].kind < events[j].kind
	})

	t.slots = make([]int32, t.numClauses)
	free := make([]int32, 0, 16)
	nextSlot := int32(0)
	active := make(map[ClauseID]int32, len(ranges))
	for _, e := range events {
		switch e.kind {
		case evtDrop:
			slot := active[e.id]
			delete(active, e.id)
			idx := sort.Search(len(free), func(i int) bool { return free[i] >= slot })
			free = append(free, 0)
			copy(free[idx+1:], free[idx:])
			free[idx] = slot
		case evtLoad:
			var slot int32
			if len(free) > 0 {
				slot = free[0]
				free = free[1:]
			} else {
				slot = nextSlot
				nextSlot++
			}
			active[e.id] = slot
			t.slots[e.id] = slot
		}
	}
}
