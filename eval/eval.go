// Package eval defines the evaluator contracts a Tape is driven through:
// interval evaluation for branch pruning, batched array evaluation for
// corner/vertex sampling, and feature (normal) evaluation for QEF
// construction and inside/outside classification at sharp features.
package eval

import (
	"github.com/soypat/icad/region"
	"github.com/soypat/icad/tape"
)

// State classifies the sign of an expression over a region.
type State uint8

const (
	Unknown State = iota
	Empty
	Filled
	Ambiguous
)

func (s State) String() string {
	switch s {
	case Empty:
		return "EMPTY"
	case Filled:
		return "FILLED"
	case Ambiguous:
		return "AMBIGUOUS"
	default:
		return "UNKNOWN"
	}
}

// Interval is the result of evaluating a tape over an axis-aligned box:
// a conservative [Lo, Hi] bound on the expression's value, classified
// into a State, plus whether that bound is safe to prune branches on.
// An unsafe interval (an oracle that could not be bounded) must be
// treated as Ambiguous regardless of its numeric Lo/Hi.
type Interval struct {
	Lo, Hi float64
	State  State
	Safe   bool
}

// Interval3 evaluates a tape's interval bound over a 3D box.
type Interval3 interface {
	// EvalAndPush evaluates t over box, classifies the result, and
	// pushes a pruned subtape scoped to box onto t. The returned Handle
	// must be released by the caller once the pruned subtape is no
	// longer needed, undoing the push. When the result is not Safe,
	// nothing is pushed and the returned Handle is nil.
	EvalAndPush(t *tape.Tape, box region.Box3) (Interval, *tape.Handle)
}

// Array3 evaluates a tape at a batch of 3D points.
type Array3 interface {
	// Set stores point at slot for a later Values/Derivs/GetAmbiguous
	// call. Slots are addressed [0, count).
	Set(slot int, point [3]float64)
	// Values evaluates the tape at the first count points set via Set.
	Values(t *tape.Tape, count int) []float64
	// Derivs evaluates the tape and its partial derivatives (via forward
	// accumulation alongside the value) at the first count points,
	// returning one [3]float64 gradient per point.
	Derivs(t *tape.Tape, count int) [][3]float64
	// GetAmbiguous reports, with one flag per point over the first count
	// points, which evaluated through a MIN/MAX clause whose operands' values
	// were within epsilon of each other — points where the gradient is
	// not well-defined and a feature evaluator should be consulted
	// instead of the single Derivs gradient.
	GetAmbiguous(t *tape.Tape, count int) []bool
}

// Feature3 evaluates surface normals and inside/outside state at a
// single point, used at ambiguous (multi-feature) vertices where a
// single gradient does not characterize the surface.
type Feature3 interface {
	// Features returns one outward normal per distinct feature (locally
	// linear piece of a MIN/MAX tree) active at point.
	Features(t *tape.Tape, point [3]float64) [][3]float64
	// IsInside reports whether point is inside the solid, resolving the
	// case where the raw value is exactly zero by consulting the
	// dominant feature's sign convention instead.
	IsInside(t *tape.Tape, point [3]float64) bool
}
