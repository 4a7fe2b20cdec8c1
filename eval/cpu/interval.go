// Package cpu implements the eval package's Interval3, Array3 and
// Feature3 contracts with a plain opcode-dispatch interpreter over a
// *tape.Tape.
package cpu

import (
	"math"

	"github.com/soypat/icad/eval"
	"github.com/soypat/icad/region"
	"github.com/soypat/icad/tape"
)

// Interval evaluates a tape's conservative value bound over a 3D box.
// Not safe for concurrent use; each worker owns its own Interval, mirroring
// the one-Tape-per-thread rule it is always paired with.
type Interval struct {
	lo, hi []float64
}

var _ eval.Interval3 = (*Interval)(nil)

// EvalAndPush implements eval.Interval3.
func (iv *Interval) EvalAndPush(t *tape.Tape, box region.Box3) (eval.Interval, *tape.Handle) {
	n := t.NumSlots()
	if cap(iv.lo) < n {
		iv.lo = make([]float64, n)
		iv.hi = make([]float64, n)
	}
	lo, hi := iv.lo[:n], iv.hi[:n]

	safe := true
	rootID := t.RWalk(nil, func(op tape.Opcode, id, a, b tape.ClauseID) {
		slot := t.Slot(id)
		switch {
		case op.IsNullary():
			l, h := nullaryInterval(t, op, a, box)
			if op == tape.Oracle {
				if _, _, ok := t.OracleAt(a).IntervalBound(box); !ok {
					safe = false
				}
			}
			lo[slot], hi[slot] = l, h
		case op.IsUnary():
			as := t.Slot(a)
			l, h := unaryInterval(op, lo[as], hi[as])
			lo[slot], hi[slot] = l, h
		case op.IsBinary():
			as, bs := t.Slot(a), t.Slot(b)
			l, h, ok := binaryInterval(op, lo[as], hi[as], lo[bs], hi[bs])
			if !ok {
				safe = false
			}
			lo[slot], hi[slot] = l, h
		}
	})

	rootSlot := t.Slot(rootID)
	result := eval.Interval{Lo: lo[rootSlot], Hi: hi[rootSlot], Safe: safe}
	switch {
	case !safe:
		result.State = eval.Ambiguous
	case result.Hi < 0:
		result.State = eval.Filled
	case result.Lo > 0:
		result.State = eval.Empty
	default:
		result.State = eval.Ambiguous
	}

	if !safe {
		return result, nil
	}

	// Disjoint operand intervals resolve a MIN/MAX to its dominant
	// operand; intervals that overlap, or merely touch at one point, keep
	// both operands.
	pred := func(op tape.Opcode, id, a, b tape.ClauseID) tape.KeepCode {
		if !op.IsMinMax() {
			return tape.KeepAlways
		}
		la, ha := lo[t.Slot(a)], hi[t.Slot(a)]
		lb, hb := lo[t.Slot(b)], hi[t.Slot(b)]
		switch op {
		case tape.Min:
			if ha < lb {
				return tape.KeepA
			}
			if hb < la {
				return tape.KeepB
			}
		case tape.Max:
			if la > hb {
				return tape.KeepA
			}
			if lb > ha {
				return tape.KeepB
			}
		}
		return tape.KeepBoth
	}
	h := t.Push(pred, tape.Interval, box)
	return result, h
}

// nullaryInterval bounds a leaf clause: X/Y/Z take the box's extent on
// that axis, CONSTANT is a point interval, VAR_FREE is treated as
// unbounded over its declared range (unknown to the tape, so [-Inf,+Inf]
// — a free variable is never pruned on, only differentiated against,
// which is itself out of scope per spec's non-goals), and ORACLE defers
// to its own conservative bound.
func nullaryInterval(t *tape.Tape, op tape.Opcode, a tape.ClauseID, box region.Box3) (lo, hi float64) {
	switch op {
	case tape.VarX:
		return box.Min[0], box.Max[0]
	case tape.VarY:
		return box.Min[1], box.Max[1]
	case tape.VarZ:
		return box.Min[2], box.Max[2]
	case tape.Constant:
		v := t.Constant(a)
		return v, v
	case tape.VarFree:
		return math.Inf(-1), math.Inf(1)
	case tape.Oracle:
		o := t.OracleAt(a)
		l, h, safe := o.IntervalBound(box)
		if !safe {
			return math.Inf(-1), math.Inf(1)
		}
		return l, h
	default:
		return math.Inf(-1), math.Inf(1)
	}
}

func unaryInterval(op tape.Opcode, l, h float64) (float64, float64) {
	switch op {
	case tape.Neg:
		return -h, -l
	case tape.Sqrt:
		if h < 0 {
			return math.NaN(), math.NaN()
		}
		lo := 0.0
		if l > 0 {
			lo = math.Sqrt(l)
		}
		return lo, math.Sqrt(math.Max(h, 0))
	case tape.Square:
		if l >= 0 {
			return l * l, h * h
		}
		if h <= 0 {
			return h * h, l * l
		}
		return 0, math.Max(l*l, h*h)
	case tape.Abs:
		if l >= 0 {
			return l, h
		}
		if h <= 0 {
			return -h, -l
		}
		return 0, math.Max(-l, h)
	case tape.Sin, tape.Cos, tape.Tan:
		return trigInterval(op, l, h)
	case tape.Asin:
		return math.Asin(clamp(l, -1, 1)), math.Asin(clamp(h, -1, 1))
	case tape.Acos:
		return math.Acos(clamp(h, -1, 1)), math.Acos(clamp(l, -1, 1))
	case tape.Atan:
		return math.Atan(l), math.Atan(h)
	case tape.Exp:
		return math.Exp(l), math.Exp(h)
	case tape.Log:
		if h <= 0 {
			return math.NaN(), math.NaN()
		}
		lo := math.Inf(-1)
		if l > 0 {
			lo = math.Log(l)
		}
		return lo, math.Log(h)
	default:
		return math.Inf(-1), math.Inf(1)
	}
}

// trigInterval widens sin/cos/tan to their full range whenever the input
// interval spans more than a period, otherwise it falls back to the
// range's full bound: a coarse but always-conservative approximation, in
// place of tracking which extrema the interval crosses.
func trigInterval(op tape.Opcode, l, h float64) (float64, float64) {
	const twoPi = 2 * math.Pi
	if h-l >= twoPi {
		if op == tape.Tan {
			return math.Inf(-1), math.Inf(1)
		}
		return -1, 1
	}
	switch op {
	case tape.Sin, tape.Cos:
		return -1, 1 // conservative: extrema detection within the period is out of scope
	default: // Tan: unbounded whenever the interval could straddle an asymptote
		return math.Inf(-1), math.Inf(1)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// binaryInterval returns the interval bound for a binary opcode and
// whether the bound is safe (DIV/MOD/POW can be unsafe across a
// singularity, forcing the caller to AMBIGUOUS rather than trust the
// numeric bound).
func binaryInterval(op tape.Opcode, la, ha, lb, hb float64) (lo, hi float64, safe bool) {
	switch op {
	case tape.Add:
		return la + lb, ha + hb, true
	case tape.Sub:
		return la - hb, ha - lb, true
	case tape.Mul:
		p := [4]float64{la * lb, la * hb, ha * lb, ha * hb}
		lo, hi = p[0], p[0]
		for _, v := range p[1:] {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		return lo, hi, true
	case tape.Div:
		if lb <= 0 && hb >= 0 {
			return math.Inf(-1), math.Inf(1), false
		}
		p := [4]float64{la / lb, la / hb, ha / lb, ha / hb}
		lo, hi = p[0], p[0]
		for _, v := range p[1:] {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		return lo, hi, true
	case tape.Min:
		return math.Min(la, lb), math.Min(ha, hb), true
	case tape.Max:
		return math.Max(la, lb), math.Max(ha, hb), true
	case tape.Atan2:
		return -math.Pi, math.Pi, true
	case tape.Pow:
		if la < 0 {
			return math.Inf(-1), math.Inf(1), false
		}
		p := [4]float64{math.Pow(la, lb), math.Pow(la, hb), math.Pow(ha, lb), math.Pow(ha, hb)}
		lo, hi = p[0], p[0]
		for _, v := range p[1:] {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		return lo, hi, true
	case tape.Mod:
		if lb <= 0 {
			return math.Inf(-1), math.Inf(1), false
		}
		if la < 0 {
			return -hb, hb, true
		}
		return 0, hb, true
	default:
		return math.Inf(-1), math.Inf(1), false
	}
}
