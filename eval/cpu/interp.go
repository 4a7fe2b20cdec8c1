package cpu

import (
	"github.com/chewxy/math32"

	"github.com/soypat/icad/eval"
	"github.com/soypat/icad/tape"
)

var (
	_ eval.Array3   = (*Points)(nil)
	_ eval.Feature3 = (*Points)(nil)
)

// AmbiguityEpsilon is how close two MIN/MAX operands' values must be,
// relative to each other, before a point is flagged ambiguous in
// GetAmbiguous. Picked as a small multiple of float32 epsilon, since
// scalar evaluation here runs in float32 to match the batched evaluator's
// precision.
const AmbiguityEpsilon = 1e-5

// Points is a CPU evaluator implementing eval.Array3 and eval.Feature3.
// Registers are computed with forward-mode differentiation alongside
// their value so Derivs needs a single pass per point, walking tape
// clauses instead of recursing through an expression tree.
type Points struct {
	pts  [][3]float64
	vars map[int]float64

	regs   []float32
	dx, dy, dz []float32
}

// NewPoints returns a Points evaluator with no points set.
func NewPoints() *Points { return &Points{vars: make(map[int]float64)} }

// SetVar binds a free-variable identifier to a value for subsequent
// evaluations. Free variables never carry a spatial derivative:
// differentiating with respect to them is out of scope.
func (p *Points) SetVar(id int, value float64) { p.vars[id] = value }

// Set implements eval.Array3.
func (p *Points) Set(slot int, point [3]float64) {
	if slot >= len(p.pts) {
		grown := make([][3]float64, slot+1)
		copy(grown, p.pts)
		p.pts = grown
	}
	p.pts[slot] = point
}

func (p *Points) ensureRegs(n int) {
	if cap(p.regs) < n {
		p.regs = make([]float32, n)
		p.dx = make([]float32, n)
		p.dy = make([]float32, n)
		p.dz = make([]float32, n)
	}
	p.regs, p.dx, p.dy, p.dz = p.regs[:n], p.dx[:n], p.dy[:n], p.dz[:n]
}

// evalOne runs the tape once at point, filling regs/dx/dy/dz, and
// reports the root clause's slot plus whether any MIN/MAX along the way
// selected between operands closer than AmbiguityEpsilon.
func (p *Points) evalOne(t *tape.Tape, point [3]float64) (rootSlot int32, ambiguous bool) {
	n := t.NumSlots()
	p.ensureRegs(n)
	regs, dx, dy, dz := p.regs, p.dx, p.dy, p.dz
	x, y, z := float32(point[0]), float32(point[1]), float32(point[2])

	root := t.RWalk(nil, func(op tape.Opcode, id, a, b tape.ClauseID) {
		slot := t.Slot(id)
		switch {
		case op.IsNullary():
			switch op {
			case tape.VarX:
				regs[slot], dx[slot], dy[slot], dz[slot] = x, 1, 0, 0
			case tape.VarY:
				regs[slot], dx[slot], dy[slot], dz[slot] = y, 0, 1, 0
			case tape.VarZ:
				regs[slot], dx[slot], dy[slot], dz[slot] = z, 0, 0, 1
			case tape.Constant:
				regs[slot], dx[slot], dy[slot], dz[slot] = float32(t.Constant(a)), 0, 0, 0
			case tape.VarFree:
				regs[slot], dx[slot], dy[slot], dz[slot] = float32(p.vars[t.Var(a)]), 0, 0, 0
			case tape.Oracle:
				regs[slot] = float32(t.OracleAt(a).Eval(point))
			}
		case op.IsUnary():
			as := t.Slot(a)
			v, gx, gy, gz := unaryDeriv(op, regs[as], dx[as], dy[as], dz[as])
			regs[slot], dx[slot], dy[slot], dz[slot] = v, gx, gy, gz
		case op.IsBinary():
			as, bs := t.Slot(a), t.Slot(b)
			v, gx, gy, gz, amb := binaryDeriv(op, regs[as], dx[as], dy[as], dz[as], regs[bs], dx[bs], dy[bs], dz[bs])
			regs[slot], dx[slot], dy[slot], dz[slot] = v, gx, gy, gz
			if amb {
				ambiguous = true
			}
		}
	})
	return t.Slot(root), ambiguous
}

// Values implements eval.Array3.
func (p *Points) Values(t *tape.Tape, count int) []float64 {
	out := make([]float64, count)
	for i := 0; i < count; i++ {
		slot, _ := p.evalOne(t, p.pts[i])
		out[i] = float64(p.regs[slot])
	}
	return out
}

// Derivs implements eval.Array3.
func (p *Points) Derivs(t *tape.Tape, count int) [][3]float64 {
	out := make([][3]float64, count)
	for i := 0; i < count; i++ {
		slot, _ := p.evalOne(t, p.pts[i])
		out[i] = [3]float64{float64(p.dx[slot]), float64(p.dy[slot]), float64(p.dz[slot])}
	}
	return out
}

// GetAmbiguous implements eval.Array3.
func (p *Points) GetAmbiguous(t *tape.Tape, count int) []bool {
	out := make([]bool, count)
	for i := 0; i < count; i++ {
		_, amb := p.evalOne(t, p.pts[i])
		out[i] = amb
	}
	return out
}

// Features implements eval.Feature3: it evaluates the gradient at point,
// and if that point was flagged ambiguous, re-evaluates once per MIN/MAX
// branch choice to recover every distinct feature normal active there.
func (p *Points) Features(t *tape.Tape, point [3]float64) [][3]float64 {
	slot, ambiguous := p.evalOne(t, point)
	primary := [3]float64{float64(p.dx[slot]), float64(p.dy[slot]), float64(p.dz[slot])}
	if !ambiguous {
		return [][3]float64{primary}
	}
	// Force each branch of every MIN/MAX in turn by pushing a KeepA-only
	// and a KeepB-only predicate, collecting the resulting gradients.
	var out [][3]float64
	seen := map[[3]float64]bool{}
	add := func(g [3]float64) {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	add(primary)
	for _, keep := range [2]tape.KeepCode{tape.KeepA, tape.KeepB} {
		h := t.Push(func(op tape.Opcode, id, a, b tape.ClauseID) tape.KeepCode {
			if op.IsMinMax() {
				return keep
			}
			return tape.KeepAlways
		}, tape.Feature, t.Active().Box())
		s, _ := p.evalOne(t, point)
		add([3]float64{float64(p.dx[s]), float64(p.dy[s]), float64(p.dz[s])})
		h.Release()
	}
	return out
}

// IsInside implements eval.Feature3.
func (p *Points) IsInside(t *tape.Tape, point [3]float64) bool {
	slot, ambiguous := p.evalOne(t, point)
	v := p.regs[slot]
	if v != 0 {
		return v < 0
	}
	if !ambiguous {
		return false
	}
	// On an exact zero at an ambiguous point, the point counts as inside
	// if a small step against any active feature's gradient reaches a
	// negative value.
	for _, g := range p.Features(t, point) {
		step := [3]float64{point[0] - float64(g[0])*1e-4, point[1] - float64(g[1])*1e-4, point[2] - float64(g[2])*1e-4}
		s, _ := p.evalOne(t, step)
		if p.regs[s] < 0 {
			return true
		}
	}
	return false
}

func unaryDeriv(op tape.Opcode, v, dx, dy, dz float32) (float32, float32, float32, float32) {
	switch op {
	case tape.Neg:
		return -v, -dx, -dy, -dz
	case tape.Sqrt:
		r := math32.Sqrt(v)
		if r == 0 {
			return 0, 0, 0, 0
		}
		f := 0.5 / r
		return r, f * dx, f * dy, f * dz
	case tape.Square:
		f := 2 * v
		return v * v, f * dx, f * dy, f * dz
	case tape.Abs:
		s := float32(1)
		if v < 0 {
			s = -1
		}
		return math32.Abs(v), s * dx, s * dy, s * dz
	case tape.Sin:
		c := math32.Cos(v)
		return math32.Sin(v), c * dx, c * dy, c * dz
	case tape.Cos:
		s := -math32.Sin(v)
		return math32.Cos(v), s * dx, s * dy, s * dz
	case tape.Tan:
		c := math32.Cos(v)
		f := 1 / (c * c)
		return math32.Tan(v), f * dx, f * dy, f * dz
	case tape.Asin:
		f := 1 / math32.Sqrt(1-v*v)
		return math32.Asin(v), f * dx, f * dy, f * dz
	case tape.Acos:
		f := -1 / math32.Sqrt(1-v*v)
		return math32.Acos(v), f * dx, f * dy, f * dz
	case tape.Atan:
		f := 1 / (1 + v*v)
		return math32.Atan(v), f * dx, f * dy, f * dz
	case tape.Exp:
		r := math32.Exp(v)
		return r, r * dx, r * dy, r * dz
	case tape.Log:
		f := 1 / v
		return math32.Log(v), f * dx, f * dy, f * dz
	default:
		return v, dx, dy, dz
	}
}

func binaryDeriv(op tape.Opcode, av, adx, ady, adz, bv, bdx, bdy, bdz float32) (v, gx, gy, gz float32, ambiguous bool) {
	switch op {
	case tape.Add:
		return av + bv, adx + bdx, ady + bdy, adz + bdz, false
	case tape.Sub:
		return av - bv, adx - bdx, ady - bdy, adz - bdz, false
	case tape.Mul:
		return av * bv, adx*bv + av*bdx, ady*bv + av*bdy, adz*bv + av*bdz, false
	case tape.Div:
		inv := 1 / bv
		inv2 := inv * inv
		return av * inv, (adx*bv - av*bdx) * inv2, (ady*bv - av*bdy) * inv2, (adz*bv - av*bdz) * inv2, false
	case tape.Min:
		amb := math32.Abs(av-bv) <= AmbiguityEpsilon*(1+math32.Abs(av)+math32.Abs(bv))
		if av <= bv {
			return av, adx, ady, adz, amb
		}
		return bv, bdx, bdy, bdz, amb
	case tape.Max:
		amb := math32.Abs(av-bv) <= AmbiguityEpsilon*(1+math32.Abs(av)+math32.Abs(bv))
		if av >= bv {
			return av, adx, ady, adz, amb
		}
		return bv, bdx, bdy, bdz, amb
	case tape.Atan2:
		denom := av*av + bv*bv
		f := 1 / denom
		return math32.Atan2(av, bv), f * (bv*adx - av*bdx), f * (bv*ady - av*bdy), f * (bv*adz - av*bdz), false
	case tape.Pow:
		r := math32.Pow(av, bv)
		f := bv * math32.Pow(av, bv-1)
		return r, f * adx, f * ady, f * adz, false
	case tape.Mod:
		return math32.Mod(av, bv), adx, ady, adz, false
	default:
		return av, adx, ady, adz, false
	}
}
