package simplex

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/soypat/icad/eval"
	"github.com/soypat/icad/eval/cpu"
	"github.com/soypat/icad/internal/telemetry"
	"github.com/soypat/icad/qef"
	"github.com/soypat/icad/region"
	"github.com/soypat/icad/subspace"
	"github.com/soypat/icad/tape"
)

// BuildOptions controls when Build stops subdividing and when a branch
// collapses back into a single leaf.
type BuildOptions struct {
	// MaxLevel bounds recursion depth: the root starts at MaxLevel and
	// each split decrements it by one; a cell reaching level 0 always
	// becomes a leaf regardless of its ambiguity.
	MaxLevel int
	// MaxErr is the worst per-subspace QEF residual a merged branch may
	// have and still collapse into a single leaf.
	MaxErr float64
	// Verbose, when set, logs a line via internal/telemetry.Logger each
	// time a branch is attempted for collapse.
	Verbose bool
}

// Evaluators bundles the interval and point evaluators Build drives a
// tape through. Fresh returns a bundle with independent scratch state,
// since neither evaluator is safe for concurrent use.
type Evaluators struct {
	Interval *cpu.Interval
	Points   *cpu.Points
}

// Fresh returns a new Evaluators with empty scratch state, for handing to
// a sibling branch's own goroutine.
func (e Evaluators) Fresh() Evaluators {
	return Evaluators{Interval: &cpu.Interval{}, Points: cpu.NewPoints()}
}

// Tree3 is a node of the 3D simplex tree: either an interior branch with
// 8 octant children, or a leaf (its own subdivision bottomed out, or its
// children's QEFs collapsed cleanly into one).
type Tree3 struct {
	parent      *Tree3
	parentIndex int
	children    [8]*Tree3
	leaf        *Leaf
	state       eval.State
	region      region.Box3
	level       int
}

// Reset implements pool.Resettable.
func (n *Tree3) Reset() {
	n.parent = nil
	n.parentIndex = 0
	n.children = [8]*Tree3{}
	n.leaf = nil
	n.state = eval.Unknown
	n.region = region.Box3{}
	n.level = 0
}

// IsLeaf reports whether n has no children: a cell that became a leaf
// directly (EMPTY/FILLED, or at level 0) or a branch whose children
// collapsed into one leaf.
func (n *Tree3) IsLeaf() bool { return n.children[0] == nil }

// State returns n's classification against the surface.
func (n *Tree3) State() eval.State { return n.state }

// Region returns the box n occupies.
func (n *Tree3) Region() region.Box3 { return n.region }

// Leaf returns n's leaf data, or nil for a branch whose children did not
// collapse.
func (n *Tree3) Leaf() *Leaf { return n.leaf }

// Walk visits n and, recursively, every descendant, in depth-first,
// parent-before-child order.
func (n *Tree3) Walk(fn func(*Tree3)) {
	fn(n)
	if n.IsLeaf() {
		return
	}
	for _, c := range n.children {
		if c != nil {
			c.Walk(fn)
		}
	}
}

// Build constructs a simplex tree over box by recursively subdividing
// wherever the tape's interval bound is ambiguous, bottoming out at
// opts.MaxLevel, then collapsing branches back to a single leaf wherever
// the merged QEF error stays under opts.MaxErr. t is consumed as the base
// program; sibling branches run concurrently on independent clones of t.
func Build(t *tape.Tape, box region.Box3, opts BuildOptions, ev Evaluators) *Tree3 {
	pools := newPools(3)
	return build3(t, box, opts.MaxLevel, opts, ev, pools)
}

func build3(t *tape.Tape, box region.Box3, level int, opts BuildOptions, ev Evaluators, pools *Pools) *Tree3 {
	iv, handle := ev.Interval.EvalAndPush(t, box)
	node := pools.getTree3()
	node.state, node.region, node.level = iv.State, box, level
	if handle != nil {
		defer handle.Release()
	}

	if iv.State == eval.Empty || iv.State == eval.Filled {
		subs := buildLeafSubspaces3(t, ev.Points, box, pools)
		solveSubspaces(subs, box, 3, qef.EigenvalueCutoff)
		classifySignsUniform(subs, iv.State == eval.Filled)
		leaf := pools.getLeaf()
		leaf.Sub = append(leaf.Sub, subs...)
		leaf.Level = 0
		node.leaf = leaf
		return node
	}

	if level <= 0 {
		subs := buildLeafSubspaces3(t, ev.Points, box, pools)
		solveSubspaces(subs, box, 3, qef.EigenvalueCutoff)
		classifySigns(subs, t, ev.Points)
		leaf := pools.getLeaf()
		leaf.Sub = append(leaf.Sub, subs...)
		leaf.Level = 0
		node.leaf = leaf
		return node
	}

	octants := box.Split()
	var kids [8]*Tree3
	g := new(errgroup.Group)
	for i := 0; i < 8; i++ {
		i := i
		g.Go(func() error {
			childTape := t.Clone()
			kids[i] = build3(childTape, octants[i], level-1, opts, ev.Fresh(), pools)
			kids[i].parentIndex = i
			return nil
		})
	}
	_ = g.Wait() // build3 never returns a non-nil error

	node.children = kids
	for i := range kids {
		kids[i].parent = node
	}
	merged := attemptCollapse(&kids, box, 3, opts, t, ev.Points, pools)
	if opts.Verbose {
		if merged != nil {
			telemetry.Logger.Printf("collapsed level %d branch at %v into a leaf", level, box)
		} else {
			telemetry.Logger.Printf("kept level %d branch at %v (no collapse)", level, box)
		}
	}
	if merged != nil {
		merged.Level = opts.MaxLevel - level + 1
		node.leaf = merged
		for i := range kids {
			pools.releaseTree3(kids[i])
		}
		node.children = [8]*Tree3{}
	}
	return node
}

// buildLeafSubspaces3 samples the array evaluator at the cell's 8
// corners in a single batched call each for value, gradient and
// ambiguity, inserting one QEF row per corner (real value, sanitized
// gradient) into that corner's own subspace; a corner flagged ambiguous
// is instead expanded into one row per distinct feature normal found
// there, all sharing the corner's scalar value. Every non-corner
// subspace (edge/face/interior) gets no direct sample: solveSubspaces
// derives its QEF purely by summing the corner QEFs it contains.
func buildLeafSubspaces3(t *tape.Tape, pts *cpu.Points, box region.Box3, pools *Pools) []*LeafSubspace {
	n := subspace.NumSubspaces(3)
	out := make([]*LeafSubspace, n)
	for i := 0; i < n; i++ {
		out[i] = pools.getSubspace()
	}

	numCorners := subspace.NumCorners(3)
	corners := make([][3]float64, numCorners)
	for c := 0; c < numCorners; c++ {
		corners[c] = box.Corner(subspace.CornerIndex(c))
		pts.Set(c, corners[c])
	}
	values := pts.Values(t, numCorners)
	derivs := pts.Derivs(t, numCorners)
	ambiguous := pts.GetAmbiguous(t, numCorners)

	for c := 0; c < numCorners; c++ {
		target := int(subspace.CornerIndex(c).ToNeighborIndex(3))
		p := corners[c]
		ls := out[target]
		if !ambiguous[c] {
			g := sanitizeGradient(derivs[c])
			ls.QEF.Insert(p[:], g[:], values[c])
			continue
		}
		for _, g := range pts.Features(t, p) {
			g = sanitizeGradient(g)
			ls.QEF.Insert(p[:], g[:], values[c])
		}
	}
	return out
}

// attemptCollapse remaps and sums every child leaf's per-subspace QEFs
// into box's own subspace numbering (mirroring how a leaf's own QEFs are
// laid out), then solves them exactly as a fresh leaf would. It returns
// nil if any child is itself an unresolved branch (nothing to merge yet)
// or the merged solve's worst residual exceeds opts.MaxErr.
func attemptCollapse(children *[8]*Tree3, box region.Box3, dim int, opts BuildOptions, t *tape.Tape, pts *cpu.Points, pools *Pools) *Leaf {
	for _, c := range children {
		if c != nil && c.state == eval.Ambiguous && c.leaf == nil {
			return nil
		}
	}
	n := subspace.NumSubspaces(dim)
	merged := make([]*LeafSubspace, n)
	for i := range merged {
		merged[i] = pools.getSubspace()
	}
	numCorners := subspace.NumCorners(dim)
	for i := 0; i < numCorners; i++ {
		child := children[i]
		if child == nil || child.leaf == nil {
			continue
		}
		for j := 0; j < n; j++ {
			cand := subspace.NeighborIndex(j)
			fixed := cand.Fixed(dim)
			pos := cand.Pos(dim)
			valid := true
			for axis := 0; axis < dim && valid; axis++ {
				if fixed&(1<<axis) == 0 {
					continue
				}
				childHigh := uint8(i)&(1<<axis) != 0
				axisHigh := pos&(1<<axis) != 0
				if !axisHigh && childHigh {
					valid = false
				}
			}
			if !valid {
				continue
			}
			targetFloating := cand.Floating(dim)
			targetPos := pos
			for axis := 0; axis < dim; axis++ {
				if fixed&(1<<axis) == 0 {
					continue
				}
				childHigh := uint8(i)&(1<<axis) != 0
				axisHigh := pos&(1<<axis) != 0
				if childHigh != axisHigh {
					targetFloating |= 1 << axis
					targetPos &^= 1 << axis
				}
			}
			target := subspace.FromPosAndFloating(dim, targetPos, targetFloating)
			merged[target].QEF.Add(child.leaf.Sub[j].QEF)
		}
	}
	maxErr := solveSubspaces(merged, box, dim, qef.EigenvalueCutoff)
	if maxErr > opts.MaxErr {
		for _, ls := range merged {
			pools.putSubspace(ls)
		}
		return nil
	}
	classifySigns(merged, t, pts)
	leaf := pools.getLeaf()
	leaf.Sub = append(leaf.Sub, merged...)
	return leaf
}

// AssignIndices walks a built tree and assigns each solved subspace
// vertex a global index, shared between any two subspaces that solved to
// the same geometric position: two same-level adjacent cells accumulate
// a shared face's QEF from the identical corner samples, so their solved
// vertices are bit-identical and collide on the same canonical key. This
// replaces a neighbor-adoption walk with a plain post-pass registry.
func AssignIndices(root *Tree3, dim int) {
	next := uint64(1)
	seen := make(map[string]uint64)
	root.Walk(func(n *Tree3) {
		if n.leaf == nil {
			return
		}
		for i, ls := range n.leaf.Sub {
			if !ls.Solved {
				continue
			}
			key := canonicalKey(subspace.NeighborIndex(i).Floating(dim), ls.Vert)
			id, ok := seen[key]
			if !ok {
				id = next
				next++
				seen[key] = id
			}
			ls.Index = id
		}
	})
}

func canonicalKey(floating uint8, vert []float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", floating)
	for _, v := range vert {
		fmt.Fprintf(&sb, ":%.9f", math.Round(v*1e9)/1e9)
	}
	return sb.String()
}
