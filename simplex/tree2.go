package simplex

import (
	"golang.org/x/sync/errgroup"

	"github.com/soypat/icad/eval"
	"github.com/soypat/icad/eval/cpu"
	"github.com/soypat/icad/internal/telemetry"
	"github.com/soypat/icad/qef"
	"github.com/soypat/icad/region"
	"github.com/soypat/icad/subspace"
	"github.com/soypat/icad/tape"
)

// Tree2 is the 2D analogue of Tree3: a quadtree with 4 quadrant children
// per branch. It reuses the eval package's 3D evaluator contracts with
// the Z axis pinned to zero, since the tape itself has no notion of
// dimensionality — a 2D shape is just one whose expressions never
// reference Z.
type Tree2 struct {
	parent      *Tree2
	parentIndex int
	children    [4]*Tree2
	leaf        *Leaf
	state       eval.State
	region      region.Box2
	level       int
}

// Reset implements pool.Resettable.
func (n *Tree2) Reset() {
	n.parent = nil
	n.parentIndex = 0
	n.children = [4]*Tree2{}
	n.leaf = nil
	n.state = eval.Unknown
	n.region = region.Box2{}
	n.level = 0
}

func (n *Tree2) IsLeaf() bool         { return n.children[0] == nil }
func (n *Tree2) State() eval.State    { return n.state }
func (n *Tree2) Region() region.Box2  { return n.region }
func (n *Tree2) Leaf() *Leaf          { return n.leaf }

func (n *Tree2) Walk(fn func(*Tree2)) {
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

// Build2 is Build's 2D counterpart.
func Build2(t *tape.Tape, box region.Box2, opts BuildOptions, ev Evaluators) *Tree2 {
	pools := newPools(2)
	return build2(t, box, opts.MaxLevel, opts, ev, pools)
}

func to3(b region.Box2) region.Box3 {
	return region.Box3{
		Min: [3]float64{b.Min[0], b.Min[1], 0},
		Max: [3]float64{b.Max[0], b.Max[1], 0},
	}
}

func build2(t *tape.Tape, box region.Box2, level int, opts BuildOptions, ev Evaluators, pools *Pools) *Tree2 {
	iv, handle := ev.Interval.EvalAndPush(t, to3(box))
	node := pools.getTree2()
	node.state, node.region, node.level = iv.State, box, level
	if handle != nil {
		defer handle.Release()
	}

	if iv.State == eval.Empty || iv.State == eval.Filled {
		subs := buildLeafSubspaces2(t, ev.Points, box, pools)
		solveSubspaces(subs, box, 2, qef.EigenvalueCutoff)
		classifySignsUniform(subs, iv.State == eval.Filled)
		leaf := pools.getLeaf()
		leaf.Sub = append(leaf.Sub, subs...)
		leaf.Level = 0
		node.leaf = leaf
		return node
	}

	if level <= 0 {
		subs := buildLeafSubspaces2(t, ev.Points, box, pools)
		solveSubspaces(subs, box, 2, qef.EigenvalueCutoff)
		classifySigns(subs, t, ev.Points)
		leaf := pools.getLeaf()
		leaf.Sub = append(leaf.Sub, subs...)
		leaf.Level = 0
		node.leaf = leaf
		return node
	}

	quads := box.Split()
	var kids [4]*Tree2
	g := new(errgroup.Group)
	for i := 0; i < 4; i++ {
		i := i
		g.Go(func() error {
			childTape := t.Clone()
			kids[i] = build2(childTape, quads[i], level-1, opts, ev.Fresh(), pools)
			kids[i].parentIndex = i
			return nil
		})
	}
	_ = g.Wait()

	node.children = kids
	for i := range kids {
		kids[i].parent = node
	}
	merged := attemptCollapse2(&kids, box, opts, t, ev.Points, pools)
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
			pools.releaseTree2(kids[i])
		}
		node.children = [4]*Tree2{}
	}
	return node
}

// buildLeafSubspaces2 is buildLeafSubspaces3's 2D counterpart: it samples
// the array evaluator at the cell's 4 corners (padded to 3D with Z=0 for
// the evaluator's Z-pinned contract), keeping only the first two gradient
// components.
func buildLeafSubspaces2(t *tape.Tape, pts *cpu.Points, box region.Box2, pools *Pools) []*LeafSubspace {
	n := subspace.NumSubspaces(2)
	out := make([]*LeafSubspace, n)
	for i := 0; i < n; i++ {
		out[i] = pools.getSubspace()
	}

	numCorners := subspace.NumCorners(2)
	corners := make([][2]float64, numCorners)
	for c := 0; c < numCorners; c++ {
		corners[c] = box.Corner(subspace.CornerIndex(c))
		pts.Set(c, [3]float64{corners[c][0], corners[c][1], 0})
	}
	values := pts.Values(t, numCorners)
	derivs := pts.Derivs(t, numCorners)
	ambiguous := pts.GetAmbiguous(t, numCorners)

	for c := 0; c < numCorners; c++ {
		target := int(subspace.CornerIndex(c).ToNeighborIndex(2))
		p2 := corners[c]
		p3 := [3]float64{p2[0], p2[1], 0}
		ls := out[target]
		if !ambiguous[c] {
			g := sanitizeGradient(derivs[c])
			ls.QEF.Insert(p2[:], g[:2], values[c])
			continue
		}
		for _, g := range pts.Features(t, p3) {
			g = sanitizeGradient(g)
			ls.QEF.Insert(p2[:], g[:2], values[c])
		}
	}
	return out
}

func attemptCollapse2(children *[4]*Tree2, box region.Box2, opts BuildOptions, t *tape.Tape, pts *cpu.Points, pools *Pools) *Leaf {
	dim := 2
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

// AssignIndices2 is AssignIndices's 2D counterpart.
func AssignIndices2(root *Tree2, dim int) {
	next := uint64(1)
	seen := make(map[string]uint64)
	root.Walk(func(n *Tree2) {
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
