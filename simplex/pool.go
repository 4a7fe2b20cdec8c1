package simplex

import (
	"errors"

	"github.com/soypat/icad/pool"
	"github.com/soypat/icad/qef"
)

// ErrDoubleRelease is raised when a LeafSubspace already returned to its
// pool is released a second time. It signals a bug in the collapse walk
// (a child released twice, or a live subspace released from two paths)
// rather than a condition callers should recover from.
var ErrDoubleRelease = errors.New("simplex: leaf subspace released twice")

// Pools is the set of arenas Build/Build2 draw trees, leaves and leaf
// subspaces from, and return them to on collapse. Go's generics tie a
// pool.Pool's free list to a single element type, so unlike a single
// pool.Next()-chained pool, Pools keeps one pool.Pool per type and
// cascades releases by hand: releasing a tree releases its leaf, which
// releases its subspaces.
type Pools struct {
	dim       int
	subspaces *pool.Pool[*LeafSubspace]
	leaves    *pool.Pool[*Leaf]
	trees3    *pool.Pool[*Tree3]
	trees2    *pool.Pool[*Tree2]
}

// newPools returns empty Pools for building a tree over dim axes.
func newPools(dim int) *Pools {
	p := &Pools{dim: dim}
	p.subspaces = pool.New(func() *LeafSubspace { return &LeafSubspace{QEF: qef.New(dim)} })
	p.leaves = pool.New(func() *Leaf { return &Leaf{} })
	p.trees3 = pool.New(func() *Tree3 { return &Tree3{} })
	p.trees2 = pool.New(func() *Tree2 { return &Tree2{} })
	return p
}

// getSubspace draws a LeafSubspace from the pool, restoring its QEF
// (nilled by Reset) and clearing the release guard.
func (p *Pools) getSubspace() *LeafSubspace {
	ls := p.subspaces.Get()
	ls.released = false
	if ls.QEF == nil {
		ls.QEF = qef.New(p.dim)
	}
	return ls
}

// putSubspace returns ls to the pool, panicking with ErrDoubleRelease if
// it was already released.
func (p *Pools) putSubspace(ls *LeafSubspace) {
	if ls.released {
		panic(ErrDoubleRelease)
	}
	ls.released = true
	p.subspaces.Put(ls)
}

// getLeaf draws a Leaf from the pool with an empty Sub slice.
func (p *Pools) getLeaf() *Leaf {
	l := p.leaves.Get()
	l.Sub = l.Sub[:0]
	return l
}

// putLeaf releases l's subspaces and then l itself.
func (p *Pools) putLeaf(l *Leaf) {
	for _, ls := range l.Sub {
		p.putSubspace(ls)
	}
	p.leaves.Put(l)
}

func (p *Pools) getTree3() *Tree3 { return p.trees3.Get() }

// releaseTree3 recursively releases n's leaf (if any) and every child,
// then n itself. Called once a branch's children have been folded into
// a collapsed leaf and are no longer reachable from the tree.
func (p *Pools) releaseTree3(n *Tree3) {
	if n == nil {
		return
	}
	if n.leaf != nil {
		p.putLeaf(n.leaf)
		n.leaf = nil
	}
	for _, c := range n.children {
		if c != nil {
			p.releaseTree3(c)
		}
	}
	n.children = [8]*Tree3{}
	p.trees3.Put(n)
}

func (p *Pools) getTree2() *Tree2 { return p.trees2.Get() }

// releaseTree2 is releaseTree3's 2D counterpart.
func (p *Pools) releaseTree2(n *Tree2) {
	if n == nil {
		return
	}
	if n.leaf != nil {
		p.putLeaf(n.leaf)
		n.leaf = nil
	}
	for _, c := range n.children {
		if c != nil {
			p.releaseTree2(c)
		}
	}
	n.children = [4]*Tree2{}
	p.trees2.Put(n)
}
