package region

import (
	"github.com/soypat/glgl/math/ms2"
	"github.com/soypat/icad/subspace"
)

// Box2 is the 2-axis analogue of Box3, used when the simplex tree is
// instantiated for N=2 (a quadtree over an implicit planar solid).
type Box2 struct {
	Min, Max [2]float64
}

// NewBox2 builds a Box2 from a glgl ms2.Box.
func NewBox2(b ms2.Box) Box2 {
	return Box2{
		Min: [2]float64{float64(b.Min.X), float64(b.Min.Y)},
		Max: [2]float64{float64(b.Max.X), float64(b.Max.Y)},
	}
}

// ToMS2 converts back to a glgl ms2.Box.
func (b Box2) ToMS2() ms2.Box {
	return ms2.Box{
		Min: ms2.Vec{X: float32(b.Min[0]), Y: float32(b.Min[1])},
		Max: ms2.Vec{X: float32(b.Max[0]), Y: float32(b.Max[1])},
	}
}

func (b Box2) Dim() int { return 2 }

func (b Box2) AxisMin(axis int) float64 { return b.Min[axis] }
func (b Box2) AxisMax(axis int) float64 { return b.Max[axis] }

func (b Box2) Size() [2]float64 {
	return [2]float64{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1]}
}

func (b Box2) Center() [2]float64 {
	s := b.Size()
	return [2]float64{b.Min[0] + s[0]/2, b.Min[1] + s[1]/2}
}

func (b Box2) Contains(p [2]float64) bool {
	for i := 0; i < 2; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

func (b Box2) Corner(c subspace.CornerIndex) [2]float64 {
	var p [2]float64
	for i := 0; i < 2; i++ {
		if c.Bit(i) {
			p[i] = b.Max[i]
		} else {
			p[i] = b.Min[i]
		}
	}
	return p
}

// Split partitions the box into its 4 quadrant children.
func (b Box2) Split() [4]Box2 {
	c := b.Center()
	var out [4]Box2
	for i := 0; i < 4; i++ {
		var child Box2
		for axis := 0; axis < 2; axis++ {
			if subspace.CornerIndex(i).Bit(axis) {
				child.Min[axis], child.Max[axis] = c[axis], b.Max[axis]
			} else {
				child.Min[axis], child.Max[axis] = b.Min[axis], c[axis]
			}
		}
		out[i] = child
	}
	return out
}

func (b Box2) SubspaceBounds(floating uint8) (lo, hi []float64) {
	for axis := 0; axis < 2; axis++ {
		if floating&(1<<axis) != 0 {
			lo = append(lo, b.Min[axis])
			hi = append(hi, b.Max[axis])
		}
	}
	return lo, hi
}

func (b Box2) FixedValue(axis int, n subspace.NeighborIndex) float64 {
	if n.Pos(2)&(1<<axis) != 0 {
		return b.Max[axis]
	}
	return b.Min[axis]
}

func (b Box2) VertexFromSolution(n subspace.NeighborIndex, solved []float64) [2]float64 {
	var out [2]float64
	j := 0
	for axis := 0; axis < 2; axis++ {
		if n.Floating(2)&(1<<axis) != 0 {
			out[axis] = solved[j]
			j++
		} else {
			out[axis] = b.FixedValue(axis, n)
		}
	}
	return out
}
