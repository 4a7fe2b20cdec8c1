// Package region implements the axis-aligned rectangular domains the
// simplex tree recurses over: split into children, corner lookup, and
// projection onto a subspace's floating axes for QEF solving.
package region

import (
	"github.com/soypat/glgl/math/ms3"
	"github.com/soypat/icad/subspace"
)

// Box3 is a 3-axis axis-aligned region, stored in float64 for the linear
// algebra QEF solving does, independent of the float32 arrays the point
// evaluators use.
type Box3 struct {
	Min, Max [3]float64
}

// NewBox3 builds a Box3 from a glgl ms3.Box (as used by
// glbuild.Shader3D.Bounds()).
func NewBox3(b ms3.Box) Box3 {
	return Box3{
		Min: [3]float64{float64(b.Min.X), float64(b.Min.Y), float64(b.Min.Z)},
		Max: [3]float64{float64(b.Max.X), float64(b.Max.Y), float64(b.Max.Z)},
	}
}

// ToMS3 converts back to a glgl ms3.Box, e.g. to call an evaluator that
// only understands float32 shader-style boxes.
func (b Box3) ToMS3() ms3.Box {
	return ms3.Box{
		Min: ms3.Vec{X: float32(b.Min[0]), Y: float32(b.Min[1]), Z: float32(b.Min[2])},
		Max: ms3.Vec{X: float32(b.Max[0]), Y: float32(b.Max[1]), Z: float32(b.Max[2])},
	}
}

// Dim reports the number of axes: always 3 (Box2.Dim reports 2).
func (b Box3) Dim() int { return 3 }

func (b Box3) AxisMin(axis int) float64 { return b.Min[axis] }
func (b Box3) AxisMax(axis int) float64 { return b.Max[axis] }

// Size returns the per-axis extent of the box.
func (b Box3) Size() [3]float64 {
	return [3]float64{b.Max[0] - b.Min[0], b.Max[1] - b.Min[1], b.Max[2] - b.Min[2]}
}

// Center returns the box's centroid.
func (b Box3) Center() [3]float64 {
	s := b.Size()
	return [3]float64{b.Min[0] + s[0]/2, b.Min[1] + s[1]/2, b.Min[2] + s[2]/2}
}

// Contains reports whether p lies within the box (bounds inclusive).
func (b Box3) Contains(p [3]float64) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i] || p[i] > b.Max[i] {
			return false
		}
	}
	return true
}

// Corner returns the coordinates of one of the box's 8 corners.
func (b Box3) Corner(c subspace.CornerIndex) [3]float64 {
	var p [3]float64
	for i := 0; i < 3; i++ {
		if c.Bit(i) {
			p[i] = b.Max[i]
		} else {
			p[i] = b.Min[i]
		}
	}
	return p
}

// Split partitions the box into its 8 octant children, indexed the same
// way as Corner: child i occupies the octant adjacent to corner i.
func (b Box3) Split() [8]Box3 {
	c := b.Center()
	var out [8]Box3
	for i := 0; i < 8; i++ {
		var child Box3
		for axis := 0; axis < 3; axis++ {
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

// SubspaceBounds returns the lower and upper bounds, restricted to the
// axes marked floating, in increasing axis order — the box argument
// qef.QEF.SolveBounded expects when solving for a subspace's vertex.
func (b Box3) SubspaceBounds(floating uint8) (lo, hi []float64) {
	for axis := 0; axis < 3; axis++ {
		if floating&(1<<axis) != 0 {
			lo = append(lo, b.Min[axis])
			hi = append(hi, b.Max[axis])
		}
	}
	return lo, hi
}

// FixedValue returns the coordinate a fixed (non-floating) axis takes
// on subspace n: Min if that axis is Low, Max if High.
func (b Box3) FixedValue(axis int, n subspace.NeighborIndex) float64 {
	if n.Pos(3)&(1<<axis) != 0 {
		return b.Max[axis]
	}
	return b.Min[axis]
}

// VertexFromSolution assembles a full 3D point from a reduced-dimension
// QEF solution (one component per floating axis, in increasing axis
// order) plus the region's fixed-axis coordinates for subspace n.
func (b Box3) VertexFromSolution(n subspace.NeighborIndex, solved []float64) [3]float64 {
	var out [3]float64
	j := 0
	for axis := 0; axis < 3; axis++ {
		if n.Floating(3)&(1<<axis) != 0 {
			out[axis] = solved[j]
			j++
		} else {
			out[axis] = b.FixedValue(axis, n)
		}
	}
	return out
}
