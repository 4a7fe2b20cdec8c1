package region

import (
	"testing"

	"github.com/soypat/icad/subspace"
)

func TestBox2SplitCoversCorners(t *testing.T) {
	b := Box2{Min: [2]float64{-1, -1}, Max: [2]float64{1, 1}}
	children := b.Split()
	for i, c := range children {
		if !c.Contains(c.Center()) {
			t.Errorf("child %d does not contain its own center", i)
		}
	}
	// Every original corner must be contained by some child quadrant.
	for c := 0; c < subspace.NumCorners(2); c++ {
		corner := b.Corner(subspace.CornerIndex(c))
		found := false
		for _, child := range children {
			if child.Contains(corner) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("corner %v not contained by any split child", corner)
		}
	}
}

func TestBox2SubspaceBounds(t *testing.T) {
	b := Box2{Min: [2]float64{0, 0}, Max: [2]float64{2, 4}}
	lo, hi := b.SubspaceBounds(0b11) // both axes floating
	if len(lo) != 2 || len(hi) != 2 {
		t.Fatalf("SubspaceBounds(0b11) returned %d/%d bounds, want 2/2", len(lo), len(hi))
	}
	if lo[0] != 0 || hi[0] != 2 || lo[1] != 0 || hi[1] != 4 {
		t.Errorf("SubspaceBounds(0b11) = %v/%v, want [0,0]/[2,4]", lo, hi)
	}

	lo, hi = b.SubspaceBounds(0b01) // only axis 0 floating
	if len(lo) != 1 || len(hi) != 1 {
		t.Fatalf("SubspaceBounds(0b01) returned %d/%d bounds, want 1/1", len(lo), len(hi))
	}
}

func TestBox2FixedValueAndVertexFromSolution(t *testing.T) {
	b := Box2{Min: [2]float64{0, 0}, Max: [2]float64{2, 4}}
	corner := subspace.New(subspace.High, subspace.Low)
	if got := b.FixedValue(0, corner); got != 2 {
		t.Errorf("FixedValue(axis0, High) = %v, want 2", got)
	}
	if got := b.FixedValue(1, corner); got != 0 {
		t.Errorf("FixedValue(axis1, Low) = %v, want 0", got)
	}

	edge := subspace.New(subspace.High, subspace.Floating)
	v := b.VertexFromSolution(edge, []float64{3.5})
	if v[0] != 2 || v[1] != 3.5 {
		t.Errorf("VertexFromSolution = %v, want [2, 3.5]", v)
	}
}

func TestBox2Contains(t *testing.T) {
	b := Box2{Min: [2]float64{-1, -1}, Max: [2]float64{1, 1}}
	if !b.Contains([2]float64{0, 0}) {
		t.Error("origin should be contained")
	}
	if b.Contains([2]float64{2, 0}) {
		t.Error("point outside x range should not be contained")
	}
}
