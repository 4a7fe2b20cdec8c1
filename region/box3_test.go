package region

import (
	"testing"

	"github.com/soypat/icad/subspace"
)

func unitBox3() Box3 {
	return Box3{Min: [3]float64{-1, -1, -1}, Max: [3]float64{1, 1, 1}}
}

func TestBox3SplitCoversCorners(t *testing.T) {
	b := unitBox3()
	children := b.Split()
	for i, c := range children {
		want := b.Corner(subspace.CornerIndex(i))
		got := c.Corner(subspace.CornerIndex(i))
		if got != want {
			t.Errorf("child %d corner %v, want %v", i, got, want)
		}
		if !c.Contains(c.Center()) {
			t.Errorf("child %d does not contain its own center", i)
		}
	}
}

func TestBox3SubspaceBounds(t *testing.T) {
	b := unitBox3()
	lo, hi := b.SubspaceBounds(0b101) // x, z floating
	if len(lo) != 2 || len(hi) != 2 {
		t.Fatalf("expected 2 floating axes, got lo=%v hi=%v", lo, hi)
	}
	if lo[0] != -1 || hi[0] != 1 || lo[1] != -1 || hi[1] != 1 {
		t.Errorf("bounds mismatch: lo=%v hi=%v", lo, hi)
	}
}

func TestBox3FixedValueAndVertexFromSolution(t *testing.T) {
	b := unitBox3()
	// x=High, y=Low, z floating.
	n := subspace.New(subspace.High, subspace.Low, subspace.Floating)
	if v := b.FixedValue(0, n); v != 1 {
		t.Errorf("FixedValue(x) = %v, want 1", v)
	}
	if v := b.FixedValue(1, n); v != -1 {
		t.Errorf("FixedValue(y) = %v, want -1", v)
	}
	got := b.VertexFromSolution(n, []float64{0.25})
	want := [3]float64{1, -1, 0.25}
	if got != want {
		t.Errorf("VertexFromSolution = %v, want %v", got, want)
	}
}

func TestBox3Contains(t *testing.T) {
	b := unitBox3()
	if !b.Contains([3]float64{0, 0, 0}) {
		t.Error("center should be contained")
	}
	if !b.Contains(b.Min) || !b.Contains(b.Max) {
		t.Error("bounds should be inclusive")
	}
	if b.Contains([3]float64{1.1, 0, 0}) {
		t.Error("point outside box reported contained")
	}
}
