package simplex

import (
	"testing"

	"github.com/soypat/icad/qef"
	"github.com/soypat/icad/region"
	"github.com/soypat/icad/subspace"
)

func almostEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestSolveSubspacesInteriorRecoversPlane(t *testing.T) {
	box := region.Box3{Min: [3]float64{-1, -1, -1}, Max: [3]float64{1, 1, 1}}
	n := subspace.NumSubspaces(3)
	subs := make([]*LeafSubspace, n)
	for i := range subs {
		subs[i] = &LeafSubspace{QEF: qef.New(3)}
	}
	numCorners := subspace.NumCorners(3)
	for c := 0; c < numCorners; c++ {
		ni := subspace.CornerIndex(c).ToNeighborIndex(3)
		pos := box.Corner(subspace.CornerIndex(c))
		pos[2] = 0.5 // every corner's sample projected onto the z=0.5 plane
		subs[ni].QEF.Insert(pos[:], []float64{0, 0, 1}, 0)
	}

	solveSubspaces(subs, box, 3, qef.EigenvalueCutoff)

	interior := subspace.New(subspace.Floating, subspace.Floating, subspace.Floating)
	got := subs[interior].Vert
	if !subs[interior].Solved {
		t.Fatal("interior subspace was not solved")
	}
	if !almostEqual(got[2], 0.5, 1e-6) {
		t.Errorf("interior vertex z = %v, want 0.5", got[2])
	}
}

func TestSolveSubspacesCornerFixedAtOwnCoordinate(t *testing.T) {
	box := region.Box3{Min: [3]float64{-1, -1, -1}, Max: [3]float64{1, 1, 1}}
	n := subspace.NumSubspaces(3)
	subs := make([]*LeafSubspace, n)
	for i := range subs {
		subs[i] = &LeafSubspace{QEF: qef.New(3)}
	}
	// Give every subspace some data so the solve is well-posed everywhere.
	for i := 0; i < n; i++ {
		subs[i].QEF.Insert([]float64{0, 0, 0}, []float64{1, 1, 1}, 0)
	}

	solveSubspaces(subs, box, 3, qef.EigenvalueCutoff)

	corner := subspace.New(subspace.High, subspace.Low, subspace.High)
	got := subs[corner].Vert
	want := box.Corner(subspace.CornerIndex(0b101))
	if got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("corner vertex = %v, want %v (fixed axes must sit exactly on the region bound)", got, want)
	}
}
