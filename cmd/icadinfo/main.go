// Command icadinfo builds a simplex tree over a fixed demo expression (a
// sphere of radius 0.5) and reports vertex/collapse counts, as a smoke
// test of the tape and simplex packages end to end.
package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/soypat/icad/internal/telemetry"
	"github.com/soypat/icad/region"
	"github.com/soypat/icad/simplex"
	"github.com/soypat/icad/tape"
)

func main() {
	maxLevel := flag.Int("level", 4, "max octree subdivision depth")
	maxErr := flag.Float64("maxerr", 1e-3, "collapse error threshold")
	verbose := flag.Bool("v", false, "log collapse decisions")
	flag.Parse()

	if *verbose {
		telemetry.Logger.SetPrefix("icadinfo: ")
	} else {
		telemetry.SetOutput(io.Discard)
	}

	// sphere: sqrt(x^2+y^2+z^2) - 0.5
	x, y, z := tape.X(), tape.Y(), tape.Z()
	r := tape.ExprSqrt(tape.ExprAdd(tape.ExprAdd(tape.ExprSquare(x), tape.ExprSquare(y)), tape.ExprSquare(z)))
	sphere := tape.ExprSub(r, tape.Const(0.5))

	t := tape.Build(sphere)
	box := region.Box3{Min: [3]float64{-1, -1, -1}, Max: [3]float64{1, 1, 1}}

	tree := simplex.Build(t, box, simplex.BuildOptions{
		MaxLevel: *maxLevel,
		MaxErr:   *maxErr,
		Verbose:  *verbose,
	}, simplex.Evaluators{}.Fresh())

	simplex.AssignIndices(tree, 3)

	leaves, verts, collapsed := 0, 0, 0
	seen := map[uint64]bool{}
	tree.Walk(func(n *simplex.Tree3) {
		if n.Leaf() == nil {
			return
		}
		leaves++
		if n.Leaf().Level > 0 {
			collapsed++
		}
		for _, sub := range n.Leaf().Sub {
			if sub.Solved && !seen[sub.Index] {
				seen[sub.Index] = true
				verts++
			}
		}
	})

	fmt.Printf("clauses=%d slots=%d leaves=%d collapsed=%d distinct_vertices=%d\n",
		t.NumClauses(), t.NumSlots(), leaves, collapsed, verts)
}
