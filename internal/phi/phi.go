// Package phi computes the composite Φ = R·S + D metric over binary grids.
//
// R (processing) is the alive-cell fraction. S (integration) is the fraction
// of axis-aligned adjacent cell pairs whose states differ, counted once per
// unordered pair with bounded edges. D (disorder) is the Shannon entropy of
// the alive/dead distribution.
package phi

import (
	"math"

	"dimcascade/internal/grid"
)

// Measurement is the read-only result of measuring one grid snapshot.
type Measurement struct {
	Phi float64 `json:"phi"`
	R   float64 `json:"R"`
	S   float64 `json:"S"`
	D   float64 `json:"D"`
}

// Calculate measures a grid snapshot. It never mutates the input. A uniform
// grid (all dead or all alive) yields Φ = 0 exactly.
func Calculate(g grid.Grid) Measurement {
	total := g.Len()
	alive := g.AliveCount()

	r := float64(alive) / float64(total)
	s := integration(g)
	d := entropy(r)

	return Measurement{Phi: r*s + d, R: r, S: s, D: d}
}

// integration counts state transitions across axis-adjacent unordered cell
// pairs. For a hypercubic grid the pair count is dim * size^(dim-1) * (size-1);
// a size-1 grid has no pairs and S is defined as 0.
func integration(g grid.Grid) float64 {
	size := g.Size()
	if size < 2 {
		return 0
	}

	dim := g.Dim()
	coords := make([]int, dim)
	neighbor := make([]int, dim)
	transitions := 0
	edges := 0

	for i := 0; i < g.Len(); i++ {
		g.Coords(i, coords)
		for axis := 0; axis < dim; axis++ {
			if coords[axis]+1 >= size {
				continue
			}
			copy(neighbor, coords)
			neighbor[axis]++
			edges++
			if g.Cell(i) != g.At(neighbor...) {
				transitions++
			}
		}
	}
	if edges == 0 {
		return 0
	}
	return float64(transitions) / float64(edges)
}

// entropy is the two-outcome Shannon entropy in bits; the p=0 and p=1
// terms contribute 0 by convention.
func entropy(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}
	q := 1 - p
	return -(p*math.Log2(p) + q*math.Log2(q))
}
