package automaton

import (
	"fmt"

	"dimcascade/internal/grid"
	"dimcascade/internal/model"
)

// Rule is a birth/survival cellular-automaton rule over the generalized
// Moore neighborhood: a dead cell becomes alive when its alive-neighbor
// count is in Birth, an alive cell stays alive when it is in Survival.
type Rule struct {
	Name     model.RuleName
	Birth    map[int]bool
	Survival map[int]bool
}

// Conway returns the B3/S23 rule.
func Conway() Rule {
	return Rule{
		Name:     model.RuleConway,
		Birth:    map[int]bool{3: true},
		Survival: map[int]bool{2: true, 3: true},
	}
}

// HighLife returns the B36/S23 rule.
func HighLife() Rule {
	return Rule{
		Name:     model.RuleHighLife,
		Birth:    map[int]bool{3: true, 6: true},
		Survival: map[int]bool{2: true, 3: true},
	}
}

// RuleByName resolves a rule tag.
func RuleByName(name model.RuleName) (Rule, error) {
	switch name {
	case model.RuleConway:
		return Conway(), nil
	case model.RuleHighLife:
		return HighLife(), nil
	default:
		return Rule{}, fmt.Errorf("unknown rule: %s", name)
	}
}

// Step advances the grid one synchronous time step. Every cell reads the
// prior state; neighbors outside the grid count as dead. The input grid is
// not mutated.
func Step(g grid.Grid, rule Rule) grid.Grid {
	next := g.Clone()
	offsets := neighborOffsets(g.Dim())
	coords := make([]int, g.Dim())
	neighbor := make([]int, g.Dim())

	for i := 0; i < g.Len(); i++ {
		g.Coords(i, coords)
		alive := 0
		for _, off := range offsets {
			inBounds := true
			for axis := range coords {
				neighbor[axis] = coords[axis] + off[axis]
				if neighbor[axis] < 0 || neighbor[axis] >= g.Size() {
					inBounds = false
					break
				}
			}
			if inBounds && g.At(neighbor...) == grid.Alive {
				alive++
			}
		}
		if g.Cell(i) == grid.Alive {
			if rule.Survival[alive] {
				next.SetCell(i, grid.Alive)
			} else {
				next.SetCell(i, grid.Dead)
			}
		} else {
			if rule.Birth[alive] {
				next.SetCell(i, grid.Alive)
			} else {
				next.SetCell(i, grid.Dead)
			}
		}
	}
	return next
}

// Evolve applies Step the given number of times; zero steps is the identity
// and returns a copy of the input.
func Evolve(g grid.Grid, rule Rule, steps int) grid.Grid {
	current := g.Clone()
	for s := 0; s < steps; s++ {
		current = Step(current, rule)
	}
	return current
}

// neighborOffsets enumerates {-1,0,1}^dim minus the zero vector,
// 3^dim - 1 offsets in total.
func neighborOffsets(dim int) [][]int {
	total := 1
	for i := 0; i < dim; i++ {
		total *= 3
	}
	offsets := make([][]int, 0, total-1)
	for n := 0; n < total; n++ {
		off := make([]int, dim)
		v := n
		zero := true
		for axis := dim - 1; axis >= 0; axis-- {
			off[axis] = v%3 - 1
			if off[axis] != 0 {
				zero = false
			}
			v /= 3
		}
		if zero {
			continue
		}
		offsets = append(offsets, off)
	}
	return offsets
}
