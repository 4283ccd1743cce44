package automaton

import (
	"testing"

	"dimcascade/internal/grid"
	"dimcascade/internal/model"
)

func blinker(t *testing.T) grid.Grid {
	t.Helper()
	g, err := grid.New(2, 5)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	g.Set(grid.Alive, 2, 1)
	g.Set(grid.Alive, 2, 2)
	g.Set(grid.Alive, 2, 3)
	return g
}

func TestConwayBlinkerOscillates(t *testing.T) {
	g := blinker(t)

	one := Step(g, Conway())
	for _, r := range []int{1, 2, 3} {
		if one.At(r, 2) != grid.Alive {
			t.Fatalf("expected vertical blinker cell (%d,2) alive", r)
		}
	}
	if one.AliveCount() != 3 {
		t.Fatalf("blinker should keep 3 cells, got %d", one.AliveCount())
	}

	two := Step(one, Conway())
	if !two.Equal(g) {
		t.Fatal("blinker should return to its original phase after two steps")
	}
}

func TestStepDoesNotMutateInput(t *testing.T) {
	g := blinker(t)
	before := g.Clone()
	_ = Step(g, Conway())
	if !g.Equal(before) {
		t.Fatal("Step must not mutate its input")
	}
}

func TestEvolveZeroStepsIsIdentity(t *testing.T) {
	g, err := grid.Generate(2, 10, 3)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	out := Evolve(g, Conway(), 0)
	if !out.Equal(g) {
		t.Fatal("zero steps should reproduce the input")
	}
	out.SetCell(0, 1-out.Cell(0))
	if g.Equal(out) {
		t.Fatal("Evolve must return an independent copy")
	}
}

func TestBoundedEdgesCornerDies(t *testing.T) {
	// A corner cell has only 3 neighbors on a bounded grid; with a lone
	// alive neighbor it cannot survive under S23.
	g, err := grid.New(2, 4)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	g.Set(grid.Alive, 0, 0)
	g.Set(grid.Alive, 0, 1)
	next := Step(g, Conway())
	if next.At(0, 0) != grid.Dead {
		t.Fatal("corner cell with one neighbor should die under B3/S23")
	}
}

func TestHighLifeBirthOnSix(t *testing.T) {
	// Six alive neighbors around a dead center: born under B36, not B3.
	build := func() grid.Grid {
		g, err := grid.New(2, 5)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		for _, rc := range [][2]int{{1, 1}, {1, 2}, {1, 3}, {3, 1}, {3, 2}, {3, 3}} {
			g.Set(grid.Alive, rc[0], rc[1])
		}
		return g
	}

	if next := Step(build(), HighLife()); next.At(2, 2) != grid.Alive {
		t.Fatal("HighLife should birth a cell with six neighbors")
	}
	if next := Step(build(), Conway()); next.At(2, 2) != grid.Dead {
		t.Fatal("Conway should not birth a cell with six neighbors")
	}
}

func TestStep1DNeighborhood(t *testing.T) {
	// In 1D the Moore neighborhood has two cells, so B3/S23 only allows
	// survival on exactly two alive neighbors.
	g, err := grid.New(1, 5)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	g.Set(grid.Alive, 1)
	g.Set(grid.Alive, 2)
	g.Set(grid.Alive, 3)
	next := Step(g, Conway())
	if next.At(2) != grid.Alive {
		t.Fatal("middle cell with two neighbors should survive")
	}
	if next.At(1) != grid.Dead || next.At(3) != grid.Dead {
		t.Fatal("edge cells with one neighbor should die")
	}
}

func TestRuleByName(t *testing.T) {
	rule, err := RuleByName(model.RuleHighLife)
	if err != nil {
		t.Fatalf("resolve highlife: %v", err)
	}
	if !rule.Birth[6] {
		t.Fatal("highlife should birth on six")
	}
	if _, err := RuleByName("day-and-night"); err == nil {
		t.Fatal("expected error for unknown rule")
	}
}
