package grid

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
)

const (
	// MinDimension and MaxDimension bound the supported grid ranks.
	MinDimension = 1
	MaxDimension = 4

	// Alive and Dead are the two cell states.
	Alive uint8 = 1
	Dead  uint8 = 0
)

var (
	ErrInvalidShape        = errors.New("invalid grid shape")
	ErrDimensionOutOfRange = errors.New("dimension out of range")
)

// Grid is a hypercubic N-dimensional binary array with flattened storage.
// Cells are addressed by an explicit multi-index; the last axis varies
// fastest. A Grid handed to a measurement is never mutated by it.
type Grid struct {
	dim   int
	size  int
	cells []uint8
}

// New returns an all-dead grid of the given dimension and linear size.
func New(dim, size int) (Grid, error) {
	if dim < MinDimension || dim > MaxDimension {
		return Grid{}, fmt.Errorf("%w: dimension %d not in [%d,%d]", ErrInvalidShape, dim, MinDimension, MaxDimension)
	}
	if size < 1 {
		return Grid{}, fmt.Errorf("%w: size %d < 1", ErrInvalidShape, size)
	}
	total := 1
	for i := 0; i < dim; i++ {
		total *= size
	}
	return Grid{dim: dim, size: size, cells: make([]uint8, total)}, nil
}

// Generate returns a grid whose cells are independently alive with
// probability 0.5, drawn from a generator seeded only with the given seed.
// The result is a pure function of (dim, size, seed).
func Generate(dim, size int, seed int64) (Grid, error) {
	g, err := New(dim, size)
	if err != nil {
		return Grid{}, err
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range g.cells {
		if rng.Intn(2) == 1 {
			g.cells[i] = Alive
		}
	}
	return g, nil
}

// GenerateDensity is Generate with an explicit alive probability.
func GenerateDensity(dim, size int, seed int64, density float64) (Grid, error) {
	if density < 0 || density > 1 {
		return Grid{}, fmt.Errorf("%w: density %g not in [0,1]", ErrInvalidShape, density)
	}
	g, err := New(dim, size)
	if err != nil {
		return Grid{}, err
	}
	rng := rand.New(rand.NewSource(seed))
	for i := range g.cells {
		if rng.Float64() < density {
			g.cells[i] = Alive
		}
	}
	return g, nil
}

// Checkerboard returns a grid where a cell is alive iff its coordinate sum
// is even. On an even-size 2D grid this is the maximal-integration fixture.
func Checkerboard(dim, size int) (Grid, error) {
	g, err := New(dim, size)
	if err != nil {
		return Grid{}, err
	}
	coords := make([]int, dim)
	for i := range g.cells {
		g.coordsAt(i, coords)
		sum := 0
		for _, c := range coords {
			sum += c
		}
		if sum%2 == 0 {
			g.cells[i] = Alive
		}
	}
	return g, nil
}

// Dim returns the grid rank.
func (g Grid) Dim() int { return g.dim }

// Size returns the linear extent shared by all axes.
func (g Grid) Size() int { return g.size }

// Len returns the total cell count, size^dim.
func (g Grid) Len() int { return len(g.cells) }

// InBounds reports whether every coordinate lies inside the grid.
func (g Grid) InBounds(coords ...int) bool {
	if len(coords) != g.dim {
		return false
	}
	for _, c := range coords {
		if c < 0 || c >= g.size {
			return false
		}
	}
	return true
}

// At returns the cell state at the given multi-index.
func (g Grid) At(coords ...int) uint8 {
	return g.cells[g.index(coords)]
}

// Set writes the cell state at the given multi-index.
func (g *Grid) Set(state uint8, coords ...int) {
	g.cells[g.index(coords)] = state
}

// Cell returns the cell state at a flattened index.
func (g Grid) Cell(i int) uint8 { return g.cells[i] }

// SetCell writes the cell state at a flattened index.
func (g *Grid) SetCell(i int, state uint8) { g.cells[i] = state }

// AliveCount returns the number of alive cells.
func (g Grid) AliveCount() int {
	n := 0
	for _, c := range g.cells {
		if c == Alive {
			n++
		}
	}
	return n
}

// Clone returns a deep copy sharing no storage with the receiver.
func (g Grid) Clone() Grid {
	cells := make([]uint8, len(g.cells))
	copy(cells, g.cells)
	return Grid{dim: g.dim, size: g.size, cells: cells}
}

// Equal reports whether both grids have identical shape and cells.
func (g Grid) Equal(other Grid) bool {
	if g.dim != other.dim || g.size != other.size {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}

// Uniform reports whether every cell shares one state.
func (g Grid) Uniform() bool {
	alive := g.AliveCount()
	return alive == 0 || alive == len(g.cells)
}

// Coords writes the multi-index of flattened index i into dst, which must
// have length Dim.
func (g Grid) Coords(i int, dst []int) {
	g.coordsAt(i, dst)
}

// index flattens a multi-index; the last axis varies fastest.
func (g Grid) index(coords []int) int {
	if len(coords) != g.dim {
		panic(fmt.Sprintf("grid: got %d coordinates for a %dD grid", len(coords), g.dim))
	}
	idx := 0
	for _, c := range coords {
		if c < 0 || c >= g.size {
			panic(fmt.Sprintf("grid: coordinate %d out of range [0,%d)", c, g.size))
		}
		idx = idx*g.size + c
	}
	return idx
}

func (g Grid) coordsAt(i int, dst []int) {
	for axis := g.dim - 1; axis >= 0; axis-- {
		dst[axis] = i % g.size
		i /= g.size
	}
}

// Render returns a console rendering of a 1D or 2D grid, one rune per cell.
// Higher dimensions render as a shape note only.
func (g Grid) Render() string {
	switch g.dim {
	case 1:
		return renderRow(g.cells)
	case 2:
		rows := make([]string, 0, g.size)
		for r := 0; r < g.size; r++ {
			rows = append(rows, renderRow(g.cells[r*g.size:(r+1)*g.size]))
		}
		return strings.Join(rows, "\n")
	default:
		return fmt.Sprintf("<%dD grid, size %d, %d alive>", g.dim, g.size, g.AliveCount())
	}
}

func renderRow(cells []uint8) string {
	var b strings.Builder
	for _, c := range cells {
		if c == Alive {
			b.WriteRune('█')
		} else {
			b.WriteRune('·')
		}
	}
	return b.String()
}
