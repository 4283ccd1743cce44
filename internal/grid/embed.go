package grid

import "fmt"

// Embed places a d-dimensional pattern on the central hyperslice of a new
// all-dead (d+1)-dimensional grid of the same linear size. The new axis is
// the last axis and the slice index is size/2. The source is not mutated.
func Embed(src Grid) (Grid, error) {
	if src.dim >= MaxDimension {
		return Grid{}, fmt.Errorf("%w: cannot embed a %dD pattern, %dD is the maximum", ErrDimensionOutOfRange, src.dim, MaxDimension)
	}
	if src.dim < MinDimension || src.size < 1 {
		return Grid{}, fmt.Errorf("%w: %dD size %d", ErrInvalidShape, src.dim, src.size)
	}

	dst, err := New(src.dim+1, src.size)
	if err != nil {
		return Grid{}, err
	}

	mid := src.size / 2
	coords := make([]int, src.dim+1)
	coords[src.dim] = mid
	for i, state := range src.cells {
		if state != Alive {
			continue
		}
		src.coordsAt(i, coords[:src.dim])
		dst.cells[dst.index(coords)] = Alive
	}
	return dst, nil
}

// SliceMiddle extracts the central hyperslice along the last axis,
// inverting Embed: SliceMiddle(Embed(p)) reproduces p exactly.
func SliceMiddle(src Grid) (Grid, error) {
	if src.dim <= MinDimension {
		return Grid{}, fmt.Errorf("%w: cannot slice a %dD grid", ErrDimensionOutOfRange, src.dim)
	}

	dst, err := New(src.dim-1, src.size)
	if err != nil {
		return Grid{}, err
	}

	mid := src.size / 2
	coords := make([]int, src.dim)
	coords[src.dim-1] = mid
	for i := range dst.cells {
		dst.coordsAt(i, coords[:src.dim-1])
		dst.cells[i] = src.cells[src.index(coords)]
	}
	return dst, nil
}
