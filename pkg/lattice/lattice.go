// Package lattice maps packed spheres onto a uniform 3D grid of cells.
//
// Each sphere belongs to exactly one cell, the one containing its center;
// a sphere whose extent crosses a cell boundary is not clipped. Sphere
// centers are rewritten into the owning cell's local frame so every cell
// can be treated as a self-contained unit, with a background fill for the
// space between spheres and for cells that received none.
package lattice

import (
	"fmt"
	"math"

	"github.com/zzmjohn/openmc/pkg/geom"
)

// Spec describes a uniform lattice: Shape[a] cells of edge Pitch along each
// axis, anchored at the LowerLeft corner.
type Spec struct {
	LowerLeft geom.Vec3
	Pitch     geom.Vec3
	Shape     [3]int
}

// Validate checks the spec parameters.
func (s Spec) Validate() error {
	if s.Pitch.X <= 0 || s.Pitch.Y <= 0 || s.Pitch.Z <= 0 {
		return &geom.ConfigurationError{
			Context: "lattice spec",
			Reason: fmt.Sprintf("pitch must be positive on every axis, got (%g, %g, %g)",
				s.Pitch.X, s.Pitch.Y, s.Pitch.Z),
		}
	}
	if s.Shape[0] <= 0 || s.Shape[1] <= 0 || s.Shape[2] <= 0 {
		return &geom.ConfigurationError{
			Context: "lattice spec",
			Reason: fmt.Sprintf("shape must be positive on every axis, got (%d, %d, %d)",
				s.Shape[0], s.Shape[1], s.Shape[2]),
		}
	}
	return nil
}

// UpperRight returns the corner opposite LowerLeft.
func (s Spec) UpperRight() geom.Vec3 {
	return geom.Vec3{
		X: s.LowerLeft.X + s.Pitch.X*float64(s.Shape[0]),
		Y: s.LowerLeft.Y + s.Pitch.Y*float64(s.Shape[1]),
		Z: s.LowerLeft.Z + s.Pitch.Z*float64(s.Shape[2]),
	}
}

// CellOrigin returns the lower-left corner of cell (i, j, k).
func (s Spec) CellOrigin(i, j, k int) geom.Vec3 {
	return geom.Vec3{
		X: s.LowerLeft.X + s.Pitch.X*float64(i),
		Y: s.LowerLeft.Y + s.Pitch.Y*float64(j),
		Z: s.LowerLeft.Z + s.Pitch.Z*float64(k),
	}
}

// CellOf returns the indices of the cell containing p. Cells are half-open
// along each axis, so a point exactly on a shared boundary belongs to the
// upper cell. The result may lie outside the shape.
func (s Spec) CellOf(p geom.Vec3) [3]int {
	return [3]int{
		int(math.Floor((p.X - s.LowerLeft.X) / s.Pitch.X)),
		int(math.Floor((p.Y - s.LowerLeft.Y) / s.Pitch.Y)),
		int(math.Floor((p.Z - s.LowerLeft.Z) / s.Pitch.Z)),
	}
}

func (s Spec) contains(c [3]int) bool {
	return c[0] >= 0 && c[0] < s.Shape[0] &&
		c[1] >= 0 && c[1] < s.Shape[1] &&
		c[2] >= 0 && c[2] < s.Shape[2]
}

func (s Spec) cellCount() int { return s.Shape[0] * s.Shape[1] * s.Shape[2] }

// linear maps cell indices to the x-fastest storage order.
func (s Spec) linear(i, j, k int) int { return (k*s.Shape[1]+j)*s.Shape[0] + i }

// OutOfBoundsError reports a sphere whose center falls outside the lattice.
// The lattice must cover the packing domain; this is a caller error, not a
// condition to retry.
type OutOfBoundsError struct {
	SphereIndex int
	Cell        [3]int
	Shape       [3]int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("sphere %d maps to lattice cell (%d, %d, %d) outside shape (%d, %d, %d)",
		e.SphereIndex, e.Cell[0], e.Cell[1], e.Cell[2], e.Shape[0], e.Shape[1], e.Shape[2])
}

// Cell is one lattice cell. Sphere centers are in the cell-local frame:
// absolute center minus the cell origin. A cell with no spheres holds only
// the assignment's background fill.
type Cell struct {
	Index   [3]int
	Spheres []geom.Sphere

	// abs holds the centers as they were binned, one per sphere. Summing
	// origin + local in floats can land an ulp off the binned center, so
	// the exact value is retained.
	abs []geom.Vec3
}

// Absolute returns the center of the nth sphere in the lattice's absolute
// frame, bit-identical to the center that was binned.
func (c Cell) Absolute(n int) geom.Vec3 { return c.abs[n] }

// Assignment is a packing binned onto a lattice. It owns derived copies of
// the spheres; the input packing is left untouched.
type Assignment struct {
	Spec       Spec
	Background any
	cells      []Cell
}

// Bin assigns each sphere to the cell containing its center, rewriting
// centers into cell-local frames. Every cell of the grid is materialized,
// empty ones included. background is the fill for the space between spheres
// and for empty cells; like sphere fills it is carried opaquely.
func Bin(spheres []geom.Sphere, spec Spec, background any) (*Assignment, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	cells := make([]Cell, spec.cellCount())
	for k := 0; k < spec.Shape[2]; k++ {
		for j := 0; j < spec.Shape[1]; j++ {
			for i := 0; i < spec.Shape[0]; i++ {
				cells[spec.linear(i, j, k)].Index = [3]int{i, j, k}
			}
		}
	}

	for n, sp := range spheres {
		c := spec.CellOf(sp.Center)
		if !spec.contains(c) {
			return nil, &OutOfBoundsError{SphereIndex: n, Cell: c, Shape: spec.Shape}
		}
		local := sp
		local.Center = localFrame(sp.Center, spec.CellOrigin(c[0], c[1], c[2]))
		idx := spec.linear(c[0], c[1], c[2])
		cells[idx].Spheres = append(cells[idx].Spheres, local)
		cells[idx].abs = append(cells[idx].abs, sp.Center)
	}

	return &Assignment{Spec: spec, Background: background, cells: cells}, nil
}

// localFrame returns p - origin with one compensation step, so origin + local
// stays as close to p as the local frame can express.
func localFrame(p, origin geom.Vec3) geom.Vec3 {
	l := p.Sub(origin)
	if back := origin.Add(l); back != p {
		l = l.Add(p.Sub(back))
	}
	return l
}

// Cell returns the cell at (i, j, k), or nil outside the shape.
func (a *Assignment) Cell(i, j, k int) *Cell {
	if !a.Spec.contains([3]int{i, j, k}) {
		return nil
	}
	return &a.cells[a.Spec.linear(i, j, k)]
}

// Cells returns all cells in x-fastest order.
func (a *Assignment) Cells() []Cell { return a.cells }

// TotalSpheres returns the number of spheres across all cells.
func (a *Assignment) TotalSpheres() int {
	n := 0
	for i := range a.cells {
		n += len(a.cells[i].Spheres)
	}
	return n
}
