package pack

import (
	"fmt"
	"math"

	"github.com/zzmjohn/openmc/pkg/geom"
)

// cellKey identifies one cell of the spatial hash.
type cellKey struct {
	x, y, z int
}

// Index is a uniform spatial hash over sphere centers. The cell edge is set
// to the packing diameter, so two spheres closer than one diameter always
// sit in the same or adjacent cells: a 3x3x3 neighborhood scan can never
// miss a true overlap. The scan returns a superset; exact distance filtering
// is the caller's job.
//
// Index is not safe for concurrent use. Each packing run owns its own.
type Index struct {
	edge  float64
	cells map[cellKey][]int
	where map[int]cellKey
}

// NewIndex creates an empty index with the given cell edge length.
func NewIndex(edge float64) (*Index, error) {
	if edge <= 0 {
		return nil, &geom.ConfigurationError{
			Context: "spatial index",
			Reason:  fmt.Sprintf("cell edge must be positive, got %g", edge),
		}
	}
	return &Index{
		edge:  edge,
		cells: make(map[cellKey][]int),
		where: make(map[int]cellKey),
	}, nil
}

// keyFor maps a point to its cell. Flooring keeps negative coordinates in
// distinct cells from their positive mirrors.
func (ix *Index) keyFor(p geom.Vec3) cellKey {
	return cellKey{
		x: int(math.Floor(p.X / ix.edge)),
		y: int(math.Floor(p.Y / ix.edge)),
		z: int(math.Floor(p.Z / ix.edge)),
	}
}

// Insert adds a sphere id at the given center. Inserting an id that is
// already present is a programming error and panics.
func (ix *Index) Insert(id int, center geom.Vec3) {
	if _, ok := ix.where[id]; ok {
		panic(fmt.Sprintf("pack: sphere %d already indexed", id))
	}
	k := ix.keyFor(center)
	ix.cells[k] = append(ix.cells[k], id)
	ix.where[id] = k
}

// Remove deletes a sphere id. Removing an unknown id is a no-op.
func (ix *Index) Remove(id int) {
	k, ok := ix.where[id]
	if !ok {
		return
	}
	bucket := ix.cells[k]
	for i, v := range bucket {
		if v == id {
			bucket[i] = bucket[len(bucket)-1]
			bucket = bucket[:len(bucket)-1]
			break
		}
	}
	if len(bucket) == 0 {
		delete(ix.cells, k)
	} else {
		ix.cells[k] = bucket
	}
	delete(ix.where, id)
}

// Move relocates a sphere id to a new center. Ids not yet present are
// inserted.
func (ix *Index) Move(id int, center geom.Vec3) {
	old, ok := ix.where[id]
	if ok {
		if old == ix.keyFor(center) {
			return
		}
		ix.Remove(id)
	}
	ix.Insert(id, center)
}

// Neighbors appends to buf the ids indexed in the 3x3x3 block of cells
// around p and returns the extended slice. The result covers every sphere
// within one cell edge of p. Pass a reused buf to avoid allocation in hot
// loops.
func (ix *Index) Neighbors(p geom.Vec3, buf []int) []int {
	k := ix.keyFor(p)
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				buf = append(buf, ix.cells[cellKey{k.x + dx, k.y + dy, k.z + dz}]...)
			}
		}
	}
	return buf
}

// Len returns the number of indexed spheres.
func (ix *Index) Len() int { return len(ix.where) }
