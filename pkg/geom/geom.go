// Package geom provides the shared geometric value types used across the
// packing pipeline: vectors, axis-aligned boxes, and spheres.
package geom

import "math"

// Vec3 represents a point or direction in 3D space.
type Vec3 struct {
	X, Y, Z float64
}

// Vector functions
func (a Vec3) Add(b Vec3) Vec3    { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3    { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (v Vec3) Mul(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product of two vectors.
func (a Vec3) Dot(b Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

// Len returns the Euclidean length of the vector.
func (v Vec3) Len() float64 { return math.Sqrt(v.Dot(v)) }

// Dist returns the Euclidean distance between two points.
func (a Vec3) Dist(b Vec3) float64 { return a.Sub(b).Len() }

// Norm returns a unit-length version of the vector.
// The zero vector is returned unchanged.
func (v Vec3) Norm() Vec3 {
	l := v.Len()
	if l == 0 {
		return v
	}
	return Vec3{v.X / l, v.Y / l, v.Z / l}
}

// Box is an axis-aligned bounding box.
type Box struct {
	Min, Max Vec3
}

// Size returns the edge lengths of the box.
func (b Box) Size() Vec3 { return b.Max.Sub(b.Min) }

// Center returns the midpoint of the box.
func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Volume returns the volume of the box.
func (b Box) Volume() float64 {
	s := b.Size()
	return s.X * s.Y * s.Z
}

// Contains reports whether p lies inside the box (boundary inclusive).
func (b Box) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// Sphere is one packed sphere. Center is in the packing domain's absolute
// frame until lattice binning rewrites it into a cell-local frame. Fill is an
// opaque token attached by the caller; the packing pipeline never inspects it.
// A sphere's identity is its position in the packing output order.
type Sphere struct {
	Center Vec3
	Radius float64
	Fill   any
}

// SphereVolume returns the volume of a sphere with the given radius.
func SphereVolume(radius float64) float64 {
	return 4.0 / 3.0 * math.Pi * radius * radius * radius
}
