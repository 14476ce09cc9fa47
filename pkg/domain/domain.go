// Package domain defines the bounded 3D regions that spheres are packed
// into. Shapes are backed by signed distance fields from
// github.com/deadsy/sdfx; analytic parameters are kept alongside the SDF so
// volume and interior-shrink computations stay exact.
package domain

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/zzmjohn/openmc/pkg/geom"
)

// Compile-time interface checks.
var (
	_ Domain = (*Box)(nil)
	_ Domain = (*Cylinder)(nil)
	_ Domain = (*Sphere)(nil)
	_ Domain = (*Shell)(nil)
)

// Domain is a bounded region of space that spheres are packed into.
// Implementations are immutable once constructed.
type Domain interface {
	// Contains reports whether p lies inside the region (boundary inclusive).
	Contains(p geom.Vec3) bool

	// Distance returns the signed distance from p to the region surface,
	// negative inside.
	Distance(p geom.Vec3) float64

	// Bounds returns the axis-aligned bounding box of the region.
	Bounds() geom.Box

	// Volume returns the analytic volume of the region.
	Volume() float64

	// Interior returns the same region shrunk by r on every constraining
	// boundary, so that a sphere of radius r centered anywhere in the
	// interior lies entirely inside the original region. Fails with a
	// configuration error when the region cannot fit such a sphere.
	Interior(r float64) (Domain, error)
}

// solid adapts an sdf.SDF3 to the Domain query methods.
type solid struct {
	s sdf.SDF3
}

func (s solid) Contains(p geom.Vec3) bool    { return s.s.Evaluate(toV3(p)) <= 0 }
func (s solid) Distance(p geom.Vec3) float64 { return s.s.Evaluate(toV3(p)) }

func (s solid) Bounds() geom.Box {
	bb := s.s.BoundingBox()
	return geom.Box{
		Min: geom.Vec3{X: bb.Min.X, Y: bb.Min.Y, Z: bb.Min.Z},
		Max: geom.Vec3{X: bb.Max.X, Y: bb.Max.Y, Z: bb.Max.Z},
	}
}

func toV3(p geom.Vec3) v3.Vec { return v3.Vec{X: p.X, Y: p.Y, Z: p.Z} }

// place translates an origin-centered SDF to the shape's center offset.
func place(s sdf.SDF3, center geom.Vec3) sdf.SDF3 {
	return sdf.Transform3D(s, sdf.Translate3d(toV3(center)))
}

// checkShrink validates the radius passed to Interior.
func checkShrink(r float64) error {
	if r <= 0 {
		return &geom.ConfigurationError{
			Context: "domain interior",
			Reason:  fmt.Sprintf("shrink radius must be positive, got %g", r),
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Box
// ---------------------------------------------------------------------------

// Box is a rectangular domain centered at Center.
type Box struct {
	solid
	Size   geom.Vec3
	Center geom.Vec3
}

// NewBox creates a box domain with edge lengths (x, y, z) centered at center.
func NewBox(x, y, z float64, center geom.Vec3) (*Box, error) {
	if x <= 0 || y <= 0 || z <= 0 {
		return nil, &geom.ConfigurationError{
			Context: "box domain",
			Reason:  fmt.Sprintf("edge lengths must be positive, got (%g, %g, %g)", x, y, z),
		}
	}
	s, err := sdf.Box3D(v3.Vec{X: x, Y: y, Z: z}, 0)
	if err != nil {
		return nil, fmt.Errorf("box domain: %w", err)
	}
	return &Box{
		solid:  solid{s: place(s, center)},
		Size:   geom.Vec3{X: x, Y: y, Z: z},
		Center: center,
	}, nil
}

func (b *Box) Volume() float64 { return b.Size.X * b.Size.Y * b.Size.Z }

func (b *Box) Interior(r float64) (Domain, error) {
	if err := checkShrink(r); err != nil {
		return nil, err
	}
	x, y, z := b.Size.X-2*r, b.Size.Y-2*r, b.Size.Z-2*r
	if x <= 0 || y <= 0 || z <= 0 {
		return nil, &geom.ConfigurationError{
			Context: "box domain",
			Reason: fmt.Sprintf("sphere radius %g leaves no interior in a box of size (%g, %g, %g)",
				r, b.Size.X, b.Size.Y, b.Size.Z),
		}
	}
	return NewBox(x, y, z, b.Center)
}

// ---------------------------------------------------------------------------
// Cylinder
// ---------------------------------------------------------------------------

// Cylinder is a domain whose axis is aligned with Z, centered at Center.
type Cylinder struct {
	solid
	Height float64
	Radius float64
	Center geom.Vec3
}

// NewCylinder creates a cylinder domain with the given height and radius.
func NewCylinder(height, radius float64, center geom.Vec3) (*Cylinder, error) {
	if height <= 0 || radius <= 0 {
		return nil, &geom.ConfigurationError{
			Context: "cylinder domain",
			Reason:  fmt.Sprintf("height and radius must be positive, got (%g, %g)", height, radius),
		}
	}
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("cylinder domain: %w", err)
	}
	return &Cylinder{
		solid:  solid{s: place(s, center)},
		Height: height,
		Radius: radius,
		Center: center,
	}, nil
}

func (c *Cylinder) Volume() float64 { return math.Pi * c.Radius * c.Radius * c.Height }

func (c *Cylinder) Interior(r float64) (Domain, error) {
	if err := checkShrink(r); err != nil {
		return nil, err
	}
	h, rad := c.Height-2*r, c.Radius-r
	if h <= 0 || rad <= 0 {
		return nil, &geom.ConfigurationError{
			Context: "cylinder domain",
			Reason: fmt.Sprintf("sphere radius %g leaves no interior in a cylinder of height %g and radius %g",
				r, c.Height, c.Radius),
		}
	}
	return NewCylinder(h, rad, c.Center)
}

// ---------------------------------------------------------------------------
// Sphere
// ---------------------------------------------------------------------------

// Sphere is a spherical domain centered at Center.
type Sphere struct {
	solid
	Radius float64
	Center geom.Vec3
}

// NewSphere creates a spherical domain with the given radius.
func NewSphere(radius float64, center geom.Vec3) (*Sphere, error) {
	if radius <= 0 {
		return nil, &geom.ConfigurationError{
			Context: "sphere domain",
			Reason:  fmt.Sprintf("radius must be positive, got %g", radius),
		}
	}
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("sphere domain: %w", err)
	}
	return &Sphere{
		solid:  solid{s: place(s, center)},
		Radius: radius,
		Center: center,
	}, nil
}

func (s *Sphere) Volume() float64 { return geom.SphereVolume(s.Radius) }

func (s *Sphere) Interior(r float64) (Domain, error) {
	if err := checkShrink(r); err != nil {
		return nil, err
	}
	rad := s.Radius - r
	if rad <= 0 {
		return nil, &geom.ConfigurationError{
			Context: "sphere domain",
			Reason:  fmt.Sprintf("sphere radius %g leaves no interior in a sphere of radius %g", r, s.Radius),
		}
	}
	return NewSphere(rad, s.Center)
}

// ---------------------------------------------------------------------------
// Shell
// ---------------------------------------------------------------------------

// Shell is the region between two concentric spheres centered at Center.
type Shell struct {
	solid
	InnerRadius float64
	OuterRadius float64
	Center      geom.Vec3
}

// NewShell creates a spherical shell domain bounded by the two radii.
func NewShell(innerRadius, outerRadius float64, center geom.Vec3) (*Shell, error) {
	if innerRadius <= 0 || outerRadius <= 0 {
		return nil, &geom.ConfigurationError{
			Context: "shell domain",
			Reason:  fmt.Sprintf("radii must be positive, got (inner %g, outer %g)", innerRadius, outerRadius),
		}
	}
	if innerRadius >= outerRadius {
		return nil, &geom.ConfigurationError{
			Context: "shell domain",
			Reason:  fmt.Sprintf("inner radius %g must be smaller than outer radius %g", innerRadius, outerRadius),
		}
	}
	outer, err := sdf.Sphere3D(outerRadius)
	if err != nil {
		return nil, fmt.Errorf("shell domain: %w", err)
	}
	inner, err := sdf.Sphere3D(innerRadius)
	if err != nil {
		return nil, fmt.Errorf("shell domain: %w", err)
	}
	// For concentric spheres max(outer, -inner) is the exact signed distance.
	return &Shell{
		solid:       solid{s: place(sdf.Difference3D(outer, inner), center)},
		InnerRadius: innerRadius,
		OuterRadius: outerRadius,
		Center:      center,
	}, nil
}

func (s *Shell) Volume() float64 {
	return geom.SphereVolume(s.OuterRadius) - geom.SphereVolume(s.InnerRadius)
}

func (s *Shell) Interior(r float64) (Domain, error) {
	if err := checkShrink(r); err != nil {
		return nil, err
	}
	inner, outer := s.InnerRadius+r, s.OuterRadius-r
	if inner >= outer {
		return nil, &geom.ConfigurationError{
			Context: "shell domain",
			Reason: fmt.Sprintf("sphere radius %g does not fit between shell radii (%g, %g)",
				r, s.InnerRadius, s.OuterRadius),
		}
	}
	return NewShell(inner, outer, s.Center)
}

// ---------------------------------------------------------------------------
// Gradient
// ---------------------------------------------------------------------------

// gradEps is the step used for central-difference gradients.
const gradEps = 1e-6

// Gradient estimates the gradient of the domain's signed distance field at p
// by central differences. Near the surface this approximates the outward
// surface normal. Returns the zero vector where the field is flat.
func Gradient(d Domain, p geom.Vec3) geom.Vec3 {
	g := geom.Vec3{
		X: d.Distance(geom.Vec3{X: p.X + gradEps, Y: p.Y, Z: p.Z}) -
			d.Distance(geom.Vec3{X: p.X - gradEps, Y: p.Y, Z: p.Z}),
		Y: d.Distance(geom.Vec3{X: p.X, Y: p.Y + gradEps, Z: p.Z}) -
			d.Distance(geom.Vec3{X: p.X, Y: p.Y - gradEps, Z: p.Z}),
		Z: d.Distance(geom.Vec3{X: p.X, Y: p.Y, Z: p.Z + gradEps}) -
			d.Distance(geom.Vec3{X: p.X, Y: p.Y, Z: p.Z - gradEps}),
	}
	return g.Norm()
}
