package geom

import (
	"math"
	"testing"
)

func TestVecOps(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: 4, Y: -2, Z: 1}

	if got := a.Add(b); got != (Vec3{X: 5, Y: 0, Z: 4}) {
		t.Errorf("Add = %v, want {5 0 4}", got)
	}
	if got := a.Sub(b); got != (Vec3{X: -3, Y: 4, Z: 2}) {
		t.Errorf("Sub = %v, want {-3 4 2}", got)
	}
	if got := a.Mul(2); got != (Vec3{X: 2, Y: 4, Z: 6}) {
		t.Errorf("Mul = %v, want {2 4 6}", got)
	}
	if got := a.Dot(b); got != 3 {
		t.Errorf("Dot = %v, want 3", got)
	}
	if got := (Vec3{X: 3, Y: 4}).Len(); got != 5 {
		t.Errorf("Len = %v, want 5", got)
	}
	if got := (Vec3{X: 1, Y: 1}).Dist(Vec3{X: 1, Y: 1, Z: 7}); got != 7 {
		t.Errorf("Dist = %v, want 7", got)
	}
}

func TestVecNorm(t *testing.T) {
	n := Vec3{X: 0, Y: 3, Z: 4}.Norm()
	if math.Abs(n.Len()-1) > 1e-15 {
		t.Errorf("normalized length = %v, want 1", n.Len())
	}
	if got := (Vec3{}).Norm(); got != (Vec3{}) {
		t.Errorf("zero vector Norm = %v, want zero vector", got)
	}
}

func TestBox(t *testing.T) {
	b := Box{Min: Vec3{X: -1, Y: -2, Z: 0}, Max: Vec3{X: 1, Y: 2, Z: 3}}

	if got := b.Size(); got != (Vec3{X: 2, Y: 4, Z: 3}) {
		t.Errorf("Size = %v, want {2 4 3}", got)
	}
	if got := b.Volume(); got != 24 {
		t.Errorf("Volume = %v, want 24", got)
	}
	if got := b.Center(); got != (Vec3{X: 0, Y: 0, Z: 1.5}) {
		t.Errorf("Center = %v, want {0 0 1.5}", got)
	}
	if !b.Contains(Vec3{X: 0, Y: 0, Z: 1}) {
		t.Error("interior point should be contained")
	}
	if !b.Contains(b.Min) || !b.Contains(b.Max) {
		t.Error("boundary should be inclusive")
	}
	if b.Contains(Vec3{X: 0, Y: 0, Z: 3.1}) {
		t.Error("outside point should not be contained")
	}
}

func TestSphereVolume(t *testing.T) {
	want := 4.0 / 3.0 * math.Pi
	if got := SphereVolume(1); math.Abs(got-want) > 1e-15 {
		t.Errorf("SphereVolume(1) = %v, want %v", got, want)
	}
	// Volume scales with the cube of the radius.
	if got := SphereVolume(2); math.Abs(got-8*want) > 1e-12 {
		t.Errorf("SphereVolume(2) = %v, want %v", got, 8*want)
	}
}

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{Context: "box domain", Reason: "edge lengths must be positive"}
	want := "invalid configuration: box domain: edge lengths must be positive"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
