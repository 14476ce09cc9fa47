// Package config handles packer configuration loading and management.
package config

import (
	"fmt"

	"github.com/zzmjohn/openmc/pkg/domain"
	"github.com/zzmjohn/openmc/pkg/geom"
	"github.com/zzmjohn/openmc/pkg/lattice"
)

// Config holds all packer settings.
type Config struct {
	Domain  DomainConfig   `yaml:"domain"`
	Packing PackingConfig  `yaml:"packing"`
	Lattice *LatticeConfig `yaml:"lattice,omitempty"`
	Logging LoggingConfig  `yaml:"logging"`

	// Script is a path to a packing script. When set, the script replaces
	// the domain/packing/lattice sections above.
	Script string `yaml:"script,omitempty"`

	// Output is a path the packed arrangement is written to as YAML.
	// Empty means no output file.
	Output string `yaml:"output,omitempty"`
}

// DomainConfig describes the container spheres are packed into.
type DomainConfig struct {
	Shape  string     `yaml:"shape"`            // box, cylinder, sphere, shell
	Size   [3]float64 `yaml:"size,omitempty"`   // box edge lengths
	Height float64    `yaml:"height,omitempty"` // cylinder
	Radius float64    `yaml:"radius,omitempty"` // cylinder, sphere
	Inner  float64    `yaml:"inner,omitempty"`  // shell
	Outer  float64    `yaml:"outer,omitempty"`  // shell
	Center [3]float64 `yaml:"center,omitempty"`
}

// Build constructs the configured domain.
func (d DomainConfig) Build() (domain.Domain, error) {
	center := vec3(d.Center)
	switch d.Shape {
	case "box":
		return domain.NewBox(d.Size[0], d.Size[1], d.Size[2], center)
	case "cylinder":
		return domain.NewCylinder(d.Height, d.Radius, center)
	case "sphere":
		return domain.NewSphere(d.Radius, center)
	case "shell":
		return domain.NewShell(d.Inner, d.Outer, center)
	}
	return nil, &geom.ConfigurationError{
		Context: "domain",
		Reason:  fmt.Sprintf("unknown shape %q, expected box, cylinder, sphere or shell", d.Shape),
	}
}

// PackingConfig holds the packing parameters.
type PackingConfig struct {
	Radius      float64 `yaml:"radius"`
	Fraction    float64 `yaml:"fraction"`
	Fill        string  `yaml:"fill,omitempty"`
	Seed        int64   `yaml:"seed,omitempty"`
	MaxAttempts int     `yaml:"max_attempts,omitempty"`
	BestEffort  bool    `yaml:"best_effort,omitempty"`
}

// LatticeConfig holds the optional lattice binning step.
type LatticeConfig struct {
	LowerLeft  [3]float64 `yaml:"lower_left"`
	Pitch      [3]float64 `yaml:"pitch"`
	Shape      [3]int     `yaml:"shape"`
	Background string     `yaml:"background,omitempty"`
}

// Spec converts the section to a lattice spec.
func (l LatticeConfig) Spec() lattice.Spec {
	return lattice.Spec{
		LowerLeft: vec3(l.LowerLeft),
		Pitch:     vec3(l.Pitch),
		Shape:     l.Shape,
	}
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file,omitempty"`
}

func vec3(a [3]float64) geom.Vec3 {
	return geom.Vec3{X: a[0], Y: a[1], Z: a[2]}
}

// Default returns a Config with sensible default values: a unit cube packed
// to 30% with TRISO-kernel sized spheres.
func Default() *Config {
	return &Config{
		Domain: DomainConfig{
			Shape: "box",
			Size:  [3]float64{1, 1, 1},
		},
		Packing: PackingConfig{
			Radius:   0.0425,
			Fraction: 0.30,
			Fill:     "fuel",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
