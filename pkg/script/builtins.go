package script

import (
	"fmt"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
	"go.uber.org/zap"

	"github.com/zzmjohn/openmc/pkg/domain"
	"github.com/zzmjohn/openmc/pkg/geom"
	"github.com/zzmjohn/openmc/pkg/lattice"
	"github.com/zzmjohn/openmc/pkg/pack"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms packing script source code before passing it to
// zygomys. It performs two transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: pack-spheres -> pack_spheres
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator). This converts kebab-case identifiers
//     to underscore form outside of strings and comments.
//
// Both transformations respect string literal boundaries and line comments.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpVec3 wraps a geom.Vec3.
type sexpVec3 struct {
	vec geom.Vec3
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpDomain wraps a domain.Domain so it can be returned from the domain
// constructors and consumed by pack-spheres.
type sexpDomain struct {
	dom  domain.Domain
	desc string
}

func (d *sexpDomain) SexpString(ps *zygo.PrintState) string {
	return "(" + d.desc + ")"
}
func (d *sexpDomain) Type() *zygo.RegisteredType { return nil }

// sexpPacking wraps a pack.Result so it can be passed to bin-lattice.
type sexpPacking struct {
	result *pack.Result
}

func (p *sexpPacking) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(packing %d spheres, fraction %.4f)",
		len(p.result.Spheres), p.result.Fraction)
}
func (p *sexpPacking) Type() *zygo.RegisteredType { return nil }

// sexpLattice wraps a lattice.Assignment.
type sexpLattice struct {
	asm *lattice.Assignment
}

func (l *sexpLattice) SexpString(ps *zygo.PrintState) string {
	s := l.asm.Spec.Shape
	return fmt.Sprintf("(lattice %dx%dx%d, %d spheres)",
		s[0], s[1], s[2], l.asm.TotalSpheres())
}
func (l *sexpLattice) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments.
// Keywords are identified by the __kw_ prefix added during preprocessing.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if ok {
			if i+1 < len(args) {
				result.kw[name] = args[i+1]
				i += 2
			} else {
				// Keyword at end with no value, treat as flag with nil.
				result.kw[name] = zygo.SexpNull
				i++
			}
		} else {
			result.positional = append(result.positional, args[i])
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an int from a SexpInt.
func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toBool extracts a bool from a SexpBool.
func toBool(s zygo.Sexp) (bool, error) {
	if v, ok := s.(*zygo.SexpBool); ok {
		return v.Val, nil
	}
	return false, fmt.Errorf("expected bool, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_fuel) and plain strings ("fuel").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

// toVec3 extracts a Vec3 from a sexpVec3.
func toVec3(s zygo.Sexp) (geom.Vec3, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return geom.Vec3{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toDomain extracts a Domain from a sexpDomain.
func toDomain(s zygo.Sexp) (domain.Domain, error) {
	if d, ok := s.(*sexpDomain); ok {
		return d.dom, nil
	}
	return nil, fmt.Errorf("expected domain, got %T (%s)", s, s.SexpString(nil))
}

// toPacking extracts a pack.Result from a sexpPacking.
func toPacking(s zygo.Sexp) (*pack.Result, error) {
	if p, ok := s.(*sexpPacking); ok {
		return p.result, nil
	}
	return nil, fmt.Errorf("expected packing, got %T (%s)", s, s.SexpString(nil))
}

// toShape converts a 3-element list or array of integers to a lattice shape.
func toShape(s zygo.Sexp) ([3]int, error) {
	items, err := sexpListToSlice(s)
	if err != nil {
		return [3]int{}, err
	}
	if len(items) != 3 {
		return [3]int{}, fmt.Errorf("expected 3 integers, got %d elements", len(items))
	}
	var shape [3]int
	for i, item := range items {
		n, err := toInt(item)
		if err != nil {
			return [3]int{}, fmt.Errorf("element %d: %w", i, err)
		}
		shape[i] = n
	}
	return shape, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// registerBuiltins installs the packing DSL builtins into a zygomys
// environment. The builtins operate on the provided Model, populating it
// during evaluation.
//
// Source code must be preprocessed with preprocessSource() before evaluation so
// that :keyword tokens are converted to recognizable string literals.
func registerBuiltins(env *zygo.Zlisp, m *Model, log *zap.Logger) {

	// -----------------------------------------------------------------------
	// (vec3 1 2 3)
	// -----------------------------------------------------------------------
	env.AddFunction("vec3", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
		}

		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: y: %w", err)
		}
		z, err := toFloat64(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: z: %w", err)
		}

		return &sexpVec3{vec: geom.Vec3{X: x, Y: y, Z: z}}, nil
	})

	// -----------------------------------------------------------------------
	// (box-domain :x 10 :y 10 :z 10 :center (vec3 0 0 0))
	// -----------------------------------------------------------------------
	env.AddFunction("box_domain", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var sx, sy, sz float64
		var center geom.Vec3

		if v, ok := pa.kw["x"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box-domain: x: %w", err)
			}
			sx = f
		}
		if v, ok := pa.kw["y"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box-domain: y: %w", err)
			}
			sy = f
		}
		if v, ok := pa.kw["z"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box-domain: z: %w", err)
			}
			sz = f
		}
		if v, ok := pa.kw["center"]; ok {
			c, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("box-domain: center: %w", err)
			}
			center = c
		}

		dom, err := domain.NewBox(sx, sy, sz, center)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("box-domain: %w", err)
		}
		return &sexpDomain{
			dom:  dom,
			desc: fmt.Sprintf("box-domain %gx%gx%g", sx, sy, sz),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (cylinder-domain :height 25 :radius 6.2 :center (vec3 0 0 0))
	// -----------------------------------------------------------------------
	env.AddFunction("cylinder_domain", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var height, radius float64
		var center geom.Vec3

		if v, ok := pa.kw["height"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder-domain: height: %w", err)
			}
			height = f
		}
		if v, ok := pa.kw["radius"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder-domain: radius: %w", err)
			}
			radius = f
		}
		if v, ok := pa.kw["center"]; ok {
			c, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("cylinder-domain: center: %w", err)
			}
			center = c
		}

		dom, err := domain.NewCylinder(height, radius, center)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("cylinder-domain: %w", err)
		}
		return &sexpDomain{
			dom:  dom,
			desc: fmt.Sprintf("cylinder-domain h=%g r=%g", height, radius),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (sphere-domain :radius 5 :center (vec3 0 0 0))
	// -----------------------------------------------------------------------
	env.AddFunction("sphere_domain", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var radius float64
		var center geom.Vec3

		if v, ok := pa.kw["radius"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("sphere-domain: radius: %w", err)
			}
			radius = f
		}
		if v, ok := pa.kw["center"]; ok {
			c, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("sphere-domain: center: %w", err)
			}
			center = c
		}

		dom, err := domain.NewSphere(radius, center)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("sphere-domain: %w", err)
		}
		return &sexpDomain{
			dom:  dom,
			desc: fmt.Sprintf("sphere-domain r=%g", radius),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (shell-domain :inner 2 :outer 5 :center (vec3 0 0 0))
	// -----------------------------------------------------------------------
	env.AddFunction("shell_domain", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		var inner, outer float64
		var center geom.Vec3

		if v, ok := pa.kw["inner"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("shell-domain: inner: %w", err)
			}
			inner = f
		}
		if v, ok := pa.kw["outer"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("shell-domain: outer: %w", err)
			}
			outer = f
		}
		if v, ok := pa.kw["center"]; ok {
			c, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("shell-domain: center: %w", err)
			}
			center = c
		}

		dom, err := domain.NewShell(inner, outer, center)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("shell-domain: %w", err)
		}
		return &sexpDomain{
			dom:  dom,
			desc: fmt.Sprintf("shell-domain %g..%g", inner, outer),
		}, nil
	})

	// -----------------------------------------------------------------------
	// (pack-spheres dom :radius 0.4 :fraction 0.3 :seed 42 :fill "triso"
	//               :max-attempts 1000000 :best-effort true)
	// -----------------------------------------------------------------------
	env.AddFunction("pack_spheres", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("pack-spheres requires a domain as first argument")
		}
		dom, err := toDomain(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pack-spheres: domain: %w", err)
		}

		cfg := pack.Config{Logger: log}
		if v, ok := pa.kw["radius"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("pack-spheres: radius: %w", err)
			}
			cfg.Radius = f
		}
		if v, ok := pa.kw["fraction"]; ok {
			f, err := toFloat64(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("pack-spheres: fraction: %w", err)
			}
			cfg.Fraction = f
		}
		if v, ok := pa.kw["seed"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("pack-spheres: seed: %w", err)
			}
			cfg.Seed = int64(n)
		}
		if v, ok := pa.kw["fill"]; ok {
			s, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("pack-spheres: fill: %w", err)
			}
			cfg.Fill = s
		}
		if v, ok := pa.kw["max-attempts"]; ok {
			n, err := toInt(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("pack-spheres: max-attempts: %w", err)
			}
			cfg.MaxAttempts = n
		}
		if v, ok := pa.kw["best-effort"]; ok {
			b, err := toBool(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("pack-spheres: best-effort: %w", err)
			}
			cfg.BestEffort = b
		}

		p, err := pack.New(cfg)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pack-spheres: %w", err)
		}
		res, err := p.Pack(dom)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pack-spheres: %w", err)
		}

		m.Packings = append(m.Packings, res)
		return &sexpPacking{result: res}, nil
	})

	// -----------------------------------------------------------------------
	// (bin-lattice pk :lower-left (vec3 0 0 0) :pitch (vec3 1 1 1)
	//              :shape (list 3 3 3) :background "matrix")
	// -----------------------------------------------------------------------
	env.AddFunction("bin_lattice", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)

		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("bin-lattice requires a packing as first argument")
		}
		res, err := toPacking(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("bin-lattice: packing: %w", err)
		}

		spec := lattice.Spec{}
		if v, ok := pa.kw["lower-left"]; ok {
			c, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("bin-lattice: lower-left: %w", err)
			}
			spec.LowerLeft = c
		}
		if v, ok := pa.kw["pitch"]; ok {
			c, err := toVec3(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("bin-lattice: pitch: %w", err)
			}
			spec.Pitch = c
		}
		if v, ok := pa.kw["shape"]; ok {
			sh, err := toShape(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("bin-lattice: shape: %w", err)
			}
			spec.Shape = sh
		}

		var background any
		if v, ok := pa.kw["background"]; ok {
			s, err := toKeywordString(v)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("bin-lattice: background: %w", err)
			}
			background = s
		}

		a, err := lattice.Bin(res.Spheres, spec, background)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("bin-lattice: %w", err)
		}

		m.Lattices = append(m.Lattices, a)
		return &sexpLattice{asm: a}, nil
	})
}
