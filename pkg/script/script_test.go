package script

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Preprocessing tests
// ---------------------------------------------------------------------------

func TestPreprocessKeywords(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{
			name:   "simple keyword",
			input:  `(sphere-domain :radius 5)`,
			expect: `(sphere_domain "__kw_radius" 5)`,
		},
		{
			name:   "multiple keywords",
			input:  `(box-domain :x 10 :y 20)`,
			expect: `(box_domain "__kw_x" 10 "__kw_y" 20)`,
		},
		{
			name:   "keyword in string preserved",
			input:  `"thing with :keyword inside"`,
			expect: `"thing with :keyword inside"`,
		},
		{
			name:   "assignment operator preserved",
			input:  `(def x := 10)`,
			expect: `(def x := 10)`,
		},
		{
			name:   "kebab-case identifier",
			input:  `(pack-spheres dom :radius 1)`,
			expect: `(pack_spheres dom "__kw_radius" 1)`,
		},
		{
			name:   "minus operator preserved",
			input:  `(- 10 5)`,
			expect: `(- 10 5)`,
		},
		{
			name:   "comment converted to // style",
			input:  `;; comment with :keyword`,
			expect: `// comment with :keyword`,
		},
		{
			name:   "single semicolon comment",
			input:  `; simple comment`,
			expect: `// simple comment`,
		},
		{
			name:   "hyphen in keyword preserved",
			input:  `:best-effort`,
			expect: `"__kw_best-effort"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preprocessSource(tt.input)
			if got != tt.expect {
				t.Errorf("preprocessSource(%q) = %q, want %q", tt.input, got, tt.expect)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Engine basics
// ---------------------------------------------------------------------------

func TestEvaluateEmptySource(t *testing.T) {
	eng := NewEngine(nil)

	m, evalErrs, err := eng.Evaluate("")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if m == nil {
		t.Fatal("expected non-nil model")
	}
	if len(m.Packings) != 0 || len(m.Lattices) != 0 {
		t.Errorf("expected empty model, got %d packings and %d lattices",
			len(m.Packings), len(m.Lattices))
	}
}

func TestEvaluateWhitespaceOnly(t *testing.T) {
	eng := NewEngine(nil)

	m, evalErrs, err := eng.Evaluate("   \n\t  \n  ")
	if err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("unexpected eval errors: %v", evalErrs)
	}
	if m == nil {
		t.Fatal("expected non-nil model")
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	eng := NewEngine(nil)

	m, evalErrs, err := eng.Evaluate("(box-domain :x 1")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if m != nil {
		t.Fatal("expected nil model on syntax error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for syntax error")
	}
	if evalErrs[0].Message == "" {
		t.Error("eval error message should not be empty")
	}
}

func TestEvaluateUndefinedSymbol(t *testing.T) {
	eng := NewEngine(nil)

	m, evalErrs, err := eng.Evaluate("(pack-spheres missing-domain :radius 1)")
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if m != nil {
		t.Fatal("expected nil model on eval error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected at least one eval error for undefined symbol")
	}
}

func TestEvalErrorImplementsError(t *testing.T) {
	e := EvalError{Line: 5, Col: 0, Message: "something went wrong"}
	s := e.Error()
	if !strings.Contains(s, "line 5") {
		t.Errorf("Error() should contain line info, got: %s", s)
	}
	if !strings.Contains(s, "something went wrong") {
		t.Errorf("Error() should contain message, got: %s", s)
	}

	e2 := EvalError{Line: 0, Col: 0, Message: "no location"}
	if strings.Contains(e2.Error(), "line") {
		t.Errorf("Error() with no line should not contain 'line', got: %s", e2.Error())
	}
}

// ---------------------------------------------------------------------------
// Packing pipeline tests
// ---------------------------------------------------------------------------

func TestEvaluateBoxPacking(t *testing.T) {
	eng := NewEngine(nil)

	source := `
(def cube (box-domain :x 1 :y 1 :z 1))
(pack-spheres cube :radius 0.08 :fraction 0.2 :seed 7 :fill "fuel")
`
	m, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if len(m.Packings) != 1 {
		t.Fatalf("expected 1 packing, got %d", len(m.Packings))
	}

	res := m.Packings[0]
	if len(res.Spheres) == 0 {
		t.Fatal("expected a non-empty packing")
	}
	if res.Fraction < 0.19 || res.Fraction > 0.21 {
		t.Errorf("fraction = %g, want about 0.2", res.Fraction)
	}
	for i, s := range res.Spheres {
		if s.Radius != 0.08 {
			t.Fatalf("sphere %d: radius = %g, want 0.08", i, s.Radius)
		}
		if s.Fill != "fuel" {
			t.Fatalf("sphere %d: fill = %v, want %q", i, s.Fill, "fuel")
		}
		if !res.Domain.Contains(s.Center) {
			t.Fatalf("sphere %d: center %v outside the domain", i, s.Center)
		}
	}
}

func TestEvaluateFullPipeline(t *testing.T) {
	eng := NewEngine(nil)

	source := `
; pack a cube of side 3 and bin it onto a 3x3x3 lattice
(def cube (box-domain :x 3 :y 3 :z 3 :center (vec3 1.5 1.5 1.5)))
(def pk (pack-spheres cube :radius 0.1 :fraction 0.15 :seed 5 :fill "kernel"))
(bin-lattice pk
  :lower-left (vec3 0 0 0)
  :pitch (vec3 1 1 1)
  :shape (list 3 3 3)
  :background :matrix)
`
	m, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if len(m.Packings) != 1 {
		t.Fatalf("expected 1 packing, got %d", len(m.Packings))
	}
	if len(m.Lattices) != 1 {
		t.Fatalf("expected 1 lattice, got %d", len(m.Lattices))
	}

	asm := m.Lattices[0]
	if got := len(asm.Cells()); got != 27 {
		t.Fatalf("cell count = %d, want 27", got)
	}
	if asm.TotalSpheres() != len(m.Packings[0].Spheres) {
		t.Errorf("lattice holds %d spheres, packing has %d",
			asm.TotalSpheres(), len(m.Packings[0].Spheres))
	}
	if asm.Background != "matrix" {
		t.Errorf("background = %v, want %q", asm.Background, "matrix")
	}
}

func TestEvaluateAllDomainKinds(t *testing.T) {
	eng := NewEngine(nil)

	source := `
(pack-spheres (cylinder-domain :height 1 :radius 0.5) :radius 0.05 :fraction 0.1 :seed 1)
(pack-spheres (sphere-domain :radius 0.5) :radius 0.05 :fraction 0.1 :seed 2)
(pack-spheres (shell-domain :inner 0.25 :outer 0.55) :radius 0.05 :fraction 0.1 :seed 3)
`
	m, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("fatal error: %v", err)
	}
	if len(evalErrs) > 0 {
		t.Fatalf("eval errors: %v", evalErrs)
	}
	if len(m.Packings) != 3 {
		t.Fatalf("expected 3 packings, got %d", len(m.Packings))
	}
	for i, res := range m.Packings {
		if len(res.Spheres) == 0 {
			t.Errorf("packing %d is empty", i)
		}
	}
}

func TestEvaluateDeterministicScript(t *testing.T) {
	eng := NewEngine(nil)

	source := `
(pack-spheres (box-domain :x 1 :y 1 :z 1) :radius 0.08 :fraction 0.15 :seed 7)
`
	first, evalErrs, err := eng.Evaluate(source)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("first run failed: %v %v", err, evalErrs)
	}
	second, evalErrs, err := eng.Evaluate(source)
	if err != nil || len(evalErrs) > 0 {
		t.Fatalf("second run failed: %v %v", err, evalErrs)
	}

	a, b := first.Packings[0], second.Packings[0]
	if len(a.Spheres) != len(b.Spheres) {
		t.Fatalf("sphere counts differ: %d vs %d", len(a.Spheres), len(b.Spheres))
	}
	for i := range a.Spheres {
		if a.Spheres[i].Center != b.Spheres[i].Center {
			t.Fatalf("sphere %d centers differ: %v vs %v",
				i, a.Spheres[i].Center, b.Spheres[i].Center)
		}
	}
}

// ---------------------------------------------------------------------------
// Builtin error surfacing
// ---------------------------------------------------------------------------

func TestEvaluateInvalidDomainArgument(t *testing.T) {
	eng := NewEngine(nil)

	m, evalErrs, err := eng.Evaluate(`(box-domain :x -1 :y 1 :z 1)`)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if m != nil {
		t.Fatal("expected nil model on builtin error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected an eval error for an invalid box size")
	}
	if !strings.Contains(evalErrs[0].Message, "box-domain") {
		t.Errorf("error should name the builtin, got: %q", evalErrs[0].Message)
	}
}

func TestEvaluateWrongPositionalType(t *testing.T) {
	eng := NewEngine(nil)

	m, evalErrs, err := eng.Evaluate(`(pack-spheres 42 :radius 0.1 :fraction 0.2)`)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if m != nil {
		t.Fatal("expected nil model on builtin error")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected an eval error for a non-domain argument")
	}
	if !strings.Contains(evalErrs[0].Message, "pack-spheres") {
		t.Errorf("error should name the builtin, got: %q", evalErrs[0].Message)
	}
}

func TestEvaluateInfeasibleFraction(t *testing.T) {
	eng := NewEngine(nil)

	source := `
(pack-spheres (box-domain :x 1 :y 1 :z 1) :radius 0.1 :fraction 0.65)
`
	m, evalErrs, err := eng.Evaluate(source)
	if err != nil {
		t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
	}
	if m != nil {
		t.Fatal("expected nil model when packing fails")
	}
	if len(evalErrs) == 0 {
		t.Fatal("expected an eval error for an unreachable fraction")
	}
	if !strings.Contains(evalErrs[0].Message, "pack-spheres") {
		t.Errorf("error should name the builtin, got: %q", evalErrs[0].Message)
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "error on line format",
			msg:      "Error on line 5: unexpected token\n",
			wantLine: 5,
			wantMsg:  "unexpected token",
		},
		{
			name:     "no line info",
			msg:      "some generic error",
			wantLine: 0,
			wantMsg:  "some generic error",
		},
		{
			name:     "line format lowercase",
			msg:      "error on line 12: missing paren",
			wantLine: 12,
			wantMsg:  "missing paren",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errString(tt.msg))
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			e := errs[0]
			if e.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", e.Line, tt.wantLine)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}
		})
	}
}

// errString is a simple error type for testing.
type errString string

func (e errString) Error() string { return string(e) }
