// Package pack generates dense random arrangements of equal, non-overlapping
// spheres inside a bounded domain.
//
// Packing runs in two phases. Sequential addition samples positions
// uniformly and accepts only overlap-free ones; on its own it jams near a 38%
// packing fraction. Past the jam, densification inserts one sphere at a time
// at the least-overlapping sampled position and settles its neighborhood with
// a cascade of pairwise displacements; an insertion whose cascade does not
// settle is rolled back and retried elsewhere. The arrangement is valid after
// every accepted insertion, so density climbs monotonically to the target, up
// to the random close packing limit.
package pack

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/zzmjohn/openmc/pkg/domain"
	"github.com/zzmjohn/openmc/pkg/geom"
)

// MaxFraction is the densest packing fraction the algorithm accepts. Random
// close packing of equal spheres jams near 0.64; stopping at 0.6 leaves the
// densification phase room to converge.
const MaxFraction = 0.6

// DefaultMaxAttempts bounds the candidate placements of one packing run.
const DefaultMaxAttempts = 2_000_000

// DefaultStallLimit is the run of consecutive rejections after which
// sequential addition is considered jammed.
const DefaultStallLimit = 2000

// DefaultCandidates is the number of positions sampled per densification
// insertion.
const DefaultCandidates = 8

const (
	// containRetry caps rejection-sampling tries per interior sample.
	containRetry = 64
	// relaxFloor and relaxScale size the default displacement budget of one
	// insertion cascade from the resident population.
	relaxFloor = 400
	relaxScale = 4
	// separation scales pair displacement so a resolved pair ends with a
	// hair of clearance rather than exact contact.
	separation = 1.0 + 1e-9
	// boundEps keeps points projected back through a domain surface
	// strictly inside it.
	boundEps = 1e-9
)

// Config controls a packing run.
type Config struct {
	// Radius is the sphere radius. Required, positive.
	Radius float64

	// Fraction is the target packing fraction, in (0, MaxFraction].
	Fraction float64

	// Fill is attached unchanged to every generated sphere. May be nil.
	// The packer never inspects it.
	Fill any

	// Seed selects the random sequence. Equal seeds give bit-identical
	// arrangements. Zero draws a time-based seed and makes the run
	// non-reproducible.
	Seed int64

	// MaxAttempts bounds the candidate placements tried across both phases
	// and is never exceeded. Displacement work during densification is
	// bounded separately, per insertion. Zero means DefaultMaxAttempts.
	MaxAttempts int

	// StallLimit is the run of consecutive rejected samples after which
	// sequential addition hands over to densification. Zero means
	// DefaultStallLimit.
	StallLimit int

	// Candidates is the number of positions sampled per densification
	// insertion; the least-overlapping one is kept. Zero means
	// DefaultCandidates.
	Candidates int

	// RelaxLimit caps the displacements one insertion cascade may make
	// before the insertion is rolled back. Zero scales the cap with the
	// number of resident spheres.
	RelaxLimit int

	// BestEffort returns the densest valid arrangement found instead of
	// failing when the target cannot be met within the attempt budget.
	BestEffort bool

	// Logger receives progress and diagnostics. Nil disables logging.
	Logger *zap.Logger
}

// Packer generates non-overlapping sphere arrangements inside a domain.
// A Packer is immutable and may be reused for several runs.
type Packer struct {
	cfg Config
	log *zap.Logger
}

// New validates cfg and creates a Packer.
func New(cfg Config) (*Packer, error) {
	if cfg.Radius <= 0 {
		return nil, &geom.ConfigurationError{
			Context: "packer",
			Reason:  fmt.Sprintf("sphere radius must be positive, got %g", cfg.Radius),
		}
	}
	if cfg.Fraction <= 0 {
		return nil, &geom.ConfigurationError{
			Context: "packer",
			Reason:  fmt.Sprintf("packing fraction must be positive, got %g", cfg.Fraction),
		}
	}
	if cfg.MaxAttempts < 0 {
		return nil, &geom.ConfigurationError{
			Context: "packer",
			Reason:  fmt.Sprintf("attempt budget must not be negative, got %d", cfg.MaxAttempts),
		}
	}
	if cfg.StallLimit < 0 {
		return nil, &geom.ConfigurationError{
			Context: "packer",
			Reason:  fmt.Sprintf("stall limit must not be negative, got %d", cfg.StallLimit),
		}
	}
	if cfg.Candidates < 0 {
		return nil, &geom.ConfigurationError{
			Context: "packer",
			Reason:  fmt.Sprintf("candidate count must not be negative, got %d", cfg.Candidates),
		}
	}
	if cfg.RelaxLimit < 0 {
		return nil, &geom.ConfigurationError{
			Context: "packer",
			Reason:  fmt.Sprintf("relaxation limit must not be negative, got %d", cfg.RelaxLimit),
		}
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.StallLimit == 0 {
		cfg.StallLimit = DefaultStallLimit
	}
	if cfg.Candidates == 0 {
		cfg.Candidates = DefaultCandidates
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Packer{cfg: cfg, log: log}, nil
}

// Result is one completed packing.
type Result struct {
	// Spheres in insertion order, centers in the domain's absolute frame.
	Spheres []geom.Sphere

	// Domain the spheres were packed into.
	Domain domain.Domain

	// Fraction actually achieved: total sphere volume over domain volume.
	Fraction float64

	// Attempts is the number of candidate placements consumed.
	Attempts int
}

// InfeasibleError reports that the requested density could not be reached.
type InfeasibleError struct {
	Requested int // spheres needed for the target fraction
	Achieved  int // spheres actually placed
	Attempts  int // placements consumed before giving up
	Reason    string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("packing infeasible: %s (placed %d of %d spheres after %d attempts)",
		e.Reason, e.Achieved, e.Requested, e.Attempts)
}

// TargetCount returns the number of radius-r spheres whose combined volume
// fills the given fraction of the domain.
func TargetCount(d domain.Domain, radius, fraction float64) int {
	return int(math.Round(fraction * d.Volume() / geom.SphereVolume(radius)))
}

// Pack generates a sphere arrangement in d. On success every sphere center
// lies inside the domain shrunk by the sphere radius and every pair of
// centers is at least one diameter apart.
//
// A fraction above MaxFraction, or an exhausted attempt budget without
// BestEffort, yields an *InfeasibleError. A domain too small for a single
// sphere yields a *geom.ConfigurationError.
func (p *Packer) Pack(d domain.Domain) (*Result, error) {
	target := TargetCount(d, p.cfg.Radius, p.cfg.Fraction)
	if p.cfg.Fraction > MaxFraction {
		return nil, &InfeasibleError{
			Requested: target,
			Reason: fmt.Sprintf("target fraction %g exceeds the random close packing limit %g",
				p.cfg.Fraction, MaxFraction),
		}
	}
	inner, err := d.Interior(p.cfg.Radius)
	if err != nil {
		return nil, err
	}
	index, err := NewIndex(2 * p.cfg.Radius)
	if err != nil {
		return nil, err
	}

	seed := p.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	r := &run{
		cfg:    p.cfg,
		log:    p.log,
		dom:    d,
		inner:  inner,
		bounds: inner.Bounds(),
		rng:    rand.New(rand.NewSource(seed)),
		index:  index,
		target: target,
	}

	r.seed()
	r.densify()

	if len(r.centers) < r.target {
		if !p.cfg.BestEffort {
			return nil, &InfeasibleError{
				Requested: r.target,
				Achieved:  len(r.centers),
				Attempts:  r.attempts,
				Reason:    "attempt budget exhausted before reaching the target fraction",
			}
		}
		p.log.Warn("returning best-effort packing below target",
			zap.Int("requested", r.target),
			zap.Int("placed", len(r.centers)),
			zap.Int("attempts", r.attempts))
	}

	res := r.result()
	p.log.Info("packing complete",
		zap.Int("spheres", len(res.Spheres)),
		zap.Float64("fraction", res.Fraction),
		zap.Int("attempts", res.Attempts))
	return res, nil
}

// run is the mutable state of one Pack call.
type run struct {
	cfg    Config
	log    *zap.Logger
	dom    domain.Domain
	inner  domain.Domain
	bounds geom.Box
	rng    *rand.Rand
	index  *Index

	target   int
	attempts int
	centers  []geom.Vec3
	buf      []int // scratch for index queries

	queue  []int // cascade worklist, breadth first
	head   int
	queued []bool
	moves  []move // displacement log of the cascade in flight
}

// move records a sphere's position before a cascade displaced it.
type move struct {
	id   int
	from geom.Vec3
}

// seed is the sequential addition phase: sample uniformly, accept only
// overlap-free positions. Stops at the target or after a stall-limit run of
// consecutive rejections, the sign that random insertion has jammed.
func (r *run) seed() {
	misses := 0
	for len(r.centers) < r.target && misses < r.cfg.StallLimit && r.attempts < r.cfg.MaxAttempts {
		c, ok := r.sampleInterior()
		if !ok {
			break
		}
		if r.penetrationAt(c) > 0 {
			misses++
			continue
		}
		r.accept(c)
		misses = 0
	}
	r.log.Debug("sequential addition finished",
		zap.Int("placed", len(r.centers)),
		zap.Int("target", r.target),
		zap.Int("attempts", r.attempts))
}

// densify fills the gap between the jammed bed and the target one sphere at
// a time. Every accepted insertion leaves the arrangement valid, so a later
// failed insertion never costs spheres already placed.
func (r *run) densify() {
	for len(r.centers) < r.target && r.attempts < r.cfg.MaxAttempts {
		r.place()
	}
	if len(r.centers) < r.target {
		r.log.Debug("densification stopped short",
			zap.Int("placed", len(r.centers)),
			zap.Int("target", r.target),
			zap.Int("attempts", r.attempts))
	}
}

// place tries one densification insertion: take the least-overlapping of the
// sampled candidates, then settle the overlaps it causes. A cascade that
// fails to settle is rolled back, restoring the prior valid arrangement.
func (r *run) place() {
	c, ok := r.bestCandidate()
	if !ok {
		return
	}
	id := r.accept(c)
	if r.settle(id) {
		return
	}
	r.rollback(id)
}

// settle resolves the violations introduced by sphere id with a breadth-first
// cascade: overlapping pairs are projected apart, spheres pushed through the
// boundary are pulled back inside, and every displaced sphere is re-examined
// until nothing is left in violation. Reports false when the displacement
// budget runs out first; the move log then supports rollback.
func (r *run) settle(id int) bool {
	r.moves = r.moves[:0]
	r.queue = r.queue[:0]
	r.head = 0
	r.push(id)

	budget := r.cfg.RelaxLimit
	if budget == 0 {
		budget = relaxFloor + relaxScale*len(r.centers)
	}

	used := 0
	for r.head < len(r.queue) {
		if used > budget {
			for _, i := range r.queue[r.head:] {
				r.queued[i] = false
			}
			return false
		}
		i := r.queue[r.head]
		r.head++
		r.queued[i] = false

		if !r.inner.Contains(r.centers[i]) {
			r.record(i)
			r.displace(i, r.clampInside(r.centers[i]))
			used++
		}

		moved := false
		r.buf = r.index.Neighbors(r.centers[i], r.buf[:0])
		for _, j := range r.buf {
			if j == i {
				continue
			}
			dist := r.centers[i].Dist(r.centers[j])
			pen := 2*r.cfg.Radius - dist
			if pen <= 0 {
				continue
			}
			r.record(i)
			r.record(j)
			r.separate(i, j, dist, pen)
			used++
			r.push(j)
			moved = true
		}
		// A separated sphere may have slid into a new neighborhood or out
		// of the interior; look at it again from its new position.
		if moved || !r.inner.Contains(r.centers[i]) {
			r.push(i)
		}
	}
	return true
}

// rollback undoes a failed insertion: every sphere the cascade displaced is
// restored from the move log and the inserted sphere is removed, returning
// the arrangement to the valid state it had before the attempt.
func (r *run) rollback(id int) {
	for k := len(r.moves) - 1; k >= 0; k-- {
		m := r.moves[k]
		r.centers[m.id] = m.from
		r.index.Move(m.id, m.from)
	}
	r.index.Remove(id)
	r.centers = r.centers[:id]
	r.queued = r.queued[:id]
}

func (r *run) push(i int) {
	if r.queued[i] {
		return
	}
	r.queued[i] = true
	r.queue = append(r.queue, i)
}

func (r *run) record(id int) {
	r.moves = append(r.moves, move{id: id, from: r.centers[id]})
}

// separate pushes an overlapping pair fully apart along the line of
// centers, splitting the correction between both spheres.
func (r *run) separate(i, j int, dist, pen float64) {
	var dir geom.Vec3
	if dist > 0 {
		dir = r.centers[j].Sub(r.centers[i]).Mul(1 / dist)
	} else {
		// Coincident centers carry no direction; pick a random one.
		dir = r.randomDir()
	}
	step := separation * pen / 2
	r.displace(i, r.centers[i].Sub(dir.Mul(step)))
	r.displace(j, r.centers[j].Add(dir.Mul(step)))
}

// displace moves a sphere and keeps the index in step.
func (r *run) displace(id int, c geom.Vec3) {
	r.centers[id] = c
	r.index.Move(id, c)
}

// clampInside projects a point that left the interior back along the
// distance-field gradient. Convex shapes land in one step; the loop covers
// the shell's concave inner wall.
func (r *run) clampInside(c geom.Vec3) geom.Vec3 {
	for step := 0; step < 3; step++ {
		dist := r.inner.Distance(c)
		if dist <= 0 {
			return c
		}
		n := domain.Gradient(r.inner, c)
		if n.Len() == 0 {
			break
		}
		c = c.Sub(n.Mul(dist + boundEps))
	}
	return c
}

// accept adds a sphere and returns its id. Ids are dense and insertion
// ordered; only the most recent one is ever removed, by rollback.
func (r *run) accept(c geom.Vec3) int {
	id := len(r.centers)
	r.centers = append(r.centers, c)
	r.queued = append(r.queued, false)
	r.index.Insert(id, c)
	return id
}

// bestCandidate samples interior positions and returns the one with the
// least total penetration, short-circuiting on a free spot.
func (r *run) bestCandidate() (geom.Vec3, bool) {
	var best geom.Vec3
	bestPen := math.Inf(1)
	found := false
	for k := 0; k < r.cfg.Candidates && r.attempts < r.cfg.MaxAttempts; k++ {
		c, ok := r.sampleInterior()
		if !ok {
			break
		}
		pen := r.penetrationAt(c)
		if pen == 0 {
			return c, true
		}
		if pen < bestPen {
			best, bestPen = c, pen
			found = true
		}
	}
	return best, found
}

// sampleInterior draws a uniform point in the interior by rejection
// sampling over its bounding box. One call costs one placement attempt.
func (r *run) sampleInterior() (geom.Vec3, bool) {
	r.attempts++
	size := r.bounds.Size()
	for t := 0; t < containRetry; t++ {
		c := geom.Vec3{
			X: r.bounds.Min.X + r.rng.Float64()*size.X,
			Y: r.bounds.Min.Y + r.rng.Float64()*size.Y,
			Z: r.bounds.Min.Z + r.rng.Float64()*size.Z,
		}
		if r.inner.Contains(c) {
			return c, true
		}
	}
	return geom.Vec3{}, false
}

// randomDir returns a uniformly random unit vector.
func (r *run) randomDir() geom.Vec3 {
	for {
		v := geom.Vec3{
			X: r.rng.Float64()*2 - 1,
			Y: r.rng.Float64()*2 - 1,
			Z: r.rng.Float64()*2 - 1,
		}
		if l := v.Len(); l > 1e-9 && l <= 1 {
			return v.Mul(1 / l)
		}
	}
}

// penetrationAt sums the overlap depth a new sphere centered at c would
// have against the current population.
func (r *run) penetrationAt(c geom.Vec3) float64 {
	pen := 0.0
	r.buf = r.index.Neighbors(c, r.buf[:0])
	for _, j := range r.buf {
		if p := 2*r.cfg.Radius - c.Dist(r.centers[j]); p > 0 {
			pen += p
		}
	}
	return pen
}

// result copies the arrangement, in insertion order, into a Result.
func (r *run) result() *Result {
	spheres := make([]geom.Sphere, len(r.centers))
	for i, c := range r.centers {
		spheres[i] = geom.Sphere{
			Center: c,
			Radius: r.cfg.Radius,
			Fill:   r.cfg.Fill,
		}
	}
	return &Result{
		Spheres:  spheres,
		Domain:   r.dom,
		Fraction: float64(len(spheres)) * geom.SphereVolume(r.cfg.Radius) / r.dom.Volume(),
		Attempts: r.attempts,
	}
}
