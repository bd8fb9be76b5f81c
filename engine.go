// Package qcollide finds the closest features of convex polytope pairs
// frame after frame.
//
// An Engine owns a table of polytopes and a cache of pair records. Each
// Evaluate runs the closest-point GJK on the supplied pairs, warm-started
// from the vertex pairs cached by the previous solve, and writes the result
// back. Broad-phase culling stays with the caller: only supplied pairs are
// touched.
package qcollide

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/akmonengine/qcollide/actor"
	"github.com/akmonengine/qcollide/epa"
	"github.com/akmonengine/qcollide/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// Result is the answer for one requested pair, in the order the caller
// gave it: ClosestPointP belongs to Pair.P and Separation points from
// Pair.P towards Pair.Q. Separation is the unit separating axis of a
// separated pair; see CollisionPair.SeparationVector for colliding ones.
type Result struct {
	Pair PairID
	// Skipped is set when either polytope is inactive; nothing else is
	// filled.
	Skipped bool

	Colliding       bool
	Distance        float64
	Penetration     float64
	Separation      mgl64.Vec3
	ClosestPointP   mgl64.Vec3
	ClosestPointQ   mgl64.Vec3
	ClosestFeatureP int
	ClosestFeatureQ int
	BoundsOverlap   bool
	// Approximate is set when the iteration cap was hit.
	Approximate bool
}

// Stats accumulates instrumentation across Evaluate calls.
type Stats struct {
	Pairs         int
	WarmStarts    int
	Iterations    int
	SupportVisits int
	Exhausted     int
	Fallbacks     int
}

type worker struct {
	search  *actor.SearchContext
	johnson gjk.Johnson
}

// job is one de-duplicated pair solve. Workers only write their own job
// and its record.
type job struct {
	id     PairID
	record *CollisionPair

	warm     bool
	visits   int
	fallback bool
	epaErr   error
}

// Engine evaluates pairs of registered polytopes and caches their state
// between calls. It is not safe for concurrent use.
type Engine struct {
	config    Config
	settings  gjk.Settings
	logger    *slog.Logger
	polytopes []*actor.Polytope
	cache     *PairCache
	workers   []*worker
	jobs      []*job
	stats     Stats

	Events Events
}

// NewEngine validates cfg and returns an empty engine.
func NewEngine(cfg Config) (*Engine, error) {
	cfg.Workers = max(DEFAULT_WORKERS, cfg.Workers)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	e := &Engine{
		config:   cfg,
		settings: cfg.settings(),
		logger:   logger,
		cache:    NewPairCache(),
		workers:  make([]*worker, cfg.Workers),
		Events:   NewEvents(),
	}
	for i := range e.workers {
		e.workers[i] = &worker{search: actor.NewSearchContext()}
	}

	return e, nil
}

// AddPolytope registers p and returns its index.
func (e *Engine) AddPolytope(p *actor.Polytope) (int, error) {
	if p == nil {
		return 0, fmt.Errorf("%w: nil polytope", ErrInvalidArgument)
	}
	e.polytopes = append(e.polytopes, p)
	index := len(e.polytopes) - 1

	e.logger.Debug("polytope added", slog.Int("index", index), slog.Int("vertices", len(p.Vertices)))
	return index, nil
}

// Polytope returns the polytope registered at index i.
func (e *Engine) Polytope(i int) (*actor.Polytope, error) {
	if err := e.checkIndex(i); err != nil {
		return nil, err
	}
	return e.polytopes[i], nil
}

// SetTransform is the per-frame update from the transform provider.
func (e *Engine) SetTransform(i int, t actor.Transform) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	e.polytopes[i].SetTransform(t)
	return nil
}

// SetMatrix takes the world matrix of polytope i and its inverse.
func (e *Engine) SetMatrix(i int, m, inverse mgl64.Mat4) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	e.polytopes[i].SetMatrix(m, inverse)
	return nil
}

// SetActive includes or excludes polytope i from evaluation. Deactivating
// releases every pair of i, so they leave the colliding set and restart
// cold, and drops its visitation tables.
func (e *Engine) SetActive(i int, active bool) error {
	if err := e.checkIndex(i); err != nil {
		return err
	}
	p := e.polytopes[i]
	p.Active = active
	if !active {
		e.cache.releasePolytope(i)
		for _, w := range e.workers {
			w.search.Forget(p)
		}
	}
	return nil
}

// Pair returns the cached record of (p, q), creating it on first reference.
func (e *Engine) Pair(p, q int) (*CollisionPair, error) {
	id := PairID{P: p, Q: q}
	if err := e.checkPair(id); err != nil {
		return nil, err
	}
	return e.cache.Get(id), nil
}

// ReleasePair marks the record of (p, q) inactive, for pairs the broad phase
// no longer reports. The record keeps its last values; the next solve starts
// cold. A released pair leaves the colliding set.
func (e *Engine) ReleasePair(p, q int) error {
	id := PairID{P: p, Q: q}
	if err := e.checkPair(id); err != nil {
		return err
	}
	e.cache.release(id)
	return nil
}

// Evaluate solves the given pairs and returns one Result per entry.
//
// Every id is validated before any work: an out-of-range index or a pair of
// a polytope with itself fails the whole call with ErrInvalidArgument.
// Pairs with an inactive polytope are skipped. A pair listed twice, in
// either order, is solved once.
//
// Records are written back whether or not the pair collides, the colliding
// set is updated and the enter/stay/exit events are flushed to subscribers.
func (e *Engine) Evaluate(pairs []PairID) ([]Result, error) {
	for _, id := range pairs {
		if err := e.checkPair(id); err != nil {
			return nil, err
		}
	}

	results := make([]Result, len(pairs))
	slots := make(map[PairID]*job, len(pairs))
	e.jobs = e.jobs[:0]

	for i, id := range pairs {
		results[i].Pair = id
		if !e.polytopes[id.P].Active || !e.polytopes[id.Q].Active {
			// Active may have been cleared on the polytope directly
			e.cache.release(id)
			results[i].Skipped = true
			continue
		}

		key := id.Normalize()
		if _, ok := slots[key]; !ok {
			j := &job{id: key, record: e.cache.Get(key)}
			slots[key] = j
			e.jobs = append(e.jobs, j)
		}
	}

	task(len(e.workers), e.jobs, func(w int, j *job) {
		e.workers[w].solve(e, j)
	})

	for _, j := range e.jobs {
		e.account(j)
	}

	for i, id := range pairs {
		if results[i].Skipped {
			continue
		}
		results[i] = slots[id.Normalize()].record.result(id)
	}

	colliding := e.cache.Colliding()
	e.Events.flush(colliding)

	e.logger.Debug("pairs evaluated",
		slog.Int("requested", len(pairs)),
		slog.Int("solved", len(e.jobs)),
		slog.Int("records", e.cache.Len()),
		slog.Int("colliding", len(colliding)),
	)

	return results, nil
}

// CheckCollisions reports whether any of the given pairs overlaps, using
// the boolean GJK test. Pairs whose bounds are apart are rejected first.
// Pair records are not touched.
func (e *Engine) CheckCollisions(pairs []PairID) (bool, error) {
	for _, id := range pairs {
		if err := e.checkPair(id); err != nil {
			return false, err
		}
	}

	w := e.workers[0]
	simplex := gjk.SimplexPool.Get().(*gjk.Simplex)
	defer gjk.SimplexPool.Put(simplex)

	for _, id := range pairs {
		p, q := e.polytopes[id.P], e.polytopes[id.Q]
		if !p.Active || !q.Active || !p.AABB().Overlaps(q.AABB()) {
			continue
		}

		direction := q.WorldCentroid().Sub(p.WorldCentroid())
		if gjk.Intersect(w.search, p, q, direction, simplex) {
			return true, nil
		}
	}

	return false, nil
}

// Colliding returns the pairs currently known to collide, normalized and
// sorted.
func (e *Engine) Colliding() []PairID {
	return e.cache.Colliding()
}

// Stats returns the counters accumulated since the last ResetStats.
func (e *Engine) Stats() Stats {
	return e.stats
}

// ResetStats zeroes the counters.
func (e *Engine) ResetStats() {
	e.stats = Stats{}
}

// account folds a finished job into the colliding set and statistics.
func (e *Engine) account(j *job) {
	record := j.record
	e.cache.setColliding(j.id, record.Colliding)

	e.stats.Pairs++
	e.stats.Iterations += record.Iterations
	e.stats.SupportVisits += j.visits
	if j.warm {
		e.stats.WarmStarts++
	}
	if j.fallback {
		e.stats.Fallbacks++
	}

	if record.Exhausted {
		e.stats.Exhausted++
		e.logger.Warn("closest-point search hit the iteration cap",
			slog.Int("p", j.id.P),
			slog.Int("q", j.id.Q),
			slog.Int("iterations", record.Iterations),
			slog.Float64("distance", record.Distance),
		)
	}
	if j.epaErr != nil {
		e.logger.Debug("penetration solve failed",
			slog.Int("p", j.id.P),
			slog.Int("q", j.id.Q),
			slog.Any("error", j.epaErr),
		)
	}
}

func (e *Engine) checkIndex(i int) error {
	if i < 0 || i >= len(e.polytopes) {
		return fmt.Errorf("%w: polytope index %d out of range [0, %d)", ErrInvalidArgument, i, len(e.polytopes))
	}
	return nil
}

func (e *Engine) checkPair(id PairID) error {
	if err := e.checkIndex(id.P); err != nil {
		return err
	}
	if err := e.checkIndex(id.Q); err != nil {
		return err
	}
	if id.P == id.Q {
		return fmt.Errorf("%w: pair of polytope %d with itself", ErrInvalidArgument, id.P)
	}
	return nil
}

// solve runs one pair on the worker's own search context and scratch.
func (w *worker) solve(e *Engine, j *job) {
	record := j.record
	p, q := e.polytopes[record.Polytopes[0]], e.polytopes[record.Polytopes[1]]
	visits := w.search.Visited
	defer func() { j.visits = w.search.Visited - visits }()

	simplex := gjk.SimplexPool.Get().(*gjk.Simplex)
	defer gjk.SimplexPool.Put(simplex)

	record.BoundsOverlap = p.AABB().Overlaps(q.AABB())

	j.warm = record.warmStart(simplex)
	if !j.warm && !gjk.ColdStart(w.search, p, q, simplex) {
		record.storeCoincident(p.WorldCentroid())
	} else {
		out := gjk.Distance(w.search, &w.johnson, p, q, simplex, e.settings)
		record.store(out, simplex)
		j.fallback = out.Fallback

		if !out.Colliding {
			return
		}

		record.SeparationVector = q.WorldCentroid().Sub(p.WorldCentroid())
		if record.SeparationVector.LenSqr() > 0 {
			record.SeparationVector = record.SeparationVector.Normalize()
		}
	}

	if e.config.PenetrationDepth {
		normal, depth, err := w.penetration(p, q, simplex)
		j.epaErr = err
		// a capped expansion still hands back its best estimate
		if err == nil || errors.Is(err, epa.ErrNotConverged) {
			record.Penetration = depth
			record.SeparationVector = normal.Mul(-depth)
		}
	}
}

// penetration runs EPA from the colliding tetrahedron, or builds one with
// the boolean test when the closest-point solve stopped on a touching
// contact.
func (w *worker) penetration(p, q *actor.Polytope, simplex *gjk.Simplex) (mgl64.Vec3, float64, error) {
	var tetrahedron [4]mgl64.Vec3

	if simplex.Count == 4 {
		for i := range tetrahedron {
			tetrahedron[i] = simplex.Vertices[i].W
		}
	} else {
		start := gjk.SimplexPool.Get().(*gjk.Simplex)
		defer gjk.SimplexPool.Put(start)

		direction := q.WorldCentroid().Sub(p.WorldCentroid())
		if !gjk.Intersect(w.search, p, q, direction, start) || start.Count != 4 {
			return mgl64.Vec3{}, 0, epa.ErrDegenerate
		}
		for i := range tetrahedron {
			tetrahedron[i] = start.Vertices[i].W
		}
	}

	var hint gjk.Vertex
	support := func(direction mgl64.Vec3) mgl64.Vec3 {
		hint = gjk.MinkowskiSupport(w.search, p, q, direction, hint)
		return hint.W
	}

	return epa.Penetration(support, tetrahedron)
}
