package gjk

import (
	"github.com/akmonengine/qcollide/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DefaultMaxIterations bounds the refinement loop. Well-conditioned
	// pairs converge in a handful of steps.
	DefaultMaxIterations = 30

	// DefaultTolerance is the relative progress below which the loop stops:
	// |v|² - v·w <= Tolerance·|v|².
	DefaultTolerance = 1e-9

	// DefaultContactTolerance is the distance at or below which two
	// polytopes are reported as touching, hence colliding.
	DefaultContactTolerance = 1e-6
)

// Settings tunes the closest-point loop.
type Settings struct {
	MaxIterations    int
	Tolerance        float64
	ContactTolerance float64
}

// DefaultSettings returns the Default* constants.
func DefaultSettings() Settings {
	return Settings{
		MaxIterations:    DefaultMaxIterations,
		Tolerance:        DefaultTolerance,
		ContactTolerance: DefaultContactTolerance,
	}
}

// Output describes the closest features of a pair.
type Output struct {
	Colliding bool
	// Distance is |V|, or 0 when colliding.
	Distance float64
	// V is the point of Q - P closest to the origin. It points from P
	// towards Q.
	V mgl64.Vec3

	PointP   mgl64.Vec3
	PointQ   mgl64.Vec3
	FeatureP int
	FeatureQ int

	Iterations int
	// Exhausted is set when MaxIterations was hit; the result is the best
	// estimate at that point.
	Exhausted bool
	// Fallback is set when any Johnson solve of this run used the direct
	// affine comparison.
	Fallback bool
}

// ColdStart seeds s with one vertex pair found along the centroid direction:
// the support of P towards Q and of Q towards P. It reports false, leaving s
// empty, when the centroids coincide and no direction exists.
func ColdStart(ctx *actor.SearchContext, p, q *actor.Polytope, s *Simplex) bool {
	s.Reset()

	d := q.WorldCentroid().Sub(p.WorldCentroid())
	if d == (mgl64.Vec3{}) {
		return false
	}

	ip := ctx.Support(p, p.Transform.DirectionToLocal(d), 0)
	iq := ctx.Support(q, q.Transform.DirectionToLocal(d.Mul(-1)), 0)
	s.Add(NewVertex(p, q, ip, iq))

	return true
}

// Distance computes the closest points of p and q. s must hold at least one
// vertex pair.
//
// The simplex carries the seed: one or more vertex pairs, either cached from
// the previous frame or produced by a cold start. Their W are recomputed at
// the current transforms before the first solve.
//
// Algorithm overview:
//  1. Johnson solve on the seed gives v
//  2. Touching (|v| within ContactTolerance) or a full tetrahedron means
//     the origin is enclosed: colliding
//  3. w = support(Q, -v) - support(P, +v), searched from the last vertex pair
//  4. Stop when w makes no relative progress along v or is already in
//     the simplex
//  5. Add w, Johnson solve, repeat from 2
//
// On return the simplex holds the final reduced vertex pairs and weights,
// ready to be cached as the next warm start.
func Distance(ctx *actor.SearchContext, j *Johnson, p, q *actor.Polytope, s *Simplex, settings Settings) Output {
	var out Output

	s.Rebuild(p, q)
	sol := j.Solve(s)
	out.Fallback = sol.Fallback
	v := sol.Point

	hintP := s.Vertices[s.Count-1].P
	hintQ := s.Vertices[s.Count-1].Q
	contact := settings.ContactTolerance * settings.ContactTolerance

	for {
		vv := v.LenSqr()
		if s.Count == 4 || vv <= contact {
			out.Colliding = true
			break
		}
		if out.Iterations >= settings.MaxIterations {
			out.Exhausted = true
			break
		}
		out.Iterations++

		ip := ctx.Support(p, p.Transform.DirectionToLocal(v), hintP)
		iq := ctx.Support(q, q.Transform.DirectionToLocal(v.Mul(-1)), hintQ)
		w := NewVertex(p, q, ip, iq)

		if vv-v.Dot(w.W) <= settings.Tolerance*vv {
			break
		}
		if s.Contains(ip, iq) {
			break
		}

		s.Add(w)
		sol = j.Solve(s)
		out.Fallback = out.Fallback || sol.Fallback
		v = sol.Point
		hintP, hintQ = ip, iq
	}

	out.V = v
	if !out.Colliding {
		out.Distance = v.Len()
	}

	best := 0
	for i := 0; i < s.Count; i++ {
		vert := s.Vertices[i]
		out.PointP = out.PointP.Add(p.WorldVertex(vert.P).Mul(s.Weights[i]))
		out.PointQ = out.PointQ.Add(q.WorldVertex(vert.Q).Mul(s.Weights[i]))
		if s.Weights[i] > s.Weights[best] {
			best = i
		}
	}
	out.FeatureP = s.Vertices[best].P
	out.FeatureQ = s.Vertices[best].Q

	return out
}
