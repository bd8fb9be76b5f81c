// Package gjk implements the Gilbert-Johnson-Keerthi (GJK) algorithm on
// vertex-adjacency polytopes.
//
// Two entry points share the same Minkowski-difference vertices:
//   - Distance runs the closest-point form of GJK with Johnson's distance
//     sub-algorithm, warm-startable from the vertex pairs of a previous frame
//   - Intersect runs the boolean form with Voronoi-region reduction and
//     answers only whether the polytopes overlap
//
// The difference is always taken as Q - P, so the closest point v of a
// separated pair points from P towards Q.
//
// References:
//   - Gilbert, Johnson, Keerthi: "A Fast Procedure for Computing the Distance Between
//     Complex Objects in Three-Dimensional Space" (1988)
//   - Van den Bergen: "Collision Detection in Interactive 3D Environments" (2003)
package gjk

import (
	"github.com/akmonengine/qcollide/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// IntersectMaxIterations is the safety limit of the boolean test.
const IntersectMaxIterations = 32

// MinkowskiSupport returns the vertex of Q - P furthest along direction:
// support(Q, d) - support(P, -d). Hints seed both hill-climbing walks.
func MinkowskiSupport(ctx *actor.SearchContext, p, q *actor.Polytope, direction mgl64.Vec3, hint Vertex) Vertex {
	iq := ctx.Support(q, q.Transform.DirectionToLocal(direction), hint.Q)
	ip := ctx.Support(p, p.Transform.DirectionToLocal(direction.Mul(-1)), hint.P)
	return NewVertex(p, q, ip, iq)
}

// Intersect reports whether p and q overlap. Exactly touching polytopes may
// report either way; Distance applies ContactTolerance for that case.
//
// Algorithm overview:
//  1. Start along direction (towards Q from P is the usual choice)
//  2. Add support points towards the origin
//  3. Reduce the simplex to the feature closest to the origin
//  4. Stop when a support point fails to pass the origin (separated) or
//     a tetrahedron encloses it (overlap)
//
// On overlap the simplex is a tetrahedron containing the origin, suitable
// as the starting polytope of EPA.
func Intersect(ctx *actor.SearchContext, p, q *actor.Polytope, direction mgl64.Vec3, simplex *Simplex) bool {
	if direction.LenSqr() < 1e-16 {
		direction = mgl64.Vec3{1, 0, 0}
	}

	simplex.Reset()
	simplex.Add(MinkowskiSupport(ctx, p, q, direction, Vertex{}))

	direction = simplex.Vertices[0].W.Mul(-1)
	if direction.LenSqr() < 1e-16 {
		return true
	}

	for i := 0; i < IntersectMaxIterations; i++ {
		next := MinkowskiSupport(ctx, p, q, direction, simplex.Vertices[simplex.Count-1])

		// the new point does not pass the origin: separated
		if next.W.Dot(direction) <= 0 {
			return false
		}

		simplex.Add(next)
		if containsOrigin(simplex, &direction) {
			return true
		}
	}

	return false
}

// containsOrigin keeps the feature of the simplex closest to the origin and
// points direction at the origin from it. The most recent vertex is last.
func containsOrigin(simplex *Simplex, direction *mgl64.Vec3) bool {
	switch simplex.Count {
	case 2:
		return line(simplex, direction)
	case 3:
		return triangle(simplex, direction)
	case 4:
		return tetrahedron(simplex, direction)
	}
	return false
}

func keep(simplex *Simplex, vertices ...Vertex) {
	simplex.Count = 0
	for _, v := range vertices {
		simplex.Add(v)
	}
}

// line handles the segment AB, A being the newest point.
func line(simplex *Simplex, direction *mgl64.Vec3) bool {
	a := simplex.Vertices[1]
	b := simplex.Vertices[0]
	ab := b.W.Sub(a.W)
	ao := a.W.Mul(-1)

	if ab.LenSqr() < 1e-8 {
		if ao.LenSqr() < 1e-8 {
			return true
		}
		keep(simplex, a)
		*direction = ao
		return false
	}

	if ab.Dot(ao) <= 0 {
		keep(simplex, a)
		*direction = ao
		return false
	}

	abPerp := ab.Cross(ao).Cross(ab)
	if abPerp.LenSqr() < 1e-8 {
		// origin on the segment
		return true
	}

	*direction = abPerp
	return false
}

// triangle handles ABC, A being the newest point. Collinear triangles fall
// back to the segment.
func triangle(simplex *Simplex, direction *mgl64.Vec3) bool {
	a := simplex.Vertices[2]
	b := simplex.Vertices[1]
	c := simplex.Vertices[0]

	ab := b.W.Sub(a.W)
	ac := c.W.Sub(a.W)
	ao := a.W.Mul(-1)
	abc := ab.Cross(ac)

	if abc.LenSqr() < 1e-10 {
		keep(simplex, b, a)
		return line(simplex, direction)
	}

	if ab.Cross(abc).Dot(ao) > 0 {
		keep(simplex, b, a)
		*direction = ab.Cross(ao).Cross(ab)
		return false
	}

	if abc.Cross(ac).Dot(ao) > 0 {
		keep(simplex, c, a)
		*direction = ac.Cross(ao).Cross(ac)
		return false
	}

	if abc.Dot(ao) > 0 {
		*direction = abc
	} else {
		// below: flip the winding so the normal faces the origin
		keep(simplex, b, c, a)
		*direction = abc.Mul(-1)
	}

	return false
}

// tetrahedron handles ABCD, A being the newest point. Face normals are
// oriented away from the opposite vertex.
func tetrahedron(simplex *Simplex, direction *mgl64.Vec3) bool {
	a := simplex.Vertices[3]
	b := simplex.Vertices[2]
	c := simplex.Vertices[1]
	d := simplex.Vertices[0]

	ab := b.W.Sub(a.W)
	ac := c.W.Sub(a.W)
	ad := d.W.Sub(a.W)
	ao := a.W.Mul(-1)

	abc := ab.Cross(ac)
	if abc.Dot(ad) > 0 {
		abc = abc.Mul(-1)
	}
	acd := ac.Cross(ad)
	if acd.Dot(ab) > 0 {
		acd = acd.Mul(-1)
	}
	adb := ad.Cross(ab)
	if adb.Dot(ac) > 0 {
		adb = adb.Mul(-1)
	}

	if abc.LenSqr() < 1e-10 || acd.LenSqr() < 1e-10 || adb.LenSqr() < 1e-10 {
		keep(simplex, c, b, a)
		return triangle(simplex, direction)
	}

	switch {
	case abc.Dot(ao) > 0:
		keep(simplex, c, b, a)
		return triangle(simplex, direction)
	case acd.Dot(ao) > 0:
		keep(simplex, d, c, a)
		return triangle(simplex, direction)
	case adb.Dot(ao) > 0:
		keep(simplex, b, d, a)
		return triangle(simplex, direction)
	}

	return true
}
