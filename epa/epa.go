// Package epa implements the Expanding Polytope Algorithm for computing penetration depth.
//
// EPA runs once GJK has found two polytopes overlapping. It starts from a
// tetrahedron of the Minkowski difference that encloses the origin and grows
// it towards the boundary of the difference until the face closest to the
// origin is a face of the difference itself. That face gives:
//   - Penetration depth (its distance to the origin)
//   - Contact normal (its outward normal)
//
// References:
//   - Van den Bergen: "Proximity Queries and Penetration Depth Computation on 3D Game Objects" (2001)
package epa

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxIterations limits polytope expansion.
	// Typical convergence: 5-15 iterations for simple shapes.
	MaxIterations = 32

	// ConvergenceTolerance is the gain along the closest face normal below
	// which the polytope is considered to have reached the boundary.
	ConvergenceTolerance = 1e-3

	// degenerateVolume is the smallest |det| accepted for the start tetrahedron.
	degenerateVolume = 1e-12
)

var (
	// ErrDegenerate is returned when the start tetrahedron has no volume.
	ErrDegenerate = errors.New("epa: degenerate start tetrahedron")

	// ErrNotConverged is returned with the best estimate when expansion
	// hits MaxIterations.
	ErrNotConverged = errors.New("epa: not converged")
)

// SupportFunc returns the point of the Minkowski difference furthest along
// direction.
type SupportFunc func(direction mgl64.Vec3) mgl64.Vec3

// Penetration computes the penetration depth of a Minkowski difference
// enclosing the origin.
//
// Algorithm overview:
//  1. Build 4 outward faces from the tetrahedron
//  2. Find the face closest to the origin
//  3. Get the support point along its normal
//  4. If the support does not get further than the face → done
//  5. Otherwise remove every face the point sees and stitch the horizon
//     to it, then repeat from 2
//
// The returned normal is the outward unit normal of the closest face: the
// difference leaves the origin once translated by -normal*depth.
// On ErrNotConverged, normal and depth are the best estimate reached.
func Penetration(support SupportFunc, tetrahedron [4]mgl64.Vec3) (mgl64.Vec3, float64, error) {
	return penetrate(support, tetrahedron, MaxIterations)
}

func penetrate(support SupportFunc, tetrahedron [4]mgl64.Vec3, maxIterations int) (mgl64.Vec3, float64, error) {
	builder := polytopeBuilderPool.Get().(*PolytopeBuilder)
	defer polytopeBuilderPool.Put(builder)
	builder.Reset()

	if err := builder.BuildInitialFaces(tetrahedron); err != nil {
		return mgl64.Vec3{}, 0, err
	}

	for i := 0; i < maxIterations; i++ {
		closest := builder.faces[builder.ClosestFaceIndex()]

		point := support(closest.normal)
		if point.Dot(closest.normal)-closest.distance < ConvergenceTolerance {
			return closest.normal, closest.distance, nil
		}

		if err := builder.Expand(point); err != nil {
			// numerically stuck: the closest face is as good as it gets
			return closest.normal, closest.distance, nil
		}
	}

	closest := builder.faces[builder.ClosestFaceIndex()]
	return closest.normal, closest.distance, fmt.Errorf("%w after %d iterations", ErrNotConverged, maxIterations)
}
