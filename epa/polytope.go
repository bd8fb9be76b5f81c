package epa

import (
	"errors"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

var errNoVisibleFace = errors.New("epa: support point sees no face")

// face is a triangle of the expanding polytope. Vertices are indices into
// the builder's points, wound counter-clockwise seen from outside.
type face struct {
	a, b, c  int
	normal   mgl64.Vec3
	distance float64
}

// edge is directed: a face contributes (a,b), (b,c) and (c,a).
type edge struct {
	from, to int
}

// PolytopeBuilder holds the expanding polytope. Buffers are reused through
// polytopeBuilderPool.
type PolytopeBuilder struct {
	points  []mgl64.Vec3
	faces   []face
	horizon []edge
}

const polytopeInitialCapacity = 16

var polytopeBuilderPool = sync.Pool{
	New: func() interface{} {
		return &PolytopeBuilder{
			points:  make([]mgl64.Vec3, 0, polytopeInitialCapacity),
			faces:   make([]face, 0, polytopeInitialCapacity),
			horizon: make([]edge, 0, polytopeInitialCapacity),
		}
	},
}

// Reset prepares the builder for reuse.
func (b *PolytopeBuilder) Reset() {
	b.points = b.points[:0]
	b.faces = b.faces[:0]
	b.horizon = b.horizon[:0]
}

// BuildInitialFaces creates the 4 faces of the start tetrahedron, each wound
// so that its normal points away from the opposite vertex.
func (b *PolytopeBuilder) BuildInitialFaces(tetrahedron [4]mgl64.Vec3) error {
	p0, p1, p2, p3 := tetrahedron[0], tetrahedron[1], tetrahedron[2], tetrahedron[3]
	if math.Abs(p1.Sub(p0).Dot(p2.Sub(p0).Cross(p3.Sub(p0)))) < degenerateVolume {
		return ErrDegenerate
	}

	b.points = append(b.points, p0, p1, p2, p3)

	for _, tri := range [4][4]int{
		{0, 1, 2, 3},
		{0, 3, 1, 2},
		{0, 2, 3, 1},
		{1, 3, 2, 0},
	} {
		a, bb, c, opposite := tri[0], tri[1], tri[2], tri[3]
		n := b.points[bb].Sub(b.points[a]).Cross(b.points[c].Sub(b.points[a]))
		if n.Dot(b.points[opposite].Sub(b.points[a])) > 0 {
			bb, c = c, bb
		}
		b.addFace(a, bb, c)
	}

	return nil
}

// ClosestFaceIndex returns the face nearest to the origin.
func (b *PolytopeBuilder) ClosestFaceIndex() int {
	closest := 0
	for i := 1; i < len(b.faces); i++ {
		if b.faces[i].distance < b.faces[closest].distance {
			closest = i
		}
	}
	return closest
}

// Expand adds point to the polytope: faces that see it are removed and the
// horizon they leave is connected to the new point.
func (b *PolytopeBuilder) Expand(point mgl64.Vec3) error {
	b.horizon = b.horizon[:0]

	kept := b.faces[:0]
	visible := 0
	for _, f := range b.faces {
		if f.normal.Dot(point.Sub(b.points[f.a])) > 0 {
			visible++
			b.addHorizonEdge(f.a, f.b)
			b.addHorizonEdge(f.b, f.c)
			b.addHorizonEdge(f.c, f.a)
			continue
		}
		kept = append(kept, f)
	}
	b.faces = kept

	if visible == 0 {
		return errNoVisibleFace
	}

	index := len(b.points)
	b.points = append(b.points, point)
	for _, e := range b.horizon {
		b.addFace(e.from, e.to, index)
	}

	return nil
}

// addHorizonEdge records a directed edge of a removed face. An edge shared
// by two removed faces shows up once in each direction and cancels out.
func (b *PolytopeBuilder) addHorizonEdge(from, to int) {
	for i, e := range b.horizon {
		if e.from == to && e.to == from {
			b.horizon[i] = b.horizon[len(b.horizon)-1]
			b.horizon = b.horizon[:len(b.horizon)-1]
			return
		}
	}
	b.horizon = append(b.horizon, edge{from: from, to: to})
}

func (b *PolytopeBuilder) addFace(a, bb, c int) {
	n := b.points[bb].Sub(b.points[a]).Cross(b.points[c].Sub(b.points[a]))
	length := n.Len()
	if length < 1e-12 {
		// sliver: keep it out of the closest-face race
		b.faces = append(b.faces, face{a: a, b: bb, c: c, distance: math.Inf(1)})
		return
	}
	n = n.Mul(1 / length)

	b.faces = append(b.faces, face{
		a:        a,
		b:        bb,
		c:        c,
		normal:   n,
		distance: n.Dot(b.points[a]),
	})
}
