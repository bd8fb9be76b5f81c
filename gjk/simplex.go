package gjk

import (
	"sync"

	"github.com/akmonengine/qcollide/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Vertex is a point of the Minkowski difference Q - P together with the
// vertex indices it was built from.
type Vertex struct {
	W mgl64.Vec3
	P int
	Q int
}

// NewVertex builds the difference vertex for the pair (ip, iq) at the current
// transforms.
func NewVertex(p, q *actor.Polytope, ip, iq int) Vertex {
	return Vertex{
		W: q.WorldVertex(iq).Sub(p.WorldVertex(ip)),
		P: ip,
		Q: iq,
	}
}

// Simplex holds 1-4 difference vertices and, after a Johnson solve, the
// barycentric weights of the closest point.
type Simplex struct {
	Vertices [4]Vertex
	Weights  [4]float64
	Count    int
}

// Reset empties the simplex.
func (s *Simplex) Reset() {
	s.Count = 0
}

// Add appends v. The caller keeps Count below 4 before adding.
func (s *Simplex) Add(v Vertex) {
	s.Vertices[s.Count] = v
	s.Weights[s.Count] = 0
	s.Count++
}

// Contains reports whether the vertex pair (ip, iq) is already in the simplex.
func (s *Simplex) Contains(ip, iq int) bool {
	for i := 0; i < s.Count; i++ {
		if s.Vertices[i].P == ip && s.Vertices[i].Q == iq {
			return true
		}
	}
	return false
}

// Rebuild recomputes every W from the stored index pairs, so a simplex cached
// in a previous frame follows the polytopes to their new placement.
func (s *Simplex) Rebuild(p, q *actor.Polytope) {
	for i := 0; i < s.Count; i++ {
		s.Vertices[i] = NewVertex(p, q, s.Vertices[i].P, s.Vertices[i].Q)
	}
}

// Points copies the difference points into dst and returns the filled part.
func (s *Simplex) Points(dst *[4]mgl64.Vec3) []mgl64.Vec3 {
	for i := 0; i < s.Count; i++ {
		dst[i] = s.Vertices[i].W
	}
	return dst[:s.Count]
}

// SimplexPool recycles simplices across pair solves.
var SimplexPool = sync.Pool{
	New: func() interface{} {
		return &Simplex{}
	},
}
