package actor

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrInvalidPolytope is returned when a vertex list or its adjacency graph
// cannot describe a searchable polytope.
var ErrInvalidPolytope = errors.New("invalid polytope")

// Polytope is a convex solid given by its vertices (body frame) and the
// vertex-adjacency graph of its hull.
//
// The graph must be undirected and connected, and the vertices must be in
// convex position: the support search walks the graph and only finds the
// global maximum when every local maximum is global. Convexity is a caller
// precondition and is not verified.
//
// Topology is fixed after construction. Only the transform and the active
// flag change from frame to frame.
type Polytope struct {
	Vertices  []mgl64.Vec3
	Neighbors [][]int
	Transform Transform

	// Active polytopes take part in collision evaluation.
	Active bool

	centroid mgl64.Vec3
	aabb     AABB
	world    []mgl64.Vec3
}

// NewPolytope validates the adjacency graph and returns an active polytope
// placed at the identity transform.
func NewPolytope(vertices []mgl64.Vec3, neighbors [][]int) (*Polytope, error) {
	if len(vertices) == 0 {
		return nil, fmt.Errorf("%w: no vertices", ErrInvalidPolytope)
	}
	if len(neighbors) != len(vertices) {
		return nil, fmt.Errorf("%w: %d adjacency lists for %d vertices", ErrInvalidPolytope, len(neighbors), len(vertices))
	}

	n := len(vertices)
	for v, list := range neighbors {
		for _, u := range list {
			if u < 0 || u >= n {
				return nil, fmt.Errorf("%w: vertex %d lists neighbour %d out of range", ErrInvalidPolytope, v, u)
			}
			if u == v {
				return nil, fmt.Errorf("%w: vertex %d lists itself as neighbour", ErrInvalidPolytope, v)
			}
			if !contains(neighbors[u], v) {
				return nil, fmt.Errorf("%w: edge %d-%d is not mirrored", ErrInvalidPolytope, v, u)
			}
		}
	}
	if !connected(neighbors) {
		return nil, fmt.Errorf("%w: adjacency graph is not connected", ErrInvalidPolytope)
	}

	p := &Polytope{
		Vertices:  vertices,
		Neighbors: neighbors,
		Transform: NewTransform(),
		Active:    true,
	}

	var sum mgl64.Vec3
	for _, v := range vertices {
		sum = sum.Add(v)
	}
	p.centroid = sum.Mul(1.0 / float64(n))
	p.computeAABB()

	return p, nil
}

// NewPolytopeFromFaces derives the adjacency graph from the edges of the
// given faces. Each face is a closed loop of vertex indices.
func NewPolytopeFromFaces(vertices []mgl64.Vec3, faces [][]int) (*Polytope, error) {
	neighbors := make([][]int, len(vertices))
	link := func(a, b int) error {
		if a < 0 || a >= len(vertices) || b < 0 || b >= len(vertices) {
			return fmt.Errorf("%w: face edge %d-%d out of range", ErrInvalidPolytope, a, b)
		}
		if a == b {
			return nil
		}
		if !contains(neighbors[a], b) {
			neighbors[a] = append(neighbors[a], b)
		}
		if !contains(neighbors[b], a) {
			neighbors[b] = append(neighbors[b], a)
		}
		return nil
	}

	for f, face := range faces {
		if len(face) < 3 {
			return nil, fmt.Errorf("%w: face %d has %d vertices", ErrInvalidPolytope, f, len(face))
		}
		for i := range face {
			if err := link(face[i], face[(i+1)%len(face)]); err != nil {
				return nil, err
			}
		}
	}

	return NewPolytope(vertices, neighbors)
}

// NewBox returns the 8-corner box with the given half extents.
// Corner i has the positive extent on axis k when bit k of i is set, so its
// neighbours are i^1, i^2 and i^4.
func NewBox(halfExtents mgl64.Vec3) *Polytope {
	vertices := make([]mgl64.Vec3, 8)
	neighbors := make([][]int, 8)
	for i := range vertices {
		corner := halfExtents.Mul(-1)
		for k := 0; k < 3; k++ {
			if i&(1<<k) != 0 {
				corner[k] = halfExtents[k]
			}
		}
		vertices[i] = corner
		neighbors[i] = []int{i ^ 1, i ^ 2, i ^ 4}
	}

	p, err := NewPolytope(vertices, neighbors)
	if err != nil {
		// the box graph is valid by construction
		panic(err)
	}
	return p
}

// SetTransform moves the polytope for the current frame.
func (p *Polytope) SetTransform(t Transform) {
	p.Transform = t
	p.computeAABB()
}

// SetMatrix is SetTransform for providers that hand out 4x4 matrices.
func (p *Polytope) SetMatrix(m, inverse mgl64.Mat4) {
	p.SetTransform(NewTransformFromMat4(m, inverse))
}

// WorldVertex returns vertex i in world space.
func (p *Polytope) WorldVertex(i int) mgl64.Vec3 {
	return p.Transform.PointToWorld(p.Vertices[i])
}

// WorldCentroid returns the vertex average in world space.
func (p *Polytope) WorldCentroid() mgl64.Vec3 {
	return p.Transform.PointToWorld(p.centroid)
}

// AABB returns the world bounds at the current transform.
func (p *Polytope) AABB() AABB {
	return p.aabb
}

func (p *Polytope) computeAABB() {
	if len(p.world) != len(p.Vertices) {
		p.world = make([]mgl64.Vec3, len(p.Vertices))
	}
	for i := range p.Vertices {
		p.world[i] = p.WorldVertex(i)
	}
	p.aabb = AABBFromPoints(p.world)
}

func contains(list []int, v int) bool {
	for _, u := range list {
		if u == v {
			return true
		}
	}
	return false
}

// connected runs a breadth-first walk from vertex 0.
func connected(neighbors [][]int) bool {
	seen := make([]bool, len(neighbors))
	queue := []int{0}
	seen[0] = true
	count := 1

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, u := range neighbors[v] {
			if !seen[u] {
				seen[u] = true
				count++
				queue = append(queue, u)
			}
		}
	}

	return count == len(neighbors)
}
