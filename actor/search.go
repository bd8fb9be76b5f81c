package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// SearchContext owns the visitation marks used by Support.
//
// Each polytope gets one timestamp per vertex. A vertex is visited in the
// current search when its stamp equals the context clock, so nothing has to be
// cleared between searches. The clock is bumped once per search; when it
// wraps, every table is zeroed and the clock restarts at 1.
//
// A context is not safe for concurrent use. Workers searching the same
// polytope in parallel each need their own context.
type SearchContext struct {
	stamps map[*Polytope][]uint32
	clock  uint32

	// Visited counts every vertex whose support value was evaluated.
	Visited int
}

func NewSearchContext() *SearchContext {
	return &SearchContext{
		stamps: make(map[*Polytope][]uint32),
	}
}

// Support returns the index of a vertex of p maximising the dot product with
// direction, which is given in p's body frame.
//
// The walk starts at hint (0 when the hint is out of range) and moves to the
// unvisited neighbour with the strictly largest dot product until no
// neighbour improves. On a convex polytope the result is a global maximum.
func (c *SearchContext) Support(p *Polytope, direction mgl64.Vec3, hint int) int {
	c.tick()

	stamps, ok := c.stamps[p]
	if !ok || len(stamps) != len(p.Vertices) {
		stamps = make([]uint32, len(p.Vertices))
		c.stamps[p] = stamps
	}

	current := hint
	if current < 0 || current >= len(p.Vertices) {
		current = 0
	}
	stamps[current] = c.clock
	c.Visited++
	best := p.Vertices[current].Dot(direction)

	for {
		next := -1
		for _, n := range p.Neighbors[current] {
			if stamps[n] == c.clock {
				continue
			}
			stamps[n] = c.clock
			c.Visited++

			if d := p.Vertices[n].Dot(direction); d > best {
				best = d
				next = n
			}
		}
		if next < 0 {
			return current
		}
		current = next
	}
}

// Forget drops the table kept for p.
func (c *SearchContext) Forget(p *Polytope) {
	delete(c.stamps, p)
}

func (c *SearchContext) tick() {
	if c.clock == math.MaxUint32 {
		for _, stamps := range c.stamps {
			clear(stamps)
		}
		c.clock = 0
	}
	c.clock++
}
