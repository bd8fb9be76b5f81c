package qcollide

import (
	"cmp"
	"slices"

	"github.com/akmonengine/qcollide/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// PairID names two polytopes by their engine index.
type PairID struct {
	P int
	Q int
}

// Normalize orders the pair so that P < Q.
func (id PairID) Normalize() PairID {
	if id.Q < id.P {
		return PairID{P: id.Q, Q: id.P}
	}
	return id
}

func (id PairID) swapped() bool {
	return id.Q < id.P
}

func sortPairs(ids []PairID) {
	slices.SortFunc(ids, func(a, b PairID) int {
		if c := cmp.Compare(a.P, b.P); c != 0 {
			return c
		}
		return cmp.Compare(a.Q, b.Q)
	})
}

// CollisionPair is the cached state of one unordered pair, stored with
// Polytopes[0] < Polytopes[1]. Every solve overwrites it.
type CollisionPair struct {
	Polytopes [2]int

	// Active is set by the first solve and cleared by ReleasePair. Only
	// active records seed a warm start.
	Active    bool
	Colliding bool
	// BoundsOverlap records whether the world AABBs overlapped.
	BoundsOverlap bool

	ClosestFeatures [2]int
	// SeparationVector points from the first polytope towards the second.
	// Separated: the unit separating axis.
	// Colliding: the translation of the second polytope resolving the
	// overlap when the penetration depth was computed, the unit centroid
	// direction otherwise, zero for coincident centroids.
	SeparationVector mgl64.Vec3
	Distance         float64
	Penetration      float64
	ClosestPointP    mgl64.Vec3
	ClosestPointQ    mgl64.Vec3

	// Final simplex of the last solve, the warm start of the next.
	SimplexP    [4]int
	SimplexQ    [4]int
	Lambda      [4]float64
	SimplexSize int

	Iterations int
	Exhausted  bool
}

// store writes a solve back. s holds the reduced simplex the output was
// computed from.
func (c *CollisionPair) store(out gjk.Output, s *gjk.Simplex) {
	c.Active = true
	c.Colliding = out.Colliding
	c.Distance = out.Distance
	c.Penetration = 0
	c.SeparationVector = out.V
	if out.Distance > 0 {
		c.SeparationVector = out.V.Mul(1 / out.Distance)
	}
	c.ClosestPointP = out.PointP
	c.ClosestPointQ = out.PointQ
	c.ClosestFeatures = [2]int{out.FeatureP, out.FeatureQ}
	c.Iterations = out.Iterations
	c.Exhausted = out.Exhausted

	c.SimplexSize = s.Count
	c.SimplexP = [4]int{}
	c.SimplexQ = [4]int{}
	c.Lambda = [4]float64{}
	for i := 0; i < s.Count; i++ {
		c.SimplexP[i] = s.Vertices[i].P
		c.SimplexQ[i] = s.Vertices[i].Q
		c.Lambda[i] = s.Weights[i]
	}
}

// storeCoincident records a pair whose centroids coincide: colliding at
// distance 0 without a solve.
func (c *CollisionPair) storeCoincident(centroid mgl64.Vec3) {
	*c = CollisionPair{
		Polytopes:     c.Polytopes,
		Active:        true,
		Colliding:     true,
		BoundsOverlap: c.BoundsOverlap,
		ClosestPointP: centroid,
		ClosestPointQ: centroid,
	}
}

// warmStart refills s with the cached vertex pairs, in stored order. W is
// recomputed by the solve. Separated records seed the next solve as well as
// colliding ones; only inactive or empty records start cold.
func (c *CollisionPair) warmStart(s *gjk.Simplex) bool {
	if !c.Active || c.SimplexSize == 0 {
		return false
	}
	s.Reset()
	for i := 0; i < c.SimplexSize; i++ {
		s.Add(gjk.Vertex{P: c.SimplexP[i], Q: c.SimplexQ[i]})
	}
	return true
}

// result expresses the record in the orientation the caller asked for.
func (c *CollisionPair) result(id PairID) Result {
	r := Result{
		Pair:            id,
		Colliding:       c.Colliding,
		Distance:        c.Distance,
		Penetration:     c.Penetration,
		Separation:      c.SeparationVector,
		ClosestPointP:   c.ClosestPointP,
		ClosestPointQ:   c.ClosestPointQ,
		ClosestFeatureP: c.ClosestFeatures[0],
		ClosestFeatureQ: c.ClosestFeatures[1],
		BoundsOverlap:   c.BoundsOverlap,
		Approximate:     c.Exhausted,
	}

	if id.swapped() {
		r.Separation = r.Separation.Mul(-1)
		r.ClosestPointP, r.ClosestPointQ = r.ClosestPointQ, r.ClosestPointP
		r.ClosestFeatureP, r.ClosestFeatureQ = r.ClosestFeatureQ, r.ClosestFeatureP
	}

	return r
}

// PairCache maps unordered pairs to their records and tracks the set of
// pairs currently colliding.
type PairCache struct {
	records   map[PairID]*CollisionPair
	colliding map[PairID]struct{}
}

func NewPairCache() *PairCache {
	return &PairCache{
		records:   make(map[PairID]*CollisionPair),
		colliding: make(map[PairID]struct{}),
	}
}

// Get returns the record of the pair, creating an inactive zero record on
// first reference. Get(p, q) and Get(q, p) return the same record.
func (c *PairCache) Get(id PairID) *CollisionPair {
	key := id.Normalize()
	record, ok := c.records[key]
	if !ok {
		record = &CollisionPair{Polytopes: [2]int{key.P, key.Q}}
		c.records[key] = record
	}
	return record
}

// Lookup returns the record without creating it.
func (c *PairCache) Lookup(id PairID) (*CollisionPair, bool) {
	record, ok := c.records[id.Normalize()]
	return record, ok
}

// Len returns the number of records created so far.
func (c *PairCache) Len() int {
	return len(c.records)
}

func (c *PairCache) setColliding(id PairID, colliding bool) {
	key := id.Normalize()
	if colliding {
		c.colliding[key] = struct{}{}
	} else {
		delete(c.colliding, key)
	}
}

// release marks the record of id inactive, if any, and drops it from the
// colliding set.
func (c *PairCache) release(id PairID) {
	if record, ok := c.Lookup(id); ok {
		record.Active = false
	}
	c.setColliding(id, false)
}

// releasePolytope releases every record involving polytope i.
func (c *PairCache) releasePolytope(i int) {
	for id := range c.records {
		if id.P == i || id.Q == i {
			c.release(id)
		}
	}
}

// Colliding returns the colliding pairs in ascending order.
func (c *PairCache) Colliding() []PairID {
	ids := make([]PairID, 0, len(c.colliding))
	for id := range c.colliding {
		ids = append(ids, id)
	}
	sortPairs(ids)
	return ids
}
