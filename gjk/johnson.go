package gjk

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/mat"
)

// subset is one non-empty subset of the simplex points.
type subset struct {
	members []int
	// supers[j] indexes members+{j} in the same table, -1 when j is already
	// a member or the subset is the full set.
	supers [4]int
}

// subsets lists, per simplex size, every subset ordered by cardinality:
// singletons first, then pairs, then triples. Cofactors are propagated
// upwards in this order, and the first accepted subset wins.
var subsets = [5][]subset{
	1: {
		{[]int{0}, [4]int{-1, -1, -1, -1}},
	},
	2: {
		{[]int{0}, [4]int{-1, 2, -1, -1}},
		{[]int{1}, [4]int{2, -1, -1, -1}},
		{[]int{0, 1}, [4]int{-1, -1, -1, -1}},
	},
	3: {
		{[]int{0}, [4]int{-1, 3, 4, -1}},
		{[]int{1}, [4]int{3, -1, 5, -1}},
		{[]int{2}, [4]int{4, 5, -1, -1}},
		{[]int{0, 1}, [4]int{-1, -1, 6, -1}},
		{[]int{0, 2}, [4]int{-1, 6, -1, -1}},
		{[]int{1, 2}, [4]int{6, -1, -1, -1}},
		{[]int{0, 1, 2}, [4]int{-1, -1, -1, -1}},
	},
	4: {
		{[]int{0}, [4]int{-1, 4, 5, 6}},
		{[]int{1}, [4]int{4, -1, 7, 8}},
		{[]int{2}, [4]int{5, 7, -1, 9}},
		{[]int{3}, [4]int{6, 8, 9, -1}},
		{[]int{0, 1}, [4]int{-1, -1, 10, 11}},
		{[]int{0, 2}, [4]int{-1, 10, -1, 12}},
		{[]int{0, 3}, [4]int{-1, 11, 12, -1}},
		{[]int{1, 2}, [4]int{10, -1, -1, 13}},
		{[]int{1, 3}, [4]int{11, -1, 13, -1}},
		{[]int{2, 3}, [4]int{12, 13, -1, -1}},
		{[]int{0, 1, 2}, [4]int{-1, -1, -1, 14}},
		{[]int{0, 1, 3}, [4]int{-1, -1, 14, -1}},
		{[]int{0, 2, 3}, [4]int{-1, 14, -1, -1}},
		{[]int{1, 2, 3}, [4]int{14, -1, -1, -1}},
		{[]int{0, 1, 2, 3}, [4]int{-1, -1, -1, -1}},
	},
}

// Solution is the point of a simplex closest to the origin.
type Solution struct {
	Point mgl64.Vec3
	// Indices[:Size] are the supporting points in ascending order and
	// Weights[:Size] their barycentric weights.
	Indices [4]int
	Weights [4]float64
	Size    int
	// Fallback is set when no subset passed the exact test and the answer
	// comes from the direct affine-distance comparison.
	Fallback bool
}

// Johnson is the scratch state of the distance sub-algorithm. A value is
// reused across solves and must not be shared between goroutines.
type Johnson struct {
	dots  [4][4]float64
	cof   [15][4]float64
	delta [15]float64
}

// SubDistance returns the point of the convex hull of points (1 to 4 of them)
// closest to the origin.
//
// Algorithm overview:
//  1. Gram matrix of the points
//  2. Cofactors per subset X: Δ_i({i}) = 1 and
//     Δ_j(X+{j}) = Σ_{i∈X} Δ_i(X)(y_i·y_k - y_i·y_j), k = min(X)
//  3. Accept the first X with Δ(X) > 0, every Δ_i(X) > 0 and
//     Δ_j(X+{j}) ≤ 0 for every j outside X
//  4. Weights are Δ_i(X)/Δ(X)
//
// When rounding rejects every subset, the candidates with positive
// cofactors are ranked by their affine-hull distance to the origin, solved
// directly by least squares. Singletons always qualify.
func (j *Johnson) SubDistance(points []mgl64.Vec3) Solution {
	n := len(points)
	if n == 0 {
		return Solution{}
	}
	table := subsets[n]

	for a := 0; a < n; a++ {
		for b := a; b < n; b++ {
			d := points[a].Dot(points[b])
			j.dots[a][b] = d
			j.dots[b][a] = d
		}
	}

	for s := range table {
		j.cof[s] = [4]float64{}
	}

	for s, set := range table {
		if len(set.members) == 1 {
			j.cof[s][set.members[0]] = 1
		}

		delta := 0.0
		for _, i := range set.members {
			delta += j.cof[s][i]
		}
		j.delta[s] = delta

		k := set.members[0]
		for add := 0; add < n; add++ {
			super := set.supers[add]
			if super < 0 {
				continue
			}
			sum := 0.0
			for _, i := range set.members {
				sum += j.cof[s][i] * (j.dots[i][k] - j.dots[i][add])
			}
			j.cof[super][add] = sum
		}
	}

	for s, set := range table {
		if j.positive(s, set) && j.dominates(s, set, n) {
			return j.solution(points, s, set, false)
		}
	}

	return j.fallback(points, table)
}

// Solve reduces s in place to the accepted subset, keeping the relative
// order of the remaining vertices, and stores their weights.
func (j *Johnson) Solve(s *Simplex) Solution {
	var buf [4]mgl64.Vec3
	sol := j.SubDistance(s.Points(&buf))

	var kept [4]Vertex
	for t := 0; t < sol.Size; t++ {
		kept[t] = s.Vertices[sol.Indices[t]]
	}
	s.Vertices = kept
	s.Weights = sol.Weights
	s.Count = sol.Size

	return sol
}

func (j *Johnson) positive(s int, set subset) bool {
	if j.delta[s] <= 0 {
		return false
	}
	for _, i := range set.members {
		if j.cof[s][i] <= 0 {
			return false
		}
	}
	return true
}

// dominates checks that adding any outside point would not bring the
// hull closer to the origin.
func (j *Johnson) dominates(s int, set subset, n int) bool {
	for add := 0; add < n; add++ {
		if super := set.supers[add]; super >= 0 && j.cof[super][add] > 0 {
			return false
		}
	}
	return true
}

func (j *Johnson) solution(points []mgl64.Vec3, s int, set subset, fallback bool) Solution {
	sol := Solution{Size: len(set.members), Fallback: fallback}
	inv := 1 / j.delta[s]
	for t, i := range set.members {
		w := j.cof[s][i] * inv
		sol.Indices[t] = i
		sol.Weights[t] = w
		sol.Point = sol.Point.Add(points[i].Mul(w))
	}
	return sol
}

func (j *Johnson) fallback(points []mgl64.Vec3, table []subset) Solution {
	best := 0
	bestDistance := math.Inf(1)

	for s, set := range table {
		if !j.positive(s, set) {
			continue
		}
		d, ok := affineDistance(points, set.members)
		if ok && d < bestDistance {
			best = s
			bestDistance = d
		}
	}

	return j.solution(points, best, table[best], true)
}

// affineDistance is the distance from the origin to the affine hull of the
// selected points. Rank-deficient hulls report ok=false.
func affineDistance(points []mgl64.Vec3, members []int) (float64, bool) {
	y0 := points[members[0]]
	if len(members) == 1 {
		return y0.Len(), true
	}

	// minimise |y0 + A x| where the columns of A are y_t - y0
	cols := len(members) - 1
	a := mat.NewDense(3, cols, nil)
	for c := 0; c < cols; c++ {
		e := points[members[c+1]].Sub(y0)
		for r := 0; r < 3; r++ {
			a.Set(r, c, e[r])
		}
	}
	b := mat.NewVecDense(3, []float64{-y0[0], -y0[1], -y0[2]})

	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return 0, false
	}

	var residual mat.VecDense
	residual.MulVec(a, &x)
	residual.SubVec(&residual, b)

	return residual.Norm(2), true
}
