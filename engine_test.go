package qcollide

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"testing"

	"github.com/akmonengine/qcollide/actor"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pmezard/go-difflib/difflib"
	"gonum.org/v1/gonum/floats/scalar"
)

// Test helper functions

func createCube(position mgl64.Vec3, rotation mgl64.Quat) *actor.Polytope {
	cube := actor.NewBox(mgl64.Vec3{0.5, 0.5, 0.5})
	cube.SetTransform(actor.NewTransformFromQuat(position, rotation))
	return cube
}

func createEngine(t testing.TB, cfg Config, polytopes ...*actor.Polytope) *Engine {
	t.Helper()

	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}
	for _, p := range polytopes {
		if _, err := e.AddPolytope(p); err != nil {
			t.Fatalf("Expected polytope to be added, got %v", err)
		}
	}
	return e
}

func evaluate(t testing.TB, e *Engine, pairs ...PairID) []Result {
	t.Helper()

	results, err := e.Evaluate(pairs)
	if err != nil {
		t.Fatalf("Expected Evaluate to succeed, got %v", err)
	}
	if len(results) != len(pairs) {
		t.Fatalf("Expected %d results, got %d", len(pairs), len(results))
	}
	return results
}

// scene returns a handful of separated and overlapping cubes.
func scene() []*actor.Polytope {
	return []*actor.Polytope{
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{2.2, 0.5, 0.3}, mgl64.QuatRotate(0.7, mgl64.Vec3{1, 2, 3}.Normalize())),
		createCube(mgl64.Vec3{0.6, 0.4, -0.2}, mgl64.QuatRotate(1.2, mgl64.Vec3{0, 1, 0})),
		createCube(mgl64.Vec3{-1.4, 1.9, 0.8}, mgl64.QuatRotate(2.5, mgl64.Vec3{-1, 0.3, 0.2}.Normalize())),
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatRotate(0.3, mgl64.Vec3{0, 0, 1})),
		createCube(mgl64.Vec3{1.0, 0, 0}, mgl64.QuatIdent()),
	}
}

func allPairs(n int) []PairID {
	var pairs []PairID
	for p := 0; p < n; p++ {
		for q := p + 1; q < n; q++ {
			pairs = append(pairs, PairID{P: p, Q: q})
		}
	}
	return pairs
}

func TestEvaluate_DisjointCubes(t *testing.T) {
	e := createEngine(t, DefaultConfig(),
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{3, 0, 0}, mgl64.QuatIdent()),
	)

	r := evaluate(t, e, PairID{0, 1})[0]

	if r.Colliding {
		t.Fatalf("Expected separated cubes")
	}
	if !scalar.EqualWithinAbs(r.Distance, 2, 1e-9) {
		t.Errorf("Expected distance 2, got %v", r.Distance)
	}
	if !r.Separation.Normalize().ApproxEqualThreshold(mgl64.Vec3{1, 0, 0}, 1e-9) {
		t.Errorf("Expected separating axis +x, got %v", r.Separation)
	}
	if !scalar.EqualWithinAbs(r.ClosestPointP.X(), 0.5, 1e-9) || !scalar.EqualWithinAbs(r.ClosestPointQ.X(), 2.5, 1e-9) {
		t.Errorf("Expected closest points on the facing faces, got %v and %v", r.ClosestPointP, r.ClosestPointQ)
	}
	if r.BoundsOverlap {
		t.Errorf("Expected bounds apart")
	}
	if r.Approximate {
		t.Errorf("Expected an exact result")
	}
	if got := e.Colliding(); len(got) != 0 {
		t.Errorf("Expected no colliding pair, got %v", got)
	}
}

func TestEvaluate_TouchingCubes(t *testing.T) {
	e := createEngine(t, DefaultConfig(),
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{1, 0, 0}, mgl64.QuatIdent()),
	)

	r := evaluate(t, e, PairID{0, 1})[0]

	if !r.Colliding {
		t.Errorf("Expected touching cubes to count as colliding")
	}
	if r.Distance != 0 {
		t.Errorf("Expected distance 0, got %v", r.Distance)
	}
	if !r.BoundsOverlap {
		t.Errorf("Expected touching bounds to overlap")
	}
}

func TestEvaluate_IdenticalCubes(t *testing.T) {
	e := createEngine(t, DefaultConfig(),
		createCube(mgl64.Vec3{1, 2, 3}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{1, 2, 3}, mgl64.QuatIdent()),
	)

	r := evaluate(t, e, PairID{0, 1})[0]

	if !r.Colliding || r.Distance != 0 {
		t.Errorf("Expected colliding at distance 0, got %+v", r)
	}
	if r.Approximate {
		t.Errorf("Expected the escape valve not to trigger")
	}
	if it := e.Stats().Iterations; it >= 10 {
		t.Errorf("Expected fewer than 10 iterations, got %d", it)
	}
	if got := e.Colliding(); len(got) != 1 || got[0] != (PairID{0, 1}) {
		t.Errorf("Expected (0,1) in the colliding set, got %v", got)
	}
}

func TestEvaluate_Symmetry(t *testing.T) {
	a := func() *actor.Polytope { return createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()) }
	b := func() *actor.Polytope {
		return createCube(mgl64.Vec3{2.5, 0.4, -0.3}, mgl64.QuatRotate(0.7, mgl64.Vec3{1, 2, 3}.Normalize()))
	}

	t.Run("registration order", func(t *testing.T) {
		forward := evaluate(t, createEngine(t, DefaultConfig(), a(), b()), PairID{0, 1})[0]
		backward := evaluate(t, createEngine(t, DefaultConfig(), b(), a()), PairID{0, 1})[0]

		if !scalar.EqualWithinAbs(forward.Distance, backward.Distance, 1e-9) {
			t.Errorf("Expected equal distances, got %v and %v", forward.Distance, backward.Distance)
		}
		if !forward.Separation.ApproxEqualThreshold(backward.Separation.Mul(-1), 1e-9) {
			t.Errorf("Expected opposite separations, got %v and %v", forward.Separation, backward.Separation)
		}
		if !forward.ClosestPointP.ApproxEqualThreshold(backward.ClosestPointQ, 1e-9) {
			t.Errorf("Expected swapped closest points, got %v and %v", forward.ClosestPointP, backward.ClosestPointQ)
		}
	})

	t.Run("request order", func(t *testing.T) {
		e := createEngine(t, DefaultConfig(), a(), b())
		results := evaluate(t, e, PairID{0, 1}, PairID{1, 0})

		if results[0].Distance != results[1].Distance {
			t.Errorf("Expected identical distances, got %v and %v", results[0].Distance, results[1].Distance)
		}
		if results[0].Separation != results[1].Separation.Mul(-1) {
			t.Errorf("Expected mirrored separations, got %v and %v", results[0].Separation, results[1].Separation)
		}
		if results[0].ClosestPointP != results[1].ClosestPointQ || results[0].ClosestFeatureP != results[1].ClosestFeatureQ {
			t.Errorf("Expected mirrored features, got %+v and %+v", results[0], results[1])
		}
		if e.Stats().Pairs != 1 {
			t.Errorf("Expected the duplicate to be solved once, got %d solves", e.Stats().Pairs)
		}
	})
}

func TestEvaluate_NonNegativeAndSeparatingPlane(t *testing.T) {
	polytopes := scene()
	e := createEngine(t, DefaultConfig(), polytopes...)
	pairs := allPairs(len(polytopes))

	for _, r := range evaluate(t, e, pairs...) {
		if r.Distance < 0 {
			t.Errorf("Pair %v: negative distance %v", r.Pair, r.Distance)
		}
		if r.Colliding {
			if r.Distance != 0 {
				t.Errorf("Pair %v: colliding with distance %v", r.Pair, r.Distance)
			}
			continue
		}

		p, q := polytopes[r.Pair.P], polytopes[r.Pair.Q]
		n := r.Separation.Normalize()
		for i := range p.Vertices {
			if p.WorldVertex(i).Sub(r.ClosestPointP).Dot(n) > 1e-5 {
				t.Errorf("Pair %v: vertex %d of P crosses the separating plane", r.Pair, i)
			}
		}
		for i := range q.Vertices {
			if q.WorldVertex(i).Sub(r.ClosestPointQ).Dot(n) < -1e-5 {
				t.Errorf("Pair %v: vertex %d of Q crosses the separating plane", r.Pair, i)
			}
		}
		if !scalar.EqualWithinAbs(r.ClosestPointQ.Sub(r.ClosestPointP).Len(), r.Distance, 1e-9) {
			t.Errorf("Pair %v: closest points are not %v apart", r.Pair, r.Distance)
		}
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PenetrationDepth = true
	polytopes := scene()
	e := createEngine(t, cfg, polytopes...)
	pairs := allPairs(len(polytopes))

	first := evaluate(t, e, pairs...)
	second := evaluate(t, e, pairs...)

	for i := range first {
		if first[i] != second[i] {
			diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
				A:        difflib.SplitLines(formatResult(first[i])),
				B:        difflib.SplitLines(formatResult(second[i])),
				FromFile: "first",
				ToFile:   "second",
				Context:  1,
			})
			t.Errorf("Pair %v drifted between unchanged evaluations:\n%s", pairs[i], diff)
		}
	}

	if warm := e.Stats().WarmStarts; warm == 0 {
		t.Errorf("Expected the second evaluation to warm start")
	}
}

func formatResult(r Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "colliding: %v\n", r.Colliding)
	fmt.Fprintf(&b, "distance: %v\n", r.Distance)
	fmt.Fprintf(&b, "penetration: %v\n", r.Penetration)
	fmt.Fprintf(&b, "separation: %v\n", r.Separation)
	fmt.Fprintf(&b, "closest P: %v (vertex %d)\n", r.ClosestPointP, r.ClosestFeatureP)
	fmt.Fprintf(&b, "closest Q: %v (vertex %d)\n", r.ClosestPointQ, r.ClosestFeatureQ)
	fmt.Fprintf(&b, "bounds: %v approximate: %v\n", r.BoundsOverlap, r.Approximate)
	return b.String()
}

func TestEvaluate_WarmStartVisitsFewerVertices(t *testing.T) {
	e := createEngine(t, DefaultConfig(),
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{3, 0, 0}, mgl64.QuatIdent()),
	)

	evaluate(t, e, PairID{0, 1})
	cold := e.Stats().SupportVisits

	e.ResetStats()
	if err := e.SetTransform(1, actor.NewTransformFromQuat(mgl64.Vec3{3.005, 0, 0}, mgl64.QuatIdent())); err != nil {
		t.Fatalf("Expected SetTransform to succeed, got %v", err)
	}
	r := evaluate(t, e, PairID{0, 1})[0]
	warm := e.Stats().SupportVisits

	if e.Stats().WarmStarts != 1 {
		t.Errorf("Expected a warm start, got %d", e.Stats().WarmStarts)
	}
	if warm >= cold {
		t.Errorf("Expected warm start to visit fewer vertices: warm %d, cold %d", warm, cold)
	}
	if !scalar.EqualWithinAbs(r.Distance, 2.005, 1e-9) {
		t.Errorf("Expected distance 2.005, got %v", r.Distance)
	}
}

func TestEvaluate_InvalidArguments(t *testing.T) {
	e := createEngine(t, DefaultConfig(),
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{3, 0, 0}, mgl64.QuatIdent()),
	)

	tests := []struct {
		name  string
		pairs []PairID
	}{
		{"out of range", []PairID{{0, 2}}},
		{"negative", []PairID{{-1, 0}}},
		{"self pair", []PairID{{1, 1}}},
		{"bad pair after good one", []PairID{{0, 1}, {0, 5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := e.Evaluate(tt.pairs)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Expected ErrInvalidArgument, got %v", err)
			}
			if results != nil {
				t.Errorf("Expected no results, got %v", results)
			}
			if e.cache.Len() != 0 {
				t.Errorf("Expected no record to be created, got %d", e.cache.Len())
			}
		})
	}

	t.Run("nil polytope", func(t *testing.T) {
		if _, err := e.AddPolytope(nil); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("accessors", func(t *testing.T) {
		if _, err := e.Polytope(7); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Polytope: expected ErrInvalidArgument, got %v", err)
		}
		if err := e.SetTransform(-1, actor.NewTransform()); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SetTransform: expected ErrInvalidArgument, got %v", err)
		}
		if err := e.SetMatrix(2, mgl64.Ident4(), mgl64.Ident4()); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SetMatrix: expected ErrInvalidArgument, got %v", err)
		}
		if err := e.SetActive(9, false); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("SetActive: expected ErrInvalidArgument, got %v", err)
		}
		if _, err := e.Pair(0, 0); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Pair: expected ErrInvalidArgument, got %v", err)
		}
		if err := e.ReleasePair(0, 3); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("ReleasePair: expected ErrInvalidArgument, got %v", err)
		}
		if _, err := e.CheckCollisions([]PairID{{1, 1}}); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("CheckCollisions: expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestEvaluate_InactivePolytopeIsSkipped(t *testing.T) {
	e := createEngine(t, DefaultConfig(),
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{0.5, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{3, 0, 0}, mgl64.QuatIdent()),
	)
	if err := e.SetActive(1, false); err != nil {
		t.Fatalf("Expected SetActive to succeed, got %v", err)
	}

	results := evaluate(t, e, PairID{0, 1}, PairID{0, 2})

	if !results[0].Skipped || results[0].Colliding {
		t.Errorf("Expected (0,1) to be skipped, got %+v", results[0])
	}
	if results[1].Skipped {
		t.Errorf("Expected (0,2) to be solved")
	}
	if _, ok := e.cache.Lookup(PairID{0, 1}); ok {
		t.Errorf("Expected no record for a skipped pair")
	}
}

func TestEvaluate_DeactivatedPairLeavesCollidingSet(t *testing.T) {
	e := createEngine(t, DefaultConfig(),
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{0.5, 0, 0}, mgl64.QuatIdent()),
	)
	capture := &eventCapture{}
	e.Events.Subscribe(COLLISION_ENTER, capture.capture)
	e.Events.Subscribe(COLLISION_STAY, capture.capture)
	e.Events.Subscribe(COLLISION_EXIT, capture.capture)

	evaluate(t, e, PairID{0, 1})
	capture.reset()

	if err := e.SetActive(1, false); err != nil {
		t.Fatalf("Expected SetActive to succeed, got %v", err)
	}
	for frame := 0; frame < 3; frame++ {
		evaluate(t, e, PairID{0, 1})
	}

	if got := e.Colliding(); len(got) != 0 {
		t.Errorf("Expected the deactivated pair to leave the colliding set, got %v", got)
	}
	if capture.hasEventType(COLLISION_STAY) {
		t.Errorf("Expected no COLLISION_STAY after deactivation, got %v", capture.events)
	}
	if capture.count() != 1 || capture.events[0] != (CollisionExitEvent{Pair: PairID{0, 1}}) {
		t.Errorf("Expected a single COLLISION_EXIT, got %v", capture.events)
	}
	if record, _ := e.Pair(0, 1); record.Active {
		t.Errorf("Expected the record to be released")
	}

	// reactivated pairs start cold and enter again
	capture.reset()
	e.ResetStats()
	if err := e.SetActive(1, true); err != nil {
		t.Fatalf("Expected SetActive to succeed, got %v", err)
	}
	r := evaluate(t, e, PairID{0, 1})[0]

	if !r.Colliding {
		t.Errorf("Expected the reactivated pair to collide")
	}
	if e.Stats().WarmStarts != 0 {
		t.Errorf("Expected a cold start after reactivation")
	}
	if capture.count() != 1 || !capture.hasEventType(COLLISION_ENTER) {
		t.Errorf("Expected a single COLLISION_ENTER, got %v", capture.events)
	}
}

func TestEvaluate_InactiveFlagClearedDirectly(t *testing.T) {
	second := createCube(mgl64.Vec3{0.5, 0, 0}, mgl64.QuatIdent())
	e := createEngine(t, DefaultConfig(),
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		second,
	)

	evaluate(t, e, PairID{0, 1})
	second.Active = false
	r := evaluate(t, e, PairID{1, 0})[0]

	if !r.Skipped {
		t.Errorf("Expected the pair to be skipped")
	}
	if got := e.Colliding(); len(got) != 0 {
		t.Errorf("Expected the skipped pair to leave the colliding set, got %v", got)
	}
	if record, _ := e.Pair(0, 1); record.Active {
		t.Errorf("Expected the record to be released")
	}
}

func TestEngine_Pair(t *testing.T) {
	e := createEngine(t, DefaultConfig(),
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{0.5, 0, 0}, mgl64.QuatIdent()),
	)

	record, err := e.Pair(1, 0)
	if err != nil {
		t.Fatalf("Expected a record, got %v", err)
	}
	if record.Active || record.Colliding || record.SimplexSize != 0 {
		t.Errorf("Expected a zero inactive record, got %+v", record)
	}
	if record.Polytopes != [2]int{0, 1} {
		t.Errorf("Expected the record to be stored ordered, got %v", record.Polytopes)
	}

	evaluate(t, e, PairID{0, 1})
	same, _ := e.Pair(0, 1)
	if same != record {
		t.Errorf("Expected Pair(0,1) and Pair(1,0) to share the record")
	}
	if !record.Active || !record.Colliding || record.SimplexSize == 0 {
		t.Errorf("Expected the solve to be written back, got %+v", record)
	}
	if record.ClosestFeatures[0] < 0 || record.ClosestFeatures[0] >= 8 {
		t.Errorf("Expected a valid closest feature, got %v", record.ClosestFeatures)
	}
}

func TestEngine_ReleasePair(t *testing.T) {
	e := createEngine(t, DefaultConfig(),
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{0.5, 0.2, 0}, mgl64.QuatIdent()),
	)

	evaluate(t, e, PairID{0, 1})
	if err := e.ReleasePair(1, 0); err != nil {
		t.Fatalf("Expected ReleasePair to succeed, got %v", err)
	}

	record, _ := e.Pair(0, 1)
	if record.Active {
		t.Errorf("Expected the record to be inactive")
	}
	if !record.Colliding {
		t.Errorf("Expected the stale values to be kept")
	}
	if len(e.Colliding()) != 0 {
		t.Errorf("Expected the pair to leave the colliding set, got %v", e.Colliding())
	}

	e.ResetStats()
	evaluate(t, e, PairID{0, 1})
	if e.Stats().WarmStarts != 0 {
		t.Errorf("Expected a released pair to start cold")
	}
}

func TestEngine_UnsuppliedPairsUntouched(t *testing.T) {
	e := createEngine(t, DefaultConfig(),
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{0.5, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{5, 0, 0}, mgl64.QuatIdent()),
	)

	evaluate(t, e, PairID{0, 1}, PairID{0, 2})
	before := *e.cache.Get(PairID{0, 1})

	// move 1 away but only evaluate (0,2)
	if err := e.SetTransform(1, actor.NewTransformFromQuat(mgl64.Vec3{10, 0, 0}, mgl64.QuatIdent())); err != nil {
		t.Fatalf("Expected SetTransform to succeed, got %v", err)
	}
	evaluate(t, e, PairID{0, 2})

	if after := *e.cache.Get(PairID{0, 1}); after != before {
		t.Errorf("Expected record (0,1) to be left alone")
	}
	if got := e.Colliding(); len(got) != 1 || got[0] != (PairID{0, 1}) {
		t.Errorf("Expected (0,1) to stay in the colliding set, got %v", got)
	}
}

func TestEvaluate_Workers(t *testing.T) {
	single := createEngine(t, DefaultConfig(), scene()...)

	cfg := DefaultConfig()
	cfg.Workers = 4
	parallel := createEngine(t, cfg, scene()...)

	pairs := allPairs(len(scene()))
	for frame := 0; frame < 3; frame++ {
		want := evaluate(t, single, pairs...)
		got := evaluate(t, parallel, pairs...)

		for i := range want {
			if want[i] != got[i] {
				t.Errorf("Frame %d pair %v: expected %+v, got %+v", frame, pairs[i], want[i], got[i])
			}
		}
		if fmt.Sprint(single.Colliding()) != fmt.Sprint(parallel.Colliding()) {
			t.Errorf("Frame %d: colliding sets differ: %v vs %v", frame, single.Colliding(), parallel.Colliding())
		}

		for i := 1; i < len(scene()); i++ {
			step := actor.NewTransformFromQuat(mgl64.Vec3{float64(i) * 0.3, 0.1 * float64(frame), 0}, mgl64.QuatRotate(0.1*float64(frame+i), mgl64.Vec3{0, 1, 0}))
			single.SetTransform(i, step)
			parallel.SetTransform(i, step)
		}
	}
}

func TestEvaluate_PenetrationDepth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PenetrationDepth = true
	e := createEngine(t, cfg,
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{0.5, 0.1, 0.05}, mgl64.QuatIdent()),
	)

	results := evaluate(t, e, PairID{0, 1}, PairID{1, 0})
	r := results[0]

	if !r.Colliding {
		t.Fatalf("Expected overlap")
	}
	if !scalar.EqualWithinAbs(r.Penetration, 0.5, 1e-2) {
		t.Errorf("Expected penetration 0.5, got %v", r.Penetration)
	}
	if !r.Separation.ApproxEqualThreshold(mgl64.Vec3{0.5, 0, 0}, 1e-2) {
		t.Errorf("Expected Q to be pushed along +x by 0.5, got %v", r.Separation)
	}
	if !results[1].Separation.ApproxEqualThreshold(mgl64.Vec3{-0.5, 0, 0}, 1e-2) {
		t.Errorf("Expected the swapped request to push along -x, got %v", results[1].Separation)
	}
}

func TestEvaluate_PenetrationDepthCoincident(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PenetrationDepth = true
	e := createEngine(t, cfg,
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
	)

	r := evaluate(t, e, PairID{0, 1})[0]
	if !r.Colliding {
		t.Fatalf("Expected overlap")
	}
	if r.Penetration != 0 && !scalar.EqualWithinAbs(r.Penetration, 1, 1e-2) {
		t.Errorf("Expected a full-width penetration when available, got %v", r.Penetration)
	}
}

func TestEvaluate_SeparationWithoutDepth(t *testing.T) {
	e := createEngine(t, DefaultConfig(),
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{0, 0.4, 0}, mgl64.QuatIdent()),
	)

	r := evaluate(t, e, PairID{0, 1})[0]
	if !r.Colliding {
		t.Fatalf("Expected overlap")
	}
	if r.Penetration != 0 {
		t.Errorf("Expected no depth without PenetrationDepth, got %v", r.Penetration)
	}
	if !r.Separation.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-12) {
		t.Errorf("Expected the unit centroid direction, got %v", r.Separation)
	}
}

func TestCheckCollisions(t *testing.T) {
	e := createEngine(t, DefaultConfig(),
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{3, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{0.7, 0.3, 0}, mgl64.QuatRotate(0.4, mgl64.Vec3{0, 0, 1})),
		createCube(mgl64.Vec3{1.1, 1.1, 0}, mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 0, 1})),
	)

	tests := []struct {
		name  string
		pairs []PairID
		want  bool
	}{
		{"empty", nil, false},
		{"separated", []PairID{{0, 1}}, false},
		{"overlapping", []PairID{{0, 2}}, true},
		{"any of several", []PairID{{0, 1}, {1, 2}, {2, 0}}, true},
		{"bounds overlap but shapes apart", []PairID{{0, 3}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.CheckCollisions(tt.pairs)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if e.cache.Len() != 0 {
		t.Errorf("Expected CheckCollisions to leave the cache alone")
	}
}

func TestEngine_LogsExhaustion(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.MaxIterations = 1
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e := createEngine(t, cfg,
		createCube(mgl64.Vec3{0, 0, 0}, mgl64.QuatIdent()),
		createCube(mgl64.Vec3{2.2, 0.5, 0.3}, mgl64.QuatRotate(0.7, mgl64.Vec3{1, 2, 3}.Normalize())),
	)

	r := evaluate(t, e, PairID{0, 1})[0]

	if !strings.Contains(buf.String(), "polytope added") {
		t.Errorf("Expected polytope registration to be logged, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "pairs evaluated") || !strings.Contains(buf.String(), "records=1") {
		t.Errorf("Expected an evaluation summary with the record count, got %q", buf.String())
	}
	if !r.Approximate {
		t.Skip("pair converged within one iteration")
	}
	if !strings.Contains(buf.String(), "iteration cap") {
		t.Errorf("Expected a warning about the iteration cap, got %q", buf.String())
	}
	if e.Stats().Exhausted != 1 {
		t.Errorf("Expected 1 exhausted solve, got %d", e.Stats().Exhausted)
	}
}

func TestNewEngine_Config(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero iterations", func(c *Config) { c.MaxIterations = 0 }},
		{"zero tolerance", func(c *Config) { c.Tolerance = 0 }},
		{"NaN tolerance", func(c *Config) { c.Tolerance = math.NaN() }},
		{"negative contact tolerance", func(c *Config) { c.ContactTolerance = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if _, err := NewEngine(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	t.Run("workers default", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Workers = 0
		e, err := NewEngine(cfg)
		if err != nil {
			t.Fatalf("Expected valid config, got %v", err)
		}
		if len(e.workers) != DEFAULT_WORKERS {
			t.Errorf("Expected %d worker, got %d", DEFAULT_WORKERS, len(e.workers))
		}
	})
}

func BenchmarkEvaluate_Scene(b *testing.B) {
	polytopes := scene()
	e := createEngine(b, DefaultConfig(), polytopes...)
	pairs := allPairs(len(polytopes))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Evaluate(pairs)
	}
}
