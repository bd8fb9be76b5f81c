package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/akmonengine/qcollide"
	"github.com/akmonengine/qcollide/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// SetupScene places a fixed cube at the origin and a tilted one to its right.
func SetupScene(logger *slog.Logger) (*qcollide.Engine, error) {
	cfg := qcollide.DefaultConfig()
	cfg.PenetrationDepth = true
	cfg.Logger = logger

	engine, err := qcollide.NewEngine(cfg)
	if err != nil {
		return nil, err
	}

	ground := actor.NewBox(mgl64.Vec3{0.5, 0.5, 0.5})
	tilted := actor.NewBox(mgl64.Vec3{0.5, 0.5, 0.5})
	tilted.SetTransform(actor.NewTransformFromQuat(mgl64.Vec3{3, 0.2, 0}, mgl64.QuatRotate(0.5, mgl64.Vec3{0, 0, 1})))

	for _, p := range []*actor.Polytope{ground, tilted} {
		if _, err := engine.AddPolytope(p); err != nil {
			return nil, err
		}
	}

	engine.Events.Subscribe(qcollide.COLLISION_ENTER, func(event qcollide.Event) {
		e := event.(qcollide.CollisionEnterEvent)
		logger.Info("collision enter", slog.Int("p", e.Pair.P), slog.Int("q", e.Pair.Q))
	})
	engine.Events.Subscribe(qcollide.COLLISION_EXIT, func(event qcollide.Event) {
		e := event.(qcollide.CollisionExitEvent)
		logger.Info("collision exit", slog.Int("p", e.Pair.P), slog.Int("q", e.Pair.Q))
	})

	return engine, nil
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	engine, err := SetupScene(logger)
	if err != nil {
		logger.Error("scene setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	pairs := []qcollide.PairID{{P: 0, Q: 1}}
	fmt.Println("=== Sliding the tilted cube through the fixed one ===")

	for frame := 0; frame <= 40; frame++ {
		x := 3 - 0.1*float64(frame)
		if x < 0 {
			x = -x
		}
		rotation := mgl64.QuatRotate(0.5+0.02*float64(frame), mgl64.Vec3{0, 0, 1})
		if err := engine.SetTransform(1, actor.NewTransformFromQuat(mgl64.Vec3{x, 0.2, 0}, rotation)); err != nil {
			logger.Error("transform update failed", slog.Any("error", err))
			os.Exit(1)
		}

		results, err := engine.Evaluate(pairs)
		if err != nil {
			logger.Error("evaluate failed", slog.Any("error", err))
			os.Exit(1)
		}

		r := results[0]
		if r.Colliding {
			fmt.Printf("frame %2d  x=%.2f  colliding  depth=%.4f  push=%v\n", frame, x, r.Penetration, r.Separation)
		} else {
			fmt.Printf("frame %2d  x=%.2f  distance=%.4f  P=%v Q=%v  features=(%d,%d)\n",
				frame, x, r.Distance, r.ClosestPointP, r.ClosestPointQ, r.ClosestFeatureP, r.ClosestFeatureQ)
		}
	}

	stats := engine.Stats()
	fmt.Printf("\nsolves=%d warm=%d iterations=%d support visits=%d\n",
		stats.Pairs, stats.WarmStarts, stats.Iterations, stats.SupportVisits)
}
