package qcollide

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/akmonengine/qcollide/gjk"
)

const DEFAULT_WORKERS = 1

// Config holds the tuning of an Engine. The zero value of a field is not a
// valid setting except for Workers and Logger; start from DefaultConfig.
type Config struct {
	// Workers is the number of goroutines pair solves fan out to.
	// Values below 1 mean DEFAULT_WORKERS.
	Workers int

	// MaxIterations is the escape valve of the refinement loop.
	MaxIterations int
	// Tolerance is the relative progress stop criterion.
	Tolerance float64
	// ContactTolerance is the distance at or below which a pair is
	// reported as colliding at distance 0.
	ContactTolerance float64

	// PenetrationDepth runs EPA on colliding pairs.
	PenetrationDepth bool

	// Logger receives warnings about approximate results. Nil discards.
	Logger *slog.Logger
}

// DefaultConfig returns a single-worker config with the gjk defaults.
func DefaultConfig() Config {
	return Config{
		Workers:          DEFAULT_WORKERS,
		MaxIterations:    gjk.DefaultMaxIterations,
		Tolerance:        gjk.DefaultTolerance,
		ContactTolerance: gjk.DefaultContactTolerance,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.MaxIterations < 1:
		return fmt.Errorf("%w: MaxIterations must be at least 1, got %d", ErrInvalidConfig, c.MaxIterations)
	case !(c.Tolerance > 0) || math.IsInf(c.Tolerance, 0):
		return fmt.Errorf("%w: Tolerance must be positive, got %v", ErrInvalidConfig, c.Tolerance)
	case !(c.ContactTolerance >= 0) || math.IsInf(c.ContactTolerance, 0):
		return fmt.Errorf("%w: ContactTolerance must be non-negative, got %v", ErrInvalidConfig, c.ContactTolerance)
	}
	return nil
}

func (c Config) settings() gjk.Settings {
	return gjk.Settings{
		MaxIterations:    c.MaxIterations,
		Tolerance:        c.Tolerance,
		ContactTolerance: c.ContactTolerance,
	}
}
