package qcollide

import "errors"

var (
	// ErrInvalidArgument is returned at the call boundary for out-of-range
	// polytope indices, degenerate pairs and nil polytopes.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidConfig is returned by Config.Validate and NewEngine.
	ErrInvalidConfig = errors.New("invalid config")
)
