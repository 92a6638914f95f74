package tectonics

import "errors"

var (
	// ErrDegenerateStep is fatal: orientation or angular velocity is no longer finite.
	ErrDegenerateStep = errors.New("tectonics: degenerate step")
	// ErrPhaseOrder is returned when step phases are invoked out of order.
	ErrPhaseOrder = errors.New("tectonics: step phase out of order")
	// ErrInvariant reports a broken model invariant (ownership, liveness, negative values).
	ErrInvariant = errors.New("tectonics: invariant violation")
	// ErrGridMismatch is returned when a snapshot was taken on a different grid.
	ErrGridMismatch = errors.New("tectonics: grid mismatch")
)
