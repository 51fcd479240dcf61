package control

import "errors"

var (
	// ErrNoGravity is returned when the gravity vector is too small to define
	// a horizon. Callers treat it as "skip this tick" rather than a failure.
	ErrNoGravity = errors.New("no gravity")

	// ErrInvalidAxis is returned for an axis tag outside the known set.
	ErrInvalidAxis = errors.New("invalid axis")

	// ErrDomain is returned when a computation would divide by zero or
	// normalize a zero-length vector.
	ErrDomain = errors.New("domain error")

	// ErrConfiguration is returned when a controller or actuator inventory
	// cannot be built from the supplied configuration.
	ErrConfiguration = errors.New("invalid configuration")
)
