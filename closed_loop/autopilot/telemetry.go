package autopilot

import (
	"errors"
	"fmt"

	control "streamline-autopilot/closed_loop/attitude_control"
)

// UnknownAltitude is reported as the altitude when it cannot be measured,
// for instance outside a gravity well.
const UnknownAltitude = -1.0

// ErrNoTelemetry is returned by readings taken before the first Observe.
var ErrNoTelemetry = errors.New("no telemetry observed")

// Telemetry is one sample of vessel state. Vectors are in world space;
// Forward, Right and Up are the body axes.
type Telemetry struct {
	Position control.Vector3 `json:"position"`
	Velocity control.Vector3 `json:"velocity"`
	Gravity  control.Vector3 `json:"gravity"`
	Forward  control.Vector3 `json:"forward"`
	Right    control.Vector3 `json:"right"`
	Up       control.Vector3 `json:"up"`

	// Altitude above sea level, meaningful only when AltitudeValid is set.
	Altitude      float64 `json:"altitude"`
	AltitudeValid bool    `json:"altitude_valid"`
}

// InGravity reports whether gravity is strong enough to define a horizon.
func (t Telemetry) InGravity() bool {
	return t.Gravity.LenSqr() >= control.MinGravitySquared
}

// reading evaluates the current value of one axis from a telemetry sample.
func reading(tel Telemetry, axis Axis) (float64, error) {
	if !axis.Valid() {
		return 0, fmt.Errorf("axis %d: %w", int(axis), control.ErrInvalidAxis)
	}
	switch axis {
	case Altitude:
		if !tel.InGravity() || !tel.AltitudeValid {
			return UnknownAltitude, nil
		}
		return tel.Altitude, nil
	case HorizontalSpeed:
		return tel.Velocity.Len(), nil
	}

	frame, err := control.ResolveHorizon(tel.Gravity)
	if err != nil {
		return 0, err
	}
	switch axis {
	case Heading:
		return frame.Heading(tel.Forward)
	case VerticalSpeed:
		return tel.Velocity.Dot(frame.Up), nil
	case Roll:
		return frame.Roll(tel.Right), nil
	default:
		return frame.Pitch(tel.Forward), nil
	}
}
