package autopilot

import (
	"fmt"
	"math"
	"strings"

	control "streamline-autopilot/closed_loop/attitude_control"
)

// Axis identifies one controllable quantity.
type Axis int

const (
	Altitude Axis = iota
	Heading
	HorizontalSpeed
	VerticalSpeed
	Roll
	Pitch

	numAxes
)

var axisCodes = [numAxes]string{
	Altitude:        "ALT",
	Heading:         "HDG",
	HorizontalSpeed: "SPD",
	VerticalSpeed:   "VS",
	Roll:            "ROL",
	Pitch:           "PTH",
}

var axisNames = [numAxes]string{
	Altitude:        "Altitude",
	Heading:         "Heading",
	HorizontalSpeed: "Speed",
	VerticalSpeed:   "VerticalSpeed",
	Roll:            "Roll",
	Pitch:           "Pitch",
}

// Axes returns every axis in table order.
func Axes() []Axis {
	out := make([]Axis, numAxes)
	for i := range out {
		out[i] = Axis(i)
	}
	return out
}

func (a Axis) Valid() bool { return a >= 0 && a < numAxes }

// String returns the short command code (ALT, HDG, ...).
func (a Axis) String() string {
	if !a.Valid() {
		return fmt.Sprintf("Axis(%d)", int(a))
	}
	return axisCodes[a]
}

// Name returns the long name used in state snapshots.
func (a Axis) Name() string {
	if !a.Valid() {
		return a.String()
	}
	return axisNames[a]
}

// ParseAxis accepts either the short code or the long name, case-insensitively.
func ParseAxis(s string) (Axis, error) {
	s = strings.TrimSpace(s)
	for i := Axis(0); i < numAxes; i++ {
		if strings.EqualFold(s, axisCodes[i]) || strings.EqualFold(s, axisNames[i]) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("parse axis %q: %w", s, control.ErrInvalidAxis)
}

// HeadingError returns current-target wrapped into (-180, 180].
func HeadingError(current, target float64) float64 {
	d := math.Mod(current-target+180, 360)
	if d < 0 {
		d += 360
	}
	d -= 180
	if d <= -180 {
		d += 360
	}
	return d
}

// targetLimits bounds operator-entered targets per axis.
var targetLimits = [numAxes]struct{ min, max float64 }{
	Altitude:        {0, math.Inf(1)},
	Heading:         {0, 360},
	HorizontalSpeed: {0, 100},
	VerticalSpeed:   {-100, 100},
	Roll:            {-90, 90},
	Pitch:           {-90, 90},
}

func clampTarget(a Axis, v float64) float64 {
	if a == Heading {
		return control.NormalizeDegrees(v)
	}
	l := targetLimits[a]
	return control.ClampFloat(v, l.min, l.max)
}
