package control

import "math"

// ClampFloat clamps value between min and max
func ClampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// BoolToFloat converts bool to float64 (for CAN encoding)
func BoolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

// Sign returns -1, 0 or 1 following the sign of v.
func Sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// NormalizeDegrees wraps an angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	d := math.Mod(deg, 360)
	if d < 0 {
		d += 360
	}
	if d >= 360 {
		d = 0
	}
	return d
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
