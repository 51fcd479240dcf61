package utils

import "math"

// toRaw converts a physical value to its raw integer, clamped first to the
// signal's physical range and then to what the bit field can hold.
func (s SignalDef) toRaw(v float64) int64 {
	if s.Min < s.Max {
		v = clamp(v, s.Min, s.Max)
	}
	raw := int64(math.Round((v - s.Offset) / s.Factor))
	return clampRaw(raw, s.BitLength, s.Signed)
}

func (s SignalDef) fromRaw(raw int64) float64 {
	return float64(raw)*s.Factor + s.Offset
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampRaw(raw int64, bitLen int, signed bool) int64 {
	if bitLen <= 0 || bitLen > 63 {
		return raw
	}
	if !signed {
		max := int64((1 << bitLen) - 1)
		if raw < 0 {
			return 0
		}
		if raw > max {
			return max
		}
		return raw
	}
	min := -int64(1 << (bitLen - 1))
	max := int64((1 << (bitLen - 1)) - 1)
	if raw < min {
		return min
	}
	if raw > max {
		return max
	}
	return raw
}
