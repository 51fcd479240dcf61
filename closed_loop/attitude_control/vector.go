package control

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vector3 is the world/body space vector used throughout the control core.
type Vector3 = mgl64.Vec3

// MinLengthSquared is the squared length below which a vector is treated as
// zero and cannot be normalized.
const MinLengthSquared = 1e-6

// SafeNormalize returns v scaled to unit length, or ErrDomain when v is
// shorter than sqrt(MinLengthSquared).
func SafeNormalize(v Vector3) (Vector3, error) {
	l2 := v.LenSqr()
	if l2 < MinLengthSquared {
		return Vector3{}, fmt.Errorf("normalize %v: %w", v, ErrDomain)
	}
	return v.Mul(1 / math.Sqrt(l2)), nil
}

// Reject removes from v its component along the unit vector n.
func Reject(v, n Vector3) Vector3 {
	return v.Sub(n.Mul(v.Dot(n)))
}

// ClampToSphere limits v to a sphere of the given radius, preserving direction.
func ClampToSphere(v Vector3, radius float64) Vector3 {
	if radius <= 0 {
		return Vector3{}
	}
	l2 := v.LenSqr()
	if l2 <= radius*radius {
		return v
	}
	return v.Mul(radius / math.Sqrt(l2))
}

// IsFinite reports whether every component of v is a finite number.
func IsFinite(v Vector3) bool {
	return isFinite(v.X()) && isFinite(v.Y()) && isFinite(v.Z())
}
