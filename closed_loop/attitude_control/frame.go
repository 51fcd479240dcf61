package control

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// MinGravitySquared is the squared gravity magnitude below which the vessel is
// considered to be in free space.
const MinGravitySquared = 1e-6

var (
	// WorldUp is the fixed world reference used to derive east from the
	// local up direction.
	WorldUp = Vector3{0, 1, 0}

	// FallbackReference replaces WorldUp when local up is parallel to it, so
	// the frame stays defined over the reference pole.
	FallbackReference = Vector3{0, 0, 1}
)

// HorizonFrame is the local orthonormal frame derived from gravity. It is
// rebuilt every tick and never cached.
type HorizonFrame struct {
	Up    Vector3
	East  Vector3
	North Vector3
}

// ResolveHorizon builds the horizon frame for the given gravity vector using
// WorldUp as the azimuth reference.
func ResolveHorizon(gravity Vector3) (HorizonFrame, error) {
	return ResolveHorizonWithReference(gravity, WorldUp)
}

// ResolveHorizonWithReference builds the frame from an explicit reference.
// Returns ErrNoGravity when gravity is negligible.
func ResolveHorizonWithReference(gravity, reference Vector3) (HorizonFrame, error) {
	if !IsFinite(gravity) || gravity.LenSqr() < MinGravitySquared {
		return HorizonFrame{}, ErrNoGravity
	}
	up := gravity.Mul(-1 / math.Sqrt(gravity.LenSqr()))

	east, err := SafeNormalize(reference.Cross(up))
	if err != nil {
		east, err = SafeNormalize(FallbackReference.Cross(up))
		if err != nil {
			return HorizonFrame{}, fmt.Errorf("resolve east: %w", err)
		}
	}
	north := up.Cross(east).Normalize()

	return HorizonFrame{Up: up, East: east, North: north}, nil
}

// Heading returns the compass bearing of forward in [0, 360) degrees, with 0
// at north and 90 at east. Fails with ErrDomain when forward is vertical.
func (f HorizonFrame) Heading(forward Vector3) (float64, error) {
	p, err := SafeNormalize(Reject(forward, f.Up))
	if err != nil {
		return 0, fmt.Errorf("heading: %w", err)
	}
	h := mgl64.RadToDeg(math.Acos(mgl64.Clamp(p.Dot(f.North), -1, 1)))
	if p.Dot(f.East) < 0 {
		h = 360 - h
	}
	return NormalizeDegrees(h), nil
}

// Pitch returns the nose elevation in degrees, positive when climbing.
func (f HorizonFrame) Pitch(forward Vector3) float64 {
	return elevation(forward, f.Up)
}

// Roll returns the right wing elevation in degrees, positive when the right
// wing is above the horizon.
func (f HorizonFrame) Roll(right Vector3) float64 {
	return elevation(right, f.Up)
}

func elevation(v, up Vector3) float64 {
	n, err := SafeNormalize(v)
	if err != nil {
		return 0
	}
	return mgl64.RadToDeg(math.Asin(mgl64.Clamp(n.Dot(up), -1, 1)))
}
