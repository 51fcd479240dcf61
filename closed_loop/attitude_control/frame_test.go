package control

import (
	"math"
	"testing"

	"gotest.tools/v3/assert"
)

var standardGravity = Vector3{0, -9.81, 0}

func TestResolveHorizon_NoGravity(t *testing.T) {
	_, err := ResolveHorizon(Vector3{0, 0, 1e-4})
	assert.ErrorIs(t, err, ErrNoGravity)
}

func TestResolveHorizon_Orthonormal(t *testing.T) {
	for _, g := range []Vector3{
		standardGravity,
		{3, -4, 1},
		{0, 0, 9.81},
		{-1e3, 2, -5},
	} {
		f, err := ResolveHorizon(g)
		assert.NilError(t, err)
		assertClose(t, f.Up.Len(), 1)
		assertClose(t, f.East.Len(), 1)
		assertClose(t, f.North.Len(), 1)
		assertClose(t, f.Up.Dot(f.East), 0)
		assertClose(t, f.Up.Dot(f.North), 0)
		assertClose(t, f.East.Dot(f.North), 0)
		assertClose(t, f.Up.Dot(g.Normalize()), -1)
	}
}

func TestResolveHorizon_FallbackAtReferencePole(t *testing.T) {
	f, err := ResolveHorizon(standardGravity)
	assert.NilError(t, err)
	assert.Assert(t, f.North.ApproxEqualThreshold(Vector3{0, 0, 1}, tolerance), "north %v", f.North)
	assert.Assert(t, f.East.ApproxEqualThreshold(Vector3{-1, 0, 0}, tolerance), "east %v", f.East)
}

func TestHeading_Cardinals(t *testing.T) {
	f, err := ResolveHorizon(standardGravity)
	assert.NilError(t, err)
	for _, tt := range []struct {
		name    string
		forward Vector3
		want    float64
	}{
		{name: "north", forward: f.North, want: 0},
		{name: "east", forward: f.East, want: 90},
		{name: "south", forward: f.North.Mul(-1), want: 180},
		{name: "west", forward: f.East.Mul(-1), want: 270},
		{name: "north east climbing", forward: f.North.Add(f.East).Add(f.Up), want: 45},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h, err := f.Heading(tt.forward)
			assert.NilError(t, err)
			assert.Assert(t, math.Abs(h-tt.want) < 1e-6, "heading %v, want %v", h, tt.want)
			assert.Assert(t, h >= 0 && h < 360)
		})
	}
}

func TestHeading_VerticalNoseIsUndefined(t *testing.T) {
	f, err := ResolveHorizon(standardGravity)
	assert.NilError(t, err)
	_, err = f.Heading(f.Up)
	assert.ErrorIs(t, err, ErrDomain)
}

func TestLevelFlight(t *testing.T) {
	f, err := ResolveHorizon(standardGravity)
	assert.NilError(t, err)
	forward := Vector3{0, 0, 1}
	right := Vector3{-1, 0, 0}

	assertClose(t, f.Pitch(forward), 0)
	assertClose(t, f.Roll(right), 0)
	h, err := f.Heading(forward)
	assert.NilError(t, err)
	assertClose(t, h, 0)
}

func TestPitchAndRollSigns(t *testing.T) {
	f, err := ResolveHorizon(standardGravity)
	assert.NilError(t, err)

	climb := Vector3{0, 1, 1}
	assert.Assert(t, math.Abs(f.Pitch(climb)-45) < 1e-6)
	assert.Assert(t, math.Abs(f.Pitch(Vector3{0, -1, 0})+90) < 1e-6)

	rightWingHigh := Vector3{-1, 1, 0}
	assert.Assert(t, math.Abs(f.Roll(rightWingHigh)-45) < 1e-6)
}

func TestVectorHelpers(t *testing.T) {
	_, err := SafeNormalize(Vector3{1e-4, 0, 0})
	assert.ErrorIs(t, err, ErrDomain)

	n, err := SafeNormalize(Vector3{0, 3, 4})
	assert.NilError(t, err)
	assertClose(t, n.Len(), 1)

	r := Reject(Vector3{1, 2, 3}, Vector3{0, 1, 0})
	assert.Equal(t, r, Vector3{1, 0, 3})

	assert.Equal(t, ClampToSphere(Vector3{1, 0, 0}, 2), Vector3{1, 0, 0})
	assertClose(t, ClampToSphere(Vector3{0, 10, 0}, 2).Y(), 2)
	assert.Equal(t, ClampToSphere(Vector3{1, 1, 1}, 0), Vector3{})

	assertClose(t, NormalizeDegrees(-10), 350)
	assertClose(t, NormalizeDegrees(720), 0)
	assert.Assert(t, !IsFinite(Vector3{math.NaN(), 0, 0}))
}
