package control

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestVectorPIDController_IntegralClampedToSphere(t *testing.T) {
	c := NewVectorPIDController(VectorPIDConfig{Ki: 1, IntegralLimit: 2})
	for i := 0; i < 10; i++ {
		_, err := c.Compute(Vector3{3, 4, 0}, 1)
		assert.NilError(t, err)
	}
	assertClose(t, c.Integral().Len(), 2)
	// Direction preserved.
	assertClose(t, c.Integral().X(), 1.2)
	assertClose(t, c.Integral().Y(), 1.6)
}

func TestVectorPIDController_DefaultLimit(t *testing.T) {
	c := NewVectorPIDController(VectorPIDConfig{Ki: 1})
	for i := 0; i < 100; i++ {
		_, err := c.Compute(Vector3{0, 0, 1}, 1)
		assert.NilError(t, err)
	}
	assertClose(t, c.Integral().Z(), DefaultIntegralLimit)
}

func TestVectorPIDController_PDTerms(t *testing.T) {
	c := NewVectorPIDController(VectorPIDConfig{Kp: 0.8, Kd: 0.2})
	out, err := c.Compute(Vector3{1, 0, 0}, 0.5)
	assert.NilError(t, err)
	assertClose(t, out.X(), 0.8)

	out, err = c.Compute(Vector3{2, 0, 0}, 0.5)
	assert.NilError(t, err)
	// 0.8*2 + 0.2*(2-1)/0.5
	assertClose(t, out.X(), 2.0)
	assertClose(t, out.Y(), 0)
}

func TestVectorPIDController_ResetAndDomain(t *testing.T) {
	c := NewVectorPIDController(VectorPIDConfig{Kp: 1, Ki: 1})
	_, err := c.Compute(Vector3{1, 1, 1}, 1)
	assert.NilError(t, err)

	_, err = c.Compute(Vector3{1, 1, 1}, 0)
	assert.ErrorIs(t, err, ErrDomain)

	c.Reset()
	assert.Equal(t, c.Integral(), Vector3{})
	assert.Equal(t, c.LastError(), Vector3{})
}
