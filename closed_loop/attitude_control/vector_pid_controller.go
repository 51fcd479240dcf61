package control

import "fmt"

// VectorPIDController runs one PID law over a three-axis error. The integral
// accumulates componentwise and is clamped to a sphere so that a large error
// on one axis cannot wind up the others.
type VectorPIDController struct {
	cfg VectorPIDConfig

	lastError Vector3
	integral  Vector3
	primed    bool
}

func NewVectorPIDController(cfg VectorPIDConfig) *VectorPIDController {
	if cfg.IntegralLimit <= 0 {
		cfg.IntegralLimit = DefaultIntegralLimit
	}
	return &VectorPIDController{cfg: cfg}
}

// Reset clears the last error and the integral accumulator.
func (c *VectorPIDController) Reset() {
	c.lastError = Vector3{}
	c.integral = Vector3{}
	c.primed = false
}

// Compute returns Kp*err + Ki*integral + Kd*derivative. Priming and dt rules
// match PIDController.Compute.
func (c *VectorPIDController) Compute(err Vector3, dt float64) (Vector3, error) {
	if _, derr := samplingInterval(dt); derr != nil {
		return Vector3{}, derr
	}
	if !IsFinite(err) {
		return Vector3{}, fmt.Errorf("error signal %v: %w", err, ErrDomain)
	}
	if !c.primed {
		c.lastError = err
		c.primed = true
	}

	c.integral = ClampToSphere(c.integral.Add(err.Mul(dt)), c.cfg.IntegralLimit)
	derivative := err.Sub(c.lastError).Mul(1 / dt)
	c.lastError = err

	return err.Mul(c.cfg.Kp).
		Add(c.integral.Mul(c.cfg.Ki)).
		Add(derivative.Mul(c.cfg.Kd)), nil
}

func (c *VectorPIDController) LastError() Vector3 { return c.lastError }
func (c *VectorPIDController) Integral() Vector3  { return c.integral }
