package control

import (
	"fmt"
	"math"
	"time"

	"go.einride.tech/pid"
)

// PIDController is a discrete PD/PID controller operating on a precomputed
// error signal. Output is not clamped; callers clamp per axis.
type PIDController struct {
	cfg PIDConfig
	pid pid.Controller

	// primed is false until the first Compute after construction or Reset.
	primed bool
}

// NewPIDController creates a new PID controller with given configuration
func NewPIDController(cfg PIDConfig) *PIDController {
	return &PIDController{
		cfg: cfg,
		pid: pid.Controller{
			Config: pid.ControllerConfig{
				ProportionalGain: cfg.Kp,
				IntegralGain:     cfg.Ki,
				DerivativeGain:   cfg.Kd,
			},
		},
	}
}

// NewPDController creates a controller without an integral term.
func NewPDController(kp, kd float64) *PIDController {
	return NewPIDController(PIDConfig{Kp: kp, Kd: kd})
}

// Config returns the gains the controller was built with.
func (c *PIDController) Config() PIDConfig {
	return c.cfg
}

// Reset clears the last error and the integral accumulator.
func (c *PIDController) Reset() {
	c.pid.State = pid.ControllerState{}
	c.primed = false
}

// Compute returns Kp*err + Ki*integral + Kd*(err-lastErr)/dt.
//
// The first call after construction or Reset uses err as the previous error,
// so the derivative term starts at zero. dt must be a positive, finite number
// of seconds that survives conversion to a time.Duration.
func (c *PIDController) Compute(err, dt float64) (float64, error) {
	interval, derr := samplingInterval(dt)
	if derr != nil {
		return 0, derr
	}
	if !isFinite(err) {
		return 0, fmt.Errorf("error signal %v: %w", err, ErrDomain)
	}

	if !c.primed {
		c.pid.State.ControlError = err
		c.primed = true
	}

	c.pid.Update(pid.ControllerInput{
		ReferenceSignal:  err,
		ActualSignal:     0,
		SamplingInterval: interval,
	})
	return c.pid.State.ControlSignal, nil
}

// LastError returns the error passed to the most recent Compute.
func (c *PIDController) LastError() float64 {
	return c.pid.State.ControlError
}

// Integral returns the accumulated error integral.
func (c *PIDController) Integral() float64 {
	return c.pid.State.ControlErrorIntegral
}

// GetDiagnostics returns current PID state for logging/debugging
func (c *PIDController) GetDiagnostics() PIDDiagnostics {
	s := c.pid.State
	return PIDDiagnostics{
		Error:      s.ControlError,
		Integral:   s.ControlErrorIntegral,
		Derivative: s.ControlErrorDerivative,
		P:          c.cfg.Kp * s.ControlError,
		I:          c.cfg.Ki * s.ControlErrorIntegral,
		D:          c.cfg.Kd * s.ControlErrorDerivative,
		Output:     s.ControlSignal,
	}
}

// PIDDiagnostics contains PID internal state for monitoring
type PIDDiagnostics struct {
	Error      float64
	Integral   float64
	Derivative float64
	P          float64
	I          float64
	D          float64
	Output     float64
}

const maxIntervalSeconds = float64(math.MaxInt64 / int64(time.Second))

func samplingInterval(dt float64) (time.Duration, error) {
	if !isFinite(dt) || dt <= 0 || dt > maxIntervalSeconds {
		return 0, fmt.Errorf("delta time %v: %w", dt, ErrDomain)
	}
	d := time.Duration(math.Round(dt * float64(time.Second)))
	if d <= 0 {
		return 0, fmt.Errorf("delta time %v below clock resolution: %w", dt, ErrDomain)
	}
	return d, nil
}

// ValidateInterval reports ErrDomain for any dt that Compute would reject.
func ValidateInterval(dt float64) error {
	_, err := samplingInterval(dt)
	return err
}
