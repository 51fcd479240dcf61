package autopilot

import (
	"fmt"
	"math"

	control "streamline-autopilot/closed_loop/attitude_control"
	"streamline-autopilot/utils"
)

// Gains holds one PD/PID configuration per axis.
type Gains struct {
	Altitude        control.PIDConfig `json:"altitude" yaml:"altitude"`
	Heading         control.PIDConfig `json:"heading" yaml:"heading"`
	HorizontalSpeed control.PIDConfig `json:"speed" yaml:"speed"`
	VerticalSpeed   control.PIDConfig `json:"vertical_speed" yaml:"vertical_speed"`
	Roll            control.PIDConfig `json:"roll" yaml:"roll"`
	Pitch           control.PIDConfig `json:"pitch" yaml:"pitch"`
}

func (g Gains) forAxis(a Axis) control.PIDConfig {
	switch a {
	case Altitude:
		return g.Altitude
	case Heading:
		return g.Heading
	case HorizontalSpeed:
		return g.HorizontalSpeed
	case VerticalSpeed:
		return g.VerticalSpeed
	case Roll:
		return g.Roll
	default:
		return g.Pitch
	}
}

// Config tunes the guidance engine.
type Config struct {
	Gains Gains `json:"gains" yaml:"gains"`

	// StabilityLimit is the combined measured |roll|+|pitch| in degrees
	// above which only leveling runs.
	StabilityLimit float64 `json:"stability_limit_deg" yaml:"stability_limit_deg"`
	// BankThreshold is the heading error beyond which the vessel banks
	// into the turn by BankBias.
	BankThreshold float64 `json:"bank_threshold_deg" yaml:"bank_threshold_deg"`
	BankBias      float64 `json:"bank_bias" yaml:"bank_bias"`
	// VerticalSpeedDeadband suppresses lift corrections below this error.
	VerticalSpeedDeadband float64 `json:"vertical_speed_deadband" yaml:"vertical_speed_deadband"`
	// ApproachSpeed caps the climb/descent rate once within braking
	// distance of the altitude target.
	ApproachSpeed float64 `json:"approach_speed" yaml:"approach_speed"`
	// BrakingRate converts vertical speed into braking distance:
	// distance = |vs| / BrakingRate * 100.
	BrakingRate float64 `json:"braking_rate" yaml:"braking_rate"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	g := control.DefaultAxisGains()
	return Config{
		Gains: Gains{
			Altitude:        g,
			Heading:         g,
			HorizontalSpeed: g,
			VerticalSpeed:   g,
			Roll:            g,
			Pitch:           g,
		},
		StabilityLimit:        10,
		BankThreshold:         10,
		BankBias:              0.1,
		VerticalSpeedDeadband: 0.1,
		ApproachSpeed:         10,
		BrakingRate:           30,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.StabilityLimit <= 0 {
		c.StabilityLimit = d.StabilityLimit
	}
	if c.BankThreshold <= 0 {
		c.BankThreshold = d.BankThreshold
	}
	if c.BankBias <= 0 {
		c.BankBias = d.BankBias
	}
	if c.VerticalSpeedDeadband <= 0 {
		c.VerticalSpeedDeadband = d.VerticalSpeedDeadband
	}
	if c.ApproachSpeed <= 0 {
		c.ApproachSpeed = d.ApproachSpeed
	}
	if c.BrakingRate <= 0 {
		c.BrakingRate = d.BrakingRate
	}
	return c
}

// AxisState is the operator-facing setpoint of one axis.
type AxisState struct {
	Enabled bool
	Target  float64
}

// Autopilot holds the setpoint table, one controller per axis and the
// actuator inventory. It is not safe for concurrent use.
type Autopilot struct {
	cfg Config
	log *utils.Logger

	engaged     bool
	axes        [numAxes]AxisState
	controllers [numAxes]*control.PIDController
	act         *actuators

	tel    Telemetry
	hasTel bool

	derivedVerticalSpeed float64
}

// NewAutopilot builds a disengaged autopilot with every axis disabled.
func NewAutopilot(cfg Config, gyros []Gyro, thrusters []Thruster, log *utils.Logger) (*Autopilot, error) {
	act, err := newActuators(gyros, thrusters)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = utils.NewNopLogger()
	}
	cfg = cfg.withDefaults()
	ap := &Autopilot{cfg: cfg, log: log, act: act}
	for _, a := range Axes() {
		ap.controllers[a] = control.NewPIDController(cfg.Gains.forAxis(a))
	}
	return ap, nil
}

// Engaged reports whether the autopilot currently owns the actuators.
func (ap *Autopilot) Engaged() bool { return ap.engaged }

// SetAutopilot engages or disengages. Engaging resets every controller.
func (ap *Autopilot) SetAutopilot(on bool) {
	if on && !ap.engaged {
		ap.ResetControllers()
		ap.log.Info("Autopilot engaged")
	}
	if !on && ap.engaged {
		ap.log.Info("Autopilot disengaged")
	}
	ap.engaged = on
}

// ResetControllers clears the state of every axis controller.
func (ap *Autopilot) ResetControllers() {
	for _, c := range ap.controllers {
		c.Reset()
	}
	ap.derivedVerticalSpeed = 0
}

// Controller exposes an axis controller for diagnostics.
func (ap *Autopilot) Controller(axis Axis) (*control.PIDController, error) {
	if !axis.Valid() {
		return nil, fmt.Errorf("axis %d: %w", int(axis), control.ErrInvalidAxis)
	}
	return ap.controllers[axis], nil
}

// Enabled reports whether the axis is under control.
func (ap *Autopilot) Enabled(axis Axis) (bool, error) {
	if !axis.Valid() {
		return false, fmt.Errorf("axis %d: %w", int(axis), control.ErrInvalidAxis)
	}
	return ap.axes[axis].Enabled, nil
}

// Target returns the axis setpoint.
func (ap *Autopilot) Target(axis Axis) (float64, error) {
	if !axis.Valid() {
		return 0, fmt.Errorf("axis %d: %w", int(axis), control.ErrInvalidAxis)
	}
	return ap.axes[axis].Target, nil
}

// SetTarget replaces the axis setpoint.
func (ap *Autopilot) SetTarget(axis Axis, value float64) error {
	if !axis.Valid() {
		return fmt.Errorf("axis %d: %w", int(axis), control.ErrInvalidAxis)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("target %v for %s: %w", value, axis, control.ErrDomain)
	}
	if axis == Heading {
		value = control.NormalizeDegrees(value)
	}
	ap.axes[axis].Target = value
	ap.log.Debug("Target %s=%.2f", axis, value)
	return nil
}

// AdjustTarget nudges the setpoint by delta, keeping it within the limits
// an operator may dial in (speeds 0..100, vertical speed -100..100,
// altitude non-negative, heading wrapped).
func (ap *Autopilot) AdjustTarget(axis Axis, delta float64) error {
	cur, err := ap.Target(axis)
	if err != nil {
		return err
	}
	return ap.SetTarget(axis, clampTarget(axis, cur+delta))
}

// ToggleEnabled flips the enable flag.
func (ap *Autopilot) ToggleEnabled(axis Axis) error {
	on, err := ap.Enabled(axis)
	if err != nil {
		return err
	}
	return ap.SetEnabled(axis, !on)
}

// SetEnabled sets the enable flag. Disabling an axis resets its controller.
func (ap *Autopilot) SetEnabled(axis Axis, on bool) error {
	if !axis.Valid() {
		return fmt.Errorf("axis %d: %w", int(axis), control.ErrInvalidAxis)
	}
	if ap.axes[axis].Enabled == on {
		return nil
	}
	ap.axes[axis].Enabled = on
	if !on {
		ap.controllers[axis].Reset()
		if axis == Altitude {
			ap.derivedVerticalSpeed = 0
		}
	}
	ap.log.Debug("Axis %s enabled=%v", axis, on)
	return nil
}

// Observe records the telemetry sample that Current and Error read from.
func (ap *Autopilot) Observe(tel Telemetry) {
	ap.tel = tel
	ap.hasTel = true
}

// Current returns the last observed value of the axis.
func (ap *Autopilot) Current(axis Axis) (float64, error) {
	if !axis.Valid() {
		return 0, fmt.Errorf("axis %d: %w", int(axis), control.ErrInvalidAxis)
	}
	if !ap.hasTel {
		return 0, ErrNoTelemetry
	}
	return reading(ap.tel, axis)
}

// Error returns current minus target, wrapped for heading.
func (ap *Autopilot) Error(axis Axis) (float64, error) {
	cur, err := ap.Current(axis)
	if err != nil {
		return 0, err
	}
	target := ap.axes[axis].Target
	if axis == Heading {
		return HeadingError(cur, target), nil
	}
	return cur - target, nil
}

// DerivedVerticalSpeed is the vertical speed target produced by altitude
// hold on the last tick.
func (ap *Autopilot) DerivedVerticalSpeed() float64 { return ap.derivedVerticalSpeed }

// GyroOverrides resolves a command into per-gyro local rotations.
func (ap *Autopilot) GyroOverrides(cmd ActuatorCommand) []GyroOverride {
	return ap.act.gyroOverrides(cmd)
}

// ThrusterOverrides resolves a command into per-thruster ratios.
func (ap *Autopilot) ThrusterOverrides(cmd ActuatorCommand) []ThrustOverride {
	return ap.act.thrustOverrides(cmd)
}

// LiftThrusters returns the cached gravity-opposing thruster IDs, empty
// until vertical speed control first runs.
func (ap *Autopilot) LiftThrusters() []string {
	return ap.act.liftIDs()
}
