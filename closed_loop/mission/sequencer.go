package mission

import (
	"errors"
	"fmt"
	"math"

	control "streamline-autopilot/closed_loop/attitude_control"
	"streamline-autopilot/closed_loop/autopilot"
	"streamline-autopilot/utils"
)

// ErrInvalidTransition is returned for stage changes that would move
// backward or past Detonate.
var ErrInvalidTransition = errors.New("invalid stage transition")

// Payload is the effect the mission delivers.
type Payload interface {
	Arm() error
	Detonate() error
}

// Pilot is the part of the autopilot the sequencer drives.
type Pilot interface {
	Observe(tel autopilot.Telemetry)
	Current(axis autopilot.Axis) (float64, error)
	Error(axis autopilot.Axis) (float64, error)
	SetTarget(axis autopilot.Axis, value float64) error
	SetEnabled(axis autopilot.Axis, on bool) error
	SetAutopilot(on bool)
	ResetControllers()
	Tick(tel autopilot.Telemetry, dt float64) (autopilot.ActuatorCommand, error)
}

// Config tunes the sequencer.
type Config struct {
	Thresholds Thresholds `json:"thresholds"`

	ClimbPitch  float64 `json:"climb_pitch_deg"`
	CruisePitch float64 `json:"cruise_pitch_deg"`
	DivePitch   float64 `json:"dive_pitch_deg"`

	// IdleThrust holds thrusters lightly while parked; BoostThrust drives
	// them once launched.
	IdleThrust  float64 `json:"idle_thrust"`
	BoostThrust float64 `json:"boost_thrust"`

	// AlignTolerance is the heading and pitch error in degrees below which
	// the gyros stop rotating.
	AlignTolerance float64 `json:"align_tolerance_deg"`
	// Align tunes the vector controller that steers pitch and yaw in flight.
	Align control.VectorPIDConfig `json:"align"`
}

func DefaultConfig() Config {
	return Config{
		Thresholds:     DefaultThresholds(),
		ClimbPitch:     90,
		CruisePitch:    20,
		DivePitch:      -60,
		IdleThrust:     0.001,
		BoostThrust:    1,
		AlignTolerance: 0.5,
		Align:          control.VectorPIDConfig{Kp: 0.8, Kd: 0.2},
	}
}

// Sequencer advances a mission through its stages and steers the pilot.
type Sequencer struct {
	cfg     Config
	pilot   Pilot
	payload Payload
	aligner *control.VectorPIDController
	log     *utils.Logger

	stage   Stage
	airTime int
	// entered is the last stage whose entry actions completed. A stage
	// above it has just been switched to.
	entered   Stage
	armed     bool
	detonated bool
}

func NewSequencer(cfg Config, pilot Pilot, payload Payload, log *utils.Logger) (*Sequencer, error) {
	if pilot == nil {
		return nil, errors.New("mission: nil pilot")
	}
	if payload == nil {
		return nil, errors.New("mission: nil payload")
	}
	if log == nil {
		log = utils.NewNopLogger()
	}
	return &Sequencer{
		cfg:     cfg,
		pilot:   pilot,
		payload: payload,
		aligner: control.NewVectorPIDController(cfg.Align),
		log:     log,
	}, nil
}

func (s *Sequencer) Stage() Stage    { return s.stage }
func (s *Sequencer) AirTime() int    { return s.airTime }
func (s *Sequencer) Armed() bool     { return s.armed }
func (s *Sequencer) Detonated() bool { return s.detonated }

// Launch leaves Park. It fails in any other stage.
func (s *Sequencer) Launch() error {
	if s.stage != Park {
		return fmt.Errorf("launch from %s: %w", s.stage, ErrInvalidTransition)
	}
	s.log.Info("Launching")
	return s.Advance()
}

// Advance moves to the next stage. Detonate has no successor.
func (s *Sequencer) Advance() error {
	if s.stage.Terminal() {
		return fmt.Errorf("advance from %s: %w", s.stage, ErrInvalidTransition)
	}
	s.stage++
	s.log.Info("Stage: %s (air time %d)", s.stage, s.airTime)
	return nil
}

// Tick runs pending stage entry actions, then the autopilot, then the
// stage's steering and thrust overlay, and finally checks the air-time
// limit. Each stage's entry actions run once, on the first tick after it is
// reached, even when several stages were advanced between ticks. A failed
// entry is retried on the next tick.
func (s *Sequencer) Tick(tel autopilot.Telemetry, dt float64) (autopilot.ActuatorCommand, error) {
	s.pilot.Observe(tel)

	for s.entered < s.stage {
		next := s.entered + 1
		if err := s.enter(next); err != nil {
			return autopilot.Released(), fmt.Errorf("enter %s: %w", next, err)
		}
		s.entered = next
	}
	if s.stage != Park {
		s.airTime++
	}

	cmd, err := s.pilot.Tick(tel, dt)
	if err != nil {
		return autopilot.Released(), err
	}

	switch s.stage {
	case Park:
		cmd.SetThrust(autopilot.GroupAll, s.cfg.IdleThrust)
	default:
		cmd.SetThrust(autopilot.GroupAll, s.cfg.BoostThrust)
		if err := s.steer(&cmd, dt); err != nil {
			return autopilot.Released(), err
		}
	}

	if limit, ok := s.cfg.Thresholds.limit(s.stage); ok && s.airTime > limit {
		if err := s.Advance(); err != nil {
			return cmd, err
		}
	}
	return cmd, nil
}

func (s *Sequencer) enter(stage Stage) error {
	switch stage {
	case Climb:
		if h, err := s.pilot.Current(autopilot.Heading); err == nil {
			if err := s.pilot.SetTarget(autopilot.Heading, h); err != nil {
				return err
			}
		} else {
			s.log.Warn("Heading unavailable at launch (%v); keeping previous target", err)
		}
		for _, a := range []autopilot.Axis{autopilot.Heading, autopilot.Pitch} {
			if err := s.pilot.SetEnabled(a, true); err != nil {
				return err
			}
		}
		if err := s.pilot.SetTarget(autopilot.Pitch, s.cfg.ClimbPitch); err != nil {
			return err
		}
		s.pilot.SetAutopilot(true)
	case Cruise:
		if err := s.pilot.SetTarget(autopilot.Pitch, s.cfg.CruisePitch); err != nil {
			return err
		}
	case Dive:
		if err := s.pilot.SetTarget(autopilot.Pitch, s.cfg.DivePitch); err != nil {
			return err
		}
	case DiveArmed:
		if err := s.payload.Arm(); err != nil {
			return fmt.Errorf("arm payload: %w", err)
		}
		s.armed = true
		s.log.Info("Payload armed")
	case Detonate:
		if s.detonated {
			return nil
		}
		s.detonated = true
		s.log.Info("Detonation triggered")
		if err := s.payload.Detonate(); err != nil {
			return fmt.Errorf("detonate payload: %w", err)
		}
	}
	s.pilot.ResetControllers()
	s.aligner.Reset()
	return nil
}

// steer replaces the pitch and yaw of an engaged command with the output of
// the alignment controller, leaving roll to the autopilot's leveling. Once
// heading and pitch are within tolerance the gyros stop rotating.
func (s *Sequencer) steer(cmd *autopilot.ActuatorCommand, dt float64) error {
	if !cmd.Engaged || cmd.Suppressed {
		return nil
	}
	pitchErr, err := s.pilot.Error(autopilot.Pitch)
	if err != nil {
		return fmt.Errorf("pitch error: %w", err)
	}
	// Heading is undefined with the nose vertical; pitch alone steers then.
	var hdgErr float64
	if e, err := s.pilot.Error(autopilot.Heading); err == nil {
		hdgErr = e
	}

	if math.Abs(pitchErr) < s.cfg.AlignTolerance && math.Abs(hdgErr) < s.cfg.AlignTolerance {
		cmd.Rotation = control.Vector3{}
		s.log.Trace("Aligned")
		return nil
	}

	// Errors are current minus target. Positive pitch is nose down and
	// positive yaw is nose right.
	out, err := s.aligner.Compute(control.Vector3{pitchErr, -hdgErr, 0}, dt)
	if err != nil {
		return fmt.Errorf("align: %w", err)
	}
	cmd.Rotation[0], cmd.Rotation[1] = out.X(), out.Y()
	return nil
}
