package autopilot

import (
	"errors"
	"fmt"
	"math"

	control "streamline-autopilot/closed_loop/attitude_control"
)

// Tick runs one guidance cycle and returns the actuator command.
//
// A disengaged autopilot returns Released and touches no controller. With
// no gravity the command is Suppressed and the controllers keep their state
// so the next tick in gravity resumes where this one left off.
func (ap *Autopilot) Tick(tel Telemetry, dt float64) (ActuatorCommand, error) {
	ap.Observe(tel)
	if !ap.engaged {
		return Released(), nil
	}
	if err := control.ValidateInterval(dt); err != nil {
		return Released(), err
	}

	frame, err := control.ResolveHorizon(tel.Gravity)
	if errors.Is(err, control.ErrNoGravity) {
		ap.log.Debug("No gravity; corrections suppressed")
		return ActuatorCommand{Engaged: true, Suppressed: true}, nil
	}
	if err != nil {
		return Released(), err
	}

	cmd := ActuatorCommand{Engaged: true}
	if err := ap.level(tel, frame, dt, &cmd); err != nil {
		if errors.Is(err, errUnstable) {
			return cmd, nil
		}
		return Released(), err
	}
	if err := ap.translate(tel, frame, dt, &cmd); err != nil {
		return Released(), err
	}
	ap.resetDisabled()
	return cmd, nil
}

var errUnstable = errors.New("attitude outside stability limit")

// level drives roll and pitch toward their targets (zero unless the axis is
// enabled for attitude hold) and yaw toward the heading target.
func (ap *Autopilot) level(tel Telemetry, frame control.HorizonFrame, dt float64, cmd *ActuatorCommand) error {
	heading, headingErr := frame.Heading(tel.Forward)
	headingDefined := headingErr == nil
	var hdgErr float64
	if headingDefined {
		hdgErr = HeadingError(heading, ap.axes[Heading].Target)
	}
	bias := ap.rollBias(headingDefined, hdgErr)

	currentRoll := frame.Roll(tel.Right)
	currentPitch := frame.Pitch(tel.Forward)

	roll, err := ap.controllers[Roll].Compute(currentRoll-ap.holdTarget(Roll)-bias, dt)
	if err != nil {
		return fmt.Errorf("roll: %w", err)
	}
	// Positive pitch commands the nose down, so a nose-up attitude (negative
	// error) yields a positive command.
	pitch, err := ap.controllers[Pitch].Compute(-(currentPitch - ap.holdTarget(Pitch)), dt)
	if err != nil {
		return fmt.Errorf("pitch: %w", err)
	}
	cmd.Rotation = control.Vector3{-pitch, 0, roll}

	if math.Abs(currentRoll)+math.Abs(currentPitch) > ap.cfg.StabilityLimit {
		ap.log.Trace("Unstable roll=%.2f pitch=%.2f; translation skipped", currentRoll, currentPitch)
		return errUnstable
	}

	if ap.axes[Heading].Enabled && headingDefined {
		yaw, err := ap.controllers[Heading].Compute(hdgErr, dt)
		if err != nil {
			return fmt.Errorf("heading: %w", err)
		}
		cmd.Rotation[1] = -yaw
	}
	return nil
}

// rollBias banks into large heading corrections.
func (ap *Autopilot) rollBias(headingDefined bool, hdgErr float64) float64 {
	if !ap.axes[Heading].Enabled || !headingDefined || math.Abs(hdgErr) <= ap.cfg.BankThreshold {
		return 0
	}
	return control.Sign(hdgErr) * ap.cfg.BankBias
}

func (ap *Autopilot) holdTarget(axis Axis) float64 {
	if !ap.axes[axis].Enabled {
		return 0
	}
	return ap.axes[axis].Target
}

// translate runs the altitude cascade, speed and vertical speed.
func (ap *Autopilot) translate(tel Telemetry, frame control.HorizonFrame, dt float64, cmd *ActuatorCommand) error {
	vs := tel.Velocity.Dot(frame.Up)

	altitudeActive := ap.axes[Altitude].Enabled && ap.axes[VerticalSpeed].Enabled && tel.AltitudeValid
	if altitudeActive {
		derived, err := ap.altitudeHold(tel.Altitude, vs, dt)
		if err != nil {
			return fmt.Errorf("altitude: %w", err)
		}
		ap.derivedVerticalSpeed = derived
	}

	if ap.axes[HorizontalSpeed].Enabled {
		speedErr := tel.Velocity.Len() - ap.axes[HorizontalSpeed].Target
		corr, err := ap.controllers[HorizontalSpeed].Compute(speedErr, dt)
		if err != nil {
			return fmt.Errorf("speed: %w", err)
		}
		cmd.SetThrust(GroupCruise, control.ClampFloat(-corr, -1, 1))
	}

	if ap.axes[VerticalSpeed].Enabled {
		target := ap.axes[VerticalSpeed].Target
		if altitudeActive {
			target = ap.derivedVerticalSpeed
		}
		desired := vs - target
		lift := 0.0
		if math.Abs(desired) >= ap.cfg.VerticalSpeedDeadband {
			corr, err := ap.controllers[VerticalSpeed].Compute(-desired, dt)
			if err != nil {
				return fmt.Errorf("vertical speed: %w", err)
			}
			lift = control.ClampFloat(corr, 0, 1)
		}
		if set := ap.act.resolveLift(tel, frame); len(set) == 0 {
			ap.log.Warn("No thruster opposes gravity; vertical speed control has no effect")
		}
		cmd.SetThrust(GroupLift, lift)
	}
	return nil
}

// altitudeHold turns the altitude error into a vertical speed target capped
// by the vertical speed setpoint, and by ApproachSpeed once within braking
// distance of the target.
func (ap *Autopilot) altitudeHold(altitude, vs, dt float64) (float64, error) {
	altErr := altitude - ap.axes[Altitude].Target
	if math.Round(altErr) == 0 {
		return 0, nil
	}
	corr, err := ap.controllers[Altitude].Compute(-altErr, dt)
	if err != nil {
		return 0, err
	}
	braking := math.Abs(vs) / ap.cfg.BrakingRate * 100
	limit := math.Abs(ap.axes[VerticalSpeed].Target)
	if math.Abs(altErr) <= braking {
		limit = math.Min(limit, ap.cfg.ApproachSpeed)
	}
	return limit * control.ClampFloat(corr, -1, 1), nil
}

func (ap *Autopilot) resetDisabled() {
	for _, a := range []Axis{Altitude, Heading, HorizontalSpeed, VerticalSpeed} {
		if !ap.axes[a].Enabled {
			ap.controllers[a].Reset()
		}
	}
	if !ap.axes[Altitude].Enabled || !ap.axes[VerticalSpeed].Enabled {
		ap.derivedVerticalSpeed = 0
	}
}
