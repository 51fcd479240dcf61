package main

import (
	"errors"
	"sync"

	control "streamline-autopilot/closed_loop/attitude_control"
	"streamline-autopilot/closed_loop/autopilot"
	"streamline-autopilot/closed_loop/mission"
)

// CAN frame names exchanged with the vessel.
const (
	frameGyroCmd    = "AUTOPILOT_GYRO_CMD"
	frameThrustCmd  = "AUTOPILOT_THRUST_CMD"
	framePayloadCmd = "MISSION_PAYLOAD_CMD"

	frameGravity  = "TELEMETRY_GRAVITY"
	frameVelocity = "TELEMETRY_VELOCITY"
	frameForward  = "TELEMETRY_FORWARD"
	frameUp       = "TELEMETRY_UP"
	frameRight    = "TELEMETRY_RIGHT"
	frameAltitude = "TELEMETRY_ALTITUDE"
	framePosition = "TELEMETRY_POSITION"
)

// telemetryFrames must all have been received before the first tick.
var telemetryFrames = []string{
	frameGravity, frameVelocity, frameForward, frameUp, frameRight, frameAltitude,
}

func vec(values map[string]float64, prefix string) control.Vector3 {
	return control.Vector3{values[prefix+"_x"], values[prefix+"_y"], values[prefix+"_z"]}
}

// assembleTelemetry maps decoded RX frames onto a telemetry sample.
// Position is optional.
func assembleTelemetry(frames map[string]map[string]float64, position map[string]float64) autopilot.Telemetry {
	alt := frames[frameAltitude]
	tel := autopilot.Telemetry{
		Gravity:       vec(frames[frameGravity], "gravity"),
		Velocity:      vec(frames[frameVelocity], "velocity"),
		Forward:       vec(frames[frameForward], "forward"),
		Up:            vec(frames[frameUp], "up"),
		Right:         vec(frames[frameRight], "right"),
		Altitude:      alt["altitude"],
		AltitudeValid: alt["altitude_valid"] != 0,
	}
	if position != nil {
		tel.Position = vec(position, "position")
	}
	return tel
}

func gyroSignals(cmd autopilot.ActuatorCommand) map[string]float64 {
	return map[string]float64{
		"engaged":    control.BoolToFloat(cmd.Engaged),
		"suppressed": control.BoolToFloat(cmd.Suppressed),
		"pitch_cmd":  cmd.Rotation.X(),
		"yaw_cmd":    cmd.Rotation.Y(),
		"roll_cmd":   cmd.Rotation.Z(),
	}
}

func thrustSignals(cmd autopilot.ActuatorCommand) map[string]float64 {
	values := map[string]float64{}
	for group, prefix := range map[autopilot.ThrustGroup]string{
		autopilot.GroupLift:   "lift",
		autopilot.GroupCruise: "cruise",
		autopilot.GroupAll:    "all",
	} {
		ratio, ok := cmd.Thrust[group]
		values[prefix+"_valid"] = control.BoolToFloat(ok)
		values[prefix+"_ratio"] = ratio
	}
	return values
}

// payloadLatch is the CAN-side payload. Arm and Detonate latch flags that
// go out with every payload frame.
type payloadLatch struct {
	mu        sync.Mutex
	armed     bool
	detonated bool
}

var _ mission.Payload = (*payloadLatch)(nil)

func (p *payloadLatch) Arm() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.armed = true
	return nil
}

func (p *payloadLatch) Detonate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.armed {
		return errors.New("detonate: payload not armed")
	}
	p.detonated = true
	return nil
}

func (p *payloadLatch) signals(stage mission.Stage, airTime int) map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]float64{
		"arm":      control.BoolToFloat(p.armed),
		"detonate": control.BoolToFloat(p.detonated),
		"stage":    float64(stage),
		"air_time": float64(airTime),
	}
}
