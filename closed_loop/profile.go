package main

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"streamline-autopilot/closed_loop/autopilot"
	"streamline-autopilot/closed_loop/mission"
)

//go:embed profile.schema.json
var profileSchemaJSON string

var profileSchema = jsonschema.MustCompileString("profile.schema.json", profileSchemaJSON)

// Control modes.
const (
	ModeAutopilot = "autopilot"
	ModeMission   = "mission"
)

// Profile defines a complete flight: vessel inventory, tuning, initial
// setpoints and run timing.
type Profile struct {
	Meta      ProfileMeta      `json:"meta"`
	Timing    ProfileTiming    `json:"timing"`
	Engage    bool             `json:"engage"`
	Autopilot autopilot.Config `json:"autopilot"`
	Mission   mission.Config   `json:"mission"`
	Setpoints []Setpoint       `json:"setpoints"`
	Gyros     []GyroMount      `json:"gyros"`
	Thrusters []ThrusterMount  `json:"thrusters"`
}

type ProfileMeta struct {
	Name        string `json:"name"`
	Version     int    `json:"version"`
	Description string `json:"description"`
	Mode        string `json:"mode"` // "autopilot" or "mission"
}

type ProfileTiming struct {
	DtS       float64 `json:"dt_s"`
	DurationS float64 `json:"duration_s"`

	// StaleAfterS is the telemetry age that triggers a warning.
	StaleAfterS float64 `json:"stale_after_s"`
}

func (t ProfileTiming) Interval() time.Duration {
	return time.Duration(t.DtS * float64(time.Second))
}

func (t ProfileTiming) Duration() time.Duration {
	return time.Duration(t.DurationS * float64(time.Second))
}

func (t ProfileTiming) StaleAfter() time.Duration {
	return time.Duration(t.StaleAfterS * float64(time.Second))
}

// Setpoint is an initial axis state applied before the first tick.
type Setpoint struct {
	Axis    string  `json:"axis"`
	Target  float64 `json:"target"`
	Enabled bool    `json:"enabled"`
}

// GyroMount lists the gyro's pitch, yaw and roll axes as body-frame columns.
// A missing orientation means the gyro is mounted aligned with the body.
type GyroMount struct {
	ID          string         `json:"id"`
	Orientation *[3][3]float64 `json:"orientation,omitempty"`
}

type ThrusterMount struct {
	ID        string     `json:"id"`
	Direction [3]float64 `json:"direction"`
}

// LoadProfile reads, validates and decodes a profile. Tuning fields the file
// leaves out keep their stock values.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read file: %w", err)
	}
	return ParseProfile(data)
}

func ParseProfile(data []byte) (Profile, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Profile{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := profileSchema.Validate(doc); err != nil {
		return Profile{}, fmt.Errorf("schema: %w", err)
	}

	prof := Profile{
		Autopilot: autopilot.DefaultConfig(),
		Mission:   mission.DefaultConfig(),
		Timing:    ProfileTiming{StaleAfterS: 0.5},
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&prof); err != nil {
		return Profile{}, fmt.Errorf("decode: %w", err)
	}

	for _, sp := range prof.Setpoints {
		if _, err := autopilot.ParseAxis(sp.Axis); err != nil {
			return Profile{}, fmt.Errorf("setpoint: %w", err)
		}
	}
	return prof, nil
}

func (p Profile) gyros() []autopilot.Gyro {
	out := make([]autopilot.Gyro, 0, len(p.Gyros))
	for _, g := range p.Gyros {
		m := mgl64.Ident3()
		if o := g.Orientation; o != nil {
			m = mgl64.Mat3FromCols(mgl64.Vec3(o[0]), mgl64.Vec3(o[1]), mgl64.Vec3(o[2]))
		}
		out = append(out, autopilot.Gyro{ID: g.ID, Orientation: m})
	}
	return out
}

func (p Profile) thrusters() []autopilot.Thruster {
	out := make([]autopilot.Thruster, 0, len(p.Thrusters))
	for _, t := range p.Thrusters {
		out = append(out, autopilot.Thruster{ID: t.ID, Direction: mgl64.Vec3(t.Direction)})
	}
	return out
}

// applySetpoints loads the initial setpoint table into ap.
func (p Profile) applySetpoints(ap *autopilot.Autopilot) error {
	for _, sp := range p.Setpoints {
		axis, err := autopilot.ParseAxis(sp.Axis)
		if err != nil {
			return err
		}
		if err := ap.SetTarget(axis, sp.Target); err != nil {
			return fmt.Errorf("%s target: %w", axis, err)
		}
		if err := ap.SetEnabled(axis, sp.Enabled); err != nil {
			return fmt.Errorf("%s enable: %w", axis, err)
		}
	}
	return nil
}
