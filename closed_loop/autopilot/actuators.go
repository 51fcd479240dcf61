package autopilot

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	control "streamline-autopilot/closed_loop/attitude_control"
)

// ThrustGroup names a subset of thrusters that receives one ratio.
type ThrustGroup string

const (
	// GroupLift holds thrusters opposing gravity, ratio in [0, 1].
	GroupLift ThrustGroup = "lift"
	// GroupCruise holds thrusters along the body forward axis, ratio in
	// [-1, 1]; negative ratios drive the reverse-facing thrusters.
	GroupCruise ThrustGroup = "cruise"
	// GroupAll overrides every thruster, ratio in [0, 1].
	GroupAll ThrustGroup = "all"
)

// Alignment above which a thruster counts as lift or cruise.
const alignmentThreshold = 0.9

// Gyro is an orientation actuator. Orientation columns are the gyro's own
// pitch, yaw and roll axes expressed in vessel body coordinates
// (right, up, forward).
type Gyro struct {
	ID          string     `json:"id"`
	Orientation mgl64.Mat3 `json:"-"`
}

// Thruster is a propulsion actuator. Direction is the body-frame direction
// in which it pushes the vessel.
type Thruster struct {
	ID        string          `json:"id"`
	Direction control.Vector3 `json:"direction"`
}

// ActuatorCommand is produced fresh every tick.
type ActuatorCommand struct {
	// Engaged is false when gyro overrides must be released.
	Engaged bool
	// Suppressed marks an engaged tick where no correction was possible.
	Suppressed bool
	// Rotation is the body rate command: X pitch (nose down positive),
	// Y yaw (nose right positive), Z roll (right wing down positive).
	Rotation control.Vector3
	// Thrust holds the ratio for each group commanded this tick. Thrusters
	// in no commanded group are released.
	Thrust map[ThrustGroup]float64
}

// Released returns the command that hands every actuator back to the pilot.
func Released() ActuatorCommand {
	return ActuatorCommand{}
}

// SetThrust commands a group ratio.
func (c *ActuatorCommand) SetThrust(g ThrustGroup, ratio float64) {
	if c.Thrust == nil {
		c.Thrust = make(map[ThrustGroup]float64, 3)
	}
	c.Thrust[g] = ratio
}

// GyroOverride is the rotation applied to a single gyro in its local frame.
type GyroOverride struct {
	ID       string
	Override bool
	Pitch    float64
	Yaw      float64
	Roll     float64
}

// ThrustOverride is the ratio applied to a single thruster.
type ThrustOverride struct {
	ID       string
	Override bool
	Ratio    float64
}

// actuators holds the inventory and the lazily discovered lift subset.
type actuators struct {
	gyros     []Gyro
	thrusters []Thruster

	lift         map[string]bool
	liftResolved bool
}

func newActuators(gyros []Gyro, thrusters []Thruster) (*actuators, error) {
	if len(gyros) == 0 {
		return nil, fmt.Errorf("no gyros: %w", control.ErrConfiguration)
	}
	if len(thrusters) == 0 {
		return nil, fmt.Errorf("no thrusters: %w", control.ErrConfiguration)
	}
	seen := map[string]bool{}
	for _, g := range gyros {
		if g.ID == "" || seen[g.ID] {
			return nil, fmt.Errorf("gyro id %q: %w", g.ID, control.ErrConfiguration)
		}
		seen[g.ID] = true
	}
	for _, t := range thrusters {
		if t.ID == "" || seen[t.ID] {
			return nil, fmt.Errorf("thruster id %q: %w", t.ID, control.ErrConfiguration)
		}
		if _, err := control.SafeNormalize(t.Direction); err != nil {
			return nil, fmt.Errorf("thruster %q direction: %w", t.ID, control.ErrConfiguration)
		}
		seen[t.ID] = true
	}
	return &actuators{
		gyros:     append([]Gyro(nil), gyros...),
		thrusters: append([]Thruster(nil), thrusters...),
	}, nil
}

// resolveLift picks the thrusters pushing against gravity. It runs once;
// later calls return the cached set.
func (a *actuators) resolveLift(tel Telemetry, frame control.HorizonFrame) map[string]bool {
	if a.liftResolved {
		return a.lift
	}
	body := mgl64.Mat3FromCols(tel.Right, tel.Up, tel.Forward)
	a.lift = map[string]bool{}
	for _, t := range a.thrusters {
		world := body.Mul3x1(t.Direction.Normalize())
		if world.Dot(frame.Up) > alignmentThreshold {
			a.lift[t.ID] = true
		}
	}
	a.liftResolved = true
	return a.lift
}

func (a *actuators) liftIDs() []string {
	out := make([]string, 0, len(a.lift))
	for id := range a.lift {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// gyroOverrides maps the body rotation into each gyro's local frame.
func (a *actuators) gyroOverrides(cmd ActuatorCommand) []GyroOverride {
	out := make([]GyroOverride, len(a.gyros))
	for i, g := range a.gyros {
		out[i].ID = g.ID
		if !cmd.Engaged {
			continue
		}
		local := g.Orientation.Transpose().Mul3x1(cmd.Rotation)
		out[i].Override = true
		out[i].Pitch, out[i].Yaw, out[i].Roll = local.X(), local.Y(), local.Z()
	}
	return out
}

// thrustOverrides maps group ratios onto thrusters. GroupAll wins over the
// other groups.
func (a *actuators) thrustOverrides(cmd ActuatorCommand) []ThrustOverride {
	out := make([]ThrustOverride, len(a.thrusters))
	forward := control.Vector3{0, 0, 1}
	for i, t := range a.thrusters {
		out[i].ID = t.ID
		if r, ok := cmd.Thrust[GroupAll]; ok {
			out[i] = ThrustOverride{ID: t.ID, Override: true, Ratio: r}
			continue
		}
		if r, ok := cmd.Thrust[GroupLift]; ok && a.lift[t.ID] {
			out[i] = ThrustOverride{ID: t.ID, Override: true, Ratio: r}
			continue
		}
		if r, ok := cmd.Thrust[GroupCruise]; ok {
			along := t.Direction.Normalize().Dot(forward)
			switch {
			case along > alignmentThreshold:
				out[i] = ThrustOverride{ID: t.ID, Override: true, Ratio: control.ClampFloat(r, 0, 1)}
			case along < -alignmentThreshold:
				out[i] = ThrustOverride{ID: t.ID, Override: true, Ratio: control.ClampFloat(-r, 0, 1)}
			}
		}
	}
	return out
}
