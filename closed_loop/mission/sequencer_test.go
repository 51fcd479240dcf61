package mission

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"gotest.tools/v3/assert"

	control "streamline-autopilot/closed_loop/attitude_control"
	"streamline-autopilot/closed_loop/autopilot"
)

type fakePayload struct {
	arms      int
	detonates int
	armErr    error
}

func (p *fakePayload) Arm() error      { p.arms++; return p.armErr }
func (p *fakePayload) Detonate() error { p.detonates++; return nil }

type countingPilot struct {
	*autopilot.Autopilot
	resets int
}

func (p *countingPilot) ResetControllers() {
	p.resets++
	p.Autopilot.ResetControllers()
}

func newPilot(t *testing.T) *countingPilot {
	t.Helper()
	ap, err := autopilot.NewAutopilot(autopilot.DefaultConfig(),
		[]autopilot.Gyro{{ID: "g", Orientation: mgl64.Ident3()}},
		[]autopilot.Thruster{{ID: "main", Direction: control.Vector3{0, 0, 1}}},
		nil)
	assert.NilError(t, err)
	return &countingPilot{Autopilot: ap}
}

// eastbound is level flight with the nose pointing east.
func eastbound() autopilot.Telemetry {
	return autopilot.Telemetry{
		Gravity: control.Vector3{0, -9.81, 0},
		Forward: control.Vector3{-1, 0, 0},
		Right:   control.Vector3{0, 0, -1},
		Up:      control.Vector3{0, 1, 0},
	}
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Thresholds = Thresholds{Climb: 2, Cruise: 4, Dive: 5, DiveArmed: 7}
	return cfg
}

func TestSequencer_ParkIdles(t *testing.T) {
	seq, err := NewSequencer(DefaultConfig(), newPilot(t), &fakePayload{}, nil)
	assert.NilError(t, err)

	for i := 0; i < 5; i++ {
		cmd, err := seq.Tick(eastbound(), 1.0/60)
		assert.NilError(t, err)
		assert.Assert(t, !cmd.Engaged)
		assert.Equal(t, cmd.Thrust[autopilot.GroupAll], 0.001)
	}
	assert.Equal(t, seq.Stage(), Park)
	assert.Equal(t, seq.AirTime(), 0)
}

func TestSequencer_LaunchOnlyFromPark(t *testing.T) {
	seq, err := NewSequencer(DefaultConfig(), newPilot(t), &fakePayload{}, nil)
	assert.NilError(t, err)
	assert.NilError(t, seq.Launch())
	assert.Equal(t, seq.Stage(), Climb)
	assert.ErrorIs(t, seq.Launch(), ErrInvalidTransition)
}

func TestSequencer_ClimbEntryCapturesHeading(t *testing.T) {
	pilot := newPilot(t)
	seq, err := NewSequencer(DefaultConfig(), pilot, &fakePayload{}, nil)
	assert.NilError(t, err)
	assert.NilError(t, seq.Launch())

	cmd, err := seq.Tick(eastbound(), 1.0/60)
	assert.NilError(t, err)
	assert.Assert(t, cmd.Engaged)
	assert.Equal(t, cmd.Thrust[autopilot.GroupAll], 1.0)
	assert.Assert(t, pilot.Engaged())

	hdg, err := pilot.Target(autopilot.Heading)
	assert.NilError(t, err)
	assert.Assert(t, hdg > 89.999 && hdg < 90.001, "heading target %v", hdg)
	pitch, err := pilot.Target(autopilot.Pitch)
	assert.NilError(t, err)
	assert.Equal(t, pitch, 90.0)
	assert.Equal(t, seq.AirTime(), 1)
}

func TestSequencer_EntryRunsExactlyOnce(t *testing.T) {
	pilot := newPilot(t)
	seq, err := NewSequencer(DefaultConfig(), pilot, &fakePayload{}, nil)
	assert.NilError(t, err)
	assert.NilError(t, seq.Launch())

	for i := 0; i < 10; i++ {
		_, err := seq.Tick(eastbound(), 1.0/60)
		assert.NilError(t, err)
	}
	assert.Equal(t, pilot.resets, 1)
}

func TestSequencer_StagesAreMonotonic(t *testing.T) {
	payload := &fakePayload{}
	seq, err := NewSequencer(fastConfig(), newPilot(t), payload, nil)
	assert.NilError(t, err)
	assert.NilError(t, seq.Launch())

	prev := seq.Stage()
	for i := 0; i < 50; i++ {
		_, err := seq.Tick(eastbound(), 1.0/60)
		assert.NilError(t, err)
		cur := seq.Stage()
		assert.Assert(t, cur == prev || cur == prev+1, "stage %s after %s", cur, prev)
		prev = cur
	}
	assert.Equal(t, seq.Stage(), Detonate)
	assert.Assert(t, seq.Armed())
	assert.Assert(t, seq.Detonated())
	assert.Equal(t, payload.arms, 1)
	assert.Equal(t, payload.detonates, 1)
	assert.ErrorIs(t, seq.Advance(), ErrInvalidTransition)
}

func TestSequencer_ThresholdsAreStrict(t *testing.T) {
	seq, err := NewSequencer(fastConfig(), newPilot(t), &fakePayload{}, nil)
	assert.NilError(t, err)
	assert.NilError(t, seq.Launch())

	// Air time 1 and 2 stay in Climb; the third tick exceeds 2.
	for i := 0; i < 2; i++ {
		_, err := seq.Tick(eastbound(), 1.0/60)
		assert.NilError(t, err)
		assert.Equal(t, seq.Stage(), Climb)
	}
	_, err = seq.Tick(eastbound(), 1.0/60)
	assert.NilError(t, err)
	assert.Equal(t, seq.Stage(), Cruise)
}

func TestSequencer_ExternalAdvance(t *testing.T) {
	pilot := newPilot(t)
	seq, err := NewSequencer(DefaultConfig(), pilot, &fakePayload{}, nil)
	assert.NilError(t, err)
	assert.NilError(t, seq.Launch())
	assert.NilError(t, seq.Advance())
	assert.Equal(t, seq.Stage(), Cruise)

	_, err = seq.Tick(eastbound(), 1.0/60)
	assert.NilError(t, err)
	pitch, err := pilot.Target(autopilot.Pitch)
	assert.NilError(t, err)
	assert.Equal(t, pitch, 20.0)
	// Climb entry still ran before Cruise entry.
	hdg, err := pilot.Target(autopilot.Heading)
	assert.NilError(t, err)
	assert.Assert(t, hdg > 89.999 && hdg < 90.001, "heading target %v", hdg)
	assert.Equal(t, pilot.resets, 2)
}

func TestSequencer_ArmFailureSurfaces(t *testing.T) {
	boom := errors.New("no warheads")
	seq, err := NewSequencer(fastConfig(), newPilot(t), &fakePayload{armErr: boom}, nil)
	assert.NilError(t, err)
	assert.NilError(t, seq.Launch())

	var tickErr error
	for i := 0; i < 20 && tickErr == nil; i++ {
		_, tickErr = seq.Tick(eastbound(), 1.0/60)
	}
	assert.ErrorIs(t, tickErr, boom)
	assert.Equal(t, seq.Stage(), DiveArmed)
	assert.Assert(t, !seq.Armed())
}

func TestSequencer_ArmRetriedAfterFailure(t *testing.T) {
	payload := &fakePayload{armErr: errors.New("interlock")}
	seq, err := NewSequencer(fastConfig(), newPilot(t), payload, nil)
	assert.NilError(t, err)
	assert.NilError(t, seq.Launch())

	var tickErr error
	for i := 0; i < 20 && tickErr == nil; i++ {
		_, tickErr = seq.Tick(eastbound(), 1.0/60)
	}
	assert.Assert(t, tickErr != nil)
	assert.Equal(t, payload.arms, 1)

	payload.armErr = nil
	_, err = seq.Tick(eastbound(), 1.0/60)
	assert.NilError(t, err)
	assert.Assert(t, seq.Armed())
	assert.Equal(t, payload.arms, 2)
}

func TestSequencer_SteersThroughAlignmentController(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Align = control.VectorPIDConfig{Kp: 1}
	pilot := newPilot(t)
	seq, err := NewSequencer(cfg, pilot, &fakePayload{}, nil)
	assert.NilError(t, err)
	assert.NilError(t, seq.Launch())

	// Level and on the captured heading: only the climb pitch is off.
	cmd, err := seq.Tick(eastbound(), 1.0/60)
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(cmd.Rotation.X()+90) < 1e-6, "rotation %v", cmd.Rotation)
	assert.Assert(t, math.Abs(cmd.Rotation.Y()) < 1e-6, "rotation %v", cmd.Rotation)
	assert.Assert(t, math.Abs(cmd.Rotation.Z()) < 1e-6, "rotation %v", cmd.Rotation)

	// A target 30 degrees to the right yaws the nose right.
	assert.NilError(t, pilot.SetTarget(autopilot.Heading, 120))
	cmd, err = seq.Tick(eastbound(), 1.0/60)
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(cmd.Rotation.Y()-30) < 1e-6, "rotation %v", cmd.Rotation)
	assert.Assert(t, math.Abs(cmd.Rotation.X()+90) < 1e-6, "rotation %v", cmd.Rotation)
}

func TestSequencer_HoldsRotationWhenAligned(t *testing.T) {
	pilot := newPilot(t)
	seq, err := NewSequencer(DefaultConfig(), pilot, &fakePayload{}, nil)
	assert.NilError(t, err)
	assert.NilError(t, seq.Launch())
	assert.NilError(t, seq.Advance())
	assert.NilError(t, seq.Advance())

	// Diving at -60.3 degrees against a -60 target.
	tel := eastbound()
	r := mgl64.DegToRad(-60.3)
	tel.Forward = control.Vector3{-math.Cos(r), math.Sin(r), 0}
	cmd, err := seq.Tick(tel, 1.0/60)
	assert.NilError(t, err)
	assert.Equal(t, cmd.Rotation, control.Vector3{})
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, DiveArmed.String(), "DiveArmed")
	assert.Assert(t, Detonate.Terminal())
	assert.Assert(t, !Dive.Terminal())
}
