package autopilot

import (
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	control "streamline-autopilot/closed_loop/attitude_control"
)

func TestSnapshot_SaveAndRestore(t *testing.T) {
	ap := newTestAutopilot(t)
	assert.NilError(t, ap.SetTarget(Altitude, 1200))
	assert.NilError(t, ap.SetEnabled(Altitude, true))
	assert.NilError(t, ap.SetTarget(Heading, 270))
	ap.SetAutopilot(true)
	ap.Observe(levelTelemetry())

	snap := ap.Snapshot()
	assert.Assert(t, snap.Autopilot.Enabled)
	alt := snap.Axes["Altitude"]
	assert.Assert(t, alt.Current != nil)
	assert.Equal(t, *alt.Error, 40.0-1200)

	path := filepath.Join(t.TempDir(), "state.yaml")
	assert.NilError(t, SaveSnapshotFile(path, snap))

	loaded, err := LoadSnapshotFile(path)
	assert.NilError(t, err)

	restored := newTestAutopilot(t)
	assert.NilError(t, restored.Restore(loaded))
	assert.Assert(t, restored.Engaged())
	target, _ := restored.Target(Altitude)
	assert.Equal(t, target, 1200.0)
	on, _ := restored.Enabled(Altitude)
	assert.Assert(t, on)
	hdg, _ := restored.Target(Heading)
	assert.Equal(t, hdg, 270.0)
}

func TestSnapshot_OmitsUnavailableReadings(t *testing.T) {
	ap := newTestAutopilot(t)
	data, err := ap.Snapshot().Marshal()
	assert.NilError(t, err)
	assert.Check(t, is.Contains(string(data), "VerticalSpeed:"))
	assert.Check(t, !strings.Contains(string(data), "current:"))
}

func TestSnapshot_RejectsUnknownAxis(t *testing.T) {
	snap, err := ParseSnapshot([]byte("autopilot:\n  enabled: false\naxes:\n  Warp:\n    enabled: true\n"))
	assert.NilError(t, err)
	ap := newTestAutopilot(t)
	assert.ErrorIs(t, ap.Restore(snap), control.ErrInvalidAxis)
}
