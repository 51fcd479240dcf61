package autopilot

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Snapshot is the persisted and displayed state of the autopilot. Current
// and Error are omitted when they cannot be evaluated.
type Snapshot struct {
	Autopilot struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"autopilot"`
	Axes map[string]AxisSnapshot `yaml:"axes"`
}

type AxisSnapshot struct {
	Enabled bool     `yaml:"enabled"`
	Target  float64  `yaml:"target"`
	Current *float64 `yaml:"current,omitempty"`
	Error   *float64 `yaml:"error,omitempty"`
}

// Snapshot captures setpoints plus the readings of the last observed telemetry.
func (ap *Autopilot) Snapshot() Snapshot {
	var s Snapshot
	s.Autopilot.Enabled = ap.engaged
	s.Axes = make(map[string]AxisSnapshot, numAxes)
	for _, a := range Axes() {
		as := AxisSnapshot{Enabled: ap.axes[a].Enabled, Target: ap.axes[a].Target}
		if cur, err := ap.Current(a); err == nil {
			as.Current = &cur
		}
		if e, err := ap.Error(a); err == nil {
			as.Error = &e
		}
		s.Axes[a.Name()] = as
	}
	return s
}

// Restore applies the enable flags, targets and engagement of a snapshot.
// Readings in the snapshot are ignored.
func (ap *Autopilot) Restore(s Snapshot) error {
	names := make([]string, 0, len(s.Axes))
	for name := range s.Axes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		axis, err := ParseAxis(name)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		as := s.Axes[name]
		if err := ap.SetTarget(axis, as.Target); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		if err := ap.SetEnabled(axis, as.Enabled); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}
	ap.SetAutopilot(s.Autopilot.Enabled)
	return nil
}

func (s Snapshot) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

func ParseSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return s, nil
}

// SaveSnapshotFile writes the snapshot as YAML.
func SaveSnapshotFile(path string, s Snapshot) error {
	data, err := s.Marshal()
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadSnapshotFile reads a snapshot written by SaveSnapshotFile.
func LoadSnapshotFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read file: %w", err)
	}
	return ParseSnapshot(data)
}
