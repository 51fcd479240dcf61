package mission

import "fmt"

// Stage is a mission phase. Stages only ever move forward.
type Stage int

const (
	Park Stage = iota
	Climb
	Cruise
	Dive
	DiveArmed
	Detonate
)

func (s Stage) String() string {
	switch s {
	case Park:
		return "Park"
	case Climb:
		return "Climb"
	case Cruise:
		return "Cruise"
	case Dive:
		return "Dive"
	case DiveArmed:
		return "DiveArmed"
	case Detonate:
		return "Detonate"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Terminal reports whether the stage has no successor.
func (s Stage) Terminal() bool { return s >= Detonate }

// Thresholds are cumulative air-time ticks; the stage advances on the first
// tick where air time strictly exceeds the stage's limit.
type Thresholds struct {
	Climb     int `json:"climb"`
	Cruise    int `json:"cruise"`
	Dive      int `json:"dive"`
	DiveArmed int `json:"dive_armed"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Climb: 240, Cruise: 480, Dive: 550, DiveArmed: 700}
}

// limit returns the air-time limit of stage s, or false when s does not
// advance on air time.
func (t Thresholds) limit(s Stage) (int, bool) {
	switch s {
	case Climb:
		return t.Climb, true
	case Cruise:
		return t.Cruise, true
	case Dive:
		return t.Dive, true
	case DiveArmed:
		return t.DiveArmed, true
	}
	return 0, false
}
