package utils

import "sort"

type SignalDef struct {
	Name       string
	StartBit   int
	BitLength  int
	Signed     bool
	Factor     float64
	Offset     float64
	Min        float64
	Max        float64
	Default    float64
	Unit       string
	Comment    string
	Endianness string // only "little" supported
}

// Frame directions as seen from the autopilot.
const (
	DirectionTX = "TX"
	DirectionRX = "RX"
)

type FrameDef struct {
	ID        uint32
	Name      string
	DLC       int
	Direction string
	CycleMS   int
	Signals   []SignalDef
}

// Signal looks up a signal by name.
func (fd *FrameDef) Signal(name string) (SignalDef, bool) {
	for _, s := range fd.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return SignalDef{}, false
}

type CANMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

func (m *CANMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FramesByDirection returns the frame names flowing in one direction, sorted.
func (m *CANMap) FramesByDirection(direction string) []string {
	var out []string
	for name, fd := range m.ByName {
		if fd.Direction == direction {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
