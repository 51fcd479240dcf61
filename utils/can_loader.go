package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

var canMapColumns = []string{
	"direction", "frame_id", "frame_name", "cycle_ms", "dlc",
	"signal_name", "start_bit", "bit_length", "endianness",
	"signed", "factor", "offset", "min", "max", "default", "unit", "comment",
}

func LoadCANMap(csvPath string) (*CANMap, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCANMap(f)
}

// ParseCANMap reads a CAN map in CSV form, one row per signal.
func ParseCANMap(r io.Reader) (*CANMap, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, k := range canMapColumns {
		if _, ok := idx[k]; !ok {
			return nil, fmt.Errorf("can_map.csv missing required column: %q", k)
		}
	}

	m := &CANMap{
		ByID:   map[uint32]*FrameDef{},
		ByName: map[string]*FrameDef{},
	}

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := csvRow{rec: rec, idx: idx}

		frameID, err := parseHexOrDecUint32(row.get("frame_id"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid frame_id %q: %w", line, row.get("frame_id"), err)
		}
		frameName := row.get("frame_name")
		direction := strings.ToUpper(row.get("direction"))

		cycleMS := row.getInt("cycle_ms")
		dlc := row.getInt("dlc")

		sig := SignalDef{
			Name:       row.get("signal_name"),
			StartBit:   row.getInt("start_bit"),
			BitLength:  row.getInt("bit_length"),
			Endianness: row.get("endianness"),
			Signed:     row.getBool("signed"),
			Factor:     row.getFloat("factor"),
			Offset:     row.getFloat("offset"),
			Min:        row.getFloat("min"),
			Max:        row.getFloat("max"),
			Default:    row.getFloat("default"),
			Unit:       row.get("unit"),
			Comment:    row.get("comment"),
		}
		if row.err != nil {
			return nil, fmt.Errorf("line %d: %w", line, row.err)
		}

		if sig.Endianness != "" && sig.Endianness != "little" {
			return nil, fmt.Errorf("frame %s signal %s: unsupported endianness %q (only little supported)",
				frameName, sig.Name, sig.Endianness)
		}
		if sig.BitLength <= 0 || sig.BitLength > 64 {
			return nil, fmt.Errorf("frame %s signal %s: invalid bit_length %d", frameName, sig.Name, sig.BitLength)
		}
		if dlc <= 0 || dlc > 8 {
			return nil, fmt.Errorf("frame %s (0x%X): invalid dlc %d", frameName, frameID, dlc)
		}
		if sig.StartBit < 0 || sig.StartBit+sig.BitLength > dlc*8 {
			return nil, fmt.Errorf("frame %s signal %s: bits %d..%d exceed dlc %d",
				frameName, sig.Name, sig.StartBit, sig.StartBit+sig.BitLength-1, dlc)
		}
		if sig.Factor == 0 {
			return nil, fmt.Errorf("frame %s signal %s: factor must be non-zero", frameName, sig.Name)
		}
		if direction != DirectionTX && direction != DirectionRX {
			return nil, fmt.Errorf("frame %s: direction %q must be TX or RX", frameName, direction)
		}

		fd, ok := m.ByID[frameID]
		if !ok {
			if _, dup := m.ByName[frameName]; dup {
				return nil, fmt.Errorf("frame name %s used by two ids", frameName)
			}
			fd = &FrameDef{
				ID:        frameID,
				Name:      frameName,
				DLC:       dlc,
				Direction: direction,
				CycleMS:   cycleMS,
				Signals:   []SignalDef{},
			}
			m.ByID[frameID] = fd
			m.ByName[frameName] = fd
		}

		if fd.DLC != dlc {
			return nil, fmt.Errorf("frame %s (0x%X) has inconsistent DLC (%d vs %d)", frameName, frameID, fd.DLC, dlc)
		}
		if _, dup := fd.Signal(sig.Name); dup {
			return nil, fmt.Errorf("frame %s: duplicate signal %s", frameName, sig.Name)
		}

		fd.Signals = append(fd.Signals, sig)
	}

	for _, fd := range m.ByID {
		sort.Slice(fd.Signals, func(i, j int) bool { return fd.Signals[i].StartBit < fd.Signals[j].StartBit })
	}

	return m, nil
}

func (m *CANMap) FrameByName(name string) (*FrameDef, error) {
	fd, ok := m.ByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown frame %q (available: %v)", name, m.FrameNames())
	}
	return fd, nil
}

func (m *CANMap) FrameByID(id uint32) (*FrameDef, error) {
	fd, ok := m.ByID[id]
	if !ok {
		return nil, fmt.Errorf("unknown frame id 0x%X", id)
	}
	return fd, nil
}

func parseHexOrDecUint32(s string) (uint32, error) {
	ss := strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(ss, "0x") || strings.HasPrefix(ss, "0X") {
		base = 16
		ss = ss[2:]
	}
	u, err := strconv.ParseUint(ss, base, 32)
	if err != nil {
		return 0, err
	}
	return uint32(u), nil
}

// csvRow reads typed cells and keeps the first conversion error.
type csvRow struct {
	rec []string
	idx map[string]int
	err error
}

func (r *csvRow) get(col string) string {
	i := r.idx[col]
	if i >= len(r.rec) {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r *csvRow) getInt(col string) int {
	s := r.get(col)
	if s == "" {
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
	return v
}

func (r *csvRow) getFloat(col string) float64 {
	s := r.get(col)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
	return v
}

func (r *csvRow) getBool(col string) bool {
	ss := strings.ToLower(r.get(col))
	return ss == "true" || ss == "1" || ss == "yes"
}
