package autopilot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCommand is returned for text commands that cannot be parsed.
var ErrInvalidCommand = errors.New("invalid command")

// CommandKind enumerates the operator commands.
type CommandKind int

const (
	CmdSetTarget CommandKind = iota + 1
	CmdAdjustTarget
	CmdSetEnabled
	CmdToggle
	CmdSetAutopilot
	CmdAbort
	CmdLaunch
	CmdStage
)

func (k CommandKind) String() string {
	switch k {
	case CmdSetTarget:
		return "SetTarget"
	case CmdAdjustTarget:
		return "AdjustTarget"
	case CmdSetEnabled:
		return "SetEnabled"
	case CmdToggle:
		return "Toggle"
	case CmdSetAutopilot:
		return "SetAutopilot"
	case CmdAbort:
		return "Abort"
	case CmdLaunch:
		return "Launch"
	case CmdStage:
		return "Stage"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// Command is one parsed operator instruction.
type Command struct {
	Kind  CommandKind
	Axis  Axis
	Value float64
	On    bool
}

// ParseCommand parses lines such as "SetTarget ALT 100", "SetEnabled HDG true",
// "Toggle VS", "SetAutopilot on", "Abort", "Launch" or "Stage".
func ParseCommand(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command: %w", ErrInvalidCommand)
	}
	verb := strings.ToLower(fields[0])
	args := fields[1:]

	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s expects %d argument(s), got %d: %w", fields[0], n, len(args), ErrInvalidCommand)
		}
		return nil
	}

	switch verb {
	case "settarget", "adjusttarget":
		if err := want(2); err != nil {
			return Command{}, err
		}
		axis, err := ParseAxis(args[0])
		if err != nil {
			return Command{}, err
		}
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return Command{}, fmt.Errorf("value %q: %w", args[1], ErrInvalidCommand)
		}
		kind := CmdSetTarget
		if verb == "adjusttarget" {
			kind = CmdAdjustTarget
		}
		return Command{Kind: kind, Axis: axis, Value: v}, nil

	case "setenabled":
		if err := want(2); err != nil {
			return Command{}, err
		}
		axis, err := ParseAxis(args[0])
		if err != nil {
			return Command{}, err
		}
		on, err := parseSwitch(args[1])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CmdSetEnabled, Axis: axis, On: on}, nil

	case "toggle":
		if err := want(1); err != nil {
			return Command{}, err
		}
		axis, err := ParseAxis(args[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CmdToggle, Axis: axis}, nil

	case "setautopilot":
		if err := want(1); err != nil {
			return Command{}, err
		}
		on, err := parseSwitch(args[0])
		if err != nil {
			return Command{}, err
		}
		return Command{Kind: CmdSetAutopilot, On: on}, nil

	case "abort":
		return Command{Kind: CmdAbort}, want(0)
	case "launch":
		return Command{Kind: CmdLaunch}, want(0)
	case "stage":
		return Command{Kind: CmdStage}, want(0)
	}
	return Command{}, fmt.Errorf("unknown verb %q: %w", fields[0], ErrInvalidCommand)
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "on", "1", "yes":
		return true, nil
	case "false", "off", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("switch value %q: %w", s, ErrInvalidCommand)
}

// Apply executes the setpoint and engagement commands. Launch and Stage
// belong to the mission sequencer and are rejected here.
func (ap *Autopilot) Apply(c Command) error {
	switch c.Kind {
	case CmdSetTarget:
		return ap.SetTarget(c.Axis, c.Value)
	case CmdAdjustTarget:
		return ap.AdjustTarget(c.Axis, c.Value)
	case CmdSetEnabled:
		return ap.SetEnabled(c.Axis, c.On)
	case CmdToggle:
		return ap.ToggleEnabled(c.Axis)
	case CmdSetAutopilot:
		ap.SetAutopilot(c.On)
		return nil
	case CmdAbort:
		ap.SetAutopilot(false)
		return nil
	}
	return fmt.Errorf("%s is not an autopilot command: %w", c.Kind, ErrInvalidCommand)
}
