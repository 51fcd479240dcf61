package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"go.einride.tech/can"

	"streamline-autopilot/closed_loop/autopilot"
	"streamline-autopilot/closed_loop/mission"
	"streamline-autopilot/utils"
)

const (
	// releaseTimeout bounds the final release transmission at shutdown.
	releaseTimeout = 200 * time.Millisecond

	// rxRetryDelay spaces out reads after an RX error; rxMaxErrors
	// consecutive errors end the run.
	rxRetryDelay = 10 * time.Millisecond
	rxMaxErrors  = 5
)

type RunnerConfig struct {
	Interface   string
	MapPath     string
	ProfilePath string
	StatePath   string
	RecordPath  string
}

type Runner struct {
	cfg    RunnerConfig
	log    *utils.Logger
	cmap   *utils.CANMap
	prof   Profile
	writer utils.CANWriter
	reader utils.CANReader
	cache  *utils.SignalCache
	rec    *utils.Recorder

	ap      *autopilot.Autopilot
	seq     *mission.Sequencer // nil in autopilot mode
	payload *payloadLatch

	ticks   uint64
	sent    uint64
	waiting bool
	stale   bool
}

func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	cmap, err := utils.LoadCANMap(cfg.MapPath)
	if err != nil {
		return nil, fmt.Errorf("load can map: %w", err)
	}

	prof, err := LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	writer, err := utils.NewSocketCANWriter(ctx, cfg.Interface)
	if err != nil {
		return nil, err
	}
	reader, err := utils.NewSocketCANReader(ctx, cfg.Interface)
	if err != nil {
		writer.Close()
		return nil, err
	}

	r, err := newRunner(cfg, prof, cmap, writer, reader, log)
	if err != nil {
		writer.Close()
		reader.Close()
		return nil, err
	}

	if cfg.RecordPath != "" {
		rec, err := utils.NewRecorder(cfg.RecordPath)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("recorder: %w", err)
		}
		r.rec = rec
		log.Info("Recording flight %s to %s", rec.FlightID(), cfg.RecordPath)
	}
	return r, nil
}

// newRunner wires the control stack onto an existing transport.
func newRunner(cfg RunnerConfig, prof Profile, cmap *utils.CANMap, writer utils.CANWriter, reader utils.CANReader, log *utils.Logger) (*Runner, error) {
	required := append([]string{frameGyroCmd, frameThrustCmd, framePayloadCmd}, telemetryFrames...)
	for _, name := range required {
		if _, err := cmap.FrameByName(name); err != nil {
			return nil, fmt.Errorf("can map: %w", err)
		}
	}

	ap, err := autopilot.NewAutopilot(prof.Autopilot, prof.gyros(), prof.thrusters(), log)
	if err != nil {
		return nil, fmt.Errorf("autopilot: %w", err)
	}
	if err := prof.applySetpoints(ap); err != nil {
		return nil, fmt.Errorf("setpoints: %w", err)
	}

	r := &Runner{
		cfg:    cfg,
		log:    log,
		cmap:   cmap,
		prof:   prof,
		writer: writer,
		reader: reader,
		cache:  utils.NewSignalCache(),
		ap:     ap,
	}

	switch prof.Meta.Mode {
	case ModeMission:
		r.payload = &payloadLatch{}
		r.seq, err = mission.NewSequencer(prof.Mission, ap, r.payload, log)
		if err != nil {
			return nil, err
		}
		log.Info("Mission loaded: thresholds=%+v", prof.Mission.Thresholds)
	default:
		ap.SetAutopilot(prof.Engage)
		if cfg.StatePath != "" {
			if err := r.restoreState(); err != nil {
				return nil, fmt.Errorf("restore state: %w", err)
			}
		}
	}
	return r, nil
}

func (r *Runner) restoreState() error {
	snap, err := autopilot.LoadSnapshotFile(r.cfg.StatePath)
	if errors.Is(err, fs.ErrNotExist) {
		r.log.Debug("No saved state at %s", r.cfg.StatePath)
		return nil
	}
	if err != nil {
		return err
	}
	if err := r.ap.Restore(snap); err != nil {
		return err
	}
	r.log.Info("Restored state from %s (autopilot %v)", r.cfg.StatePath, snap.Autopilot.Enabled)
	return nil
}

func (r *Runner) Close() {
	if r.reader != nil {
		_ = r.reader.Close()
	}
	if r.writer != nil {
		_ = r.writer.Close()
	}
	if r.rec != nil {
		if err := r.rec.Close(); err != nil {
			r.log.Error("Recorder close: %v", err)
		}
	}
}

// Run ticks until the profile duration elapses or ctx is canceled. Lines on
// commands are applied between ticks. Actuators are released on the way out.
func (r *Runner) Run(ctx context.Context, commands <-chan string) error {
	r.log.Info("Starting: profile=%s mode=%s iface=%s dt=%.3fs duration=%.2fs",
		r.prof.Meta.Name, r.prof.Meta.Mode, r.cfg.Interface, r.prof.Timing.DtS, r.prof.Timing.DurationS)

	ctx, cancel := context.WithCancel(ctx)
	rxDone := make(chan struct{})
	rxErr := make(chan error, 1)
	go func() {
		defer close(rxDone)
		if err := r.receiveLoop(ctx); err != nil {
			rxErr <- err
		}
	}()
	defer func() {
		cancel()
		<-rxDone
	}()

	start := time.Now()
	ticker := time.NewTicker(r.prof.Timing.Interval())
	defer ticker.Stop()
	endAfter := r.prof.Timing.Duration()

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; releasing actuators")
			r.shutdown()
			return ctx.Err()

		case err := <-rxErr:
			r.log.Error("Telemetry lost; releasing actuators")
			r.shutdown()
			return fmt.Errorf("can receive: %w", err)

		case line, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			_ = r.handleCommand(line)

		case now := <-ticker.C:
			if now.Sub(start) > endAfter {
				r.log.Info("Profile duration reached")
				r.shutdown()
				return nil
			}
			if err := r.step(ctx, now); err != nil {
				r.shutdown()
				return err
			}
		}
	}
}

// step runs one control tick against the cached telemetry.
func (r *Runner) step(ctx context.Context, now time.Time) error {
	frames, age, ok := r.cache.Snapshot(now, telemetryFrames...)
	if !ok {
		if !r.waiting {
			r.log.Warn("Waiting for telemetry frames %v", telemetryFrames)
			r.waiting = true
		}
		return nil
	}
	if r.waiting {
		r.log.Info("Telemetry complete")
		r.waiting = false
	}
	if limit := r.prof.Timing.StaleAfter(); limit > 0 {
		if age > limit && !r.stale {
			r.log.Warn("Telemetry stale: oldest frame %.0f ms", float64(age)/float64(time.Millisecond))
		}
		r.stale = age > limit
	}

	position, _ := r.cache.Lookup(framePosition)
	tel := assembleTelemetry(frames, position)

	var (
		cmd autopilot.ActuatorCommand
		err error
	)
	if r.seq != nil {
		cmd, err = r.seq.Tick(tel, r.prof.Timing.DtS)
	} else {
		cmd, err = r.ap.Tick(tel, r.prof.Timing.DtS)
	}
	if err != nil {
		r.log.Error("Tick %d failed: %v", r.ticks, err)
		cmd = autopilot.Released()
	}
	r.ticks++

	if err := r.transmit(ctx, cmd); err != nil {
		return err
	}
	for _, o := range r.ap.GyroOverrides(cmd) {
		r.log.Trace("Gyro %s override=%v pitch=%.3f yaw=%.3f roll=%.3f", o.ID, o.Override, o.Pitch, o.Yaw, o.Roll)
	}
	for _, o := range r.ap.ThrusterOverrides(cmd) {
		if o.Override {
			r.log.Trace("Thruster %s ratio=%.3f", o.ID, o.Ratio)
		}
	}
	r.record(tel, cmd)
	return nil
}

type outgoing struct {
	name   string
	values map[string]float64
}

func (r *Runner) transmit(ctx context.Context, cmd autopilot.ActuatorCommand) error {
	out := []outgoing{
		{frameGyroCmd, gyroSignals(cmd)},
		{frameThrustCmd, thrustSignals(cmd)},
	}
	if r.seq != nil {
		out = append(out, outgoing{framePayloadCmd, r.payload.signals(r.seq.Stage(), r.seq.AirTime())})
	}

	for _, o := range out {
		frame, err := r.cmap.EncodeFrame(o.name, o.values)
		if err != nil {
			r.log.Error("Encode %s failed: %v", o.name, err)
			return err
		}
		if err := r.writer.WriteFrame(ctx, frame); err != nil {
			r.log.Critical("Transmit %s failed: %v", o.name, err)
			return err
		}
		r.sent++
		r.log.Trace("TX id=0x%X len=%d data=% X", frame.ID, frame.Length, frame.Data[:frame.Length])
	}
	return nil
}

type tickRecord struct {
	Tick       uint64                            `json:"tick"`
	Stage      string                            `json:"stage,omitempty"`
	AirTime    int                               `json:"air_time,omitempty"`
	Telemetry  autopilot.Telemetry               `json:"telemetry"`
	Engaged    bool                              `json:"engaged"`
	Suppressed bool                              `json:"suppressed"`
	Rotation   [3]float64                        `json:"rotation"`
	Thrust     map[autopilot.ThrustGroup]float64 `json:"thrust,omitempty"`
}

func (r *Runner) record(tel autopilot.Telemetry, cmd autopilot.ActuatorCommand) {
	if r.rec == nil {
		return
	}
	tr := tickRecord{
		Tick:       r.ticks,
		Telemetry:  tel,
		Engaged:    cmd.Engaged,
		Suppressed: cmd.Suppressed,
		Rotation:   [3]float64(cmd.Rotation),
		Thrust:     cmd.Thrust,
	}
	if r.seq != nil {
		tr.Stage = r.seq.Stage().String()
		tr.AirTime = r.seq.AirTime()
	}
	if err := r.rec.Record(tr); err != nil {
		r.log.Error("Record tick %d: %v", r.ticks, err)
	}
}

// handleCommand applies one operator line. Empty lines are ignored.
func (r *Runner) handleCommand(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	c, err := autopilot.ParseCommand(line)
	if err == nil {
		switch c.Kind {
		case autopilot.CmdLaunch, autopilot.CmdStage:
			if r.seq == nil {
				err = fmt.Errorf("%s needs mission mode: %w", c.Kind, autopilot.ErrInvalidCommand)
			} else if c.Kind == autopilot.CmdLaunch {
				err = r.seq.Launch()
			} else {
				err = r.seq.Advance()
			}
		default:
			err = r.ap.Apply(c)
		}
	}
	if err != nil {
		r.log.Warn("Command %q rejected: %v", line, err)
		return err
	}
	r.log.Info("Command applied: %s", line)
	return nil
}

// receiveLoop feeds the signal cache until ctx ends. It returns nil on
// cancellation and an error once the reader is closed or keeps failing.
func (r *Runner) receiveLoop(ctx context.Context) error {
	r.log.Debug("RX loop started")
	defer r.log.Debug("RX loop stopped")

	failures := 0
	for {
		frame, err := r.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, utils.ErrReaderClosed) {
				return err
			}
			failures++
			r.log.Error("RX error (%d/%d): %v", failures, rxMaxErrors, err)
			if failures >= rxMaxErrors {
				return err
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(rxRetryDelay):
			}
			continue
		}
		failures = 0
		r.ingest(frame, time.Now())
	}
}

// ingest decodes a telemetry frame into the signal cache. Unknown and
// outbound ids are ignored.
func (r *Runner) ingest(frame can.Frame, at time.Time) {
	fd, err := r.cmap.FrameByID(frame.ID)
	if err != nil || fd.Direction != utils.DirectionRX {
		r.log.Trace("RX ignored id=0x%X", frame.ID)
		return
	}
	values, err := r.cmap.DecodeFrame(frame)
	if err != nil {
		r.log.Warn("RX decode: %v", err)
		return
	}
	r.cache.Update(fd.Name, values, at)
	r.log.Trace("RX %s id=0x%X data=% X", fd.Name, frame.ID, frame.Data[:frame.Length])
}

// shutdown hands the actuators back and persists the setpoints.
func (r *Runner) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := r.transmit(ctx, autopilot.Released()); err != nil {
		r.log.Error("Release failed: %v", err)
	}

	if r.seq == nil && r.cfg.StatePath != "" {
		if err := autopilot.SaveSnapshotFile(r.cfg.StatePath, r.ap.Snapshot()); err != nil {
			r.log.Error("Save state: %v", err)
		} else {
			r.log.Info("State saved to %s", r.cfg.StatePath)
		}
	}
	r.log.Info("Completed. ticks=%d frames_sent=%d", r.ticks, r.sent)
}
