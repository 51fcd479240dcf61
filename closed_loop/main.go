package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"streamline-autopilot/utils"
)

func main() {
	var (
		iface       = flag.String("iface", "vcan0", "SocketCAN interface name")
		mapPath     = flag.String("map", "config/can/can_map.csv", "Path to can_map.csv")
		profilePath = flag.String("profile", "config/profiles/hover.json", "Flight profile JSON file")
		logLevel    = flag.String("log", "info", "trace|debug|info|warn|error|critical")
		statePath   = flag.String("state", "autopilot_state.yaml", "Setpoint state file (empty to disable)")
		recordPath  = flag.String("record", "", "Write a zstd flight record to this path")
	)
	flag.Parse()

	log, err := utils.NewFileLogger("closed_loop.log", utils.ParseLogLevel(*logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open closed_loop.log: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	cfg := RunnerConfig{
		Interface:   *iface,
		MapPath:     *mapPath,
		ProfilePath: *profilePath,
		StatePath:   *statePath,
		RecordPath:  *recordPath,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		os.Exit(1)
	}
	defer runner.Close()

	if err := runner.Run(ctx, readCommands(ctx, os.Stdin)); err != nil && !errors.Is(err, context.Canceled) {
		log.Critical("Run failed: %v", err)
		os.Exit(1)
	}
}

// readCommands forwards operator lines from in until EOF or ctx ends.
func readCommands(ctx context.Context, in io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case out <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
