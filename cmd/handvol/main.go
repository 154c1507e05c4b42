package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "0.3.0"

func printVersion() {
	fmt.Printf("handvol v%s\n", version)
	fmt.Println("Hand gesture volume control daemon")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  handvol [OPTIONS]")
	fmt.Println("  handvol ipc-feed [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Turns the distance between two tracked fingertips into volume commands.")
	fmt.Println("  A pinch activates control, a C shape deactivates it. In step mode the")
	fmt.Println("  volume moves by one step when a full window of samples rises past the")
	fmt.Println("  high threshold (or falls past the low one); in continuous mode the")
	fmt.Println("  distance maps linearly onto the volume range.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("SUBCOMMANDS:")
	fmt.Println("  ipc-feed")
	fmt.Println("        Read JSON frames from stdin and forward them to a running daemon over IPC")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Recognizer subprocess, CamillaDSP output")
	fmt.Println("  handvol -source recognizer -source-command 'python3 hands.py' -sink camilladsp")
	fmt.Println()
	fmt.Println("  # Replay recorded frames in continuous mode without touching audio")
	fmt.Println("  handvol -mode continuous -sink log < frames.jsonl")
	fmt.Println()
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "ipc-feed" {
		os.Exit(runIPCFeedSubcommand(os.Args[2:]))
	}

	var (
		configPath = flag.String("config", "", "Path to YAML config file")
		showVer    = flag.Bool("version", false, "Print version and exit")
	)

	var o FlagOverrides
	stringFlag(&o.Mode, "mode", "Control mode: step|continuous")
	intFlag(&o.TrajectorySize, "traj-size", "Samples per step decision (>= 2)")
	intFlag(&o.StepSize, "step", "Volume change per step (> 0)")
	floatFlag(&o.ThresholdLow, "threshold-low", "Step mode: distance below which the down zone starts")
	floatFlag(&o.ThresholdHigh, "threshold-high", "Step mode: distance above which the up zone starts")
	intFlag(&o.InitialVolume, "initial-volume", "Starting volume (default: midpoint of the volume range)")
	stringFlag(&o.SourceKind, "source", "Frame source: recognizer|stdin|none")
	stringFlag(&o.SourceCommand, "source-command", "Recognizer command line (split on whitespace)")
	stringFlag(&o.SinkKind, "sink", "Volume sink: camilladsp|command|midi|log")
	stringFlag(&o.CamillaWsURL, "camilladsp-ws-url", "CamillaDSP websocket URL")
	stringFlag(&o.MIDIPort, "midi-port", "MIDI output port name prefix")
	stringFlag(&o.IPCSocketPath, "ipc-socket", "Unix domain socket path for IPC (empty disables)")
	intFlag(&o.HTTPPort, "http-port", "HTTP port for /ws/state and /healthz (0 disables)")
	stringFlag(&o.LogLevel, "log-level", "Log level: error, warn, info, debug")
	stringFlag(&o.LogFormat, "log-format", "Log format: text, json")

	flag.Usage = printUsage
	flag.Parse()

	if *showVer {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logFormat, _ := parseLogFormat(cfg.Logging.Format)
	logger := setupLogger(logLevel, logFormat, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("handvol stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down")
}

// run wires sources, the daemon loop, the sink and the servers, and blocks
// until ctx is canceled or one of them fails.
func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	session, err := NewSession(cfg.Control, time.Now())
	if err != nil {
		return err
	}

	sink, err := newVolumeSink(ctx, cfg.Sink, logger)
	if err != nil {
		return fmt.Errorf("volume sink: %w", err)
	}
	defer sink.Close()

	logger.Debug("configuration",
		"mode", cfg.Control.Mode,
		"trajectory_size", cfg.Control.TrajectorySize,
		"step_size", cfg.Control.StepSize,
		"threshold_low", cfg.Control.ThresholdLow,
		"threshold_high", cfg.Control.ThresholdHigh,
		"len_min", cfg.Control.Continuous.LenMin,
		"len_max", cfg.Control.Continuous.LenMax,
		"source", cfg.Source.Kind,
		"sink", cfg.Sink.Kind,
		"ipc_socket", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port)

	events := make(chan Event, cfg.Source.QueueSize)

	var broadcasts chan StateBroadcast
	var state *StateServer
	if cfg.HTTP.Port > 0 {
		broadcasts = make(chan StateBroadcast, 256)
		state = NewStateServer(logger, events, HubConfig{})
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runDaemon(gctx, events, sink, session, broadcasts, logger)
		return nil
	})

	switch cfg.Source.Kind {
	case SourceRecognizer:
		g.Go(func() error {
			return runRecognizer(gctx, cfg.Source.Command, events, logger)
		})
	case SourceStdin:
		g.Go(func() error {
			err := readFrames(gctx, os.Stdin, events, "stdin", logger)
			if !errors.Is(err, errSourceClosed) {
				return err
			}
			// The daemon handles events in order, so once a snapshot comes
			// back every frame read before EOF has been applied.
			snap, serr := requestSnapshot(gctx, events)
			if serr != nil {
				logger.Warn("stdin closed before the daemon caught up", "error", serr)
				return err
			}
			logger.Info("stdin closed", "volume", snap.Volume, "frames", snap.Stats.Frames)
			return err
		})
	}

	if len(cfg.ActivationKeys.Devices) > 0 {
		g.Go(func() error {
			return runActivationKeys(gctx, cfg.ActivationKeys, events, logger)
		})
	}

	if cfg.IPC.SocketPath != "" {
		g.Go(func() error {
			return runIPCServer(gctx, cfg.IPC.SocketPath, events, logger)
		})
	}

	if state != nil {
		g.Go(func() error {
			state.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, state.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.HTTP.Port, newHTTPMux(state), logger)
		})
	}

	logger.Info("listening",
		"session_id", session.ID,
		"source", cfg.Source.Kind,
		"sink", cfg.Sink.Kind,
		"ipc", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port)

	err = g.Wait()
	if errors.Is(err, errSourceClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runIPCFeedSubcommand forwards stdin frames to a running daemon.
func runIPCFeedSubcommand(args []string) int {
	fs := flag.NewFlagSet("ipc-feed", flag.ExitOnError)
	ipcSocketPath := fs.String("ipc-socket", defaultIPCSocket, "Unix domain socket path for IPC")
	logLevelStr := fs.String("log-level", "info", "Log level: error, warn, info, debug")
	fs.Parse(args)

	logLevel, err := parseLogLevel(*logLevelStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	logger := setupLogger(logLevel, LogFormatText, os.Stderr)

	client, err := DialIPC(*ipcSocketPath)
	if err != nil {
		logger.Error("ipc-feed failed", "error", err)
		return 1
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Frames decoded from stdin are handed to the IPC client in order.
	events := make(chan Event)
	errCh := make(chan error, 1)
	go func() {
		errCh <- readFrames(ctx, os.Stdin, events, "stdin", logger)
		close(events)
	}()

	sent := 0
	for ev := range events {
		if err := client.Send(ev); err != nil {
			logger.Error("ipc-feed failed", "error", err, "sent", sent)
			return 1
		}
		sent++
	}

	if err := <-errCh; err != nil && !errors.Is(err, errSourceClosed) && !errors.Is(err, context.Canceled) {
		logger.Error("ipc-feed failed", "error", err, "sent", sent)
		return 1
	}
	logger.Info("ipc-feed done", "sent", sent)
	return 0
}

// Flags that only override the config when given on the command line.

type optString struct{ p **string }

func (f optString) String() string {
	if f.p == nil || *f.p == nil {
		return ""
	}
	return **f.p
}
func (f optString) Set(s string) error { *f.p = &s; return nil }

type optInt struct{ p **int }

func (f optInt) String() string {
	if f.p == nil || *f.p == nil {
		return ""
	}
	return fmt.Sprint(**f.p)
}
func (f optInt) Set(s string) error {
	var v int
	if _, err := fmt.Sscan(s, &v); err != nil {
		return err
	}
	*f.p = &v
	return nil
}

type optFloat struct{ p **float64 }

func (f optFloat) String() string {
	if f.p == nil || *f.p == nil {
		return ""
	}
	return fmt.Sprint(**f.p)
}
func (f optFloat) Set(s string) error {
	var v float64
	if _, err := fmt.Sscan(s, &v); err != nil {
		return err
	}
	*f.p = &v
	return nil
}

func stringFlag(p **string, name, usage string) { flag.Var(optString{p}, name, usage) }
func intFlag(p **int, name, usage string)       { flag.Var(optInt{p}, name, usage) }
func floatFlag(p **float64, name, usage string) { flag.Var(optFloat{p}, name, usage) }
