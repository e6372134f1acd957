package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("memgame v%s\n", version)
	fmt.Println("Two-player memory sequence game controller")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  memgame [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Runs the game loop: debounced player inputs, a 1 ms software clock and")
	fmt.Println("  the turn controller. Players take turns replaying a shared sequence and")
	fmt.Println("  extending it by one input; a wrong input ends the game.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (flags override file values)")
	fmt.Println()
	fmt.Println("  -board string")
	fmt.Printf("        Board backend: sim|evdev (default %q)\n", defaultBoardBackend)
	fmt.Println()
	fmt.Println("  -handoff string")
	fmt.Printf("        Turn after player 2 extends the sequence: alternate|sticky (default %q)\n", defaultHandoff)
	fmt.Println()
	fmt.Println("  -debounce-window uint")
	fmt.Printf("        Ticks a raw level must persist before it is accepted (default %d)\n", defaultDebounceWindowTicks)
	fmt.Println()
	fmt.Println("  -tick-interval-us int")
	fmt.Printf("        Tick period in microseconds (default %d)\n", defaultTickIntervalUS)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocketPath)
	fmt.Println()
	fmt.Println("  -http-listen string")
	fmt.Printf("        HTTP listen address for /ws/state, /state, /healthz (default %q)\n", defaultHTTPListen)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Simulated board, driven with memgame-ctl")
	fmt.Println("  memgame -board sim")
	fmt.Println()
	fmt.Println("  # Keyboard/GPIO keys through evdev")
	fmt.Println("  memgame -config /etc/memgame.yaml -board evdev")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - The evdev board needs read access to the input devices")
	fmt.Println("    (run as root or add the user to the 'input' group)")
	fmt.Println()
}

func main() {
	var (
		configPath     = flag.String("config", "", "Path to YAML config file")
		boardBackend   = flag.String("board", defaultBoardBackend, "Board backend: sim|evdev")
		handoff        = flag.String("handoff", string(defaultHandoff), "Turn after player 2 extends the sequence: alternate|sticky")
		debounceWindow = flag.Uint("debounce-window", defaultDebounceWindowTicks, "Debounce window in ticks")
		tickIntervalUS = flag.Int("tick-interval-us", defaultTickIntervalUS, "Tick period in microseconds")
		ipcSocketPath  = flag.String("ipc-socket", defaultIPCSocketPath, "Unix domain socket path for IPC")
		httpListen     = flag.String("http-listen", defaultHTTPListen, "HTTP listen address")
		logLevelStr    = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion    = flag.Bool("version", false, "Print version and exit")
		showHelp       = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
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

	// Only flags given on the command line override the file.
	var ov FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "board":
			ov.BoardBackend = boardBackend
		case "handoff":
			ov.Handoff = handoff
		case "debounce-window":
			ov.DebounceWindowTicks = debounceWindow
		case "tick-interval-us":
			ov.TickIntervalUS = tickIntervalUS
		case "ipc-socket":
			ov.IPCSocketPath = ipcSocketPath
		case "http-listen":
			ov.HTTPListen = httpListen
		case "log-level":
			ov.LogLevel = logLevelStr
		}
	})
	ov.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid config:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(os.Stdout, logLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("memgame stopped", "error", err)
		os.Exit(1)
	}
}

// run wires every daemon goroutine and blocks until shutdown.
func run(cfg Config, logger *slog.Logger) error {
	gameCfg := cfg.ToGameConfig()
	if gameCfg.Handoff == HandoffSticky {
		logger.Warn("handoff is sticky: player 2 keeps the turn after extending the sequence")
	}

	board, boardRun, err := openBoard(cfg, logger)
	if err != nil {
		return err
	}
	defer board.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	var (
		ticks      = make(chan struct{}, defaultTickBuffer)
		events     = make(chan Event, 64)
		broadcasts = make(chan StateBroadcast, 256)
		overruns   atomic.Uint64
	)

	state := NewGameSession(gameCfg)
	ws := NewServer(logger, events, HubConfig{})

	logger.Debug("configuration",
		"board", cfg.Board.Backend,
		"inputs_per_player", gameCfg.InputsPerPlayer,
		"sequence_capacity", gameCfg.SequenceCapacity,
		"debounce_window_ticks", gameCfg.Debounce.Window,
		"clock_modulus", gameCfg.Clock.Modulus,
		"half_seconds_per_epoch", gameCfg.Clock.HalfSecondsPerEpoch,
		"tick_interval", cfg.TickInterval(),
		"handoff", gameCfg.Handoff)

	g.Go(func() error {
		return runTickSource(ctx, cfg.TickInterval(), ticks, &overruns)
	})
	if boardRun != nil {
		g.Go(func() error {
			if err := boardRun(ctx); err != nil {
				return fmt.Errorf("board: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		runGame(ctx, ticks, events, board, gameCfg, state, broadcasts, &overruns, logger)
		return nil
	})
	g.Go(func() error {
		ws.Hub().Run(ctx)
		return nil
	})
	g.Go(func() error {
		RunBroadcaster(ctx, ws.Hub(), broadcasts, logger)
		return nil
	})
	g.Go(func() error {
		return runIPCServer(ctx, cfg.IPC.SocketPath, events, gameCfg.InputsPerPlayer, logger)
	})
	g.Go(func() error {
		return runHTTPServer(ctx, cfg.HTTP.Listen, newHTTPHandler(ws, events, logger), logger)
	})

	logger.Info("memgame running",
		"version", version,
		"board", cfg.Board.Backend,
		"ipc", cfg.IPC.SocketPath,
		"http", cfg.HTTP.Listen)

	err = g.Wait()
	logger.Info("shutting down")
	return err
}
