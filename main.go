package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // registers the MIDI port driver

	"pitchosc/cmd"
	"pitchosc/internal/config"
	applog "pitchosc/internal/log"
	"pitchosc/pkg/build"
)

// main is the entry point for the pitch tracker.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Start the duplex stream and the tracker callback
//   - Run the event loop, monitor relay and UI
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop the stream, flush recordings, close transports
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v, using development defaults", err)
	}

	// One thread for the audio callback, one for the event loop, UI and I/O.
	runtime.GOMAXPROCS(2)

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if opts.Command == "" {
		return // --help or --version
	}

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		applog.Fatalf("%v", err)
	}
	opts.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		applog.Fatalf("invalid configuration: %v", err)
	}
	if level, ok := applog.ParseLevel(cfg.Level()); ok {
		applog.SetLevel(level)
	}
	defer applog.Sync()

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, cfg, opts); err != nil {
		applog.Errorf("%v", err)
		stop()
		applog.Sync()
		os.Exit(1)
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================
	// Deferred cleanup inside cmd.Run has already stopped the stream.
}

func execute(ctx context.Context, cfg *config.Config, opts *cmd.Options) error {
	switch opts.Command {
	case cmd.CommandList:
		return cmd.List(os.Stdout)
	case cmd.CommandRender:
		return cmd.Render(os.Stdout, cfg, opts.Args[0], opts.Args[1])
	case cmd.CommandAnalyze:
		return cmd.Analyze(os.Stdout, opts.Args[0], opts.Window)
	default:
		return cmd.Run(ctx, cfg, opts)
	}
}
