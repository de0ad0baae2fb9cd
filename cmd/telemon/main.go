package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/monify-labs/telemon/internal/agent"
	"github.com/monify-labs/telemon/internal/config"
	"github.com/monify-labs/telemon/internal/logging"
	"github.com/monify-labs/telemon/internal/metrics/dynamic"
	"github.com/monify-labs/telemon/internal/ranker"
	"github.com/monify-labs/telemon/internal/sink"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load environment file
	if err := config.LoadEnvFile(config.EnvFilePath); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to load env file: %v\n", err)
	}

	command := os.Args[1]

	switch command {
	case "run":
		os.Exit(runAgent(command, os.Args[2:], false))
	case "once":
		os.Exit(runAgent(command, os.Args[2:], true))
	case "version":
		showVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`telemon - Local Hardware Telemetry Sampler

Usage:
  telemon <command> [flags]

Commands:
  run       Sample on an interval and present every tick
  once      Take a single sample and print it
  version   Show version information
  help      Show this help message

Flags (run, once):`)
	cfg := config.Default()
	fs := config.NewFlagSet("run", &cfg)
	fs.SetOutput(os.Stdout)
	fs.PrintDefaults()
	fmt.Println(`
Environment Variables:
  TELEMON_INTERVAL, TELEMON_DURATION, TELEMON_TOP_N, TELEMON_MODE, TELEMON_RANK,
  TELEMON_HISTORY_SIZE, TELEMON_CPU_WINDOW, TELEMON_BUDGET, TELEMON_CHART_PATH,
  TELEMON_GPU_INDEX, TELEMON_CPU_SENSORS, TELEMON_LOG_LEVEL, TELEMON_LOG_FORMAT
  TELEMON_DEBUG      Enable debug logging (true/1)

Configuration File:
  /etc/telemon/env   Environment variables file
  --config FILE      YAML file (overridden by environment and flags)

Examples:
  telemon run --interval 20s --duration 60s --top-n 3
  telemon run --mode gui --rank merged
  telemon run --mode chart --chart-path usage_graph.png
  telemon once --mode json`)
}

func runAgent(command string, args []string, once bool) int {
	cfg, err := config.Load(command, args, os.Getenv)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if once && cfg.Mode == config.ModeGUI {
		cfg.Mode = config.ModeConsole
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	// Setup context with cancellation on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := agent.NewCollector(agent.CollectorOptions{
		Sources:         agent.DefaultSources(cfg.CPUSampleWindow),
		Budget:          cfg.CollectBudget,
		GPUIndex:        cfg.GPUIndex,
		CPUSensorLabels: cfg.CPUSensorLabels,
		Log:             logger,
	})

	rk, err := ranker.New(dynamic.NewProcessLister(), cfg.TopN, cfg.Rank, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	iterations := cfg.Iterations()
	if once {
		iterations = 1
	}

	opts := agent.Options{
		Interval:    cfg.Interval,
		Iterations:  iterations,
		HistorySize: cfg.HistorySize,
		RankBudget:  cfg.CollectBudget,
		Collector:   collector,
		Ranker:      rk,
		Log:         logger,
	}

	logger.WithFields(logrus.Fields{
		"version":  config.Version,
		"mode":     cfg.Mode,
		"interval": cfg.Interval,
		"duration": cfg.Duration,
	}).Info("Starting telemon")

	if cfg.Mode == config.ModeGUI {
		return runDashboard(ctx, opts, logger)
	}

	switch cfg.Mode {
	case config.ModeJSON:
		opts.Sink = sink.NewJSONLines(os.Stdout)
	case config.ModeChart:
		opts.Sink = sink.Multi{sink.NewConsole(os.Stdout), sink.NewChart(cfg.ChartPath)}
	default:
		opts.Sink = sink.NewConsole(os.Stdout)
	}

	a, err := agent.NewAgent(opts)
	if err != nil {
		logger.WithError(err).Error("Failed to create agent")
		return 1
	}
	if err := a.Run(ctx); err != nil {
		logger.WithError(err).Error("Agent error")
		return 1
	}
	return 0
}

// runDashboard samples in the background while the dashboard owns the
// terminal. Quitting the dashboard stops sampling.
func runDashboard(ctx context.Context, opts agent.Options, logger *logrus.Logger) int {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The dashboard owns the terminal; keep log lines off it
	logger.SetOutput(io.Discard)

	tui := sink.NewTUI(cancel)
	opts.Sink = tui

	a, err := agent.NewAgent(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
	}()

	p := tea.NewProgram(tui.Model(), tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, uiErr := p.Run()
	cancel()
	runErr := <-errCh

	logger.SetOutput(os.Stderr)
	if err := errors.Join(uiErr, runErr); err != nil {
		logger.WithError(err).Error("Agent error")
		return 1
	}
	return 0
}

func showVersion() {
	fmt.Printf("telemon v%s\n", config.Version)
	fmt.Printf("Commit: %s\n", config.Commit)
	fmt.Printf("Build Date: %s\n", config.BuildDate)
}
