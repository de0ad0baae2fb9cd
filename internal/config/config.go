package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	// Sampling settings
	DefaultInterval        = 5 * time.Second
	DefaultTopN            = 5
	DefaultHistorySize     = 50
	DefaultCPUSampleWindow = 1 * time.Second
	DefaultCollectBudget   = 5 * time.Second
	DefaultChartPath       = "usage_graph.png"

	// Static info refresh (CPU model, host)
	StaticRefreshInterval = 1 * time.Hour

	// Environment file path and variable prefix
	EnvFilePath = "/etc/telemon/env"
	EnvPrefix   = "TELEMON_"
)

// Presentation modes
const (
	ModeConsole = "console"
	ModeGUI     = "gui"
	ModeChart   = "chart"
	ModeJSON    = "json"
)

// Build info (injected at build time via ldflags)
var (
	Version   = "0.4.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Config carries runtime options for telemon
type Config struct {
	Interval        time.Duration `yaml:"interval"`
	Duration        time.Duration `yaml:"duration"` // 0 runs until interrupted
	TopN            int           `yaml:"top_n"`
	Mode            string        `yaml:"mode"`
	Rank            string        `yaml:"rank"` // cpu, memory, gpu or merged
	HistorySize     int           `yaml:"history_size"`
	CPUSampleWindow time.Duration `yaml:"cpu_sample_window"`
	CollectBudget   time.Duration `yaml:"collect_budget"`
	ChartPath       string        `yaml:"chart_path"`
	GPUIndex        int           `yaml:"gpu_index"`
	CPUSensorLabels []string      `yaml:"cpu_sensor_labels"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Interval:        DefaultInterval,
		Duration:        0,
		TopN:            DefaultTopN,
		Mode:            ModeConsole,
		Rank:            "cpu",
		HistorySize:     DefaultHistorySize,
		CPUSampleWindow: DefaultCPUSampleWindow,
		CollectBudget:   DefaultCollectBudget,
		ChartPath:       DefaultChartPath,
		GPUIndex:        0,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Iterations returns how many ticks a bounded run performs, or 0 for an
// unbounded one
func (c Config) Iterations() int {
	if c.Duration <= 0 || c.Interval <= 0 {
		return 0
	}
	return int(c.Duration / c.Interval)
}

// Validate checks option ranges and enums
func (c Config) Validate() error {
	var errs []error

	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive, got %s", c.Interval))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %s", c.Duration))
	}
	if c.Duration > 0 && c.Duration < c.Interval {
		errs = append(errs, fmt.Errorf("duration %s is shorter than one interval %s", c.Duration, c.Interval))
	}
	if c.TopN < 1 {
		errs = append(errs, fmt.Errorf("top-n must be at least 1, got %d", c.TopN))
	}
	if c.HistorySize < 1 {
		errs = append(errs, fmt.Errorf("history size must be at least 1, got %d", c.HistorySize))
	}
	if c.CPUSampleWindow <= 0 {
		errs = append(errs, fmt.Errorf("cpu window must be positive, got %s", c.CPUSampleWindow))
	}
	if c.CollectBudget <= c.CPUSampleWindow {
		errs = append(errs, fmt.Errorf("collection budget %s must exceed cpu window %s", c.CollectBudget, c.CPUSampleWindow))
	}
	if c.GPUIndex < 0 {
		errs = append(errs, fmt.Errorf("gpu index must not be negative, got %d", c.GPUIndex))
	}

	switch c.Mode {
	case ModeConsole, ModeGUI, ModeJSON:
	case ModeChart:
		if strings.TrimSpace(c.ChartPath) == "" {
			errs = append(errs, errors.New("chart mode needs a chart path"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q (console, gui, chart, json)", c.Mode))
	}

	switch c.Rank {
	case "cpu", "memory", "gpu", "merged":
	default:
		errs = append(errs, fmt.Errorf("unknown rank %q (cpu, memory, gpu, merged)", c.Rank))
	}

	return errors.Join(errs...)
}

// Load builds the configuration for a command. Precedence, lowest first:
// defaults, YAML file (--config), environment, flags.
func Load(name string, args []string, getenv func(string) string) (Config, error) {
	cfg := Default()

	if path := configPath(name, args); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := ApplyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}

	fs := NewFlagSet(name, &cfg)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// configPath pulls --config out of args, ignoring every other flag
func configPath(name string, args []string) string {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	path := fs.String("config", "", "")
	_ = fs.Parse(args)
	return *path
}

// NewFlagSet returns the run flags bound to cfg. Defaults are cfg's current values.
func NewFlagSet(name string, cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "YAML configuration file")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "time between tick starts")
	fs.DurationVar(&cfg.Duration, "duration", cfg.Duration, "total run time (0 runs until interrupted)")
	fs.IntVar(&cfg.TopN, "top-n", cfg.TopN, "number of processes to show")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "presentation: console|gui|chart|json")
	fs.StringVar(&cfg.Rank, "rank", cfg.Rank, "process ranking: cpu|memory|gpu|merged")
	fs.IntVar(&cfg.HistorySize, "history-size", cfg.HistorySize, "readings kept per chart series")
	fs.DurationVar(&cfg.CPUSampleWindow, "cpu-window", cfg.CPUSampleWindow, "window CPU usage is measured over")
	fs.DurationVar(&cfg.CollectBudget, "budget", cfg.CollectBudget, "time allowed to collect one snapshot")
	fs.StringVar(&cfg.ChartPath, "chart-path", cfg.ChartPath, "chart image written in chart mode")
	fs.IntVar(&cfg.GPUIndex, "gpu-index", cfg.GPUIndex, "GPU device index")
	fs.StringSliceVar(&cfg.CPUSensorLabels, "cpu-sensor", cfg.CPUSensorLabels, "CPU temperature sensor labels, in priority order")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug|info|warn|error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text|json")
	return fs
}

// LoadFile overlays a YAML file onto cfg. Unknown keys are an error.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays TELEMON_* variables onto cfg
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	get := func(key string) string { return strings.TrimSpace(getenv(EnvPrefix + key)) }

	var errs []error
	duration := func(key string, dst *time.Duration) {
		if v := get(key); v != "" {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = d
		}
	}
	integer := func(key string, dst *int) {
		if v := get(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	str := func(key string, dst *string) {
		if v := get(key); v != "" {
			*dst = v
		}
	}

	duration("INTERVAL", &cfg.Interval)
	duration("DURATION", &cfg.Duration)
	duration("CPU_WINDOW", &cfg.CPUSampleWindow)
	duration("BUDGET", &cfg.CollectBudget)
	integer("TOP_N", &cfg.TopN)
	integer("HISTORY_SIZE", &cfg.HistorySize)
	integer("GPU_INDEX", &cfg.GPUIndex)
	str("MODE", &cfg.Mode)
	str("RANK", &cfg.Rank)
	str("CHART_PATH", &cfg.ChartPath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FORMAT", &cfg.LogFormat)

	if v := get("CPU_SENSORS"); v != "" {
		cfg.CPUSensorLabels = splitList(v)
	}
	if IsDebugMode(getenv) {
		cfg.LogLevel = "debug"
	}

	return errors.Join(errs...)
}

// IsDebugMode checks if debug mode is enabled
func IsDebugMode(getenv func(string) string) bool {
	debug := getenv(EnvPrefix + "DEBUG")
	return debug == "true" || debug == "1"
}

// parseDuration accepts Go durations and bare seconds
func parseDuration(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	return time.ParseDuration(v + "s")
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadEnvFile loads KEY=VALUE lines from path into the environment.
// Variables already set are left alone.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist is not an error
		}
		return err
	}

	// Parse each line as KEY=VALUE
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			// Only set if not already set in environment
			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	}

	return nil
}
