package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0, cfg.Iterations())
}

func TestIterations(t *testing.T) {
	cfg := Default()
	cfg.Duration = 60 * time.Second
	cfg.Interval = 20 * time.Second
	assert.Equal(t, 3, cfg.Iterations())

	cfg.Duration = 59 * time.Second
	assert.Equal(t, 2, cfg.Iterations())
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telemon.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
interval: 20s
duration: 60s
top_n: 3
mode: chart
rank: memory
cpu_sensor_labels: ["CPU Package"]
`), 0o600))

	env := envMap(map[string]string{
		"TELEMON_TOP_N": "4",
		"TELEMON_MODE":  "json",
	})

	cfg, err := Load("run", []string{"--config", path, "--mode", "console"}, env)
	require.NoError(t, err)

	// file < env < flags
	assert.Equal(t, 20*time.Second, cfg.Interval)
	assert.Equal(t, 60*time.Second, cfg.Duration)
	assert.Equal(t, 4, cfg.TopN)
	assert.Equal(t, ModeConsole, cfg.Mode)
	assert.Equal(t, "memory", cfg.Rank)
	assert.Equal(t, []string{"CPU Package"}, cfg.CPUSensorLabels)
	assert.Equal(t, DefaultHistorySize, cfg.HistorySize)
}

func TestLoadFlags(t *testing.T) {
	cfg, err := Load("run", []string{
		"--interval=2s", "--duration=10s", "--top-n=3", "--mode=gui", "--rank=merged",
		"--cpu-sensor=k10temp_tctl,cpu_thermal",
	}, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Interval)
	assert.Equal(t, 5, cfg.Iterations())
	assert.Equal(t, ModeGUI, cfg.Mode)
	assert.Equal(t, "merged", cfg.Rank)
	assert.Equal(t, []string{"k10temp_tctl", "cpu_thermal"}, cfg.CPUSensorLabels)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("intervall: 5s\n"), 0o600))

	_, err := Load("run", []string{"--config=" + path}, envMap(nil))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, envMap(map[string]string{
		"TELEMON_INTERVAL":    "20",
		"TELEMON_BUDGET":      "3s",
		"TELEMON_CPU_SENSORS": "CPU Package, x86_pkg_temp ,",
		"TELEMON_DEBUG":       "1",
	}))
	require.NoError(t, err)

	assert.Equal(t, 20*time.Second, cfg.Interval)
	assert.Equal(t, 3*time.Second, cfg.CollectBudget)
	assert.Equal(t, []string{"CPU Package", "x86_pkg_temp"}, cfg.CPUSensorLabels)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestApplyEnvReportsBadValues(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, envMap(map[string]string{"TELEMON_TOP_N": "many"}))
	assert.ErrorContains(t, err, "TELEMON_TOP_N")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Interval = 0 }},
		{"negative duration", func(c *Config) { c.Duration = -time.Second }},
		{"duration below interval", func(c *Config) { c.Duration = time.Second }},
		{"zero top-n", func(c *Config) { c.TopN = 0 }},
		{"zero history", func(c *Config) { c.HistorySize = 0 }},
		{"budget not above window", func(c *Config) { c.CollectBudget = c.CPUSampleWindow }},
		{"unknown mode", func(c *Config) { c.Mode = "window" }},
		{"chart without path", func(c *Config) { c.Mode = ModeChart; c.ChartPath = " " }},
		{"unknown rank", func(c *Config) { c.Rank = "disk" }},
		{"negative gpu", func(c *Config) { c.GPUIndex = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEnvFileDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nTELEMON_TEST_A=from-file\nTELEMON_TEST_B=from-file\n"), 0o600))
	t.Setenv("TELEMON_TEST_A", "from-env")
	t.Setenv("TELEMON_TEST_B", "")

	require.NoError(t, LoadEnvFile(path))

	assert.Equal(t, "from-env", os.Getenv("TELEMON_TEST_A"))
	assert.Equal(t, "from-file", os.Getenv("TELEMON_TEST_B"))
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing")))
}
