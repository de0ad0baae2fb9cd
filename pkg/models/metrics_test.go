package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentClampsAndRejectsNaN(t *testing.T) {
	tests := []struct {
		in    float64
		want  float64
		valid bool
	}{
		{in: 42.5, want: 42.5, valid: true},
		{in: -3, want: 0, valid: true},
		{in: 100.0001, want: 100, valid: true},
		{in: math.NaN(), valid: false},
		{in: math.Inf(1), valid: false},
	}
	for _, tt := range tests {
		got := Percent(tt.in)
		assert.Equal(t, tt.valid, got.Valid, "input %v", tt.in)
		if tt.valid {
			assert.Equal(t, tt.want, got.Value)
		}
	}
}

func TestOptionalRendersNA(t *testing.T) {
	assert.Equal(t, "N/A", None[float64]().Render("%.1f°C"))
	assert.Equal(t, "61.5°C", Some(61.5).Render("%.1f°C"))
	assert.Equal(t, "N/A", None[string]().String())
	assert.Equal(t, "RTX 3060", Some("RTX 3060").String())
	assert.Equal(t, 7.0, None[float64]().Or(7))
}

func TestSnapshotJSONUsesNullForUnavailable(t *testing.T) {
	snap := Snapshot{
		CPUUsagePercent: Some(12.0),
		Storage:         []StorageEntry{},
	}
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 12.0, raw["cpu_usage_percent"])
	assert.Nil(t, raw["gpu_usage_percent"])
	assert.Contains(t, raw, "gpu_temperature_celsius")
	assert.Nil(t, raw["gpu_model"])
}

func TestRankKeyScore(t *testing.T) {
	p := ProcessSample{CPUPercent: 30, MemoryPercent: 12}
	assert.Equal(t, 30.0, RankCPU.Score(p))
	assert.Equal(t, 12.0, RankMemory.Score(p))
	assert.Equal(t, -1.0, RankGPU.Score(p))

	p.GPUPercent = Some(0.0)
	assert.Equal(t, 0.0, RankGPU.Score(p))
	assert.Equal(t, "RAM", RankMemory.Label())
}

func TestNetworkDelta(t *testing.T) {
	prev := &Snapshot{NetworkBytesTotal: Some(uint64(1000))}
	cur := &Snapshot{NetworkBytesTotal: Some(uint64(1600))}

	assert.Equal(t, Some(uint64(600)), NetworkDelta(prev, cur))
	assert.False(t, NetworkDelta(nil, cur).Valid)
	assert.False(t, NetworkDelta(cur, prev).Valid, "counter reset")
	assert.False(t, NetworkDelta(prev, &Snapshot{}).Valid)
}
