// Package sensors queries named hardware temperature sensors from the
// platform sensor provider.
package sensors

import (
	"context"
	"fmt"
	"strings"

	"github.com/monify-labs/telemon/internal/metrics"
)

// CategoryTemperature is the sensor category for temperature readings
const CategoryTemperature = "Temperature"

// DefaultCPULabels are matched in order against sensor labels to find the CPU
// package temperature. The first is the OpenHardwareMonitor name, the rest
// cover Linux hwmon drivers.
var DefaultCPULabels = []string{
	"CPU Package",
	"coretemp_package_id_0",
	"k10temp_tctl",
	"k10temp_tdie",
	"zenpower_tdie",
	"cpu_thermal",
	"x86_pkg_temp",
}

// Reading is one sensor value
type Reading struct {
	Category string
	Label    string
	Value    float64
}

// Provider lists sensor readings. Implementations return
// metrics.ErrSensorUnavailable when the provider itself is missing.
type Provider interface {
	Readings(ctx context.Context) ([]Reading, error)
}

// Find returns the first temperature reading whose label matches one of
// labels, trying labels in order. Matching ignores case, spaces and dashes.
func Find(readings []Reading, labels []string) (Reading, bool) {
	for _, want := range labels {
		key := normalise(want)
		if key == "" {
			continue
		}
		for _, r := range readings {
			if !strings.EqualFold(r.Category, CategoryTemperature) {
				continue
			}
			if normalise(r.Label) == key {
				return r, true
			}
		}
	}
	return Reading{}, false
}

// CPUTemperature reads the provider and picks the CPU package sensor.
// A provider with no matching sensor reports metrics.ErrSensorUnavailable,
// which is distinct from a zero reading.
func CPUTemperature(ctx context.Context, p Provider, labels []string) (float64, error) {
	if p == nil {
		return 0, fmt.Errorf("cpu temperature: %w: no provider", metrics.ErrSensorUnavailable)
	}
	if len(labels) == 0 {
		labels = DefaultCPULabels
	}

	readings, err := p.Readings(ctx)
	if err != nil && len(readings) == 0 {
		return 0, fmt.Errorf("cpu temperature: %w", err)
	}

	r, ok := Find(readings, labels)
	if !ok {
		return 0, fmt.Errorf("cpu temperature: %w: no sensor matching %v", metrics.ErrSensorUnavailable, labels)
	}
	return r.Value, nil
}

func normalise(label string) string {
	r := strings.NewReplacer(" ", "_", "-", "_")
	return strings.ToLower(strings.TrimSpace(r.Replace(label)))
}
