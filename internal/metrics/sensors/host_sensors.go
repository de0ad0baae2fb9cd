package sensors

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/monify-labs/telemon/internal/metrics"
)

// HostProvider reads temperatures through gopsutil (hwmon and thermal zones
// on Linux, SMC on macOS, ACPI thermal zones on Windows)
type HostProvider struct{}

// Readings returns every temperature gopsutil can see. gopsutil reports
// per-sensor failures as warnings next to partial results; those are kept.
func (HostProvider) Readings(ctx context.Context) ([]Reading, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if len(temps) == 0 {
		if err == nil {
			err = fmt.Errorf("no temperature sensors")
		}
		return nil, fmt.Errorf("%w: %v", metrics.ErrSensorUnavailable, err)
	}

	readings := make([]Reading, 0, len(temps))
	for _, t := range temps {
		readings = append(readings, Reading{
			Category: CategoryTemperature,
			Label:    t.SensorKey,
			Value:    t.Temperature,
		})
	}
	return readings, nil
}
