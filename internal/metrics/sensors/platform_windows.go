//go:build windows

package sensors

import (
	"context"
	"fmt"

	"github.com/yusufpapurcu/wmi"

	"github.com/monify-labs/telemon/internal/metrics"
)

// openHardwareMonitorNamespace is published by OpenHardwareMonitor and
// LibreHardwareMonitor while they run
const openHardwareMonitorNamespace = `root\OpenHardwareMonitor`

// ohmSensor mirrors the WMI Sensor class
type ohmSensor struct {
	Name       string
	SensorType string
	Value      float32
}

// WMIProvider reads OpenHardwareMonitor sensors and falls back to gopsutil
// when the namespace is absent
type WMIProvider struct {
	fallback Provider
}

// Platform returns the sensor provider for this OS
func Platform() Provider {
	return WMIProvider{fallback: HostProvider{}}
}

func (p WMIProvider) Readings(ctx context.Context) ([]Reading, error) {
	var rows []ohmSensor
	query := "SELECT Name, SensorType, Value FROM Sensor"
	if err := wmi.QueryNamespace(query, &rows, openHardwareMonitorNamespace); err != nil || len(rows) == 0 {
		if p.fallback != nil {
			return p.fallback.Readings(ctx)
		}
		return nil, fmt.Errorf("%w: %s: %v", metrics.ErrSensorUnavailable, openHardwareMonitorNamespace, err)
	}

	readings := make([]Reading, 0, len(rows))
	for _, row := range rows {
		readings = append(readings, Reading{
			Category: row.SensorType,
			Label:    row.Name,
			Value:    float64(row.Value),
		})
	}
	return readings, nil
}
