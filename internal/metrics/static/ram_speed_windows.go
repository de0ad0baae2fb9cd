//go:build windows

package static

import (
	"context"
	"fmt"

	"github.com/yusufpapurcu/wmi"

	"github.com/monify-labs/telemon/internal/metrics"
)

// physicalMemory mirrors the WMI Win32_PhysicalMemory class
type physicalMemory struct {
	Speed uint32
}

// RAMSpeedMHz returns the configured memory speed
func RAMSpeedMHz(_ context.Context) (uint32, error) {
	var rows []physicalMemory
	if err := wmi.Query("SELECT Speed FROM Win32_PhysicalMemory", &rows); err != nil {
		return 0, fmt.Errorf("%w: Win32_PhysicalMemory: %v", metrics.ErrSensorUnavailable, err)
	}

	speeds := make([]uint32, 0, len(rows))
	for _, row := range rows {
		speeds = append(speeds, row.Speed)
	}
	speed, ok := fastestModule(speeds)
	if !ok {
		return 0, fmt.Errorf("%w: no memory module reports a speed", metrics.ErrSensorUnavailable)
	}
	return speed, nil
}
