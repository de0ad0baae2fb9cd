package dynamic

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/monify-labs/telemon/pkg/models"
)

// DefaultCPUWindow is how long CPU usage is measured over
const DefaultCPUWindow = 1 * time.Second

// CPUCollector measures busy CPU time over a fixed window
type CPUCollector struct {
	window time.Duration
}

// NewCPUCollector creates a CPU collector. A non-positive window uses DefaultCPUWindow.
func NewCPUCollector(window time.Duration) *CPUCollector {
	if window <= 0 {
		window = DefaultCPUWindow
	}
	return &CPUCollector{window: window}
}

// Window returns the measurement window
func (c *CPUCollector) Window() time.Duration {
	return c.window
}

// Collect blocks for the window and returns overall busy percent.
// Two counter reads are needed, so there is no instantaneous value.
func (c *CPUCollector) Collect(ctx context.Context) (float64, error) {
	percentages, err := cpu.PercentWithContext(ctx, c.window, false)
	if err != nil {
		return 0, fmt.Errorf("failed to sample cpu: %w", err)
	}
	if len(percentages) == 0 {
		return 0, fmt.Errorf("failed to sample cpu: no counters")
	}
	return models.ClampPercent(percentages[0]), nil
}
