//go:build !windows

package static

import (
	"context"

	"github.com/monify-labs/telemon/internal/metrics"
)

// RAMSpeedMHz is only known through WMI
func RAMSpeedMHz(_ context.Context) (uint32, error) {
	return 0, metrics.ErrSensorUnavailable
}
