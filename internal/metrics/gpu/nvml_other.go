//go:build !linux || !cgo

package gpu

import (
	"fmt"

	"github.com/monify-labs/telemon/internal/metrics"
)

// OpenNVML reports no device on platforms without the NVML bindings
func OpenNVML(index int) (Device, error) {
	return nil, fmt.Errorf("%w: nvml not supported on this platform", metrics.ErrDeviceAbsent)
}
