// Package gpu reads GPU state through the vendor management interface.
//
// A Device is acquired once with Open and released with Close. Hosts with no
// compatible GPU get metrics.ErrDeviceAbsent from Open, never a panic.
package gpu

import (
	"errors"

	"github.com/monify-labs/telemon/pkg/models"
)

// ErrPerProcessUnsupported is returned when the driver cannot attribute
// utilization to individual processes
var ErrPerProcessUnsupported = errors.New("per-process gpu utilization unsupported")

// Device is an open handle to one GPU
type Device interface {
	// Name returns the marketing name, e.g. "NVIDIA GeForce RTX 3060"
	Name() (string, error)

	// Utilization returns the busy percent of the compute engine
	Utilization() (float64, error)

	// Temperature returns the core temperature in Celsius
	Temperature() (float64, error)

	// Memory returns used and total framebuffer bytes
	Memory() (used, total uint64, err error)

	// ProcessUtilization returns per-PID compute percent since the last call.
	// Returns ErrPerProcessUnsupported when the driver has no such samples.
	ProcessUtilization() (map[int32]float64, error)

	// Close releases the handle and the management library
	Close() error
}

// Opener acquires the device at index
type Opener func(index int) (Device, error)

// Reading is one read of every device metric. Each field degrades on its own.
type Reading struct {
	Name             models.Optional[string]
	UsagePercent     models.Optional[float64]
	TemperatureC     models.Optional[float64]
	MemoryUsedBytes  models.Optional[uint64]
	MemoryTotalBytes models.Optional[uint64]
	MemoryPercent    models.Optional[float64]
}

// Read collects a Reading from dev. A nil device reads as all unavailable.
func Read(dev Device) Reading {
	var r Reading
	if dev == nil {
		return r
	}

	if name, err := dev.Name(); err == nil && name != "" {
		r.Name = models.Some(name)
	}
	if util, err := dev.Utilization(); err == nil {
		r.UsagePercent = models.Percent(util)
	}
	if temp, err := dev.Temperature(); err == nil {
		r.TemperatureC = models.Some(temp)
	}
	if used, total, err := dev.Memory(); err == nil && total > 0 {
		r.MemoryUsedBytes = models.Some(used)
		r.MemoryTotalBytes = models.Some(total)
		r.MemoryPercent = models.Percent(float64(used) / float64(total) * 100)
	}

	return r
}
