//go:build linux && cgo

package gpu

import (
	"fmt"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"

	"github.com/monify-labs/telemon/internal/metrics"
)

// nvmlDevice is a Device backed by NVML
type nvmlDevice struct {
	mu       sync.Mutex
	handle   nvml.Device
	lastSeen uint64
	closed   bool
}

// OpenNVML initialises NVML and acquires the device at index. Missing driver
// libraries and missing devices both report metrics.ErrDeviceAbsent.
func OpenNVML(index int) (Device, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return nil, fmt.Errorf("%w: nvml init: %s", metrics.ErrDeviceAbsent, nvml.ErrorString(ret))
	}

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS || index < 0 || index >= count {
		nvml.Shutdown()
		return nil, fmt.Errorf("%w: no gpu at index %d", metrics.ErrDeviceAbsent, index)
	}

	handle, ret := nvml.DeviceGetHandleByIndex(index)
	if ret != nvml.SUCCESS {
		nvml.Shutdown()
		return nil, fmt.Errorf("%w: gpu %d: %s", metrics.ErrDeviceAbsent, index, nvml.ErrorString(ret))
	}

	return &nvmlDevice{handle: handle}, nil
}

func (d *nvmlDevice) Name() (string, error) {
	name, ret := d.handle.GetName()
	if ret != nvml.SUCCESS {
		return "", nvmlError("name", ret)
	}
	return name, nil
}

func (d *nvmlDevice) Utilization() (float64, error) {
	util, ret := d.handle.GetUtilizationRates()
	if ret != nvml.SUCCESS {
		return 0, nvmlError("utilization", ret)
	}
	return float64(util.Gpu), nil
}

func (d *nvmlDevice) Temperature() (float64, error) {
	temp, ret := d.handle.GetTemperature(nvml.TEMPERATURE_GPU)
	if ret != nvml.SUCCESS {
		return 0, nvmlError("temperature", ret)
	}
	return float64(temp), nil
}

func (d *nvmlDevice) Memory() (uint64, uint64, error) {
	info, ret := d.handle.GetMemoryInfo()
	if ret != nvml.SUCCESS {
		return 0, 0, nvmlError("memory", ret)
	}
	return info.Used, info.Total, nil
}

func (d *nvmlDevice) ProcessUtilization() (map[int32]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	samples, ret := d.handle.GetProcessUtilization(d.lastSeen)
	switch ret {
	case nvml.SUCCESS:
	case nvml.ERROR_NOT_FOUND:
		// No process touched the GPU since lastSeen
		return map[int32]float64{}, nil
	case nvml.ERROR_NOT_SUPPORTED:
		return nil, ErrPerProcessUnsupported
	default:
		return nil, nvmlError("process utilization", ret)
	}

	out := make(map[int32]float64, len(samples))
	for _, s := range samples {
		pid := int32(s.Pid)
		out[pid] += float64(s.SmUtil)
		if s.TimeStamp > d.lastSeen {
			d.lastSeen = s.TimeStamp
		}
	}
	return out, nil
}

func (d *nvmlDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if ret := nvml.Shutdown(); ret != nvml.SUCCESS {
		return nvmlError("shutdown", ret)
	}
	return nil
}

func nvmlError(op string, ret nvml.Return) error {
	if ret == nvml.ERROR_NOT_SUPPORTED {
		return fmt.Errorf("gpu %s: %w", op, metrics.ErrSensorUnavailable)
	}
	return fmt.Errorf("gpu %s: %s", op, nvml.ErrorString(ret))
}
