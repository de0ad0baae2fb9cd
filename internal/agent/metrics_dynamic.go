package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/monify-labs/telemon/internal/clock"
	"github.com/monify-labs/telemon/internal/config"
	"github.com/monify-labs/telemon/internal/metrics"
	"github.com/monify-labs/telemon/internal/metrics/dynamic"
	"github.com/monify-labs/telemon/internal/metrics/gpu"
	"github.com/monify-labs/telemon/internal/metrics/sensors"
	"github.com/monify-labs/telemon/internal/ranker"
	"github.com/monify-labs/telemon/pkg/models"
)

// Sources are the metric readers a Collector composes. Nil sources read as
// unavailable.
type Sources struct {
	CPU     func(ctx context.Context) (float64, error)
	Memory  func(ctx context.Context) (*dynamic.MemoryUsage, error)
	Swap    func(ctx context.Context) (models.Optional[float64], error)
	Storage func(ctx context.Context) ([]models.StorageEntry, error)
	Network func(ctx context.Context) (uint64, error)
	Sensors sensors.Provider
	OpenGPU gpu.Opener
}

// DefaultSources wires the gopsutil, NVML and platform sensor readers
func DefaultSources(cpuWindow time.Duration) Sources {
	return Sources{
		CPU:     dynamic.NewCPUCollector(cpuWindow).Collect,
		Memory:  dynamic.CollectMemory,
		Swap:    dynamic.CollectSwap,
		Storage: dynamic.CollectStorage,
		Network: dynamic.CollectNetworkTotal,
		Sensors: sensors.Platform(),
		OpenGPU: gpu.OpenNVML,
	}
}

// CollectorOptions configure a Collector
type CollectorOptions struct {
	Sources         Sources
	Static          *StaticCollector
	Budget          time.Duration
	GPUIndex        int
	CPUSensorLabels []string
	Clock           clock.Clock
	Log             logrus.FieldLogger
}

// Collector produces one Snapshot per call. A failing source degrades its
// own fields to unavailable and never fails the snapshot.
type Collector struct {
	sources      Sources
	static       *StaticCollector
	budget       time.Duration
	gpuIndex     int
	sensorLabels []string
	clock        clock.Clock
	log          logrus.FieldLogger

	gpu                gpu.Device
	perProcessGPUUnsup bool
	warned             map[string]bool
}

// NewCollector creates a collector
func NewCollector(opts CollectorOptions) *Collector {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Budget <= 0 {
		opts.Budget = config.DefaultCollectBudget
	}
	if opts.Static == nil {
		opts.Static = NewStaticCollector(config.StaticRefreshInterval, opts.Clock)
	}
	return &Collector{
		sources:      opts.Sources,
		static:       opts.Static,
		budget:       opts.Budget,
		gpuIndex:     opts.GPUIndex,
		sensorLabels: opts.CPUSensorLabels,
		clock:        opts.Clock,
		log:          opts.Log.WithField("component", "collector"),
		warned:       make(map[string]bool),
	}
}

// Open acquires the GPU handle for the whole run. A GPU that is missing or
// fails to open is not an error: every GPU field stays unavailable until Close.
func (c *Collector) Open(ctx context.Context) error {
	if c.sources.OpenGPU == nil {
		return nil
	}

	dev, err := c.sources.OpenGPU(c.gpuIndex)
	if err != nil {
		entry := c.log.WithFields(logrus.Fields{"source": "gpu", "gpu_index": c.gpuIndex}).WithError(err)
		if errors.Is(err, metrics.ErrDeviceAbsent) {
			entry.Warn("No GPU available, GPU metrics disabled")
		} else {
			entry.Warn("Failed to open GPU, GPU metrics disabled")
		}
		return nil
	}

	c.gpu = dev
	c.log.WithField("gpu_index", c.gpuIndex).Info("GPU handle acquired")
	return nil
}

// Close releases the GPU handle
func (c *Collector) Close() error {
	if c.gpu == nil {
		return nil
	}
	dev := c.gpu
	c.gpu = nil
	if err := dev.Close(); err != nil {
		return fmt.Errorf("failed to release gpu: %w", err)
	}
	return nil
}

// Host returns the static host header
func (c *Collector) Host(ctx context.Context) models.HostInfo {
	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()
	return c.static.Get(ctx).Host
}

// Collect reads every source once within the collection budget
func (c *Collector) Collect(ctx context.Context) *models.Snapshot {
	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	snap := &models.Snapshot{
		Timestamp: c.clock.Now(),
		Storage:   []models.StorageEntry{},
	}

	// CPU (blocks for the sampling window)
	if c.sources.CPU != nil {
		if v, err := within(ctx, c.sources.CPU); c.check("cpu", err) {
			snap.CPUUsagePercent = models.Percent(v)
		}
	}

	// CPU temperature
	temp, err := within(ctx, func(ctx context.Context) (float64, error) {
		return sensors.CPUTemperature(ctx, c.sources.Sensors, c.sensorLabels)
	})
	if c.check("cpu_temperature", err) {
		snap.CPUTemperatureCelsius = models.Some(temp)
	}

	// CPU model (cached, refreshed hourly)
	info, err := within(ctx, func(ctx context.Context) (*StaticInfo, error) {
		return c.static.Get(ctx), nil
	})
	if c.check("cpu_model", err) && info != nil {
		snap.CPUModel = info.CPUModel
		snap.RAMSpeedMHz = info.RAMSpeedMHz
	}

	// GPU
	if c.gpu != nil {
		dev := c.gpu
		reading, err := within(ctx, func(context.Context) (gpu.Reading, error) {
			return gpu.Read(dev), nil
		})
		if c.check("gpu", err) {
			snap.GPUUsagePercent = reading.UsagePercent
			snap.GPUTemperatureCelsius = reading.TemperatureC
			snap.GPUModel = reading.Name
			snap.GPUMemoryUsedBytes = reading.MemoryUsedBytes
			snap.GPUMemoryTotalBytes = reading.MemoryTotalBytes
			snap.GPUMemoryPercent = reading.MemoryPercent
		}
	}

	// Memory
	if c.sources.Memory != nil {
		if usage, err := within(ctx, c.sources.Memory); c.check("memory", err) && usage != nil {
			snap.MemoryUsagePercent = models.Percent(usage.UsedPercent)
			snap.MemoryTotalBytes = models.Some(usage.Total)
		}
	}

	// Swap
	if c.sources.Swap != nil {
		if swap, err := within(ctx, c.sources.Swap); c.check("swap", err) {
			snap.SwapUsagePercent = swap
		}
	}

	// Storage
	if c.sources.Storage != nil {
		if entries, err := within(ctx, c.sources.Storage); c.check("storage", err) && entries != nil {
			snap.Storage = entries
		}
	}

	// Network
	if c.sources.Network != nil {
		if total, err := within(ctx, c.sources.Network); c.check("network", err) {
			snap.NetworkBytesTotal = models.Some(total)
		}
	}

	return snap
}

// GPUShare returns the GPU figures to attach to processes. Per-process
// samples are used where the driver has them; otherwise the system-wide
// utilization of snap is shared by every process.
func (c *Collector) GPUShare(ctx context.Context, snap *models.Snapshot) ranker.GPUShare {
	share := ranker.GPUShare{}
	if snap != nil {
		share.SystemWide = snap.GPUUsagePercent
	}
	if c.gpu == nil || c.perProcessGPUUnsup {
		return share
	}

	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	dev := c.gpu
	perProcess, err := within(ctx, func(context.Context) (map[int32]float64, error) {
		return dev.ProcessUtilization()
	})
	if errors.Is(err, gpu.ErrPerProcessUnsupported) {
		c.perProcessGPUUnsup = true
		c.log.WithField("source", "gpu_process").Info("Per-process GPU utilization unsupported, using system-wide figure")
		return share
	}
	if c.check("gpu_process", err) {
		share.PerProcess = perProcess
	}
	return share
}

// check reports whether a source read succeeded. The first failure of a
// source is logged at warn and repeats at debug until it recovers.
func (c *Collector) check(source string, err error) bool {
	if err == nil {
		if c.warned[source] {
			delete(c.warned, source)
			c.log.WithField("source", source).Info("Metric available again")
		}
		return true
	}

	entry := c.log.WithField("source", source).WithError(err)
	msg := "Metric unavailable"
	if errors.Is(err, metrics.ErrCollectionTimeout) {
		msg = "Metric read exceeded collection budget"
	}

	if c.warned[source] {
		entry.Debug(msg)
		return false
	}
	c.warned[source] = true
	entry.Warn(msg)
	return false
}

// within runs fn and gives up when ctx ends first. Sources that ignore
// their context are left to finish in the background.
func within[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	if err := ctx.Err(); err != nil {
		var zero T
		return zero, fmt.Errorf("%w: %v", metrics.ErrCollectionTimeout, err)
	}

	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %v", metrics.ErrCollectionTimeout, ctx.Err())
	}
}
