package models

import "time"

// Snapshot is one point-in-time bundle of every collected metric.
// Unavailable readings are explicit; a zero is a real zero.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	// CPU
	CPUUsagePercent       Optional[float64] `json:"cpu_usage_percent"`
	CPUTemperatureCelsius Optional[float64] `json:"cpu_temperature_celsius"`
	CPUModel              Optional[string]  `json:"cpu_model"`

	// GPU (device at the configured index)
	GPUUsagePercent       Optional[float64] `json:"gpu_usage_percent"`
	GPUTemperatureCelsius Optional[float64] `json:"gpu_temperature_celsius"`
	GPUModel              Optional[string]  `json:"gpu_model"`
	GPUMemoryUsedBytes    Optional[uint64]  `json:"gpu_memory_used_bytes"`
	GPUMemoryTotalBytes   Optional[uint64]  `json:"gpu_memory_total_bytes"`
	GPUMemoryPercent      Optional[float64] `json:"gpu_memory_percent"`

	// Memory, derived as (total-available)/total*100
	MemoryUsagePercent Optional[float64] `json:"memory_usage_percent"`
	MemoryTotalBytes   Optional[uint64]  `json:"memory_total_bytes"`
	RAMSpeedMHz        Optional[uint64]  `json:"ram_speed_mhz"`
	SwapUsagePercent   Optional[float64] `json:"swap_usage_percent"`

	// Storage, one entry per partition mounted at sample time
	Storage []StorageEntry `json:"storage_entries"`

	// NetworkBytesTotal is sent+received since boot. Rates are derived by the caller.
	NetworkBytesTotal Optional[uint64] `json:"network_bytes_total"`
}

// StorageEntry contains space usage for one mounted partition
type StorageEntry struct {
	DeviceID    string  `json:"device_id"`    // e.g. /dev/sda1 or C:
	MountPoint  string  `json:"mount"`        // e.g. / or C:\
	UsedBytes   uint64  `json:"used_bytes"`   // Used space in bytes
	FreeBytes   uint64  `json:"free_bytes"`   // Free space in bytes
	PercentUsed float64 `json:"percent_used"` // Usage percentage
}

// ProcessSample is one process as seen during a single tick.
// PIDs may be reused by the OS and are not an identity across ticks.
type ProcessSample struct {
	PID           int32             `json:"pid"`
	Name          string            `json:"name"`
	CPUPercent    float64           `json:"cpu_percent"`    // share of the whole machine
	MemoryPercent float64           `json:"memory_percent"` // share of physical memory
	GPUPercent    Optional[float64] `json:"gpu_percent"`
}

// RankKey selects the resource processes are ranked by
type RankKey string

const (
	RankCPU    RankKey = "cpu"
	RankMemory RankKey = "memory"
	RankGPU    RankKey = "gpu"
)

// Label returns the short resource label shown next to a ranked process
func (k RankKey) Label() string {
	switch k {
	case RankCPU:
		return "CPU"
	case RankMemory:
		return "RAM"
	case RankGPU:
		return "GPU"
	}
	return string(k)
}

// Score returns the value of key for p. Unavailable GPU readings rank below any reading.
func (k RankKey) Score(p ProcessSample) float64 {
	switch k {
	case RankMemory:
		return p.MemoryPercent
	case RankGPU:
		if v, ok := p.GPUPercent.Get(); ok {
			return v
		}
		return -1
	}
	return p.CPUPercent
}

// GPUAttribution tells how per-process GPU figures were obtained
type GPUAttribution string

const (
	GPUAttributionNone       GPUAttribution = "none"        // no GPU
	GPUAttributionPerProcess GPUAttribution = "per_process" // vendor per-process samples
	GPUAttributionSystem     GPUAttribution = "system"      // system-wide figure copied to every process
)

// RankedProcess is a process with the resource it was ranked under
type RankedProcess struct {
	ProcessSample
	Resource RankKey `json:"resource"`
	Score    float64 `json:"score"`
}

// RankedProcessList is the top-K processes for one tick, highest first
type RankedProcessList struct {
	Key            string          `json:"key"` // cpu, memory, gpu or merged
	Processes      []RankedProcess `json:"processes"`
	GPUAttribution GPUAttribution  `json:"gpu_attribution"`
	Skipped        int             `json:"skipped"` // vanished, denied or zombie
}

// HostInfo contains OS and hardware identity shown in presentation headers
type HostInfo struct {
	Hostname        string `json:"hostname"`
	Platform        string `json:"platform"`         // ubuntu, windows, darwin, ...
	PlatformVersion string `json:"platform_version"` // 22.04, 10.0.19045, ...
	KernelVersion   string `json:"kernel_version"`
	Arch            string `json:"arch"`
	CPUCores        int    `json:"cpu_cores"`
	CPUThreads      int    `json:"cpu_threads"`
	BootTime        uint64 `json:"boot_time"` // Unix timestamp
}

// Metric names used for history series
const (
	MetricCPU     = "cpu"
	MetricMemory  = "memory"
	MetricGPU     = "gpu"
	MetricCPUTemp = "cpu_temp"
	MetricGPUTemp = "gpu_temp"
)

// Frame is everything a presentation sink receives for one tick.
// History series are copies; sinks cannot write back into the core.
type Frame struct {
	Tick                  int                  `json:"tick"` // 1-based
	Host                  HostInfo             `json:"host"`
	Snapshot              Snapshot             `json:"snapshot"`
	Processes             RankedProcessList    `json:"processes"`
	History               map[string][]float64 `json:"history,omitempty"`
	NetworkBytesSinceLast Optional[uint64]     `json:"network_bytes_since_last"`
}

// NetworkDelta returns bytes moved between two snapshots. It is unavailable
// without a previous snapshot, when either counter is missing, or when the
// counter went backwards (reset or interface removal).
func NetworkDelta(prev, cur *Snapshot) Optional[uint64] {
	if prev == nil || cur == nil {
		return None[uint64]()
	}
	before, ok1 := prev.NetworkBytesTotal.Get()
	after, ok2 := cur.NetworkBytesTotal.Get()
	if !ok1 || !ok2 || after < before {
		return None[uint64]()
	}
	return Some(after - before)
}
