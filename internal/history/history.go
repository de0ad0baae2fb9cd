// Package history keeps a bounded rolling window of scalar readings per
// metric for charting.
package history

import (
	"sort"

	"github.com/monify-labs/telemon/pkg/models"
)

// DefaultCapacity is the number of readings kept per series
const DefaultCapacity = 50

// Buffer holds one FIFO series per metric name. It is owned by the sampling
// loop; readers get copies.
type Buffer struct {
	capacity int
	series   map[string][]float64
}

// New creates a Buffer. A non-positive capacity uses DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		series:   make(map[string][]float64),
	}
}

// Capacity returns the maximum length of every series
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Append adds v to the named series, evicting the oldest reading once the
// series is over capacity.
func (b *Buffer) Append(name string, v float64) {
	s := append(b.series[name], v)

	// Keep only the last capacity readings
	if len(s) > b.capacity {
		s = append(s[:0:0], s[len(s)-b.capacity:]...)
	}
	b.series[name] = s
}

// AppendReading appends an available reading. Unavailable readings are
// skipped, not zero-filled, so series may have uneven spacing in time.
func (b *Buffer) AppendReading(name string, r models.Optional[float64]) bool {
	v, ok := r.Get()
	if !ok {
		return false
	}
	b.Append(name, v)
	return true
}

// Series returns a copy of the named series, oldest first
func (b *Buffer) Series(name string) []float64 {
	s := b.series[name]
	out := make([]float64, len(s))
	copy(out, s)
	return out
}

// Len returns the length of the named series
func (b *Buffer) Len(name string) int {
	return len(b.series[name])
}

// Names returns the series names in sorted order
func (b *Buffer) Names() []string {
	names := make([]string, 0, len(b.series))
	for name := range b.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// View returns a copy of every series
func (b *Buffer) View() map[string][]float64 {
	out := make(map[string][]float64, len(b.series))
	for name := range b.series {
		out[name] = b.Series(name)
	}
	return out
}

// Record appends the charted readings of snap
func (b *Buffer) Record(snap *models.Snapshot) {
	b.AppendReading(models.MetricCPU, snap.CPUUsagePercent)
	b.AppendReading(models.MetricMemory, snap.MemoryUsagePercent)
	b.AppendReading(models.MetricGPU, snap.GPUUsagePercent)
	b.AppendReading(models.MetricCPUTemp, snap.CPUTemperatureCelsius)
	b.AppendReading(models.MetricGPUTemp, snap.GPUTemperatureCelsius)
}
