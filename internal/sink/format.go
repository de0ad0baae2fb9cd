package sink

import (
	"fmt"
	"strings"
	"time"

	"github.com/monify-labs/telemon/pkg/models"
)

const (
	gib = 1 << 30
	mib = 1 << 20
)

func percent(o models.Optional[float64]) string {
	if !o.Valid {
		return models.NotAvailable
	}
	return fmt.Sprintf("%.1f %%", o.Value)
}

func celsius(o models.Optional[float64]) string {
	if !o.Valid {
		return models.NotAvailable
	}
	return fmt.Sprintf("%.1f °C", o.Value)
}

func text(o models.Optional[string]) string {
	if !o.Valid || strings.TrimSpace(o.Value) == "" {
		return models.NotAvailable
	}
	return o.Value
}

func gigabytes(b uint64) string {
	return fmt.Sprintf("%.2f GB", float64(b)/gib)
}

func megabytes(o models.Optional[uint64]) string {
	if !o.Valid {
		return models.NotAvailable
	}
	return fmt.Sprintf("%.2f MB", float64(o.Value)/mib)
}

func megahertz(o models.Optional[uint64]) string {
	if !o.Valid {
		return models.NotAvailable
	}
	return fmt.Sprintf("%d MHz", o.Value)
}

func gpuMemory(s *models.Snapshot) string {
	used, ok1 := s.GPUMemoryUsedBytes.Get()
	total, ok2 := s.GPUMemoryTotalBytes.Get()
	if !ok1 || !ok2 {
		return models.NotAvailable
	}
	return fmt.Sprintf("%.0f/%.0f MiB (%s)", float64(used)/mib, float64(total)/mib, percent(s.GPUMemoryPercent))
}

func hostLine(h models.HostInfo) string {
	if h.Hostname == "" {
		return models.NotAvailable
	}
	parts := []string{h.Hostname}
	if h.Platform != "" {
		parts = append(parts, strings.TrimSpace(h.Platform+" "+h.PlatformVersion))
	}
	if h.KernelVersion != "" {
		parts = append(parts, "kernel "+h.KernelVersion)
	}
	if h.CPUThreads > 0 {
		parts = append(parts, fmt.Sprintf("%dC/%dT", h.CPUCores, h.CPUThreads))
	}
	return strings.Join(parts, " · ")
}

// uptime is the time between boot and the snapshot
func uptime(f *models.Frame) string {
	if f.Host.BootTime == 0 || f.Snapshot.Timestamp.IsZero() {
		return models.NotAvailable
	}
	d := f.Snapshot.Timestamp.Sub(time.Unix(int64(f.Host.BootTime), 0))
	if d < 0 {
		return models.NotAvailable
	}
	return d.Truncate(time.Minute).String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
