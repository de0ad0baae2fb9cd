package dynamic

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/monify-labs/telemon/pkg/models"
)

// MemoryUsage contains physical memory usage
type MemoryUsage struct {
	Total       uint64
	Available   uint64
	UsedPercent float64
}

// CollectMemory reads physical memory. Used percent is (total-available)/total.
func CollectMemory(ctx context.Context) (*MemoryUsage, error) {
	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory: %w", err)
	}
	return MemoryFromTotals(vmem.Total, vmem.Available)
}

// MemoryFromTotals derives usage from total and available bytes
func MemoryFromTotals(total, available uint64) (*MemoryUsage, error) {
	if total == 0 {
		return nil, fmt.Errorf("failed to read memory: total is zero")
	}
	if available > total {
		available = total
	}
	return &MemoryUsage{
		Total:       total,
		Available:   available,
		UsedPercent: models.ClampPercent(float64(total-available) / float64(total) * 100),
	}, nil
}
