package static

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HardwareInfo contains CPU and memory hardware specifications
type HardwareInfo struct {
	CPUModel    string
	CPUCores    int
	CPUThreads  int
	TotalMemory uint64
	RAMSpeedMHz uint32 // 0 when unknown
}

// CollectHardwareInfo gathers CPU and memory hardware specifications.
// Core counts and memory are best effort; only a missing CPU model is an error.
func CollectHardwareInfo(ctx context.Context) (*HardwareInfo, error) {
	cpuInfo, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read cpu info: %w", err)
	}

	// Get CPU model from first CPU (usually all are the same)
	cpuModel := ""
	if len(cpuInfo) > 0 {
		cpuModel = strings.TrimSpace(cpuInfo[0].ModelName)
	}
	if cpuModel == "" {
		return nil, fmt.Errorf("failed to read cpu info: empty model name")
	}

	info := &HardwareInfo{CPUModel: cpuModel}

	if physicalCores, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.CPUCores = physicalCores
	}
	if logicalCores, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.CPUThreads = logicalCores
	}
	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		info.TotalMemory = memInfo.Total
	}
	if speed, err := RAMSpeedMHz(ctx); err == nil {
		info.RAMSpeedMHz = speed
	}

	return info, nil
}
