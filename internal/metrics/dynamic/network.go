package dynamic

import (
	"context"
	"fmt"

	gopsutilNet "github.com/shirou/gopsutil/v3/net"
)

// CollectNetworkTotal returns bytes sent plus received across all interfaces
// since boot. It is a cumulative counter; rates are the caller's concern.
func CollectNetworkTotal(ctx context.Context) (uint64, error) {
	counters, err := gopsutilNet.IOCountersWithContext(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("failed to read network counters: %w", err)
	}
	if len(counters) == 0 {
		return 0, fmt.Errorf("failed to read network counters: none reported")
	}

	var total uint64
	for _, counter := range counters {
		total += counter.BytesSent + counter.BytesRecv
	}
	return total, nil
}
