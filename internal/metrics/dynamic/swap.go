package dynamic

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/monify-labs/telemon/pkg/models"
)

// CollectSwap returns swap used percent. Hosts without swap report unavailable.
func CollectSwap(ctx context.Context) (models.Optional[float64], error) {
	swap, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return models.None[float64](), fmt.Errorf("failed to read swap: %w", err)
	}
	if swap.Total == 0 {
		return models.None[float64](), nil
	}
	return models.Percent(swap.UsedPercent), nil
}
