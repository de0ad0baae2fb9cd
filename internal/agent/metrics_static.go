package agent

import (
	"context"
	"sync"
	"time"

	"github.com/monify-labs/telemon/internal/clock"
	"github.com/monify-labs/telemon/internal/metrics/static"
	"github.com/monify-labs/telemon/pkg/models"
)

// StaticInfo is rarely-changing host and hardware identity
type StaticInfo struct {
	Host        models.HostInfo
	CPUModel    models.Optional[string]
	TotalMemory models.Optional[uint64]
	RAMSpeedMHz models.Optional[uint64]
}

// StaticCollector caches static info and refreshes it on an interval
type StaticCollector struct {
	hardware func(ctx context.Context) (*static.HardwareInfo, error)
	system   func(ctx context.Context) (*models.HostInfo, error)
	refresh  time.Duration
	clock    clock.Clock

	lastRefresh time.Time
	cache       *StaticInfo
	mu          sync.RWMutex
}

// NewStaticCollector creates a static metrics collector
func NewStaticCollector(refresh time.Duration, clk clock.Clock) *StaticCollector {
	if clk == nil {
		clk = clock.Real()
	}
	return &StaticCollector{
		hardware: static.CollectHardwareInfo,
		system:   static.CollectSystemInfo,
		refresh:  refresh,
		clock:    clk,
	}
}

// Collect queries host and hardware info. Each part is best effort; the
// cache only advances when the hardware part succeeds.
func (s *StaticCollector) Collect(ctx context.Context) *StaticInfo {
	var wg sync.WaitGroup
	var mu sync.Mutex
	result := &StaticInfo{}

	// System info
	wg.Add(1)
	go func() {
		defer wg.Done()
		if info, err := s.system(ctx); err == nil && info != nil {
			mu.Lock()
			result.Host.Hostname = info.Hostname
			result.Host.Platform = info.Platform
			result.Host.PlatformVersion = info.PlatformVersion
			result.Host.KernelVersion = info.KernelVersion
			result.Host.Arch = info.Arch
			result.Host.BootTime = info.BootTime
			mu.Unlock()
		}
	}()

	// Hardware info
	hardwareOK := false
	wg.Add(1)
	go func() {
		defer wg.Done()
		if info, err := s.hardware(ctx); err == nil && info != nil {
			mu.Lock()
			hardwareOK = true
			result.CPUModel = models.Some(info.CPUModel)
			result.Host.CPUCores = info.CPUCores
			result.Host.CPUThreads = info.CPUThreads
			if info.TotalMemory > 0 {
				result.TotalMemory = models.Some(info.TotalMemory)
			}
			if info.RAMSpeedMHz > 0 {
				result.RAMSpeedMHz = models.Some(uint64(info.RAMSpeedMHz))
			}
			mu.Unlock()
		}
	}()

	wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Keep the last good result and retry on the next call
	if !hardwareOK {
		if s.cache != nil {
			return s.cache
		}
		return result
	}

	s.cache = result
	s.lastRefresh = s.clock.Now()
	return result
}

// ShouldRefresh checks if static metrics need refreshing
func (s *StaticCollector) ShouldRefresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Force refresh if never collected
	if s.cache == nil {
		return true
	}

	return s.clock.Now().Sub(s.lastRefresh) >= s.refresh
}

// Get returns cached static info, refreshing it when stale
func (s *StaticCollector) Get(ctx context.Context) *StaticInfo {
	if s.ShouldRefresh() {
		return s.Collect(ctx)
	}
	return s.GetCached()
}

// GetCached returns cached static metrics
func (s *StaticCollector) GetCached() *StaticInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache
}
