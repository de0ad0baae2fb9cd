package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/monify-labs/telemon/internal/clock"
	"github.com/monify-labs/telemon/internal/config"
	"github.com/monify-labs/telemon/internal/history"
	"github.com/monify-labs/telemon/internal/metrics"
	"github.com/monify-labs/telemon/internal/ranker"
	"github.com/monify-labs/telemon/internal/sink"
	"github.com/monify-labs/telemon/pkg/models"
)

// State is the lifecycle phase of the sampling loop
type State int

const (
	StateIdle State = iota
	StateSampling
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSampling:
		return "sampling"
	case StateStopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// SnapshotCollector produces the system snapshot of a tick
type SnapshotCollector interface {
	Open(ctx context.Context) error
	Collect(ctx context.Context) *models.Snapshot
	GPUShare(ctx context.Context, snap *models.Snapshot) ranker.GPUShare
	Host(ctx context.Context) models.HostInfo
	Close() error
}

// ProcessRanker produces the ranked process list of a tick
type ProcessRanker interface {
	Rank(ctx context.Context, share ranker.GPUShare) (models.RankedProcessList, error)
}

// Options configure an Agent
type Options struct {
	Interval    time.Duration
	Iterations  int // 0 samples until ctx is cancelled
	HistorySize int
	RankBudget  time.Duration // time allowed to rank processes per tick
	Collector   SnapshotCollector
	Ranker      ProcessRanker
	Sink        sink.Sink
	Clock       clock.Clock
	Log         logrus.FieldLogger
}

// Status is a point-in-time view of the loop
type Status struct {
	State      State
	Hostname   string
	Version    string
	StartTime  time.Time
	LastTick   time.Time
	Ticks      uint64
	ErrorCount uint64
}

// Agent is the sampling loop. Each tick collects a snapshot, ranks
// processes, records history and presents one frame, strictly in sequence.
type Agent struct {
	interval   time.Duration
	iterations int
	rankBudget time.Duration
	collector  SnapshotCollector
	ranker     ProcessRanker
	sink       sink.Sink
	clock      clock.Clock
	log        logrus.FieldLogger
	history    *history.Buffer

	// Owned by the loop
	host       models.HostInfo
	prev       *models.Snapshot
	rankFailed bool

	// State
	mu         sync.RWMutex
	state      State
	startTime  time.Time
	lastTick   time.Time
	ticks      uint64
	errorCount uint64
}

// NewAgent creates a sampling agent
func NewAgent(opts Options) (*Agent, error) {
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", opts.Interval)
	}
	if opts.Iterations < 0 {
		return nil, fmt.Errorf("iterations must not be negative, got %d", opts.Iterations)
	}
	if opts.Collector == nil || opts.Ranker == nil || opts.Sink == nil {
		return nil, errors.New("collector, ranker and sink are required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.RankBudget <= 0 {
		opts.RankBudget = config.DefaultCollectBudget
	}

	return &Agent{
		interval:   opts.Interval,
		iterations: opts.Iterations,
		rankBudget: opts.RankBudget,
		collector:  opts.Collector,
		ranker:     opts.Ranker,
		sink:       opts.Sink,
		clock:      opts.Clock,
		log:        opts.Log.WithField("component", "agent"),
		history:    history.New(opts.HistorySize),
		state:      StateIdle,
	}, nil
}

// Run samples until the iteration count is reached or ctx is cancelled.
// Cancellation is observed between ticks; a started tick always completes.
// The collector and sink are released on every exit path.
func (a *Agent) Run(ctx context.Context) (err error) {
	a.mu.Lock()
	if a.state != StateIdle {
		a.mu.Unlock()
		return fmt.Errorf("agent cannot start from state %s", a.state)
	}
	a.state = StateSampling
	a.startTime = a.clock.Now()
	a.mu.Unlock()

	defer func() {
		if cerr := a.sink.Close(); cerr != nil {
			a.log.WithError(cerr).Error("Failed to close sink")
		}
		if cerr := a.collector.Close(); cerr != nil {
			a.log.WithError(cerr).Error("Failed to release collector")
		}
		a.setState(StateStopped)
		a.log.WithField("ticks", a.GetStatus().Ticks).Info("Agent stopped")
	}()

	if err := a.collector.Open(ctx); err != nil {
		return err
	}

	a.host = a.collector.Host(ctx)
	a.log.WithFields(logrus.Fields{
		"hostname":   a.host.Hostname,
		"interval":   a.interval,
		"iterations": a.iterations,
	}).Info("Agent starting")

	for tick := 1; a.iterations == 0 || tick <= a.iterations; tick++ {
		if ctx.Err() != nil {
			a.log.Info("Agent stopping: context cancelled")
			return nil
		}

		start := a.clock.Now()
		if err := a.tick(context.WithoutCancel(ctx), tick); err != nil {
			return err
		}

		if a.iterations != 0 && tick == a.iterations {
			return nil
		}

		// Space tick starts by interval; an overrun starts the next one at once
		wait := a.interval - a.clock.Now().Sub(start)
		if wait < 0 {
			a.log.WithField("overrun", -wait).Debug("Tick exceeded interval")
			wait = 0
		}
		select {
		case <-ctx.Done():
			a.log.Info("Agent stopping: context cancelled")
			return nil
		case <-a.clock.After(wait):
		}
	}
	return nil
}

// tick runs collect, rank, record and present once
func (a *Agent) tick(ctx context.Context, n int) error {
	snap := a.collector.Collect(ctx)
	if snap == nil {
		snap = &models.Snapshot{Timestamp: a.clock.Now(), Storage: []models.StorageEntry{}}
	}

	share := a.collector.GPUShare(ctx, snap)
	procs, err := a.rank(ctx, share)
	if err != nil {
		a.incrementErrorCount()
		if errors.Is(err, metrics.ErrNoProcesses) {
			a.log.WithError(err).WithField("tick", n).Error("Process enumeration failed, stopping")
			return err
		}
		entry := a.log.WithError(err).WithField("tick", n)
		if a.rankFailed {
			entry.Debug("Process ranking failed")
		} else {
			entry.Warn("Process ranking failed")
		}
		a.rankFailed = true
		procs = models.RankedProcessList{Processes: []models.RankedProcess{}, GPUAttribution: share.Attribution()}
	} else if a.rankFailed {
		a.rankFailed = false
		a.log.WithField("tick", n).Info("Process ranking recovered")
	}

	a.history.Record(snap)

	if n%hostRefreshTicks(a.interval) == 0 {
		a.host = a.collector.Host(ctx)
	}

	frame := &models.Frame{
		Tick:                  n,
		Host:                  a.host,
		Snapshot:              *snap,
		Processes:             procs,
		History:               a.history.View(),
		NetworkBytesSinceLast: models.NetworkDelta(a.prev, snap),
	}
	a.prev = snap

	if err := a.sink.Present(ctx, frame); err != nil {
		a.incrementErrorCount()
		a.log.WithError(err).WithField("tick", n).Warn("Failed to present frame")
	}

	a.mu.Lock()
	a.ticks++
	a.lastTick = snap.Timestamp
	a.mu.Unlock()

	a.log.WithFields(logrus.Fields{
		"tick":      n,
		"cpu":       snap.CPUUsagePercent.Render("%.1f"),
		"mem":       snap.MemoryUsagePercent.Render("%.1f"),
		"processes": len(procs.Processes),
	}).Debug("Tick complete")
	return nil
}

// rank runs the ranker within the rank budget. An overrun reads as
// ErrCollectionTimeout, never as a failed enumeration.
func (a *Agent) rank(ctx context.Context, share ranker.GPUShare) (models.RankedProcessList, error) {
	ctx, cancel := context.WithTimeout(ctx, a.rankBudget)
	defer cancel()
	return within(ctx, func(ctx context.Context) (models.RankedProcessList, error) {
		return a.ranker.Rank(ctx, share)
	})
}

// hostRefreshTicks is how many ticks pass between host header lookups.
// The static collector caches, so this only bounds how often we ask.
func hostRefreshTicks(interval time.Duration) int {
	n := int(config.StaticRefreshInterval / interval)
	if n < 1 {
		return 1
	}
	return n
}

// History returns a copy of every recorded series
func (a *Agent) History() map[string][]float64 {
	return a.history.View()
}

// GetStatus returns the current status of the agent
func (a *Agent) GetStatus() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return Status{
		State:      a.state,
		Hostname:   a.host.Hostname,
		Version:    config.Version,
		StartTime:  a.startTime,
		LastTick:   a.lastTick,
		Ticks:      a.ticks,
		ErrorCount: a.errorCount,
	}
}

func (a *Agent) setState(s State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = s
}

// incrementErrorCount increments the error counter
func (a *Agent) incrementErrorCount() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errorCount++
}
