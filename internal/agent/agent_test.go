package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monify-labs/telemon/internal/clock"
	"github.com/monify-labs/telemon/internal/metrics"
	"github.com/monify-labs/telemon/internal/ranker"
	"github.com/monify-labs/telemon/pkg/models"
)

var epoch = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

type fakeCollector struct {
	clock   *clock.FakeClock
	work    time.Duration // simulated collection time
	network uint64
	calls   int
	opened  bool
	closed  bool
	openErr error
}

func (f *fakeCollector) Open(context.Context) error {
	f.opened = true
	return f.openErr
}

func (f *fakeCollector) Collect(context.Context) *models.Snapshot {
	f.calls++
	f.clock.Advance(f.work)
	f.network += 1000
	return &models.Snapshot{
		Timestamp:          f.clock.Now(),
		CPUUsagePercent:    models.Some(float64(10 * f.calls)),
		MemoryUsagePercent: models.Some(50.0),
		Storage:            []models.StorageEntry{},
		NetworkBytesTotal:  models.Some(f.network),
	}
}

func (f *fakeCollector) GPUShare(_ context.Context, snap *models.Snapshot) ranker.GPUShare {
	return ranker.GPUShare{SystemWide: snap.GPUUsagePercent}
}

func (f *fakeCollector) Host(context.Context) models.HostInfo {
	return models.HostInfo{Hostname: "bench-01"}
}

func (f *fakeCollector) Close() error {
	f.closed = true
	return nil
}

type fakeRanker struct {
	err    error
	failOn int
	calls  int
}

func (f *fakeRanker) Rank(_ context.Context, share ranker.GPUShare) (models.RankedProcessList, error) {
	f.calls++
	if f.err != nil && f.calls >= f.failOn {
		return models.RankedProcessList{}, f.err
	}
	return models.RankedProcessList{
		Key: "cpu",
		Processes: []models.RankedProcess{
			{ProcessSample: models.ProcessSample{PID: 1, Name: "init", CPUPercent: 1}, Resource: models.RankCPU, Score: 1},
		},
		GPUAttribution: share.Attribution(),
	}, nil
}

type recordingSink struct {
	mu      sync.Mutex
	frames  []models.Frame
	closed  bool
	onFrame func(*models.Frame)
	err     error
}

func (r *recordingSink) Present(_ context.Context, f *models.Frame) error {
	r.mu.Lock()
	r.frames = append(r.frames, *f)
	r.mu.Unlock()
	if r.onFrame != nil {
		r.onFrame(f)
	}
	return r.err
}

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

func newTestAgent(t *testing.T, iterations int, interval time.Duration) (*Agent, *fakeCollector, *fakeRanker, *recordingSink, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(epoch)
	col := &fakeCollector{clock: clk}
	rk := &fakeRanker{}
	out := &recordingSink{}
	logger, _ := test.NewNullLogger()

	a, err := NewAgent(Options{
		Interval:    interval,
		Iterations:  iterations,
		HistorySize: 50,
		Collector:   col,
		Ranker:      rk,
		Sink:        out,
		Clock:       clk,
		Log:         logger,
	})
	require.NoError(t, err)
	return a, col, rk, out, clk
}

func TestRunFixedIterations(t *testing.T) {
	// 60s duration at a 20s interval
	a, col, _, out, clk := newTestAgent(t, 3, 20*time.Second)
	assert.Equal(t, StateIdle, a.GetStatus().State)

	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, 3, col.calls)
	assert.Len(t, out.frames, 3)
	assert.Equal(t, []time.Duration{20 * time.Second, 20 * time.Second}, clk.Sleeps())

	status := a.GetStatus()
	assert.Equal(t, StateStopped, status.State)
	assert.Equal(t, uint64(3), status.Ticks)
	assert.Equal(t, "bench-01", status.Hostname)
	assert.True(t, col.opened)
	assert.True(t, col.closed)
	assert.True(t, out.closed)
}

func TestRunFramesCarryHistoryAndNetworkDelta(t *testing.T) {
	a, _, _, out, _ := newTestAgent(t, 3, time.Second)
	require.NoError(t, a.Run(context.Background()))

	require.Len(t, out.frames, 3)
	for i, f := range out.frames {
		assert.Equal(t, i+1, f.Tick)
		assert.Equal(t, "bench-01", f.Host.Hostname)
	}

	assert.False(t, out.frames[0].NetworkBytesSinceLast.Valid)
	assert.Equal(t, models.Some(uint64(1000)), out.frames[1].NetworkBytesSinceLast)

	assert.Equal(t, []float64{10}, out.frames[0].History[models.MetricCPU])
	assert.Equal(t, []float64{10, 20, 30}, out.frames[2].History[models.MetricCPU])
	assert.Empty(t, out.frames[2].History[models.MetricGPU], "unavailable readings are not appended")

	// Frames hold copies
	out.frames[2].History[models.MetricCPU][0] = -1
	assert.Equal(t, 10.0, a.History()[models.MetricCPU][0])
}

func TestRunOverrunStartsNextTickImmediately(t *testing.T) {
	a, col, _, _, clk := newTestAgent(t, 3, 20*time.Second)
	col.work = 25 * time.Second

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, []time.Duration{0, 0}, clk.Sleeps())
}

func TestRunSleepsRemainingInterval(t *testing.T) {
	a, col, _, _, clk := newTestAgent(t, 2, 20*time.Second)
	col.work = 5 * time.Second

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, []time.Duration{15 * time.Second}, clk.Sleeps())
}

func TestRunStopsOnEnumerationFailure(t *testing.T) {
	a, col, rk, out, _ := newTestAgent(t, 5, time.Second)
	rk.err = fmt.Errorf("%w: permission denied", metrics.ErrNoProcesses)
	rk.failOn = 2

	err := a.Run(context.Background())
	assert.ErrorIs(t, err, metrics.ErrNoProcesses)

	assert.Len(t, out.frames, 1)
	status := a.GetStatus()
	assert.Equal(t, StateStopped, status.State)
	assert.Equal(t, uint64(1), status.ErrorCount)
	assert.True(t, col.closed)
	assert.True(t, out.closed)
}

func TestRunContinuesOnOtherRankErrors(t *testing.T) {
	a, _, rk, out, _ := newTestAgent(t, 2, time.Second)
	rk.err = errors.New("transient")
	rk.failOn = 1

	require.NoError(t, a.Run(context.Background()))
	require.Len(t, out.frames, 2)
	assert.Empty(t, out.frames[0].Processes.Processes)
	assert.Equal(t, uint64(2), a.GetStatus().ErrorCount)
}

func TestRunCancelledBetweenTicks(t *testing.T) {
	a, col, _, out, _ := newTestAgent(t, 0, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out.onFrame = func(f *models.Frame) {
		if f.Tick == 2 {
			cancel()
		}
	}

	require.NoError(t, a.Run(ctx))
	assert.Len(t, out.frames, 2, "the tick in flight completes")
	assert.Equal(t, StateStopped, a.GetStatus().State)
	assert.True(t, col.closed)
}

// stallingRanker blocks until its context ends, like a hung /proc read
type stallingRanker struct{ healthyAfter int }

func (s *stallingRanker) Rank(ctx context.Context, _ ranker.GPUShare) (models.RankedProcessList, error) {
	if s.healthyAfter > 0 {
		s.healthyAfter--
		<-ctx.Done()
		return models.RankedProcessList{}, ctx.Err()
	}
	return models.RankedProcessList{Key: "cpu", Processes: []models.RankedProcess{}}, nil
}

func TestRunRankOverrunIsNotFatal(t *testing.T) {
	clk := clock.Fake(epoch)
	out := &recordingSink{}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	a, err := NewAgent(Options{
		Interval:    time.Second,
		Iterations:  3,
		HistorySize: 10,
		RankBudget:  50 * time.Millisecond,
		Collector:   &fakeCollector{clock: clk},
		Ranker:      &stallingRanker{healthyAfter: 2},
		Sink:        out,
		Clock:       clk,
		Log:         logger,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("tick did not honour the rank budget")
	}

	require.Len(t, out.frames, 3)
	assert.Empty(t, out.frames[0].Processes.Processes)
	assert.Empty(t, out.frames[1].Processes.Processes)
	assert.Equal(t, uint64(2), a.GetStatus().ErrorCount)

	levels := map[logrus.Level]int{}
	for _, e := range hook.AllEntries() {
		if e.Message == "Process ranking failed" || e.Message == "Process ranking recovered" {
			levels[e.Level]++
		}
	}
	assert.Equal(t, 1, levels[logrus.WarnLevel])
	assert.Equal(t, 1, levels[logrus.DebugLevel])
	assert.Equal(t, 1, levels[logrus.InfoLevel])
}

func TestRankIgnoringContextTimesOut(t *testing.T) {
	a, _, _, _, _ := newTestAgent(t, 1, time.Second)
	a.rankBudget = 20 * time.Millisecond
	release := make(chan struct{})
	defer close(release)
	a.ranker = rankFunc(func(context.Context, ranker.GPUShare) (models.RankedProcessList, error) {
		<-release
		return models.RankedProcessList{}, nil
	})

	_, err := a.rank(context.Background(), ranker.GPUShare{})
	assert.ErrorIs(t, err, metrics.ErrCollectionTimeout)
	assert.NotErrorIs(t, err, metrics.ErrNoProcesses)
}

type rankFunc func(context.Context, ranker.GPUShare) (models.RankedProcessList, error)

func (f rankFunc) Rank(ctx context.Context, share ranker.GPUShare) (models.RankedProcessList, error) {
	return f(ctx, share)
}

func TestRunSinkErrorsAreNotFatal(t *testing.T) {
	a, _, _, out, _ := newTestAgent(t, 2, time.Second)
	out.err = errors.New("disk full")

	require.NoError(t, a.Run(context.Background()))
	assert.Len(t, out.frames, 2)
	assert.Equal(t, uint64(2), a.GetStatus().ErrorCount)
}

func TestRunOpenFailureStillReleases(t *testing.T) {
	a, col, _, out, _ := newTestAgent(t, 1, time.Second)
	col.openErr = errors.New("nvml broke")

	assert.Error(t, a.Run(context.Background()))
	assert.Empty(t, out.frames)
	assert.True(t, col.closed)
	assert.True(t, out.closed)
}

func TestRunTwiceFails(t *testing.T) {
	a, _, _, _, _ := newTestAgent(t, 1, time.Second)
	require.NoError(t, a.Run(context.Background()))
	assert.Error(t, a.Run(context.Background()))
}

func TestNewAgentValidates(t *testing.T) {
	_, err := NewAgent(Options{Interval: 0})
	assert.Error(t, err)

	_, err = NewAgent(Options{Interval: time.Second})
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "sampling", StateSampling.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestHostRefreshTicks(t *testing.T) {
	assert.Equal(t, 720, hostRefreshTicks(5*time.Second))
	assert.Equal(t, 1, hostRefreshTicks(2*time.Hour))
}
