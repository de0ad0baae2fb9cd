package ranker

import (
	"context"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monify-labs/telemon/internal/metrics"
	"github.com/monify-labs/telemon/pkg/models"
)

type staticSource struct {
	samples []models.ProcessSample
	skipped int
	err     error
}

func (s staticSource) Processes(context.Context) ([]models.ProcessSample, int, error) {
	out := make([]models.ProcessSample, len(s.samples))
	copy(out, s.samples)
	return out, s.skipped, s.err
}

func procs(mem ...float64) []models.ProcessSample {
	out := make([]models.ProcessSample, len(mem))
	for i, m := range mem {
		out[i] = models.ProcessSample{PID: int32(100 + i), Name: fmt.Sprintf("p%d", i), MemoryPercent: m}
	}
	return out
}

func TestTopByMemory(t *testing.T) {
	top := Top(procs(10, 80, 5, 60, 20), 3, models.RankMemory)

	require.Len(t, top, 3)
	assert.Equal(t, 80.0, top[0].MemoryPercent)
	assert.Equal(t, 60.0, top[1].MemoryPercent)
	assert.Equal(t, 20.0, top[2].MemoryPercent)
	assert.Equal(t, models.RankMemory, top[0].Resource)
}

func TestTopProperties(t *testing.T) {
	input := []models.ProcessSample{
		{PID: 1, CPUPercent: 3}, {PID: 2, CPUPercent: 9}, {PID: 3, CPUPercent: 3},
		{PID: 4, CPUPercent: 0}, {PID: 5, CPUPercent: 12}, {PID: 6, CPUPercent: 3},
	}
	for k := 0; k <= len(input); k++ {
		top := Top(input, k, models.RankCPU)
		require.Len(t, top, k)

		seen := map[int32]bool{}
		for i, p := range top {
			assert.False(t, seen[p.PID], "duplicate pid %d", p.PID)
			seen[p.PID] = true
			if i > 0 {
				assert.GreaterOrEqual(t, top[i-1].CPUPercent, p.CPUPercent)
			}
		}
	}
}

func TestTopTiesKeepEnumerationOrder(t *testing.T) {
	input := []models.ProcessSample{{PID: 5, CPUPercent: 3}, {PID: 2, CPUPercent: 3}, {PID: 9, CPUPercent: 3}}
	top := Top(input, 3, models.RankCPU)
	assert.Equal(t, []int32{5, 2, 9}, []int32{top[0].PID, top[1].PID, top[2].PID})
}

func TestTopLargerThanInput(t *testing.T) {
	assert.Len(t, Top(procs(1, 2), 5, models.RankMemory), 2)
	assert.Empty(t, Top(nil, 5, models.RankMemory))
}

func TestTopByGPUPutsUnavailableLast(t *testing.T) {
	input := []models.ProcessSample{
		{PID: 1},
		{PID: 2, GPUPercent: models.Some(0.0)},
		{PID: 3, GPUPercent: models.Some(40.0)},
	}
	top := Top(input, 3, models.RankGPU)
	assert.Equal(t, []int32{3, 2, 1}, []int32{top[0].PID, top[1].PID, top[2].PID})
}

func TestTopMergedAllowsDuplicatesUnderDifferentLabels(t *testing.T) {
	input := []models.ProcessSample{
		{PID: 1, Name: "browser", CPUPercent: 50, MemoryPercent: 40},
		{PID: 2, Name: "db", CPUPercent: 5, MemoryPercent: 30},
		{PID: 3, Name: "idle", CPUPercent: 1, MemoryPercent: 1},
	}

	top := TopMerged(input, 3)

	require.Len(t, top, 3)
	assert.Equal(t, int32(1), top[0].PID)
	assert.Equal(t, models.RankCPU, top[0].Resource)
	assert.Equal(t, 50.0, top[0].Score)
	assert.Equal(t, int32(1), top[1].PID)
	assert.Equal(t, models.RankMemory, top[1].Resource)
	assert.Equal(t, int32(2), top[2].PID)
	assert.Equal(t, models.RankMemory, top[2].Resource)
}

func TestAttachPerProcessAndSystemWide(t *testing.T) {
	samples := []models.ProcessSample{{PID: 1}, {PID: 2}}

	Attach(samples, GPUShare{PerProcess: map[int32]float64{2: 35}, SystemWide: models.Some(60.0)})
	assert.Equal(t, models.Some(0.0), samples[0].GPUPercent)
	assert.Equal(t, models.Some(35.0), samples[1].GPUPercent)

	Attach(samples, GPUShare{SystemWide: models.Some(60.0)})
	assert.Equal(t, models.Some(60.0), samples[0].GPUPercent)
	assert.Equal(t, models.Some(60.0), samples[1].GPUPercent)

	Attach(samples, GPUShare{})
	assert.False(t, samples[0].GPUPercent.Valid)
}

func TestGPUShareAttribution(t *testing.T) {
	assert.Equal(t, models.GPUAttributionNone, GPUShare{}.Attribution())
	assert.Equal(t, models.GPUAttributionSystem, GPUShare{SystemWide: models.Some(1.0)}.Attribution())
	assert.Equal(t, models.GPUAttributionPerProcess, GPUShare{PerProcess: map[int32]float64{}}.Attribution())
}

func TestRankerRank(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	src := staticSource{samples: procs(10, 80, 5, 60, 20), skipped: 2}
	r, err := New(src, 3, "memory", logger)
	require.NoError(t, err)

	list, err := r.Rank(context.Background(), GPUShare{SystemWide: models.Some(12.0)})
	require.NoError(t, err)

	assert.Equal(t, "memory", list.Key)
	assert.Equal(t, 2, list.Skipped)
	assert.Equal(t, models.GPUAttributionSystem, list.GPUAttribution)
	require.Len(t, list.Processes, 3)
	assert.Equal(t, []float64{80, 60, 20}, []float64{
		list.Processes[0].MemoryPercent, list.Processes[1].MemoryPercent, list.Processes[2].MemoryPercent,
	})
	assert.Equal(t, models.Some(12.0), list.Processes[0].GPUPercent)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, 2, hook.LastEntry().Data["skipped"])
}

func TestRankerEnumerationFailure(t *testing.T) {
	r, err := New(staticSource{err: metrics.ErrNoProcesses}, 3, "cpu", nil)
	require.NoError(t, err)

	_, err = r.Rank(context.Background(), GPUShare{})
	assert.ErrorIs(t, err, metrics.ErrNoProcesses)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(staticSource{}, 3, "disk", nil)
	assert.Error(t, err)
	_, err = New(staticSource{}, 0, "cpu", nil)
	assert.Error(t, err)
}
