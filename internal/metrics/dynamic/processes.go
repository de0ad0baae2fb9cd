package dynamic

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"slices"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/monify-labs/telemon/internal/metrics"
	"github.com/monify-labs/telemon/pkg/models"
)

// procHandle is the slice of *process.Process a sample is read from
type procHandle interface {
	CreateTimeWithContext(ctx context.Context) (int64, error)
	NameWithContext(ctx context.Context) (string, error)
	PercentWithContext(ctx context.Context, interval time.Duration) (float64, error)
	MemoryPercentWithContext(ctx context.Context) (float32, error)
	StatusWithContext(ctx context.Context) ([]string, error)
}

// listedProcess is one entry of a process enumeration
type listedProcess struct {
	pid    int32
	handle procHandle
}

// enumerator lists live processes in OS order
type enumerator func(ctx context.Context) ([]listedProcess, error)

func enumerateProcesses(ctx context.Context) ([]listedProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	listed := make([]listedProcess, len(procs))
	for i, p := range procs {
		listed[i] = listedProcess{pid: p.Pid, handle: p}
	}
	return listed, nil
}

// cachedProcess keeps a handle between ticks so CPU percent has a time delta
type cachedProcess struct {
	handle  procHandle
	created int64
}

// ProcessLister enumerates live processes. Handles are cached by PID and
// creation time, so a reused PID gets a fresh handle.
type ProcessLister struct {
	numCPU    int
	enumerate enumerator
	cache     map[int32]cachedProcess
}

// NewProcessLister creates a process lister
func NewProcessLister() *ProcessLister {
	return &ProcessLister{
		numCPU:    runtime.NumCPU(),
		enumerate: enumerateProcesses,
		cache:     make(map[int32]cachedProcess),
	}
}

// Processes returns one sample per readable process in enumeration order,
// plus the number of processes skipped because they vanished, denied access,
// or were zombies. Only a failed enumeration is an error; running out of
// time is reported as ErrCollectionTimeout.
func (l *ProcessLister) Processes(ctx context.Context) ([]models.ProcessSample, int, error) {
	procs, err := l.enumerate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, fmt.Errorf("%w: %v", metrics.ErrCollectionTimeout, err)
		}
		return nil, 0, fmt.Errorf("%w: %v", metrics.ErrNoProcesses, err)
	}

	seen := make(map[int32]cachedProcess, len(procs))
	samples := make([]models.ProcessSample, 0, len(procs))
	skipped := 0

	for _, p := range procs {
		created, err := p.handle.CreateTimeWithContext(ctx)
		if err != nil {
			skipped++
			continue
		}

		entry, ok := l.cache[p.pid]
		if !ok || entry.created != created {
			entry = cachedProcess{handle: p.handle, created: created}
		}

		sample, err := readSample(ctx, p.pid, entry.handle, l.numCPU)
		if err != nil {
			skipped++
			continue
		}

		seen[p.pid] = entry
		samples = append(samples, sample)
	}

	// Drop handles of processes that exited
	l.cache = seen

	return samples, skipped, nil
}

// readSample reads the attribute group of one process. Any failure disqualifies
// the whole process rather than leaving fields half-filled.
func readSample(ctx context.Context, pid int32, h procHandle, numCPU int) (models.ProcessSample, error) {
	status, err := h.StatusWithContext(ctx)
	if err == nil && slices.Contains(status, process.Zombie) {
		return models.ProcessSample{}, fmt.Errorf("pid %d: %w", pid, metrics.ErrZombieProcess)
	}

	name, err := h.NameWithContext(ctx)
	if err != nil {
		return models.ProcessSample{}, classifyProcessError(pid, err)
	}

	cpuPct, err := h.PercentWithContext(ctx, 0)
	if err != nil {
		return models.ProcessSample{}, classifyProcessError(pid, err)
	}

	memPct, err := h.MemoryPercentWithContext(ctx)
	if err != nil {
		return models.ProcessSample{}, classifyProcessError(pid, err)
	}

	if numCPU < 1 {
		numCPU = 1
	}

	return models.ProcessSample{
		PID:           pid,
		Name:          name,
		CPUPercent:    models.ClampPercent(cpuPct / float64(numCPU)),
		MemoryPercent: models.ClampPercent(float64(memPct)),
	}, nil
}

// classifyProcessError maps OS errors onto the skip taxonomy
func classifyProcessError(pid int32, err error) error {
	switch {
	case errors.Is(err, process.ErrorProcessNotRunning), errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("pid %d: %w", pid, metrics.ErrProcessVanished)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("pid %d: %w", pid, metrics.ErrAccessDenied)
	}
	return fmt.Errorf("pid %d: %w: %v", pid, metrics.ErrProcessVanished, err)
}
