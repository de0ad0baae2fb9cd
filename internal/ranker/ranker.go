// Package ranker selects the most resource-hungry processes of a tick.
package ranker

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/monify-labs/telemon/pkg/models"
)

// ModeMerged ranks CPU and memory separately, then re-ranks the union
const ModeMerged = "merged"

// Source enumerates live processes. skipped counts processes that vanished,
// denied access or were zombies.
type Source interface {
	Processes(ctx context.Context) (samples []models.ProcessSample, skipped int, err error)
}

// GPUShare is the GPU figure attached to processes. PerProcess is nil when
// the driver cannot attribute utilization per process; SystemWide is then
// copied to every process as an approximation.
type GPUShare struct {
	PerProcess map[int32]float64
	SystemWide models.Optional[float64]
}

// Attribution reports how Attach will fill GPU figures
func (g GPUShare) Attribution() models.GPUAttribution {
	switch {
	case g.PerProcess != nil:
		return models.GPUAttributionPerProcess
	case g.SystemWide.Valid:
		return models.GPUAttributionSystem
	}
	return models.GPUAttributionNone
}

// Attach sets GPUPercent on every sample. With per-process figures, processes
// absent from the map used no GPU in the window and get zero.
func Attach(samples []models.ProcessSample, share GPUShare) {
	for i := range samples {
		switch {
		case share.PerProcess != nil:
			samples[i].GPUPercent = models.Percent(share.PerProcess[samples[i].PID])
		default:
			samples[i].GPUPercent = share.SystemWide
		}
	}
}

// Top returns up to k samples ordered by key, highest first. Ties keep
// enumeration order.
func Top(samples []models.ProcessSample, k int, key models.RankKey) []models.RankedProcess {
	ranked := make([]models.RankedProcess, 0, len(samples))
	for _, s := range samples {
		ranked = append(ranked, models.RankedProcess{ProcessSample: s, Resource: key, Score: key.Score(s)})
	}
	return truncate(sortDesc(ranked), k)
}

// TopMerged takes the top k by CPU (labelled CPU) and the top k by memory
// (labelled RAM), then re-ranks the concatenation by each entry's own score
// and keeps k. A process can appear twice, once under each label.
func TopMerged(samples []models.ProcessSample, k int) []models.RankedProcess {
	merged := append(Top(samples, k, models.RankCPU), Top(samples, k, models.RankMemory)...)
	return truncate(sortDesc(merged), k)
}

func sortDesc(ranked []models.RankedProcess) []models.RankedProcess {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

func truncate(ranked []models.RankedProcess, k int) []models.RankedProcess {
	if k < 0 {
		k = 0
	}
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// Ranker produces the ranked list for a tick
type Ranker struct {
	source Source
	k      int
	mode   string
	log    logrus.FieldLogger
}

// New creates a Ranker. mode is cpu, memory, gpu or merged.
func New(source Source, k int, mode string, log logrus.FieldLogger) (*Ranker, error) {
	switch mode {
	case string(models.RankCPU), string(models.RankMemory), string(models.RankGPU), ModeMerged:
	default:
		return nil, fmt.Errorf("unknown rank mode %q", mode)
	}
	if k < 1 {
		return nil, fmt.Errorf("top-n must be at least 1, got %d", k)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Ranker{source: source, k: k, mode: mode, log: log.WithField("component", "ranker")}, nil
}

// Rank enumerates processes, attaches GPU figures, and selects the top k.
// Unreadable processes are skipped; only a failed enumeration is an error.
func (r *Ranker) Rank(ctx context.Context, share GPUShare) (models.RankedProcessList, error) {
	samples, skipped, err := r.source.Processes(ctx)
	if err != nil {
		return models.RankedProcessList{}, err
	}
	if skipped > 0 {
		r.log.WithField("skipped", skipped).Debug("Skipped unreadable processes")
	}

	Attach(samples, share)

	var top []models.RankedProcess
	if r.mode == ModeMerged {
		top = TopMerged(samples, r.k)
	} else {
		top = Top(samples, r.k, models.RankKey(r.mode))
	}

	return models.RankedProcessList{
		Key:            r.mode,
		Processes:      top,
		GPUAttribution: share.Attribution(),
		Skipped:        skipped,
	}, nil
}
