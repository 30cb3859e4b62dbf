package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/tube-comb/app/database"
)

type PruneStatsTask struct {
	Task
	Retention time.Duration
	statsRepo database.StatsRepositoryInterface
}

func NewPruneStatsTask(retention time.Duration, statsRepo database.StatsRepositoryInterface) *PruneStatsTask {
	return &PruneStatsTask{
		Task:      NewTask(TaskTypePruneStats, "stats"),
		Retention: retention,
		statsRepo: statsRepo,
	}
}

func (t *PruneStatsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cutoff := time.Now().Add(-t.Retention)

	deleted, err := t.statsRepo.PruneBefore(cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune stats: %w", err)
	}

	slog.Info("Task completed",
		"type", "PruneStats",
		"cutoff", cutoff.Format(time.RFC3339),
		"deleted", deleted,
		"duration", t.GetDuration())

	return nil
}
