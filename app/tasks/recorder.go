package tasks

import (
	"log/slog"

	"github.com/lysyi3m/tube-comb/app/database"
	"github.com/lysyi3m/tube-comb/app/fetch"
)

var _ fetch.Observer = (*RaceRecorder)(nil)

// RaceRecorder hands race reports to the scheduler for persistence. It never
// blocks the race: when the queue is full the report is dropped.
type RaceRecorder struct {
	scheduler TaskSchedulerInterface
	statsRepo database.StatsRepositoryInterface
}

func NewRaceRecorder(scheduler TaskSchedulerInterface, statsRepo database.StatsRepositoryInterface) *RaceRecorder {
	return &RaceRecorder{scheduler: scheduler, statsRepo: statsRepo}
}

func (r *RaceRecorder) ObserveRace(report fetch.RaceReport) {
	if err := r.scheduler.EnqueueTask(NewRecordRaceTask(report, r.statsRepo)); err != nil {
		slog.Debug("Dropped race report", "race", report.ID, "category", report.Category, "error", err)
	}
}
