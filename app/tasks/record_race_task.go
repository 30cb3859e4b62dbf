package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/tube-comb/app/database"
	"github.com/lysyi3m/tube-comb/app/fetch"
)

type RecordRaceTask struct {
	Task
	Record    database.RaceRecord
	statsRepo database.StatsRepositoryInterface
}

func NewRecordRaceTask(report fetch.RaceReport, statsRepo database.StatsRepositoryInterface) *RecordRaceTask {
	return &RecordRaceTask{
		Task:      NewTask(TaskTypeRecordRace, report.ID),
		Record:    raceRecordFrom(report),
		statsRepo: statsRepo,
	}
}

func raceRecordFrom(report fetch.RaceReport) database.RaceRecord {
	record := database.RaceRecord{
		ID:        report.ID,
		Category:  string(report.Category),
		Path:      report.Path,
		Winner:    report.Winner,
		Duration:  report.Duration,
		CreatedAt: report.StartedAt,
		Attempts:  make([]database.AttemptRecord, 0, len(report.Outcomes)),
	}
	if report.Err != nil {
		record.Error = report.Err.Error()
	}

	for _, outcome := range report.Outcomes {
		record.Attempts = append(record.Attempts, database.AttemptRecord{
			Mirror:   outcome.Mirror,
			Result:   string(outcome.Result),
			Status:   outcome.Status,
			Error:    outcome.Err,
			Duration: outcome.Duration,
		})
	}
	return record
}

func (t *RecordRaceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.statsRepo.RecordRace(t.Record); err != nil {
		return fmt.Errorf("failed to record race: %w", err)
	}

	slog.Debug("Task completed",
		"type", "RecordRace",
		"race", t.Record.ID,
		"category", t.Record.Category,
		"winner", t.Record.Winner,
		"duration", t.GetDuration())

	return nil
}
