package database

import (
	"time"
)

type StatsRepositoryInterface interface {
	RecordRace(race RaceRecord) error
	RecordProbe(probe ProbeRecord) error

	GetMirrorStats() ([]MirrorStats, error)
	GetRaceCount() (int, error)

	PruneBefore(cutoff time.Time) (int64, error)
}
