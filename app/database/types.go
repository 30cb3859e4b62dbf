package database

import (
	"time"
)

// RaceRecord is one resolved race and the fate of each of its attempts
type RaceRecord struct {
	ID        string
	Category  string
	Path      string
	Winner    string // empty when the race failed
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
	Attempts  []AttemptRecord
}

type AttemptRecord struct {
	Mirror   string
	Result   string // won, failed, abandoned
	Status   int
	Error    string
	Duration time.Duration
}

type ProbeRecord struct {
	Mirror    string
	OK        bool
	Status    int
	Latency   time.Duration
	Error     string
	CheckedAt time.Time
}

type MirrorStats struct {
	Mirror     string
	Wins       int
	Failures   int
	Abandoned  int
	AvgWinTime time.Duration
	LastProbe  *ProbeRecord
}
