package database

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "data", "stats.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("Expected clean version 1, got %d (dirty=%v)", version, dirty)
	}

	return db
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Expected second run to succeed, got %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("Expected clean version 1, got %d (dirty=%v)", version, dirty)
	}
}

func TestRecordRaceAndStats(t *testing.T) {
	repo := NewStatsRepository(newTestDB(t))
	now := time.Now()

	races := []RaceRecord{
		{
			ID: "r1", Category: "video", Path: "/videos/a", Winner: "https://a.example",
			Duration: 120 * time.Millisecond, CreatedAt: now,
			Attempts: []AttemptRecord{
				{Mirror: "https://a.example", Result: "won", Status: 200, Duration: 100 * time.Millisecond},
				{Mirror: "https://b.example", Result: "failed", Status: 502, Error: "HTTP error: 502", Duration: 40 * time.Millisecond},
			},
		},
		{
			ID: "r2", Category: "video", Path: "/videos/b", Winner: "https://a.example",
			Duration: 350 * time.Millisecond, CreatedAt: now,
			Attempts: []AttemptRecord{
				{Mirror: "https://a.example", Result: "won", Status: 200, Duration: 300 * time.Millisecond},
				{Mirror: "https://b.example", Result: "abandoned"},
			},
		},
	}
	for _, race := range races {
		if err := repo.RecordRace(race); err != nil {
			t.Fatalf("Failed to record race %s: %v", race.ID, err)
		}
	}

	count, err := repo.GetRaceCount()
	if err != nil {
		t.Fatalf("Failed to count races: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 races, got %d", count)
	}

	stats, err := repo.GetMirrorStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("Expected stats for 2 mirrors, got %d", len(stats))
	}

	a, b := stats[0], stats[1]
	if a.Mirror != "https://a.example" || a.Wins != 2 || a.Failures != 0 {
		t.Errorf("Unexpected stats for a: %+v", a)
	}
	if a.AvgWinTime != 200*time.Millisecond {
		t.Errorf("Expected average win time 200ms, got %v", a.AvgWinTime)
	}
	if b.Wins != 0 || b.Failures != 1 || b.Abandoned != 1 || b.AvgWinTime != 0 {
		t.Errorf("Unexpected stats for b: %+v", b)
	}
}

func TestRecordRaceDuplicateIDFails(t *testing.T) {
	repo := NewStatsRepository(newTestDB(t))

	race := RaceRecord{ID: "dup", Category: "search", Path: "/search", CreatedAt: time.Now(),
		Attempts: []AttemptRecord{{Mirror: "https://a.example", Result: "failed"}}}

	if err := repo.RecordRace(race); err != nil {
		t.Fatalf("Failed to record race: %v", err)
	}
	if err := repo.RecordRace(race); err == nil {
		t.Error("Expected error for duplicate race ID")
	}

	stats, err := repo.GetMirrorStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if len(stats) != 1 || stats[0].Failures != 1 {
		t.Errorf("Expected rolled back duplicate, got %+v", stats)
	}
}

func TestRecordProbeLatest(t *testing.T) {
	repo := NewStatsRepository(newTestDB(t))
	now := time.Now()

	probes := []ProbeRecord{
		{Mirror: "https://a.example", OK: false, Status: 503, Error: "down", CheckedAt: now.Add(-time.Minute)},
		{Mirror: "https://a.example", OK: true, Status: 200, Latency: 80 * time.Millisecond, CheckedAt: now},
		{Mirror: "https://c.example", OK: true, Status: 200, Latency: 20 * time.Millisecond, CheckedAt: now},
	}
	for _, probe := range probes {
		if err := repo.RecordProbe(probe); err != nil {
			t.Fatalf("Failed to record probe: %v", err)
		}
	}

	stats, err := repo.GetMirrorStats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("Expected 2 probed mirrors, got %d", len(stats))
	}

	last := stats[0].LastProbe
	if last == nil {
		t.Fatal("Expected last probe for a")
	}
	if !last.OK || last.Status != 200 || last.Latency != 80*time.Millisecond {
		t.Errorf("Expected latest successful probe, got %+v", last)
	}
	if last.CheckedAt.UnixMilli() != now.UnixMilli() {
		t.Errorf("Expected checked_at %v, got %v", now, last.CheckedAt)
	}
}

func TestPruneBefore(t *testing.T) {
	repo := NewStatsRepository(newTestDB(t))
	now := time.Now()
	old := now.Add(-48 * time.Hour)

	for _, race := range []RaceRecord{
		{ID: "old", Category: "video", Path: "/x", CreatedAt: old, Attempts: []AttemptRecord{{Mirror: "m", Result: "won"}}},
		{ID: "new", Category: "video", Path: "/y", CreatedAt: now, Attempts: []AttemptRecord{{Mirror: "m", Result: "won"}}},
	} {
		if err := repo.RecordRace(race); err != nil {
			t.Fatalf("Failed to record race: %v", err)
		}
	}
	if err := repo.RecordProbe(ProbeRecord{Mirror: "m", OK: true, CheckedAt: old}); err != nil {
		t.Fatalf("Failed to record probe: %v", err)
	}

	deleted, err := repo.PruneBefore(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Failed to prune: %v", err)
	}
	if deleted != 2 {
		t.Errorf("Expected 2 rows pruned, got %d", deleted)
	}

	count, _ := repo.GetRaceCount()
	if count != 1 {
		t.Errorf("Expected 1 race left, got %d", count)
	}

	stats, _ := repo.GetMirrorStats()
	if len(stats) != 1 || stats[0].Wins != 1 || stats[0].LastProbe != nil {
		t.Errorf("Expected only the recent attempt to remain, got %+v", stats)
	}
}
