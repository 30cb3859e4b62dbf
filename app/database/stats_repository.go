package database

import (
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// StatsRepository stores race outcomes and probe results per mirror
type StatsRepository struct {
	db *DB
}

func NewStatsRepository(db *DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// RecordRace stores a race and all its attempts in one transaction
func (r *StatsRepository) RecordRace(race RaceRecord) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO races (id, category, path, winner, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, race.ID, race.Category, race.Path, race.Winner, race.Error,
		race.Duration.Milliseconds(), race.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert race: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO race_attempts (race_id, mirror, result, status, error, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare attempt insert: %w", err)
	}
	defer stmt.Close()

	for _, attempt := range race.Attempts {
		_, err = stmt.Exec(race.ID, attempt.Mirror, attempt.Result, attempt.Status, attempt.Error, attempt.Duration.Milliseconds())
		if err != nil {
			return fmt.Errorf("failed to insert attempt for %s: %w", attempt.Mirror, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit race: %w", err)
	}
	return nil
}

func (r *StatsRepository) RecordProbe(probe ProbeRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO probes (mirror, ok, status, latency_ms, error, checked_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, probe.Mirror, probe.OK, probe.Status, probe.Latency.Milliseconds(), probe.Error, probe.CheckedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert probe: %w", err)
	}
	return nil
}

// GetMirrorStats aggregates attempt outcomes per mirror and attaches the most
// recent probe. Mirrors that were only ever probed are included.
func (r *StatsRepository) GetMirrorStats() ([]MirrorStats, error) {
	rows, err := r.db.Query(`
		SELECT mirror,
			SUM(CASE WHEN result = 'won' THEN 1 ELSE 0 END),
			SUM(CASE WHEN result = 'failed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN result = 'abandoned' THEN 1 ELSE 0 END),
			AVG(CASE WHEN result = 'won' THEN duration_ms END)
		FROM race_attempts
		GROUP BY mirror
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempt stats: %w", err)
	}
	defer rows.Close()

	byMirror := make(map[string]*MirrorStats)
	for rows.Next() {
		var stats MirrorStats
		var avgWin sql.NullFloat64
		if err := rows.Scan(&stats.Mirror, &stats.Wins, &stats.Failures, &stats.Abandoned, &avgWin); err != nil {
			return nil, fmt.Errorf("failed to scan attempt stats: %w", err)
		}
		if avgWin.Valid {
			stats.AvgWinTime = time.Duration(avgWin.Float64 * float64(time.Millisecond))
		}
		byMirror[stats.Mirror] = &stats
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attempt stats: %w", err)
	}

	probes, err := r.latestProbes()
	if err != nil {
		return nil, err
	}
	for _, probe := range probes {
		stats, ok := byMirror[probe.Mirror]
		if !ok {
			stats = &MirrorStats{Mirror: probe.Mirror}
			byMirror[probe.Mirror] = stats
		}
		stats.LastProbe = &probe
	}

	result := make([]MirrorStats, 0, len(byMirror))
	for _, stats := range byMirror {
		result = append(result, *stats)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Mirror < result[j].Mirror
	})

	return result, nil
}

func (r *StatsRepository) latestProbes() ([]ProbeRecord, error) {
	rows, err := r.db.Query(`
		SELECT p.mirror, p.ok, p.status, p.latency_ms, p.error, p.checked_at
		FROM probes p
		WHERE p.id = (SELECT MAX(id) FROM probes WHERE mirror = p.mirror)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query probes: %w", err)
	}
	defer rows.Close()

	var probes []ProbeRecord
	for rows.Next() {
		var probe ProbeRecord
		var latencyMs, checkedAt int64
		if err := rows.Scan(&probe.Mirror, &probe.OK, &probe.Status, &latencyMs, &probe.Error, &checkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan probe: %w", err)
		}
		probe.Latency = time.Duration(latencyMs) * time.Millisecond
		probe.CheckedAt = time.UnixMilli(checkedAt)
		probes = append(probes, probe)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate probes: %w", err)
	}

	return probes, nil
}

func (r *StatsRepository) GetRaceCount() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM races`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count races: %w", err)
	}
	return count, nil
}

// PruneBefore deletes races (with their attempts) and probes older than cutoff
// and returns the number of races and probes removed.
func (r *StatsRepository) PruneBefore(cutoff time.Time) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ts := cutoff.UnixMilli()

	_, err = tx.Exec(`DELETE FROM race_attempts WHERE race_id IN (SELECT id FROM races WHERE created_at < ?)`, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to prune attempts: %w", err)
	}

	races, err := tx.Exec(`DELETE FROM races WHERE created_at < ?`, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to prune races: %w", err)
	}

	probes, err := tx.Exec(`DELETE FROM probes WHERE checked_at < ?`, ts)
	if err != nil {
		return 0, fmt.Errorf("failed to prune probes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}

	racesDeleted, _ := races.RowsAffected()
	probesDeleted, _ := probes.RowsAffected()
	return racesDeleted + probesDeleted, nil
}
