package tasks

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lysyi3m/tube-comb/app/database"
)

const probeTimeout = 10 * time.Second

type ProbeMirrorTask struct {
	Task
	Mirror     string
	apiPrefix  string
	userAgent  string
	httpClient *http.Client
	statsRepo  database.StatsRepositoryInterface
}

func NewProbeMirrorTask(mirror, apiPrefix, userAgent string, httpClient *http.Client, statsRepo database.StatsRepositoryInterface) *ProbeMirrorTask {
	return &ProbeMirrorTask{
		Task:       NewTask(TaskTypeProbeMirror, mirror),
		Mirror:     mirror,
		apiPrefix:  apiPrefix,
		userAgent:  userAgent,
		httpClient: httpClient,
		statsRepo:  statsRepo,
	}
}

// Execute checks the mirror's stats endpoint. An unhealthy mirror is a probe
// result, not a task failure; only storage errors are returned.
func (t *ProbeMirrorTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	probe := t.probe(ctx)

	if err := t.statsRepo.RecordProbe(probe); err != nil {
		return fmt.Errorf("failed to record probe: %w", err)
	}

	if probe.OK {
		slog.Debug("Mirror healthy", "mirror", t.Mirror, "latency", probe.Latency)
	} else {
		slog.Info("Mirror unhealthy", "mirror", t.Mirror, "status", probe.Status, "error", probe.Error)
	}

	return nil
}

func (t *ProbeMirrorTask) probe(ctx context.Context) database.ProbeRecord {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	started := time.Now()
	probe := database.ProbeRecord{Mirror: t.Mirror, CheckedAt: started}

	status, err := t.fetchStats(probeCtx)
	probe.Latency = time.Since(started)
	probe.Status = status
	if err != nil {
		probe.Error = err.Error()
		return probe
	}

	probe.OK = true
	return probe
}

func (t *ProbeMirrorTask) fetchStats(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Mirror+t.apiPrefix+"/stats", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	// Drain so the connection can be reused
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20)); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, nil
}
