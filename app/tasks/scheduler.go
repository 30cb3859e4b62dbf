package tasks

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lysyi3m/tube-comb/app/database"
	"github.com/lysyi3m/tube-comb/app/fetch"
	"github.com/lysyi3m/tube-comb/app/mirror"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const taskQueueSize = 300

type SchedulerOptions struct {
	WorkerCount    int
	ProbeInterval  time.Duration
	StatsRetention time.Duration
	APIPrefix      string
	UserAgent      string
}

type Scheduler struct {
	registry       *mirror.Registry
	statsRepo      database.StatsRepositoryInterface
	httpClient     *http.Client
	apiPrefix      string
	userAgent      string
	interval       time.Duration
	statsRetention time.Duration
	workerCount    int
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	taskQueue      chan TaskInterface
}

func NewScheduler(registry *mirror.Registry, statsRepo database.StatsRepositoryInterface,
	httpClient *http.Client, opts SchedulerOptions) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		registry:       registry,
		statsRepo:      statsRepo,
		httpClient:     httpClient,
		apiPrefix:      cmp.Or(opts.APIPrefix, fetch.DefaultAPIPrefix),
		userAgent:      cmp.Or(opts.UserAgent, fetch.UserAgentChrome),
		interval:       cmp.Or(opts.ProbeInterval, 5*time.Minute),
		statsRetention: cmp.Or(opts.StatsRetention, 7*24*time.Hour),
		workerCount:    max(opts.WorkerCount, 1),
		ctx:            ctx,
		cancel:         cancel,
		taskQueue:      make(chan TaskInterface, taskQueueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

// Stop cancels running tasks and waits for the workers. Tasks still queued
// are discarded.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueueProbes schedules one probe per distinct mirror base and returns how
// many were queued.
func (s *Scheduler) EnqueueProbes() int {
	bases := s.registry.Bases()
	if len(bases) == 0 {
		slog.Debug("No mirrors configured, skipping probes")
		return 0
	}

	queued := 0
	for _, base := range bases {
		probeTask := NewProbeMirrorTask(base, s.apiPrefix, s.userAgent, s.httpClient, s.statsRepo)
		if err := s.EnqueueTask(probeTask); err != nil {
			slog.Warn("Failed to enqueue ProbeMirrorTask", "mirror", base, "error", err)
			continue
		}
		queued++
	}
	return queued
}

func (s *Scheduler) enqueueTasks() {
	queued := s.EnqueueProbes()
	slog.Debug("Mirror probes scheduled", "count", queued)

	pruneTask := NewPruneStatsTask(s.statsRetention, s.statsRepo)
	if err := s.EnqueueTask(pruneTask); err != nil {
		slog.Warn("Failed to enqueue PruneStatsTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "target", task.GetTarget(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				timer := time.NewTimer(retryDelay)
				defer timer.Stop()

				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
				case <-timer.C:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
