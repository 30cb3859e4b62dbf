package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// The scheduler probes mirrors on an interval, prunes old telemetry, and
// persists race reports handed to it by the RaceRecorder.
// Example usage:
//
//	scheduler := NewScheduler(registry, statsRepo, httpClient, SchedulerOptions{...})
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewProbeMirrorTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueProbes() int
}
