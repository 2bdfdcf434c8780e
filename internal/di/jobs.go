package di

import (
	"fmt"

	"github.com/aristath/noteengine/internal/config"
	"github.com/aristath/noteengine/internal/scheduler"
	"github.com/rs/zerolog"
)

// walCheckpointSchedule runs at the top of every hour.
const walCheckpointSchedule = "0 0 * * * *"

// RegisterJobs creates the scheduler and registers the background jobs
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	sched := scheduler.New(log)

	jobs := &JobInstances{
		BarrierMonitor: scheduler.NewBarrierMonitorJob(container.ProductService, container.EventBus, log),
		WALCheckpoint:  scheduler.NewWALCheckpointJob(container.NotesDB, log),
	}

	if err := sched.AddJob(cfg.MonitorSchedule, jobs.BarrierMonitor); err != nil {
		return nil, fmt.Errorf("failed to register barrier monitor: %w", err)
	}
	if err := sched.AddJob(walCheckpointSchedule, jobs.WALCheckpoint); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint: %w", err)
	}

	container.Scheduler = sched
	return jobs, nil
}
