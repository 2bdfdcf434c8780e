package scheduler

import (
	"time"

	"github.com/aristath/noteengine/internal/events"
	"github.com/rs/zerolog"
)

// ProductObserver re-evaluates every stored product and persists what it observes.
type ProductObserver interface {
	ObserveAll(at time.Time) (int, error)
}

// EventPublisher publishes job status events
type EventPublisher interface {
	Publish(module string, data events.EventData)
}

// BarrierMonitorJob observes all products against their latest prices so barrier
// breaches, autocalls and coupon payments are recorded even when no price update arrives.
type BarrierMonitorJob struct {
	observer  ProductObserver
	publisher EventPublisher
	now       func() time.Time
	log       zerolog.Logger
}

// NewBarrierMonitorJob creates a new BarrierMonitorJob
func NewBarrierMonitorJob(observer ProductObserver, publisher EventPublisher, log zerolog.Logger) *BarrierMonitorJob {
	return &BarrierMonitorJob{
		observer:  observer,
		publisher: publisher,
		now:       time.Now,
		log:       log.With().Str("job", "barrier_monitor").Logger(),
	}
}

// Name returns the job name
func (j *BarrierMonitorJob) Name() string {
	return "barrier_monitor"
}

// Run executes the barrier monitor job
func (j *BarrierMonitorJob) Run() error {
	start := time.Now()
	observed, err := j.observer.ObserveAll(j.now())
	duration := time.Since(start)

	status := &events.JobStatusData{
		JobName:  j.Name(),
		Status:   "completed",
		Duration: duration.Seconds(),
		Products: observed,
	}
	if err != nil {
		status.Status = "failed"
		status.Error = err.Error()
		j.log.Error().Err(err).Int("observed", observed).Msg("Barrier monitor finished with errors")
	} else {
		j.log.Info().Int("observed", observed).Dur("duration", duration).Msg("Barrier monitor completed")
	}

	if j.publisher != nil {
		j.publisher.Publish("scheduler", status)
	}
	return err
}
