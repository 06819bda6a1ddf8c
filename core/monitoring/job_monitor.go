package monitoring

import (
	"context"
	"log"
	"time"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/jobs"
)

// DefaultMaxProcessing is how long a job may sit in Processing before the
// watchdog declares it stuck. Generation calls are bounded well below
// this, so anything older has lost its runner goroutine.
const DefaultMaxProcessing = 30 * time.Minute

// JobMonitor sweeps the registry for jobs stuck in Processing and fails
// them so clients are not left polling forever.
type JobMonitor struct {
	registry      *jobs.Registry
	metrics       *Collector
	maxProcessing time.Duration
	interval      time.Duration
}

// NewJobMonitor creates a watchdog over the given registry.
func NewJobMonitor(registry *jobs.Registry, metrics *Collector) *JobMonitor {
	return &JobMonitor{
		registry:      registry,
		metrics:       metrics,
		maxProcessing: DefaultMaxProcessing,
		interval:      30 * time.Second,
	}
}

// SetMaxProcessing overrides the stuck-job threshold.
func (jm *JobMonitor) SetMaxProcessing(d time.Duration) {
	jm.maxProcessing = d
}

// SetInterval overrides the sweep cadence.
func (jm *JobMonitor) SetInterval(d time.Duration) {
	jm.interval = d
}

// Start runs the sweep loop until ctx is canceled.
func (jm *JobMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(jm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jm.sweep()
		}
	}
}

// sweep fails every Processing job older than the threshold. Fail is a
// no-op on jobs that reached a terminal state in the meantime, so a racing
// completion always wins.
func (jm *JobMonitor) sweep() {
	stale := jm.registry.StaleProcessing(jm.maxProcessing)
	for _, job := range stale {
		if !jm.registry.Fail(job.ID, "job exceeded maximum processing time") {
			continue
		}
		log.Printf("Watchdog failed stale job %s (kind=%s, started %s)",
			job.ID, job.Kind, job.StartTime.Format(time.RFC3339))
		jm.metrics.RecordJobFailed(string(job.Kind), time.Since(job.StartTime).Seconds())
	}
}

// Sweep runs one sweep immediately. Exposed for operators and tests.
func (jm *JobMonitor) Sweep() {
	jm.sweep()
}
