package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/monitoring"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/pack"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/repository"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/storage"
)

// DefaultInterval is how often the scheduler polls for pending pack jobs.
const DefaultInterval = 5 * time.Second

// pendingBatch caps how many pending rows one poll loads.
const pendingBatch = 100

// Scheduler drains pending pack jobs: it claims each job, runs the build
// pipeline, registers the artifacts and records the terminal transition.
// Claims are guarded by the pending-to-processing status update, so a
// duplicate queue entry or a second scheduler loses the race harmlessly.
type Scheduler struct {
	packJobRepo *repository.PackJobRepository
	builder     *pack.Builder
	manager     *storage.PackManager
	queue       *BuildQueue
	metrics     *monitoring.Collector
	interval    time.Duration
	stopChan    chan struct{}
}

// NewScheduler creates a new pack build scheduler
func NewScheduler(
	packJobRepo *repository.PackJobRepository,
	builder *pack.Builder,
	manager *storage.PackManager,
) *Scheduler {
	return &Scheduler{
		packJobRepo: packJobRepo,
		builder:     builder,
		manager:     manager,
		queue:       NewBuildQueue(),
		interval:    DefaultInterval,
		stopChan:    make(chan struct{}),
	}
}

// SetInterval overrides the poll interval.
func (s *Scheduler) SetInterval(d time.Duration) {
	s.interval = d
}

// SetMetrics attaches the metrics collector.
func (s *Scheduler) SetMetrics(m *monitoring.Collector) {
	s.metrics = m
}

// Start runs the scheduler loop until the context is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.loadPendingJobs()
	s.processQueue(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.loadPendingJobs()
			s.processQueue(ctx)
		}
	}
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

// Enqueue adds a pack job to the queue ahead of the next poll
func (s *Scheduler) Enqueue(job *models.PackJob) {
	s.queue.Enqueue(job)
}

// loadPendingJobs queues pending pack jobs from the database
func (s *Scheduler) loadPendingJobs() {
	jobs, err := s.packJobRepo.ListPackJobsByStatus(models.JobStatusPending, pendingBatch)
	if err != nil {
		log.Printf("Failed to load pending pack jobs: %v", err)
		return
	}

	for _, job := range jobs {
		s.queue.Enqueue(job)
	}
}

// processQueue builds queued packs one at a time
func (s *Scheduler) processQueue(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		job := s.queue.PopBuild()
		if job == nil {
			return
		}

		// Re-fetch to get the latest state; stale queue entries are common
		// because every poll re-queues still-pending rows.
		fresh, err := s.packJobRepo.GetPackJob(job.ID)
		if err != nil {
			log.Printf("Failed to fetch pack job %s: %v", job.ID, err)
			continue
		}
		if fresh.Status != models.JobStatusPending {
			continue
		}

		err = s.packJobRepo.UpdatePackJobStatus(fresh.ID, models.JobStatusPending, models.JobStatusProcessing, "build_started", nil)
		if errors.Is(err, repository.ErrStatusConflict) {
			continue
		}
		if err != nil {
			log.Printf("Failed to claim pack job %s: %v", fresh.ID, err)
			continue
		}

		s.buildPack(ctx, fresh)
	}
}

// buildPack runs one claimed build to its terminal status
func (s *Scheduler) buildPack(ctx context.Context, job *models.PackJob) {
	log.Printf("Building pack for session %s (job %s)", job.SessionID, job.ID)
	start := time.Now()

	sessionPack, err := s.builder.Build(ctx, job.SessionID)
	if err != nil {
		s.failBuild(job, "build_failed", err)
		return
	}

	if err := s.manager.RecordPack(sessionPack); err != nil {
		s.failBuild(job, "artifact_registration_failed", err)
		return
	}

	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordPackBuilt(elapsed.Seconds())
	}

	meta := map[string]interface{}{
		"parquet_size": sessionPack.ParquetSize,
		"signals":      len(sessionPack.Signals),
	}
	if err := s.packJobRepo.UpdatePackJobStatus(job.ID, models.JobStatusProcessing, models.JobStatusCompleted, "build_completed", meta); err != nil {
		log.Printf("Failed to complete pack job %s: %v", job.ID, err)
		return
	}

	log.Printf("Pack job %s completed in %s", job.ID, elapsed.Round(time.Millisecond))
}

func (s *Scheduler) failBuild(job *models.PackJob, reason string, buildErr error) {
	log.Printf("Pack job %s failed: %v", job.ID, buildErr)
	if s.metrics != nil {
		s.metrics.RecordPackFailed()
	}

	meta := map[string]interface{}{"error": buildErr.Error()}
	if err := s.packJobRepo.UpdatePackJobStatus(job.ID, models.JobStatusProcessing, models.JobStatusFailed, reason, meta); err != nil {
		log.Printf("Failed to record pack job %s failure: %v", job.ID, err)
	}
}
