package jobs

import (
	"sync"
	"time"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

// DefaultRetention caps how many completed entries a store keeps before
// evicting the oldest by completion time.
const DefaultRetention = 100

// StatusMirror receives terminal job transitions for out-of-process
// visibility. Implementations must never block the registry; failures are
// theirs to swallow.
type StatusMirror interface {
	MirrorTerminal(job models.Job)
}

// Registry is the process-wide job store. All mutation happens under one
// lock, and every progress write re-checks the current status inside that
// critical section, so a ticker can never write over a terminal state.
type Registry struct {
	mu        sync.Mutex
	jobs      map[string]*models.Job
	retention int
	mirror    StatusMirror
}

// NewRegistry creates a job registry with the default retention cap.
func NewRegistry() *Registry {
	return &Registry{
		jobs:      make(map[string]*models.Job),
		retention: DefaultRetention,
	}
}

// SetRetention overrides the completed-entry cap.
func (r *Registry) SetRetention(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retention = n
}

// SetMirror attaches an optional terminal-transition mirror.
func (r *Registry) SetMirror(m StatusMirror) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mirror = m
}

// Put registers a new job. The job enters the store exactly as given;
// callers create jobs in Pending.
func (r *Registry) Put(job *models.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *job
	r.jobs[job.ID] = &copied
}

// Get returns a copy of the job, if present.
func (r *Registry) Get(jobID string) (models.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return models.Job{}, false
	}
	return *job, true
}

// Start moves a Pending job to Processing. Any other starting state is
// left untouched.
func (r *Registry) Start(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != models.JobStatusPending {
		return false
	}
	job.Status = models.JobStatusProcessing
	return true
}

// SetProgress sets progress and message while the job is still Processing.
// Returns false, without writing, once the job has left Processing.
func (r *Registry) SetProgress(jobID string, progress int, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != models.JobStatusProcessing {
		return false
	}
	if progress > 100 {
		progress = 100
	}
	job.Progress = progress
	job.Message = message
	return true
}

// MarkStreaming records that live streaming reached the client. Only
// meaningful while the job is Processing.
func (r *Registry) MarkStreaming(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != models.JobStatusProcessing {
		return false
	}
	job.StreamingEnabled = true
	return true
}

// TickProgress advances progress by delta, bounded by limit, while the job
// is still Processing. Returns the new progress and whether the write
// happened.
func (r *Registry) TickProgress(jobID string, delta, limit int, message string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status != models.JobStatusProcessing {
		return 0, false
	}
	next := job.Progress + delta
	if next > limit {
		next = limit
	}
	job.Progress = next
	job.Message = message
	return next, true
}

// Complete transitions the job to Completed with progress forced to 100.
// Terminal states are immutable: completing an already-terminal job is a
// no-op.
func (r *Registry) Complete(jobID, outputFile string) bool {
	return r.finish(jobID, models.JobStatusCompleted, outputFile, "")
}

// Fail transitions the job to Failed, recording the fault message.
func (r *Registry) Fail(jobID, errMsg string) bool {
	return r.finish(jobID, models.JobStatusFailed, "", errMsg)
}

func (r *Registry) finish(jobID string, status models.JobStatus, outputFile, errMsg string) bool {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if !ok || job.Status.Terminal() {
		r.mu.Unlock()
		return false
	}
	now := time.Now()
	job.Status = status
	job.EndTime = &now
	if status == models.JobStatusCompleted {
		job.Progress = 100
		if outputFile != "" {
			job.OutputFile = outputFile
		}
	} else {
		job.Error = errMsg
	}
	r.evictLocked()
	mirror := r.mirror
	copied := *job
	r.mu.Unlock()

	if mirror != nil {
		go mirror.MirrorTerminal(copied)
	}
	return true
}

// evictLocked drops the single oldest completed entry (by completion time)
// while the completed count exceeds the retention cap. Caller holds the
// lock.
func (r *Registry) evictLocked() {
	for {
		completed := 0
		var oldestID string
		var oldestAt time.Time
		for id, job := range r.jobs {
			if job.Status != models.JobStatusCompleted || job.EndTime == nil {
				continue
			}
			completed++
			if oldestID == "" || job.EndTime.Before(oldestAt) {
				oldestID = id
				oldestAt = *job.EndTime
			}
		}
		if completed <= r.retention || oldestID == "" {
			return
		}
		delete(r.jobs, oldestID)
	}
}

// Snapshot returns copies of every tracked job.
func (r *Registry) Snapshot() []models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	return out
}

// Active returns copies of all non-terminal jobs.
func (r *Registry) Active() []models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Job
	for _, job := range r.jobs {
		if !job.Status.Terminal() {
			out = append(out, *job)
		}
	}
	return out
}

// Completed returns copies of all completed jobs.
func (r *Registry) Completed() []models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Job
	for _, job := range r.jobs {
		if job.Status == models.JobStatusCompleted {
			out = append(out, *job)
		}
	}
	return out
}

// CompletedForClient returns completed job ids owned by one client.
func (r *Registry) CompletedForClient(clientID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, job := range r.jobs {
		if job.ClientID == clientID && job.Status == models.JobStatusCompleted {
			out = append(out, id)
		}
	}
	return out
}

// Stats summarizes the registry for operators.
func (r *Registry) Stats() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := map[string]int{
		"pending":    0,
		"processing": 0,
		"completed":  0,
		"failed":     0,
	}
	for _, job := range r.jobs {
		switch job.Status {
		case models.JobStatusPending:
			stats["pending"]++
		case models.JobStatusProcessing:
			stats["processing"]++
		case models.JobStatusCompleted:
			stats["completed"]++
		case models.JobStatusFailed:
			stats["failed"]++
		}
	}
	return stats
}

// StaleProcessing returns copies of Processing jobs older than maxAge.
func (r *Registry) StaleProcessing(maxAge time.Duration) []models.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	var out []models.Job
	for _, job := range r.jobs {
		if job.Status == models.JobStatusProcessing && job.StartTime.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out
}
