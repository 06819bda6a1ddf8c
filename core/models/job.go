package models

import "time"

// Job represents one tracked unit of background asynchronous work
type Job struct {
	ID               string
	ClientID         string
	Kind             JobKind
	Status           JobStatus
	Progress         int // 0-100
	Message          string
	Prompt           string
	FileID           string
	AnalysisType     string
	Options          map[string]interface{}
	OutputFile       string
	OutputDir        string
	Error            string
	StreamingEnabled bool
	StartTime        time.Time
	EndTime          *time.Time
}

// JobKind represents the type of background job
type JobKind string

const (
	JobKindResearch JobKind = "research"
	JobKindAnalysis JobKind = "analysis"
)

// JobStatus represents the current status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CompletedJob is the retrievable record of a finished job, with the
// final content inlined so retrieval works even if the output file is
// later removed.
type CompletedJob struct {
	JobID          string
	ClientID       string
	Kind           JobKind
	Prompt         string
	Content        string
	OutputFile     string
	OutputDir      string
	ReportFile     string
	FilePath       string
	Visualizations []Visualization
	CompletionTime time.Time
}

// Visualization describes one image artifact produced by an analysis job.
type Visualization struct {
	Filename    string
	Description string
}

// PackJob represents a scheduled pack build for one session
type PackJob struct {
	ID          string
	SessionID   string
	Status      JobStatus
	Error       *string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time
}
