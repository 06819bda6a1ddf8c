package models

import "time"

// PackJobEvent represents a state transition event for a pack job
type PackJobEvent struct {
	ID         int64
	JobID      string
	At         time.Time
	FromStatus *JobStatus
	ToStatus   JobStatus
	Reason     string
	MetaJSON   map[string]interface{}
}

// ArtifactType represents the type of pack artifact
type ArtifactType string

const (
	ArtifactTypeParquet ArtifactType = "parquet"
	ArtifactTypeSummary ArtifactType = "summary"
)

// PackArtifact represents one persisted pack file on disk
type PackArtifact struct {
	ID        int64
	SessionID string
	Type      ArtifactType
	Path      string
	SizeBytes int64
	CreatedAt time.Time
	MetaJSON  map[string]interface{}
}
