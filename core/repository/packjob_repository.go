package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

// ErrStatusConflict is returned when a status transition loses a race:
// the row's current status no longer matches the expected from-status.
var ErrStatusConflict = errors.New("pack job status changed concurrently")

// PackJobRepository handles database operations for pack jobs
type PackJobRepository struct {
	db *DB
}

// NewPackJobRepository creates a new pack job repository
func NewPackJobRepository(db *DB) *PackJobRepository {
	return &PackJobRepository{db: db}
}

// CreatePackJob enqueues a pack build for a session
func (r *PackJobRepository) CreatePackJob(job *models.PackJob) error {
	query := `
		INSERT INTO pack_jobs (id, session_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	jobID := uuid.New()
	if job.ID != "" {
		var err error
		jobID, err = uuid.Parse(job.ID)
		if err != nil {
			return err
		}
	}

	if job.Status == "" {
		job.Status = models.JobStatusPending
	}

	now := time.Now()
	_, err := r.db.Exec(query, jobID, job.SessionID, job.Status, now, now)
	if err != nil {
		return err
	}

	job.ID = jobID.String()
	job.CreatedAt = now
	job.UpdatedAt = now

	// Create initial event
	return r.CreatePackJobEvent(job.ID, nil, job.Status, "job_created", nil)
}

// GetPackJob retrieves a pack job by ID
func (r *PackJobRepository) GetPackJob(id string) (*models.PackJob, error) {
	query := `
		SELECT id, session_id, status, error, created_at, started_at, completed_at, updated_at
		FROM pack_jobs
		WHERE id = $1
	`

	var job models.PackJob
	var errMsg sql.NullString
	var startedAt sql.NullTime
	var completedAt sql.NullTime

	err := r.db.QueryRow(query, id).Scan(
		&job.ID,
		&job.SessionID,
		&job.Status,
		&errMsg,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
		&job.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	if errMsg.Valid {
		job.Error = &errMsg.String
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}

	return &job, nil
}

// ListPackJobsByStatus lists pack jobs in a given status, oldest first
func (r *PackJobRepository) ListPackJobsByStatus(status models.JobStatus, limit int) ([]*models.PackJob, error) {
	query := `
		SELECT id, session_id, status, error, created_at, started_at, completed_at, updated_at
		FROM pack_jobs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.db.Query(query, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.PackJob
	for rows.Next() {
		var job models.PackJob
		var errMsg sql.NullString
		var startedAt sql.NullTime
		var completedAt sql.NullTime

		err := rows.Scan(
			&job.ID,
			&job.SessionID,
			&job.Status,
			&errMsg,
			&job.CreatedAt,
			&startedAt,
			&completedAt,
			&job.UpdatedAt,
		)
		if err != nil {
			continue
		}

		if errMsg.Valid {
			job.Error = &errMsg.String
		}
		if startedAt.Valid {
			job.StartedAt = &startedAt.Time
		}
		if completedAt.Valid {
			job.CompletedAt = &completedAt.Time
		}

		jobs = append(jobs, &job)
	}

	return jobs, nil
}

// HasActiveJobForSession reports whether a pending or processing pack job
// already exists for the session.
func (r *PackJobRepository) HasActiveJobForSession(sessionID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM pack_jobs
			WHERE session_id = $1 AND status IN ($2, $3)
		)
	`

	var exists bool
	err := r.db.QueryRow(query, sessionID, models.JobStatusPending, models.JobStatusProcessing).Scan(&exists)
	return exists, err
}

// UpdatePackJobStatus updates job status atomically with event logging.
// The update is guarded on fromStatus so two workers cannot claim the same
// job; losing the race returns ErrStatusConflict.
func (r *PackJobRepository) UpdatePackJobStatus(jobID string, fromStatus, toStatus models.JobStatus, reason string, meta map[string]interface{}) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var result sql.Result
	switch toStatus {
	case models.JobStatusProcessing:
		updateQuery := `UPDATE pack_jobs SET status = $1, started_at = NOW(), updated_at = NOW() WHERE id = $2 AND status = $3`
		result, err = tx.Exec(updateQuery, toStatus, jobID, fromStatus)
	case models.JobStatusCompleted:
		updateQuery := `UPDATE pack_jobs SET status = $1, completed_at = NOW(), updated_at = NOW() WHERE id = $2 AND status = $3`
		result, err = tx.Exec(updateQuery, toStatus, jobID, fromStatus)
	case models.JobStatusFailed:
		errMsg := ""
		if meta != nil {
			if msg, ok := meta["error"].(string); ok {
				errMsg = msg
			}
		}
		updateQuery := `UPDATE pack_jobs SET status = $1, error = $2, completed_at = NOW(), updated_at = NOW() WHERE id = $3 AND status = $4`
		result, err = tx.Exec(updateQuery, toStatus, errMsg, jobID, fromStatus)
	default:
		updateQuery := `UPDATE pack_jobs SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
		result, err = tx.Exec(updateQuery, toStatus, jobID, fromStatus)
	}
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("pack job %s: %w", jobID, ErrStatusConflict)
	}

	// Create event
	err = r.createPackJobEventTx(tx, jobID, &fromStatus, toStatus, reason, meta)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// CreatePackJobEvent creates a pack job event
func (r *PackJobRepository) CreatePackJobEvent(jobID string, fromStatus *models.JobStatus, toStatus models.JobStatus, reason string, meta map[string]interface{}) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = r.createPackJobEventTx(tx, jobID, fromStatus, toStatus, reason, meta)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PackJobRepository) createPackJobEventTx(tx *sql.Tx, jobID string, fromStatus *models.JobStatus, toStatus models.JobStatus, reason string, meta map[string]interface{}) error {
	query := `
		INSERT INTO pack_job_events (job_id, from_status, to_status, reason, meta_json)
		VALUES ($1, $2, $3, $4, $5)
	`

	var fromStatusStr *string
	if fromStatus != nil {
		s := string(*fromStatus)
		fromStatusStr = &s
	}

	metaJSON := "{}"
	if meta != nil {
		metaBytes, err := json.Marshal(meta)
		if err == nil {
			metaJSON = string(metaBytes)
		}
	}

	_, err := tx.Exec(query, jobID, fromStatusStr, toStatus, reason, metaJSON)
	return err
}
