package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

// SessionRepository handles database operations for diagnostic sessions
// and their raw OBD2 records.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession stores session metadata
func (r *SessionRepository) CreateSession(session *models.Session) error {
	metaJSON := "{}"
	if session.MetaJSON != nil {
		metaBytes, err := json.Marshal(session.MetaJSON)
		if err == nil {
			metaJSON = string(metaBytes)
		}
	}

	query := `
		INSERT INTO obd2_sessions (id, name, vehicle_id, dtc_codes, meta_json, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now()
	_, err := r.db.Exec(query,
		session.ID,
		session.Name,
		session.VehicleID,
		pq.Array(session.DTCCodes),
		metaJSON,
		now,
	)
	if err != nil {
		return err
	}

	session.CreatedAt = now
	return nil
}

// AppendRecords stores raw OBD2 documents for a session. Records keep
// their arrival order through the serial primary key.
func (r *SessionRepository) AppendRecords(ctx context.Context, sessionID string, docs []map[string]interface{}) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO obd2_records (session_id, doc, created_at) VALUES ($1, $2, NOW())`

	for _, doc := range docs {
		docJSON, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, sessionID, docJSON); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Fetch retrieves all raw documents for a session in arrival order.
func (r *SessionRepository) Fetch(ctx context.Context, sessionID string) ([]map[string]interface{}, error) {
	query := `
		SELECT doc
		FROM obd2_records
		WHERE session_id = $1
		ORDER BY id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []map[string]interface{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}

		var doc map[string]interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// FetchMetadata retrieves session metadata. A missing session is not an
// error; it returns nil so the caller can build a pack without metadata.
func (r *SessionRepository) FetchMetadata(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `
		SELECT id, name, vehicle_id, dtc_codes, meta_json, created_at
		FROM obd2_sessions
		WHERE id = $1
	`

	var session models.Session
	var name sql.NullString
	var vehicleID sql.NullString
	var metaJSON string

	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&session.ID,
		&name,
		&vehicleID,
		pq.Array(&session.DTCCodes),
		&metaJSON,
		&session.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if name.Valid {
		session.Name = name.String
	}
	if vehicleID.Valid {
		session.VehicleID = vehicleID.String
	}
	if metaJSON != "" {
		json.Unmarshal([]byte(metaJSON), &session.MetaJSON)
	}

	return &session, nil
}

// ListSessions lists stored sessions, newest first
func (r *SessionRepository) ListSessions(limit int) ([]models.Session, error) {
	query := `
		SELECT id, name, vehicle_id, dtc_codes, created_at
		FROM obd2_sessions
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var session models.Session
		var name sql.NullString
		var vehicleID sql.NullString

		err := rows.Scan(
			&session.ID,
			&name,
			&vehicleID,
			pq.Array(&session.DTCCodes),
			&session.CreatedAt,
		)
		if err != nil {
			continue
		}

		if name.Valid {
			session.Name = name.String
		}
		if vehicleID.Valid {
			session.VehicleID = vehicleID.String
		}

		sessions = append(sessions, session)
	}

	return sessions, nil
}

// CountRecords reports how many raw documents a session holds
func (r *SessionRepository) CountRecords(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM obd2_records WHERE session_id = $1`, sessionID).Scan(&count)
	return count, err
}
