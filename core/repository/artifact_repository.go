package repository

import (
	"encoding/json"
	"fmt"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

// ArtifactRepository handles database operations for pack artifacts
type ArtifactRepository struct {
	db *DB
}

// NewArtifactRepository creates a new artifact repository
func NewArtifactRepository(db *DB) *ArtifactRepository {
	return &ArtifactRepository{db: db}
}

// GetSessionArtifacts retrieves pack artifacts for a session, newest first
func (r *ArtifactRepository) GetSessionArtifacts(sessionID string, artifactType *models.ArtifactType) ([]models.PackArtifact, error) {
	query := `
		SELECT id, session_id, type, path, size_bytes, created_at, meta_json
		FROM pack_artifacts
		WHERE session_id = $1
	`
	args := []interface{}{sessionID}
	argIndex := 2

	if artifactType != nil {
		query += fmt.Sprintf(" AND type = $%d", argIndex)
		args = append(args, *artifactType)
		argIndex++
	}

	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []models.PackArtifact
	for rows.Next() {
		var artifact models.PackArtifact
		var metaJSON string

		err := rows.Scan(
			&artifact.ID,
			&artifact.SessionID,
			&artifact.Type,
			&artifact.Path,
			&artifact.SizeBytes,
			&artifact.CreatedAt,
			&metaJSON,
		)
		if err != nil {
			continue
		}

		if metaJSON != "" {
			json.Unmarshal([]byte(metaJSON), &artifact.MetaJSON)
		}

		artifacts = append(artifacts, artifact)
	}

	return artifacts, nil
}

// CreateArtifact records a new pack artifact on disk
func (r *ArtifactRepository) CreateArtifact(sessionID string, artifactType models.ArtifactType, path string, sizeBytes int64, meta map[string]interface{}) error {
	metaJSON := "{}"
	if meta != nil {
		metaBytes, err := json.Marshal(meta)
		if err == nil {
			metaJSON = string(metaBytes)
		}
	}

	query := `
		INSERT INTO pack_artifacts (session_id, type, path, size_bytes, meta_json, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`

	_, err := r.db.Exec(query, sessionID, artifactType, path, sizeBytes, metaJSON)
	return err
}
