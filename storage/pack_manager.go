package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/pack"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/repository"
)

// PackManager manages pack artifact registration and retrieval
type PackManager struct {
	artifactRepo *repository.ArtifactRepository
}

// NewPackManager creates a new pack manager
func NewPackManager(artifactRepo *repository.ArtifactRepository) *PackManager {
	return &PackManager{
		artifactRepo: artifactRepo,
	}
}

// RecordPack registers both files of a built pack in the artifact registry
func (pm *PackManager) RecordPack(sessionPack *models.SessionPack) error {
	meta := map[string]interface{}{
		"signals": sessionPack.Signals,
	}

	parquetPath := filepath.Join(sessionPack.PackPath, pack.ParquetFileName)
	err := pm.artifactRepo.CreateArtifact(
		sessionPack.SessionID,
		models.ArtifactTypeParquet,
		parquetPath,
		sessionPack.ParquetSize,
		meta,
	)
	if err != nil {
		return fmt.Errorf("record parquet artifact: %w", err)
	}

	summaryPath := filepath.Join(sessionPack.PackPath, pack.SummaryFileName)
	err = pm.artifactRepo.CreateArtifact(
		sessionPack.SessionID,
		models.ArtifactTypeSummary,
		summaryPath,
		fileSize(summaryPath),
		meta,
	)
	if err != nil {
		return fmt.Errorf("record summary artifact: %w", err)
	}

	return nil
}

// LatestPack retrieves the newest parquet artifact for a session
func (pm *PackManager) LatestPack(sessionID string) (*models.PackArtifact, error) {
	parquetType := models.ArtifactTypeParquet
	artifacts, err := pm.artifactRepo.GetSessionArtifacts(sessionID, &parquetType)
	if err != nil {
		return nil, err
	}
	if len(artifacts) == 0 {
		return nil, fmt.Errorf("no pack found for session %s", sessionID)
	}

	// Rows come back newest first.
	latest := artifacts[0]
	return &latest, nil
}

// ListPacks lists all recorded artifacts for a session, newest first
func (pm *PackManager) ListPacks(sessionID string) ([]models.PackArtifact, error) {
	return pm.artifactRepo.GetSessionArtifacts(sessionID, nil)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
