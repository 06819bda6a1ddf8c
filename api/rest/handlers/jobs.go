package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/repository"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/scheduler"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/storage"
)

// PackJobHandler handles pack-build HTTP requests
type PackJobHandler struct {
	sessionRepo *repository.SessionRepository
	packJobRepo *repository.PackJobRepository
	eventRepo   *repository.EventRepository
	manager     *storage.PackManager
	scheduler   *scheduler.Scheduler
}

// NewPackJobHandler creates a new pack job handler
func NewPackJobHandler(
	sessionRepo *repository.SessionRepository,
	packJobRepo *repository.PackJobRepository,
	eventRepo *repository.EventRepository,
	manager *storage.PackManager,
	sched *scheduler.Scheduler,
) *PackJobHandler {
	return &PackJobHandler{
		sessionRepo: sessionRepo,
		packJobRepo: packJobRepo,
		eventRepo:   eventRepo,
		manager:     manager,
		scheduler:   sched,
	}
}

// SubmitPackRequest represents the request to build a pack
type SubmitPackRequest struct {
	SessionID string `json:"session_id"`
}

// SubmitPackResponse represents the response after scheduling a build
type SubmitPackResponse struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmitPack handles POST /v1/packs
func (h *PackJobHandler) SubmitPack(w http.ResponseWriter, r *http.Request) {
	var req SubmitPackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	session, err := h.sessionRepo.FetchMetadata(r.Context(), req.SessionID)
	if err != nil {
		http.Error(w, "Failed to look up session: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if session == nil {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	active, err := h.packJobRepo.HasActiveJobForSession(req.SessionID)
	if err != nil {
		http.Error(w, "Failed to check active jobs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if active {
		http.Error(w, "A pack build is already pending or processing for this session", http.StatusConflict)
		return
	}

	job := &models.PackJob{SessionID: req.SessionID}
	if err := h.packJobRepo.CreatePackJob(job); err != nil {
		http.Error(w, "Failed to create pack job: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.scheduler.Enqueue(job)

	resp := SubmitPackResponse{
		ID:        job.ID,
		SessionID: job.SessionID,
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// GetPackJob handles GET /v1/packs/{id}
func (h *PackJobHandler) GetPackJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID := vars["id"]

	job, err := h.packJobRepo.GetPackJob(jobID)
	if err != nil {
		http.Error(w, "Pack job not found", http.StatusNotFound)
		return
	}

	response := map[string]interface{}{
		"id":         job.ID,
		"session_id": job.SessionID,
		"status":     job.Status,
		"timestamps": map[string]interface{}{
			"created_at":   job.CreatedAt,
			"started_at":   job.StartedAt,
			"completed_at": job.CompletedAt,
		},
	}
	if job.Error != nil {
		response["error"] = *job.Error
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetPackJobEvents handles GET /v1/packs/{id}/events
func (h *PackJobHandler) GetPackJobEvents(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID := vars["id"]

	if _, err := h.packJobRepo.GetPackJob(jobID); err != nil {
		http.Error(w, "Pack job not found", http.StatusNotFound)
		return
	}

	events, err := h.eventRepo.GetPackJobEvents(jobID, 100)
	if err != nil {
		http.Error(w, "Failed to fetch events: "+err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, len(events))
	for i, event := range events {
		item := map[string]interface{}{
			"at":        event.At,
			"to_status": event.ToStatus,
			"reason":    event.Reason,
		}
		if event.FromStatus != nil {
			item["from_status"] = *event.FromStatus
		}
		items[i] = item
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"items": items,
	})
}

// ListSessions handles GET /v1/sessions
func (h *PackJobHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
		fmt.Sscanf(limitParam, "%d", &limit)
	}

	sessions, err := h.sessionRepo.ListSessions(limit)
	if err != nil {
		http.Error(w, "Failed to list sessions: "+err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, len(sessions))
	for i, session := range sessions {
		items[i] = map[string]interface{}{
			"id":         session.ID,
			"name":       session.Name,
			"vehicle_id": session.VehicleID,
			"dtc_codes":  session.DTCCodes,
			"created_at": session.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"items": items,
	})
}

// GetSessionArtifacts handles GET /v1/sessions/{id}/artifacts
func (h *PackJobHandler) GetSessionArtifacts(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]

	var artifactType *models.ArtifactType
	if typeParam := r.URL.Query().Get("type"); typeParam != "" {
		t := models.ArtifactType(typeParam)
		artifactType = &t
	}

	artifacts, err := h.manager.ListPacks(sessionID)
	if err != nil {
		http.Error(w, "Failed to fetch artifacts: "+err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, 0, len(artifacts))
	for _, artifact := range artifacts {
		if artifactType != nil && artifact.Type != *artifactType {
			continue
		}
		items = append(items, map[string]interface{}{
			"type":       artifact.Type,
			"path":       artifact.Path,
			"size_bytes": artifact.SizeBytes,
			"created_at": artifact.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"items": items,
	})
}

// GetLatestPack handles GET /v1/sessions/{id}/pack
func (h *PackJobHandler) GetLatestPack(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionID := vars["id"]

	artifact, err := h.manager.LatestPack(sessionID)
	if err != nil {
		http.Error(w, "No pack found for session", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"session_id": artifact.SessionID,
		"path":       artifact.Path,
		"size_bytes": artifact.SizeBytes,
		"built_at":   artifact.CreatedAt,
		"meta":       artifact.MetaJSON,
	})
}
