package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/jobs"
)

// ResearchStarter launches background research jobs.
type ResearchStarter interface {
	StartResearch(clientID, prompt, outputFile string) string
}

// ResearchHandler handles research-related HTTP requests
type ResearchHandler struct {
	registry *jobs.Registry
	results  *jobs.Results
	starter  ResearchStarter
}

// NewResearchHandler creates a new research handler
func NewResearchHandler(registry *jobs.Registry, results *jobs.Results, starter ResearchStarter) *ResearchHandler {
	return &ResearchHandler{
		registry: registry,
		results:  results,
		starter:  starter,
	}
}

// CreateResearchRequest represents the request to start a research task
type CreateResearchRequest struct {
	Prompt     string `json:"prompt"`
	OutputFile string `json:"output_file"`
}

// CreateResearch handles POST /research. Results stream to nobody; the
// caller polls GET /research/results/{job_id} instead.
func (h *ResearchHandler) CreateResearch(w http.ResponseWriter, r *http.Request) {
	var req CreateResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if req.Prompt == "" {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "error",
			"message": "Research prompt cannot be empty",
		})
		return
	}

	clientID := fmt.Sprintf("rest_%s", uuid.New().String())
	outputFile := req.OutputFile
	if outputFile == "" {
		outputFile = fmt.Sprintf("research_report_%d.md", time.Now().Unix())
	}

	h.starter.StartResearch(clientID, req.Prompt, outputFile)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "started",
		"client_id":   clientID,
		"output_file": outputFile,
		"message":     "Research task started",
	})
}

// GetResearchResults handles GET /research/results/{job_id}
func (h *ResearchHandler) GetResearchResults(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID := vars["job_id"]

	w.Header().Set("Content-Type", "application/json")

	if rec, ok := h.results.Get(jobID); ok {
		// Prefer the report file; the inlined copy covers a removed file.
		content := rec.Content
		if data, err := os.ReadFile(rec.FilePath); err == nil {
			content = string(data)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":          "success",
			"job_id":          jobID,
			"output_file":     rec.OutputFile,
			"content":         content,
			"prompt":          rec.Prompt,
			"completion_time": unixSeconds(rec.CompletionTime),
		})
		return
	}

	if job, ok := h.registry.Get(jobID); ok {
		resp := map[string]interface{}{
			"status":      string(job.Status),
			"progress":    job.Progress,
			"output_file": job.OutputFile,
			"started_at":  unixSeconds(job.StartTime),
			"ended_at":    nil,
			"error":       job.Error,
		}
		if job.EndTime != nil {
			resp["ended_at"] = unixSeconds(*job.EndTime)
		}
		json.NewEncoder(w).Encode(resp)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "not_found",
		"message": fmt.Sprintf("Research job with ID %s not found", jobID),
	})
}

// unixSeconds renders a timestamp the way the websocket events do.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000.0
}
