package handlers

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/jobs"
)

// VisualizationHandler serves analysis chart images
type VisualizationHandler struct {
	registry *jobs.Registry
	results  *jobs.Results
}

// NewVisualizationHandler creates a new visualization handler
func NewVisualizationHandler(registry *jobs.Registry, results *jobs.Results) *VisualizationHandler {
	return &VisualizationHandler{
		registry: registry,
		results:  results,
	}
}

// GetVisualization handles GET /visualization/{job_id}/{filename}
func (h *VisualizationHandler) GetVisualization(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID := vars["job_id"]
	filename := filepath.Base(vars["filename"])

	outputDir := ""
	if rec, ok := h.results.Get(jobID); ok {
		outputDir = rec.OutputDir
	} else if job, ok := h.registry.Get(jobID); ok {
		outputDir = job.OutputDir
	}
	if outputDir == "" {
		http.Error(w, fmt.Sprintf("Analysis job %s not found", jobID), http.StatusNotFound)
		return
	}

	path := filepath.Join(outputDir, filename)
	if !strings.HasSuffix(filename, ".png") || !fileExists(path) {
		http.Error(w, "Visualization file not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
