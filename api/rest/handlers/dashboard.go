package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/jobs"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

// DashboardHandler handles operator dashboard requests
type DashboardHandler struct {
	registry *jobs.Registry
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(registry *jobs.Registry) *DashboardHandler {
	return &DashboardHandler{registry: registry}
}

// GetJobStats handles GET /v1/dashboard/jobs
func (h *DashboardHandler) GetJobStats(w http.ResponseWriter, r *http.Request) {
	snapshot := h.registry.Snapshot()

	byKind := map[string]map[string]int{
		string(models.JobKindResearch): newStatusCounts(),
		string(models.JobKindAnalysis): newStatusCounts(),
	}
	var oldestActive *time.Time
	for _, job := range snapshot {
		counts, ok := byKind[string(job.Kind)]
		if !ok {
			counts = newStatusCounts()
			byKind[string(job.Kind)] = counts
		}
		counts[string(job.Status)]++

		if !job.Status.Terminal() {
			if oldestActive == nil || job.StartTime.Before(*oldestActive) {
				started := job.StartTime
				oldestActive = &started
			}
		}
	}

	response := map[string]interface{}{
		"jobs":    h.registry.Stats(),
		"by_kind": byKind,
	}
	if oldestActive != nil {
		response["oldest_active_start"] = oldestActive.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func newStatusCounts() map[string]int {
	return map[string]int{
		"pending":    0,
		"processing": 0,
		"completed":  0,
		"failed":     0,
	}
}
