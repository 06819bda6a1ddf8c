package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
)

// HealthHandler serves the service document and health probe
type HealthHandler struct {
	mu      sync.RWMutex
	servers []string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// SetAvailableServers records the agent names advertised to clients.
func (h *HealthHandler) SetAvailableServers(servers []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.servers = servers
}

func (h *HealthHandler) availableServers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.servers == nil {
		return []string{}
	}
	return h.servers
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":            "healthy",
		"available_servers": h.availableServers(),
		"features": map[string]interface{}{
			"research":      true,
			"data_analysis": true,
		},
	})
}

// Root handles GET / with a short service document
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":           "Research and Data Analysis Server. Connect via WebSocket at /ws or /research-ws or use the REST endpoints.",
		"available_servers": h.availableServers(),
		"features":          []string{"research", "data_analysis"},
		"example": map[string]interface{}{
			"websocket": map[string]interface{}{
				"connect":          "ws://localhost:8001/ws",
				"reconnect":        "ws://localhost:8001/ws?client_id=YOUR_CLIENT_ID",
				"research_request": map[string]interface{}{"type": "research_request", "prompt": "Your research question here"},
				"analysis_request": map[string]interface{}{"type": "analysis_request", "file_id": "YOUR_FILE_ID", "analysis_type": "general"},
				"message":          map[string]interface{}{"type": "message", "content": "Your research question here"},
				"string":           "Your research question here",
				"get_result":       map[string]interface{}{"type": "get_result", "job_id": "job_12345"},
				"list_jobs":        map[string]interface{}{"type": "list_jobs"},
			},
			"rest": map[string]interface{}{
				"post /research": map[string]interface{}{"prompt": "Your research question here", "output_file": "optional_filename.md"},
				"post /upload":   "Upload a file for analysis",
				"post /analysis": "Analyze inline OBD2 records",
				"get /visualization/{job_id}/{filename}": "Get a visualization image",
				"get /research/results/{job_id}":         "Retrieve results by job ID",
			},
		},
		"analysis_types": map[string]interface{}{
			"general":                "Standard comprehensive analysis",
			"performance":            "Engine RPM, load and idle profile",
			"diagnostics":            "DTC categorization and out-of-range parameters",
			"fuel_efficiency":        "Efficiency score over load, rpm and speed bands",
			"maintenance_prediction": "Predicted maintenance items with cost ranges",
			"driving_behavior":       "Smoothness, speeding and throttle behavior",
		},
	})
}
