package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/analysis"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/jobs"
)

// AnalysisHandler handles synchronous OBD2 analysis requests
type AnalysisHandler struct {
	engine *analysis.Engine
	store  *jobs.AnalysisStore
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(engine *analysis.Engine, store *jobs.AnalysisStore) *AnalysisHandler {
	return &AnalysisHandler{
		engine: engine,
		store:  store,
	}
}

// CreateAnalysisRequest represents the request for an inline OBD2 analysis
type CreateAnalysisRequest struct {
	AnalysisType string                 `json:"analysis_type"`
	Options      map[string]interface{} `json:"options"`
}

// CreateAnalysis handles POST /analysis. The analysis runs inline over the
// records embedded in options.data and the result is stored for retrieval.
func (h *AnalysisHandler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req CreateAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	data, _ := req.Options["data"].(map[string]interface{})
	if len(data) == 0 {
		http.Error(w, "No OBD2 data provided for analysis", http.StatusBadRequest)
		return
	}

	analysisType := req.AnalysisType
	if analysisType == "" {
		analysisType = "general"
	}

	result := h.engine.Analyze(analysisType, data)

	resultID := uuid.New().String()
	h.store.Put(jobs.AnalysisResult{
		ResultID:     resultID,
		AnalysisType: analysisType,
		Result:       result,
		Timestamp:    time.Now(),
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":          "success",
		"result_id":       resultID,
		"result":          result,
		"analysis_type":   analysisType,
		"processing_time": result["processing_time"],
	})
}

// GetAnalysisResult handles GET /analysis/{result_id}
func (h *AnalysisHandler) GetAnalysisResult(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	resultID := vars["result_id"]

	rec, ok := h.store.Get(resultID)
	if !ok {
		http.Error(w, "Analysis result not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":        "success",
		"result_id":     resultID,
		"result":        rec.Result,
		"analysis_type": rec.AnalysisType,
		"timestamp":     unixSeconds(rec.Timestamp),
	})
}
