package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/analysis"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/jobs"
	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

type recordedResearch struct {
	clientID   string
	prompt     string
	outputFile string
}

type stubStarter struct {
	calls []recordedResearch
}

func (s *stubStarter) StartResearch(clientID, prompt, outputFile string) string {
	s.calls = append(s.calls, recordedResearch{clientID, prompt, outputFile})
	return "job_stub"
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestCreateResearchStartsBackgroundJob(t *testing.T) {
	starter := &stubStarter{}
	h := NewResearchHandler(jobs.NewRegistry(), jobs.NewResults(), starter)

	req := httptest.NewRequest("POST", "/research", strings.NewReader(`{"prompt":"why is my idle rough"}`))
	rec := httptest.NewRecorder()
	h.CreateResearch(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "started", body["status"])
	assert.Equal(t, "Research task started", body["message"])

	clientID, _ := body["client_id"].(string)
	assert.True(t, strings.HasPrefix(clientID, "rest_"))
	outputFile, _ := body["output_file"].(string)
	assert.True(t, strings.HasPrefix(outputFile, "research_report_"))
	assert.True(t, strings.HasSuffix(outputFile, ".md"))

	require.Len(t, starter.calls, 1)
	assert.Equal(t, "why is my idle rough", starter.calls[0].prompt)
	assert.Equal(t, clientID, starter.calls[0].clientID)
	assert.Equal(t, outputFile, starter.calls[0].outputFile)
}

func TestCreateResearchRejectsEmptyPrompt(t *testing.T) {
	starter := &stubStarter{}
	h := NewResearchHandler(jobs.NewRegistry(), jobs.NewResults(), starter)

	req := httptest.NewRequest("POST", "/research", strings.NewReader(`{"prompt":""}`))
	rec := httptest.NewRecorder()
	h.CreateResearch(rec, req)

	body := decodeBody(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Research prompt cannot be empty", body["message"])
	assert.Empty(t, starter.calls)
}

func TestGetResearchResultsLifecycle(t *testing.T) {
	registry := jobs.NewRegistry()
	results := jobs.NewResults()
	h := NewResearchHandler(registry, results, &stubStarter{})

	router := mux.NewRouter()
	router.HandleFunc("/research/results/{job_id}", h.GetResearchResults)

	fetch := func(jobID string) map[string]interface{} {
		req := httptest.NewRequest("GET", "/research/results/"+jobID, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		return decodeBody(t, rec)
	}

	// Unknown job.
	body := fetch("job_missing")
	assert.Equal(t, "not_found", body["status"])
	assert.Equal(t, "Research job with ID job_missing not found", body["message"])

	// Active job.
	registry.Put(&models.Job{
		ID:         "job_live",
		ClientID:   "c1",
		Kind:       models.JobKindResearch,
		Status:     models.JobStatusPending,
		OutputFile: "live.md",
		StartTime:  time.Now(),
	})
	require.True(t, registry.Start("job_live"))
	require.True(t, registry.SetProgress("job_live", 55, "working"))

	body = fetch("job_live")
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, float64(55), body["progress"])
	assert.Equal(t, "live.md", body["output_file"])
	assert.Nil(t, body["ended_at"])

	// Completed job backed by a report file.
	reportPath := filepath.Join(t.TempDir(), "done.md")
	require.NoError(t, os.WriteFile(reportPath, []byte("# Done"), 0o644))
	results.Put(&models.CompletedJob{
		JobID:          "job_done",
		ClientID:       "c1",
		Kind:           models.JobKindResearch,
		Prompt:         "check coolant",
		Content:        "# Inlined",
		OutputFile:     "done.md",
		FilePath:       reportPath,
		CompletionTime: time.Now(),
	})

	body = fetch("job_done")
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "# Done", body["content"])
	assert.Equal(t, "check coolant", body["prompt"])
	assert.Equal(t, "done.md", body["output_file"])

	// Removed report file falls back to the inlined copy.
	require.NoError(t, os.Remove(reportPath))
	body = fetch("job_done")
	assert.Equal(t, "# Inlined", body["content"])
}

func analysisPayload(t *testing.T) *bytes.Reader {
	t.Helper()
	payload := map[string]interface{}{
		"analysis_type": "performance",
		"options": map[string]interface{}{
			"data": map[string]interface{}{
				"parameters": []interface{}{
					map[string]interface{}{"pid": "010C", "formattedValue": 800},
					map[string]interface{}{"pid": "010C", "formattedValue": 2500},
				},
			},
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func TestCreateAnalysisRunsInline(t *testing.T) {
	store := jobs.NewAnalysisStore()
	h := NewAnalysisHandler(analysis.NewEngine(), store)

	req := httptest.NewRequest("POST", "/analysis", analysisPayload(t))
	rec := httptest.NewRecorder()
	h.CreateAnalysis(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "performance", body["analysis_type"])

	resultID, _ := body["result_id"].(string)
	require.NotEmpty(t, resultID)
	result, ok := body["result"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, result["success"])
	assert.Equal(t, float64(2), result["data_points_analyzed"])

	_, ok = store.Get(resultID)
	assert.True(t, ok)
}

func TestCreateAnalysisRejectsEmptyData(t *testing.T) {
	h := NewAnalysisHandler(analysis.NewEngine(), jobs.NewAnalysisStore())

	req := httptest.NewRequest("POST", "/analysis", strings.NewReader(`{"analysis_type":"general","options":{}}`))
	rec := httptest.NewRecorder()
	h.CreateAnalysis(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No OBD2 data provided for analysis")
}

func TestGetAnalysisResult(t *testing.T) {
	store := jobs.NewAnalysisStore()
	h := NewAnalysisHandler(analysis.NewEngine(), store)

	router := mux.NewRouter()
	router.HandleFunc("/analysis/{result_id}", h.GetAnalysisResult)

	req := httptest.NewRequest("GET", "/analysis/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	store.Put(jobs.AnalysisResult{
		ResultID:     "res-1",
		AnalysisType: "diagnostics",
		Result:       map[string]interface{}{"success": true},
		Timestamp:    time.Now(),
	})

	req = httptest.NewRequest("GET", "/analysis/res-1", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "res-1", body["result_id"])
	assert.Equal(t, "diagnostics", body["analysis_type"])
}

func TestUploadStoresFile(t *testing.T) {
	dataDir := t.TempDir()
	h := NewUploadHandler(dataDir)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "drive_log.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("rpm,speed\n900,0\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "File uploaded successfully", body["message"])
	assert.Equal(t, "drive_log.csv", body["filename"])

	fileID, _ := body["file_id"].(string)
	require.NotEmpty(t, fileID)
	assert.True(t, strings.HasSuffix(fileID, ".csv"))

	saved, err := os.ReadFile(filepath.Join(dataDir, fileID))
	require.NoError(t, err)
	assert.Equal(t, "rpm,speed\n900,0\n", string(saved))
}

func TestUploadRequiresFileField(t *testing.T) {
	h := NewUploadHandler(t.TempDir())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetVisualizationServesPNG(t *testing.T) {
	registry := jobs.NewRegistry()
	results := jobs.NewResults()
	h := NewVisualizationHandler(registry, results)

	outputDir := t.TempDir()
	pngBytes := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	require.NoError(t, os.WriteFile(filepath.Join(outputDir, "chart.png"), pngBytes, 0o644))

	results.Put(&models.CompletedJob{
		JobID:          "analysis_1",
		ClientID:       "c1",
		Kind:           models.JobKindAnalysis,
		OutputDir:      outputDir,
		CompletionTime: time.Now(),
	})

	router := mux.NewRouter()
	router.HandleFunc("/visualization/{job_id}/{filename}", h.GetVisualization)

	req := httptest.NewRequest("GET", "/visualization/analysis_1/chart.png", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, pngBytes, rec.Body.Bytes())

	// Active jobs serve from their registry entry.
	registry.Put(&models.Job{
		ID:        "analysis_2",
		ClientID:  "c1",
		Kind:      models.JobKindAnalysis,
		Status:    models.JobStatusPending,
		OutputDir: outputDir,
		StartTime: time.Now(),
	})
	req = httptest.NewRequest("GET", "/visualization/analysis_2/chart.png", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Unknown jobs and non-png names are rejected.
	req = httptest.NewRequest("GET", "/visualization/analysis_9/chart.png", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest("GET", "/visualization/analysis_1/report.md", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	h := NewHealthHandler()
	h.SetAvailableServers([]string{"Researcher"})

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, []interface{}{"Researcher"}, body["available_servers"])
	features, ok := body["features"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, features["research"])
	assert.Equal(t, true, features["data_analysis"])

	req = httptest.NewRequest("GET", "/", nil)
	rec = httptest.NewRecorder()
	h.Root(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	message, _ := body["message"].(string)
	assert.Contains(t, message, "Research and Data Analysis Server")
}

func TestDashboardJobStats(t *testing.T) {
	registry := jobs.NewRegistry()
	h := NewDashboardHandler(registry)

	older := time.Now().Add(-time.Hour)
	registry.Put(&models.Job{
		ID:        "job_r1",
		ClientID:  "c1",
		Kind:      models.JobKindResearch,
		Status:    models.JobStatusPending,
		StartTime: older,
	})
	registry.Put(&models.Job{
		ID:        "analysis_a1",
		ClientID:  "c1",
		Kind:      models.JobKindAnalysis,
		Status:    models.JobStatusPending,
		StartTime: time.Now(),
	})
	require.True(t, registry.Start("analysis_a1"))
	require.True(t, registry.Complete("analysis_a1", "out"))

	req := httptest.NewRequest("GET", "/v1/dashboard/jobs", nil)
	rec := httptest.NewRecorder()
	h.GetJobStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	counts, ok := body["jobs"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), counts["pending"])
	assert.Equal(t, float64(1), counts["completed"])

	byKind, ok := body["by_kind"].(map[string]interface{})
	require.True(t, ok)
	research, ok := byKind["research"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), research["pending"])

	oldest, _ := body["oldest_active_start"].(string)
	parsed, err := time.Parse(time.RFC3339, oldest)
	require.NoError(t, err)
	assert.WithinDuration(t, older, parsed, time.Second)
}
