package ws

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/models"
)

// dispatch routes one raw client frame. Clients send JSON objects, bare
// JSON strings, or plain text; anything carrying a usable prompt becomes a
// research job, so older frontends keep working.
func (h *Handler) dispatch(conn *Conn, raw []byte) {
	trimmed := strings.TrimSpace(string(raw))

	var decoded interface{}
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		// Plain text frame: the text is the prompt.
		if trimmed == "" {
			h.sendError(conn, "Invalid JSON format and empty plain text")
			return
		}
		h.startResearch(conn, trimmed, "")
		return
	}

	switch msg := decoded.(type) {
	case string:
		if prompt := strings.TrimSpace(msg); prompt != "" {
			h.startResearch(conn, prompt, "")
			return
		}
		h.sendError(conn, "Unsupported message format. Please send a research_request, message or string prompt.")
	case map[string]interface{}:
		h.dispatchObject(conn, msg)
	default:
		h.sendError(conn, "Unsupported message format. Please send a research_request, message or string prompt.")
	}
}

func (h *Handler) dispatchObject(conn *Conn, msg map[string]interface{}) {
	msgType, _ := msg["type"].(string)

	switch {
	case msgType == "heartbeat" || msgType == "ping":
		conn.Send(map[string]interface{}{
			"type":      "heartbeat_response",
			"timestamp": unixSeconds(time.Now()),
		})

	case msgType == "research_request":
		prompt, _ := msg["prompt"].(string)
		if prompt == "" {
			h.sendError(conn, "Research prompt cannot be empty")
			return
		}
		outputFile, _ := msg["output_file"].(string)
		h.startResearch(conn, prompt, outputFile)

	case msgType == "analysis_request":
		h.handleAnalysisRequest(conn, msg)

	case msgType == "get_result":
		h.handleGetResult(conn, msg)

	case msgType == "list_jobs":
		h.handleListJobs(conn)

	case msgType == "enable_terminal_view":
		jobID, _ := msg["job_id"].(string)
		if _, ok := h.registry.Get(jobID); jobID != "" && ok {
			conn.Send(map[string]interface{}{
				"type":    "terminal_view_enabled",
				"job_id":  jobID,
				"message": "Terminal view enabled for this research job",
			})
			return
		}
		h.sendError(conn, "Invalid job ID for terminal view")

	case msgType == "message", hasKey(msg, "content"):
		prompt, _ := msg["content"].(string)
		if prompt == "" {
			prompt, _ = msg["text"].(string)
		}
		if prompt == "" {
			h.sendError(conn, "Message content cannot be empty")
			return
		}
		h.startResearch(conn, prompt, "")

	default:
		// Bare ping shapes without a recognized type.
		if hasKey(msg, "ping") || hasKey(msg, "heartbeat") {
			conn.Send(map[string]interface{}{
				"type":      "pong",
				"timestamp": unixSeconds(time.Now()),
			})
			return
		}
		prompt := extractPrompt(msg)
		if prompt == "" {
			h.sendError(conn, "Could not find a valid research prompt in the message")
			return
		}
		h.startResearch(conn, prompt, "")
	}
}

func (h *Handler) handleAnalysisRequest(conn *Conn, msg map[string]interface{}) {
	fileID, _ := msg["file_id"].(string)
	if fileID == "" {
		h.sendError(conn, "No file ID provided. Upload a file first using the /upload endpoint.")
		return
	}

	// File ids are opaque names inside the data dir, never paths.
	filePath := filepath.Join(h.dataDir, filepath.Base(fileID))
	if _, err := os.Stat(filePath); err != nil {
		h.sendError(conn, fmt.Sprintf("File with ID %s not found. Upload the file first.", fileID))
		return
	}

	analysisType, _ := msg["analysis_type"].(string)
	if analysisType == "" {
		analysisType = "general"
	}
	options, _ := msg["options"].(map[string]interface{})

	conn.Send(map[string]interface{}{
		"type":    "analysis_status",
		"status":  "initializing",
		"message": "Initializing data analysis...",
	})
	h.starter.StartAnalysis(conn.clientID, fileID, filePath, analysisType, options)
}

func (h *Handler) handleGetResult(conn *Conn, msg map[string]interface{}) {
	jobID, _ := msg["job_id"].(string)
	if jobID == "" {
		h.sendError(conn, "Job ID is required to retrieve results")
		return
	}

	if rec, ok := h.research.Get(jobID); ok {
		// Prefer the file on disk; fall back to the inlined copy so
		// retrieval still works after the report file is removed.
		content := rec.Content
		if data, err := os.ReadFile(rec.FilePath); err == nil {
			content = string(data)
		}
		conn.Send(map[string]interface{}{
			"type":            "research_result",
			"job_id":          jobID,
			"status":          "completed",
			"output_file":     rec.OutputFile,
			"content":         content,
			"prompt":          rec.Prompt,
			"completion_time": unixSeconds(rec.CompletionTime),
		})
		return
	}

	if job, ok := h.registry.Get(jobID); ok {
		conn.Send(map[string]interface{}{
			"type":        "research_status",
			"job_id":      jobID,
			"status":      string(job.Status),
			"progress":    job.Progress,
			"output_file": job.OutputFile,
			"message":     fmt.Sprintf("Research is %s", job.Status),
		})
		return
	}

	h.sendError(conn, fmt.Sprintf("Research job with ID %s not found", jobID))
}

func (h *Handler) handleListJobs(conn *Conn) {
	var active []models.Job
	for _, job := range h.registry.Active() {
		if job.ClientID == conn.clientID {
			active = append(active, job)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].StartTime.Before(active[j].StartTime)
	})
	activeJobs := make([]map[string]interface{}, 0, len(active))
	for _, job := range active {
		activeJobs = append(activeJobs, map[string]interface{}{
			"job_id":      job.ID,
			"status":      string(job.Status),
			"progress":    job.Progress,
			"output_file": job.OutputFile,
		})
	}

	conn.Send(map[string]interface{}{
		"type":           "job_list",
		"active_jobs":    activeJobs,
		"completed_jobs": h.completedJobsFor(conn.clientID),
	})
}

// startResearch acknowledges the request and hands the prompt to the
// runner.
func (h *Handler) startResearch(conn *Conn, prompt, outputFile string) {
	conn.Send(map[string]interface{}{
		"type":    "research_status",
		"status":  "initializing",
		"message": "Initializing research agent...",
	})
	h.starter.StartResearch(conn.clientID, prompt, outputFile)
}

func (h *Handler) sendError(conn *Conn, message string) {
	conn.Send(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

func hasKey(msg map[string]interface{}, key string) bool {
	_, ok := msg[key]
	return ok
}

// extractPrompt digs a prompt out of an unrecognized object: an explicit
// prompt field first, otherwise the first string value long enough to be a
// question, scanning keys in sorted order so the choice is deterministic.
func extractPrompt(msg map[string]interface{}) string {
	if prompt, _ := msg["prompt"].(string); prompt != "" {
		return prompt
	}
	keys := make([]string, 0, len(msg))
	for key := range msg {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if s, ok := msg[key].(string); ok && len(s) > 5 {
			return s
		}
	}
	return ""
}
