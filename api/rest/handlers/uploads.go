package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// maxUploadBytes bounds the in-memory part of a multipart upload.
const maxUploadBytes = 32 << 20

// UploadHandler persists files submitted for analysis
type UploadHandler struct {
	dataDir string
}

// NewUploadHandler creates a new upload handler rooted at dataDir
func NewUploadHandler(dataDir string) *UploadHandler {
	return &UploadHandler{dataDir: dataDir}
}

// Upload handles POST /upload. The returned file_id names the stored copy
// and is what analysis_request expects.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := os.MkdirAll(h.dataDir, 0o755); err != nil {
		log.Printf("File upload failed: %v", err)
		http.Error(w, "File upload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Keep the extension so analyzers can sniff the format.
	fileID := uuid.New().String() + filepath.Ext(header.Filename)
	dst, err := os.Create(filepath.Join(h.dataDir, fileID))
	if err != nil {
		log.Printf("File upload failed: %v", err)
		http.Error(w, "File upload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		log.Printf("File upload failed: %v", err)
		http.Error(w, "File upload failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "success",
		"file_id":  fileID,
		"message":  "File uploaded successfully",
		"filename": header.Filename,
	})
}
