package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"findoc/internal/config"
	"findoc/internal/finance"
	"findoc/internal/store"
)

// multipartMemory is the in-memory threshold for multipart parsing; larger
// parts spill to disk.
const multipartMemory = 32 << 20

type analyzeResponse struct {
	Status        string `json:"status"`
	Query         string `json:"query"`
	Analysis      string `json:"analysis"`
	FileProcessed string `json:"file_processed"`
	FileSize      int64  `json:"file_size"`
	ProcessingID  string `json:"processing_id"`
}

// errorResponse is the uniform error envelope for every non-2xx reply.
type errorResponse struct {
	Error      bool   `json:"error"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Type       string `json:"type"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Financial Document Analyzer API is running",
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_, err := os.Stat(s.dataRoot)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"data_directory":    err == nil,
		"required_env_vars": config.EnvStatus(),
	})
}

// handleAnalyze accepts a multipart upload (fields: file, query, tasks), runs
// the crew over it, and returns the generated report. The scratch copy of the
// upload never outlives the request.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "could not parse multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "Only PDF files are supported for financial document analysis")
		return
	}

	pipelines, err := finance.ParsePipelines(r.FormValue("tasks"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	query := strings.TrimSpace(r.FormValue("query"))
	if query == "" {
		query = finance.DefaultQuery
	}

	processingID := uuid.NewString()
	log.Printf("[API] processing upload file=%q processing_id=%s", header.Filename, processingID)

	path, size, err := s.store.Save(processingID, file)
	if err != nil {
		if errors.Is(err, store.ErrEmptyUpload) {
			writeError(w, http.StatusBadRequest, "Uploaded file is empty")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not save uploaded file: "+err.Error())
		return
	}
	defer s.store.Remove(path)

	analysis, err := s.analyzer.Analyze(r.Context(), processingID, query, path, pipelines)
	if err != nil {
		if errors.Is(err, finance.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, "File processing error: "+err.Error())
			return
		}
		log.Printf("[API] ERROR processing_id=%s: %v", processingID, err)
		writeError(w, http.StatusInternalServerError, "Error processing financial document: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Status:        "success",
		Query:         query,
		Analysis:      analysis,
		FileProcessed: header.Filename,
		FileSize:      size,
		ProcessingID:  processingID,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	kind := "HTTP Exception"
	if status >= http.StatusInternalServerError {
		kind = "Server Error"
	}
	writeJSON(w, status, errorResponse{
		Error:      true,
		StatusCode: status,
		Message:    message,
		Type:       kind,
	})
}
