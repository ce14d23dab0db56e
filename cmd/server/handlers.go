package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna"
	"github.com/himanishpuri/MediaDNA/pkg/models"
	"github.com/himanishpuri/MediaDNA/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service mediadna.Service
	config  *ServerConfig
	log     *logger.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr             string
	Store            string
	AllowedOrigins   []string
	Threshold        int
	MatchCaptureTime bool
}

// NewServer creates a new server instance
func NewServer(service mediadna.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": "MediaDNA API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":     "GET /health",
			"metrics":    "GET /api/health/metrics",
			"prometheus": "GET /metrics",
			"files":      "GET /api/files",
			"duplicates": "GET /api/duplicates?match_time=&threshold=",
			"deleteFile": "DELETE /api/files/{path}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	n, err := s.service.Count(r.Context())
	if err != nil {
		s.log.Errorf("Failed to count records: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	s.respondJSON(w, http.StatusOK, MetricsResponse{
		Status:      "healthy",
		Store:       s.config.Store,
		RecordCount: n,
	})
}

// handleListFiles handles GET /api/files
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.Records(r.Context())
	if err != nil {
		s.log.Errorf("Failed to list files: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve files")
		return
	}

	files := make([]FileDTO, len(records))
	for i, rec := range records {
		files[i] = fileDTO(rec)
	}
	s.respondJSON(w, http.StatusOK, ListFilesResponse{
		Files: files,
		Count: len(files),
	})
}

// handleDuplicates handles GET /api/duplicates
func (s *Server) handleDuplicates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	opts := mediadna.FindOptions{
		MatchCaptureTime: s.config.MatchCaptureTime,
		Threshold:        s.config.Threshold,
	}
	q := r.URL.Query()
	if v := q.Get("match_time"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "match_time must be a boolean")
			return
		}
		opts.MatchCaptureTime = b
	}
	if v := q.Get("threshold"); v != "" {
		t, err := strconv.Atoi(v)
		if err != nil || t > models.PerceptualBits {
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("threshold must be an integer up to %d", models.PerceptualBits))
			return
		}
		opts.Threshold = t
	}

	clusters, err := s.service.FindDuplicates(r.Context(), opts)
	if err != nil {
		s.log.Errorf("Failed to find duplicates: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to find duplicates")
		return
	}

	resp := DuplicatesResponse{
		Clusters:  make([]ClusterDTO, len(clusters)),
		Count:     len(clusters),
		Threshold: opts.Threshold,
		MatchTime: opts.MatchCaptureTime,
	}
	for i, c := range clusters {
		resp.Clusters[i] = clusterDTO(c)
		resp.Duplicates += c.Total - 1
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleDeleteFile handles DELETE /api/files/{path}. Only indexed files
// are accepted; the file is moved to the trash directory and its record
// dropped.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request, path string) {
	if !utils.FileExists(path) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("File %s not found", path))
		return
	}
	indexed, err := s.service.IsIndexed(r.Context(), path)
	if err != nil {
		s.log.Errorf("Failed to look up %s: %v", path, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to query the index")
		return
	}
	if !indexed {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("File %s is not indexed", path))
		return
	}
	if !s.service.DeleteFile(r.Context(), path) {
		s.respondError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete %s", path))
		return
	}

	s.log.Infof("Deleted file: %s", path)
	s.respondJSON(w, http.StatusOK, DeleteFileResponse{Path: path, Deleted: true})
}

// handleFiles routes requests to /api/files
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListFiles(w, r)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleFile routes requests to /api/files/{path}
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(r.URL.Path, "/api/files/")
	if p == "" {
		s.respondError(w, http.StatusBadRequest, "File path required")
		return
	}
	// the mux cleans away the leading slash of absolute paths
	if !filepath.IsAbs(p) {
		p = "/" + p
	}
	p = filepath.Clean(p)

	switch r.Method {
	case http.MethodDelete:
		s.handleDeleteFile(w, r, p)
	default:
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
