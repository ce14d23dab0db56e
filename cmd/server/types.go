package main

import (
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

// FileDTO is one indexed file in API responses.
type FileDTO struct {
	Path        string   `json:"file_name"`
	FileSize    int64    `json:"file_size"`
	ImageSize   string   `json:"image_size,omitempty"`
	Duration    string   `json:"duration,omitempty"`
	CaptureTime string   `json:"capture_time"`
	Tokens      []string `json:"tokens"`
}

func fileDTO(r models.FileRecord) FileDTO {
	return FileDTO{
		Path:        r.Path,
		FileSize:    r.Metadata.FileSize(),
		ImageSize:   r.Metadata.String(models.MetaImageSize),
		Duration:    r.Metadata.String(models.MetaDuration),
		CaptureTime: r.Metadata.CaptureTime(),
		Tokens:      models.TokenKeys(r.Tokens),
	}
}

// ListFilesResponse is the response for GET /api/files
type ListFilesResponse struct {
	Files []FileDTO `json:"files"`
	Count int       `json:"count"`
}

// ClusterDTO is one duplicate cluster.
type ClusterDTO struct {
	Token       string    `json:"token"`
	Family      string    `json:"family"`
	Total       int       `json:"total"`
	MaxFileSize int64     `json:"max_file_size"`
	Items       []FileDTO `json:"items"`
}

func clusterDTO(c models.DuplicateCluster) ClusterDTO {
	items := make([]FileDTO, len(c.Items))
	for i, it := range c.Items {
		items[i] = fileDTO(it)
	}
	return ClusterDTO{
		Token:       c.Token,
		Family:      string(c.Family),
		Total:       c.Total,
		MaxFileSize: c.MaxFileSize,
		Items:       items,
	}
}

// DuplicatesResponse is the response for GET /api/duplicates
type DuplicatesResponse struct {
	Clusters   []ClusterDTO `json:"clusters"`
	Count      int          `json:"count"`
	Duplicates int          `json:"duplicates"`
	Threshold  int          `json:"threshold"`
	MatchTime  bool         `json:"match_time"`
}

// DeleteFileResponse is the response for DELETE /api/files/{path}
type DeleteFileResponse struct {
	Path    string `json:"path"`
	Deleted bool   `json:"deleted"`
}

// MetricsResponse provides server health and index metrics
type MetricsResponse struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	RecordCount int    `json:"record_count"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
