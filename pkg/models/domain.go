package models

import (
	"fmt"
	"strings"
)

// Recognised metadata keys.
const (
	MetaFileSize    = "file_size"
	MetaImageSize   = "image_size"
	MetaDuration    = "duration"
	MetaTotalFrames = "total_frames"
	MetaCaptureTime = "capture_time"
)

// UnknownCaptureTime marks a file whose capture time could not be read.
const UnknownCaptureTime = "unknown"

// Metadata holds descriptive values produced by hashers.
type Metadata map[string]any

// Merge copies keys from other that are not already set.
func (m Metadata) Merge(other Metadata) {
	for k, v := range other {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
}

// FileSize returns file_size as bytes. Numbers decoded from JSON or BSON
// arrive as float64 or int32, so every numeric form is accepted.
func (m Metadata) FileSize() int64 {
	switch v := m[MetaFileSize].(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	}
	return 0
}

// CaptureTime returns capture_time, or UnknownCaptureTime when missing.
func (m Metadata) CaptureTime() string {
	v, ok := m[MetaCaptureTime]
	if !ok || v == nil {
		return UnknownCaptureTime
	}
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" {
		return UnknownCaptureTime
	}
	return s
}

// String renders a metadata value for display, empty when absent.
func (m Metadata) String(key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// FileRecord is one indexed file. Path is its identity.
type FileRecord struct {
	Path     string   `json:"file_name"`
	Tokens   []Token  `json:"-"`
	Metadata Metadata `json:"metadata"`
}

// HasFamily reports whether the record holds a token of the given family.
func (r FileRecord) HasFamily(f Family) bool {
	for _, t := range r.Tokens {
		if t.Family == f {
			return true
		}
	}
	return false
}

// DuplicateCluster is a set of at least two files judged duplicates.
type DuplicateCluster struct {
	Token       string       `json:"token"`
	Family      Family       `json:"family"`
	Total       int          `json:"total"`
	MaxFileSize int64        `json:"max_file_size"`
	Items       []FileRecord `json:"items"`
}

// Paths lists the member paths in cluster order.
func (c DuplicateCluster) Paths() []string {
	out := make([]string, len(c.Items))
	for i, it := range c.Items {
		out[i] = it.Path
	}
	return out
}
