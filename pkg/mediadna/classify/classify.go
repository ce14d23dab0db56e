// Package classify sniffs the content type of a file from its leading bytes.
package classify

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type Kind int

const (
	Unknown Kind = iota
	Image
	Video
	Other
)

func (k Kind) String() string {
	switch k {
	case Image:
		return "image"
	case Video:
		return "video"
	case Other:
		return "other"
	default:
		return "unknown"
	}
}

// FileType is the sniffed MIME type and its coarse kind.
type FileType struct {
	MIME string
	Kind Kind
}

// Raster formats the image hasher can decode.
var decodableImages = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/webp": true,
}

var videoAliases = map[string]bool{
	"application/x-matroska": true,
	"video/x-matroska":       true,
	"video/quicktime":        true,
	"video/x-msvideo":        true,
	"video/avi":              true,
}

// Classify sniffs path. Unreadable files yield Kind Unknown, never an error.
func Classify(path string) FileType {
	m, err := mimetype.DetectFile(path)
	if err != nil || m == nil {
		return FileType{Kind: Unknown}
	}
	return FromMIME(m.String())
}

// FromMIME maps a MIME string (parameters allowed) to a FileType.
func FromMIME(mime string) FileType {
	base, _, _ := strings.Cut(mime, ";")
	base = strings.ToLower(strings.TrimSpace(base))
	ft := FileType{MIME: base, Kind: Other}
	switch {
	case base == "":
		ft.Kind = Unknown
	case decodableImages[base]:
		ft.Kind = Image
	case strings.HasPrefix(base, "video/"), videoAliases[base]:
		ft.Kind = Video
	}
	return ft
}

// IsImage reports whether the file is a decodable raster image.
func (f FileType) IsImage() bool { return f.Kind == Image }

// IsVideo reports whether the file is a video container.
func (f FileType) IsVideo() bool { return f.Kind == Video }
