// Package hasher turns media files into fingerprint tokens.
//
// Each Hasher decides from the sniffed file type whether it applies, then
// reads its own freshly opened Source. A decode failure is reported as
// ErrCorrupt so the caller can keep the tokens other hashers produced.
package hasher

import (
	"context"
	"errors"
	"io"
	"math"

	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/classify"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/video"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

// ErrCorrupt marks content that could not be decoded.
var ErrCorrupt = errors.New("cannot decode media")

// Source is a readable stream that knows where it came from. *os.File
// satisfies it.
type Source interface {
	io.Reader
	Name() string
}

// Result is what a hasher extracted from one file.
type Result struct {
	Tokens   []models.Token
	Metadata models.Metadata
}

type Hasher interface {
	Name() string
	IsApplicable(ft classify.FileType) bool
	Hash(ctx context.Context, src Source) (Result, error)
}

// Video strategies.
const (
	VideoSample  = "sample"
	VideoBarcode = "barcode"
	VideoOff     = "off"
)

// Config selects and tunes the default hasher set.
type Config struct {
	DigestSize       int
	VideoStrategy    string
	VideoSamples     int
	BarcodeMaxHeight int
	Tool             video.Tool
	Logger           *logger.Logger
}

// DefaultConfig mirrors the built-in configuration defaults.
func DefaultConfig() Config {
	return Config{
		DigestSize:       16,
		VideoStrategy:    VideoSample,
		VideoSamples:     5,
		BarcodeMaxHeight: 512,
		Tool:             video.DefaultTool(),
	}
}

// Default returns content, image and the selected video hasher, in that order.
func Default(cfg Config) []Hasher {
	hs := []Hasher{
		NewContent(cfg.DigestSize),
		NewImage(),
	}
	switch cfg.VideoStrategy {
	case VideoBarcode:
		hs = append(hs, NewBarcode(cfg.Tool, cfg.BarcodeMaxHeight, cfg.Logger))
	case VideoOff:
	default:
		hs = append(hs, NewVideo(cfg.Tool, cfg.VideoSamples, cfg.Logger))
	}
	return hs
}

func orDefault(l *logger.Logger) *logger.Logger {
	if l == nil {
		return logger.GetLogger()
	}
	return l
}

// round3 keeps reported durations readable.
func round3(sec float64) float64 {
	return math.Round(sec*1000) / 1000
}
