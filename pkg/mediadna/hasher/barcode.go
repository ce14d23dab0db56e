package hasher

import (
	"context"
	"fmt"

	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/classify"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/video"
)

// Barcode squeezes every key frame into a one pixel column and hashes the
// stacked columns as a single image, at all four rotations.
type Barcode struct {
	tool      video.Tool
	maxHeight int
	log       *logger.Logger
}

func NewBarcode(tool video.Tool, maxHeight int, log *logger.Logger) *Barcode {
	if maxHeight <= 0 {
		maxHeight = 512
	}
	return &Barcode{tool: tool, maxHeight: maxHeight, log: orDefault(log)}
}

func (h *Barcode) Name() string { return "barcode" }

func (h *Barcode) IsApplicable(ft classify.FileType) bool { return ft.IsVideo() }

func (h *Barcode) Hash(ctx context.Context, src Source) (Result, error) {
	path := src.Name()
	info, err := h.tool.Probe(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%w: probe %s: %v", ErrCorrupt, path, err)
	}

	height := info.Height
	if height <= 0 || height > h.maxHeight {
		height = h.maxHeight
	}

	bar, err := h.tool.Barcode(ctx, path, height)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%w: barcode %s: %v", ErrCorrupt, path, err)
	}
	h.log.Debugf("barcode of %s: %d columns", path, bar.Bounds().Dx())

	tokens, err := HashImage(bar, Angles...)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}

	return Result{Tokens: tokens, Metadata: videoMetadata(info)}, nil
}
