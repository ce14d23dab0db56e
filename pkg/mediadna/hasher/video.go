package hasher

import (
	"context"
	"fmt"

	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/classify"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/video"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

// Video samples frames at the midpoints of equal segments and hashes each
// frame unrotated.
type Video struct {
	tool    video.Tool
	samples int
	log     *logger.Logger
}

func NewVideo(tool video.Tool, samples int, log *logger.Logger) *Video {
	if samples <= 0 {
		samples = 5
	}
	return &Video{tool: tool, samples: samples, log: orDefault(log)}
}

func (h *Video) Name() string { return "video" }

func (h *Video) IsApplicable(ft classify.FileType) bool { return ft.IsVideo() }

func (h *Video) Hash(ctx context.Context, src Source) (Result, error) {
	path := src.Name()
	info, err := h.tool.Probe(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("%w: probe %s: %v", ErrCorrupt, path, err)
	}

	var tokens []models.Token
	for i, at := range video.SampleTimes(info.DurationSec, h.samples) {
		frame, err := h.tool.Frame(ctx, path, at)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			h.log.Debugf("skip segment %d of %s: %v", i, path, err)
			continue
		}
		ts, err := HashImage(frame, 0)
		if err != nil {
			h.log.Debugf("skip segment %d of %s: %v", i, path, err)
			continue
		}
		tokens = append(tokens, ts...)
	}

	if len(tokens) == 0 {
		return Result{}, fmt.Errorf("%w: no decodable frames in %s", ErrCorrupt, path)
	}

	return Result{
		Tokens:   models.UniqueTokens(tokens),
		Metadata: videoMetadata(info),
	}, nil
}

func videoMetadata(info *video.Info) models.Metadata {
	return models.Metadata{
		models.MetaTotalFrames: info.TotalFrames,
		models.MetaDuration:    round3(info.DurationSec),
	}
}
