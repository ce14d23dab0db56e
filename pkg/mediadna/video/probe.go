// Package video wraps the ffprobe and ffmpeg invocations used by the video
// hashers.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoVideoStream = errors.New("no video stream")
	ErrNoFrame       = errors.New("ffmpeg produced no frame")
)

// Tool locates the ffmpeg binaries and bounds each invocation.
type Tool struct {
	FFmpeg  string
	FFprobe string
	Timeout time.Duration
}

// DefaultTool uses ffmpeg and ffprobe from PATH.
func DefaultTool() Tool {
	return Tool{FFmpeg: "ffmpeg", FFprobe: "ffprobe", Timeout: 2 * time.Minute}
}

// Available reports whether both binaries can be found.
func (t Tool) Available() bool {
	if _, err := exec.LookPath(t.ffmpeg()); err != nil {
		return false
	}
	_, err := exec.LookPath(t.ffprobe())
	return err == nil
}

func (t Tool) ffmpeg() string {
	if t.FFmpeg == "" {
		return "ffmpeg"
	}
	return t.FFmpeg
}

func (t Tool) ffprobe() string {
	if t.FFprobe == "" {
		return "ffprobe"
	}
	return t.FFprobe
}

func (t Tool) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || t.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.Timeout)
}

// Info describes the first video stream of a file.
type Info struct {
	DurationSec float64
	TotalFrames int64
	Width       int
	Height      int
	Format      string
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		Format   string `json:"format_name"`
	} `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Duration     string `json:"duration"`
	NbFrames     string `json:"nb_frames"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

func (p *ffprobeOutput) firstVideoStream() *ffprobeStream {
	for i := range p.Streams {
		if p.Streams[i].CodecType == "video" {
			return &p.Streams[i]
		}
	}
	return nil
}

// Probe reads duration, frame count and dimensions with ffprobe.
func (t Tool) Probe(ctx context.Context, path string) (*Info, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(
		ctx,
		t.ffprobe(),
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, err
	}

	vs := probe.firstVideoStream()
	if vs == nil {
		return nil, ErrNoVideoStream
	}

	info := &Info{
		Width:  vs.Width,
		Height: vs.Height,
		Format: probe.Format.Format,
	}
	info.DurationSec = parseFloat(vs.Duration)
	if info.DurationSec <= 0 {
		info.DurationSec = parseFloat(probe.Format.Duration)
	}

	if n, err := strconv.ParseInt(vs.NbFrames, 10, 64); err == nil && n > 0 {
		info.TotalFrames = n
	} else if fps := parseRate(vs.AvgFrameRate); fps > 0 && info.DurationSec > 0 {
		info.TotalFrames = int64(math.Round(fps * info.DurationSec))
	}

	return info, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// parseRate parses ffprobe's "num/den" frame rates.
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	n, d := parseFloat(num), parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}
