package video

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os/exec"
	"strconv"
)

// SampleTimes returns the midpoints of n equal segments of a clip.
func SampleTimes(duration float64, n int) []float64 {
	if n <= 0 || duration <= 0 {
		return nil
	}
	seg := duration / float64(n)
	out := make([]float64, n)
	for i := range out {
		out[i] = (float64(i) + 0.5) * seg
	}
	return out
}

// Frame decodes the frame at the given offset in seconds.
func (t Tool) Frame(ctx context.Context, path string, at float64) (image.Image, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(
		ctx,
		t.ffmpeg(),
		"-v", "error",
		"-ss", strconv.FormatFloat(at, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "png",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg frame at %.3fs failed: %v (%s)", at, err, bytes.TrimSpace(stderr.Bytes()))
	}
	if stdout.Len() == 0 {
		return nil, ErrNoFrame
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode frame at %.3fs: %w", at, err)
	}
	return img, nil
}

// Barcode decodes key frames only, squeezes each into a single column of
// the given height by area averaging and stacks the columns left to right.
func (t Tool) Barcode(ctx context.Context, path string, height int) (*image.NRGBA, error) {
	if height <= 0 {
		return nil, fmt.Errorf("invalid barcode height %d", height)
	}

	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	cmd := exec.CommandContext(
		ctx,
		t.ffmpeg(),
		"-v", "error",
		"-skip_frame", "nokey",
		"-i", path,
		"-an",
		"-vsync", "0",
		"-vf", fmt.Sprintf("scale=1:%d:flags=area", height),
		"-pix_fmt", "rgb24",
		"-f", "rawvideo",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg barcode failed: %v (%s)", err, bytes.TrimSpace(stderr.Bytes()))
	}

	return assembleColumns(stdout.Bytes(), height)
}

// assembleColumns turns a stream of rgb24 1xH frames into an NRGBA image.
// A trailing partial column is dropped.
func assembleColumns(raw []byte, height int) (*image.NRGBA, error) {
	colBytes := height * 3
	cols := len(raw) / colBytes
	if cols == 0 {
		return nil, ErrNoFrame
	}

	img := image.NewNRGBA(image.Rect(0, 0, cols, height))
	for x := 0; x < cols; x++ {
		col := raw[x*colBytes : (x+1)*colBytes]
		for y := 0; y < height; y++ {
			o := img.PixOffset(x, y)
			img.Pix[o] = col[y*3]
			img.Pix[o+1] = col[y*3+1]
			img.Pix[o+2] = col[y*3+2]
			img.Pix[o+3] = 0xff
		}
	}
	return img, nil
}
