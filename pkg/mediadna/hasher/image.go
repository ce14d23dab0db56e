package hasher

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/himanishpuri/MediaDNA/pkg/mediadna/classify"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

// Angles hashed by the image hasher, counter-clockwise.
var Angles = []int{0, 90, 180, 270}

// Image computes a DCT perceptual hash of a decoded raster image at four
// rotations, so rotated copies share a token.
type Image struct{}

func NewImage() *Image { return &Image{} }

func (h *Image) Name() string { return "image" }

func (h *Image) IsApplicable(ft classify.FileType) bool { return ft.IsImage() }

func (h *Image) Hash(ctx context.Context, src Source) (Result, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", src.Name(), err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, src.Name(), err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	tokens, err := HashImage(img, Angles...)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, src.Name(), err)
	}

	b := img.Bounds()
	return Result{
		Tokens: tokens,
		Metadata: models.Metadata{
			models.MetaImageSize:   fmt.Sprintf("%d x %d", b.Dx(), b.Dy()),
			models.MetaCaptureTime: captureTime(data),
		},
	}, nil
}

// HashImage returns one perceptual token per requested angle. Angles other
// than multiples of 90 are rejected. Repeated tokens are kept once.
func HashImage(img image.Image, angles ...int) ([]models.Token, error) {
	if len(angles) == 0 {
		angles = []int{0}
	}
	// same pixel layout whatever the decoder returned
	img = imaging.Clone(img)
	tokens := make([]models.Token, 0, len(angles))
	for _, angle := range angles {
		rotated, err := rotate(img, angle)
		if err != nil {
			return nil, err
		}
		ph, err := goimagehash.PerceptionHash(rotated)
		if err != nil {
			return nil, fmt.Errorf("perception hash: %w", err)
		}
		tokens = append(tokens, models.NewPerceptualToken(ph.GetHash()))
	}
	return models.UniqueTokens(tokens), nil
}

func rotate(img image.Image, angle int) (image.Image, error) {
	switch ((angle % 360) + 360) % 360 {
	case 0:
		return img, nil
	case 90:
		return imaging.Rotate90(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate270(img), nil
	}
	return nil, fmt.Errorf("unsupported rotation %d", angle)
}

// captureTime reads EXIF DateTimeOriginal, or returns the unknown marker.
func captureTime(data []byte) string {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return models.UnknownCaptureTime
	}
	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		return models.UnknownCaptureTime
	}
	s, err := tag.StringVal()
	if err != nil {
		return models.UnknownCaptureTime
	}
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	if s == "" {
		return models.UnknownCaptureTime
	}
	return s
}
