package hasher

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/classify"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/video"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

// testPattern draws an asymmetric image so every rotation hashes differently.
func testPattern(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x * 255) / w)
			if x < w/3 && y < h/4 {
				v = 255
			}
			if x > w/2 && y > (2*h)/3 {
				v = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: uint8((y * 255) / h), B: v / 2, A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func hashFile(t *testing.T, h Hasher, path string) (Result, error) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	return h.Hash(context.Background(), f)
}

func TestContentHasherIdentity(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	c := filepath.Join(dir, "c.bin")
	payload := bytes.Repeat([]byte("mediadna"), 20000)
	os.WriteFile(a, payload, 0o644)
	os.WriteFile(b, payload, 0o644)
	os.WriteFile(c, append(payload, '!'), 0o644)

	h := NewContent(16)
	ra, err := hashFile(t, h, a)
	if err != nil {
		t.Fatalf("hash a: %v", err)
	}
	rb, _ := hashFile(t, h, b)
	rc, _ := hashFile(t, h, c)

	if len(ra.Tokens) != 1 || ra.Tokens[0].Family != models.FamilyContent {
		t.Fatalf("expected one bin token, got %v", ra.Tokens)
	}
	if ra.Tokens[0].Bits() != 128 {
		t.Errorf("expected 128-bit digest, got %d", ra.Tokens[0].Bits())
	}
	if ra.Tokens[0].Key() != rb.Tokens[0].Key() {
		t.Error("identical bytes produced different tokens")
	}
	if ra.Tokens[0].Key() == rc.Tokens[0].Key() {
		t.Error("different bytes produced the same token")
	}
	if got := ra.Metadata.FileSize(); got != int64(len(payload)) {
		t.Errorf("file_size = %d, want %d", got, len(payload))
	}
}

func TestImageHasherRotationReproducible(t *testing.T) {
	dir := t.TempDir()
	orig := testPattern(96, 64)
	p0 := writePNG(t, dir, "orig.png", orig)
	p90 := writePNG(t, dir, "rot.png", imaging.Rotate90(orig))

	h := NewImage()
	r0, err := hashFile(t, h, p0)
	if err != nil {
		t.Fatalf("hash original: %v", err)
	}
	r90, err := hashFile(t, h, p90)
	if err != nil {
		t.Fatalf("hash rotated: %v", err)
	}

	if len(r0.Tokens) != 4 {
		t.Fatalf("expected 4 rotation tokens, got %d", len(r0.Tokens))
	}
	shared := 0
	keys := map[string]bool{}
	for _, tok := range r0.Tokens {
		keys[tok.Key()] = true
	}
	for _, tok := range r90.Tokens {
		if keys[tok.Key()] {
			shared++
		}
	}
	if shared == 0 {
		t.Fatal("rotated copy shares no token with the original")
	}

	if got := r0.Metadata.String(models.MetaImageSize); got != "96 x 64" {
		t.Errorf("image_size = %q", got)
	}
	if got := r0.Metadata.CaptureTime(); got != models.UnknownCaptureTime {
		t.Errorf("expected unknown capture time for png, got %q", got)
	}
}

func TestImageHasherCorruptInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}, 0o644)

	_, err := hashFile(t, NewImage(), path)
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

// exifSegment builds an APP1 segment holding only DateTimeOriginal.
func exifSegment(when string) []byte {
	tiff := new(bytes.Buffer)
	be := binary.BigEndian
	tiff.WriteString("MM")
	binary.Write(tiff, be, uint16(42))
	binary.Write(tiff, be, uint32(8))
	// IFD0 with the Exif sub-IFD pointer
	binary.Write(tiff, be, uint16(1))
	binary.Write(tiff, be, uint16(0x8769))
	binary.Write(tiff, be, uint16(4))
	binary.Write(tiff, be, uint32(1))
	binary.Write(tiff, be, uint32(26))
	binary.Write(tiff, be, uint32(0))
	// Exif IFD
	binary.Write(tiff, be, uint16(1))
	binary.Write(tiff, be, uint16(0x9003))
	binary.Write(tiff, be, uint16(2))
	binary.Write(tiff, be, uint32(len(when)+1))
	binary.Write(tiff, be, uint32(44))
	binary.Write(tiff, be, uint32(0))
	tiff.WriteString(when)
	tiff.WriteByte(0)

	seg := new(bytes.Buffer)
	seg.Write([]byte{0xFF, 0xE1})
	binary.Write(seg, be, uint16(2+6+tiff.Len()))
	seg.WriteString("Exif\x00\x00")
	seg.Write(tiff.Bytes())
	return seg.Bytes()
}

func TestImageHasherReadsCaptureTime(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testPattern(64, 64), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	raw := buf.Bytes()
	withExif := append(append(append([]byte{}, raw[:2]...), exifSegment("2021:03:04 05:06:07")...), raw[2:]...)

	path := filepath.Join(t.TempDir(), "dated.jpg")
	os.WriteFile(path, withExif, 0o644)

	res, err := hashFile(t, NewImage(), path)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if got := res.Metadata.CaptureTime(); got != "2021:03:04 05:06:07" {
		t.Fatalf("capture_time = %q", got)
	}
}

func TestDefaultHasherSelection(t *testing.T) {
	names := func(hs []Hasher) []string {
		out := []string{}
		for _, h := range hs {
			out = append(out, h.Name())
		}
		return out
	}

	cfg := DefaultConfig()
	cfg.Logger = logger.Discard()
	if got := names(Default(cfg)); len(got) != 3 || got[2] != "video" {
		t.Errorf("sample strategy: %v", got)
	}
	cfg.VideoStrategy = VideoBarcode
	if got := names(Default(cfg)); len(got) != 3 || got[2] != "barcode" {
		t.Errorf("barcode strategy: %v", got)
	}
	cfg.VideoStrategy = VideoOff
	if got := names(Default(cfg)); len(got) != 2 {
		t.Errorf("off strategy: %v", got)
	}

	vid := classify.FileType{MIME: "video/mp4", Kind: classify.Video}
	img := classify.FileType{MIME: "image/png", Kind: classify.Image}
	if NewImage().IsApplicable(vid) || !NewImage().IsApplicable(img) {
		t.Error("image hasher applicability is wrong")
	}
	if !NewContent(0).IsApplicable(vid) {
		t.Error("content hasher must apply to every file")
	}
}

func TestVideoHashers(t *testing.T) {
	tool := video.DefaultTool()
	if !tool.Available() {
		t.Skipf("ffmpeg/ffprobe not available")
	}

	path := filepath.Join(t.TempDir(), "clip.avi")
	cmd := exec.Command(tool.FFmpeg, "-v", "quiet", "-y",
		"-f", "lavfi", "-i", "testsrc=duration=3:size=96x64:rate=10",
		"-c:v", "mpeg4", "-g", "5", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("cannot generate fixture: %v (%s)", err, out)
	}

	for _, h := range []Hasher{
		NewVideo(tool, 5, logger.Discard()),
		NewBarcode(tool, 512, logger.Discard()),
	} {
		t.Run(h.Name(), func(t *testing.T) {
			res, err := hashFile(t, h, path)
			if err != nil {
				t.Fatalf("hash: %v", err)
			}
			if len(res.Tokens) == 0 {
				t.Fatal("expected perceptual tokens")
			}
			for _, tok := range res.Tokens {
				if tok.Family != models.FamilyPerceptual || tok.Bits() != 64 {
					t.Errorf("unexpected token %s", tok.Key())
				}
			}
			if _, ok := res.Metadata[models.MetaTotalFrames]; !ok {
				t.Error("missing total_frames")
			}
			if _, ok := res.Metadata[models.MetaDuration]; !ok {
				t.Error("missing duration")
			}

			again, err := hashFile(t, h, path)
			if err != nil {
				t.Fatalf("rehash: %v", err)
			}
			if models.TokenKeys(again.Tokens)[0] != models.TokenKeys(res.Tokens)[0] {
				t.Error("video hashing is not deterministic")
			}
		})
	}
}
