package classify

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func encoded(t *testing.T, encode func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestClassifySniffsContentNotExtension(t *testing.T) {
	pngBytes := encoded(t, func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) })
	jpgBytes := encoded(t, func(b *bytes.Buffer, i image.Image) error { return jpeg.Encode(b, i, nil) })

	tests := []struct {
		name string
		file string
		data []byte
		kind Kind
		mime string
	}{
		{"png with wrong extension", "photo.txt", pngBytes, Image, "image/png"},
		{"jpeg without extension", "photo", jpgBytes, Image, "image/jpeg"},
		{"plain text", "notes.jpg", []byte("hello world\n"), Other, "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ft := Classify(writeFile(t, tt.file, tt.data))
			if ft.Kind != tt.kind {
				t.Errorf("kind = %v, want %v", ft.Kind, tt.kind)
			}
			if ft.MIME != tt.mime {
				t.Errorf("mime = %q, want %q", ft.MIME, tt.mime)
			}
		})
	}
}

func TestClassifyMissingFile(t *testing.T) {
	ft := Classify(filepath.Join(t.TempDir(), "gone.png"))
	if ft.Kind != Unknown {
		t.Fatalf("expected Unknown for missing file, got %v", ft.Kind)
	}
}

func TestFromMIME(t *testing.T) {
	tests := map[string]Kind{
		"video/mp4":              Video,
		"video/x-matroska":       Video,
		"application/x-matroska": Video,
		"image/heic":             Other,
		"image/webp":             Image,
		"text/plain; charset=utf-8": Other,
		"":                       Unknown,
	}
	for mime, want := range tests {
		if got := FromMIME(mime).Kind; got != want {
			t.Errorf("FromMIME(%q) = %v, want %v", mime, got, want)
		}
	}
}
