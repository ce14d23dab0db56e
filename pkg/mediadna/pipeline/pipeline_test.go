package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/hasher"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

func writePNG(t *testing.T, path string, shade uint8) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x*8) ^ shade})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	os.MkdirAll(filepath.Dir(path), 0o755)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func imageHashers() []hasher.Hasher {
	cfg := hasher.DefaultConfig()
	cfg.VideoStrategy = hasher.VideoOff
	cfg.Logger = logger.Discard()
	return hasher.Default(cfg)
}

func TestHashFileMergesHashers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	writePNG(t, path, 0)

	p := New(imageHashers(), 2, logger.Discard())
	rec, err := p.HashFile(context.Background(), path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if !rec.HasFamily(models.FamilyContent) || !rec.HasFamily(models.FamilyPerceptual) {
		t.Fatalf("expected both families, got %v", models.TokenKeys(rec.Tokens))
	}
	if rec.Metadata.FileSize() <= 0 {
		t.Error("missing file_size")
	}
	if rec.Metadata.String(models.MetaImageSize) != "32 x 32" {
		t.Errorf("image_size = %q", rec.Metadata.String(models.MetaImageSize))
	}
}

func TestHashFileFailureCategories(t *testing.T) {
	dir := t.TempDir()
	p := New(imageHashers(), 1, logger.Discard())

	_, err := p.HashFile(context.Background(), filepath.Join(dir, "missing.png"))
	if !errors.Is(err, ErrUnreadable) {
		t.Errorf("expected ErrUnreadable for missing file, got %v", err)
	}

	// a truncated png still yields a content token
	broken := filepath.Join(dir, "broken.png")
	os.WriteFile(broken, []byte("\x89PNG\r\n\x1a\n\x00\x00"), 0o644)
	rec, err := p.HashFile(context.Background(), broken)
	if err != nil {
		t.Fatalf("corrupt image should still hash by content: %v", err)
	}
	if rec.HasFamily(models.FamilyPerceptual) {
		t.Error("corrupt image must not produce perceptual tokens")
	}

	onlyImage := New([]hasher.Hasher{hasher.NewImage()}, 1, logger.Discard())
	text := filepath.Join(dir, "notes.txt")
	os.WriteFile(text, []byte("plain text"), 0o644)
	if _, err := onlyImage.HashFile(context.Background(), text); !errors.Is(err, ErrUnhashable) {
		t.Errorf("expected ErrUnhashable, got %v", err)
	}
}

func TestWalkExcludesTrashAndRunHashesEverything(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "one.png"), 0)
	writePNG(t, filepath.Join(root, "nested", "two.png"), 17)
	writePNG(t, filepath.Join(root, "nested", "deeper", "three.png"), 99)
	writePNG(t, filepath.Join(root, "Trash", "old.png"), 5)

	ctx := context.Background()
	paths, errc := Walk(ctx, root, filepath.Join(root, "Trash"))
	p := New(imageHashers(), 3, logger.Discard())

	var got []string
	for o := range p.Run(ctx, paths) {
		if o.Err != nil {
			t.Errorf("hash %s: %v", o.Path, o.Err)
			continue
		}
		if o.Record.Path != o.Path {
			t.Errorf("record path %q does not match %q", o.Record.Path, o.Path)
		}
		got = append(got, o.Path)
	}
	if err := <-errc; err != nil {
		t.Fatalf("walk: %v", err)
	}

	sort.Strings(got)
	want := []string{
		filepath.Join(root, "nested", "deeper", "three.png"),
		filepath.Join(root, "nested", "two.png"),
		filepath.Join(root, "one.png"),
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("path %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWalkMissingRoot(t *testing.T) {
	paths, errc := Walk(context.Background(), filepath.Join(t.TempDir(), "nope"))
	for range paths {
		t.Fatal("expected no paths")
	}
	if err := <-errc; err == nil {
		t.Fatal("expected an error for a missing root")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	paths := make(chan string)
	out := New(imageHashers(), 2, logger.Discard()).Run(ctx, paths)
	cancel()
	for range out {
	}
}
