package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	dst := filepath.Join(dir, "sub", "a.txt")
	os.WriteFile(src, []byte("payload"), 0o644)
	if err := MakeDir(filepath.Dir(dst)); err != nil {
		t.Fatalf("MakeDir: %v", err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if FileExists(src) {
		t.Error("source still exists after move")
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Fatalf("unexpected destination content %q, %v", data, err)
	}

	if err := MoveFile(src, dst); err == nil {
		t.Fatal("expected error moving a missing file")
	}
}

func TestCopyFileRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	os.WriteFile(src, []byte("new"), 0o600)
	os.WriteFile(dst, []byte("old"), 0o600)

	if err := copyFile(src, dst); err == nil {
		t.Fatal("expected copyFile to refuse an existing destination")
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "old" {
		t.Fatalf("destination was clobbered: %q", data)
	}
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	first := UniquePath(dir, "photo.jpg")
	if first != filepath.Join(dir, "photo.jpg") {
		t.Fatalf("unexpected free path %q", first)
	}
	os.WriteFile(first, nil, 0o644)

	second := UniquePath(dir, "photo.jpg")
	if second == first {
		t.Fatal("expected a different path for a taken name")
	}
	base := filepath.Base(second)
	if !strings.HasPrefix(base, "photo-") || filepath.Ext(base) != ".jpg" {
		t.Fatalf("unexpected collision name %q", base)
	}
}

func TestIsWithin(t *testing.T) {
	tests := []struct {
		path, dir string
		want      bool
	}{
		{"/a/b/c", "/a/b", true},
		{"/a/b", "/a/b", true},
		{"/a/bc", "/a/b", false},
		{"/a", "/a/b", false},
		{"/a/..b/c", "/a", true},
	}
	for _, tt := range tests {
		if got := IsWithin(tt.path, tt.dir); got != tt.want {
			t.Errorf("IsWithin(%q, %q) = %v, want %v", tt.path, tt.dir, got, tt.want)
		}
	}
}
