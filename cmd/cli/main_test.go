package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/himanishpuri/MediaDNA/pkg/mediadna/storage"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

type cliEnv struct {
	dir   string
	db    string
	trash string
	media string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("MEDIADNA_DB_KIND", "")
	t.Setenv("MEDIADNA_DB_LOCATION", "")
	t.Setenv("LOG_LEVEL", "")
	env := cliEnv{
		dir:   dir,
		db:    filepath.Join(dir, "db.sqlite"),
		trash: filepath.Join(dir, "Trash"),
		media: filepath.Join(dir, "media"),
	}
	if err := os.MkdirAll(env.media, 0o755); err != nil {
		t.Fatal(err)
	}
	return env
}

func (e cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	base := []string{
		"--config", filepath.Join(e.dir, "none.toml"),
		"--db-location", e.db,
		"--log-level", "error",
	}
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, base...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeImage(t *testing.T, path string, checker bool) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 48, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 48; x++ {
			v := uint8(x*5 + y)
			if checker {
				v = 0
				if (x/6+y/6)%2 == 0 {
					v = 255
				}
			}
			img.SetNRGBA(x, y, color.NRGBA{R: v, G: v / 2, B: 255 - v, A: 255})
		}
	}
	if err := imaging.Save(img, path); err != nil {
		t.Fatalf("save %s: %v", path, err)
	}
}

func (e cliEnv) seed(t *testing.T) (a, b, c string) {
	t.Helper()
	a = filepath.Join(e.media, "a.png")
	b = filepath.Join(e.media, "b.png")
	c = filepath.Join(e.media, "c.png")
	writeImage(t, a, false)
	data, err := os.ReadFile(a)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, data, 0o644); err != nil {
		t.Fatal(err)
	}
	writeImage(t, c, true)
	return a, b, c
}

func showRecords(t *testing.T, e cliEnv) []recordView {
	t.Helper()
	out, err := e.run(t, "", "show", "--json")
	if err != nil {
		t.Fatalf("show: %v\n%s", err, out)
	}
	var views []recordView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode show output: %v\n%s", err, out)
	}
	return views
}

func TestAddFindDelete(t *testing.T) {
	e := newCLIEnv(t)
	a, b, _ := e.seed(t)

	out, err := e.run(t, "", "add", "--no-progress", "--video", "off", e.media)
	if err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Indexed 3 new files") {
		t.Fatalf("unexpected add output:\n%s", out)
	}
	if n := len(showRecords(t, e)); n != 3 {
		t.Fatalf("expected 3 records, got %d", n)
	}

	out, err = e.run(t, "", "find", "--json")
	if err != nil {
		t.Fatalf("find: %v\n%s", err, out)
	}
	var clusters []models.DuplicateCluster
	if err := json.Unmarshal([]byte(out), &clusters); err != nil {
		t.Fatalf("decode find output: %v\n%s", err, out)
	}
	if len(clusters) != 1 || clusters[0].Total != 2 {
		t.Fatalf("expected one cluster of two, got %+v", clusters)
	}
	if got := clusters[0].Paths(); got[0] != a || got[1] != b {
		t.Fatalf("unexpected members %v", got)
	}

	out, err = e.run(t, "", "find", "--print")
	if err != nil || !strings.Contains(out, "1 clusters, 1 duplicate files") {
		t.Fatalf("find --print: %v\n%s", err, out)
	}
	plain, err := e.run(t, "", "find")
	if err != nil || plain != out {
		t.Fatalf("find without a mode should match --print: %v\n%s", err, plain)
	}

	out, err = e.run(t, "", "find", "--delete", "--trash", e.trash)
	if err != nil {
		t.Fatalf("find --delete: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Deleted 1/1 files") {
		t.Fatalf("unexpected delete output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(e.trash, "b.png")); err != nil {
		t.Fatalf("expected b.png in trash: %v", err)
	}
	if n := len(showRecords(t, e)); n != 2 {
		t.Fatalf("expected 2 records after delete, got %d", n)
	}
}

func TestRootPrintsBanner(t *testing.T) {
	e := newCLIEnv(t)
	out, err := e.run(t, "")
	if err != nil {
		t.Fatalf("root: %v\n%s", err, out)
	}
	if !strings.HasPrefix(out, banner) {
		t.Fatalf("output does not start with the banner:\n%s", out)
	}
	if strings.HasPrefix(out, banner+"\n") {
		t.Fatal("banner followed by an extra blank line")
	}
	if !strings.Contains(out, "Usage:") {
		t.Fatalf("missing help text:\n%s", out)
	}
}

func TestFindRejectsConflictingModes(t *testing.T) {
	e := newCLIEnv(t)
	if _, err := e.run(t, "", "find", "--json", "--delete"); err == nil {
		t.Fatal("expected --json and --delete to conflict")
	}
	if _, err := e.run(t, "", "find", "--print", "--json"); err == nil {
		t.Fatal("expected --print and --json to conflict")
	}
	if _, err := e.run(t, "", "find", "--threshold", "65"); err == nil {
		t.Fatal("expected an out of range threshold to fail")
	}
}

func TestRemovePruneClear(t *testing.T) {
	e := newCLIEnv(t)
	_, _, c := e.seed(t)
	if out, err := e.run(t, "", "add", "--no-progress", e.media); err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}

	out, err := e.run(t, "", "remove", c)
	if err != nil || !strings.Contains(out, "Removed 1 records") {
		t.Fatalf("remove: %v\n%s", err, out)
	}

	os.Remove(filepath.Join(e.media, "b.png"))
	out, err = e.run(t, "", "prune")
	if err != nil || !strings.Contains(out, "Pruned 1 records") {
		t.Fatalf("prune: %v\n%s", err, out)
	}

	out, err = e.run(t, "n\n", "clear")
	if err != nil || !strings.Contains(out, "Aborted") {
		t.Fatalf("clear without confirmation: %v\n%s", err, out)
	}
	if n := len(showRecords(t, e)); n != 1 {
		t.Fatalf("aborted clear should keep records, got %d", n)
	}

	out, err = e.run(t, "", "clear", "--yes")
	if err != nil || !strings.Contains(out, "Cleared 1 records") {
		t.Fatalf("clear --yes: %v\n%s", err, out)
	}
}

func TestShowTable(t *testing.T) {
	e := newCLIEnv(t)
	e.seed(t)
	if out, err := e.run(t, "", "add", "--no-progress", e.media); err != nil {
		t.Fatalf("add: %v\n%s", err, out)
	}
	out, err := e.run(t, "", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	// go-pretty upper-cases headers and footers
	lower := strings.ToLower(out)
	for _, want := range []string{"a.png", "c.png", "3 files", "48 x 48"} {
		if !strings.Contains(lower, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestWriterLockIsExclusive(t *testing.T) {
	e := newCLIEnv(t)
	lock, err := storage.AcquireLock(e.db + ".lock")
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	_, err = e.run(t, "", "prune")
	if err == nil || !strings.Contains(err.Error(), "another mediadna process") {
		t.Fatalf("expected lock contention error, got %v", err)
	}
	// readers do not need the lock
	if _, err := e.run(t, "", "show"); err != nil {
		t.Fatalf("show while locked: %v", err)
	}
}

func TestConfigInit(t *testing.T) {
	e := newCLIEnv(t)
	target := filepath.Join(e.dir, "cfg", "mediadna.toml")

	out, err := e.run(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if _, err := e.run(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected an error when the file exists")
	}
	if _, err := e.run(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	out, err = e.run(t, "", "config", "validate")
	if err != nil || !strings.Contains(out, "Configuration valid") {
		t.Fatalf("config validate: %v\n%s", err, out)
	}
}
