package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/himanishpuri/MediaDNA/pkg/logger"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/dedup"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/hasher"
	"github.com/himanishpuri/MediaDNA/pkg/mediadna/storage"
	"github.com/himanishpuri/MediaDNA/pkg/models"
)

type fakeService struct {
	mediadna.Service
	records  []models.FileRecord
	clusters []models.DuplicateCluster
	lastFind mediadna.FindOptions
	deleted  []string
	indexed  map[string]bool
}

func (f *fakeService) IsIndexed(ctx context.Context, path string) (bool, error) {
	return f.indexed[path], nil
}

func (f *fakeService) Records(ctx context.Context) ([]models.FileRecord, error) {
	return f.records, nil
}

func (f *fakeService) Count(ctx context.Context) (int, error) {
	return len(f.records), nil
}

func (f *fakeService) FindDuplicates(ctx context.Context, opts mediadna.FindOptions) ([]models.DuplicateCluster, error) {
	f.lastFind = opts
	return f.clusters, nil
}

func (f *fakeService) DeleteFile(ctx context.Context, path string) bool {
	f.deleted = append(f.deleted, path)
	return true
}

func (f *fakeService) DeleteDuplicates(ctx context.Context, clusters []models.DuplicateCluster) dedup.Report {
	return dedup.Report{}
}

func newTestServer(svc mediadna.Service) http.Handler {
	s := NewServer(svc, &ServerConfig{
		Store:          "sqlite /tmp/db.sqlite",
		AllowedOrigins: []string{"*"},
		Threshold:      mediadna.ExactMatch,
	})
	return s.setupRoutes()
}

func record(path string, size int64) models.FileRecord {
	return models.FileRecord{
		Path:     path,
		Tokens:   []models.Token{models.NewPerceptualToken(0xff)},
		Metadata: models.Metadata{models.MetaFileSize: size},
	}
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestListFiles(t *testing.T) {
	svc := &fakeService{records: []models.FileRecord{record("/a.jpg", 10), record("/b.jpg", 20)}}
	rec := do(t, newTestServer(svc), http.MethodGet, "/api/files")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp ListFilesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || resp.Files[1].FileSize != 20 || resp.Files[0].Tokens[0] != "img:00000000000000ff" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestDuplicatesQuery(t *testing.T) {
	svc := &fakeService{clusters: []models.DuplicateCluster{{
		Token:  "img:00000000000000ff",
		Family: models.FamilyPerceptual,
		Total:  3,
		Items:  []models.FileRecord{record("/a.jpg", 1), record("/b.jpg", 2), record("/c.jpg", 3)},
	}}}
	h := newTestServer(svc)

	rec := do(t, h, http.MethodGet, "/api/duplicates?match_time=true&threshold=4")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if !svc.lastFind.MatchCaptureTime || svc.lastFind.Threshold != 4 {
		t.Fatalf("query not forwarded: %+v", svc.lastFind)
	}
	var resp DuplicatesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Duplicates != 2 || len(resp.Clusters[0].Items) != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}

	do(t, h, http.MethodGet, "/api/duplicates")
	if svc.lastFind.Threshold != mediadna.ExactMatch || svc.lastFind.MatchCaptureTime {
		t.Fatalf("defaults not applied: %+v", svc.lastFind)
	}

	for _, bad := range []string{"?threshold=x", "?threshold=65", "?match_time=maybe"} {
		if rec := do(t, h, http.MethodGet, "/api/duplicates"+bad); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", bad, rec.Code)
		}
	}
}

func TestDeleteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc := &fakeService{indexed: map[string]bool{path: true}}
	h := newTestServer(svc)

	rec := do(t, h, http.MethodDelete, "/api/files"+path)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != path {
		t.Fatalf("delete callback got %v", svc.deleted)
	}

	rec = do(t, h, http.MethodDelete, "/api/files"+path+".missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing file status = %d", rec.Code)
	}

	rec = do(t, h, http.MethodGet, "/api/files"+path)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET on a file status = %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	svc := &fakeService{records: []models.FileRecord{record("/a.jpg", 1)}}
	h := newTestServer(svc)

	if rec := do(t, h, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/api/health/metrics")
	var resp MetricsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.RecordCount != 1 || resp.Store == "" {
		t.Fatalf("unexpected metrics %+v", resp)
	}

	rec = do(t, h, http.MethodGet, "/metrics")
	if !strings.Contains(rec.Body.String(), "mediadna_http_requests_total") {
		t.Fatal("prometheus output missing request counter")
	}

	if rec := do(t, h, http.MethodOptions, "/api/files"); rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
}

func newIndexService(t *testing.T) (mediadna.Service, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.OpenSQLite(context.Background(), filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	trash := filepath.Join(dir, "Trash")
	svc, err := mediadna.NewService(
		mediadna.WithStore(store),
		mediadna.WithLogger(logger.Discard()),
		mediadna.WithTrashDir(trash),
		mediadna.WithVideoStrategy(hasher.VideoOff),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc, trash
}

func TestDeleteRefusesUnindexedFile(t *testing.T) {
	svc, trash := newIndexService(t)
	h := newTestServer(svc)

	path := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(path, []byte("not indexed"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, http.MethodDelete, "/api/files"+path)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("unindexed file was moved: %v", err)
	}
	if entries, _ := os.ReadDir(trash); len(entries) != 0 {
		t.Fatalf("trash has %d entries", len(entries))
	}
}

func TestDeleteIndexedFile(t *testing.T) {
	ctx := context.Background()
	svc, trash := newIndexService(t)
	h := newTestServer(svc)

	path := filepath.Join(t.TempDir(), "dup.txt")
	if err := os.WriteFile(path, []byte("indexed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if o, err := svc.AddFile(ctx, path); err != nil || o != mediadna.OutcomeInserted {
		t.Fatalf("AddFile = %v, %v", o, err)
	}

	rec := do(t, h, http.MethodDelete, "/api/files"+path)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file still in place: %v", err)
	}
	if entries, _ := os.ReadDir(trash); len(entries) != 1 {
		t.Fatalf("trash has %d entries", len(entries))
	}
	if n, _ := svc.Count(ctx); n != 0 {
		t.Fatalf("record left behind, count = %d", n)
	}
}

func TestCrossOriginDeleteIsRefused(t *testing.T) {
	svc := &fakeService{indexed: map[string]bool{}}
	h := NewServer(svc, &ServerConfig{AllowedOrigins: parseOrigins("http://localhost:3000")}).setupRoutes()

	path := filepath.Join(t.TempDir(), "dup.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	svc.indexed[path] = true

	req := httptest.NewRequest(http.MethodOptions, "/api/files"+path, nil)
	req.Header.Set("Origin", "http://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("preflight status = %d, allow-origin %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/files"+path, nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden || len(svc.deleted) != 0 {
		t.Fatalf("cross-origin delete status = %d, deleted %v", rec.Code, svc.deleted)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/files"+path, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("allowed origin status = %d", rec.Code)
	}
}

func TestParseOrigins(t *testing.T) {
	if got := parseOrigins(""); len(got) != 0 {
		t.Errorf("empty flag = %v", got)
	}
	if got := parseOrigins("*"); len(got) != 1 || got[0] != "*" {
		t.Errorf("wildcard = %v", got)
	}
	if got := parseOrigins(" http://a , ,http://b"); len(got) != 2 || got[1] != "http://b" {
		t.Errorf("list = %v", got)
	}
}
