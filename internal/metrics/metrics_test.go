package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesRecordedSeries(t *testing.T) {
	RecordFile("inserted")
	RecordHasher("content", 5*time.Millisecond, nil)
	RecordHasher("image", time.Millisecond, errors.New("corrupt"))
	SetStoreRecords(7)
	RecordMove(true)
	RecordWatchEvent("index")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		`mediadna_files_processed_total{result="inserted"}`,
		`mediadna_hasher_results_total{hasher="image",status="error"}`,
		`mediadna_store_records 7`,
		`mediadna_dedup_moves_total{status="success"}`,
		`mediadna_watch_events_total{action="index"}`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
