package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordIngest(t *testing.T) {
	m := New()
	m.RecordIngest("TWEET", 10, 2, 1)
	m.RecordIngest("TWEET", 5, 0, 0)

	if got := testutil.ToFloat64(m.RowsIngested.WithLabelValues("TWEET")); got != 15 {
		t.Errorf("expected 15 rows ingested, got %v", got)
	}
	if got := testutil.ToFloat64(m.RowsSkipped.WithLabelValues("TWEET")); got != 2 {
		t.Errorf("expected 2 rows skipped, got %v", got)
	}
	if got := testutil.ToFloat64(m.BadTimestamps.WithLabelValues("TWEET")); got != 1 {
		t.Errorf("expected 1 bad timestamp, got %v", got)
	}
}

func TestRecordQuery(t *testing.T) {
	m := New()
	m.RecordQuery("Count of Retweets", time.Millisecond, false)
	m.RecordQuery("Top Reddit posts by points", time.Millisecond, true)

	if got := testutil.ToFloat64(m.QueryFailures.WithLabelValues("Top Reddit posts by points")); got != 1 {
		t.Errorf("expected 1 failure, got %v", got)
	}
	if got := testutil.CollectAndCount(m.QueryDuration); got != 2 {
		t.Errorf("expected 2 duration series, got %d", got)
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ScorerFallbacks.Inc()
	if got := testutil.ToFloat64(b.ScorerFallbacks); got != 0 {
		t.Errorf("expected independent registries, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveStage("ingest", 2*time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `perception_stage_duration_seconds_count{stage="ingest"} 1`) {
		t.Errorf("expected stage histogram in output, got:\n%s", body)
	}
}
