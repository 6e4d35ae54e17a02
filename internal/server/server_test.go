package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/database"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/domain"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/metrics"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/report"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(context.Background(), database.DriverSQLite, filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTweet(t *testing.T, db *database.DB) {
	t.Helper()
	ts := time.Date(2020, 1, 5, 10, 0, 0, 0, time.UTC)
	post := domain.Post{
		ID:         1,
		Source:     domain.SourceTweet,
		Text:       "Great day",
		Timestamp:  &ts,
		Engagement: map[string]int64{domain.CounterRetweets: 12, domain.CounterFavorites: 40},
	}
	seq := func(yield func(domain.Post, error) bool) { yield(post, nil) }
	if _, err := db.ReplacePosts(context.Background(), domain.SourceTweet, seq); err != nil {
		t.Fatalf("loading tweet: %v", err)
	}
}

func newTestServer(t *testing.T) (*Server, *database.DB, *metrics.Metrics, string) {
	t.Helper()
	db := openTestDB(t)
	dir := t.TempDir()
	m := metrics.New()
	srv, err := New(db, dir, m, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv, db, m, dir
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexWithoutReport(t *testing.T) {
	srv, _, _, _ := newTestServer(t)

	rec := get(t, srv, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "No report yet") {
		t.Error("expected 'No report yet' in response body")
	}
	if !strings.Contains(body, "reddit_posts") {
		t.Error("expected store table listing")
	}
}

func TestIndexRendersReport(t *testing.T) {
	srv, _, _, dir := newTestServer(t)
	md := "# Public Perception Report\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"
	if err := os.WriteFile(filepath.Join(dir, report.MarkdownFile), []byte(md), 0o644); err != nil {
		t.Fatal(err)
	}

	body := get(t, srv, "/").Body.String()
	if !strings.Contains(body, "<h1>Public Perception Report</h1>") {
		t.Error("expected rendered heading")
	}
	if !strings.Contains(body, "<table>") {
		t.Error("expected rendered markdown table")
	}
}

func TestQueryPage(t *testing.T) {
	srv, db, _, _ := newTestServer(t)
	loadTweet(t, db)

	rec := get(t, srv, "/queries/Top%205%20most%20retweeted%20tweets")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Great day") {
		t.Error("expected tweet text in query table")
	}

	if rec := get(t, srv, "/queries/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestAPIQuery(t *testing.T) {
	srv, db, m, _ := newTestServer(t)
	loadTweet(t, db)

	rec := get(t, srv, "/api/queries/Count%20of%20Retweets")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out report.QueryOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if out.Name != "Count of Retweets" || out.Table == nil || len(out.Table.Rows) != 1 {
		t.Errorf("unexpected output %+v", out)
	}
	if got := testutil.CollectAndCount(m.QueryDuration); got != 1 {
		t.Errorf("expected 1 observed query, got %d", got)
	}
}

func TestAPIQueryFailure(t *testing.T) {
	srv, db, m, _ := newTestServer(t)
	ctx := context.Background()
	if err := db.Exec(ctx, "DROP TABLE reddit_posts"); err != nil {
		t.Fatal(err)
	}
	if err := db.Exec(ctx, "CREATE TABLE reddit_posts (id INTEGER PRIMARY KEY, text TEXT)"); err != nil {
		t.Fatal(err)
	}

	rec := get(t, srv, "/api/queries/Top%20Reddit%20posts%20by%20points")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var out report.QueryOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if !strings.Contains(out.Error, "Top Reddit posts by points") {
		t.Errorf("expected error naming the query, got %q", out.Error)
	}
	if got := testutil.ToFloat64(m.QueryFailures.WithLabelValues("Top Reddit posts by points")); got != 1 {
		t.Errorf("expected failure counted, got %v", got)
	}
}

func TestAPIQueries(t *testing.T) {
	srv, db, _, _ := newTestServer(t)
	loadTweet(t, db)

	var out []report.QueryOutput
	if err := json.Unmarshal(get(t, srv, "/api/queries").Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(out) != 8 {
		t.Fatalf("expected 8 query outputs, got %d", len(out))
	}
	for _, o := range out {
		if o.Error != "" {
			t.Errorf("%s: unexpected error %s", o.Name, o.Error)
		}
	}
}

func TestAPIStats(t *testing.T) {
	srv, db, _, _ := newTestServer(t)
	loadTweet(t, db)

	rec := get(t, srv, "/api/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out struct {
		Tables []database.TableStat `json:"tables"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(out.Tables) != 2 || out.Tables[0].Rows != 1 {
		t.Errorf("unexpected stats %+v", out.Tables)
	}
}

func TestAPISeries(t *testing.T) {
	srv, _, _, dir := newTestServer(t)

	if rec := get(t, srv, "/api/series"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 before any report, got %d", rec.Code)
	}

	if _, err := report.Write(dir, &report.Report{GeneratedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("writing report: %v", err)
	}
	rec := get(t, srv, "/api/series")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "generated_at") {
		t.Error("expected series body")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, db, _, _ := newTestServer(t)
	loadTweet(t, db)
	get(t, srv, "/api/queries/Count%20of%20Retweets")

	rec := get(t, srv, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "query_duration_seconds") {
		t.Errorf("expected query histogram in metrics output")
	}
}
