package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/config"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/database"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/domain"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/metrics"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/normalize"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/report"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/sentiment"
)

const tweetsCSV = `id,text,isRetweet,device,favorites,retweets,date
1,Great day for America,FALSE,Twitter for iPhone,100,10,2020-01-05 10:00:00
2,Terrible fake news,TRUE,Twitter for Android,50,5,2020-01-05 11:00:00
3,Thank you,FALSE,Twitter for iPhone,7,20,2020-01-05 22:00:00
`

const redditCSV = `title|Comments|Post_Date|points|comments_count
Wall talk|What a disaster|2020-01-05 09:00:00|12|4
Broken|too|many|fields|here|oops
Rally|Amazing rally|2020-01-06 18:00:00|30|9
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

type fixture struct {
	cfg     *config.Config
	db      *database.DB
	metrics *metrics.Metrics
	p       *Pipeline
}

func newFixture(t *testing.T, tweets, reddit string) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Inputs: config.Inputs{
			Tweets: config.Input{Path: writeFile(t, dir, "tweets.csv", tweets), Delimiter: ","},
			Reddit: config.Input{Path: writeFile(t, dir, "reddit.csv", reddit), Delimiter: "|"},
		},
		Store:     config.Store{Driver: database.DriverSQLite, DataDir: dir},
		Sentiment: config.Sentiment{Provider: "lexicon"},
		Report:    config.Report{TopTerms: 10},
	}

	db, err := database.Open(context.Background(), cfg.Store.Driver, cfg.StorePath(), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	m := metrics.New()
	env := Env{DB: db, Log: zerolog.Nop(), Metrics: m}
	return &fixture{cfg: cfg, db: db, metrics: m, p: NewWithScorer(cfg, env, sentiment.NewLexicon())}
}

func TestRunEndToEnd(t *testing.T) {
	f := newFixture(t, tweetsCSV, redditCSV)
	ctx := context.Background()

	res := f.p.Run(ctx)
	if err := res.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(res.Steps))
	}

	// malformed reddit row skipped and counted exactly once
	if got := testutil.ToFloat64(f.metrics.RowsSkipped.WithLabelValues(string(domain.SourceReddit))); got != 1 {
		t.Errorf("expected 1 skipped reddit row, got %v", got)
	}
	if n, _ := f.db.CountPosts(ctx, domain.SourceReddit); n != 2 {
		t.Errorf("expected 2 reddit rows loaded, got %d", n)
	}

	tw, ok := res.Analysis.Source(domain.SourceTweet)
	if !ok || len(tw.Daily) != 1 {
		t.Fatalf("expected one tweet day, got %+v", tw.Daily)
	}
	want := float64(10+5+20+100+50+7) / 3
	if tw.Daily[0].MeanEngagementRatio != want {
		t.Errorf("expected engagement ratio %v, got %v", want, tw.Daily[0].MeanEngagementRatio)
	}

	top := res.Queries[0]
	if top.Name != "Top 5 most retweeted tweets" || top.Err != nil {
		t.Fatalf("unexpected first query %+v", top)
	}
	if top.Table.Rows[0][1] != int64(20) {
		t.Errorf("expected top retweet count 20, got %v", top.Table.Rows[0][1])
	}

	if res.Report == nil {
		t.Fatal("expected report paths")
	}
	if _, err := os.Stat(res.Report.Markdown); err != nil {
		t.Errorf("report not written: %v", err)
	}
	series, err := report.ReadSeries(res.Report.Series)
	if err != nil {
		t.Fatalf("ReadSeries: %v", err)
	}
	if series.Aligned.Start == nil || domain.FormatDay(*series.Aligned.Start) != "2020-01-05" {
		t.Errorf("unexpected aligned start %v", series.Aligned.Start)
	}

	run, err := f.db.LastIngestRun(ctx)
	if err != nil || run == nil {
		t.Fatalf("expected ingest run, got %v, %v", run, err)
	}
	if run.Status != database.RunSucceeded || run.RowsLoaded != 5 || run.RowsSkipped != 1 {
		t.Errorf("unexpected run %+v", run)
	}
}

func TestIngestTwiceDoesNotDuplicate(t *testing.T) {
	f := newFixture(t, tweetsCSV, redditCSV)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if step := f.p.Ingest(ctx); step.Err != nil {
			t.Fatalf("ingest %d: %v", i+1, step.Err)
		}
	}
	if n, _ := f.db.CountPosts(ctx, domain.SourceTweet); n != 3 {
		t.Errorf("expected 3 tweets, got %d", n)
	}
}

func TestIngestMissingColumn(t *testing.T) {
	f := newFixture(t, "id,favorites\n1,3\n", redditCSV)

	res := f.p.Run(context.Background())
	err := res.Err()
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StageError, got %v", err)
	}
	if se.Stage != StageIngest || se.Kind != KindIngestion {
		t.Errorf("unexpected stage error %+v", se)
	}
	var ie *normalize.IngestError
	if !errors.As(err, &ie) || ie.Column != normalize.FieldText {
		t.Errorf("expected missing text column, got %v", err)
	}
	if len(res.Steps) != 1 {
		t.Errorf("expected run to stop after ingest, got %d steps", len(res.Steps))
	}

	run, _ := f.db.LastIngestRun(context.Background())
	if run == nil || run.Status != database.RunFailed {
		t.Errorf("expected failed ingest run, got %+v", run)
	}
}

func TestQueryFailureIsNamedAndNotFatal(t *testing.T) {
	f := newFixture(t, tweetsCSV, redditCSV)
	ctx := context.Background()

	if step := f.p.Ingest(ctx); step.Err != nil {
		t.Fatalf("ingest: %v", step.Err)
	}
	if err := f.db.Exec(ctx, "DROP TABLE reddit_posts"); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := f.db.Exec(ctx, "CREATE TABLE reddit_posts (id INTEGER PRIMARY KEY, text TEXT)"); err != nil {
		t.Fatalf("create: %v", err)
	}

	results, step := f.p.Query(ctx)
	if step.Err != nil {
		t.Fatalf("query stage should not fail: %v", step.Err)
	}
	for _, r := range results {
		isReddit := r.Name == "Top Reddit posts by points" ||
			r.Name == "Top 5 Most Commented Reddit Posts" ||
			r.Name == "Posts per Day by Source"
		if isReddit && r.Err == nil {
			t.Errorf("%s: expected failure", r.Name)
		}
		if !isReddit && r.Err != nil {
			t.Errorf("%s: unexpected failure %v", r.Name, r.Err)
		}
	}
	if got := testutil.ToFloat64(f.metrics.QueryFailures.WithLabelValues("Top Reddit posts by points")); got != 1 {
		t.Errorf("expected failure counted, got %v", got)
	}

	_, err := f.p.RunQuery(ctx, "Top Reddit posts by points")
	var se *StageError
	if !errors.As(err, &se) || se.Kind != KindQuery {
		t.Errorf("expected Query-kind stage error, got %v", err)
	}
	if _, err := f.p.RunQuery(ctx, "Count of Retweets"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestInputsSkipsUnsetPaths(t *testing.T) {
	f := newFixture(t, tweetsCSV, redditCSV)
	f.cfg.Inputs.Reddit.Path = ""
	f.cfg.Aliases = map[string]map[string][]string{"tweet": {"text": {"body"}}}

	readers := f.p.Inputs()
	if len(readers) != 1 || readers[0].Input().Source != domain.SourceTweet {
		t.Errorf("expected only the tweet reader, got %d", len(readers))
	}
	if readers[0].Input().Delimiter != ',' {
		t.Errorf("unexpected delimiter %q", readers[0].Input().Delimiter)
	}
}

func TestIngestClearsUnconfiguredSource(t *testing.T) {
	f := newFixture(t, tweetsCSV, redditCSV)
	ctx := context.Background()

	if step := f.p.Ingest(ctx); step.Err != nil {
		t.Fatalf("first ingest: %v", step.Err)
	}
	f.cfg.Inputs.Reddit.Path = ""
	step := f.p.Ingest(ctx)
	if step.Err != nil {
		t.Fatalf("second ingest: %v", step.Err)
	}
	if n, _ := f.db.CountPosts(ctx, domain.SourceReddit); n != 0 {
		t.Errorf("expected reddit table emptied, got %d rows", n)
	}
	if n, _ := f.db.CountPosts(ctx, domain.SourceTweet); n != 3 {
		t.Errorf("expected 3 tweets, got %d", n)
	}
	if !strings.Contains(step.Summary, "Reddit: no input, table cleared") {
		t.Errorf("unexpected summary %q", step.Summary)
	}
}

func TestStageErrorMessage(t *testing.T) {
	err := stageErr(StageAnalyze, KindAnalysis, errors.New("boom"))
	if err.Error() != "Analyze: Analysis error: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
