package report

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/aggregate"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/analysis"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/database"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/domain"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/query"
)

func ptr[T any](v T) *T { return &v }

func sampleReport() *Report {
	d1 := time.Date(2020, 1, 5, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	tweets := []domain.DailyAggregate{
		{Date: d1, Source: domain.SourceTweet, MeanSentiment: 0.25, SampleCount: 2, MeanEngagementRatio: 1500},
		{Date: d2, Source: domain.SourceTweet, MeanSentiment: -0.1, SampleCount: 1, MeanEngagementRatio: 20},
	}
	reddit := []domain.DailyAggregate{
		{Date: d2, Source: domain.SourceReddit, MeanSentiment: 0.05, SampleCount: 3, MeanEngagementRatio: 7},
	}
	return &Report{
		GeneratedAt: time.Date(2020, 2, 1, 10, 0, 0, 0, time.UTC),
		Stats: []database.TableStat{
			{Source: domain.SourceTweet, Table: "tweets", Rows: 3, FirstDate: ptr("2020-01-05"), LastDate: ptr("2020-01-06")},
			{Source: domain.SourceReddit, Table: "reddit_posts", Rows: 3, Undated: 1},
		},
		Analysis: &analysis.Result{
			Sources: []analysis.SourceAnalysis{
				{Source: domain.SourceTweet, Posts: 3, Samples: 3, Daily: tweets, Summary: aggregate.Describe(aggregate.Sentiments(tweets)),
					Terms: []analysis.TermCount{{Term: "wall", Count: 3}}},
				{Source: domain.SourceReddit, Posts: 3, Samples: 3, Daily: reddit, Summary: aggregate.Describe(aggregate.Sentiments(reddit))},
			},
			Aligned: analysis.Comparison{Start: &d2, End: &d2, Tweets: tweets[1:], Reddit: reddit},
		},
		Queries: []query.Result{
			{Name: "Count of Retweets", Table: &database.Table{Columns: []string{"retweet_count"}, Rows: [][]any{{int64(1234)}}}},
			{Name: "Top Reddit posts by points", Err: &query.QueryError{Name: "Top Reddit posts by points", Err: errors.New("no such column: points")}},
		},
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(sampleReport())

	for _, want := range []string{
		"# Public Perception Report",
		"## TL;DR",
		"Tweets: mean daily sentiment +0.075 over 2 days",
		"Both sources overlap on Jan 06, 2020",
		"1 of 2 queries failed",
		"| Tweets | `tweets` | 3 | 0 | 2020-01-05 | 2020-01-06 |",
		"| 2020-01-06 | -0.100 | 20.00 | +0.050 | 7.00 |",
		"**Tweets:** wall (3)",
		"### Count of Retweets",
		"| 1,234 |",
		"**Failed:** query \"Top Reddit posts by points\" failed: no such column: points",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected report to contain %q\n%s", want, md)
		}
	}
}

func TestMarkdownWithoutAnalysis(t *testing.T) {
	md := Markdown(&Report{GeneratedAt: time.Now(), Stats: []database.TableStat{{Source: domain.SourceReddit, Table: "reddit_posts"}}})
	if !strings.Contains(md, "No Reddit posts loaded.") {
		t.Errorf("expected empty-source bullet, got\n%s", md)
	}
}

func TestWriteAndReadSeries(t *testing.T) {
	dir := t.TempDir()
	paths, err := Write(dir, sampleReport())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	s, err := ReadSeries(paths.Series)
	if err != nil {
		t.Fatalf("ReadSeries: %v", err)
	}
	if len(s.Sources) != 2 || len(s.Sources[0].Daily) != 2 {
		t.Errorf("unexpected sources %+v", s.Sources)
	}
	if s.Aligned.Start == nil || !s.Aligned.Start.Equal(time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected aligned start %v", s.Aligned.Start)
	}
	if len(s.Queries) != 2 || s.Queries[1].Error == "" || s.Queries[0].Table == nil {
		t.Errorf("unexpected queries %+v", s.Queries)
	}
}

func TestCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{int64(1234567), "1,234,567"},
		{2.5, "2.50"},
		{"a | b\nc", `a \| b c`},
		{strings.Repeat("x", 100), strings.Repeat("x", 77) + "..."},
	}
	for _, tt := range tests {
		if got := Cell(tt.in); got != tt.want {
			t.Errorf("Cell(%#v) = %q, expected %q", tt.in, got, tt.want)
		}
	}
}

func TestTableNoRows(t *testing.T) {
	got := Table(&database.Table{Columns: []string{"a", "b"}})
	if !strings.Contains(got, "_no rows_") {
		t.Errorf("expected no-rows marker, got %q", got)
	}
}
