// Package report renders a pipeline run as a markdown report and a JSON
// series file for an external plotting layer.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/analysis"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/database"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/domain"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/query"
)

// File names written into the data directory.
const (
	MarkdownFile = "report.md"
	SeriesFile   = "series.json"
)

// maxCell bounds the width of a text cell in query tables.
const maxCell = 80

// Report is everything one run produced.
type Report struct {
	GeneratedAt time.Time
	Stats       []database.TableStat
	Run         *database.IngestRun
	Analysis    *analysis.Result
	Queries     []query.Result
}

// Paths are the files written by Write.
type Paths struct {
	Markdown string
	Series   string
}

// QueryOutput is a query result as stored in the series file.
type QueryOutput struct {
	Name  string          `json:"name"`
	Table *database.Table `json:"table,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Series is the content of series.json.
type Series struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Sources     []analysis.SourceAnalysis `json:"sources"`
	Aligned     analysis.Comparison       `json:"aligned"`
	Queries     []QueryOutput             `json:"queries"`
}

// NewSeries projects a report onto its series file content.
func NewSeries(r *Report) *Series {
	s := &Series{GeneratedAt: r.GeneratedAt, Queries: QueryOutputs(r.Queries)}
	if r.Analysis != nil {
		s.Sources = r.Analysis.Sources
		s.Aligned = r.Analysis.Aligned
	}
	return s
}

// QueryOutputs converts query results for JSON output.
func QueryOutputs(results []query.Result) []QueryOutput {
	out := make([]QueryOutput, len(results))
	for i, r := range results {
		out[i] = QueryOutput{Name: r.Name, Table: r.Table}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return out
}

// Write renders r into dir as report.md and series.json.
func Write(dir string, r *Report) (*Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	paths := &Paths{
		Markdown: filepath.Join(dir, MarkdownFile),
		Series:   filepath.Join(dir, SeriesFile),
	}

	if err := os.WriteFile(paths.Markdown, []byte(Markdown(r)), 0o644); err != nil {
		return nil, fmt.Errorf("writing report: %w", err)
	}

	data, err := json.MarshalIndent(NewSeries(r), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding series: %w", err)
	}
	if err := os.WriteFile(paths.Series, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing series: %w", err)
	}
	return paths, nil
}

// ReadSeries loads a series file written by Write.
func ReadSeries(path string) (*Series, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Series
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return &s, nil
}

// Markdown renders the report.
func Markdown(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Public Perception Report\n\n_Generated %s_\n\n", r.GeneratedAt.Format("Jan 02, 2006 15:04 MST"))

	b.WriteString("## TL;DR\n\n")
	b.WriteString(tldr(r))
	b.WriteString("\n\n")

	writeData(&b, r)
	if r.Analysis != nil {
		writeSentiment(&b, r.Analysis)
		writeAligned(&b, r.Analysis.Aligned)
		writeTerms(&b, r.Analysis)
	}
	writeQueries(&b, r.Queries)
	return b.String()
}

func tldr(r *Report) string {
	var bullets []string
	for _, s := range r.Stats {
		if s.Rows == 0 {
			bullets = append(bullets, fmt.Sprintf("- No %s posts loaded.", s.Source.Label()))
		}
	}
	if r.Analysis != nil {
		for _, s := range r.Analysis.Sources {
			if s.Summary.Count == 0 {
				continue
			}
			bullets = append(bullets, fmt.Sprintf("- %s: mean daily sentiment %s over %d days (%s samples).",
				s.Source.Label(), signed(s.Summary.Mean), s.Summary.Count, humanize.Comma(int64(s.Samples))))
		}
		if a := r.Analysis.Aligned; a.Start != nil && a.End != nil {
			bullets = append(bullets, fmt.Sprintf("- Both sources overlap on %s (%d tweet days, %d reddit days).",
				domain.FormatRange(*a.Start, *a.End), len(a.Tweets), len(a.Reddit)))
		} else {
			bullets = append(bullets, "- The two sources share no common date range.")
		}
	}
	if failed := query.Failed(r.Queries); len(failed) > 0 {
		bullets = append(bullets, fmt.Sprintf("- %d of %d queries failed.", len(failed), len(r.Queries)))
	}
	if len(bullets) == 0 {
		return "- Nothing to report."
	}
	return strings.Join(bullets, "\n")
}

func writeData(b *strings.Builder, r *Report) {
	b.WriteString("## Data\n\n")
	b.WriteString("| Source | Table | Rows | Undated | First day | Last day |\n")
	b.WriteString("|---|---|---:|---:|---|---|\n")
	for _, s := range r.Stats {
		fmt.Fprintf(b, "| %s | `%s` | %s | %s | %s | %s |\n",
			s.Source.Label(), s.Table, humanize.Comma(int64(s.Rows)), humanize.Comma(int64(s.Undated)),
			deref(s.FirstDate), deref(s.LastDate))
	}
	if run := r.Run; run != nil {
		fmt.Fprintf(b, "\nLast ingest `%s` %s %s: %s rows loaded, %s skipped, %s without a parseable timestamp.\n",
			run.ID, run.Status, humanize.Time(run.StartedAt),
			humanize.Comma(int64(run.RowsLoaded)), humanize.Comma(int64(run.RowsSkipped)), humanize.Comma(int64(run.BadTimestamps)))
	}
	b.WriteString("\n")
}

func writeSentiment(b *strings.Builder, res *analysis.Result) {
	b.WriteString("## Daily sentiment\n\n")
	b.WriteString("| Source | Days | Mean | Std | Min | 25% | 50% | 75% | Max |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	for _, s := range res.Sources {
		d := s.Summary
		fmt.Fprintf(b, "| %s | %d | %s | %.3f | %s | %s | %s | %s | %s |\n",
			s.Source.Label(), d.Count, signed(d.Mean), d.Std, signed(d.Min), signed(d.P25), signed(d.P50), signed(d.P75), signed(d.Max))
	}
	b.WriteString("\n")
}

func writeAligned(b *strings.Builder, c analysis.Comparison) {
	b.WriteString("## Tweets vs Reddit\n\n")
	if c.Start == nil || c.End == nil {
		b.WriteString("No overlapping dates.\n\n")
		return
	}
	fmt.Fprintf(b, "Common range: %s.\n\n", domain.FormatRange(*c.Start, *c.End))

	reddit := make(map[time.Time]domain.DailyAggregate, len(c.Reddit))
	for _, d := range c.Reddit {
		reddit[d.Date] = d
	}
	b.WriteString("| Day | Tweet sentiment | Tweet engagement | Reddit sentiment | Reddit engagement |\n")
	b.WriteString("|---|---:|---:|---:|---:|\n")
	for _, t := range c.Tweets {
		r, ok := reddit[t.Date]
		rs, re := "", ""
		if ok {
			rs, re = signed(r.MeanSentiment), humanize.FormatFloat("#,###.##", r.MeanEngagementRatio)
		}
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n",
			domain.FormatDay(t.Date), signed(t.MeanSentiment), humanize.FormatFloat("#,###.##", t.MeanEngagementRatio), rs, re)
	}
	b.WriteString("\n")
}

func writeTerms(b *strings.Builder, res *analysis.Result) {
	b.WriteString("## Top terms\n\n")
	for _, s := range res.Sources {
		if len(s.Terms) == 0 {
			continue
		}
		terms := make([]string, len(s.Terms))
		for i, t := range s.Terms {
			terms[i] = fmt.Sprintf("%s (%d)", t.Term, t.Count)
		}
		fmt.Fprintf(b, "**%s:** %s\n\n", s.Source.Label(), strings.Join(terms, ", "))
	}
}

func writeQueries(b *strings.Builder, results []query.Result) {
	if len(results) == 0 {
		return
	}
	b.WriteString("## Queries\n\n")
	for _, r := range results {
		fmt.Fprintf(b, "### %s\n\n", r.Name)
		if r.Err != nil {
			fmt.Fprintf(b, "**Failed:** %s\n\n", r.Err)
			continue
		}
		b.WriteString(Table(r.Table))
		b.WriteString("\n")
	}
}

// Table renders a query result as a markdown table.
func Table(t *database.Table) string {
	if t == nil || len(t.Columns) == 0 {
		return "_No columns._\n"
	}
	var b strings.Builder
	b.WriteString("| " + strings.Join(t.Columns, " | ") + " |\n")
	b.WriteString(strings.Repeat("|---", len(t.Columns)) + "|\n")
	if len(t.Rows) == 0 {
		b.WriteString("| _no rows_" + strings.Repeat(" |", len(t.Columns)) + "\n")
		return b.String()
	}
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = Cell(v)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

// Cell formats a scalar for a markdown table cell.
func Cell(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case int64:
		s = humanize.Comma(x)
	case float64:
		s = humanize.FormatFloat("#,###.##", x)
	case []byte:
		s = string(x)
	default:
		s = fmt.Sprint(x)
	}
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	if r := []rune(s); len(r) > maxCell {
		s = string(r[:maxCell-3]) + "..."
	}
	return s
}

func signed(v float64) string {
	return fmt.Sprintf("%+.3f", v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
