package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/analysis"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/config"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/database"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/domain"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/metrics"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/normalize"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/query"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/report"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/sentiment"
)

// Stage names.
const (
	StageIngest  = "Ingest"
	StageAnalyze = "Analyze"
	StageQuery   = "Query"
	StageReport  = "Report"
)

// Env is the explicit run context handed to every stage.
type Env struct {
	DB      *database.DB
	Log     zerolog.Logger
	Metrics *metrics.Metrics
}

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Steps    []StepResult
	Analysis *analysis.Result
	Queries  []query.Result
	Report   *report.Paths
}

// Err returns the first fatal step error, if any.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// Pipeline runs ingest, analysis, the query battery and the report.
type Pipeline struct {
	cfg    *config.Config
	env    Env
	scorer sentiment.Scorer
}

// New creates a pipeline. The sentiment scorer is chosen from cfg.
func New(cfg *config.Config, env Env) *Pipeline {
	return NewWithScorer(cfg, env, sentiment.New(cfg.Sentiment, env.Log))
}

// NewWithScorer creates a pipeline with an explicit scorer.
func NewWithScorer(cfg *config.Config, env Env, scorer sentiment.Scorer) *Pipeline {
	if env.Metrics == nil {
		env.Metrics = metrics.New()
	}
	return &Pipeline{cfg: cfg, env: env, scorer: scorer}
}

// Inputs returns the configured inputs with their column aliases. Sources
// with no path are left out.
func (p *Pipeline) Inputs() []*normalize.Reader {
	var readers []*normalize.Reader
	add := func(src domain.Source, in config.Input, def rune) {
		if in.Path == "" {
			return
		}
		aliases := normalize.DefaultAliases(src).With(p.cfg.AliasesFor(string(src)))
		readers = append(readers, normalize.NewReader(normalize.Input{
			Path:      in.Path,
			Source:    src,
			Delimiter: in.Rune(def),
		}, aliases))
	}
	add(domain.SourceTweet, p.cfg.Inputs.Tweets, ',')
	add(domain.SourceReddit, p.cfg.Inputs.Reddit, '|')
	return readers
}

func (p *Pipeline) unconfigured() []domain.Source {
	var out []domain.Source
	if p.cfg.Inputs.Tweets.Path == "" {
		out = append(out, domain.SourceTweet)
	}
	if p.cfg.Inputs.Reddit.Path == "" {
		out = append(out, domain.SourceReddit)
	}
	return out
}

func noPosts(func(domain.Post, error) bool) {}

// Run executes every stage in order. Ingestion and analysis failures stop
// the run; query failures are reported per query and do not.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{}

	step := p.Ingest(ctx)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}

	res, step := p.Analyze(ctx)
	r.Steps = append(r.Steps, step)
	if step.Err != nil {
		return r
	}
	r.Analysis = res

	results, step := p.Query(ctx)
	r.Steps = append(r.Steps, step)
	r.Queries = results

	paths, step := p.Report(ctx, res, results)
	r.Steps = append(r.Steps, step)
	r.Report = paths

	return r
}

// Ingest normalizes every configured input and replaces its table.
func (p *Pipeline) Ingest(ctx context.Context) StepResult {
	start := time.Now()
	defer func() { p.env.Metrics.ObserveStage(StageIngest, time.Since(start)) }()
	log := p.env.Log.With().Str("stage", StageIngest).Logger()

	runID, err := p.env.DB.StartIngestRun(ctx)
	if err != nil {
		return p.fail(StageIngest, KindStore, err)
	}

	var parts []string
	var runErr error
	for _, rd := range p.Inputs() {
		in := rd.Input()
		log.Info().Str("source", string(in.Source)).Str("path", in.Path).Msg("loading input")

		n, err := p.env.DB.ReplacePosts(ctx, in.Source, rd.Posts())
		if err != nil {
			kind := KindStore
			var ie *normalize.IngestError
			if errors.As(err, &ie) {
				kind = KindIngestion
			}
			runErr = stageErr(StageIngest, kind, err)
			break
		}

		st := rd.Stats()
		p.env.Metrics.RecordIngest(string(in.Source), n, st.Skipped, st.BadTimestamps)
		if err := p.env.DB.RecordIngestSource(ctx, runID, database.IngestSource{
			Source:        string(in.Source),
			Path:          in.Path,
			RowsLoaded:    n,
			RowsSkipped:   st.Skipped,
			BadTimestamps: st.BadTimestamps,
		}); err != nil {
			runErr = stageErr(StageIngest, KindStore, err)
			break
		}

		log.Info().
			Str("source", string(in.Source)).
			Int("rows", n).
			Int("skipped", st.Skipped).
			Int("bad_timestamps", st.BadTimestamps).
			Msg("loaded input")
		parts = append(parts, fmt.Sprintf("%s: %s rows (%s skipped, %s undated)",
			in.Source.Label(), humanize.Comma(int64(n)), humanize.Comma(int64(st.Skipped)), humanize.Comma(int64(st.BadTimestamps))))
	}

	// A source without an input is emptied so no rows survive from an earlier run.
	if runErr == nil {
		for _, src := range p.unconfigured() {
			if _, err := p.env.DB.ReplacePosts(ctx, src, noPosts); err != nil {
				runErr = stageErr(StageIngest, KindStore, err)
				break
			}
			log.Warn().Str("source", string(src)).Msg("no input configured, table cleared")
			parts = append(parts, fmt.Sprintf("%s: no input, table cleared", src.Label()))
		}
	}

	if err := p.env.DB.FinishIngestRun(ctx, runID, runErr); err != nil && runErr == nil {
		runErr = stageErr(StageIngest, KindStore, err)
	}
	if runErr != nil {
		return p.logFailure(StepResult{Name: StageIngest, Err: runErr})
	}
	if len(parts) == 0 {
		return StepResult{Name: StageIngest, Summary: "No inputs configured"}
	}
	return StepResult{Name: StageIngest, Summary: strings.Join(parts, "; ")}
}

// Analyze scores the stored posts and builds the daily series.
func (p *Pipeline) Analyze(ctx context.Context) (*analysis.Result, StepResult) {
	start := time.Now()
	defer func() { p.env.Metrics.ObserveStage(StageAnalyze, time.Since(start)) }()

	log := p.env.Log.With().Str("stage", StageAnalyze).Logger()
	a := analysis.NewAnalyzer(p.env.DB, p.scorer, p.cfg.Report.TopTerms, log)
	res, err := a.Run(ctx)
	if err != nil {
		return nil, p.fail(StageAnalyze, KindAnalysis, err)
	}

	var parts []string
	for _, s := range res.Sources {
		p.env.Metrics.Samples.WithLabelValues(string(s.Source)).Add(float64(s.Samples))
		parts = append(parts, fmt.Sprintf("%s: %s samples over %d days", s.Source.Label(), humanize.Comma(int64(s.Samples)), len(s.Daily)))
	}
	if ms, ok := p.scorer.(*sentiment.ModelScorer); ok {
		p.env.Metrics.ScorerFallbacks.Add(float64(ms.Fallbacks()))
	}
	parts = append(parts, fmt.Sprintf("%d aligned days", len(res.Aligned.Tweets)))
	return res, StepResult{Name: StageAnalyze, Summary: strings.Join(parts, "; ")}
}

// Query runs the report battery. Failed queries are logged by name.
func (p *Pipeline) Query(ctx context.Context) ([]query.Result, StepResult) {
	start := time.Now()
	defer func() { p.env.Metrics.ObserveStage(StageQuery, time.Since(start)) }()

	results := query.Run(ctx, p.env.DB, query.Battery, p.observeQuery)
	failed := query.Failed(results)
	summary := fmt.Sprintf("Ran %d queries, %d failed", len(results), len(failed))
	if len(failed) > 0 {
		summary += ": " + strings.Join(query.ResultNames(failed), ", ")
	}
	return results, StepResult{Name: StageQuery, Summary: summary}
}

// RunQuery runs a single named query from the battery. A failure is
// returned as a Query-kind StageError.
func (p *Pipeline) RunQuery(ctx context.Context, name string) (query.Result, error) {
	q, ok := query.Find(query.Battery, name)
	if !ok {
		return query.Result{}, stageErr(StageQuery, KindQuery, fmt.Errorf("unknown query %q", name))
	}
	r := query.Run(ctx, p.env.DB, []query.Query{q}, p.observeQuery)[0]
	if r.Err != nil {
		return r, stageErr(StageQuery, KindQuery, r.Err)
	}
	return r, nil
}

func (p *Pipeline) observeQuery(r query.Result) {
	p.env.Metrics.RecordQuery(r.Name, r.Duration, r.Err != nil)
	if r.Err != nil {
		p.env.Log.Warn().
			Str("stage", StageQuery).
			Str("kind", string(KindQuery)).
			Str("query", r.Name).
			Err(r.Err).
			Msg("query failed")
	}
}

// Report writes report.md and series.json into the data directory.
func (p *Pipeline) Report(ctx context.Context, res *analysis.Result, results []query.Result) (*report.Paths, StepResult) {
	start := time.Now()
	defer func() { p.env.Metrics.ObserveStage(StageReport, time.Since(start)) }()

	rep, err := p.BuildReport(ctx, res, results)
	if err != nil {
		return nil, p.fail(StageReport, KindStore, err)
	}
	paths, err := report.Write(p.cfg.GetDataDir(), rep)
	if err != nil {
		return nil, p.fail(StageReport, KindStore, err)
	}
	return paths, StepResult{Name: StageReport, Summary: fmt.Sprintf("Wrote %s and %s", paths.Markdown, paths.Series)}
}

// BuildReport assembles a report from a run's outputs and the store.
func (p *Pipeline) BuildReport(ctx context.Context, res *analysis.Result, results []query.Result) (*report.Report, error) {
	stats, err := p.env.DB.Stats(ctx)
	if err != nil {
		return nil, err
	}
	run, err := p.env.DB.LastIngestRun(ctx)
	if err != nil {
		return nil, err
	}
	return &report.Report{
		GeneratedAt: time.Now().UTC(),
		Stats:       stats,
		Run:         run,
		Analysis:    res,
		Queries:     results,
	}, nil
}

func (p *Pipeline) fail(stage string, kind Kind, err error) StepResult {
	return p.logFailure(StepResult{Name: stage, Err: stageErr(stage, kind, err)})
}

func (p *Pipeline) logFailure(step StepResult) StepResult {
	var se *StageError
	if errors.As(step.Err, &se) {
		p.env.Log.Error().
			Str("stage", se.Stage).
			Str("kind", string(se.Kind)).
			Err(se.Err).
			Msg("stage failed")
	}
	return step
}
