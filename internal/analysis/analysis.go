// Package analysis scores stored posts and builds the daily sentiment
// and engagement series for each source.
package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/aggregate"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/domain"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/sentiment"
)

// PostStore reads the stored posts of a source.
type PostStore interface {
	GetPosts(ctx context.Context, src domain.Source) ([]domain.Post, error)
}

// SourceAnalysis is everything computed for one source.
type SourceAnalysis struct {
	Source  domain.Source           `json:"source"`
	Posts   int                     `json:"posts"`
	Samples int                     `json:"samples"`
	Undated int                     `json:"undated"`
	Daily   []domain.DailyAggregate `json:"daily"`
	Summary aggregate.Summary       `json:"summary"`
	Terms   []TermCount             `json:"terms"`
}

// Comparison is the two daily series restricted to their common range.
type Comparison struct {
	Start  *time.Time              `json:"start,omitempty"`
	End    *time.Time              `json:"end,omitempty"`
	Tweets []domain.DailyAggregate `json:"tweets"`
	Reddit []domain.DailyAggregate `json:"reddit"`
}

// Result is the output of one analysis run.
type Result struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Sources     []SourceAnalysis `json:"sources"`
	Aligned     Comparison       `json:"aligned"`
}

// Source returns the analysis for src, if present.
func (r *Result) Source(src domain.Source) (SourceAnalysis, bool) {
	for _, s := range r.Sources {
		if s.Source == src {
			return s, true
		}
	}
	return SourceAnalysis{}, false
}

// Analyzer scores posts and aggregates them per day.
type Analyzer struct {
	store    PostStore
	scorer   sentiment.Scorer
	topTerms int
	log      zerolog.Logger
}

// NewAnalyzer creates an Analyzer. topTerms bounds the term frequency
// lists; zero or less keeps every term.
func NewAnalyzer(store PostStore, scorer sentiment.Scorer, topTerms int, log zerolog.Logger) *Analyzer {
	return &Analyzer{store: store, scorer: scorer, topTerms: topTerms, log: log}
}

// Run analyzes every source and aligns the two daily series.
func (a *Analyzer) Run(ctx context.Context) (*Result, error) {
	res := &Result{GeneratedAt: time.Now().UTC()}
	for _, src := range domain.Sources {
		sa, err := a.Analyze(ctx, src)
		if err != nil {
			return nil, err
		}
		res.Sources = append(res.Sources, *sa)
	}

	tweets, _ := res.Source(domain.SourceTweet)
	reddit, _ := res.Source(domain.SourceReddit)
	at, ar := aggregate.Align(tweets.Daily, reddit.Daily)
	res.Aligned = Comparison{Tweets: at, Reddit: ar}
	if start, end, ok := aggregate.Range(at); ok {
		res.Aligned.Start, res.Aligned.End = &start, &end
	}

	a.log.Info().
		Int("aligned_days", len(at)).
		Msg("aligned daily series")
	return res, nil
}

// Analyze scores and aggregates the posts of one source.
func (a *Analyzer) Analyze(ctx context.Context, src domain.Source) (*SourceAnalysis, error) {
	posts, err := a.store.GetPosts(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("loading %s posts: %w", src.Label(), err)
	}

	samples, err := Score(ctx, a.scorer, posts)
	if err != nil {
		return nil, err
	}
	daily := aggregate.Daily(src, posts, samples)

	sa := &SourceAnalysis{
		Source:  src,
		Posts:   len(posts),
		Samples: len(samples),
		Undated: len(posts) - len(samples),
		Daily:   daily,
		Summary: aggregate.Describe(aggregate.Sentiments(daily)),
		Terms:   Terms(posts, a.topTerms),
	}

	a.log.Info().
		Str("source", string(src)).
		Int("posts", sa.Posts).
		Int("samples", sa.Samples).
		Int("days", len(daily)).
		Msg("analyzed source")
	return sa, nil
}

// Score computes one sentiment sample per post with a parsed timestamp.
// Posts without one are skipped rather than given a default date.
func Score(ctx context.Context, scorer sentiment.Scorer, posts []domain.Post) ([]domain.SentimentSample, error) {
	samples := make([]domain.SentimentSample, 0, len(posts))
	for i := range posts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := &posts[i]
		if p.Timestamp == nil {
			continue
		}
		samples = append(samples, domain.SentimentSample{
			PostID:   p.ID,
			Polarity: sentiment.Clamp(scorer.Score(ctx, p.Text)),
			Date:     *p.Timestamp,
		})
	}
	return samples, nil
}
