// Package aggregate turns per-post sentiment samples into daily series.
//
// Days are UTC calendar dates: timestamps carrying an offset are converted
// to UTC before bucketing and naive timestamps are read as UTC at parse
// time. Posts without a timestamp never reach a bucket.
package aggregate

import (
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/domain"
)

// Daily computes one aggregate per date that has at least one sample.
//
// MeanSentiment is the mean polarity of the samples on that date.
// MeanEngagementRatio is the sum of the source's declared engagement
// counters over the date's posts (absent counters count as 0) divided by
// the number of those posts. The result is sorted by date.
func Daily(src domain.Source, posts []domain.Post, samples []domain.SentimentSample) []domain.DailyAggregate {
	byDay := lo.GroupBy(samples, func(s domain.SentimentSample) time.Time {
		return domain.DayOf(s.Date)
	})

	dated := lo.Filter(posts, func(p domain.Post, _ int) bool {
		_, ok := p.Date()
		return ok
	})
	postsByDay := lo.GroupBy(dated, func(p domain.Post) time.Time {
		d, _ := p.Date()
		return d
	})
	counters := src.Counters()

	out := make([]domain.DailyAggregate, 0, len(byDay))
	for day, daySamples := range byDay {
		agg := domain.DailyAggregate{
			Date:          day,
			Source:        src,
			SampleCount:   len(daySamples),
			MeanSentiment: lo.SumBy(daySamples, func(s domain.SentimentSample) float64 { return s.Polarity }) / float64(len(daySamples)),
		}
		if dayPosts := postsByDay[day]; len(dayPosts) > 0 {
			total := lo.SumBy(dayPosts, func(p domain.Post) int64 {
				return engagement(&p, counters)
			})
			agg.MeanEngagementRatio = float64(total) / float64(len(dayPosts))
		}
		out = append(out, agg)
	}

	slices.SortFunc(out, func(a, b domain.DailyAggregate) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// engagement sums the named counters of p, treating absent ones as 0.
func engagement(p *domain.Post, counters []string) int64 {
	var total int64
	for _, name := range counters {
		if v, ok := p.Counter(name); ok {
			total += v
		}
	}
	return total
}

// Align restricts two date-sorted series to their common date range
// [max(startA, startB), min(endA, endB)]. Dates outside the range are
// dropped and nothing is padded. Disjoint or empty inputs give two empty
// series.
func Align(a, b []domain.DailyAggregate) ([]domain.DailyAggregate, []domain.DailyAggregate) {
	if len(a) == 0 || len(b) == 0 {
		return []domain.DailyAggregate{}, []domain.DailyAggregate{}
	}

	startA, endA := bounds(a)
	startB, endB := bounds(b)
	start := later(startA, startB)
	end := earlier(endA, endB)
	if start.After(end) {
		return []domain.DailyAggregate{}, []domain.DailyAggregate{}
	}

	within := func(d domain.DailyAggregate, _ int) bool {
		return !d.Date.Before(start) && !d.Date.After(end)
	}
	return lo.Filter(a, within), lo.Filter(b, within)
}

// Range returns the first and last date of a series. ok is false for an
// empty series.
func Range(series []domain.DailyAggregate) (start, end time.Time, ok bool) {
	if len(series) == 0 {
		return time.Time{}, time.Time{}, false
	}
	start, end = bounds(series)
	return start, end, true
}

func bounds(series []domain.DailyAggregate) (time.Time, time.Time) {
	start, end := series[0].Date, series[0].Date
	for _, d := range series[1:] {
		start = earlier(start, d.Date)
		end = later(end, d.Date)
	}
	return start, end
}

func earlier(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// Sentiments projects a series onto its mean-sentiment values.
func Sentiments(series []domain.DailyAggregate) []float64 {
	return lo.Map(series, func(d domain.DailyAggregate, _ int) float64 { return d.MeanSentiment })
}
