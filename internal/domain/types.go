package domain

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies which export a post came from.
type Source string

const (
	SourceTweet  Source = "TWEET"
	SourceReddit Source = "REDDIT"
)

// Sources lists every known source in a stable order.
var Sources = []Source{SourceTweet, SourceReddit}

// Engagement counter names.
const (
	CounterFavorites     = "favorites"
	CounterRetweets      = "retweets"
	CounterPoints        = "points"
	CounterCommentsCount = "comments_count"
)

// ParseSource parses a source name. Accepts the enum value or the
// lowercase aliases used on the command line ("tweets", "reddit").
func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tweet", "tweets", "twitter":
		return SourceTweet, nil
	case "reddit":
		return SourceReddit, nil
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Counters returns the declared engagement counters for a source.
func (s Source) Counters() []string {
	switch s {
	case SourceTweet:
		return []string{CounterFavorites, CounterRetweets}
	case SourceReddit:
		return []string{CounterPoints, CounterCommentsCount}
	}
	return nil
}

// Label is the human-readable name of a source.
func (s Source) Label() string {
	switch s {
	case SourceTweet:
		return "Tweets"
	case SourceReddit:
		return "Reddit"
	}
	return string(s)
}

// Post is the canonical record shared by tweets and reddit posts.
type Post struct {
	ID           int64            `json:"id" validate:"min=1"`
	SourceID     *string          `json:"source_id,omitempty"`
	Source       Source           `json:"source" validate:"required,oneof=TWEET REDDIT"`
	Text         string           `json:"text"`
	Title        *string          `json:"title,omitempty"`
	Timestamp    *time.Time       `json:"timestamp,omitempty"`
	RawTimestamp string           `json:"raw_timestamp"`
	Engagement   map[string]int64 `json:"engagement,omitempty"`
	Device       *string          `json:"device,omitempty"`
	IsRetweet    *bool            `json:"is_retweet,omitempty"`
}

// Counter returns the named engagement counter and whether it is present.
func (p *Post) Counter(name string) (int64, bool) {
	v, ok := p.Engagement[name]
	return v, ok
}

// Date returns the calendar day of the post, or false when the
// timestamp could not be parsed.
func (p *Post) Date() (time.Time, bool) {
	if p.Timestamp == nil {
		return time.Time{}, false
	}
	return DayOf(*p.Timestamp), true
}

// SentimentSample is the polarity of one post on its calendar day.
type SentimentSample struct {
	PostID   int64     `json:"post_id"`
	Polarity float64   `json:"polarity"`
	Date     time.Time `json:"date"`
}

// DailyAggregate summarizes one source on one calendar day.
type DailyAggregate struct {
	Date                time.Time `json:"date"`
	Source              Source    `json:"source"`
	MeanSentiment       float64   `json:"mean_sentiment"`
	SampleCount         int       `json:"sample_count"`
	MeanEngagementRatio float64   `json:"mean_engagement_ratio"`
}
