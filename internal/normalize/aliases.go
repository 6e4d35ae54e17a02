package normalize

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/domain"
)

// Canonical field names. Engagement counters use the counter names
// declared on domain.Source.
const (
	FieldSourceID  = "source_id"
	FieldText      = "text"
	FieldTitle     = "title"
	FieldTimestamp = "timestamp"
	FieldDevice    = "device"
	FieldIsRetweet = "is_retweet"
)

// requiredFields must resolve for every source; a miss is fatal.
var requiredFields = []string{FieldText, FieldTimestamp}

// AliasTable maps a canonical field to the raw column names accepted for
// it, in priority order. Matching is case-insensitive.
type AliasTable map[string][]string

// DefaultAliases returns the declared alias table for a source.
func DefaultAliases(src domain.Source) AliasTable {
	switch src {
	case domain.SourceTweet:
		return AliasTable{
			FieldSourceID:           {"id"},
			FieldText:               {"text"},
			FieldTimestamp:          {"datetime", "date", "created_at"},
			FieldDevice:             {"device", "source"},
			FieldIsRetweet:          {"is_retweet", "isRetweet"},
			domain.CounterFavorites: {"favorites", "favorite_count"},
			domain.CounterRetweets:  {"retweets", "retweet_count"},
		}
	case domain.SourceReddit:
		return AliasTable{
			FieldSourceID:               {"id"},
			FieldText:                   {"comments", "Comments", "Post", "post"},
			FieldTimestamp:              {"post_date", "Post_Date", "datetime"},
			FieldTitle:                  {"title"},
			domain.CounterPoints:        {"points", "score"},
			domain.CounterCommentsCount: {"comments_count", "num_comments"},
		}
	}
	return AliasTable{}
}

// With returns a copy of the table with extra variants appended after the
// declared ones. Unknown fields are added as-is.
func (a AliasTable) With(extra map[string][]string) AliasTable {
	out := make(AliasTable, len(a)+len(extra))
	for field, variants := range a {
		out[field] = slices.Clone(variants)
	}
	for field, variants := range extra {
		for _, v := range variants {
			if !slices.Contains(out[field], v) {
				out[field] = append(out[field], v)
			}
		}
	}
	return out
}

// columns maps canonical fields to their index in a record.
type columns map[string]int

// resolve matches header names against the alias table once per file.
// It returns the resolved columns and the first required field that could
// not be resolved, if any.
func resolve(header []string, aliases AliasTable) (columns, string) {
	fold := cases.Fold()
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := fold.String(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	cols := make(columns, len(aliases))
	for field, variants := range aliases {
		for _, v := range variants {
			if i, ok := index[fold.String(v)]; ok {
				cols[field] = i
				break
			}
		}
	}

	for _, field := range requiredFields {
		if _, ok := cols[field]; !ok {
			return cols, field
		}
	}
	return cols, ""
}

// lookup returns the raw value of field in rec, if the field resolved.
func (c columns) lookup(rec []string, field string) (string, bool) {
	i, ok := c[field]
	if !ok || i >= len(rec) {
		return "", false
	}
	return rec[i], true
}
