// Package query runs the fixed battery of named report queries against
// the store. A failing query is reported under its name and never stops
// the others.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/database"
)

// TopN bounds every "top" query.
const TopN = 5

// Query is one named, parameter-free report query.
type Query struct {
	Name string
	SQL  string
	Args []any
}

// Querier runs a read-only query and returns its rows.
type Querier interface {
	QueryTable(ctx context.Context, query string, args ...any) (*database.Table, error)
}

// Result is the outcome of one query: a table or a *QueryError.
type Result struct {
	Name     string          `json:"name"`
	Table    *database.Table `json:"table,omitempty"`
	Err      error           `json:"-"`
	Duration time.Duration   `json:"duration"`
}

// QueryError is a failed query, identified by name.
type QueryError struct {
	Name string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q failed: %v", e.Name, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Battery is the report's query list, in display order.
var Battery = []Query{
	{
		Name: "Top 5 most retweeted tweets",
		SQL: `SELECT text, retweets FROM tweets
WHERE retweets IS NOT NULL
ORDER BY retweets DESC, id
LIMIT ?`,
		Args: []any{TopN},
	},
	{
		Name: "Top Reddit posts by points",
		SQL: `SELECT title, points FROM reddit_posts
WHERE points IS NOT NULL
ORDER BY points DESC, id
LIMIT ?`,
		Args: []any{TopN},
	},
	{
		Name: "Count of Tweets by Device",
		SQL: `SELECT device, COUNT(*) AS count FROM tweets
WHERE device IS NOT NULL
GROUP BY device
ORDER BY count DESC, device`,
	},
	{
		Name: "Average Favorites per Tweet",
		SQL: `SELECT AVG(favorites) AS average_favorites FROM tweets
WHERE favorites IS NOT NULL`,
	},
	{
		Name: "Top 5 Most Commented Reddit Posts",
		SQL: `SELECT title, comments_count FROM reddit_posts
WHERE comments_count IS NOT NULL
ORDER BY comments_count DESC, id
LIMIT ?`,
		Args: []any{TopN},
	},
	{
		Name: "Count of Retweets",
		SQL:  `SELECT COUNT(*) AS retweet_count FROM tweets WHERE is_retweet = 1`,
	},
	{
		Name: "Tweets by Hour and Device",
		SQL: `SELECT CAST(strftime('%H', timestamp) AS INTEGER) AS hour, device, COUNT(*) AS count
FROM tweets
WHERE timestamp IS NOT NULL AND device IS NOT NULL
GROUP BY hour, device
ORDER BY hour, device`,
	},
	{
		Name: "Posts per Day by Source",
		SQL: `SELECT date, source, count FROM (
    SELECT date, 'TWEET' AS source, COUNT(*) AS count FROM tweets
    WHERE date IS NOT NULL GROUP BY date
    UNION ALL
    SELECT date, 'REDDIT' AS source, COUNT(*) AS count FROM reddit_posts
    WHERE date IS NOT NULL GROUP BY date
)
ORDER BY date, source`,
	},
}

// Names returns the names of queries, in order.
func Names(queries []Query) []string {
	names := make([]string, len(queries))
	for i, q := range queries {
		names[i] = q.Name
	}
	return names
}

// ResultNames returns the names of results, in order.
func ResultNames(results []Result) []string {
	names := make([]string, len(results))
	for i, r := range results {
		names[i] = r.Name
	}
	return names
}

// Find returns the query with the given name.
func Find(queries []Query, name string) (Query, bool) {
	for _, q := range queries {
		if q.Name == name {
			return q, true
		}
	}
	return Query{}, false
}

// Run executes queries in order and returns one result per query.
// observe, when non-nil, is called after each query.
func Run(ctx context.Context, db Querier, queries []Query, observe func(Result)) []Result {
	results := make([]Result, 0, len(queries))
	for _, q := range queries {
		start := time.Now()
		tbl, err := db.QueryTable(ctx, q.SQL, q.Args...)
		r := Result{Name: q.Name, Duration: time.Since(start)}
		if err != nil {
			r.Err = &QueryError{Name: q.Name, Err: err}
		} else {
			r.Table = tbl
		}
		if observe != nil {
			observe(r)
		}
		results = append(results, r)
	}
	return results
}

// Failed returns the results that carry an error.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
