package database

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/domain"
)

// Table names.
const (
	TableTweets = "tweets"
	TableReddit = "reddit_posts"
)

// column is one declared column of a post table and how a post fills it.
type column struct {
	name  string
	decl  string
	value func(p *domain.Post) any
}

// tableSchema is the declared column set of a post table.
type tableSchema struct {
	name    string
	columns []column
}

func counter(name string) func(p *domain.Post) any {
	return func(p *domain.Post) any {
		if v, ok := p.Counter(name); ok {
			return v
		}
		return nil
	}
}

var commonLeading = []column{
	{"id", "INTEGER PRIMARY KEY", func(p *domain.Post) any { return p.ID }},
	{"source_id", "TEXT", func(p *domain.Post) any { return p.SourceID }},
	{"text", "TEXT NOT NULL", func(p *domain.Post) any { return p.Text }},
}

var commonTime = []column{
	{"timestamp", "TEXT", func(p *domain.Post) any {
		if p.Timestamp == nil {
			return nil
		}
		return p.Timestamp.UTC().Format(time.RFC3339)
	}},
	{"raw_timestamp", "TEXT", func(p *domain.Post) any { return p.RawTimestamp }},
	{"date", "TEXT", func(p *domain.Post) any {
		if d, ok := p.Date(); ok {
			return domain.FormatDay(d)
		}
		return nil
	}},
}

var schemas = map[domain.Source]tableSchema{
	domain.SourceTweet: {
		name: TableTweets,
		columns: concat(commonLeading, commonTime, []column{
			{"device", "TEXT", func(p *domain.Post) any { return p.Device }},
			{"is_retweet", "INTEGER", func(p *domain.Post) any {
				if p.IsRetweet == nil {
					return nil
				}
				if *p.IsRetweet {
					return 1
				}
				return 0
			}},
			{domain.CounterFavorites, "INTEGER", counter(domain.CounterFavorites)},
			{domain.CounterRetweets, "INTEGER", counter(domain.CounterRetweets)},
		}),
	},
	domain.SourceReddit: {
		name: TableReddit,
		columns: concat(commonLeading, []column{
			{"title", "TEXT", func(p *domain.Post) any { return p.Title }},
		}, commonTime, []column{
			{domain.CounterPoints, "INTEGER", counter(domain.CounterPoints)},
			{domain.CounterCommentsCount, "INTEGER", counter(domain.CounterCommentsCount)},
		}),
	},
}

func concat(parts ...[]column) []column {
	var out []column
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// TableName returns the table a source is stored in.
func TableName(src domain.Source) string {
	return schemas[src].name
}

// Columns returns the declared column names of a source's table.
func Columns(src domain.Source) []string {
	s := schemas[src]
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.name
	}
	return names
}

func (s tableSchema) createSQL(ifNotExists bool) string {
	defs := make([]string, len(s.columns))
	for i, c := range s.columns {
		defs[i] = c.name + " " + c.decl
	}
	guard := ""
	if ifNotExists {
		guard = "IF NOT EXISTS "
	}
	return fmt.Sprintf("CREATE TABLE %s%s (\n    %s\n)", guard, s.name, strings.Join(defs, ",\n    "))
}

func (s tableSchema) indexSQL() string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_date ON %s(date)", s.name, s.name)
}

func (s tableSchema) insertSQL() string {
	names := make([]string, len(s.columns))
	for i, c := range s.columns {
		names[i] = c.name
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.name, strings.Join(names, ", "), marks)
}

// EnsureTables creates both post tables if they do not exist yet, so
// queries see an empty table rather than a missing one.
func (db *DB) EnsureTables(ctx context.Context) error {
	for _, src := range domain.Sources {
		s := schemas[src]
		if _, err := db.conn.ExecContext(ctx, s.createSQL(true)); err != nil {
			return fmt.Errorf("creating table %s: %w", s.name, err)
		}
		if _, err := db.conn.ExecContext(ctx, s.indexSQL()); err != nil {
			return fmt.Errorf("indexing table %s: %w", s.name, err)
		}
	}
	return nil
}

// ReplacePosts replaces the contents of a source's table with posts.
// The table is dropped and recreated with its declared columns inside a
// single transaction, so a failed load leaves the previous contents in
// place and a re-run never duplicates rows. It returns the number of rows
// written.
func (db *DB) ReplacePosts(ctx context.Context, src domain.Source, posts iter.Seq2[domain.Post, error]) (int, error) {
	s, ok := schemas[src]
	if !ok {
		return 0, fmt.Errorf("no table for source %q", src)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin load %s: %w", s.name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+s.name); err != nil {
		return 0, fmt.Errorf("dropping %s: %w", s.name, err)
	}
	if _, err := tx.ExecContext(ctx, s.createSQL(false)); err != nil {
		return 0, fmt.Errorf("creating %s: %w", s.name, err)
	}

	stmt, err := tx.PrepareContext(ctx, s.insertSQL())
	if err != nil {
		return 0, fmt.Errorf("preparing insert into %s: %w", s.name, err)
	}
	defer stmt.Close()

	n := 0
	args := make([]any, len(s.columns))
	for p, err := range posts {
		if err != nil {
			return 0, err
		}
		for i, c := range s.columns {
			args[i] = c.value(&p)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("inserting post %d into %s: %w", p.ID, s.name, err)
		}
		n++
	}

	if _, err := tx.ExecContext(ctx, s.indexSQL()); err != nil {
		return 0, fmt.Errorf("indexing %s: %w", s.name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit load %s: %w", s.name, err)
	}

	db.log.Debug().Str("table", s.name).Int("rows", n).Msg("replaced table")
	return n, nil
}
