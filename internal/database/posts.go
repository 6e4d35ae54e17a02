package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/domain"
)

// GetPosts returns every stored post of a source ordered by id.
func (db *DB) GetPosts(ctx context.Context, src domain.Source) ([]domain.Post, error) {
	s, ok := schemas[src]
	if !ok {
		return nil, fmt.Errorf("no table for source %q", src)
	}

	names := Columns(src)
	rows, err := db.conn.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s ORDER BY id", strings.Join(names, ", "), s.name),
	)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.name, err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows, src, names)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", s.name, err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CountPosts returns the number of stored posts of a source.
func (db *DB) CountPosts(ctx context.Context, src domain.Source) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+TableName(src)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", TableName(src), err)
	}
	return n, nil
}

func scanPost(rows *sql.Rows, src domain.Source, names []string) (domain.Post, error) {
	var (
		id                  int64
		text, rawTS         string
		sourceID, title, ts sql.NullString
		date, device        sql.NullString
		isRetweet           sql.NullInt64
	)
	counters := make(map[string]*sql.NullInt64)

	dest := make([]any, len(names))
	for i, name := range names {
		switch name {
		case "id":
			dest[i] = &id
		case "source_id":
			dest[i] = &sourceID
		case "text":
			dest[i] = &text
		case "title":
			dest[i] = &title
		case "timestamp":
			dest[i] = &ts
		case "raw_timestamp":
			dest[i] = &rawTS
		case "date":
			dest[i] = &date
		case "device":
			dest[i] = &device
		case "is_retweet":
			dest[i] = &isRetweet
		default:
			c := new(sql.NullInt64)
			counters[name] = c
			dest[i] = c
		}
	}
	if err := rows.Scan(dest...); err != nil {
		return domain.Post{}, err
	}

	p := domain.Post{
		ID:           id,
		Source:       src,
		Text:         text,
		RawTimestamp: rawTS,
		SourceID:     nullString(sourceID),
		Title:        nullString(title),
		Device:       nullString(device),
	}
	if ts.Valid {
		t, err := time.Parse(time.RFC3339, ts.String)
		if err != nil {
			return domain.Post{}, fmt.Errorf("post %d: parsing stored timestamp: %w", id, err)
		}
		p.Timestamp = &t
	}
	if isRetweet.Valid {
		b := isRetweet.Int64 != 0
		p.IsRetweet = &b
	}
	for name, c := range counters {
		if !c.Valid {
			continue
		}
		if p.Engagement == nil {
			p.Engagement = make(map[string]int64, len(counters))
		}
		p.Engagement[name] = c.Int64
	}
	return p, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
