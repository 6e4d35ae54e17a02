package database

import (
	"context"
	"fmt"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/domain"
)

// Table is a generic query result: column names plus rows of scalar values.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// QueryTable runs a read-only query and materializes every row.
// Text values come back as string rather than []byte.
func (db *DB) QueryTable(ctx context.Context, query string, args ...any) (*Table, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		t.Rows = append(t.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

// TableStat describes the contents of one post table.
type TableStat struct {
	Source    domain.Source `json:"source"`
	Table     string        `json:"table"`
	Rows      int           `json:"rows"`
	Undated   int           `json:"undated"`
	FirstDate *string       `json:"first_date,omitempty"`
	LastDate  *string       `json:"last_date,omitempty"`
}

// Stats returns row counts and date coverage of both post tables.
func (db *DB) Stats(ctx context.Context) ([]TableStat, error) {
	var stats []TableStat
	for _, src := range domain.Sources {
		s := TableStat{Source: src, Table: TableName(src)}
		err := db.conn.QueryRowContext(ctx, fmt.Sprintf(
			`SELECT COUNT(*), COALESCE(SUM(date IS NULL), 0), MIN(date), MAX(date) FROM %s`, s.Table,
		)).Scan(&s.Rows, &s.Undated, &s.FirstDate, &s.LastDate)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", s.Table, err)
		}
		stats = append(stats, s)
	}
	return stats, nil
}
