package normalize

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/domain"
)

// Input describes one raw export file.
type Input struct {
	Path      string
	Source    domain.Source
	Delimiter rune
}

// Stats counts what happened during one pass over an input.
type Stats struct {
	Rows          int // posts produced
	Skipped       int // malformed rows dropped
	BadTimestamps int // posts whose timestamp did not parse
}

// IngestError is a fatal problem with an input file: it is missing,
// unreadable, or lacks a required column after alias lookup.
type IngestError struct {
	File    string
	Column  string
	Aliases []string
	Err     error
}

func (e *IngestError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: missing column %q (tried %s)", e.File, e.Column, strings.Join(e.Aliases, ", "))
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *IngestError) Unwrap() error { return e.Err }

// ErrMissingColumn is wrapped by IngestError when a required column is absent.
var ErrMissingColumn = errors.New("missing required column")

// Reader turns one raw export into canonical posts.
type Reader struct {
	in       Input
	aliases  AliasTable
	validate *validator.Validate
	stats    Stats
}

// NewReader creates a reader for in. A nil alias table means the
// declared defaults for the input's source.
func NewReader(in Input, aliases AliasTable) *Reader {
	if aliases == nil {
		aliases = DefaultAliases(in.Source)
	}
	if in.Delimiter == 0 {
		in.Delimiter = ','
	}
	return &Reader{
		in:       in,
		aliases:  aliases,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Input returns the input this reader was built for.
func (r *Reader) Input() Input { return r.in }

// Stats returns the counts from the most recent pass.
func (r *Reader) Stats() Stats { return r.stats }

// Posts returns a lazy sequence of canonical posts. Each iteration reopens
// the file and resets Stats, so the sequence can be replayed. A non-nil
// error ends the sequence and is always an *IngestError.
func (r *Reader) Posts() iter.Seq2[domain.Post, error] {
	return func(yield func(domain.Post, error) bool) {
		r.stats = Stats{}

		f, err := os.Open(r.in.Path)
		if err != nil {
			yield(domain.Post{}, &IngestError{File: r.in.Path, Err: err})
			return
		}
		defer f.Close()

		cr := newRecordReader(bufio.NewReader(f), r.in.Delimiter)

		header, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = errors.New("empty file")
			}
			yield(domain.Post{}, &IngestError{File: r.in.Path, Err: fmt.Errorf("reading header: %w", err)})
			return
		}

		cols, missing := resolve(header, r.aliases)
		if missing != "" {
			yield(domain.Post{}, &IngestError{
				File:    r.in.Path,
				Column:  missing,
				Aliases: r.aliases[missing],
				Err:     ErrMissingColumn,
			})
			return
		}
		cr.SetFields(len(header))

		var nextID int64
		for {
			rec, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var pe *csv.ParseError
				if errors.As(err, &pe) {
					r.stats.Skipped++
					continue
				}
				yield(domain.Post{}, &IngestError{File: r.in.Path, Err: err})
				return
			}

			nextID++
			post := r.build(nextID, rec, cols)
			if err := r.validate.Struct(post); err != nil {
				yield(domain.Post{}, &IngestError{File: r.in.Path, Err: fmt.Errorf("row %d: %w", nextID, err)})
				return
			}
			r.stats.Rows++
			if !yield(post, nil) {
				return
			}
		}
	}
}

func (r *Reader) build(id int64, rec []string, cols columns) domain.Post {
	text, _ := cols.lookup(rec, FieldText)
	p := domain.Post{
		ID:     id,
		Source: r.in.Source,
		Text:   text,
	}

	if v, ok := cols.lookup(rec, FieldSourceID); ok {
		if v = strings.TrimSpace(v); v != "" {
			p.SourceID = &v
		}
	}
	if v, ok := cols.lookup(rec, FieldTitle); ok {
		p.Title = &v
	}

	raw, _ := cols.lookup(rec, FieldTimestamp)
	p.RawTimestamp = strings.TrimSpace(raw)
	if ts, ok := ParseTimestamp(raw); ok {
		p.Timestamp = &ts
	} else {
		r.stats.BadTimestamps++
	}

	if v, ok := cols.lookup(rec, FieldDevice); ok {
		if v = strings.TrimSpace(v); v != "" {
			p.Device = &v
		}
	}
	if v, ok := cols.lookup(rec, FieldIsRetweet); ok {
		if b, ok := ParseBool(v); ok {
			p.IsRetweet = &b
		}
	}

	for _, name := range r.in.Source.Counters() {
		v, ok := cols.lookup(rec, name)
		if !ok {
			continue
		}
		if n, ok := ParseCount(v); ok {
			if p.Engagement == nil {
				p.Engagement = make(map[string]int64, 2)
			}
			p.Engagement[name] = n
		}
	}

	return p
}

// Collect drains a sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[domain.Post, error]) ([]domain.Post, error) {
	var posts []domain.Post
	for p, err := range seq {
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}
