package normalize

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"
)

// maxLine bounds one record of a plain delimited file.
const maxLine = 4 << 20

// recordReader yields one record at a time. A record with the wrong field
// count is reported as a *csv.ParseError wrapping csv.ErrFieldCount.
type recordReader interface {
	Read() ([]string, error)
	SetFields(n int)
}

// newRecordReader picks quote-aware CSV parsing for comma files and plain
// line splitting otherwise. Free-text exports such as the reddit dump use
// a non-comma delimiter so that quotes inside comments stay literal.
func newRecordReader(r io.Reader, delim rune) recordReader {
	if delim == ',' {
		cr := csv.NewReader(r)
		cr.LazyQuotes = true
		return &csvRecords{cr}
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &plainRecords{sc: sc, sep: string(delim)}
}

type csvRecords struct{ *csv.Reader }

func (c *csvRecords) SetFields(n int) { c.FieldsPerRecord = n }

type plainRecords struct {
	sc     *bufio.Scanner
	sep    string
	fields int
	line   int
}

func (p *plainRecords) SetFields(n int) { p.fields = n }

func (p *plainRecords) Read() ([]string, error) {
	for p.sc.Scan() {
		p.line++
		line := strings.TrimSuffix(p.sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec := strings.Split(line, p.sep)
		if p.fields > 0 && len(rec) != p.fields {
			return nil, &csv.ParseError{StartLine: p.line, Line: p.line, Err: csv.ErrFieldCount}
		}
		return rec, nil
	}
	if err := p.sc.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
