package sentiment

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var urlPattern = regexp.MustCompile(`http\S+|www\S+|https\S+`)

// StripURLs removes links from text.
func StripURLs(text string) string {
	return urlPattern.ReplaceAllString(text, "")
}

// Tokenize lowercases text, drops links and @mentions, and splits it into
// word tokens. Apostrophes inside words are kept ("don't").
func Tokenize(text string) []string {
	text = norm.NFKC.String(StripURLs(text))
	text = cases.Lower(language.English).String(text)
	text = strings.ReplaceAll(text, "\u2019", "'")

	var tokens []string
	var b strings.Builder
	mention := false
	flush := func() {
		if b.Len() > 0 && !mention {
			tokens = append(tokens, strings.Trim(b.String(), "'"))
		}
		b.Reset()
		mention = false
	}

	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'' && b.Len() > 0:
			b.WriteRune(r)
		case r == '@' && b.Len() == 0:
			mention = true
		case r == '#' && b.Len() == 0:
			// hashtags are scored as plain words
		default:
			flush()
		}
	}
	flush()

	out := tokens[:0]
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
