package analysis

import (
	"bufio"
	_ "embed"
	"slices"
	"strings"
	"unicode"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/domain"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/sentiment"
)

//go:embed stopwords.txt
var stopwordsTXT string

var stopwords = loadStopwords()

func loadStopwords() map[string]bool {
	words := make(map[string]bool)
	sc := bufio.NewScanner(strings.NewReader(stopwordsTXT))
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w != "" && !strings.HasPrefix(w, "#") {
			words[w] = true
		}
	}
	return words
}

// TermCount is how often a word occurs across a source's posts.
type TermCount struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Terms counts words across the texts of posts, with links removed, and
// returns the top n by count (ties broken alphabetically). Stopwords,
// single characters and pure numbers are not counted. n <= 0 returns
// every term.
func Terms(posts []domain.Post, n int) []TermCount {
	counts := make(map[string]int)
	for _, p := range posts {
		for _, tok := range sentiment.Tokenize(p.Text) {
			tok = strings.TrimSuffix(tok, "'s")
			if !countable(tok) {
				continue
			}
			counts[tok]++
		}
	}

	terms := make([]TermCount, 0, len(counts))
	for term, c := range counts {
		terms = append(terms, TermCount{Term: term, Count: c})
	}
	slices.SortFunc(terms, func(a, b TermCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Term, b.Term)
	})
	if n > 0 && len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func countable(tok string) bool {
	if len([]rune(tok)) < 2 || stopwords[tok] {
		return false
	}
	return strings.ContainsFunc(tok, unicode.IsLetter)
}
