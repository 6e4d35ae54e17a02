package sentiment

import (
	"bufio"
	"context"
	_ "embed"
	"strconv"
	"strings"
)

//go:embed lexicon.tsv
var lexiconTSV string

// negationFactor is applied to a word preceded by a negation,
// so "not good" is mildly negative rather than the mirror of "good".
const negationFactor = -0.5

// Lexicon scores text by averaging the polarity of the sentiment-bearing
// words it contains, adjusted for a preceding intensifier or negation.
type Lexicon struct {
	words        map[string]float64
	intensifiers map[string]float64
	negations    map[string]bool
}

// NewLexicon loads the embedded lexicon.
func NewLexicon() *Lexicon {
	l := &Lexicon{
		words:        make(map[string]float64),
		intensifiers: make(map[string]float64),
		negations:    make(map[string]bool),
	}

	sc := bufio.NewScanner(strings.NewReader(lexiconTSV))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		kind, word := parts[0], parts[1]
		switch kind {
		case "n":
			l.negations[word] = true
		case "w", "i":
			if len(parts) != 3 {
				continue
			}
			v, err := strconv.ParseFloat(parts[2], 64)
			if err != nil {
				continue
			}
			if kind == "w" {
				l.words[word] = v
			} else {
				l.intensifiers[word] = v
			}
		}
	}
	return l
}

// Score implements Scorer.
func (l *Lexicon) Score(_ context.Context, text string) float64 {
	return l.Polarity(text)
}

// Polarity returns the lexicon polarity of text in [-1, 1].
func (l *Lexicon) Polarity(text string) float64 {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return 0
	}

	var sum float64
	var n int
	for i, tok := range tokens {
		p, ok := l.words[tok]
		if !ok {
			continue
		}
		if i > 0 {
			if m, ok := l.intensifiers[tokens[i-1]]; ok {
				p *= m
			}
		}
		if l.negated(tokens, i) {
			p *= negationFactor
		}
		sum += Clamp(p)
		n++
	}
	if n == 0 {
		return 0
	}
	return Clamp(sum / float64(n))
}

// negated reports whether one of the two tokens before i negates it.
func (l *Lexicon) negated(tokens []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-2; j-- {
		t := tokens[j]
		if l.negations[t] || strings.HasSuffix(t, "n't") {
			return true
		}
	}
	return false
}

// Size returns the number of sentiment-bearing words.
func (l *Lexicon) Size() int { return len(l.words) }
