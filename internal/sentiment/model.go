package sentiment

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/llm"
)

const polarityPrompt = `Rate the sentiment polarity of the following social media post.

Use a number between -1.0 (very negative) and 1.0 (very positive); 0.0 is neutral.

Post:
%s

Respond with ONLY this JSON:
{"polarity": <number>}`

const maxPromptText = 2000

// ModelScorer asks an LLM for the polarity of each text. Provider or
// parse failures fall back to another scorer, so Score never fails.
type ModelScorer struct {
	provider  llm.Provider
	fallback  Scorer
	maxTokens int
	log       zerolog.Logger
	cache     map[string]float64
	fallbacks int
}

// NewModelScorer creates a model-backed scorer.
func NewModelScorer(provider llm.Provider, fallback Scorer, maxTokens int, log zerolog.Logger) *ModelScorer {
	if maxTokens <= 0 {
		maxTokens = 32
	}
	return &ModelScorer{
		provider:  provider,
		fallback:  fallback,
		maxTokens: maxTokens,
		log:       log,
		cache:     make(map[string]float64),
	}
}

// Score implements Scorer. Identical texts (retweets, copy-pasted
// comments) are scored once per scorer.
func (m *ModelScorer) Score(ctx context.Context, text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	if v, ok := m.cache[text]; ok {
		return v
	}
	v := m.score(ctx, text)
	m.cache[text] = v
	return v
}

// Fallbacks returns how many texts were scored by the fallback scorer.
func (m *ModelScorer) Fallbacks() int { return m.fallbacks }

func (m *ModelScorer) score(ctx context.Context, text string) float64 {
	content := truncate(text, maxPromptText)

	resp, err := m.provider.Generate(ctx, fmt.Sprintf(polarityPrompt, content), m.maxTokens)
	if err != nil {
		m.log.Debug().Err(err).Msg("model scoring failed, using fallback")
		return m.useFallback(ctx, text)
	}

	parsed, err := llm.ParseJSONResponse(resp)
	if err != nil {
		m.log.Debug().Err(err).Msg("unparseable polarity, using fallback")
		return m.useFallback(ctx, text)
	}
	v, ok := llm.Float(parsed, "polarity")
	if !ok {
		return m.useFallback(ctx, text)
	}
	return Clamp(v)
}

func (m *ModelScorer) useFallback(ctx context.Context, text string) float64 {
	m.fallbacks++
	if m.fallback == nil {
		return 0
	}
	return Clamp(m.fallback.Score(ctx, text))
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
