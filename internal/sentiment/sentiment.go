// Package sentiment scores the polarity of short social-media texts.
//
// Scores are in [-1, 1]: negative sentiment below zero, positive above,
// zero for neutral, empty or unscorable text.
package sentiment

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/config"
	"github.com/skanderkaroui/Analyzing-Trump-s-Public-Perception-Project/internal/llm"
)

// Scorer computes a polarity for a text. Implementations never fail:
// anything they cannot score is neutral.
type Scorer interface {
	Score(ctx context.Context, text string) float64
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, text string) float64

// Score calls f and clamps the result.
func (f ScorerFunc) Score(ctx context.Context, text string) float64 {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return Clamp(f(ctx, text))
}

// Clamp bounds v to [-1, 1]. NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}

// New builds the scorer selected by configuration. Model-backed scoring
// falls back to the lexicon when no provider is reachable.
func New(cfg config.Sentiment, log zerolog.Logger) Scorer {
	lex := NewLexicon()
	switch strings.ToLower(cfg.Provider) {
	case "ollama", "openai":
		provider := llm.CreateProvider(llm.Config{
			Provider:    cfg.Provider,
			Model:       cfg.Model,
			OllamaURL:   cfg.OllamaURL,
			OpenAIModel: cfg.OpenAIModel,
			APIKeyEnv:   cfg.APIKeyEnv,
		}, log)
		if provider == nil {
			log.Warn().Str("provider", cfg.Provider).Msg("falling back to lexicon sentiment")
			return lex
		}
		return NewModelScorer(provider, lex, cfg.MaxTokens, log)
	}
	return lex
}
