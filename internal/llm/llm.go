// Package llm talks to chat-completion backends used for model-based
// sentiment scoring.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const (
	defaultOpenAIURL = "https://api.openai.com/v1"
	requestTimeout   = 60 * time.Second
	probeTimeout     = 5 * time.Second
)

// ErrNoAPIKey is returned by OpenAIProvider.Generate when no key is set.
var ErrNoAPIKey = errors.New("openai: API key not configured")

// Provider generates a completion for a single prompt.
type Provider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
}

// StatusError is a non-200 response from a backend.
type StatusError struct {
	Backend string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Backend, e.Status, e.Body)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func userPrompt(prompt string) []chatMessage {
	return []chatMessage{{Role: "user", Content: prompt}}
}

// postJSON sends body to url and decodes a 200 response into out.
func postJSON(ctx context.Context, client *http.Client, backend, url string, header http.Header, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%s: encoding request: %w", backend, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: creating request: %w", backend, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", backend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Backend: backend, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", backend, err)
	}
	return nil
}

// OllamaProvider calls a local Ollama server in JSON mode.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewOllamaProvider creates an Ollama provider for model at baseURL.
func NewOllamaProvider(model, baseURL string, log zerolog.Logger) *OllamaProvider {
	return &OllamaProvider{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
		log:     log,
	}
}

// IsConfigured reports whether the server answers and has the model pulled.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		o.log.Debug().Err(err).Str("url", o.BaseURL).Msg("ollama unreachable")
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false
	}

	family, _, _ := strings.Cut(o.Model, ":")
	for _, m := range tags.Models {
		if strings.HasPrefix(m.Name, family) {
			return true
		}
	}
	o.log.Warn().Str("model", o.Model).Msg("ollama model not pulled")
	return false
}

// Generate runs one non-streaming chat turn at temperature 0.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	req := struct {
		Model    string         `json:"model"`
		Messages []chatMessage  `json:"messages"`
		Stream   bool           `json:"stream"`
		Format   string         `json:"format"`
		Options  map[string]any `json:"options"`
	}{
		Model:    o.Model,
		Messages: userPrompt(prompt),
		Format:   "json",
		Options:  map[string]any{"num_predict": maxTokens, "temperature": 0},
	}

	var resp struct {
		Message chatMessage `json:"message"`
	}
	if err := postJSON(ctx, o.client, "ollama", o.BaseURL+"/api/chat", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// OpenAIProvider calls an OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	Model   string
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewOpenAIProvider creates a provider whose key is read from apiKeyEnv.
func NewOpenAIProvider(model, apiKeyEnv string) *OpenAIProvider {
	return &OpenAIProvider{
		Model:   model,
		APIKey:  os.Getenv(apiKeyEnv),
		BaseURL: defaultOpenAIURL,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// IsConfigured reports whether an API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.APIKey != ""
}

// Generate runs one chat completion at temperature 0.
func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if o.APIKey == "" {
		return "", ErrNoAPIKey
	}

	req := struct {
		Model       string        `json:"model"`
		Messages    []chatMessage `json:"messages"`
		MaxTokens   int           `json:"max_tokens"`
		Temperature float64       `json:"temperature"`
	}{
		Model:     o.Model,
		Messages:  userPrompt(prompt),
		MaxTokens: maxTokens,
	}

	var resp struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	header := http.Header{"Authorization": {"Bearer " + o.APIKey}}
	if err := postJSON(ctx, o.client, "openai", o.BaseURL+"/chat/completions", header, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

// Config selects and configures a provider.
type Config struct {
	// Provider is "ollama" or "openai". Ollama falls back to OpenAI.
	Provider    string
	Model       string
	OllamaURL   string
	OpenAIModel string
	APIKeyEnv   string
}

// CreateProvider returns the first usable provider for cfg, or nil.
func CreateProvider(cfg Config, log zerolog.Logger) Provider {
	if strings.EqualFold(cfg.Provider, "ollama") {
		p := NewOllamaProvider(cfg.Model, cfg.OllamaURL, log)
		if p.IsConfigured() {
			log.Info().Str("model", cfg.Model).Msg("scoring with ollama")
			return p
		}
		log.Warn().Str("url", cfg.OllamaURL).Msg("ollama not available, trying openai")
	}

	p := NewOpenAIProvider(cfg.OpenAIModel, cfg.APIKeyEnv)
	if p.IsConfigured() {
		log.Info().Str("model", cfg.OpenAIModel).Msg("scoring with openai")
		return p
	}

	log.Warn().Str("api_key_env", cfg.APIKeyEnv).Msg("no model provider available")
	return nil
}
