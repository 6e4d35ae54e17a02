package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Inputs.Tweets.Path == "" || cfg.Inputs.Reddit.Path == "" {
		t.Error("expected both input paths to be populated")
	}
	if cfg.Inputs.Reddit.Rune(',') != '|' {
		t.Errorf("expected reddit delimiter '|', got %q", cfg.Inputs.Reddit.Rune(','))
	}
	if cfg.Sentiment.Provider != "lexicon" {
		t.Errorf("expected provider 'lexicon', got %q", cfg.Sentiment.Provider)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected driver 'sqlite', got %q", cfg.Store.Driver)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
sentiment:
  provider: OpenAI
server:
  port: 9000
logging:
  level: DEBUG
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Sentiment.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.Sentiment.Provider)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level 'debug', got %q", cfg.Logging.Level)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Sentiment.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama_url, got %q", cfg.Sentiment.OllamaURL)
	}
	if cfg.Inputs.Tweets.Rune('?') != ',' {
		t.Errorf("expected default tweet delimiter ',', got %q", cfg.Inputs.Tweets.Rune('?'))
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"driver":    "store:\n  driver: postgres\n",
		"provider":  "sentiment:\n  provider: vader\n",
		"delimiter": "inputs:\n  reddit:\n    delimiter: \"||\"\n",
		"port":      "server:\n  port: 70000\n",
		"format":    "logging:\n  format: xml\n",
	}
	for name, data := range tests {
		cfg, err := parse([]byte(data))
		if err != nil {
			t.Fatalf("%s: parse failed: %v", name, err)
		}
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	env := map[string]string{
		EnvDataDir:           "/tmp/perception",
		EnvLogLevel:          "WARN",
		EnvSentimentProvider: "Ollama",
	}
	cfg.ApplyEnv(func(k string) string { return env[k] })

	if cfg.GetDataDir() != "/tmp/perception" {
		t.Errorf("expected data dir override, got %q", cfg.GetDataDir())
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected level 'warn', got %q", cfg.Logging.Level)
	}
	if cfg.Sentiment.Provider != "ollama" {
		t.Errorf("expected provider 'ollama', got %q", cfg.Sentiment.Provider)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	t.Setenv(EnvDataDir, dir)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.StorePath() != filepath.Join(dir, StoreFile) {
		t.Errorf("unexpected store path %q", cfg.StorePath())
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("store:\n  driver: mysql\n"), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid driver")
	}
}

func TestAliasesFor(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := cfg.AliasesFor("REDDIT")
	if len(got["text"]) != 1 || got["text"][0] != "body" {
		t.Errorf("expected reddit text alias 'body', got %v", got)
	}
	if cfg.AliasesFor("mastodon") != nil {
		t.Error("expected no aliases for unknown source")
	}
}

func TestResolveConfigPathExplicit(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Store.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}
