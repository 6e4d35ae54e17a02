package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Environment variables that override the config file.
const (
	EnvDataDir           = "PERCEPTION_DATA_DIR"
	EnvLogLevel          = "PERCEPTION_LOG_LEVEL"
	EnvSentimentProvider = "PERCEPTION_SENTIMENT_PROVIDER"
)

// StoreFile is the name of the SQLite file inside the data directory.
const StoreFile = "perception.db"

type Config struct {
	Inputs    Inputs                         `yaml:"inputs"`
	Aliases   map[string]map[string][]string `yaml:"aliases"`
	Store     Store                          `yaml:"store"`
	Sentiment Sentiment                      `yaml:"sentiment"`
	Report    Report                         `yaml:"report"`
	Server    Server                         `yaml:"server"`
	Logging   Logging                        `yaml:"logging"`
}

type Inputs struct {
	Tweets Input `yaml:"tweets"`
	Reddit Input `yaml:"reddit"`
}

// Input is one raw export. An empty path disables the source.
type Input struct {
	Path      string `yaml:"path"`
	Delimiter string `yaml:"delimiter" validate:"omitempty,len=1"`
}

// Rune returns the delimiter as a rune, or def when unset.
func (i Input) Rune(def rune) rune {
	if i.Delimiter == "" {
		return def
	}
	r, _ := utf8.DecodeRuneInString(i.Delimiter)
	return r
}

type Store struct {
	Driver  string `yaml:"driver" validate:"oneof=sqlite sqlite3"`
	DataDir string `yaml:"data_dir"`
}

type Sentiment struct {
	Provider    string `yaml:"provider" validate:"oneof=lexicon ollama openai"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url" validate:"omitempty,url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	MaxTokens   int    `yaml:"max_tokens" validate:"min=1"`
}

type Report struct {
	TopTerms int `yaml:"top_terms" validate:"min=1"`
}

type Server struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

type Logging struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// ConfigDir returns the XDG config directory for perception.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "perception")
}

// DataDir returns the XDG data directory for perception.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "perception")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/perception/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'perception init' to create a default config",
		xdgConfig,
	)
}

// LoadDotEnv reads a .env file from the working directory if one exists.
// Variables already set in the environment win.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	return nil
}

// Load reads and parses a config YAML file, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Inputs: Inputs{
			Tweets: Input{Delimiter: ","},
			Reddit: Input{Delimiter: "|"},
		},
		Store: Store{Driver: "sqlite"},
		Sentiment: Sentiment{
			Provider:    "lexicon",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o-mini",
			APIKeyEnv:   "OPENAI_API_KEY",
			MaxTokens:   32,
		},
		Report:  Report{TopTerms: 50},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "info", Format: "console"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	cfg.Sentiment.Provider = strings.ToLower(cfg.Sentiment.Provider)
	return cfg, nil
}

// ApplyEnv overrides config values from environment variables looked up
// through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvDataDir); v != "" {
		c.Store.DataDir = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := getenv(EnvSentimentProvider); v != "" {
		c.Sentiment.Provider = strings.ToLower(v)
	}
}

// Validate checks the config against its struct constraints.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Store.DataDir != "" {
		return c.Store.DataDir
	}
	return DataDir()
}

// StorePath returns the path of the SQLite store.
func (c *Config) StorePath() string {
	return filepath.Join(c.GetDataDir(), StoreFile)
}

// AliasesFor returns the extra column aliases configured for a source,
// keyed by canonical field. The source name is matched case-insensitively.
func (c *Config) AliasesFor(source string) map[string][]string {
	for name, fields := range c.Aliases {
		if strings.EqualFold(name, source) {
			return fields
		}
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
