// Package config handles mtgprep configuration loading.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNotConfigured is returned when an operation needs a credential or
// endpoint that the configuration does not provide.
var ErrNotConfigured = errors.New("not configured")

// MissingError wraps ErrNotConfigured with the name of the missing key.
func MissingError(key string) error {
	return fmt.Errorf("%s: %w", key, ErrNotConfigured)
}

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/mtgprep/config.yaml, /etc/mtgprep/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "mtgprep", "config.yaml"))
	}

	paths = append(paths, "/etc/mtgprep/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all mtgprep configuration. It is loaded once at startup
// and handed to constructors; nothing reads the environment afterwards.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Slack     SlackConfig     `yaml:"slack"`
	HubSpot   HubSpotConfig   `yaml:"hubspot"`
	Search    SearchConfig    `yaml:"search"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Reasoning ReasoningConfig `yaml:"reasoning"`
	Collector CollectorConfig `yaml:"collector"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"` // text or json
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// SlackConfig defines chat API access.
type SlackConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
	// ChannelPrefixes limits channel listing to names with these prefixes.
	ChannelPrefixes []string `yaml:"channel_prefixes"`
}

// Configured reports whether a chat token is present.
func (c SlackConfig) Configured() bool { return c.Token != "" }

// HubSpotConfig defines CRM access.
type HubSpotConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

// Configured reports whether a CRM token is present.
func (c HubSpotConfig) Configured() bool { return c.Token != "" }

// SearchConfig selects and configures web search providers.
type SearchConfig struct {
	// Default names the primary provider ("brave" or "searxng"). When
	// empty, the first configured provider is used.
	Default string        `yaml:"default"`
	Brave   BraveConfig   `yaml:"brave"`
	SearXNG SearXNGConfig `yaml:"searxng"`
}

// BraveConfig configures the Brave Search API.
type BraveConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// Configured reports whether an API key is present.
func (c BraveConfig) Configured() bool { return c.APIKey != "" }

// SearXNGConfig configures a self-hosted SearXNG instance.
type SearXNGConfig struct {
	URL string `yaml:"url"`
}

// Configured reports whether an instance URL is present.
func (c SearXNGConfig) Configured() bool { return c.URL != "" }

// OpenAIConfig defines OpenAI Responses API access.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// Configured reports whether an API key is present.
func (c OpenAIConfig) Configured() bool { return c.APIKey != "" }

// AnthropicConfig defines Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// Configured reports whether an API key is present.
func (c AnthropicConfig) Configured() bool { return c.APIKey != "" }

// OllamaConfig points at a local Ollama server.
type OllamaConfig struct {
	URL    string   `yaml:"url"`
	Models []string `yaml:"models"`
}

// Configured reports whether a server URL is present.
func (c OllamaConfig) Configured() bool { return c.URL != "" }

// GeminiConfig defines Google Gemini access.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
}

// Configured reports whether an API key is present.
func (c GeminiConfig) Configured() bool { return c.APIKey != "" }

// ReasoningConfig controls model invocation.
type ReasoningConfig struct {
	Model           string `yaml:"model"`
	FallbackModel   string `yaml:"fallback_model"`
	Effort          string `yaml:"effort"` // low, medium, high
	MaxOutputTokens int    `yaml:"max_output_tokens"`
	// StructuredOutput requests JSON matching the brief schema and renders
	// it to markdown.
	StructuredOutput bool `yaml:"structured_output"`
	// Critique runs a second refinement pass over the first draft.
	Critique bool `yaml:"critique"`
	// Tools lets the model call web search, page scrape and CRM lookups.
	Tools          bool `yaml:"tools"`
	MaxToolTurns   int  `yaml:"max_tool_turns"`
	TimeoutMinutes int  `yaml:"timeout_minutes"`
}

// Timeout returns the whole-operation deadline for one generation.
func (c ReasoningConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// CollectorConfig controls chat history collection.
type CollectorConfig struct {
	LookbackDays   int `yaml:"lookback_days"`
	MaxMessages    int `yaml:"max_messages"`
	MaxPages       int `yaml:"max_pages"`
	MaxThreads     int `yaml:"max_threads"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// NameCacheTTLMinutes expires resolved user names; 0 keeps them for
	// the life of the process.
	NameCacheTTLMinutes int `yaml:"name_cache_ttl_minutes"`
}

// Timeout returns the deadline for one collection.
func (c CollectorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NameCacheTTL returns the user-name cache lifetime.
func (c CollectorConfig) NameCacheTTL() time.Duration {
	return time.Duration(c.NameCacheTTLMinutes) * time.Minute
}

// Load reads configuration from a YAML file. ${VAR} references are
// expanded from the environment before parsing, and unset fields keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	cfg := &Config{
		Listen: ListenConfig{Port: 5000},
		Slack: SlackConfig{
			ChannelPrefixes: []string{"bd-", "internal-"},
		},
		Reasoning: ReasoningConfig{
			Model:          "o3",
			Effort:         "high",
			MaxToolTurns:   5,
			TimeoutMinutes: 4,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Slack.BaseURL == "" {
		c.Slack.BaseURL = "https://slack.com/api"
	}
	if c.HubSpot.BaseURL == "" {
		c.HubSpot.BaseURL = "https://api.hubapi.com"
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.Reasoning.MaxOutputTokens <= 0 {
		c.Reasoning.MaxOutputTokens = 3000
	}
	if c.Reasoning.MaxToolTurns <= 0 {
		c.Reasoning.MaxToolTurns = 5
	}
	if c.Reasoning.TimeoutMinutes <= 0 {
		c.Reasoning.TimeoutMinutes = 4
	}
	if c.Collector.LookbackDays <= 0 {
		c.Collector.LookbackDays = 14
	}
	if c.Collector.MaxMessages <= 0 {
		c.Collector.MaxMessages = 300
	}
	if c.Collector.MaxPages <= 0 {
		c.Collector.MaxPages = 10
	}
	if c.Collector.MaxThreads <= 0 {
		c.Collector.MaxThreads = 20
	}
	if c.Collector.TimeoutSeconds <= 0 {
		c.Collector.TimeoutSeconds = 60
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
}

// ApplyEnv overlays the environment variables the service has always
// honored. Values already set from a file win.
func (c *Config) ApplyEnv(getenv func(string) string) {
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				return v
			}
		}
		return ""
	}
	fill := func(dst *string, keys ...string) {
		if *dst == "" {
			*dst = first(keys...)
		}
	}

	fill(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	fill(&c.Slack.Token, "SLACK_USER_TOKEN", "SLACK_BOT_TOKEN", "SLACK_TOKEN")
	fill(&c.HubSpot.Token, "HUBSPOT_TOKEN", "HUBSPOT_PRIVATE_APP_TOKEN")
	fill(&c.Search.Brave.APIKey, "BRAVE_API_KEY")
	fill(&c.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	fill(&c.Gemini.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	if p, err := strconv.Atoi(first("PORT")); err == nil && p > 0 {
		c.Listen.Port = p
	}
}

// Validate checks values that would otherwise fail deep inside a request.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q (valid: text, json)", c.LogFormat)
	}
	if _, err := ParseEffort(c.Reasoning.Effort); err != nil {
		return err
	}
	if c.Listen.Port <= 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}
	return nil
}

// ParseEffort normalizes a reasoning effort value. Empty means medium.
func ParseEffort(s string) (string, error) {
	switch e := strings.ToLower(strings.TrimSpace(s)); e {
	case "":
		return "medium", nil
	case "low", "medium", "high":
		return e, nil
	default:
		return "", fmt.Errorf("unknown reasoning effort %q (valid: low, medium, high)", s)
	}
}
