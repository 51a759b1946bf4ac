// Package config handles voicebridge configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/voicebridge/config.yaml,
// /etc/voicebridge/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "voicebridge", "config.yaml"))
	}

	paths = append(paths, "/etc/voicebridge/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
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

// Config holds all voicebridge configuration.
type Config struct {
	Listen        ListenConfig        `yaml:"listen"`
	Conversation  ConversationConfig  `yaml:"conversation"`
	LLM           LLMConfig           `yaml:"llm"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Search        SearchConfig        `yaml:"search"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	DataDir       string              `yaml:"data_dir"`
	LogLevel      string              `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// ConversationConfig defines the conversation loop behavior.
type ConversationConfig struct {
	// SystemPrompt overrides the built-in system prompt when non-empty.
	SystemPrompt string `yaml:"system_prompt"`
	// MaxToolIterations bounds the generate/route cycle per request.
	MaxToolIterations int `yaml:"max_tool_iterations"`
	// SessionTimeoutSec is the idle time after which the session is
	// retired and facts are extracted from it. Valid range 1-600.
	SessionTimeoutSec int `yaml:"session_timeout_sec"`
	// ContinueMarker is the literal the model emits to request that the
	// voice pipeline keep listening.
	ContinueMarker string `yaml:"continue_marker"`
	// AutoContinue keeps the microphone open after every response
	// instead of relying on the marker.
	AutoContinue bool `yaml:"auto_continue"`
	// Streaming enables streamed responses on the API.
	Streaming bool `yaml:"streaming"`
	// FactLearning exposes the learn_fact/query_facts tools and enables
	// session fact extraction.
	FactLearning bool `yaml:"fact_learning"`
	// Music exposes the Music Assistant tool set.
	Music bool `yaml:"music"`
}

// LLMConfig defines the Groq (OpenAI-compatible) provider settings.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"` // Default: https://api.groq.com/openai/v1
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSec  int     `yaml:"timeout_sec"` // Per-request deadline (default 30)
}

// Timeout returns the per-request LLM deadline.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// HomeAssistantConfig defines HA connection settings.
type HomeAssistantConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// SearchConfig defines the Tavily web search settings.
type SearchConfig struct {
	TavilyAPIKey string `yaml:"tavily_api_key"`
}

// MQTTConfig defines the optional response announcer settings.
type MQTTConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Broker          string `yaml:"broker"` // e.g. mqtt://broker:1883
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	DeviceName      string `yaml:"device_name"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Conversation: ConversationConfig{
			MaxToolIterations: 5,
			SessionTimeoutSec: 60,
			ContinueMarker:    "[CONTINUE_LISTENING]",
			Streaming:         true,
			FactLearning:      true,
			Music:             true,
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.7,
			MaxTokens:   1024,
			TimeoutSec:  30,
		},
		MQTT: MQTTConfig{
			DeviceName:      "voicebridge",
			DiscoveryPrefix: "homeassistant",
		},
		DataDir: ".",
	}
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	if c.Conversation.MaxToolIterations < 1 {
		return fmt.Errorf("conversation.max_tool_iterations must be >= 1, got %d", c.Conversation.MaxToolIterations)
	}
	if c.Conversation.SessionTimeoutSec < 1 || c.Conversation.SessionTimeoutSec > 600 {
		return fmt.Errorf("conversation.session_timeout_sec must be 1-600, got %d", c.Conversation.SessionTimeoutSec)
	}
	if c.Conversation.ContinueMarker == "" {
		return fmt.Errorf("conversation.continue_marker must not be empty")
	}
	if c.LLM.TimeoutSec < 1 {
		return fmt.Errorf("llm.timeout_sec must be >= 1, got %d", c.LLM.TimeoutSec)
	}
	return nil
}

// SessionTimeout returns the idle session lifetime.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Conversation.SessionTimeoutSec) * time.Second
}
