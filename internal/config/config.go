package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned by RequireAPIKey when no OpenRouter key was
// found in the environment or the platform secret store.
var ErrMissingAPIKey = errors.New("missing required config: OpenRouter API key")

type Config struct {
	Server       ServerConfig
	Storage      StorageConfig
	Proxy        ProxyConfig
	Log          LogConfig
	User         UserConfig
	Conversation ConversationConfig
	Dialogue     DialogueConfig
	Preferences  PreferencesConfig
	Jobs         JobsConfig
}

type ServerConfig struct {
	Port int
	// MCPStdio serves the MCP tools over stdin/stdout alongside HTTP.
	MCPStdio       bool
	AllowedOrigins []string
}

type StorageConfig struct {
	DataDir string
}

type ProxyConfig struct {
	OpenRouterAPIKey string
	BaseURL          string
	Model            string
}

type LogConfig struct {
	Level string
}

// UserConfig names the local user for the CLI and the MCP resources.
type UserConfig struct {
	ID string
}

type ConversationConfig struct {
	MaxTokens int
}

type DialogueConfig struct {
	// WeightUnitThreshold: bare weights at or above it are read as pounds.
	WeightUnitThreshold float64
}

type PreferencesConfig struct {
	// TriggersFile optionally extends the built-in trigger keywords.
	TriggersFile string
}

type JobsConfig struct {
	PollInterval time.Duration
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           4100,
			AllowedOrigins: []string{"http://localhost:*"},
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Proxy: ProxyConfig{
			BaseURL: "https://openrouter.ai/api/v1",
			Model:   "openai/gpt-4o-mini",
		},
		Log: LogConfig{
			Level: "info",
		},
		User: UserConfig{
			ID: "local",
		},
		Conversation: ConversationConfig{
			MaxTokens: 4000,
		},
		Dialogue: DialogueConfig{
			WeightUnitThreshold: 200,
		},
		Jobs: JobsConfig{
			PollInterval: 500 * time.Millisecond,
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.preppal.app) and the
// OpenRouter key falls back to the macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/preppal/config.json
// and secrets live in $XDG_DATA_HOME/preppal/secrets.json.
//
// Environment variables (PREPPAL_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), NewKeychain())
}

func loadWith(b ConfigBackend, kc Keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Proxy.OpenRouterAPIKey == "" {
		if key, err := kc.Get(keychainService, openRouterAccount); err == nil && key != "" {
			cfg.Proxy.OpenRouterAPIKey = strings.TrimSpace(key)
		}
	}

	return cfg, nil
}

// RequireAPIKey reports a helpful error when the LLM cannot be reached for
// lack of credentials. Local-only commands do not call it.
func (c Config) RequireAPIKey() error {
	if c.Proxy.OpenRouterAPIKey != "" {
		return nil
	}
	return fmt.Errorf("%w. Set it via environment variable PREPPAL_OPENROUTER_API_KEY%s", ErrMissingAPIKey, apiKeyHint())
}
