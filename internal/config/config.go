package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	AI      AIConfig      `yaml:"ai"`
	Sync    SyncConfig    `yaml:"sync"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend string `yaml:"backend"` // "json" | "sqlite"
}

// AIConfig configures the enrichment provider.
type AIConfig struct {
	Provider       string `yaml:"provider"` // "anthropic" | "gemini"
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the provider request timeout.
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SyncConfig configures the cross-instance sync channel.
type SyncConfig struct {
	Backend   string `yaml:"backend"` // "memory" | "redis"
	RedisAddr string `yaml:"redis_addr"`
}

// AuthConfig configures identity credential handling.
type AuthConfig struct {
	ClientID string `yaml:"client_id"`
	JWKSURL  string `yaml:"jwks_url"`
	// InsecureSkipVerify accepts credential payloads without signature
	// verification. Off unless explicitly enabled.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `yaml:"level"` // "debug" | "info" | "warn" | "error"
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Storage: StorageConfig{Backend: "json"},
		AI: AIConfig{
			Provider:       "anthropic",
			TimeoutSeconds: 30,
		},
		Sync: SyncConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
		},
		Auth: AuthConfig{
			JWKSURL: "https://www.googleapis.com/oauth2/v3/certs",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads config from the YAML file.
// Creates the file with defaults if it doesn't exist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			// Non-fatal: return defaults even if the save fails
			_ = Save(path, &cfg)
			return &cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes config to the YAML file, creating the directory if needed.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// applyDefaults fills in zero values for fields missing from the file.
func applyDefaults(cfg *Config) {
	defaults := Default()
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}
	if cfg.AI.Provider == "" {
		cfg.AI.Provider = defaults.AI.Provider
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = defaults.AI.TimeoutSeconds
	}
	if cfg.Sync.Backend == "" {
		cfg.Sync.Backend = defaults.Sync.Backend
	}
	if cfg.Sync.RedisAddr == "" {
		cfg.Sync.RedisAddr = defaults.Sync.RedisAddr
	}
	if cfg.Auth.JWKSURL == "" {
		cfg.Auth.JWKSURL = defaults.Auth.JWKSURL
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
}

// DefaultDir returns the config directory: ~/.config/smartmarks
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "smartmarks"), nil
}

// DefaultPath returns the default config path: ~/.config/smartmarks/config.yaml
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
