package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIKey        string `yaml:"api_key"`
	BaseURL       string `yaml:"base_url"`
	Model         string `yaml:"model"`
	MaxTokens     int    `yaml:"max_tokens"`
	StoreBackend  string `yaml:"store"` // sqlite|file
	Permissions   string `yaml:"permissions"`
	Notifications bool   `yaml:"notifications"`
}

func DefaultConfig() Config {
	return Config{
		BaseURL:       "https://api.anthropic.com/v1/messages",
		Model:         "claude-sonnet-4-20250514",
		MaxTokens:     8192,
		StoreBackend:  "sqlite",
		Permissions:   PermissionsPrompt,
		Notifications: true,
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = DefaultConfigPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	// Environment overrides beat the file.
	if v := strings.TrimSpace(os.Getenv("ADESK_API_KEY")); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("ADESK_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ADESK_MODEL")); v != "" {
		cfg.Model = v
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultConfig().BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultConfig().MaxTokens
	}
	if cfg.StoreBackend != "file" {
		cfg.StoreBackend = "sqlite"
	}
	cfg.Permissions = NormalizePermissionsMode(cfg.Permissions)
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if path == "" {
		return errors.New("no path provided for config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "agent-desk", "config.yml")
}

// OpenStore builds the configured session store, falling back to the file
// store when sqlite cannot be opened.
func OpenStore(cfg Config, logger *Logger) SessionStore {
	if cfg.StoreBackend == "file" {
		return NewFileSessionStore("")
	}
	st, err := NewSQLiteSessionStore("")
	if err != nil {
		logger.Warn("sqlite store unavailable, falling back to file store", map[string]interface{}{
			"error": err.Error(),
		})
		return NewFileSessionStore("")
	}
	return st
}
