package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIKey   string        `yaml:"api_key,omitempty"`
	BaseURL  string        `yaml:"base_url,omitempty"`
	Timeouts TimeoutConfig `yaml:"timeouts,omitempty"`
}

// TimeoutConfig values are time.ParseDuration strings such as "30s" or "1h".
type TimeoutConfig struct {
	HTTP        string `yaml:"http,omitempty"`         // default: 5m
	Wait        string `yaml:"wait,omitempty"`         // create --wait, default: 60m
	StatusWatch string `yaml:"status_watch,omitempty"` // status --watch, default: 60m
}

const (
	DefaultBaseURL = "https://clip.cheap"

	EnvAPIKey  = "CLP_API_KEY"
	EnvBaseURL = "CLP_BASE_URL"

	DefaultHTTPTimeout        = 5 * time.Minute
	DefaultWaitTimeout        = 60 * time.Minute
	DefaultStatusWatchTimeout = 60 * time.Minute
)

func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "clp"), nil
}

func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config file, if any, then applies environment overrides.
func Load() (*Config, error) {
	cfg := &Config{BaseURL: DefaultBaseURL}

	path, err := Path()
	if err == nil {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if envKey := os.Getenv(EnvAPIKey); envKey != "" {
		cfg.APIKey = envKey
	}
	if envURL := os.Getenv(EnvBaseURL); envURL != "" {
		cfg.BaseURL = envURL
	}

	return cfg, nil
}

func (c *Config) Save() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	path, err := Path()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) IsAuthenticated() bool {
	return c.APIKey != ""
}

func (c *Config) SetAPIKey(key string) error {
	c.APIKey = key
	return c.Save()
}

func (c *Config) ClearAuth() error {
	c.APIKey = ""
	return c.Save()
}

// GetTimeout returns the configured timeout for name ("http", "wait" or
// "status_watch"), falling back to the default when unset or invalid.
func (c *Config) GetTimeout(name string) time.Duration {
	var configValue string
	var defaultValue time.Duration

	switch name {
	case "http":
		configValue, defaultValue = c.Timeouts.HTTP, DefaultHTTPTimeout
	case "wait":
		configValue, defaultValue = c.Timeouts.Wait, DefaultWaitTimeout
	case "status_watch":
		configValue, defaultValue = c.Timeouts.StatusWatch, DefaultStatusWatchTimeout
	default:
		return DefaultHTTPTimeout
	}

	if configValue == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(configValue)
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}
