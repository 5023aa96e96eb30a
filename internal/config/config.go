package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config is everything the engine takes from the outside. The API key is an
// explicit value handed to the catalog client at construction, never ambient
// process state.
type Config struct {
	// APIKey unlocks the member-only endpoints. Optional; every anonymous
	// read path works without it.
	APIKey string `mapstructure:"api_key"`

	// BaseURL is the catalog API root, DownloadURL the site root the
	// download route hangs off.
	BaseURL     string `mapstructure:"base_url"`
	DownloadURL string `mapstructure:"download_url"`

	// Network behavior of the catalog client.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RetryCount     int           `mapstructure:"retry_count"`
	RetryWait      time.Duration `mapstructure:"retry_wait"`

	// Check behavior.
	CheckPolicy      string `mapstructure:"check_policy"`
	CheckConcurrency int    `mapstructure:"check_concurrency"`
}

// Dir returns the config directory, honoring XDG_CONFIG_HOME.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "oremon")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "oremon"
	}
	return filepath.Join(home, ".config", "oremon")
}

// Load reads the optional config file and applies defaults. path overrides
// the default location when non-empty; a missing file is not an error, a
// malformed one is.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("base_url", "https://ore.spongepowered.org/api/v2")
	v.SetDefault("download_url", "https://ore.spongepowered.org")
	v.SetDefault("connect_timeout", 10*time.Second)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("retry_count", 3)
	v.SetDefault("retry_wait", 500*time.Millisecond)
	v.SetDefault("check_policy", "promoted")
	v.SetDefault("check_concurrency", 4)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
