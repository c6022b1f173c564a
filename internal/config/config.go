// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	BackendURL        string        `env:"PR_STATS_BACKEND_URL"   env-description:"Stats backend base URL"                 env-default:"http://localhost:8081"`
	Username          string        `env:"BITBUCKET_USERNAME"     env-description:"Username passed to the stats backend"`
	AppPassword       string        `env:"BITBUCKET_APP_PASSWORD" env-description:"App password passed to the stats backend"`
	GitHubToken       string        `env:"GITHUB_TOKEN"           env-description:"Token for the github source"`
	SettingsPath      string        `env:"PR_STATS_SETTINGS"      env-description:"Settings file path"`
	CacheDir          string        `env:"PR_STATS_CACHE_DIR"     env-description:"Directory holding cached payloads"`
	RequestsPerSecond float64       `env:"PR_STATS_RPS"           env-description:"Backend request rate, 0 for unlimited"  env-default:"5"`
	CacheTTL          time.Duration `env:"PR_STATS_CACHE_TTL"     env-description:"How long fetched payloads are reused"   env-default:"30m"`
}

// Load reads an optional .env file from the working directory, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if cfg.SettingsPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate config directory: %w", err)
		}
		cfg.SettingsPath = filepath.Join(dir, "pr-stats", "settings.yaml")
	}
	if cfg.CacheDir == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate cache directory: %w", err)
		}
		cfg.CacheDir = filepath.Join(dir, "pr-stats")
	}
	return &cfg, nil
}

// Usage describes every environment variable.
func Usage() string {
	var cfg Config
	desc, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return desc
}
