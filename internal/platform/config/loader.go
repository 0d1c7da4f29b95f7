package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from an optional yaml file, layering
// environment overrides on top of the defaults.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader reading the default config path.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		path:      "config.yaml",
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the configuration file path (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load builds the effective configuration: defaults, then yaml file if it
// exists, then environment variables.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			// .env is optional; fall through to process environment.
			fmt.Println("no .env file found, using system environment")
		}
	}

	cfg := DefaultConfig()
	path := "defaults"

	if data, err := os.ReadFile(l.path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", l.path, err)
		}
		path = l.path
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", l.path, err)
	}

	applyEnvOverrides(cfg)
	normalize(cfg)

	return &Result{
		Config: cfg,
		Path:   path,
	}, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOICEGATE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("VOICEGATE_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("VOICEGATE_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("VOICEGATE_ADVISORY_URL"); v != "" {
		cfg.Advisory.HTTP.URL = v
	}
	if v := os.Getenv("VOICEGATE_ADVISORY_API_KEY"); v != "" {
		cfg.Advisory.HTTP.APIKey = v
		cfg.Advisory.OpenAI.APIKey = v
	}
	if v := os.Getenv("VOICEGATE_ADVISORY_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Advisory.Enabled = enabled
		}
	}
	if v := os.Getenv("VOICEGATE_REDIS_ADDR"); v != "" {
		cfg.Binding.Store.Redis.Addr = v
	}
	if v := os.Getenv("VOICEGATE_REDIS_PASSWORD"); v != "" {
		cfg.Binding.Store.Redis.Password = v
	}
}

// normalize clamps tuning values back into their documented ranges.
func normalize(cfg *Config) {
	if cfg.Auth.BaselineThreshold <= 0 || cfg.Auth.BaselineThreshold > 1 {
		cfg.Auth.BaselineThreshold = 0.75
	}
	if cfg.Auth.AbsoluteFloor <= 0 || cfg.Auth.AbsoluteFloor > 1 {
		cfg.Auth.AbsoluteFloor = 0.60
	}
	if cfg.Auth.AdvisoryBand < 0 || cfg.Auth.AdvisoryBand > 0.2 {
		cfg.Auth.AdvisoryBand = 0.05
	}
	if cfg.Advisory.Timeout <= 0 {
		cfg.Advisory.Timeout = 5 * time.Second
	}
	if cfg.Auth.SessionTTL <= 0 {
		cfg.Auth.SessionTTL = 24 * time.Hour
	}
	if cfg.Binding.Store.Type == "" {
		cfg.Binding.Store.Type = "sqlite"
	}
}
