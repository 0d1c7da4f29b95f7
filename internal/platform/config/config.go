package config

import (
	"time"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Web      WebConfig      `yaml:"web"`
	Auth     AuthConfig     `yaml:"auth"`
	Advisory AdvisoryConfig `yaml:"advisory"`
	Binding  BindingConfig  `yaml:"binding"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

type WebConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// AuthConfig tunes the voice authentication decision pipeline.
type AuthConfig struct {
	BaselineThreshold float64       `yaml:"baseline_threshold"`
	AbsoluteFloor     float64       `yaml:"absolute_floor"`
	AdvisoryBand      float64       `yaml:"advisory_band"`
	JWTSecret         string        `yaml:"jwt_secret"`
	SessionTTL        time.Duration `yaml:"session_ttl"`
	DriftCorrection   bool          `yaml:"drift_correction"`
}

// AdvisoryConfig controls the external risk assessor.
type AdvisoryConfig struct {
	Enabled bool          `yaml:"enabled"`
	Driver  string        `yaml:"driver"` // "http" or "openai"
	Timeout time.Duration `yaml:"timeout"`
	HTTP    AdvisoryHTTP  `yaml:"http,omitempty"`
	OpenAI  AdvisoryLLM   `yaml:"openai,omitempty"`
}

type AdvisoryHTTP struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key,omitempty"`
}

type AdvisoryLLM struct {
	BaseURL   string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	ModelName string `yaml:"model_name"`
}

// BindingConfig selects the device binding store backend.
type BindingConfig struct {
	Store StoreConfig `yaml:"store"`
}

type StoreConfig struct {
	Type   string             `yaml:"type"`
	SQLite BindingSQLiteStore `yaml:"sqlite,omitempty"`
	Redis  BindingRedisStore  `yaml:"redis,omitempty"`
}

type BindingSQLiteStore struct {
	DSN string `yaml:"dsn,omitempty"`
}

type BindingRedisStore struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}
