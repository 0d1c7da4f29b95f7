package config

import "time"

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8000,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Auth: AuthConfig{
			BaselineThreshold: 0.75,
			AbsoluteFloor:     0.60,
			AdvisoryBand:      0.05,
			JWTSecret:         "",
			SessionTTL:        24 * time.Hour,
		},
		Advisory: AdvisoryConfig{
			Enabled: true,
			Driver:  "http",
			Timeout: 5 * time.Second,
			HTTP: AdvisoryHTTP{
				URL: "http://127.0.0.1:9300/api/risk/assess",
			},
			OpenAI: AdvisoryLLM{
				ModelName: "gpt-4o-mini",
			},
		},
		Binding: BindingConfig{
			Store: StoreConfig{
				Type: "sqlite",
			},
		},
	}
}
