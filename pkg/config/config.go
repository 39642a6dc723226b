package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigPath = "config.yaml"

	defaultUserAgent      = "vidhost/1.0"
	defaultTimeoutSecs    = 120
	defaultMaxRetries     = 3
	defaultInitialDelayMS = 500
	defaultMaxDelaySecs   = 5
	defaultRequestsPerSec = 4.0
	defaultBurst          = 4

	defaultStreamableRegion  = "us-east-1"
	defaultStreamableVersion = "5a6120a04b6db864113d706cc6a6131cb8ca3587"
	defaultImgurClientID     = "546c25a59c58ad7"
	defaultGfyCatAccessKey   = "Anr96uuqt9EdamSCwK4txKPjMsf2M95Rfa5FLLhPFucu8H5HTzeutyAa"
)

type Config struct {
	// Env-only overrides for the anonymous web credentials baked into the
	// platform frontends. The defaults are the public ones.
	ImgurClientID   string
	GfyCatAccessKey string

	HTTP       HTTPConfig       `yaml:"http"`
	Streamable StreamableConfig `yaml:"streamable"`
	Upload     UploadConfig     `yaml:"upload"`
}

type HTTPConfig struct {
	UserAgent      string  `yaml:"user_agent"`
	TimeoutSecs    int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
	InitialDelayMS int     `yaml:"initial_delay_ms"`
	MaxDelaySecs   int     `yaml:"max_delay_seconds"`
	RequestsPerSec float64 `yaml:"requests_per_second"`
	Burst          int     `yaml:"burst"`
}

type StreamableConfig struct {
	UploadRegion    string `yaml:"upload_region"`
	FrontendVersion string `yaml:"frontend_version"`
}

// UploadConfig zero values map to the platform defaults: audio kept,
// posts private.
type UploadConfig struct {
	DefaultTitle string `yaml:"default_title"`
	MuteAudio    bool   `yaml:"mute_audio"`
	Public       bool   `yaml:"public"`
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		ImgurClientID:   getEnvOrDefault("IMGUR_CLIENT_ID", defaultImgurClientID),
		GfyCatAccessKey: getEnvOrDefault("GFYCAT_ACCESS_KEY", defaultGfyCatAccessKey),
	}

	loadYAMLConfig(cfg)
	applyDefaults(cfg)

	return cfg
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSecs) * time.Second
}

func (c *Config) InitialRetryDelay() time.Duration {
	return time.Duration(c.HTTP.InitialDelayMS) * time.Millisecond
}

func (c *Config) MaxRetryDelay() time.Duration {
	return time.Duration(c.HTTP.MaxDelaySecs) * time.Second
}

func loadYAMLConfig(cfg *Config) {
	data, err := os.ReadFile(defaultConfigPath)
	if err != nil {
		slog.Debug("No config.yaml found, using defaults")
		return
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Error("Failed to parse config.yaml", "error", err)
	}
}

func applyDefaults(cfg *Config) {
	applyHTTPDefaults(cfg)
	applyStreamableDefaults(cfg)
}

func applyHTTPDefaults(cfg *Config) {
	if cfg.HTTP.UserAgent == "" {
		cfg.HTTP.UserAgent = defaultUserAgent
	}
	if cfg.HTTP.TimeoutSecs == 0 {
		cfg.HTTP.TimeoutSecs = defaultTimeoutSecs
	}
	if cfg.HTTP.MaxRetries == 0 {
		cfg.HTTP.MaxRetries = defaultMaxRetries
	}
	if cfg.HTTP.InitialDelayMS == 0 {
		cfg.HTTP.InitialDelayMS = defaultInitialDelayMS
	}
	if cfg.HTTP.MaxDelaySecs == 0 {
		cfg.HTTP.MaxDelaySecs = defaultMaxDelaySecs
	}
	if cfg.HTTP.RequestsPerSec == 0 {
		cfg.HTTP.RequestsPerSec = defaultRequestsPerSec
	}
	if cfg.HTTP.Burst == 0 {
		cfg.HTTP.Burst = defaultBurst
	}
}

func applyStreamableDefaults(cfg *Config) {
	if cfg.Streamable.UploadRegion == "" {
		cfg.Streamable.UploadRegion = defaultStreamableRegion
	}
	if cfg.Streamable.FrontendVersion == "" {
		cfg.Streamable.FrontendVersion = defaultStreamableVersion
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
