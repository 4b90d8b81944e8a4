package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	TelegramToken string `env:"TELEGRAM_BOT_TOKEN"`
	GeminiAPIKey  string `env:"GEMINI_API_KEY"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Debug    bool   `env:"DEBUG" envDefault:"false"`

	PreferIPv4 bool `env:"PREFER_IPV4" envDefault:"true"`

	MaxConcurrent         int    `env:"MAX_CONCURRENT" envDefault:"4"`
	RequestTimeoutSeconds int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"300"`
	HTTPTimeoutSeconds    int    `env:"HTTP_TIMEOUT_SECONDS" envDefault:"180"`
	GeminiBaseURL         string `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
	GeminiAPIVersion      string `env:"GEMINI_API_VERSION" envDefault:"v1beta"`

	AnalysisModel      string `env:"ANALYSIS_MODEL" envDefault:"gemini-3-flash-preview"`
	ImageModel         string `env:"IMAGE_MODEL" envDefault:"gemini-2.5-flash-image"`
	AspectRatio        string `env:"ASPECT_RATIO" envDefault:"3:4"`
	ParallelVariations bool   `env:"PARALLEL_VARIATIONS" envDefault:"false"`

	DownloadIntervalMS int    `env:"DOWNLOAD_INTERVAL_MS" envDefault:"500"`
	OutputDir          string `env:"LOOKBOOK_OUTPUT_DIR"`

	WebAddr           string `env:"WEB_ADDR" envDefault:":8080"`
	MaxUploadBytes    int64  `env:"MAX_UPLOAD_BYTES" envDefault:"26214400"`
	MaxImageEdge      int    `env:"MAX_IMAGE_EDGE" envDefault:"2048"`
	SessionTTLMinutes int    `env:"SESSION_TTL_MINUTES" envDefault:"120"`
}

// Load reads the process environment. A .env file, if any, must already be
// loaded by the caller.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.GeminiAPIKey = strings.TrimSpace(cfg.GeminiAPIKey)
	cfg.GeminiBaseURL = strings.TrimSpace(cfg.GeminiBaseURL)
	cfg.GeminiAPIVersion = strings.TrimSpace(cfg.GeminiAPIVersion)
	cfg.OutputDir = strings.TrimSpace(cfg.OutputDir)

	if cfg.GeminiAPIKey == "" {
		return Config{}, errors.New("GEMINI_API_KEY is required")
	}

	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.RequestTimeoutSeconds <= 0 {
		cfg.RequestTimeoutSeconds = 300
	}
	if cfg.HTTPTimeoutSeconds <= 0 {
		cfg.HTTPTimeoutSeconds = 180
	}
	if cfg.DownloadIntervalMS < 0 {
		cfg.DownloadIntervalMS = 500
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 25 << 20
	}
	if cfg.MaxImageEdge < 0 {
		cfg.MaxImageEdge = 0
	}
	if cfg.SessionTTLMinutes <= 0 {
		cfg.SessionTTLMinutes = 120
	}
	if strings.TrimSpace(cfg.AspectRatio) == "" {
		cfg.AspectRatio = "3:4"
	}

	return cfg, nil
}

// RequireTelegram is used by the bot binary only.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c Config) DownloadInterval() time.Duration {
	return time.Duration(c.DownloadIntervalMS) * time.Millisecond
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}
