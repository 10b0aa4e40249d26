package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides are environment variables that take precedence over the file.
type envOverrides struct {
	TelegramToken string `env:"TELEGRAM_TOKEN"`
	APIKey        string `env:"API_NINJA_KEY"`
	DatabaseFile  string `env:"DATABASE_FILE"`
	LogLevel      string `env:"QUOTEBOT_LOG_LEVEL"`
}

// ApplyEnv overlays environment overrides onto cfg.
func ApplyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if v := strings.TrimSpace(o.TelegramToken); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(o.APIKey); v != "" {
		cfg.QuoteSource.APIKey = v
	}
	if v := strings.TrimSpace(o.DatabaseFile); v != "" {
		cfg.Storage.Path = v
	}
	if v := strings.TrimSpace(o.LogLevel); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}
