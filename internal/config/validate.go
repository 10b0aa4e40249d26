package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultDailyAt       = "06:00"
	DefaultDailyTimezone = "Asia/Dhaka"
)

// Validate checks values that would otherwise fail later at startup or on reload.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required (or set TELEGRAM_TOKEN)"))
	}
	if cfg.Telegram.Workers < 0 {
		errs = append(errs, errors.New("telegram.workers must be >= 0"))
	}
	if cfg.Storage.Capacity < 0 {
		errs = append(errs, errors.New("storage.capacity must be >= 0"))
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unsupported %q", cfg.Storage.Driver))
	}

	durations := [][2]string{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"telegram.command_timeout", cfg.Telegram.CommandTimeout},
		{"storage.busy_timeout", cfg.Storage.BusyTimeout},
		{"quote_source.timeout", cfg.QuoteSource.Timeout},
		{"quote_source.cooldown", cfg.QuoteSource.Cooldown},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d[0], d[1]); err != nil {
			errs = append(errs, err)
		}
	}

	if cfg.Daily.Enabled {
		if _, _, err := ParseClock("daily.at", orDefault(cfg.Daily.At, DefaultDailyAt)); err != nil {
			errs = append(errs, err)
		}
		if _, err := time.LoadLocation(orDefault(cfg.Daily.Timezone, DefaultDailyTimezone)); err != nil {
			errs = append(errs, fmt.Errorf("daily.timezone: %w", err))
		}
	}
	return errors.Join(errs...)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
