package app

import (
	"fmt"
	"strings"
	"time"

	"quotebot/internal/config"
	"quotebot/internal/quotesource"
	"quotebot/internal/storage"
	"quotebot/internal/transport/telegram/router"
	logx "quotebot/pkg/logx"
)

// DefaultDatabaseFile is used when neither storage.path nor DATABASE_FILE is set.
const DefaultDatabaseFile = "quotes.db"

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg == nil {
		return storage.Config{Driver: "sqlite", Path: DefaultDatabaseFile}, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "":
		driver = "sqlite"
	case "sqlite", "sqlite3":
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
	path := strings.TrimSpace(sc.Path)
	if path == "" {
		path = DefaultDatabaseFile
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	if sc.Capacity < 0 {
		return storage.Config{}, fmt.Errorf("storage.capacity must be >= 0")
	}
	return storage.Config{Driver: driver, Path: path, BusyTimeout: busy, Capacity: sc.Capacity}, nil
}

func mapSourceConfig(cfg *config.Config) (quotesource.Config, error) {
	if cfg == nil {
		return quotesource.Config{}, nil
	}
	qs := cfg.QuoteSource
	timeout, err := config.ParseDurationField("quote_source.timeout", qs.Timeout)
	if err != nil {
		return quotesource.Config{}, err
	}
	cooldown, err := config.ParseDurationField("quote_source.cooldown", qs.Cooldown)
	if err != nil {
		return quotesource.Config{}, err
	}
	return quotesource.Config{
		BaseURL:    strings.TrimSpace(qs.BaseURL),
		Category:   strings.TrimSpace(qs.Category),
		APIKey:     strings.TrimSpace(qs.APIKey),
		Timeout:    timeout,
		Cooldown:   cooldown,
		RatePerMin: qs.RatePerMin,
	}, nil
}

func mapLogging(cfg *config.Config) logx.Config {
	if cfg == nil {
		return logx.Config{Level: "INFO", Console: true}
	}
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		File: logx.FileConfig{
			Enabled:    lc.File.Enabled,
			Path:       lc.File.Path,
			MaxSizeMB:  lc.File.MaxSizeMB,
			MaxBackups: lc.File.MaxBackups,
			MaxAgeDays: lc.File.MaxAgeDays,
			Compress:   lc.File.Compress,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    lc.Telegram.Enabled,
			ChatID:     lc.Telegram.ChatID,
			ThreadID:   lc.Telegram.ThreadID,
			MinLevel:   lc.Telegram.MinLevel,
			RatePerSec: lc.Telegram.RatePerSec,
		},
	}
}

func mapRouterOptions(cfg *config.Config, botUsername string) (router.Options, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.command_timeout", cfg.Telegram.CommandTimeout, 30*time.Second)
	if err != nil {
		return router.Options{}, err
	}
	return router.Options{
		Owners:         cfg.Telegram.OwnerUserIDs,
		BotUsername:    botUsername,
		Workers:        cfg.Telegram.Workers,
		DefaultTimeout: timeout,
	}, nil
}

// OpenStore opens the quote database described by cfg. The caller owns the
// returned Store and must Close it.
func OpenStore(cfg *config.Config, log logx.Logger, opts ...storage.Option) (*storage.Store, error) {
	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, log, opts...)
	if err != nil {
		return nil, fmt.Errorf("open storage %s: %w", sc.Path, err)
	}
	return st, nil
}
