package config

// Config is the on-disk configuration (JSON or YAML). Durations are Go
// duration strings such as "5s" or "1m".
type Config struct {
	Telegram    TelegramConfig    `json:"telegram"`
	Logging     LoggingConfig     `json:"logging"`
	Storage     StorageConfig     `json:"storage"`
	QuoteSource QuoteSourceConfig `json:"quote_source"`
	Quotes      QuotesConfig      `json:"quotes"`
	Daily       DailyConfig       `json:"daily"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is the long-poll timeout (default "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// Workers bounds concurrent command handlers (default: NumCPU, max 8).
	Workers int `json:"workers,omitempty"`
	// CommandTimeout caps a single command handler (default "30s").
	CommandTimeout string `json:"command_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the quote database.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./quotes.db", "capacity": 10 }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
	// Capacity is the per-category quote limit. It is read once at startup.
	Capacity int `json:"capacity,omitempty"`
}

// QuoteSourceConfig configures the remote quote API. The key is usually
// supplied through API_NINJA_KEY rather than the file.
type QuoteSourceConfig struct {
	BaseURL    string `json:"base_url,omitempty"`
	Category   string `json:"category,omitempty"`
	APIKey     string `json:"api_key,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
	Cooldown   string `json:"cooldown,omitempty"`
	RatePerMin int    `json:"rate_per_min,omitempty"`
}

type QuotesConfig struct {
	// DefaultCategory is used by /addquote and "Save" when no category is given.
	DefaultCategory string `json:"default_category,omitempty"`
	// SeedCategories are registered at startup. Unset means the built-in list;
	// an explicit [] registers none.
	SeedCategories []string `json:"seed_categories,omitempty"`
}

// DailyConfig controls the once-a-day broadcast to subscribed chats.
type DailyConfig struct {
	Enabled    bool   `json:"enabled"`
	At         string `json:"at,omitempty"`       // "HH:MM", default "06:00"
	Timezone   string `json:"timezone,omitempty"` // IANA name, default "Asia/Dhaka"
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}
