package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  owner_user_ids: [42]
  poll_timeout: 15s
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
  telegram:
    enabled: false
    chat_id: 0
    thread_id: 0
    min_level: warn
    rate_per_sec: 1
storage:
  driver: sqlite
  path: ./data/quotes.db
  capacity: 5
quote_source:
  cooldown: 2m
quotes:
  default_category: inspirational
daily:
  enabled: true
  at: "07:30"
  timezone: UTC
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDecodeYAML(t *testing.T) {
	cfg, err := Decode("config.yaml", []byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, []int64{42}, cfg.Telegram.OwnerUserIDs)
	assert.Equal(t, "15s", cfg.Telegram.PollTimeout)
	assert.Equal(t, 5, cfg.Storage.Capacity)
	assert.Equal(t, "2m", cfg.QuoteSource.Cooldown)
	assert.True(t, cfg.Daily.Enabled)
	assert.Equal(t, "07:30", cfg.Daily.At)
	require.NoError(t, Validate(cfg))
}

func TestDecodeJSON(t *testing.T) {
	cfg, err := Decode("config.json", []byte(`{"telegram":{"token":"t","owner_user_ids":[]},"storage":{"driver":"sqlite","path":"q.db"}}`))
	require.NoError(t, err)
	assert.Equal(t, "q.db", cfg.Storage.Path)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode("config.json", []byte(`{"telegram":{"token":"t","owner_user_ids":[]},"pprof":{}}`))
	assert.ErrorContains(t, err, "unknown field")

	_, err = Decode("config.yaml", []byte("storage:\n  driver: sqlite\n  capacty: 3\n"))
	assert.ErrorContains(t, err, "unknown field")
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	_, err := Decode("config.json", []byte(`{} {}`))
	assert.ErrorContains(t, err, "trailing data")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "env-token")
	t.Setenv("API_NINJA_KEY", "env-key")
	t.Setenv("DATABASE_FILE", "/tmp/env.db")
	t.Setenv("QUOTEBOT_LOG_LEVEL", "warn")

	m := NewConfigManager(writeFile(t, "config.yaml", sampleYAML))
	cfg, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, "env-key", cfg.QuoteSource.APIKey)
	assert.Equal(t, "/tmp/env.db", cfg.Storage.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Same(t, cfg, m.Get())
}

func TestLoadFromEnvWithoutFile(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "env-token")
	t.Setenv("DATABASE_FILE", "/tmp/env.db")

	path := filepath.Join(t.TempDir(), "missing.yaml")
	m := NewConfigManager(path)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, "/tmp/env.db", cfg.Storage.Path)
	assert.NoError(t, Validate(cfg))

	assert.False(t, m.Reload(context.Background()), "an absent file keeps the committed config")
	assert.Same(t, cfg, m.Get())

	// The file showing up later is picked up like any edit.
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))
	require.True(t, m.Reload(context.Background()))
	assert.Equal(t, "debug", m.Get().Logging.Level)
	assert.Equal(t, "env-token", m.Get().Telegram.Token)
}

func TestLoadRejectsUnreadableConfig(t *testing.T) {
	_, err := NewConfigManager(t.TempDir()).Load()
	assert.ErrorContains(t, err, "read config")
}

func TestWatchWithoutConfigDir(t *testing.T) {
	m := NewConfigManager(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, m.Watch(ctx))
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Storage:     StorageConfig{Driver: "mysql", Capacity: -1},
		QuoteSource: QuoteSourceConfig{Timeout: "soon"},
		Daily:       DailyConfig{Enabled: true, At: "25:99", Timezone: "Mars/Olympus"},
	}
	err := Validate(cfg)
	require.Error(t, err)
	for _, want := range []string{"telegram.token", "storage.capacity", "storage.driver", "quote_source.timeout", "daily.at", "daily.timezone"} {
		assert.ErrorContains(t, err, want)
	}

	assert.NoError(t, Validate(&Config{Telegram: TelegramConfig{Token: "t"}}))
}

func TestParseDurationOrDefault(t *testing.T) {
	d, err := ParseDurationOrDefault("x", "", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)

	d, err = ParseDurationOrDefault("x", "90s", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseDurationField("x", "-1s")
	assert.Error(t, err)
}

func TestReloadPublishesChanges(t *testing.T) {
	path := writeFile(t, "config.yaml", sampleYAML)
	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	assert.False(t, m.Reload(context.Background()), "unchanged content is not published")

	require.NoError(t, os.WriteFile(path, []byte(sampleYAML+"\n# edited\n"), 0o600))
	assert.False(t, m.Reload(context.Background()), "comment-only edit yields the same config")

	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(sampleYAML, "capacity: 5", "capacity: 7", 1)), 0o600))

	m.SetValidator(func(ctx context.Context, cfg *Config) error { return Validate(cfg) })
	require.True(t, m.Reload(context.Background()))
	select {
	case cfg := <-ch:
		assert.Equal(t, 7, cfg.Storage.Capacity)
	default:
		t.Fatal("no config published")
	}

	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(sampleYAML, `token: "123:abc"`, `token: ""`, 1)), 0o600))
	assert.False(t, m.Reload(context.Background()), "invalid config is rejected")
	assert.Equal(t, 7, m.Get().Storage.Capacity)
}

func TestWatchPicksUpEdits(t *testing.T) {
	path := writeFile(t, "config.yaml", sampleYAML)
	m := NewConfigManager(path)
	_, err := m.Load()
	require.NoError(t, err)
	ch := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register before editing.
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(sampleYAML, "level: debug", "level: error", 1)), 0o600))

	select {
	case cfg := <-ch:
		assert.Equal(t, "error", cfg.Logging.Level)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not publish the edited config")
	}
}

func TestSummarizeChange(t *testing.T) {
	oldCfg, err := Decode("c.yaml", []byte(sampleYAML))
	require.NoError(t, err)
	newCfg, err := Decode("c.yaml", []byte(strings.Replace(sampleYAML, "level: debug", "level: info", 1)))
	require.NoError(t, err)
	newCfg.QuoteSource.APIKey = "k"

	changed, fields := SummarizeChange(oldCfg, newCfg)
	assert.Equal(t, []string{"logging", "quote_source"}, changed)
	assert.NotEmpty(t, fields)
}
