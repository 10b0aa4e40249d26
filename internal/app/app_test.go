package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotebot/internal/config"
	logx "quotebot/pkg/logx"
)

func TestMapStorageConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		sc, err := mapStorageConfig(&config.Config{})
		require.NoError(t, err)
		assert.Equal(t, "sqlite", sc.Driver)
		assert.Equal(t, DefaultDatabaseFile, sc.Path)
		assert.Equal(t, time.Second, sc.BusyTimeout)
		assert.Zero(t, sc.Capacity)
	})

	t.Run("explicit", func(t *testing.T) {
		sc, err := mapStorageConfig(&config.Config{Storage: config.StorageConfig{
			Driver: "SQLite3", Path: " /var/lib/quotebot/q.db ", BusyTimeout: "3s", Capacity: 25,
		}})
		require.NoError(t, err)
		assert.Equal(t, "sqlite3", sc.Driver)
		assert.Equal(t, "/var/lib/quotebot/q.db", sc.Path)
		assert.Equal(t, 3*time.Second, sc.BusyTimeout)
		assert.Equal(t, 25, sc.Capacity)
	})

	for name, st := range map[string]config.StorageConfig{
		"driver":   {Driver: "postgres"},
		"busy":     {BusyTimeout: "soon"},
		"capacity": {Capacity: -1},
	} {
		t.Run("rejects "+name, func(t *testing.T) {
			_, err := mapStorageConfig(&config.Config{Storage: st})
			assert.Error(t, err)
		})
	}
}

func TestMapSourceConfig(t *testing.T) {
	sc, err := mapSourceConfig(&config.Config{QuoteSource: config.QuoteSourceConfig{
		APIKey: " k ", Timeout: "2s", Cooldown: "90s", RatePerMin: 10, Category: "wisdom",
	}})
	require.NoError(t, err)
	assert.Equal(t, "k", sc.APIKey)
	assert.Equal(t, 2*time.Second, sc.Timeout)
	assert.Equal(t, 90*time.Second, sc.Cooldown)
	assert.Equal(t, 10, sc.RatePerMin)
	assert.Equal(t, "wisdom", sc.Category)

	_, err = mapSourceConfig(&config.Config{QuoteSource: config.QuoteSourceConfig{Cooldown: "-1s"}})
	assert.Error(t, err)
}

func TestMapLogging(t *testing.T) {
	lc := mapLogging(&config.Config{Logging: config.LoggingConfig{
		Level:    "debug",
		File:     config.LoggingFile{Enabled: true, Path: "bot.log", MaxSizeMB: 5},
		Telegram: config.LoggingTelegram{Enabled: true, ChatID: -100, MinLevel: "error"},
	}})
	assert.Equal(t, "debug", lc.Level)
	assert.True(t, lc.File.Enabled)
	assert.Equal(t, 5, lc.File.MaxSizeMB)
	assert.Equal(t, int64(-100), lc.Telegram.ChatID)
	assert.Equal(t, "error", lc.Telegram.MinLevel)
}

func TestMapRouterOptions(t *testing.T) {
	opt, err := mapRouterOptions(&config.Config{Telegram: config.TelegramConfig{
		OwnerUserIDs: []int64{7}, Workers: 3,
	}}, "quote_bot")
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, opt.Owners)
	assert.Equal(t, 3, opt.Workers)
	assert.Equal(t, "quote_bot", opt.BotUsername)
	assert.Equal(t, 30*time.Second, opt.DefaultTimeout)
}

func TestOpenStoreMemory(t *testing.T) {
	st, err := OpenStore(&config.Config{Storage: config.StorageConfig{Path: ":memory:", Capacity: 3}}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	assert.Equal(t, 3, st.Capacity())
}

func TestRunStepBounded(t *testing.T) {
	start := time.Now()
	runStep(context.Background(), logx.Nop(), "stuck", 50*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	var ran atomic.Bool
	runStep(context.Background(), logx.Nop(), "ok", time.Second, func(ctx context.Context) error {
		ran.Store(true)
		return errors.New("ignored")
	})
	assert.True(t, ran.Load())

	// A panicking step is contained.
	runStep(context.Background(), logx.Nop(), "panics", time.Second, func(ctx context.Context) error {
		panic("boom")
	})
}

func TestWatchdogLoopPings(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var pings atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchdogLoop(ctx, 5*time.Millisecond, func() error {
			if pings.Add(1) >= 3 {
				cancel()
			}
			return nil
		}, logx.Nop())
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog loop did not stop")
	}
	assert.GreaterOrEqual(t, pings.Load(), int32(3))
}
