package daily

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotebot/internal/config"
	"quotebot/internal/eventbus"
	"quotebot/internal/plugin"
	"quotebot/internal/plugin/plugintest"
	"quotebot/internal/quotesource"
	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
)

const owner int64 = 1

type fixture struct {
	h   *plugintest.Harness
	st  *storage.Store
	p   *Plugin
	bus eventbus.Bus
}

func newFixture(t *testing.T, dc config.DailyConfig) fixture {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: ":memory:"}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	bus := eventbus.New()
	cfg := &config.Config{Daily: dc}
	src := quotesource.New(quotesource.Config{}, logx.Nop(), quotesource.WithRand(func(int) int { return 0 }))
	p := New()
	deps := plugin.Deps{Store: st, Source: src, Bus: bus, Config: func() *config.Config { return cfg }}
	return fixture{h: plugintest.Start(t, deps, []int64{owner}, p), st: st, p: p, bus: bus}
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings(config.DailyConfig{Enabled: true})
	require.NoError(t, err)
	assert.Equal(t, 6, s.Hour)
	assert.Equal(t, 0, s.Minute)
	assert.Equal(t, "Asia/Dhaka", s.Location.String())
	assert.Equal(t, 5, s.RatePerSec)
	assert.Equal(t, "0 6 * * *", s.Spec())

	s, err = ParseSettings(config.DailyConfig{At: "21:30", Timezone: "UTC", RatePerSec: 2})
	require.NoError(t, err)
	assert.Equal(t, "30 21 * * *", s.Spec())

	_, err = ParseSettings(config.DailyConfig{At: "25:00"})
	assert.Error(t, err)
	_, err = ParseSettings(config.DailyConfig{Timezone: "Mars/Olympus"})
	assert.ErrorContains(t, err, "daily.timezone")
}

func TestSubscribeCommands(t *testing.T) {
	f := newFixture(t, config.DailyConfig{})
	ctx := context.Background()

	f.h.Command(10, 5, "/subscribe")
	assert.Contains(t, f.h.Adapter.Next(t).Text, "turned off", "a disabled broadcast is mentioned")
	f.h.Command(10, 5, "/subscribe")
	assert.Equal(t, "This chat is already subscribed.", f.h.Adapter.Next(t).Text)
	assert.True(t, f.st.IsSubscribed(ctx, 10, 0))

	f.h.Command(10, 5, "/unsubscribe")
	assert.Equal(t, "👋 Unsubscribed.", f.h.Adapter.Next(t).Text)
	f.h.Command(10, 5, "/unsubscribe")
	assert.Equal(t, "This chat was not subscribed.", f.h.Adapter.Next(t).Text)
	assert.Equal(t, 4, f.st.CountAudit(ctx, ""))
}

func TestSubscribeWhileEnabled(t *testing.T) {
	f := newFixture(t, config.DailyConfig{Enabled: true, Timezone: "UTC"})

	f.h.Command(10, 5, "/subscribe")
	assert.Equal(t, "✅ Subscribed. A quote will arrive here every day.", f.h.Adapter.Next(t).Text)
}

func TestDailyStatusShowsThisChat(t *testing.T) {
	f := newFixture(t, config.DailyConfig{})

	f.h.Command(10, owner, "/daily")
	assert.Equal(t, "Daily broadcast is disabled. Subscribers: 0. This chat: not subscribed", f.h.Adapter.Next(t).Text)

	require.True(t, f.st.Subscribe(context.Background(), 10, 0))
	f.h.Command(10, owner, "/daily")
	assert.Equal(t, "Daily broadcast is disabled. Subscribers: 1. This chat: subscribed", f.h.Adapter.Next(t).Text)
}

func TestBroadcastCountsFailures(t *testing.T) {
	f := newFixture(t, config.DailyConfig{RatePerSec: 100})
	ctx := context.Background()
	events, unsub := f.bus.Subscribe(4)
	defer unsub()

	require.True(t, f.st.Subscribe(ctx, 10, 0))
	require.True(t, f.st.Subscribe(ctx, 20, 3))
	require.True(t, f.st.Subscribe(ctx, 30, 0))
	f.h.Adapter.SendFail[20] = errors.New("blocked by user")

	res := f.p.Broadcast(ctx)
	assert.Equal(t, eventbus.DailyEvent{Delivered: 2, Failed: 1}, res)

	var sent []int64
	for _, c := range f.h.Adapter.Calls() {
		require.Equal(t, "send", c.Kind)
		assert.Contains(t, c.Text, "Daily Quote")
		assert.Contains(t, c.Text, "Mahatma Gandhi")
		sent = append(sent, c.To.ChatID)
	}
	assert.ElementsMatch(t, []int64{10, 30}, sent)

	select {
	case ev := <-events:
		assert.Equal(t, eventbus.TypeDailySent, ev.Type)
		assert.Equal(t, res, ev.Data)
	case <-time.After(time.Second):
		t.Fatal("daily.sent not published")
	}
}

func TestBroadcastWithoutSubscribers(t *testing.T) {
	f := newFixture(t, config.DailyConfig{})
	assert.Zero(t, f.p.Broadcast(context.Background()))
	assert.Empty(t, f.h.Adapter.Calls())
}

func TestDailyNowIsOwnerOnly(t *testing.T) {
	f := newFixture(t, config.DailyConfig{})
	require.True(t, f.st.Subscribe(context.Background(), 10, 0))

	f.h.Command(99, 5, "/daily now")
	assert.Contains(t, f.h.Adapter.Next(t).Text, "owner only")

	f.h.Command(99, owner, "/daily now")
	first := f.h.Adapter.Next(t)
	assert.Equal(t, int64(10), first.To.ChatID)
	assert.Equal(t, "Daily quote sent: 1 delivered, 0 failed.", f.h.Adapter.Next(t).Text)
}

func TestScheduleFollowsConfig(t *testing.T) {
	f := newFixture(t, config.DailyConfig{})
	assert.True(t, f.p.Next().IsZero())

	f.h.Command(99, owner, "/daily")
	assert.Contains(t, f.h.Adapter.Next(t).Text, "disabled")

	ctx := context.Background()
	require.NoError(t, f.p.OnConfigChange(ctx, &config.Config{Daily: config.DailyConfig{Enabled: true, At: "07:15", Timezone: "UTC"}}))
	next := f.p.Next()
	require.False(t, next.IsZero())
	next = next.In(time.UTC)
	assert.Equal(t, 7, next.Hour())
	assert.Equal(t, 15, next.Minute())
	assert.True(t, next.After(time.Now()))

	f.h.Command(99, owner, "/daily")
	assert.Contains(t, f.h.Adapter.Next(t).Text, "07:15 UTC")

	require.Error(t, f.p.OnConfigChange(ctx, &config.Config{Daily: config.DailyConfig{Enabled: true, At: "bad"}}))
	assert.False(t, f.p.Next().IsZero())

	require.NoError(t, f.p.OnConfigChange(ctx, &config.Config{Daily: config.DailyConfig{Enabled: false}}))
	assert.True(t, f.p.Next().IsZero())
}
