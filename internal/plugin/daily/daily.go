// Package daily sends one quote a day to every subscribed chat.
package daily

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"quotebot/internal/config"
	"quotebot/internal/eventbus"
	"quotebot/internal/plugin"
	"quotebot/internal/plugin/quotes"
	kit "quotebot/internal/transport"
	"quotebot/internal/transport/telegram/router"
	logx "quotebot/pkg/logx"
)

const (
	Name              = "daily"
	defaultRatePerSec = 5
)

// Settings is the resolved daily section of the config.
type Settings struct {
	Enabled    bool
	Hour       int
	Minute     int
	Location   *time.Location
	RatePerSec int
}

// ParseSettings resolves defaults and validates the daily section.
func ParseSettings(c config.DailyConfig) (Settings, error) {
	s := Settings{Enabled: c.Enabled, RatePerSec: c.RatePerSec}
	at := strings.TrimSpace(c.At)
	if at == "" {
		at = config.DefaultDailyAt
	}
	h, m, err := config.ParseClock("daily.at", at)
	if err != nil {
		return Settings{}, err
	}
	s.Hour, s.Minute = h, m

	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		tz = config.DefaultDailyTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Settings{}, fmt.Errorf("daily.timezone: %w", err)
	}
	s.Location = loc
	if s.RatePerSec <= 0 {
		s.RatePerSec = defaultRatePerSec
	}
	return s, nil
}

// Spec is the cron expression for the configured time of day.
func (s Settings) Spec() string { return fmt.Sprintf("%d %d * * *", s.Minute, s.Hour) }

func (s Settings) equal(o Settings) bool {
	return s.Enabled == o.Enabled && s.Hour == o.Hour && s.Minute == o.Minute &&
		s.RatePerSec == o.RatePerSec && s.Location.String() == o.Location.String()
}

type Plugin struct {
	plugin.Base

	mu       sync.Mutex
	settings Settings
	cron     *cron.Cron
	limiter  *rate.Limiter
	runCtx   context.Context
	running  sync.Mutex // one broadcast at a time
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Init(ctx context.Context, deps plugin.Deps) error {
	p.InitBase(deps, p.Name())
	var dc config.DailyConfig
	if cfg := p.Config(); cfg != nil {
		dc = cfg.Daily
	}
	s, err := ParseSettings(dc)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.settings = s
	p.limiter = rate.NewLimiter(rate.Limit(s.RatePerSec), s.RatePerSec)
	p.mu.Unlock()
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runCtx = p.Runner.Context()
	return p.scheduleLocked()
}

func (p *Plugin) Stop(ctx context.Context) error {
	p.mu.Lock()
	p.stopCronLocked(ctx)
	p.runCtx = nil
	p.mu.Unlock()
	return p.StopBase(ctx)
}

// OnConfigChange reschedules when the daily section changed.
func (p *Plugin) OnConfigChange(ctx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return nil
	}
	s, err := ParseSettings(cfg.Daily)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.equal(p.settings) {
		return nil
	}
	p.settings = s
	p.limiter.SetLimit(rate.Limit(s.RatePerSec))
	p.limiter.SetBurst(s.RatePerSec)
	if p.runCtx == nil {
		return nil
	}
	p.stopCronLocked(ctx)
	return p.scheduleLocked()
}

func (p *Plugin) scheduleLocked() error {
	s := p.settings
	if !s.Enabled {
		p.Log.Info("daily broadcast disabled")
		return nil
	}
	c := cron.New(cron.WithLocation(s.Location))
	runner := p.Runner
	if _, err := c.AddFunc(s.Spec(), func() {
		runner.Go("daily.broadcast", func(ctx context.Context) error {
			p.Broadcast(ctx)
			return nil
		})
	}); err != nil {
		return fmt.Errorf("schedule daily broadcast: %w", err)
	}
	c.Start()
	p.cron = c
	p.Log.Info("daily broadcast scheduled",
		logx.String("at", fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)),
		logx.String("tz", s.Location.String()),
		logx.Time("next", p.nextLocked()),
	)
	return nil
}

func (p *Plugin) stopCronLocked(ctx context.Context) {
	if p.cron == nil {
		return
	}
	done := p.cron.Stop()
	p.cron = nil
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

func (p *Plugin) nextLocked() time.Time {
	if p.cron == nil {
		return time.Time{}
	}
	entries := p.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Next reports the next scheduled broadcast (zero when disabled).
func (p *Plugin) Next() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nextLocked()
}

// Broadcast sends one quote to every subscription, paced by the rate limit.
// Only one broadcast runs at a time.
func (p *Plugin) Broadcast(ctx context.Context) eventbus.DailyEvent {
	p.running.Lock()
	defer p.running.Unlock()

	p.mu.Lock()
	limiter := p.limiter
	p.mu.Unlock()

	start := time.Now()
	subs := p.Deps.Store.Subscriptions(ctx)
	var res eventbus.DailyEvent
	if len(subs) == 0 {
		p.Log.Debug("daily broadcast skipped: no subscribers")
		return res
	}

	q := p.Deps.Source.Quote(ctx)
	text := "🌅 <b>Daily Quote</b>\n\n" + quotes.FormatQuote(q.Text, q.Author).String()
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}

	for _, sub := range subs {
		if err := limiter.Wait(ctx); err != nil {
			res.Failed += len(subs) - res.Delivered - res.Failed
			break
		}
		to := kit.ChatTarget{ChatID: sub.ChatID, ThreadID: sub.ThreadID}
		if _, err := p.Deps.Adapter.SendText(ctx, to, text, opt); err != nil {
			res.Failed++
			p.Log.Warn("daily quote not delivered", logx.Int64("chat_id", sub.ChatID), logx.Int("thread_id", sub.ThreadID), logx.Err(err))
			continue
		}
		res.Delivered++
	}

	p.Publish(eventbus.TypeDailySent, res)
	p.Log.Info("daily broadcast done",
		logx.Int("delivered", res.Delivered),
		logx.Int("failed", res.Failed),
		logx.String("source", q.Source),
		logx.Duration("took", time.Since(start)),
	)
	return res
}

func (p *Plugin) Commands() []router.Command {
	return []router.Command{
		{
			Route:       "subscribe",
			Description: "get a quote every morning",
			Handle: func(ctx context.Context, req *router.Request) error {
				start := time.Now()
				added := p.Deps.Store.Subscribe(ctx, req.Chat.ChatID, req.Chat.ThreadID)
				p.Audit(ctx, req, "daily.subscribe", "", start, nil)
				p.mu.Lock()
				enabled := p.settings.Enabled
				p.mu.Unlock()
				msg := "✅ Subscribed. A quote will arrive here every day."
				switch {
				case !added:
					msg = "This chat is already subscribed."
				case !enabled:
					msg = "✅ Subscribed. The daily broadcast is turned off right now; quotes will arrive once it is enabled."
				}
				_, err := req.Reply(ctx, msg, nil)
				return err
			},
		},
		{
			Route:       "unsubscribe",
			Description: "stop the daily quote",
			Handle: func(ctx context.Context, req *router.Request) error {
				start := time.Now()
				removed := p.Deps.Store.Unsubscribe(ctx, req.Chat.ChatID, req.Chat.ThreadID)
				p.Audit(ctx, req, "daily.unsubscribe", "", start, nil)
				msg := "👋 Unsubscribed."
				if !removed {
					msg = "This chat was not subscribed."
				}
				_, err := req.Reply(ctx, msg, nil)
				return err
			},
		},
		{
			Route:       "daily",
			Description: "daily broadcast status",
			Access:      router.AccessOwnerOnly,
			Handle: func(ctx context.Context, req *router.Request) error {
				_, err := req.Reply(ctx, p.status(ctx, req.Chat.ChatID, req.Chat.ThreadID), nil)
				return err
			},
		},
		{
			Route:       "daily now",
			Description: "send the daily quote now",
			Access:      router.AccessOwnerOnly,
			Timeout:     5 * time.Minute,
			Handle: func(ctx context.Context, req *router.Request) error {
				res := p.Broadcast(ctx)
				_, err := req.Reply(ctx, fmt.Sprintf("Daily quote sent: %d delivered, %d failed.", res.Delivered, res.Failed), nil)
				return err
			},
		},
	}
}

func (p *Plugin) status(ctx context.Context, chatID int64, threadID int) string {
	p.mu.Lock()
	s := p.settings
	next := p.nextLocked()
	p.mu.Unlock()

	subs := len(p.Deps.Store.Subscriptions(ctx))
	here := "not subscribed"
	if p.Deps.Store.IsSubscribed(ctx, chatID, threadID) {
		here = "subscribed"
	}
	if !s.Enabled {
		return fmt.Sprintf("Daily broadcast is disabled. Subscribers: %d. This chat: %s", subs, here)
	}
	return fmt.Sprintf("Daily broadcast at %02d:%02d %s. Next: %s. Subscribers: %d. This chat: %s",
		s.Hour, s.Minute, s.Location, next.In(s.Location).Format("2006-01-02 15:04"), subs, here)
}
