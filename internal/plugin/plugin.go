package plugin

import (
	"context"
	"time"

	"quotebot/internal/config"
	"quotebot/internal/eventbus"
	"quotebot/internal/quotesource"
	"quotebot/internal/runtime/supervisor"
	"quotebot/internal/storage"
	kit "quotebot/internal/transport"
	"quotebot/internal/transport/telegram/router"
	logx "quotebot/pkg/logx"
)

type Plugin interface {
	Name() string
	Init(ctx context.Context, deps Deps) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Commands() []router.Command
}

type CallbackProvider interface {
	Callbacks() []router.CallbackRoute
}

// ConfigurablePlugin is notified after a reloaded config was committed.
type ConfigurablePlugin interface {
	OnConfigChange(ctx context.Context, cfg *config.Config) error
}

// Deps are the shared services handed to every plugin.
type Deps struct {
	Logger  logx.Logger
	Adapter kit.Adapter
	Store   *storage.Store
	Source  *quotesource.Source
	Bus     eventbus.Bus
	// Config returns the committed config. It may be nil in tests.
	Config func() *config.Config
}

// Base carries the plumbing most plugins need. Typical usage:
//
//	type Plugin struct{ plugin.Base }
//	func (p *Plugin) Init(ctx context.Context, deps plugin.Deps) error { p.InitBase(deps, p.Name()); return nil }
//	func (p *Plugin) Start(ctx context.Context) error { p.StartBase(ctx); return nil }
//	func (p *Plugin) Stop(ctx context.Context) error { return p.StopBase(ctx) }
type Base struct {
	Log    logx.Logger
	Deps   Deps
	Runner *supervisor.Supervisor
}

func (b *Base) InitBase(deps Deps, pluginName string) {
	b.Deps = deps
	log := deps.Logger
	if log.IsZero() {
		log = logx.Nop()
	}
	b.Log = log.With(logx.String("plugin", pluginName))
}

// StartBase creates a per-plugin supervisor tied to ctx.
func (b *Base) StartBase(ctx context.Context) {
	b.Runner = supervisor.New(ctx, supervisor.WithLogger(b.Log), supervisor.WithCancelOnError(false))
}

// StopBase cancels the runner and waits for it, bounded by ctx.
func (b *Base) StopBase(ctx context.Context) error {
	if b.Runner == nil {
		return nil
	}
	err := b.Runner.Stop(ctx)
	b.Runner = nil
	return err
}

// Config returns the committed config, or nil.
func (b *Base) Config() *config.Config {
	if b.Deps.Config == nil {
		return nil
	}
	return b.Deps.Config()
}

// Publish sends an event on the bus if there is one.
func (b *Base) Publish(typ string, data any) {
	if b.Deps.Bus == nil {
		return
	}
	b.Deps.Bus.Publish(eventbus.Event{Type: typ, Data: data})
}

// Audit records a user action. It is best-effort: failures are logged by the store.
func (b *Base) Audit(ctx context.Context, req *router.Request, action, target string, start time.Time, err error) {
	if b.Deps.Store == nil || req == nil {
		return
	}
	e := storage.AuditEntry{
		At:            time.Now(),
		ActorID:       req.FromID,
		ActorUsername: req.FromUsername,
		ChatID:        req.Chat.ChatID,
		ThreadID:      req.Chat.ThreadID,
		Action:        action,
		Target:        target,
		OK:            err == nil,
		TookMS:        time.Since(start).Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	b.Deps.Store.AppendAudit(ctx, e)
}
