// Package quotes serves quotes to chats: fresh ones from the remote source,
// stored ones from the bounded store, and commands to grow the store.
package quotes

import (
	"context"
	"strings"
	"sync"
	"time"

	"quotebot/internal/config"
	"quotebot/internal/plugin"
	"quotebot/internal/quotesource"
	"quotebot/pkg/tgui"
)

const Name = "quotes"

type Plugin struct {
	plugin.Base

	mu         sync.RWMutex
	defaultCat string

	// shown keeps the quotes behind "Save" buttons.
	shown *tgui.TokenStore
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Init(ctx context.Context, deps plugin.Deps) error {
	p.InitBase(deps, p.Name())
	p.shown = tgui.NewTokenStore(24*time.Hour, 2000)
	p.applyConfig(p.Config())
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	return nil
}

func (p *Plugin) Stop(ctx context.Context) error {
	return p.StopBase(ctx)
}

func (p *Plugin) OnConfigChange(ctx context.Context, cfg *config.Config) error {
	p.applyConfig(cfg)
	return nil
}

func (p *Plugin) applyConfig(cfg *config.Config) {
	def := quotesource.DefaultCategory
	if cfg != nil && strings.TrimSpace(cfg.Quotes.DefaultCategory) != "" {
		def = normalizeCategory(cfg.Quotes.DefaultCategory)
	}
	p.mu.Lock()
	p.defaultCat = def
	p.mu.Unlock()
}

func (p *Plugin) defaultCategory() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.defaultCat
}
