package plugin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"quotebot/internal/config"
	"quotebot/internal/transport/telegram/router"
	logx "quotebot/pkg/logx"
)

// Manager initializes, starts and stops plugins in registration order and
// pushes their commands to the router.
type Manager struct {
	mu      sync.Mutex
	log     logx.Logger
	deps    Deps
	cmdm    *router.CommandManager
	plugins []Plugin
	running []Plugin
}

func NewManager(log logx.Logger, deps Deps, cmdm *router.CommandManager) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{log: log.With(logx.String("comp", "plugins")), deps: deps, cmdm: cmdm}
}

// Register adds plugins. Names must be unique; later duplicates are ignored.
func (pm *Manager) Register(ps ...Plugin) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	for _, p := range ps {
		if p == nil || slices.ContainsFunc(pm.plugins, func(q Plugin) bool { return q.Name() == p.Name() }) {
			continue
		}
		pm.plugins = append(pm.plugins, p)
	}
}

func (pm *Manager) Names() []string {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	out := make([]string, 0, len(pm.plugins))
	for _, p := range pm.plugins {
		out = append(out, p.Name())
	}
	return out
}

// StartAll runs Init then Start on every plugin and installs the combined
// command registry. A failing plugin stops the ones already started.
func (pm *Manager) StartAll(ctx context.Context) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var (
		cmds []router.Command
		cbs  []router.CallbackRoute
	)
	for _, p := range pm.plugins {
		name := p.Name()
		start := time.Now()
		if err := p.Init(ctx, pm.deps); err != nil {
			pm.stopLocked(ctx)
			return fmt.Errorf("plugin %s: init: %w", name, err)
		}
		if err := p.Start(ctx); err != nil {
			pm.stopLocked(ctx)
			return fmt.Errorf("plugin %s: start: %w", name, err)
		}
		pm.running = append(pm.running, p)

		pc := p.Commands()
		for i := range pc {
			pc[i].PluginName = name
		}
		cmds = append(cmds, pc...)
		if cp, ok := p.(CallbackProvider); ok {
			cbs = append(cbs, cp.Callbacks()...)
		}
		pm.log.Info("plugin started", logx.String("plugin", name), logx.Int("commands", len(pc)), logx.Duration("took", time.Since(start)))
	}
	if pm.cmdm != nil {
		pm.cmdm.SetRegistry(cmds, cbs)
	}
	return nil
}

// StopAll stops running plugins in reverse order, each bounded by ctx.
func (pm *Manager) StopAll(ctx context.Context) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.stopLocked(ctx)
}

func (pm *Manager) stopLocked(ctx context.Context) error {
	var errs []error
	for i := len(pm.running) - 1; i >= 0; i-- {
		p := pm.running[i]
		if err := p.Stop(ctx); err != nil {
			pm.log.Warn("plugin stop failed", logx.String("plugin", p.Name()), logx.Err(err))
			errs = append(errs, fmt.Errorf("plugin %s: %w", p.Name(), err))
			continue
		}
		pm.log.Debug("plugin stopped", logx.String("plugin", p.Name()))
	}
	pm.running = nil
	return errors.Join(errs...)
}

// OnConfigChange forwards a committed config to running plugins that care.
func (pm *Manager) OnConfigChange(ctx context.Context, cfg *config.Config) {
	pm.mu.Lock()
	running := slices.Clone(pm.running)
	pm.mu.Unlock()

	for _, p := range running {
		cp, ok := p.(ConfigurablePlugin)
		if !ok {
			continue
		}
		if err := cp.OnConfigChange(ctx, cfg); err != nil {
			pm.log.Warn("plugin rejected config change", logx.String("plugin", p.Name()), logx.Err(err))
		}
	}
}
