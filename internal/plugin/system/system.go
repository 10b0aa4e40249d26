// Package system answers liveness and runtime questions about the bot itself.
package system

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"quotebot/internal/plugin"
	kit "quotebot/internal/transport"
	"quotebot/internal/transport/telegram/router"
	"quotebot/pkg/tgui"
)

const Name = "system"

type Plugin struct {
	plugin.Base
	startedAt time.Time
	plugins   func() []string
	now       func() time.Time
}

// New returns the plugin. plugins lists the registered plugin names for
// /sysinfo and may be nil.
func New(plugins func() []string) *Plugin {
	return &Plugin{plugins: plugins, now: time.Now}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Init(ctx context.Context, deps plugin.Deps) error {
	p.InitBase(deps, p.Name())
	if p.startedAt.IsZero() {
		p.startedAt = p.now()
	}
	return nil
}

func (p *Plugin) Start(ctx context.Context) error {
	p.StartBase(ctx)
	return nil
}

func (p *Plugin) Stop(ctx context.Context) error { return p.StopBase(ctx) }

func (p *Plugin) Commands() []router.Command {
	return []router.Command{
		{
			Route:       "ping",
			Description: "check the bot is alive",
			Handle: func(ctx context.Context, req *router.Request) error {
				_, err := req.Reply(ctx, "pong", nil)
				return err
			},
		},
		{
			Route:       "uptime",
			Aliases:     []string{"up"},
			Description: "how long the bot has been running",
			Handle: func(ctx context.Context, req *router.Request) error {
				_, err := req.Reply(ctx, "uptime: "+durRel(p.now().Sub(p.startedAt)), nil)
				return err
			},
		},
		{
			Route:       "sysinfo",
			Description: "runtime information",
			Access:      router.AccessOwnerOnly,
			Handle:      p.cmdSysinfo,
		},
	}
}

func (p *Plugin) cmdSysinfo(ctx context.Context, req *router.Request) error {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mod := "-"
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		mod = strings.TrimSpace(bi.Main.Path + " " + bi.Main.Version)
	}
	var names []string
	if p.plugins != nil {
		names = p.plugins()
	}

	lines := []tgui.H{
		tgui.B("🧠 sysinfo"),
		kv("go", runtime.Version()),
		kv("module", mod),
		kv("uptime", durRel(p.now().Sub(p.startedAt))),
		kv("goroutines", fmt.Sprint(runtime.NumGoroutine())),
		kv("mem_alloc", fmtBytes(m.Alloc)),
		kv("mem_sys", fmtBytes(m.Sys)),
		kv("plugins", strings.Join(names, ", ")),
	}
	_, err := req.Reply(ctx, tgui.Lines(lines...).String(), &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

func kv(k, v string) tgui.H {
	if v == "" {
		v = "-"
	}
	return tgui.JoinH("", tgui.B(k), tgui.Raw(": "), tgui.Code(v))
}

func fmtBytes(n uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case n >= GB:
		return fmt.Sprintf("%.1fGB", float64(n)/GB)
	case n >= MB:
		return fmt.Sprintf("%.1fMB", float64(n)/MB)
	case n >= KB:
		return fmt.Sprintf("%.1fKB", float64(n)/KB)
	default:
		return fmt.Sprintf("%dB", n)
	}
}

func durRel(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
