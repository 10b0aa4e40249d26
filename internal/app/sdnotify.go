package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "quotebot/pkg/logx"
)

// notifyReady tells systemd the bot is up and, when the unit sets
// WatchdogSec, keeps the watchdog fed until the app stops.
func (a *App) notifyReady() {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
		return
	}
	if !sent {
		return
	}
	a.log.Debug("sd_notify ready sent")

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		a.log.Warn("sd watchdog check failed", logx.Err(err))
		return
	}
	if interval <= 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(ctx context.Context) {
		watchdogLoop(ctx, interval/2, func() error {
			_, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			return err
		}, a.log)
	})
}

func (a *App) notifyStopping() {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		a.log.Debug("sd_notify stopping failed", logx.Err(err))
	}
}

func watchdogLoop(ctx context.Context, every time.Duration, ping func() error, log logx.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := ping(); err != nil {
				log.Warn("sd watchdog ping failed", logx.Err(err))
			}
		}
	}
}
