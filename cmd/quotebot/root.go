package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"quotebot/internal/app"
	"quotebot/internal/config"
	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "quotebot",
	Short: "A Telegram quote bot",
	Long: `quotebot serves inspirational quotes over Telegram and keeps a small,
bounded collection of saved quotes per category in SQLite.

Run without a subcommand to start the bot.`,
	SilenceUsage: true,
	RunE:         runBot,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.yaml", "path to config file (json or yaml)")
}

// openStore loads the config and opens the quote database for one-shot
// commands. The bot token is not required here.
func openStore() (*storage.Store, error) {
	cfg, err := config.NewConfigManager(cfgPath).Load()
	if err != nil {
		return nil, err
	}
	lvl := cfg.Logging.Level
	if lvl == "" {
		lvl = "WARN"
	}
	return app.OpenStore(cfg, logx.NewConsole(lvl))
}
