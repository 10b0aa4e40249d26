package config

import (
	"reflect"
	"sort"
	"strings"

	logx "quotebot/pkg/logx"
)

// SummarizeChange lists the top-level sections that differ between two
// configs, plus log fields describing the new values. Secrets are never logged.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	var (
		changed []string
		fields  []logx.Field
	)

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	if ot.Token != nt.Token || ot.PollTimeout != nt.PollTimeout || ot.Workers != nt.Workers ||
		ot.CommandTimeout != nt.CommandTimeout || !reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) {
		changed = append(changed, "telegram")
		fields = append(fields,
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.token_changed", ot.Token != nt.Token),
		)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		fields = append(fields, logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""))
	}
	oq, nq := oldCfg.QuoteSource, newCfg.QuoteSource
	if oq != nq {
		changed = append(changed, "quote_source")
		fields = append(fields,
			logx.Bool("quote_source.key_set", strings.TrimSpace(nq.APIKey) != ""),
			logx.String("quote_source.cooldown", nq.Cooldown),
		)
	}
	if !reflect.DeepEqual(oldCfg.Quotes, newCfg.Quotes) {
		changed = append(changed, "quotes")
		fields = append(fields, logx.String("quotes.default_category", newCfg.Quotes.DefaultCategory))
	}
	if oldCfg.Daily != newCfg.Daily {
		changed = append(changed, "daily")
		fields = append(fields,
			logx.Bool("daily.enabled", newCfg.Daily.Enabled),
			logx.String("daily.at", newCfg.Daily.At),
			logx.String("daily.timezone", newCfg.Daily.Timezone),
		)
	}

	sort.Strings(changed)
	return changed, fields
}
