package router

import (
	"sort"
	"strings"

	kit "quotebot/internal/transport"
)

const (
	menuMaxCommands = 100
	menuMaxDescLen  = 256
	menuMaxNameLen  = 32
)

// sanitizeTelegramCommand maps a route or alias onto Telegram's command
// alphabet [a-z0-9_]{1,32}. Separators become underscores and anything else
// is dropped.
func sanitizeTelegramCommand(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_', r == '-', r == ' ', r == '/':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
	}
	if len(out) > menuMaxNameLen {
		out = strings.TrimRight(out[:menuMaxNameLen], "_")
	}
	return out
}

// telegramCommandNameFromRoute joins a route into one command name:
//
//	["quotes","add"] -> "quotes_add"
//	["all-quotes"]   -> "all_quotes"
func telegramCommandNameFromRoute(route []string) (string, bool) {
	out := sanitizeTelegramCommand(strings.Join(route, "_"))
	return out, out != ""
}

// buildTelegramMenuCommands lists top-level commands first, then shortcuts for
// multi-token routes, capped at Telegram's 100 entries.
func buildTelegramMenuCommands(root *cmdNode, cmds []Command) []kit.BotCommand {
	type entry struct {
		cmd  string
		desc string
		prio int
	}
	seen := map[string]bool{}
	var entries []entry
	add := func(name, desc string, lock bool, prio int) {
		name = sanitizeTelegramCommand(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		desc = strings.Join(strings.Fields(desc), " ")
		if desc == "" {
			desc = name
		}
		if lock {
			desc = "🔒 " + desc
		}
		if len(desc) > menuMaxDescLen {
			desc = desc[:menuMaxDescLen]
		}
		entries = append(entries, entry{cmd: name, desc: desc, prio: prio})
	}

	for _, name := range root.childNames() {
		n, _ := root.child(name)
		add(name, summarizeNodeDesc(n), nodeIsOwnerOnly(n), 0)
	}
	for _, c := range cmds {
		route := splitRoute(c.Route)
		if len(route) < 2 {
			continue
		}
		desc := c.Description
		if strings.TrimSpace(desc) == "" {
			desc = strings.Join(route, " ")
		}
		add(strings.Join(route, "_"), desc, c.Access == AccessOwnerOnly, 1)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].prio != entries[j].prio {
			return entries[i].prio < entries[j].prio
		}
		return entries[i].cmd < entries[j].cmd
	})
	out := make([]kit.BotCommand, 0, min(len(entries), menuMaxCommands))
	for _, e := range entries[:min(len(entries), menuMaxCommands)] {
		out = append(out, kit.BotCommand{Command: e.cmd, Description: e.desc})
	}
	return out
}
