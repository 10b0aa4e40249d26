package quotes

import (
	"errors"
	"fmt"
	"strings"

	"quotebot/internal/storage"
	"quotebot/pkg/tgui"
)

var (
	errAddUsage = errors.New("usage: /addquote <text> | <author> | <category>")
	errNotSaved = errors.New("duplicate or storage fault")
)

// FormatQuote renders a quote for Telegram HTML.
func FormatQuote(text, author string) tgui.H {
	return tgui.Raw(fmt.Sprintf("📜 \"%s\"\n\n— %s ✨", tgui.Esc(text), tgui.Esc(author)))
}

type addArgs struct {
	Text     string
	Author   string
	Category string
}

// parseAddQuote splits "text | author | category". Author and category are
// optional; the category is lower-cased and defaults to def.
func parseAddQuote(raw, def string) (addArgs, error) {
	parts := strings.Split(raw, "|")
	if len(parts) > 3 {
		return addArgs{}, errAddUsage
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	a := addArgs{Text: strings.Trim(parts[0], `"“”`), Category: def}
	a.Text = strings.TrimSpace(a.Text)
	if a.Text == "" {
		return addArgs{}, errAddUsage
	}
	if len(parts) > 1 {
		a.Author = parts[1]
	}
	if len(parts) > 2 && parts[2] != "" {
		a.Category = normalizeCategory(parts[2])
	}
	return a, nil
}

func normalizeCategory(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// formatList renders quotes as a numbered list. Long texts are shortened.
func formatList(title string, qs []storage.Quote) string {
	lines := []tgui.H{tgui.B(title)}
	for i, q := range qs {
		lines = append(lines, tgui.Raw(fmt.Sprintf("%d. \"%s\" — <i>%s</i>", i+1, tgui.Esc(tgui.TruncRunes(q.Text, 300)), tgui.Esc(q.Author))))
	}
	return tgui.Lines(lines...).String()
}

// formatGrouped renders quotes already ordered by category under one heading
// per category.
func formatGrouped(qs []storage.Quote) string {
	var (
		lines []tgui.H
		cur   string
		n     int
	)
	for _, q := range qs {
		if q.Category != cur || n == 0 {
			if n > 0 {
				lines = append(lines, "")
			}
			cur = q.Category
			lines = append(lines, tgui.Raw("📂 "+tgui.B(cur).String()))
		}
		n++
		lines = append(lines, tgui.Raw(fmt.Sprintf("• \"%s\" — <i>%s</i>", tgui.Esc(tgui.TruncRunes(q.Text, 300)), tgui.Esc(q.Author))))
	}
	return strings.Join(hToStrings(lines), "\n")
}

func hToStrings(hs []tgui.H) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.String()
	}
	return out
}
