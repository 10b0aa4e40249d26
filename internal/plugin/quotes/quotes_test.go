package quotes

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quotebot/internal/config"
	"quotebot/internal/plugin"
	"quotebot/internal/plugin/plugintest"
	"quotebot/internal/quotesource"
	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
)

const (
	chat  int64 = 500
	user  int64 = 7
	owner int64 = 1
)

func newHarness(t *testing.T, cfg *config.Config) (*plugintest.Harness, *storage.Store) {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: ":memory:"}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	// No API key: every quote comes from the first fallback entry.
	src := quotesource.New(quotesource.Config{}, logx.Nop(), quotesource.WithRand(func(int) int { return 0 }))
	deps := plugin.Deps{Store: st, Source: src, Config: func() *config.Config { return cfg }}
	return plugintest.Start(t, deps, []int64{owner}, New()), st
}

func TestFormatQuote(t *testing.T) {
	assert.Equal(t, "📜 \"a &lt; b\"\n\n— Me &amp; you ✨", FormatQuote("a < b", "Me & you").String())
}

func TestParseAddQuote(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    addArgs
		wantErr bool
	}{
		{name: "text only", in: "Be kind", want: addArgs{Text: "Be kind", Category: "inspirational"}},
		{name: "all fields", in: ` "Be kind" | Anon |  Deep  Thoughts `, want: addArgs{Text: "Be kind", Author: "Anon", Category: "deep thoughts"}},
		{name: "empty category keeps default", in: "x | y |", want: addArgs{Text: "x", Author: "y", Category: "inspirational"}},
		{name: "missing text", in: " | Anon | life", wantErr: true},
		{name: "blank", in: "", wantErr: true},
		{name: "too many fields", in: "a | b | c | d", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAddQuote(tt.in, "inspirational")
			if tt.wantErr {
				assert.ErrorIs(t, err, errAddUsage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuoteAndSaveButtons(t *testing.T) {
	h, st := newHarness(t, nil)
	ctx := context.Background()

	h.Command(chat, user, "/quote")
	card := h.Adapter.Next(t)
	require.Equal(t, "send", card.Kind)
	assert.Contains(t, card.Text, "Be the change you wish to see in the world.")
	require.NotNil(t, card.Opt)
	require.Len(t, card.Opt.Keyboard, 1)
	require.Len(t, card.Opt.Keyboard[0], 2)
	another, save := card.Opt.Keyboard[0][0], card.Opt.Keyboard[0][1]
	assert.Equal(t, "quotes:another", another.Data)
	assert.Regexp(t, `^quotes:save:~`, save.Data)

	h.Press(chat, user, card.MessageID, "cb1", save.Data)
	ans := h.Adapter.Next(t)
	assert.Equal(t, "answer", ans.Kind)
	assert.Equal(t, "Saved to inspirational ✅", ans.Text)

	q, ok := st.RandomQuote(ctx, "inspirational")
	require.True(t, ok)
	assert.Equal(t, "Mahatma Gandhi", q.Author)

	h.Press(chat, user, card.MessageID, "cb2", save.Data)
	assert.Equal(t, "Already saved.", h.Adapter.Next(t).Text)
	assert.Equal(t, 2, st.CountAudit(ctx, "quote.save"))

	h.Press(chat, user, card.MessageID, "cb3", "quotes:save:~gone")
	assert.Equal(t, "This quote is no longer available.", h.Adapter.Next(t).Text)

	h.Press(chat, user, card.MessageID, "cb4", another.Data)
	edit := h.Adapter.Next(t)
	assert.Equal(t, "edit", edit.Kind)
	assert.Equal(t, card.MessageID, edit.MessageID)
	assert.Len(t, edit.Opt.Keyboard[0], 2)
	assert.Equal(t, "answer", h.Adapter.Next(t).Kind)
}

func TestAddQuoteThenBrowse(t *testing.T) {
	h, st := newHarness(t, nil)

	h.Command(chat, user, "/addquote Be kind | Anon | Life")
	assert.Equal(t, "✅ Saved to <b>life</b>.", h.Adapter.Next(t).Text)

	h.Command(chat, user, "/addquote Be kind | Someone else")
	assert.Contains(t, h.Adapter.Next(t).Text, "Not saved")

	h.Command(chat, user, "/addquote")
	assert.Equal(t, errAddUsage.Error(), h.Adapter.Next(t).Text)

	h.Command(chat, user, "/quotes life")
	list := h.Adapter.Next(t).Text
	assert.Contains(t, list, "life (1)")
	assert.Contains(t, list, `"Be kind" — <i>Anon</i>`)

	h.Command(chat, user, "/quotes nothing")
	assert.Equal(t, "No quotes saved in nothing yet.", h.Adapter.Next(t).Text)

	h.Command(chat, user, "/categories")
	assert.Contains(t, h.Adapter.Next(t).Text, "<code>life</code> (1)")

	h.Command(chat, user, "/random LIFE")
	assert.Equal(t, FormatQuote("Be kind", "Anon").String(), h.Adapter.Next(t).Text)

	assert.Equal(t, 2, st.CountAudit(context.Background(), "quote.add"))
}

func TestRandomFallsBackToSource(t *testing.T) {
	h, _ := newHarness(t, nil)

	h.Command(chat, user, "/random")
	msg := h.Adapter.Next(t)
	assert.Contains(t, msg.Text, "Nothing saved yet")
	assert.Contains(t, msg.Text, "Mahatma Gandhi")

	h.Command(chat, user, "/random life")
	assert.Contains(t, h.Adapter.Next(t).Text, "Nothing saved in life yet")
}

func TestDefaultCategoryFromConfig(t *testing.T) {
	cfg := &config.Config{Quotes: config.QuotesConfig{DefaultCategory: "Wisdom"}}
	h, st := newHarness(t, cfg)

	h.Command(chat, user, "/addquote Know thyself")
	assert.Equal(t, "✅ Saved to <b>wisdom</b>.", h.Adapter.Next(t).Text)
	assert.Len(t, st.QuotesByCategory(context.Background(), "wisdom"), 1)
}

func TestOwnerCommands(t *testing.T) {
	h, st := newHarness(t, nil)
	ctx := context.Background()
	require.True(t, st.AddQuote(ctx, "One", "A", "life"))
	require.True(t, st.AddQuote(ctx, "Two", "B", "love"))

	h.Command(chat, user, "/stats")
	assert.Contains(t, h.Adapter.Next(t).Text, "owner only")

	h.Command(chat, owner, "/stats")
	stats := h.Adapter.Next(t).Text
	assert.Contains(t, stats, "Capacity per category: 10")
	assert.Contains(t, stats, "Total quotes: 2")
	assert.Contains(t, stats, "Quote API: ready")

	h.Command(chat, owner, "/allquotes")
	all := h.Adapter.Next(t).Text
	assert.Contains(t, all, "📂 <b>life</b>")
	assert.Contains(t, all, "📂 <b>love</b>")
	assert.Less(t, strings.Index(all, "life"), strings.Index(all, "love"))
}
