package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"quotebot/internal/quotesource"
	kit "quotebot/internal/transport"
	"quotebot/internal/transport/telegram/router"
	"quotebot/pkg/tgui"
)

var htmlOpts = &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}

const welcome = "Welcome to the Daily Quote Bot! 🎯\n\n" +
	"Available commands:\n" +
	"/quote - Get an inspiring quote\n" +
	"/random [category] - A quote from the saved collection\n" +
	"/addquote text | author | category - Save your own quote\n" +
	"/quotes category - List saved quotes\n" +
	"/categories - Show categories\n" +
	"/subscribe - Get a quote every morning\n" +
	"/start - Show this help message"

func (p *Plugin) Commands() []router.Command {
	return []router.Command{
		{
			Route:       "start",
			Description: "welcome and command list",
			Handle: func(ctx context.Context, req *router.Request) error {
				_, err := req.Reply(ctx, welcome, nil)
				return err
			},
		},
		{
			Route:       "quote",
			Description: "get an inspiring quote",
			Usage:       "/quote",
			Timeout:     15 * time.Second,
			Handle:      p.cmdQuote,
		},
		{
			Route:       "random",
			Description: "a random saved quote",
			Usage:       "/random [category]",
			Handle:      p.cmdRandom,
		},
		{
			Route:       "addquote",
			Description: "save a quote",
			Usage:       "/addquote <text> | <author> | <category>",
			Handle:      p.cmdAddQuote,
		},
		{
			Route:       "quotes",
			Description: "list saved quotes of a category",
			Usage:       "/quotes <category>",
			Handle:      p.cmdQuotes,
		},
		{
			Route:       "categories",
			Description: "list categories",
			Handle:      p.cmdCategories,
		},
		{
			Route:       "allquotes",
			Description: "every saved quote",
			Access:      router.AccessOwnerOnly,
			Handle:      p.cmdAllQuotes,
		},
		{
			Route:       "stats",
			Description: "store and source status",
			Access:      router.AccessOwnerOnly,
			Handle:      p.cmdStats,
		},
	}
}

func (p *Plugin) Callbacks() []router.CallbackRoute {
	return []router.CallbackRoute{
		{Plugin: Name, Action: "another", Description: "show another quote", Access: router.CallbackAccessEveryone, Timeout: 15 * time.Second, Handle: p.cbAnother},
		{Plugin: Name, Action: "save", Description: "save the shown quote", Access: router.CallbackAccessEveryone, Handle: p.cbSave},
	}
}

// shownQuote is what a "Save" token refers to.
type shownQuote struct {
	Text     string `json:"t"`
	Author   string `json:"a"`
	Category string `json:"c"`
}

// quoteCard renders a fresh quote with its "Another" and "Save" buttons.
func (p *Plugin) quoteCard(q quotesource.Quote) (string, *kit.SendOptions) {
	b, _ := json.Marshal(shownQuote{Text: q.Text, Author: q.Author, Category: q.Category})
	tok := p.shown.Put(string(b))
	kb := tgui.NewKeyboard().Row(
		tgui.Btn("🔁 Another", tgui.Data(Name, "another", "")),
		tgui.Btn("💾 Save", tgui.Data(Name, "save", tok)),
	)
	return FormatQuote(q.Text, q.Author).String(), &kit.SendOptions{ParseMode: "HTML", DisablePreview: true, Keyboard: kb.Rows()}
}

func (p *Plugin) cmdQuote(ctx context.Context, req *router.Request) error {
	q := p.Deps.Source.Quote(ctx)
	text, opt := p.quoteCard(q)
	_, err := req.Reply(ctx, text, opt)
	return err
}

func (p *Plugin) cbAnother(ctx context.Context, req *router.Request, _ string) error {
	q := p.Deps.Source.Quote(ctx)
	text, opt := p.quoteCard(q)
	if req.MessageID == 0 {
		_, err := req.Reply(ctx, text, opt)
		return err
	}
	ref := kit.MessageRef{ChatID: req.Chat.ChatID, ThreadID: req.Chat.ThreadID, MessageID: req.MessageID}
	return req.Adapter.EditText(ctx, ref, text, opt)
}

func (p *Plugin) cbSave(ctx context.Context, req *router.Request, tok string) error {
	raw, ok := p.shown.Get(tok)
	if !ok {
		return req.Answer(ctx, "This quote is no longer available.")
	}
	var sq shownQuote
	if err := json.Unmarshal([]byte(raw), &sq); err != nil {
		return fmt.Errorf("decode shown quote: %w", err)
	}
	cat := normalizeCategory(sq.Category)
	if cat == "" {
		cat = p.defaultCategory()
	}

	start := time.Now()
	saved := p.Deps.Store.AddQuote(ctx, sq.Text, sq.Author, cat)
	var auditErr error
	if !saved {
		auditErr = errNotSaved
	}
	p.Audit(ctx, req, "quote.save", cat, start, auditErr)

	if !saved {
		return req.Answer(ctx, "Already saved.")
	}
	return req.Answer(ctx, "Saved to "+cat+" ✅")
}

func (p *Plugin) cmdRandom(ctx context.Context, req *router.Request) error {
	cat := normalizeCategory(strings.Join(req.Args, " "))
	if q, ok := p.Deps.Store.RandomQuote(ctx, cat); ok {
		_, err := req.Reply(ctx, FormatQuote(q.Text, q.Author).String(), htmlOpts)
		return err
	}

	// Nothing stored yet: hand out a fresh one instead.
	q := p.Deps.Source.Quote(ctx)
	note := "Nothing saved yet, here is a fresh one:"
	if cat != "" {
		note = "Nothing saved in " + cat + " yet, here is a fresh one:"
	}
	text, opt := p.quoteCard(q)
	_, err := req.Reply(ctx, tgui.I(note).String()+"\n\n"+text, opt)
	return err
}

func (p *Plugin) cmdAddQuote(ctx context.Context, req *router.Request) error {
	a, err := parseAddQuote(req.Text, p.defaultCategory())
	if err != nil {
		_, rerr := req.Reply(ctx, err.Error(), nil)
		return rerr
	}

	start := time.Now()
	saved := p.Deps.Store.AddQuote(ctx, a.Text, a.Author, a.Category)
	var auditErr error
	if !saved {
		auditErr = errNotSaved
	}
	p.Audit(ctx, req, "quote.add", a.Category, start, auditErr)

	if !saved {
		_, err = req.Reply(ctx, "⚠️ Not saved: that quote is already stored or could not be written.", nil)
		return err
	}
	_, err = req.Reply(ctx, "✅ Saved to "+tgui.B(a.Category).String()+".", htmlOpts)
	return err
}

func (p *Plugin) cmdQuotes(ctx context.Context, req *router.Request) error {
	cat := normalizeCategory(strings.Join(req.Args, " "))
	if cat == "" {
		_, err := req.Reply(ctx, "usage: /quotes <category>", nil)
		return err
	}
	qs := p.Deps.Store.QuotesByCategory(ctx, cat)
	if len(qs) == 0 {
		_, err := req.Reply(ctx, "No quotes saved in "+cat+" yet.", nil)
		return err
	}
	_, err := req.Reply(ctx, formatList(fmt.Sprintf("📂 %s (%d)", cat, len(qs)), qs), htmlOpts)
	return err
}

func (p *Plugin) cmdCategories(ctx context.Context, req *router.Request) error {
	cats := p.Deps.Store.Categories(ctx)
	if len(cats) == 0 {
		_, err := req.Reply(ctx, "No categories yet.", nil)
		return err
	}
	lines := []tgui.H{tgui.B("📂 Categories")}
	for _, c := range cats {
		n := p.Deps.Store.CountQuotesInCategory(ctx, c.ID)
		lines = append(lines, tgui.Raw(fmt.Sprintf("• %s (%d)", tgui.Code(c.Name), n)))
	}
	_, err := req.Reply(ctx, tgui.Lines(lines...).String(), htmlOpts)
	return err
}

func (p *Plugin) cmdAllQuotes(ctx context.Context, req *router.Request) error {
	qs := p.Deps.Store.AllQuotes(ctx)
	if len(qs) == 0 {
		_, err := req.Reply(ctx, "No quotes saved yet.", nil)
		return err
	}
	_, err := req.Reply(ctx, formatGrouped(qs), htmlOpts)
	return err
}

func (p *Plugin) cmdStats(ctx context.Context, req *router.Request) error {
	st := p.Deps.Store
	cats := st.Categories(ctx)
	total := 0
	lines := []tgui.H{
		tgui.B("📊 Stats"),
		tgui.Raw(fmt.Sprintf("Capacity per category: %d", st.Capacity())),
	}
	for _, c := range cats {
		n := st.CountQuotesInCategory(ctx, c.ID)
		total += n
		lines = append(lines, tgui.Raw(fmt.Sprintf("• %s: %d/%d", tgui.Code(c.Name), n, st.Capacity())))
	}
	lines = append(lines,
		tgui.Raw(fmt.Sprintf("Total quotes: %d", total)),
		tgui.Raw(fmt.Sprintf("Daily subscribers: %d", len(st.Subscriptions(ctx)))),
	)
	if d := p.Deps.Source.CooldownRemaining(); d > 0 {
		lines = append(lines, tgui.Raw("Quote API cooling down: "+d.Round(time.Second).String()))
	} else {
		lines = append(lines, tgui.Raw("Quote API: ready"))
	}
	_, err := req.Reply(ctx, tgui.Lines(lines...).String(), htmlOpts)
	return err
}
