package eventbus

// Event types published by the quote store and the bot.
const (
	TypeQuoteAdded    = "quote.added"
	TypeQuoteEvicted  = "quote.evicted"
	TypeConfigReload  = "config.reload"
	TypeDailySent     = "daily.sent"
	TypeSourceFailure = "source.failure"
)

// QuoteEvent is the Data of quote.added and quote.evicted.
type QuoteEvent struct {
	QuoteID  int64
	Category string
	Text     string
}

// DailyEvent is the Data of daily.sent.
type DailyEvent struct {
	Delivered int
	Failed    int
}
