package adapter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"quotebot/internal/transport"
	logx "quotebot/pkg/logx"
)

func TestSplitTextShort(t *testing.T) {
	assert.Equal(t, []string{"hello"}, splitText("hello", 10, ""))
}

func TestSplitTextPrefersNewlines(t *testing.T) {
	s := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	assert.Equal(t, []string{"aaaaaa", "bbbbbb"}, splitText(s, 10, ""))
}

func TestSplitTextAvoidsHTMLTags(t *testing.T) {
	s := "abcdefg<b>bold</b>"
	chunks := splitText(s, 9, "HTML")
	require.NotEmpty(t, chunks)
	assert.Equal(t, "abcdefg", chunks[0])
	assert.Equal(t, s, strings.Join(chunks, ""))
}

func TestSplitTextRunes(t *testing.T) {
	s := strings.Repeat("📜", 25)
	chunks := splitText(s, 10, "")
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 10)
	}
}

func TestInlineMarkup(t *testing.T) {
	assert.Nil(t, inlineMarkup(nil))

	rm := inlineMarkup([][]transport.Button{
		{{Text: "Another", Data: "quotes:another"}, {Text: "Save", Data: "quotes:save:~abc"}},
		{},
	})
	require.NotNil(t, rm)
	require.Len(t, rm.InlineKeyboard, 1)
	assert.Equal(t, "quotes:save:~abc", rm.InlineKeyboard[0][1].Data)
}

func TestMessageUpdate(t *testing.T) {
	up, ok := messageUpdate(&tele.Message{
		ID:       5,
		Text:     "/quote",
		ThreadID: 3,
		Chat:     &tele.Chat{ID: -100, Type: tele.ChatSuperGroup},
		Sender:   &tele.User{ID: 42, Username: "reader"},
	})
	require.True(t, ok)
	assert.Equal(t, transport.UpdateMessage, up.Kind)
	assert.Equal(t, &transport.Message{ID: 5, ChatID: -100, ThreadID: 3, FromID: 42, FromUsername: "reader", Text: "/quote", IsGroup: true}, up.Message)

	_, ok = messageUpdate(&tele.Message{Text: "orphan"})
	assert.False(t, ok)
}

func TestCallbackUpdate(t *testing.T) {
	up, ok := callbackUpdate(&tele.Callback{
		ID:      "cb1",
		Data:    "quotes:another",
		Sender:  &tele.User{ID: 7},
		Message: &tele.Message{ID: 9, Chat: &tele.Chat{ID: 1}},
	})
	require.True(t, ok)
	assert.Equal(t, "quotes:another", up.Callback.Data)
	assert.Equal(t, 9, up.Callback.MessageID)
	assert.Equal(t, int64(7), up.Callback.FromID)

	_, ok = callbackUpdate(&tele.Callback{ID: "x"})
	assert.False(t, ok)
}

func TestMenuCommands(t *testing.T) {
	got := menuCommands([]transport.BotCommand{
		{Command: "quote", Description: "Get a quote"},
		{Command: ""},
		{Command: "help"},
	})
	assert.Equal(t, []tele.Command{{Text: "quote", Description: "Get a quote"}, {Text: "help", Description: "help"}}, got)
	assert.True(t, sameCommands(got, menuCommands([]transport.BotCommand{{Command: "quote", Description: "Get a quote"}, {Command: "help"}})))
	assert.False(t, sameCommands(nil, nil))
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New(Config{}, logx.Nop())
	assert.Error(t, err)

	a, err := New(Config{Token: "123:abc", Offline: true}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, "", a.BotUsername())
}
