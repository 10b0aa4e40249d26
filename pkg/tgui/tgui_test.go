package tgui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataRoundTrip(t *testing.T) {
	d := Data(" quotes ", "save", "~abc:def")
	assert.Equal(t, "quotes:save:~abc:def", d)

	p, a, payload, ok := ParseData(d)
	require.True(t, ok)
	assert.Equal(t, "quotes", p)
	assert.Equal(t, "save", a)
	assert.Equal(t, "~abc:def", payload)

	p, a, payload, ok = ParseData(Data("quotes", "another", ""))
	require.True(t, ok)
	assert.Equal(t, "quotes", p)
	assert.Equal(t, "another", a)
	assert.Empty(t, payload)

	for _, bad := range []string{"", "quotes", ":save", "quotes:"} {
		_, _, _, ok := ParseData(bad)
		assert.False(t, ok, bad)
	}
}

func TestKeyboardDropsOversizedData(t *testing.T) {
	kb := NewKeyboard().
		Row(Btn("ok", "a:b"), Btn("big", "a:b:"+strings.Repeat("x", 70))).
		Row(Btn("", "a:c")).
		Rows()
	require.Len(t, kb, 1)
	require.Len(t, kb[0], 1)
	assert.Equal(t, "ok", kb[0][0].Text)

	assert.Nil(t, NewKeyboard().Rows())
}

func TestHTMLEscaping(t *testing.T) {
	assert.Equal(t, H("<b>a &lt;b&gt;</b>"), B("a <b>"))
	assert.Equal(t, H("<code>x</code> &amp; <i>y</i>"), JoinH(" & ", Code("x"), I("y")))
	assert.Equal(t, H("one\ntwo"), Lines(Raw("one"), "", Raw("two")))
}

func TestTokenStoreExpiry(t *testing.T) {
	now := time.Unix(100, 0)
	s := NewTokenStore(time.Minute, 10).WithClock(func() time.Time { return now })

	tok := s.Put("payload")
	assert.True(t, strings.HasPrefix(tok, "~"))
	assert.NotContains(t, tok, ":")

	v, ok := s.Get(tok)
	require.True(t, ok)
	assert.Equal(t, "payload", v)

	now = now.Add(2 * time.Minute)
	_, ok = s.Get(tok)
	assert.False(t, ok)
	_, ok = s.Get("~missing")
	assert.False(t, ok)
}

func TestTokenStoreBounded(t *testing.T) {
	now := time.Unix(100, 0)
	s := NewTokenStore(time.Hour, 3).WithClock(func() time.Time { return now })

	first := s.Put("1")
	for i := 0; i < 5; i++ {
		now = now.Add(time.Second)
		s.Put("n")
	}
	assert.LessOrEqual(t, s.Len(), 3)
	_, ok := s.Get(first)
	assert.False(t, ok)
}

func TestTruncRunes(t *testing.T) {
	assert.Equal(t, "héllo", TruncRunes("héllo", 5))
	assert.Equal(t, "hé…", TruncRunes("héllo", 2))
	assert.Empty(t, TruncRunes("abc", 0))
}
