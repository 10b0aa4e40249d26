package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFanout(t *testing.T) {
	b := New()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: TypeQuoteAdded, Data: QuoteEvent{QuoteID: 1, Category: "life"}})

	for _, ch := range []<-chan Event{a, c} {
		select {
		case ev := <-ch:
			assert.Equal(t, TypeQuoteAdded, ev.Type)
			assert.False(t, ev.Time.IsZero())
			qe, ok := ev.Data.(QuoteEvent)
			require.True(t, ok)
			assert.Equal(t, "life", qe.Category)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})

	assert.Equal(t, "a", (<-ch).Type)
	unsub()
	unsub()

	_, open := <-ch
	assert.False(t, open)
	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Type: "c"})
}
