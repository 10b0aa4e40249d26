package quotesource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "quotebot/pkg/logx"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type apiStub struct {
	calls  atomic.Int32
	status atomic.Int32
	body   atomic.Value // string
}

func newAPIStub(t *testing.T, status int, body string) (*apiStub, *httptest.Server) {
	t.Helper()
	stub := &apiStub{}
	stub.status.Store(int32(status))
	stub.body.Store(body)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stub.calls.Add(1)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "inspirational", r.URL.Query().Get("category"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(stub.status.Load()))
		_, _ = w.Write([]byte(stub.body.Load().(string)))
	}))
	t.Cleanup(srv.Close)
	return stub, srv
}

func newTestSource(srvURL string, clock *fakeClock) *Source {
	return New(Config{BaseURL: srvURL, APIKey: "secret", Cooldown: time.Minute}, logx.Nop(),
		WithClock(clock.Now),
		WithRand(func(int) int { return 0 }),
	)
}

func TestQuoteFromAPI(t *testing.T) {
	stub, srv := newAPIStub(t, http.StatusOK, `[{"quote":" Stay hungry. ","author":"Steve Jobs","category":"inspirational"}]`)
	s := newTestSource(srv.URL, &fakeClock{t: time.Unix(1000, 0)})

	q := s.Quote(context.Background())
	assert.Equal(t, Quote{Text: "Stay hungry.", Author: "Steve Jobs", Category: "inspirational", Source: SourceAPI}, q)
	assert.Equal(t, int32(1), stub.calls.Load())
	assert.Zero(t, s.CooldownRemaining())
}

func TestQuoteMissingAuthor(t *testing.T) {
	_, srv := newAPIStub(t, http.StatusOK, `[{"quote":"Anonymous wisdom"}]`)
	s := newTestSource(srv.URL, &fakeClock{t: time.Unix(1000, 0)})

	q := s.Quote(context.Background())
	assert.Equal(t, "Unknown", q.Author)
	assert.Equal(t, "inspirational", q.Category)
	assert.Equal(t, SourceAPI, q.Source)
}

func TestFailureStartsCooldown(t *testing.T) {
	stub, srv := newAPIStub(t, http.StatusInternalServerError, `{"error":"down"}`)
	clock := &fakeClock{t: time.Unix(1000, 0)}
	s := newTestSource(srv.URL, clock)

	q := s.Quote(context.Background())
	assert.Equal(t, SourceFallback, q.Source)
	assert.Equal(t, fallbackQuotes[0].Text, q.Text)
	assert.Equal(t, time.Minute, s.CooldownRemaining())

	// Within the window the API is not called again.
	stub.status.Store(http.StatusOK)
	stub.body.Store(`[{"quote":"Back online","author":"Ops"}]`)
	clock.Advance(30 * time.Second)
	q = s.Quote(context.Background())
	assert.Equal(t, SourceFallback, q.Source)
	assert.Equal(t, int32(1), stub.calls.Load())
	assert.Equal(t, 30*time.Second, s.CooldownRemaining())

	_, err := s.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrCooldown)

	// After the window the API is tried again and success clears the gate.
	clock.Advance(31 * time.Second)
	q = s.Quote(context.Background())
	assert.Equal(t, "Back online", q.Text)
	assert.Equal(t, int32(2), stub.calls.Load())
	assert.Zero(t, s.CooldownRemaining())
}

func TestDecodeErrorStartsCooldown(t *testing.T) {
	_, srv := newAPIStub(t, http.StatusOK, `not json`)
	s := newTestSource(srv.URL, &fakeClock{t: time.Unix(1000, 0)})

	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	assert.Positive(t, s.CooldownRemaining())
}

func TestEmptyAnswerFallsBackWithoutCooldown(t *testing.T) {
	stub, srv := newAPIStub(t, http.StatusOK, `[]`)
	s := newTestSource(srv.URL, &fakeClock{t: time.Unix(1000, 0)})

	assert.Equal(t, SourceFallback, s.Quote(context.Background()).Source)
	assert.Zero(t, s.CooldownRemaining())
	assert.Equal(t, SourceFallback, s.Quote(context.Background()).Source)
	assert.Equal(t, int32(2), stub.calls.Load())
}

func TestMissingKeyNeverCallsAPI(t *testing.T) {
	stub, srv := newAPIStub(t, http.StatusOK, `[]`)
	s := New(Config{BaseURL: srv.URL}, logx.Nop())

	q := s.Quote(context.Background())
	assert.Equal(t, SourceFallback, q.Source)
	assert.Zero(t, stub.calls.Load())

	_, err := s.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestNilOptionsKeepDefaults(t *testing.T) {
	s := New(Config{}, logx.Nop(), WithClock(nil), WithRand(nil))
	assert.Zero(t, s.CooldownRemaining())

	q := s.Quote(context.Background())
	assert.Equal(t, SourceFallback, q.Source)
	assert.NotEmpty(t, q.Text)
}

func TestTransportErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := New(Config{BaseURL: url, APIKey: "secret", Timeout: time.Second}, logx.Nop())
	q := s.Quote(context.Background())
	assert.Equal(t, SourceFallback, q.Source)
	assert.NotEmpty(t, q.Text)
	assert.Positive(t, s.CooldownRemaining())
}

func TestLocalRateLimit(t *testing.T) {
	stub, srv := newAPIStub(t, http.StatusOK, `[{"quote":"q","author":"a"}]`)
	s := New(Config{BaseURL: srv.URL, APIKey: "secret", RatePerMin: 2}, logx.Nop())

	assert.Equal(t, SourceAPI, s.Quote(context.Background()).Source)
	assert.Equal(t, SourceAPI, s.Quote(context.Background()).Source)
	assert.Equal(t, SourceFallback, s.Quote(context.Background()).Source)
	assert.Equal(t, int32(2), stub.calls.Load())

	_, err := s.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestApplyUpdatesKey(t *testing.T) {
	stub, srv := newAPIStub(t, http.StatusOK, `[{"quote":"q","author":"a"}]`)
	s := New(Config{BaseURL: srv.URL}, logx.Nop())
	assert.Equal(t, SourceFallback, s.Quote(context.Background()).Source)

	s.Apply(Config{BaseURL: srv.URL, APIKey: "secret", Timeout: 2 * time.Second})
	assert.Equal(t, SourceAPI, s.Quote(context.Background()).Source)
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestFallbackCoversList(t *testing.T) {
	i := 0
	s := New(Config{}, logx.Nop(), WithRand(func(n int) int {
		require.Equal(t, len(fallbackQuotes), n)
		defer func() { i++ }()
		return i % n
	}))

	seen := map[string]bool{}
	for range fallbackQuotes {
		q := s.Fallback()
		assert.Equal(t, SourceFallback, q.Source)
		assert.Equal(t, DefaultCategory, q.Category)
		seen[q.Author] = true
	}
	assert.Len(t, seen, 8)
}
