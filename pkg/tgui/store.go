package tgui

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// TokenStore is an in-memory TTL store for callback payloads that do not fit
// in Telegram's 64 byte callback_data. Tokens start with "~" and never
// contain ':'.
type TokenStore struct {
	mu  sync.Mutex
	ttl time.Duration
	max int
	now func() time.Time
	m   map[string]tokenEntry
}

type tokenEntry struct {
	v   string
	exp time.Time
}

// NewTokenStore returns a store keeping at most max entries for ttl each.
// Zero values default to 15m and 5000.
func NewTokenStore(ttl time.Duration, max int) *TokenStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if max <= 0 {
		max = 5000
	}
	return &TokenStore{ttl: ttl, max: max, now: time.Now, m: map[string]tokenEntry{}}
}

// WithClock replaces the time source. It is meant for tests.
func (s *TokenStore) WithClock(now func() time.Time) *TokenStore {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

// Put stores v and returns its token.
func (s *TokenStore) Put(v string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	var buf [6]byte
	for {
		_, _ = rand.Read(buf[:])
		tok := "~" + base64.RawURLEncoding.EncodeToString(buf[:])
		if _, exists := s.m[tok]; exists {
			continue
		}
		s.m[tok] = tokenEntry{v: v, exp: now.Add(s.ttl)}
		return tok
	}
}

// Get returns the value stored under tok if it has not expired.
func (s *TokenStore) Get(tok string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[tok]
	if !ok {
		return "", false
	}
	if s.now().After(e.exp) {
		delete(s.m, tok)
		return "", false
	}
	return e.v, true
}

// Len reports the number of live and not yet swept entries.
func (s *TokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// sweepLocked drops expired entries, then the soonest-expiring ones while the
// store is at capacity.
func (s *TokenStore) sweepLocked(now time.Time) {
	for k, e := range s.m {
		if now.After(e.exp) {
			delete(s.m, k)
		}
	}
	for len(s.m) >= s.max {
		var (
			oldest string
			exp    time.Time
		)
		for k, e := range s.m {
			if oldest == "" || e.exp.Before(exp) {
				oldest, exp = k, e.exp
			}
		}
		delete(s.m, oldest)
	}
}
