// Package quotesource fetches quotes from the API Ninjas quote endpoint and
// falls back to a fixed local list when the API is unreachable, unconfigured,
// rate limited locally, or cooling down after a failure.
package quotesource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"quotebot/internal/eventbus"
	logx "quotebot/pkg/logx"
)

const (
	DefaultBaseURL    = "https://api.api-ninjas.com/v1/quotes"
	DefaultCategory   = "inspirational"
	DefaultTimeout    = 5 * time.Second
	DefaultCooldown   = 60 * time.Second
	DefaultRatePerMin = 30

	SourceAPI      = "api"
	SourceFallback = "fallback"

	unknownAuthor = "Unknown"
)

var (
	ErrNoAPIKey    = errors.New("quote api key not configured")
	ErrCooldown    = errors.New("quote api cooling down")
	ErrRateLimited = errors.New("quote api local rate limit")
	ErrEmpty       = errors.New("quote api returned no quote")
)

type Config struct {
	BaseURL    string
	Category   string
	APIKey     string
	Timeout    time.Duration
	Cooldown   time.Duration
	RatePerMin int
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(c.Category) == "" {
		c.Category = DefaultCategory
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.RatePerMin <= 0 {
		c.RatePerMin = DefaultRatePerMin
	}
	return c
}

// Quote is what the source hands to the bot. Source is SourceAPI or SourceFallback.
type Quote struct {
	Text     string
	Author   string
	Category string
	Source   string
}

// ninjaQuote is the API Ninjas response element.
type ninjaQuote struct {
	Quote    string `json:"quote"`
	Author   string `json:"author"`
	Category string `json:"category"`
}

type Source struct {
	log  logx.Logger
	bus  eventbus.Bus
	gate *cooldownGate
	intn func(n int) int

	mu      sync.RWMutex
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
}

type Option func(*Source)

// WithClock overrides the clock behind the failure cooldown.
func WithClock(now func() time.Time) Option {
	return func(s *Source) {
		if now != nil {
			s.gate.now = now
		}
	}
}

// WithRand overrides the fallback picker. intn(n) must return [0,n).
func WithRand(intn func(n int) int) Option {
	return func(s *Source) {
		if intn != nil {
			s.intn = intn
		}
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

// WithBus publishes source.failure events.
func WithBus(bus eventbus.Bus) Option {
	return func(s *Source) { s.bus = bus }
}

func New(cfg Config, log logx.Logger, opts ...Option) *Source {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Source{
		log:     log.With(logx.String("component", "quotesource")),
		gate:    newCooldownGate(cfg.Cooldown, time.Now),
		intn:    rand.IntN,
		cfg:     cfg,
		limiter: newLimiter(cfg.RatePerMin),
	}
	for _, o := range opts {
		o(s)
	}
	if s.client == nil {
		s.client = &http.Client{Timeout: cfg.Timeout}
	}
	return s
}

func newLimiter(perMin int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin)
}

// Apply swaps key, endpoint, timeout, cooldown and rate at runtime.
func (s *Source) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg.Timeout != s.cfg.Timeout {
		s.client = &http.Client{Timeout: cfg.Timeout, Transport: s.client.Transport}
	}
	if cfg.RatePerMin != s.cfg.RatePerMin {
		s.limiter = newLimiter(cfg.RatePerMin)
	}
	s.gate.SetWindow(cfg.Cooldown)
	s.cfg = cfg
}

// CooldownRemaining reports how long remote calls stay disabled.
func (s *Source) CooldownRemaining() time.Duration { return s.gate.Remaining() }

// Quote returns a quote from the API, or a fallback quote when the API is
// not usable. It never fails.
func (s *Source) Quote(ctx context.Context) Quote {
	q, err := s.Fetch(ctx)
	if err == nil {
		return q
	}
	switch {
	case errors.Is(err, ErrNoAPIKey), errors.Is(err, ErrCooldown), errors.Is(err, ErrRateLimited), errors.Is(err, ErrEmpty):
		s.log.Debug("using fallback quote", logx.String("reason", err.Error()))
	default:
		s.log.Warn("quote api failed; using fallback", logx.Err(err), logx.Duration("cooldown", s.gate.Remaining()))
	}
	return s.Fallback()
}

// Fetch calls the remote API once. Transport, status and decode failures
// start the cooldown; an empty answer does not.
func (s *Source) Fetch(ctx context.Context) (Quote, error) {
	s.mu.RLock()
	cfg, client, limiter := s.cfg, s.client, s.limiter
	s.mu.RUnlock()

	if strings.TrimSpace(cfg.APIKey) == "" {
		return Quote{}, ErrNoAPIKey
	}
	if !s.gate.Allow() {
		return Quote{}, ErrCooldown
	}
	if !limiter.Allow() {
		return Quote{}, ErrRateLimited
	}

	q, err := s.fetch(ctx, client, cfg)
	if errors.Is(err, ErrEmpty) {
		return Quote{}, err
	}
	if err != nil {
		s.gate.RecordFailure()
		if s.bus != nil {
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeSourceFailure, Data: err.Error()})
		}
		return Quote{}, err
	}
	s.gate.RecordSuccess()
	return q, nil
}

func (s *Source) fetch(ctx context.Context, client *http.Client, cfg Config) (Quote, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return Quote{}, fmt.Errorf("parse base url: %w", err)
	}
	qs := u.Query()
	qs.Set("category", cfg.Category)
	u.RawQuery = qs.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Quote{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("request quote: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	s.log.Trace("quote api responded", logx.Int("status", resp.StatusCode), logx.Duration("took", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Quote{}, fmt.Errorf("quote api status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var items []ninjaQuote
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return Quote{}, fmt.Errorf("decode quote response: %w", err)
	}
	if len(items) == 0 || strings.TrimSpace(items[0].Quote) == "" {
		return Quote{}, ErrEmpty
	}
	return toQuote(items[0], cfg.Category), nil
}

func toQuote(ext ninjaQuote, category string) Quote {
	author := strings.TrimSpace(ext.Author)
	if author == "" {
		author = unknownAuthor
	}
	if c := strings.TrimSpace(ext.Category); c != "" {
		category = c
	}
	return Quote{
		Text:     strings.TrimSpace(ext.Quote),
		Author:   author,
		Category: category,
		Source:   SourceAPI,
	}
}

// Fallback returns a uniformly chosen quote from the local list.
func (s *Source) Fallback() Quote {
	q := fallbackQuotes[s.intn(len(fallbackQuotes))]
	s.mu.RLock()
	q.Category = s.cfg.Category
	s.mu.RUnlock()
	q.Source = SourceFallback
	return q
}
