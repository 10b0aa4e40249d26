package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"quotebot/internal/eventbus"
	logx "quotebot/pkg/logx"
)

//go:embed schema.sql
var schemaSQL string

// Store is an open quote database. It is safe for concurrent use.
type Store struct {
	db       *sql.DB
	log      logx.Logger
	bus      eventbus.Bus
	capacity int

	now  func() time.Time
	intn func(n int) int

	// writeMu serializes compound write sequences (check, evict, insert).
	writeMu sync.Mutex
	closed  atomic.Bool
}

type Option func(*Store)

// WithClock overrides the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRand overrides the index picker used by RandomQuote. intn(n) must return [0,n).
func WithRand(intn func(n int) int) Option {
	return func(s *Store) {
		if intn != nil {
			s.intn = intn
		}
	}
}

// WithBus publishes quote.added and quote.evicted events to bus.
func WithBus(bus eventbus.Bus) Option {
	return func(s *Store) { s.bus = bus }
}

// Open opens (creating if needed) the quote database described by cfg.
func Open(cfg Config, log logx.Logger, opts ...Option) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	if !isMemoryPath(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: SQLite has a single writer, and ":memory:" databases
	// exist per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}
	if !isMemoryPath(path) {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			log.Warn("sqlite pragma failed", logx.String("pragma", p), logx.Err(err))
		}
	}

	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	s := &Store{
		db:       db,
		log:      log.With(logx.String("component", "storage")),
		capacity: capacity,
		now:      time.Now,
		intn:     rand.IntN,
	}
	for _, o := range opts {
		o(s)
	}

	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.log.Debug("storage opened", logx.String("path", path), logx.Int("capacity", capacity))
	return s, nil
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:")
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Capacity is the per-category quote limit fixed at Open.
func (s *Store) Capacity() int { return s.capacity }

// Close releases the database. Calls after the first are no-ops, and every
// operation afterwards fails with ErrClosed in the log.
func (s *Store) Close() error {
	if s == nil || s.db == nil || s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// logFault records a storage error at the exported boundary.
func (s *Store) logFault(op string, err error, fields ...logx.Field) {
	if s.closed.Load() && !errors.Is(err, ErrClosed) {
		err = fmt.Errorf("%w: %v", ErrClosed, err)
	}
	s.log.Error("storage operation failed", append([]logx.Field{logx.String("op", op), logx.Err(err)}, fields...)...)
}

func (s *Store) publish(typ string, data eventbus.QuoteEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: data})
}
