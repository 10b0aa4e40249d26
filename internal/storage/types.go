package storage

import (
	"errors"
	"time"
)

// DefaultCapacity is the per-category quote limit used when Config.Capacity is unset.
const DefaultCapacity = 10

// DefaultCategories are registered by InitializeDefaultData when names is nil.
var DefaultCategories = []string{
	"inspiration",
	"motivation",
	"wisdom",
	"success",
	"leadership",
	"life",
	"love",
	"happiness",
}

// ErrClosed marks faults from operations on a Store after Close.
var ErrClosed = errors.New("storage closed")

// Config configures the quote store.
//
// Driver is "sqlite" (or "sqlite3"); an empty driver means sqlite. Path may be
// ":memory:" for a throwaway database.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means 5s
	Capacity    int           // <=0 means DefaultCapacity
}

type Quote struct {
	ID        int64
	Text      string
	Author    string
	Category  string
	CreatedAt time.Time
}

type Category struct {
	ID   int64
	Name string
}

// Subscription is a chat (and optional forum thread) receiving the daily quote.
type Subscription struct {
	ChatID    int64
	ThreadID  int
	CreatedAt time.Time
}

// AuditEntry records a user action against the store.
type AuditEntry struct {
	At            time.Time
	ActorID       int64
	ActorUsername string
	ChatID        int64
	ThreadID      int
	Action        string
	Target        string
	OK            bool
	Error         string
	TookMS        int64
}
