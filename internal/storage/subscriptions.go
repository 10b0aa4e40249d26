package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	logx "quotebot/pkg/logx"
)

// Subscribe adds a daily-quote subscription. It reports true only when the
// subscription did not exist before.
func (s *Store) Subscribe(ctx context.Context, chatID int64, threadID int) bool {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions(chat_id, thread_id, created_at) VALUES(?,?,?)
		 ON CONFLICT(chat_id, thread_id) DO NOTHING`,
		chatID, threadID, s.now().UnixNano(),
	)
	if err != nil {
		s.logFault("subscribe", err, logx.Int64("chat_id", chatID))
		return false
	}
	n, err := res.RowsAffected()
	if err != nil {
		s.logFault("subscribe", err, logx.Int64("chat_id", chatID))
		return false
	}
	return n > 0
}

// Unsubscribe removes a subscription and reports whether one existed.
func (s *Store) Unsubscribe(ctx context.Context, chatID int64, threadID int) bool {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE chat_id = ? AND thread_id = ?`, chatID, threadID)
	if err != nil {
		s.logFault("unsubscribe", err, logx.Int64("chat_id", chatID))
		return false
	}
	n, err := res.RowsAffected()
	if err != nil {
		s.logFault("unsubscribe", err, logx.Int64("chat_id", chatID))
		return false
	}
	return n > 0
}

// IsSubscribed reports whether the chat (and thread) receives the daily quote.
func (s *Store) IsSubscribed(ctx context.Context, chatID int64, threadID int) bool {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM subscriptions WHERE chat_id = ? AND thread_id = ?`, chatID, threadID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}
	if err != nil {
		s.logFault("is_subscribed", err, logx.Int64("chat_id", chatID))
		return false
	}
	return true
}

// Subscriptions lists every subscription, oldest first.
func (s *Store) Subscriptions(ctx context.Context) []Subscription {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id, thread_id, created_at FROM subscriptions ORDER BY created_at ASC, chat_id ASC`)
	if err != nil {
		s.logFault("subscriptions", err)
		return []Subscription{}
	}
	defer rows.Close()

	out := []Subscription{}
	for rows.Next() {
		var (
			sub Subscription
			at  int64
		)
		if err := rows.Scan(&sub.ChatID, &sub.ThreadID, &at); err != nil {
			s.logFault("subscriptions", err)
			return []Subscription{}
		}
		sub.CreatedAt = time.Unix(0, at)
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		s.logFault("subscriptions", err)
		return []Subscription{}
	}
	return out
}
