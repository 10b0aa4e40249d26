package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"quotebot/internal/eventbus"
	logx "quotebot/pkg/logx"
)

const unknownAuthor = "Unknown"

// AddCategory registers name if it is not already known. It is idempotent and
// reports false only for a blank name or a storage fault.
func (s *Store) AddCategory(ctx context.Context, name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO categories(name) VALUES(?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		s.logFault("add_category", err, logx.String("category", name))
		return false
	}
	return true
}

// AddQuote inserts a quote into category, creating the category if needed.
//
// It returns false without changing anything when the text is already stored
// (in any category). When the category is full its oldest quote is evicted
// first, so the category never holds more than Capacity quotes.
func (s *Store) AddQuote(ctx context.Context, text, author, category string) bool {
	text = strings.TrimSpace(text)
	category = strings.TrimSpace(category)
	author = strings.TrimSpace(author)
	if text == "" || category == "" {
		return false
	}
	if author == "" {
		author = unknownAuthor
	}

	s.writeMu.Lock()
	added, evicted, err := s.addQuote(ctx, text, author, category)
	s.writeMu.Unlock()
	if err != nil {
		s.logFault("add_quote", err, logx.String("category", category))
		return false
	}
	if added == nil {
		s.log.Debug("duplicate quote ignored", logx.String("category", category))
		return false
	}

	for _, ev := range evicted {
		s.log.Debug("quote evicted", logx.String("category", category), logx.Int64("quote_id", ev.QuoteID))
		s.publish(eventbus.TypeQuoteEvicted, ev)
	}
	s.publish(eventbus.TypeQuoteAdded, eventbus.QuoteEvent{QuoteID: added.ID, Category: category, Text: text})
	return true
}

// addQuote runs the whole insert in one transaction. A nil Quote with a nil
// error means the text was a duplicate.
func (s *Store) addQuote(ctx context.Context, text, author, category string) (*Quote, []eventbus.QuoteEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM quotes WHERE quote = ?`, text).Scan(&one)
	switch {
	case err == nil:
		return nil, nil, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, nil, fmt.Errorf("failed to check duplicate: %w", err)
	}

	categoryID, err := ensureCategory(ctx, tx, category)
	if err != nil {
		return nil, nil, err
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM quotes WHERE category_id = ?`, categoryID).Scan(&count); err != nil {
		return nil, nil, fmt.Errorf("failed to count quotes: %w", err)
	}

	var evicted []eventbus.QuoteEvent
	if excess := count - s.capacity + 1; excess > 0 {
		evicted, err = evictOldest(ctx, tx, categoryID, excess)
		if err != nil {
			return nil, nil, err
		}
		for i := range evicted {
			evicted[i].Category = category
		}
	}

	createdAt := s.now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO quotes(quote, author, category_id, created_at) VALUES(?,?,?,?)`,
		text, author, categoryID, createdAt.UnixNano(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert quote: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read quote id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit quote: %w", err)
	}
	return &Quote{ID: id, Text: text, Author: author, Category: category, CreatedAt: createdAt}, evicted, nil
}

func ensureCategory(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `INSERT INTO categories(name) VALUES(?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return 0, fmt.Errorf("failed to create category: %w", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to resolve category: %w", err)
	}
	return id, nil
}

// evictOldest deletes the n oldest quotes of a category (created_at, then id).
func evictOldest(ctx context.Context, tx *sql.Tx, categoryID int64, n int) ([]eventbus.QuoteEvent, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, quote FROM quotes WHERE category_id = ? ORDER BY created_at ASC, id ASC LIMIT ?`,
		categoryID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select oldest quotes: %w", err)
	}
	var victims []eventbus.QuoteEvent
	for rows.Next() {
		var ev eventbus.QuoteEvent
		if err := rows.Scan(&ev.QuoteID, &ev.Text); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan oldest quote: %w", err)
		}
		victims = append(victims, ev)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate oldest quotes: %w", err)
	}
	rows.Close()

	for _, v := range victims {
		if _, err := tx.ExecContext(ctx, `DELETE FROM quotes WHERE id = ?`, v.QuoteID); err != nil {
			return nil, fmt.Errorf("failed to evict quote: %w", err)
		}
	}
	return victims, nil
}

// RandomQuote returns a uniformly chosen quote, restricted to category unless
// it is empty. ok is false when there is nothing to choose from.
func (s *Store) RandomQuote(ctx context.Context, category string) (Quote, bool) {
	category = strings.TrimSpace(category)
	q, ok, err := s.randomQuote(ctx, category)
	if err != nil {
		s.logFault("random_quote", err, logx.String("category", category))
		return Quote{}, false
	}
	return q, ok
}

func (s *Store) randomQuote(ctx context.Context, category string) (Quote, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Quote{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	where, args := "", []any{}
	if category != "" {
		where, args = ` WHERE c.name = ?`, append(args, category)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quotes q JOIN categories c ON c.id = q.category_id`+where, args...,
	).Scan(&count); err != nil {
		return Quote{}, false, fmt.Errorf("failed to count quotes: %w", err)
	}
	if count == 0 {
		return Quote{}, false, nil
	}

	idx := s.intn(count)
	row := tx.QueryRowContext(ctx,
		`SELECT q.id, q.quote, q.author, c.name, q.created_at
		 FROM quotes q JOIN categories c ON c.id = q.category_id`+where+`
		 ORDER BY q.id LIMIT 1 OFFSET ?`,
		append(args, idx)...,
	)
	q, err := scanQuote(row)
	if err != nil {
		return Quote{}, false, fmt.Errorf("failed to fetch quote: %w", err)
	}
	return q, true, nil
}

// QuotesByCategory lists a category's quotes, newest first.
func (s *Store) QuotesByCategory(ctx context.Context, category string) []Quote {
	category = strings.TrimSpace(category)
	out, err := s.listQuotes(ctx,
		`SELECT q.id, q.quote, q.author, c.name, q.created_at
		 FROM quotes q JOIN categories c ON c.id = q.category_id
		 WHERE c.name = ?
		 ORDER BY q.created_at DESC, q.id DESC`, category)
	if err != nil {
		s.logFault("quotes_by_category", err, logx.String("category", category))
		return []Quote{}
	}
	return out
}

// AllQuotes lists every quote, grouped by category name and newest first within each.
func (s *Store) AllQuotes(ctx context.Context) []Quote {
	out, err := s.listQuotes(ctx,
		`SELECT q.id, q.quote, q.author, c.name, q.created_at
		 FROM quotes q JOIN categories c ON c.id = q.category_id
		 ORDER BY c.name ASC, q.created_at DESC, q.id DESC`)
	if err != nil {
		s.logFault("all_quotes", err)
		return []Quote{}
	}
	return out
}

func (s *Store) listQuotes(ctx context.Context, query string, args ...any) ([]Quote, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotes: %w", err)
	}
	defer rows.Close()

	out := []Quote{}
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate quotes: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuote(r rowScanner) (Quote, error) {
	var (
		q         Quote
		createdAt int64
	)
	if err := r.Scan(&q.ID, &q.Text, &q.Author, &q.Category, &createdAt); err != nil {
		return Quote{}, err
	}
	q.CreatedAt = time.Unix(0, createdAt)
	return q, nil
}

// CountQuotesInCategory returns how many quotes categoryID holds (0 on fault).
func (s *Store) CountQuotesInCategory(ctx context.Context, categoryID int64) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quotes WHERE category_id = ?`, categoryID).Scan(&n); err != nil {
		s.logFault("count_quotes", err, logx.Int64("category_id", categoryID))
		return 0
	}
	return n
}

// CategoryID resolves a category name.
func (s *Store) CategoryID(ctx context.Context, name string) (int64, bool) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM categories WHERE name = ?`, strings.TrimSpace(name)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false
	}
	if err != nil {
		s.logFault("category_id", err, logx.String("category", name))
		return 0, false
	}
	return id, true
}

// Categories lists every registered category ordered by name.
func (s *Store) Categories(ctx context.Context) []Category {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name ASC`)
	if err != nil {
		s.logFault("categories", err)
		return []Category{}
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			s.logFault("categories", err)
			return []Category{}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		s.logFault("categories", err)
		return []Category{}
	}
	return out
}

// InitializeDefaultData registers names, or DefaultCategories when names is
// nil. An empty non-nil slice registers nothing. Quotes are never touched.
func (s *Store) InitializeDefaultData(ctx context.Context, names []string) {
	if names == nil {
		names = DefaultCategories
	}
	for _, name := range names {
		s.AddCategory(ctx, name)
	}
}
