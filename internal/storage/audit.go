package storage

import (
	"context"
	"strings"

	logx "quotebot/pkg/logx"
)

// AppendAudit stores one audit record.
func (s *Store) AppendAudit(ctx context.Context, e AuditEntry) bool {
	if e.At.IsZero() {
		e.At = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor_id, actor_username, chat_id, thread_id, action, target, ok, err, took_ms)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		e.At.UnixNano(), e.ActorID, nullStr(e.ActorUsername), e.ChatID, e.ThreadID,
		e.Action, e.Target, e.OK, nullStr(e.Error), e.TookMS,
	)
	if err != nil {
		s.logFault("append_audit", err, logx.String("action", e.Action))
		return false
	}
	return true
}

// CountAudit returns the number of audit records for action ("" for all).
func (s *Store) CountAudit(ctx context.Context, action string) int {
	query, args := `SELECT COUNT(*) FROM audit`, []any{}
	if action != "" {
		query, args = query+` WHERE action = ?`, append(args, action)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		s.logFault("count_audit", err)
		return 0
	}
	return n
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
