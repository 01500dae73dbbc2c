package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/digitpad/internal/service"
)

// StartSession records a new session.
func (s *SQLiteStorage) StartSession(ctx context.Context, session *service.SessionRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSession(session); err != nil {
		return err
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	session.StartedAt = session.StartedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, source, backend, model, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		session.ID, session.Source, session.Backend, session.Model, session.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// RecentSessions returns up to limit sessions, newest first.
func (s *SQLiteStorage) RecentSessions(ctx context.Context, limit int) ([]service.SessionRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, backend, model, started_at
		FROM sessions
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []service.SessionRecord
	for rows.Next() {
		var sr service.SessionRecord
		if err := rows.Scan(&sr.ID, &sr.Source, &sr.Backend, &sr.Model, &sr.StartedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, sr)
	}
	return sessions, rows.Err()
}
