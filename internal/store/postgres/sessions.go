package postgres

import (
	"context"
	"fmt"
	"time"

	"MessagingWebserver/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionsStore struct {
	db dbtx
}

func NewSessionsStore(pool *pgxpool.Pool) *SessionsStore {
	return &SessionsStore{db: pool}
}

func (s *SessionsStore) CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
	var id string
	err := s.db.QueryRow(ctx,
		`INSERT INTO sessions (user_id, expires_at, ip, user_agent) VALUES ($1, $2, $3, $4) RETURNING id::text`,
		userID, expiresAt, nullIfEmpty(ip), nullIfEmpty(userAgent),
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

// GetSession returns the row as stored; expiry and revocation are judged by
// the caller against its own clock.
func (s *SessionsStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	var sess domain.Session
	err := s.db.QueryRow(ctx,
		`SELECT id::text, user_id::text, created_at, expires_at, revoked_at FROM sessions WHERE id = $1`,
		sessionID,
	).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt, &sess.RevokedAt)
	if err != nil {
		if isNoRows(err) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// RevokeSession is idempotent: unknown or already revoked sessions are left alone.
func (s *SessionsStore) RevokeSession(ctx context.Context, sessionID string, when time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`, sessionID, when)
	if err != nil && !isNoRows(err) {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
