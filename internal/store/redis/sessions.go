// Package redis keeps login sessions in Redis so every server instance sees
// the same sessions and expired ones disappear on their own.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"MessagingWebserver/internal/domain"
)

const sessionKeyPrefix = "dm:session:"

type SessionsStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewSessionsStore(client *redis.Client) *SessionsStore {
	return &SessionsStore{client: client, now: time.Now}
}

func (s *SessionsStore) CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
	id := uuid.NewString()
	key := sessionKeyPrefix + id

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"user_id":    userID,
		"created_at": s.now().UTC().UnixMilli(),
		"expires_at": expiresAt.UTC().UnixMilli(),
		"ip":         ip,
		"user_agent": userAgent,
	})
	pipe.ExpireAt(ctx, key, expiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return id, nil
}

func (s *SessionsStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	if len(fields) == 0 {
		return domain.Session{}, domain.ErrNotFound
	}

	sess := domain.Session{ID: sessionID, UserID: fields["user_id"]}
	if sess.CreatedAt, err = parseMillis(fields["created_at"]); err != nil {
		return domain.Session{}, fmt.Errorf("get session: created_at: %w", err)
	}
	if sess.ExpiresAt, err = parseMillis(fields["expires_at"]); err != nil {
		return domain.Session{}, fmt.Errorf("get session: expires_at: %w", err)
	}
	return sess, nil
}

// RevokeSession deletes the session; a revoked session is indistinguishable
// from one that never existed.
func (s *SessionsStore) RevokeSession(ctx context.Context, sessionID string, _ time.Time) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
