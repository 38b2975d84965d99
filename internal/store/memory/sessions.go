package memory

import (
	"context"
	"time"

	"MessagingWebserver/internal/domain"
)

type SessionsStore struct {
	v view
}

func (s *SessionsStore) CreateSession(_ context.Context, userID string, expiresAt time.Time, _, _ string) (string, error) {
	sess := domain.Session{
		ID:        newID(),
		UserID:    userID,
		CreatedAt: s.v.db.now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}
	err := s.v.write(func(d *data) error {
		d.sessions[sess.ID] = sess
		return nil
	})
	if err != nil {
		return "", err
	}
	return sess.ID, nil
}

func (s *SessionsStore) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	var out domain.Session
	err := s.v.read(func(d *data) error {
		sess, ok := d.sessions[sessionID]
		if !ok {
			return domain.ErrNotFound
		}
		out = sess
		return nil
	})
	return out, err
}

func (s *SessionsStore) RevokeSession(_ context.Context, sessionID string, when time.Time) error {
	return s.v.write(func(d *data) error {
		sess, ok := d.sessions[sessionID]
		if !ok || sess.RevokedAt != nil {
			return nil
		}
		t := when.UTC()
		sess.RevokedAt = &t
		d.sessions[sessionID] = sess
		return nil
	})
}
