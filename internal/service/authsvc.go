package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"MessagingWebserver/internal/auth"
	"MessagingWebserver/internal/domain"
)

type AuthService struct {
	Users      UsersStore
	Sessions   SessionsStore
	SessionTTL time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

// Register creates the account and opens a first session for it.
func (s *AuthService) Register(ctx context.Context, username, password, ip, userAgent string) (domain.User, string, error) {
	username = strings.TrimSpace(username)

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", err
	}

	u, err := s.Users.CreateUser(ctx, username, passwordHash)
	if err != nil {
		return domain.User{}, "", err
	}

	sessID, err := s.Sessions.CreateSession(ctx, u.ID, nowFunc(s.Now).Add(s.SessionTTL), ip, userAgent)
	if err != nil {
		return domain.User{}, "", err
	}

	return u, sessID, nil
}

// Authenticate checks credentials without opening a session.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	u, err := s.Users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			auth.VerifyDecoy(password)
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	ok, err := auth.VerifyPassword(u.PasswordHash, password)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return u.User, nil
}

func (s *AuthService) Login(ctx context.Context, username, password, ip, userAgent string) (domain.User, string, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return domain.User{}, "", err
	}

	now := nowFunc(s.Now)
	sessID, err := s.Sessions.CreateSession(ctx, u.ID, now.Add(s.SessionTTL), ip, userAgent)
	if err != nil {
		return domain.User{}, "", err
	}

	if err := s.Users.SetLastLogin(ctx, u.ID, now); err != nil {
		loggerOrDefault(s.Logger).DebugContext(ctx, "set last login failed", "user_id", u.ID, "err", err)
	}

	return u, sessID, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.Sessions.RevokeSession(ctx, sessionID, nowFunc(s.Now))
}

func (s *AuthService) GetUserForSession(ctx context.Context, sessionID string) (domain.User, error) {
	sess, err := s.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}
	if sess.RevokedAt != nil || !sess.ExpiresAt.After(nowFunc(s.Now)) {
		return domain.User{}, domain.ErrUnauthorized
	}

	u, err := s.Users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthorized
		}
		return domain.User{}, err
	}

	return u, nil
}
