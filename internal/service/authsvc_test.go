package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"MessagingWebserver/internal/auth"
	"MessagingWebserver/internal/domain"
)

type stubUsersStore struct {
	t *testing.T

	createUserFunc        func(context.Context, string, string) (domain.User, error)
	getUserByIDFunc       func(context.Context, string) (domain.User, error)
	getUserByUsernameFunc func(context.Context, string) (domain.UserWithPassword, error)
	setLastLoginFunc      func(context.Context, string, time.Time) error
}

func (s *stubUsersStore) CreateUser(ctx context.Context, username, passwordHash string) (domain.User, error) {
	if s.createUserFunc != nil {
		return s.createUserFunc(ctx, username, passwordHash)
	}
	s.t.Fatalf("CreateUser called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	if s.getUserByIDFunc != nil {
		return s.getUserByIDFunc(ctx, id)
	}
	s.t.Fatalf("GetUserByID called unexpectedly")
	return domain.User{}, errors.New("unexpected call")
}

func (s *stubUsersStore) GetUserByUsername(ctx context.Context, username string) (domain.UserWithPassword, error) {
	if s.getUserByUsernameFunc != nil {
		return s.getUserByUsernameFunc(ctx, username)
	}
	s.t.Fatalf("GetUserByUsername called unexpectedly")
	return domain.UserWithPassword{}, errors.New("unexpected call")
}

func (s *stubUsersStore) SetLastLogin(ctx context.Context, userID string, when time.Time) error {
	if s.setLastLoginFunc != nil {
		return s.setLastLoginFunc(ctx, userID, when)
	}
	s.t.Fatalf("SetLastLogin called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubUsersStore) SearchUsers(context.Context, string, int) ([]domain.UserSummary, error) {
	s.t.Fatalf("SearchUsers called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubUsersStore) ListUsers(context.Context, []string, int) ([]domain.UserSummary, error) {
	s.t.Fatalf("ListUsers called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubUsersStore) AddFriends(context.Context, string, string) error {
	s.t.Fatalf("AddFriends called unexpectedly")
	return errors.New("unexpected call")
}

func (s *stubUsersStore) ListFriends(context.Context, string) ([]domain.UserSummary, error) {
	s.t.Fatalf("ListFriends called unexpectedly")
	return nil, errors.New("unexpected call")
}

func (s *stubUsersStore) ListFriendIDs(context.Context, string) ([]string, error) {
	s.t.Fatalf("ListFriendIDs called unexpectedly")
	return nil, errors.New("unexpected call")
}

type stubSessionsStore struct {
	t *testing.T

	createSessionFunc func(context.Context, string, time.Time, string, string) (string, error)
	getSessionFunc    func(context.Context, string) (domain.Session, error)
	revokeSessionFunc func(context.Context, string, time.Time) error
}

func (s *stubSessionsStore) CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
	if s.createSessionFunc != nil {
		return s.createSessionFunc(ctx, userID, expiresAt, ip, userAgent)
	}
	s.t.Fatalf("CreateSession called unexpectedly")
	return "", errors.New("unexpected call")
}

func (s *stubSessionsStore) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if s.getSessionFunc != nil {
		return s.getSessionFunc(ctx, sessionID)
	}
	s.t.Fatalf("GetSession called unexpectedly")
	return domain.Session{}, errors.New("unexpected call")
}

func (s *stubSessionsStore) RevokeSession(ctx context.Context, sessionID string, when time.Time) error {
	if s.revokeSessionFunc != nil {
		return s.revokeSessionFunc(ctx, sessionID, when)
	}
	s.t.Fatalf("RevokeSession called unexpectedly")
	return errors.New("unexpected call")
}

func TestAuthServiceLogin(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	users := &stubUsersStore{
		t: t,
		getUserByUsernameFunc: func(_ context.Context, username string) (domain.UserWithPassword, error) {
			if username != "alice" {
				t.Fatalf("unexpected username lookup: %q", username)
			}
			return domain.UserWithPassword{User: domain.User{ID: "user-1", Username: "alice"}, PasswordHash: hash}, nil
		},
		setLastLoginFunc: func(_ context.Context, userID string, when time.Time) error {
			if userID != "user-1" || !when.Equal(now) {
				t.Fatalf("unexpected last login: %s %s", userID, when)
			}
			return nil
		},
	}
	sessions := &stubSessionsStore{
		t: t,
		createSessionFunc: func(_ context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error) {
			if userID != "user-1" {
				t.Fatalf("unexpected user id: %s", userID)
			}
			if !expiresAt.Equal(now.Add(24 * time.Hour)) {
				t.Fatalf("unexpected expiry: %s", expiresAt)
			}
			if ip != "1.2.3.4" || userAgent != "unit-test" {
				t.Fatalf("unexpected client info")
			}
			return "sess-1", nil
		},
	}

	svc := &AuthService{Users: users, Sessions: sessions, SessionTTL: 24 * time.Hour, Now: func() time.Time { return now }}

	user, sessID, err := svc.Login(context.Background(), "  alice ", "correct horse", "1.2.3.4", "unit-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" || sessID != "sess-1" {
		t.Fatalf("unexpected login result: %+v %s", user, sessID)
	}
}

func TestAuthServiceLoginLogsLastLoginFailure(t *testing.T) {
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	var logs bytes.Buffer
	svc := &AuthService{
		Users: &stubUsersStore{
			t: t,
			getUserByUsernameFunc: func(context.Context, string) (domain.UserWithPassword, error) {
				return domain.UserWithPassword{User: domain.User{ID: "user-1", Username: "alice"}, PasswordHash: hash}, nil
			},
			setLastLoginFunc: func(context.Context, string, time.Time) error {
				return errors.New("db down")
			},
		},
		Sessions: &stubSessionsStore{
			t: t,
			createSessionFunc: func(context.Context, string, time.Time, string, string) (string, error) {
				return "sess-1", nil
			},
		},
		SessionTTL: time.Hour,
		Logger:     slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}

	_, sessID, err := svc.Login(context.Background(), "alice", "correct horse", "", "")
	if err != nil {
		t.Fatalf("login should survive a last-login write failure: %v", err)
	}
	if sessID != "sess-1" {
		t.Fatalf("unexpected session id %q", sessID)
	}
	out := logs.String()
	if !strings.Contains(out, "set last login failed") || !strings.Contains(out, "db down") || !strings.Contains(out, "user-1") {
		t.Fatalf("expected last-login failure in logs, got %q", out)
	}
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	hash, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	svc := &AuthService{
		Users: &stubUsersStore{
			t: t,
			getUserByUsernameFunc: func(context.Context, string) (domain.UserWithPassword, error) {
				return domain.UserWithPassword{User: domain.User{ID: "user-1"}, PasswordHash: hash}, nil
			},
		},
		Sessions: &stubSessionsStore{t: t},
	}

	_, _, err = svc.Login(context.Background(), "alice", "battery staple", "", "")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	svc := &AuthService{
		Users: &stubUsersStore{
			t: t,
			getUserByUsernameFunc: func(context.Context, string) (domain.UserWithPassword, error) {
				return domain.UserWithPassword{}, domain.ErrNotFound
			},
		},
		Sessions: &stubSessionsStore{t: t},
	}

	_, _, err := svc.Login(context.Background(), "ghost", "whatever1", "", "")
	if !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthServiceRegisterPropagatesUsernameTaken(t *testing.T) {
	svc := &AuthService{
		Users: &stubUsersStore{
			t: t,
			createUserFunc: func(_ context.Context, username, passwordHash string) (domain.User, error) {
				if username != "alice" || passwordHash == "" {
					t.Fatalf("unexpected create: %q %q", username, passwordHash)
				}
				return domain.User{}, domain.ErrUsernameTaken
			},
		},
		Sessions: &stubSessionsStore{t: t},
	}

	_, _, err := svc.Register(context.Background(), "alice", "password1", "", "")
	if !errors.Is(err, domain.ErrUsernameTaken) {
		t.Fatalf("expected username taken, got %v", err)
	}
}

func TestAuthServiceGetUserForSession(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	revoked := now.Add(-time.Minute)

	tests := []struct {
		name    string
		sess    domain.Session
		sessErr error
		wantErr error
	}{
		{name: "valid", sess: domain.Session{UserID: "user-1", ExpiresAt: now.Add(time.Hour)}},
		{name: "expired", sess: domain.Session{UserID: "user-1", ExpiresAt: now}, wantErr: domain.ErrUnauthorized},
		{name: "revoked", sess: domain.Session{UserID: "user-1", ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}, wantErr: domain.ErrUnauthorized},
		{name: "missing", sessErr: domain.ErrNotFound, wantErr: domain.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &AuthService{
				Users: &stubUsersStore{
					t: t,
					getUserByIDFunc: func(_ context.Context, id string) (domain.User, error) {
						return domain.User{ID: id, Username: "alice"}, nil
					},
				},
				Sessions: &stubSessionsStore{
					t: t,
					getSessionFunc: func(context.Context, string) (domain.Session, error) {
						return tt.sess, tt.sessErr
					},
				},
				Now: func() time.Time { return now },
			}

			u, err := svc.GetUserForSession(context.Background(), "sess-1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if u.ID != "user-1" {
				t.Fatalf("unexpected user: %+v", u)
			}
		})
	}
}
