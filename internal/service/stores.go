package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"MessagingWebserver/internal/domain"
)

type UsersStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.UserWithPassword, error)
	SetLastLogin(ctx context.Context, userID string, when time.Time) error
	SearchUsers(ctx context.Context, q string, limit int) ([]domain.UserSummary, error)
	ListUsers(ctx context.Context, excludeIDs []string, limit int) ([]domain.UserSummary, error)

	// AddFriends records userA and userB in each other's friends set. It is
	// idempotent.
	AddFriends(ctx context.Context, userA, userB string) error
	ListFriends(ctx context.Context, userID string) ([]domain.UserSummary, error)
	ListFriendIDs(ctx context.Context, userID string) ([]string, error)
}

type SessionsStore interface {
	CreateSession(ctx context.Context, userID string, expiresAt time.Time, ip, userAgent string) (string, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	RevokeSession(ctx context.Context, sessionID string, when time.Time) error
}

type FriendshipsStore interface {
	// Find returns the relationship between userA and userB regardless of
	// which one is the requester.
	Find(ctx context.Context, userA, userB string) (domain.Friendship, error)
	Get(ctx context.Context, id string) (domain.Friendship, error)
	// Create inserts a pending friendship. It returns ErrFriendshipExists when
	// any record already exists for the unordered pair.
	Create(ctx context.Context, requesterID, recipientID string, at time.Time) (domain.Friendship, error)
	// Resolve moves a pending friendship to status. It returns ErrInvalidState
	// when the record is no longer pending.
	Resolve(ctx context.Context, id string, status domain.FriendshipStatus, at time.Time) (domain.Friendship, error)
	ListPending(ctx context.Context, userID string) (domain.PendingRequests, error)
	ListPendingCounterparts(ctx context.Context, userID string) ([]string, error)
}

type MessagesStore interface {
	Insert(ctx context.Context, senderID, receiverID, content string, status domain.MessageStatus, at time.Time) (domain.Message, error)
	Get(ctx context.Context, id string) (domain.Message, error)
	UpdateContent(ctx context.Context, id, content string) (domain.Message, error)
	Delete(ctx context.Context, id string) error
	AddDeletedFor(ctx context.Context, id, userID string) error
	// PromoteRequests flips every request-status message from senderID to
	// receiverID to normal and returns how many changed.
	PromoteRequests(ctx context.Context, senderID, receiverID string) (int64, error)
	ListBetween(ctx context.Context, userA, userB string, filter domain.HistoryFilter) ([]domain.Message, error)
	ListIncomingRequests(ctx context.Context, userID string) ([]domain.IncomingRequest, error)
	LastNormalBetween(ctx context.Context, userA, userB string) (domain.Message, error)
}

// Repos groups the stores that take part in one unit of work.
type Repos struct {
	Users       UsersStore
	Friendships FriendshipsStore
	Messages    MessagesStore
}

// TxRunner runs fn with stores bound to a single transaction. Either every
// write made through r is applied or none is.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
}

// PairLocker serialises writers touching the same unordered user pair.
type PairLocker interface {
	LockPair(ctx context.Context, userA, userB string) (unlock func(), err error)
}

func withPairLock(ctx context.Context, locks PairLocker, userA, userB string, fn func() error) error {
	if locks == nil {
		return fn()
	}
	unlock, err := locks.LockPair(ctx, userA, userB)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func nowFunc(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func errorIsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
