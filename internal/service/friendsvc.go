package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"MessagingWebserver/internal/domain"
)

type FriendsService struct {
	Users       UsersStore
	Friendships FriendshipsStore
	Tx          TxRunner
	Locks       PairLocker
	Logger      *slog.Logger
	Now         func() time.Time
}

func (s *FriendsService) ListFriends(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	out, err := s.Users.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.UserSummary{}
	}
	return out, nil
}

func (s *FriendsService) ListPending(ctx context.Context, userID string) (domain.PendingRequests, error) {
	out, err := s.Friendships.ListPending(ctx, userID)
	if err != nil {
		return domain.PendingRequests{}, err
	}
	if out.Incoming == nil {
		out.Incoming = []domain.FriendRequest{}
	}
	if out.Outgoing == nil {
		out.Outgoing = []domain.FriendRequest{}
	}
	return out, nil
}

// CreateRequest opens a pending friendship from requesterID to the named
// user. Any existing relationship between the two, whatever its status,
// blocks a new one.
func (s *FriendsService) CreateRequest(ctx context.Context, requesterID, recipientUsername string) (domain.Friendship, error) {
	recipientUsername = strings.TrimSpace(recipientUsername)
	if recipientUsername == "" {
		return domain.Friendship{}, domain.NewValidationError(map[string]string{"username": "required"})
	}

	target, err := s.Users.GetUserByUsername(ctx, recipientUsername)
	if err != nil {
		return domain.Friendship{}, err
	}
	if target.ID == requesterID {
		return domain.Friendship{}, domain.NewValidationError(map[string]string{"username": "cannot friend yourself"})
	}

	var out domain.Friendship
	err = withPairLock(ctx, s.Locks, requesterID, target.ID, func() error {
		return s.Tx.WithinTx(ctx, func(ctx context.Context, r Repos) error {
			_, err := r.Friendships.Find(ctx, requesterID, target.ID)
			switch {
			case err == nil:
				return domain.ErrFriendshipExists
			case !errors.Is(err, domain.ErrNotFound):
				return err
			}

			out, err = r.Friendships.Create(ctx, requesterID, target.ID, nowFunc(s.Now))
			return err
		})
	})
	if err != nil {
		return domain.Friendship{}, err
	}

	loggerOrDefault(s.Logger).Debug("friend request created", "friendship_id", out.ID, "requester_id", requesterID, "recipient_id", target.ID)
	return out, nil
}

// Accept lets the recipient of a pending request confirm it.
func (s *FriendsService) Accept(ctx context.Context, actingUserID, friendshipID string) (domain.Friendship, error) {
	return s.resolve(ctx, actingUserID, friendshipID, domain.FriendshipAccepted)
}

// Reject lets the recipient of a pending request decline it. Rejection is
// terminal.
func (s *FriendsService) Reject(ctx context.Context, actingUserID, friendshipID string) (domain.Friendship, error) {
	return s.resolve(ctx, actingUserID, friendshipID, domain.FriendshipRejected)
}

func (s *FriendsService) resolve(ctx context.Context, actingUserID, friendshipID string, to domain.FriendshipStatus) (domain.Friendship, error) {
	friendshipID = strings.TrimSpace(friendshipID)
	if friendshipID == "" {
		return domain.Friendship{}, domain.NewValidationError(map[string]string{"id": "required"})
	}

	f, err := s.Friendships.Get(ctx, friendshipID)
	if err != nil {
		return domain.Friendship{}, err
	}

	var out domain.Friendship
	err = withPairLock(ctx, s.Locks, f.RequesterID, f.RecipientID, func() error {
		return s.Tx.WithinTx(ctx, func(ctx context.Context, r Repos) error {
			cur, err := r.Friendships.Get(ctx, friendshipID)
			if err != nil {
				return err
			}
			if cur.RecipientID != actingUserID {
				return domain.ErrForbidden
			}
			if cur.Status != domain.FriendshipPending {
				return domain.ErrInvalidState
			}

			now := nowFunc(s.Now)
			if to == domain.FriendshipAccepted {
				out, err = acceptFriendship(ctx, r, cur, now)
				return err
			}
			out, err = r.Friendships.Resolve(ctx, cur.ID, to, now)
			return err
		})
	})
	if err != nil {
		return domain.Friendship{}, err
	}

	loggerOrDefault(s.Logger).Info("friend request resolved", "friendship_id", out.ID, "status", out.Status)
	return out, nil
}

// acceptFriendship is the accepted transition shared by the explicit accept
// and the reply path. It must run inside a transaction: the status change,
// both friends sets and the promotion of the requester's pending request
// messages land together.
func acceptFriendship(ctx context.Context, r Repos, f domain.Friendship, now time.Time) (domain.Friendship, error) {
	out, err := r.Friendships.Resolve(ctx, f.ID, domain.FriendshipAccepted, now)
	if err != nil {
		return domain.Friendship{}, err
	}
	if err := r.Users.AddFriends(ctx, f.RequesterID, f.RecipientID); err != nil {
		return domain.Friendship{}, err
	}
	if _, err := r.Messages.PromoteRequests(ctx, f.RequesterID, f.RecipientID); err != nil {
		return domain.Friendship{}, err
	}
	return out, nil
}
