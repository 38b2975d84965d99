package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"MessagingWebserver/internal/domain"
)

const maxContentBytes = 4000

// Gatekeeper classifies every outbound message as a normal conversation
// message or a message request, and applies the friendship transitions the
// classification implies.
type Gatekeeper struct {
	Users  UsersStore
	Tx     TxRunner
	Locks  PairLocker
	Logger *slog.Logger
	Now    func() time.Time
}

// SendMessage delivers content from senderID to the named recipient.
//
//   - accepted friendship: the message is normal.
//   - pending friendship requested by the recipient: the sender is replying,
//     which accepts the friendship, promotes the recipient's earlier request
//     messages to normal, and the new message is normal.
//   - any other pending or rejected friendship: the message is a request.
//   - no relationship: a pending friendship sender -> recipient is opened and
//     the message is a request.
//
// Classification, friendship writes and the insert commit as one unit while
// the pair lock is held.
func (g *Gatekeeper) SendMessage(ctx context.Context, senderID, recipientUsername, content string) (domain.Message, error) {
	content, err := validateContent(content)
	if err != nil {
		return domain.Message{}, err
	}
	recipientUsername = strings.TrimSpace(recipientUsername)
	if recipientUsername == "" {
		return domain.Message{}, domain.NewValidationError(map[string]string{"recipient": "required"})
	}

	recipient, err := g.Users.GetUserByUsername(ctx, recipientUsername)
	if err != nil {
		return domain.Message{}, err
	}
	if recipient.ID == senderID {
		return domain.Message{}, domain.NewValidationError(map[string]string{"recipient": "cannot message yourself"})
	}

	var out domain.Message
	err = withPairLock(ctx, g.Locks, senderID, recipient.ID, func() error {
		return g.Tx.WithinTx(ctx, func(ctx context.Context, r Repos) error {
			now := nowFunc(g.Now)
			status, err := g.classify(ctx, r, senderID, recipient.ID, now)
			if err != nil {
				return err
			}
			out, err = r.Messages.Insert(ctx, senderID, recipient.ID, content, status, now)
			return err
		})
	})
	if err != nil {
		return domain.Message{}, err
	}
	return out, nil
}

func (g *Gatekeeper) classify(ctx context.Context, r Repos, senderID, recipientID string, now time.Time) (domain.MessageStatus, error) {
	log := loggerOrDefault(g.Logger)

	f, err := r.Friendships.Find(ctx, senderID, recipientID)
	if errors.Is(err, domain.ErrNotFound) {
		created, err := r.Friendships.Create(ctx, senderID, recipientID, now)
		if err != nil {
			return "", err
		}
		log.Debug("message request opened friendship", "friendship_id", created.ID, "requester_id", senderID, "recipient_id", recipientID)
		return domain.MessageStatusRequest, nil
	}
	if err != nil {
		return "", err
	}

	switch f.Status {
	case domain.FriendshipAccepted:
		return domain.MessageStatusNormal, nil
	case domain.FriendshipPending:
		if f.RequesterID == recipientID && f.RecipientID == senderID {
			if err := autoAcceptViaReply(ctx, r, f, now); err != nil {
				return "", err
			}
			log.Info("friendship auto-accepted by reply", "friendship_id", f.ID, "accepted_by", senderID)
			return domain.MessageStatusNormal, nil
		}
		return domain.MessageStatusRequest, nil
	default:
		return domain.MessageStatusRequest, nil
	}
}

// autoAcceptViaReply accepts f on behalf of its recipient because they sent a
// message back. Unlike FriendsService.Accept there is no acting-user check:
// the caller has already established that the sender is f's recipient.
func autoAcceptViaReply(ctx context.Context, r Repos, f domain.Friendship, now time.Time) error {
	_, err := acceptFriendship(ctx, r, f, now)
	return err
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return "", domain.NewValidationError(map[string]string{"content": "required"})
	case len(content) > maxContentBytes:
		return "", domain.NewValidationError(map[string]string{"content": "too long"})
	}
	return content, nil
}
