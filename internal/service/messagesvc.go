package service

import (
	"context"
	"strings"

	"MessagingWebserver/internal/domain"
)

type MessagesService struct {
	Users       UsersStore
	Friendships FriendshipsStore
	Messages    MessagesStore
	Tx          TxRunner
}

// NormalHistory returns the normal messages exchanged with otherUsername,
// oldest first. Only friends may read it.
func (s *MessagesService) NormalHistory(ctx context.Context, userID, otherUsername string) ([]domain.Message, error) {
	other, err := s.resolveOther(ctx, otherUsername)
	if err != nil {
		return nil, err
	}

	f, err := s.Friendships.Find(ctx, userID, other.ID)
	switch {
	case errorIsNotFound(err):
		return nil, domain.ErrForbidden
	case err != nil:
		return nil, err
	case f.Status != domain.FriendshipAccepted:
		return nil, domain.ErrForbidden
	}

	return s.list(ctx, userID, other.ID, domain.HistoryFilter{OnlyNormal: true})
}

// FullHistory returns every message of any status exchanged with
// otherUsername, minus those the caller deleted for themselves.
func (s *MessagesService) FullHistory(ctx context.Context, userID, otherUsername string) ([]domain.Message, error) {
	other, err := s.resolveOther(ctx, otherUsername)
	if err != nil {
		return nil, err
	}
	return s.list(ctx, userID, other.ID, domain.HistoryFilter{ExcludeDeletedFor: userID})
}

func (s *MessagesService) IncomingRequests(ctx context.Context, userID string) ([]domain.IncomingRequest, error) {
	out, err := s.Messages.ListIncomingRequests(ctx, userID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.IncomingRequest{}
	}
	return out, nil
}

// Edit replaces the content of a message the caller sent.
func (s *MessagesService) Edit(ctx context.Context, messageID, userID, content string) (domain.Message, error) {
	content, err := validateContent(content)
	if err != nil {
		return domain.Message{}, err
	}

	var out domain.Message
	err = s.Tx.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		if _, err := ownMessage(ctx, r, messageID, userID); err != nil {
			return err
		}
		out, err = r.Messages.UpdateContent(ctx, messageID, content)
		return err
	})
	if err != nil {
		return domain.Message{}, err
	}
	return out, nil
}

// Unsend removes a message the caller sent for both parties.
func (s *MessagesService) Unsend(ctx context.Context, messageID, userID string) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		if _, err := ownMessage(ctx, r, messageID, userID); err != nil {
			return err
		}
		return r.Messages.Delete(ctx, messageID)
	})
}

// DeleteForMe hides a message from the caller's own view of the history.
// Only the sender may do this; the other party keeps seeing it.
func (s *MessagesService) DeleteForMe(ctx context.Context, messageID, userID string) error {
	return s.Tx.WithinTx(ctx, func(ctx context.Context, r Repos) error {
		m, err := ownMessage(ctx, r, messageID, userID)
		if err != nil {
			return err
		}
		if m.DeletedForUser(userID) {
			return nil
		}
		return r.Messages.AddDeletedFor(ctx, messageID, userID)
	})
}

func (s *MessagesService) resolveOther(ctx context.Context, username string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, domain.NewValidationError(map[string]string{"with": "required"})
	}
	u, err := s.Users.GetUserByUsername(ctx, username)
	if err != nil {
		return domain.User{}, err
	}
	return u.User, nil
}

func (s *MessagesService) list(ctx context.Context, userA, userB string, filter domain.HistoryFilter) ([]domain.Message, error) {
	out, err := s.Messages.ListBetween(ctx, userA, userB, filter)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Message{}
	}
	return out, nil
}

func ownMessage(ctx context.Context, r Repos, messageID, userID string) (domain.Message, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return domain.Message{}, domain.NewValidationError(map[string]string{"id": "required"})
	}
	m, err := r.Messages.Get(ctx, messageID)
	if err != nil {
		return domain.Message{}, err
	}
	if m.SenderID != userID {
		return domain.Message{}, domain.ErrForbidden
	}
	return m, nil
}
