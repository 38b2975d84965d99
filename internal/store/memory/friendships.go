package memory

import (
	"context"
	"sort"
	"time"

	"MessagingWebserver/internal/domain"
)

type FriendshipsStore struct {
	v view
}

func (s *FriendshipsStore) Find(_ context.Context, userA, userB string) (domain.Friendship, error) {
	var out domain.Friendship
	err := s.v.read(func(d *data) error {
		id, ok := d.pairs[pairKey(userA, userB)]
		if !ok {
			return domain.ErrNotFound
		}
		out = d.friendships[id]
		return nil
	})
	return out, err
}

func (s *FriendshipsStore) Get(_ context.Context, id string) (domain.Friendship, error) {
	var out domain.Friendship
	err := s.v.read(func(d *data) error {
		f, ok := d.friendships[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = f
		return nil
	})
	return out, err
}

func (s *FriendshipsStore) Create(_ context.Context, requesterID, recipientID string, at time.Time) (domain.Friendship, error) {
	var out domain.Friendship
	err := s.v.write(func(d *data) error {
		key := pairKey(requesterID, recipientID)
		if _, ok := d.pairs[key]; ok {
			return domain.ErrFriendshipExists
		}
		at = at.UTC()
		f := domain.Friendship{
			ID:          newID(),
			RequesterID: requesterID,
			RecipientID: recipientID,
			Status:      domain.FriendshipPending,
			CreatedAt:   at,
			UpdatedAt:   at,
		}
		d.friendships[f.ID] = f
		d.pairs[key] = f.ID
		out = f
		return nil
	})
	return out, err
}

func (s *FriendshipsStore) Resolve(_ context.Context, id string, status domain.FriendshipStatus, at time.Time) (domain.Friendship, error) {
	var out domain.Friendship
	err := s.v.write(func(d *data) error {
		f, ok := d.friendships[id]
		if !ok {
			return domain.ErrNotFound
		}
		if f.Status != domain.FriendshipPending {
			return domain.ErrInvalidState
		}
		f.Status = status
		f.UpdatedAt = at.UTC()
		d.friendships[id] = f
		out = f
		return nil
	})
	return out, err
}

func (s *FriendshipsStore) ListPending(_ context.Context, userID string) (domain.PendingRequests, error) {
	out := domain.PendingRequests{
		Incoming: []domain.FriendRequest{},
		Outgoing: []domain.FriendRequest{},
	}
	err := s.v.read(func(d *data) error {
		for _, f := range d.friendships {
			if f.Status != domain.FriendshipPending || !f.Involves(userID) {
				continue
			}
			other, ok := d.users[f.Counterpart(userID)]
			if !ok {
				continue
			}
			req := domain.FriendRequest{Friendship: f, User: other.Summary()}
			if f.RecipientID == userID {
				out.Incoming = append(out.Incoming, req)
			} else {
				out.Outgoing = append(out.Outgoing, req)
			}
		}
		return nil
	})
	if err != nil {
		return domain.PendingRequests{}, err
	}
	sortRequests(out.Incoming)
	sortRequests(out.Outgoing)
	return out, nil
}

func (s *FriendshipsStore) ListPendingCounterparts(_ context.Context, userID string) ([]string, error) {
	var out []string
	err := s.v.read(func(d *data) error {
		for _, f := range d.friendships {
			if f.Status == domain.FriendshipPending && f.Involves(userID) {
				out = append(out, f.Counterpart(userID))
			}
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

// sortRequests orders newest first.
func sortRequests(r []domain.FriendRequest) {
	sort.Slice(r, func(i, j int) bool {
		if !r[i].CreatedAt.Equal(r[j].CreatedAt) {
			return r[i].CreatedAt.After(r[j].CreatedAt)
		}
		return r[i].ID < r[j].ID
	})
}
