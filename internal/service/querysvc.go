package service

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"MessagingWebserver/internal/domain"
)

const (
	suggestionTarget         = 10
	defaultFanoutParallelism = 8
)

// QueryService assembles read-side views that span several stores.
type QueryService struct {
	Users       UsersStore
	Friendships FriendshipsStore
	Messages    MessagesStore
	// Parallelism bounds concurrent store reads; zero means 8.
	Parallelism int
}

// FriendsWithLastMessage lists every accepted friend of userID with the
// newest normal message exchanged with them.
func (s *QueryService) FriendsWithLastMessage(ctx context.Context, userID string) ([]domain.Conversation, error) {
	friends, err := s.Users.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Conversation, len(friends))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism())
	for i, f := range friends {
		out[i].Friend = f
		g.Go(func() error {
			m, err := s.Messages.LastNormalBetween(gctx, userID, f.ID)
			if errorIsNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			out[i].LastMessage = &m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Suggestions ranks users who are not yet related to userID by the number of
// friends they share with userID, then pads with arbitrary other users up to
// ten. Self, friends and anyone with a pending request either way are never
// suggested.
func (s *QueryService) Suggestions(ctx context.Context, userID string) ([]domain.UserSummary, error) {
	friendIDs, err := s.Users.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	pendingIDs, err := s.Friendships.ListPendingCounterparts(ctx, userID)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(friendIDs)+len(pendingIDs)+1)
	excluded[userID] = true
	for _, id := range friendIDs {
		excluded[id] = true
	}
	for _, id := range pendingIDs {
		excluded[id] = true
	}

	mutual := make(map[string]int)
	for _, friendID := range friendIDs {
		fof, err := s.Users.ListFriendIDs(ctx, friendID)
		if err != nil {
			return nil, err
		}
		for _, id := range fof {
			if !excluded[id] {
				mutual[id]++
			}
		}
	}

	ranked := make([]string, 0, len(mutual))
	for id := range mutual {
		ranked = append(ranked, id)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if mutual[ranked[i]] != mutual[ranked[j]] {
			return mutual[ranked[i]] > mutual[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	if len(ranked) > suggestionTarget {
		ranked = ranked[:suggestionTarget]
	}

	out := make([]domain.UserSummary, 0, suggestionTarget)
	for _, id := range ranked {
		u, err := s.Users.GetUserByID(ctx, id)
		if errorIsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, u.Summary())
		excluded[id] = true
	}

	if len(out) < suggestionTarget {
		skip := make([]string, 0, len(excluded))
		for id := range excluded {
			skip = append(skip, id)
		}
		sort.Strings(skip)
		others, err := s.Users.ListUsers(ctx, skip, suggestionTarget-len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, others...)
	}
	return out, nil
}

func (s *QueryService) parallelism() int {
	if s.Parallelism > 0 {
		return s.Parallelism
	}
	return defaultFanoutParallelism
}
