package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"MessagingWebserver/internal/domain"
)

type UsersStore struct {
	v view
}

func (s *UsersStore) CreateUser(_ context.Context, username, passwordHash string) (domain.User, error) {
	var out domain.User
	err := s.v.write(func(d *data) error {
		if _, ok := d.byUsername[username]; ok {
			return domain.ErrUsernameTaken
		}
		now := s.v.db.now().UTC()
		u := &userRec{
			UserWithPassword: domain.UserWithPassword{
				User: domain.User{
					ID:        newID(),
					Username:  username,
					CreatedAt: now,
					UpdatedAt: now,
				},
				PasswordHash: passwordHash,
			},
			friends: map[string]struct{}{},
		}
		d.users[u.ID] = u
		d.byUsername[username] = u.ID
		out = u.User
		return nil
	})
	return out, err
}

func (s *UsersStore) GetUserByID(_ context.Context, id string) (domain.User, error) {
	var out domain.User
	err := s.v.read(func(d *data) error {
		u, ok := d.users[id]
		if !ok {
			return domain.ErrNotFound
		}
		out = u.User
		return nil
	})
	return out, err
}

func (s *UsersStore) GetUserByUsername(_ context.Context, username string) (domain.UserWithPassword, error) {
	var out domain.UserWithPassword
	err := s.v.read(func(d *data) error {
		id, ok := d.byUsername[username]
		if !ok {
			return domain.ErrNotFound
		}
		out = d.users[id].UserWithPassword
		return nil
	})
	return out, err
}

func (s *UsersStore) SetLastLogin(_ context.Context, userID string, when time.Time) error {
	return s.v.write(func(d *data) error {
		u, ok := d.users[userID]
		if !ok {
			return domain.ErrNotFound
		}
		t := when.UTC()
		u.LastLoginAt = &t
		u.UpdatedAt = t
		return nil
	})
}

func (s *UsersStore) SearchUsers(_ context.Context, q string, limit int) ([]domain.UserSummary, error) {
	fold := cases.Fold()
	needle := fold.String(q)

	var out []domain.UserSummary
	err := s.v.read(func(d *data) error {
		for _, u := range d.users {
			if strings.Contains(fold.String(u.Username), needle) {
				out = append(out, u.Summary())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSummaries(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *UsersStore) ListUsers(_ context.Context, excludeIDs []string, limit int) ([]domain.UserSummary, error) {
	skip := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		skip[id] = true
	}

	var out []domain.UserSummary
	err := s.v.read(func(d *data) error {
		for id, u := range d.users {
			if !skip[id] {
				out = append(out, u.Summary())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSummaries(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *UsersStore) AddFriends(_ context.Context, userA, userB string) error {
	return s.v.write(func(d *data) error {
		a, ok := d.users[userA]
		if !ok {
			return domain.ErrNotFound
		}
		b, ok := d.users[userB]
		if !ok {
			return domain.ErrNotFound
		}
		a.friends[userB] = struct{}{}
		b.friends[userA] = struct{}{}
		return nil
	})
}

func (s *UsersStore) ListFriends(_ context.Context, userID string) ([]domain.UserSummary, error) {
	var out []domain.UserSummary
	err := s.v.read(func(d *data) error {
		u, ok := d.users[userID]
		if !ok {
			return nil
		}
		for id := range u.friends {
			if f, ok := d.users[id]; ok {
				out = append(out, f.Summary())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortSummaries(out)
	return out, nil
}

func (s *UsersStore) ListFriendIDs(_ context.Context, userID string) ([]string, error) {
	var out []string
	err := s.v.read(func(d *data) error {
		if u, ok := d.users[userID]; ok {
			for id := range u.friends {
				out = append(out, id)
			}
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}

func sortSummaries(s []domain.UserSummary) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Username != s[j].Username {
			return s[i].Username < s[j].Username
		}
		return s[i].ID < s[j].ID
	})
}
