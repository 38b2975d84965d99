package service

import (
	"context"
	"strings"

	"MessagingWebserver/internal/domain"
)

type UsersService struct {
	Store UsersStore
}

// Search matches q as a case-insensitive substring of usernames.
func (s *UsersService) Search(ctx context.Context, q string, limit int) ([]domain.UserSummary, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, domain.NewValidationError(map[string]string{"q": "required"})
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	out, err := s.Store.SearchUsers(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.UserSummary{}
	}
	return out, nil
}
