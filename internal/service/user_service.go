package service

import (
	"context"

	"sfcollab/internal/domain"
	"sfcollab/internal/presence"
)

// UserService provides user-related operations.
type UserService struct {
	users    domain.UserDirectory
	presence presence.Registry
}

func NewUserService(users domain.UserDirectory, registry presence.Registry) *UserService {
	return &UserService{users: users, presence: registry}
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *UserService) ListActive(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	return s.users.ListActive(ctx, offset, limit)
}

// ListOnline resolves the registry's online ids to profiles, skipping ids
// with no user record.
func (s *UserService) ListOnline(ctx context.Context) ([]*domain.User, error) {
	ids := s.presence.ListOnline()
	users := make([]*domain.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.users.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if u != nil {
			users = append(users, u)
		}
	}
	return users, nil
}
