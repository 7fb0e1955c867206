package service

import (
	"context"
	"fmt"

	"github.com/victorhdnz/goghlab-backend/internal/models"
)

// UserSource resolves users, backed by the user repository in production.
type UserSource interface {
	FindByToken(ctx context.Context, token string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

type UserService struct {
	users UserSource
}

func NewUserService(users UserSource) *UserService {
	return &UserService{users: users}
}

// Authenticate resolves an API token to a user. A nil user with a nil error
// means the token is unknown; the caller decides how to surface that.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	user, err := s.users.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}
