package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-library-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-library-go/internal/user/entity"
)

// Service logs users in and resolves bearer tokens back to accounts.
type Service struct {
	users  *user.Service
	tokens TokenIssuer
	logger *zap.SugaredLogger
}

func NewService(users *user.Service, tokens TokenIssuer, logger *zap.SugaredLogger) *Service {
	return &Service{users: users, tokens: tokens, logger: logger}
}

// LoginResult is returned on successful login.
type LoginResult struct {
	Token     string      `json:"token"`
	Email     string      `json:"email"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	Role      entity.Role `json:"role"`
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(u.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("user logged in", "user_id", u.ID, "name", u.FullName())
	return &LoginResult{Token: token, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role}, nil
}

// Register creates a self-service account. Role and status cannot be
// chosen: new accounts are ACTIVE patrons.
func (s *Service) Register(ctx context.Context, u *entity.User, password string) (*entity.User, error) {
	u.Role = entity.RolePatron
	u.Status = entity.StatusActive
	return s.users.Create(ctx, u, password)
}

// ValidateToken returns the ACTIVE user a token was issued to.
func (s *Service) ValidateToken(ctx context.Context, token string) (*entity.User, error) {
	id, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.Unauthorized("unknown user")
	}
	if err != nil {
		return nil, err
	}
	if u.Status != entity.StatusActive {
		return nil, apperr.Unauthorized("account is " + string(u.Status))
	}
	return u, nil
}
