package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quiztake-service/internal/domain"

	"github.com/google/uuid"
)

// UserStore persists optional user accounts and their login tokens.
type UserStore interface {
	Create(ctx context.Context, user *domain.User) error
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	SetLoginToken(ctx context.Context, userID, token string) error
	FindByLoginToken(ctx context.Context, token string) (*domain.User, error)
}

// UserService implements the account endpoints. Passwords are compared
// verbatim, preserving the behavior of the system this replaces; hardening
// is an explicit non-goal.
type UserService struct {
	users    UserStore
	sessions SessionStore
}

func NewUserService(users UserStore, sessions SessionStore) *UserService {
	return &UserService{users: users, sessions: sessions}
}

// Register creates an account. Duplicate usernames fail with ErrUserExists.
func (s *UserService) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.ErrInvalidPayload
	}
	user := &domain.User{
		ID:       uuid.NewString(),
		Username: username,
		Password: password,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Login checks the credentials and mints a fresh opaque login token.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", domain.ErrInvalidPayload
	}
	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", domain.ErrInvalidCredentials
		}
		return "", fmt.Errorf("find user: %w", err)
	}
	if user.Password != password {
		return "", domain.ErrInvalidCredentials
	}
	token := uuid.NewString()
	if err := s.users.SetLoginToken(ctx, user.ID, token); err != nil {
		return "", fmt.Errorf("store login token: %w", err)
	}
	return token, nil
}

// ResultsFor lists the sessions linked to the account behind a login token.
func (s *UserService) ResultsFor(ctx context.Context, loginToken string) ([]domain.SessionSummary, error) {
	if loginToken == "" {
		return nil, domain.ErrInvalidCredentials
	}
	user, err := s.users.FindByLoginToken(ctx, loginToken)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user by token: %w", err)
	}
	return s.sessions.ListByUser(ctx, user.ID)
}
