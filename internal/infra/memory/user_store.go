package memory

import (
	"context"
	"sync"

	"quiztake-service/internal/domain"
)

// UserStore is an in-memory implementation of app.UserStore.
type UserStore struct {
	mu       sync.RWMutex
	byName   map[string]*domain.User
	byID     map[string]*domain.User
	tokenFor map[string]string // login token -> user id
}

func NewUserStore() *UserStore {
	return &UserStore{
		byName:   make(map[string]*domain.User),
		byID:     make(map[string]*domain.User),
		tokenFor: make(map[string]string),
	}
}

func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byName[user.Username]; ok {
		return domain.ErrUserExists
	}
	stored := *user
	s.byName[user.Username] = &stored
	s.byID[user.ID] = &stored
	return nil
}

func (s *UserStore) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byName[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *UserStore) SetLoginToken(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if user.LoginToken != "" {
		delete(s.tokenFor, user.LoginToken)
	}
	user.LoginToken = token
	s.tokenFor[token] = userID
	return nil
}

func (s *UserStore) FindByLoginToken(_ context.Context, token string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.tokenFor[token]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *s.byID[userID]
	return &copied, nil
}
