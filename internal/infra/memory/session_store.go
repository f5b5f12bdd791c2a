package memory

import (
	"context"
	"sort"
	"sync"

	"quiztake-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore. Finalize
// is serialized under the store lock, so it behaves as a compare-and-set on
// the submit time being absent.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
	}
}

func (s *SessionStore) Create(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *session
	s.sessions[session.SessionID] = &stored
	return nil
}

func (s *SessionStore) Get(_ context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *SessionStore) Finalize(_ context.Context, sessionID string, fin domain.Finalization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.Submitted() {
		return domain.ErrAlreadySubmitted
	}
	session.SubmitTime = fin.SubmitTime
	session.DurationMs = fin.DurationMs
	session.Score = fin.Score
	session.Answers = fin.Answers
	session.Suspicious = fin.Suspicious
	return nil
}

func (s *SessionStore) List(_ context.Context, limit int) ([]domain.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]domain.SessionSummary, 0, len(s.sessions))
	for _, session := range s.sessions {
		summaries = append(summaries, session.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime > summaries[j].StartTime
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (s *SessionStore) ListByUser(_ context.Context, userID string) ([]domain.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]domain.SessionSummary, 0)
	for _, session := range s.sessions {
		if session.UserID == userID {
			summaries = append(summaries, session.Summary())
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].StartTime > summaries[j].StartTime
	})
	return summaries, nil
}
