package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"quiztake-service/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionStore abstracts how quiz-attempt sessions are persisted (in-memory,
// MongoDB, Postgres). Finalize must be a compare-and-set on the submit time
// still being absent so two concurrent submits cannot both succeed.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, sessionID string) (*domain.Session, error)
	Finalize(ctx context.Context, sessionID string, fin domain.Finalization) error
	List(ctx context.Context, limit int) ([]domain.SessionSummary, error)
	ListByUser(ctx context.Context, userID string) ([]domain.SessionSummary, error)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SubmitListener receives the summary of every finalized session. Delivery
// is best-effort and must never block or fail the submit path.
type SubmitListener interface {
	SessionSubmitted(summary domain.SessionSummary)
}

// Submissions faster than this are flagged as suspicious.
const minHumanDurationMs = 3000

// resultsListLimit caps the unauthenticated admin listing.
const resultsListLimit = 200

// SubmitRequest is a submit payload before answer normalization. Answers is
// the raw decoded JSON array; entries that are not numeric stay nil and
// never score.
type SubmitRequest struct {
	SessionID string
	Token     string
	QuizID    string
	Answers   []any
}

// SessionService owns the session lifecycle state machine: a session is OPEN
// from Start until the first successful Submit closes it; CLOSED is terminal.
type SessionService struct {
	sessions  SessionStore
	quizzes   QuizRepository
	listeners []SubmitListener
	now       func() time.Time
	log       zerolog.Logger
}

func NewSessionService(store SessionStore, quizzes QuizRepository, log zerolog.Logger, listeners ...SubmitListener) *SessionService {
	return &SessionService{
		sessions:  store,
		quizzes:   quizzes,
		listeners: listeners,
		now:       time.Now,
		log:       log,
	}
}

// NewSessionServiceWithClock is test-only for deterministic timestamps.
func NewSessionServiceWithClock(store SessionStore, quizzes QuizRepository, log zerolog.Logger, now func() time.Time, listeners ...SubmitListener) *SessionService {
	s := NewSessionService(store, quizzes, log, listeners...)
	s.now = now
	return s
}

// Start creates an OPEN session for the given quiz. It generates two
// independent unguessable identifiers: the session id used for lookup and
// the token that authorizes every later call on the session.
func (s *SessionService) Start(ctx context.Context, name, quizID, userID string, meta domain.ClientMeta) (domain.StartedSession, error) {
	if quizID == "" {
		return domain.StartedSession{}, domain.ErrInvalidPayload
	}
	if _, err := s.quizzes.GetQuiz(ctx, quizID); err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return domain.StartedSession{}, domain.ErrQuizNotFound
		}
		return domain.StartedSession{}, fmt.Errorf("validate quiz: %w", err)
	}

	session := &domain.Session{
		SessionID: uuid.NewString(),
		Token:     uuid.NewString(),
		QuizID:    quizID,
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		StartTime: s.now().UnixMilli(),
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		s.log.Error().Err(err).Str("quiz", quizID).Msg("persist session failed")
		return domain.StartedSession{}, fmt.Errorf("create session: %w", err)
	}

	s.log.Info().Str("session", session.SessionID).Str("quiz", quizID).Msg("session started")
	return domain.StartedSession{
		SessionID: session.SessionID,
		Token:     session.Token,
		StartTime: session.StartTime,
		Name:      session.Name,
	}, nil
}

// GetStatus is the read-only resume probe. Lookup is by session id alone;
// only TokenValid depends on the supplied token, so a client that lost its
// token can still learn whether the session is worth resuming.
func (s *SessionService) GetStatus(ctx context.Context, sessionID, token string) (domain.SessionStatus, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.SessionStatus{Exists: false}, nil
		}
		return domain.SessionStatus{}, fmt.Errorf("load session: %w", err)
	}
	return domain.SessionStatus{
		Exists:     true,
		Name:       session.Name,
		StartTime:  session.StartTime,
		Submitted:  session.Submitted(),
		SubmitTime: session.SubmitTime,
		DurationMs: session.DurationMs,
		Score:      session.Score,
		Suspicious: session.Suspicious,
		TokenValid: token != "" && token == session.Token,
	}, nil
}

// Submit finalizes a session exactly once. The score is always recomputed
// server-side from the quiz answer key; nothing the client claims about its
// own score is trusted.
func (s *SessionService) Submit(ctx context.Context, req SubmitRequest) (domain.SubmitResult, error) {
	if req.SessionID == "" || req.Token == "" || req.QuizID == "" || req.Answers == nil {
		return domain.SubmitResult{}, domain.ErrInvalidPayload
	}

	session, err := s.sessions.Get(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.SubmitResult{}, domain.ErrSessionNotFound
		}
		return domain.SubmitResult{}, fmt.Errorf("load session: %w", err)
	}
	if session.Token != req.Token {
		return domain.SubmitResult{}, domain.ErrInvalidToken
	}
	if session.Submitted() {
		return domain.SubmitResult{}, domain.ErrAlreadySubmitted
	}

	quiz, err := s.quizzes.GetQuiz(ctx, req.QuizID)
	if err != nil {
		s.log.Warn().Err(err).Str("quiz", req.QuizID).Msg("question set unavailable at submit")
		return domain.SubmitResult{}, domain.ErrNoQuestions
	}
	if len(req.Answers) != len(quiz.Questions) {
		return domain.SubmitResult{}, domain.ErrAnswersLengthMismatch
	}

	answers := normalizeAnswers(req.Answers)
	score := scoreAnswers(quiz.Questions, answers)

	submitTime := s.now().UnixMilli()
	duration := submitTime - session.StartTime

	fin := domain.Finalization{
		SubmitTime: submitTime,
		DurationMs: duration,
		Score:      score,
		Answers:    answers,
		Suspicious: duration < minHumanDurationMs || identicalAnswers(answers),
	}
	if err := s.sessions.Finalize(ctx, req.SessionID, fin); err != nil {
		if errors.Is(err, domain.ErrAlreadySubmitted) {
			return domain.SubmitResult{}, domain.ErrAlreadySubmitted
		}
		s.log.Error().Err(err).Str("session", req.SessionID).Msg("finalize session failed")
		return domain.SubmitResult{}, fmt.Errorf("finalize session: %w", err)
	}

	summary := domain.SessionSummary{
		SessionID:  session.SessionID,
		QuizID:     session.QuizID,
		Name:       session.Name,
		StartTime:  session.StartTime,
		SubmitTime: submitTime,
		DurationMs: duration,
		Score:      score,
		Suspicious: fin.Suspicious,
	}
	for _, l := range s.listeners {
		l.SessionSubmitted(summary)
	}

	s.log.Info().
		Str("session", session.SessionID).
		Int("score", score).
		Int("total", len(quiz.Questions)).
		Bool("suspicious", fin.Suspicious).
		Msg("session submitted")

	return domain.SubmitResult{
		Score:      score,
		Total:      len(quiz.Questions),
		DurationMs: duration,
		Suspicious: fin.Suspicious,
		Name:       session.Name,
	}, nil
}

// ListResults returns the newest-first admin listing, capped.
func (s *SessionService) ListResults(ctx context.Context) ([]domain.SessionSummary, error) {
	return s.sessions.List(ctx, resultsListLimit)
}

// normalizeAnswers coerces raw JSON entries to option indices. Numbers and
// numeric strings count; anything else becomes nil and never matches.
func normalizeAnswers(raw []any) []*int {
	answers := make([]*int, len(raw))
	for i, v := range raw {
		answers[i] = normalizeAnswer(v)
	}
	return answers
}

func normalizeAnswer(v any) *int {
	switch n := v.(type) {
	case float64:
		idx := int(n)
		if float64(idx) == n {
			return &idx
		}
	case int:
		idx := n
		return &idx
	case string:
		if idx, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return &idx
		}
	}
	return nil
}

func scoreAnswers(questions []domain.Question, answers []*int) int {
	score := 0
	for i, q := range questions {
		if answers[i] != nil && *answers[i] == q.AnswerIndex {
			score++
		}
	}
	return score
}

// identicalAnswers reports whether every submitted value is the same,
// unanswered entries included. A single-answer submission trivially
// qualifies.
func identicalAnswers(answers []*int) bool {
	if len(answers) == 0 {
		return false
	}
	first := answerKey(answers[0])
	for _, a := range answers[1:] {
		if answerKey(a) != first {
			return false
		}
	}
	return true
}

func answerKey(a *int) string {
	if a == nil {
		return "null"
	}
	return strconv.Itoa(*a)
}
