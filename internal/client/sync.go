package client

import (
	"context"
	"errors"
	"strings"
	"time"

	"quiztake-service/internal/domain"

	"github.com/rs/zerolog"
)

// ResumeAction tells the caller what to do with locally saved attempt state.
type ResumeAction int

const (
	// ResumeNone means nothing usable is cached for this quiz.
	ResumeNone ResumeAction = iota
	// ResumeStartFresh means stale local state was discarded; start over.
	ResumeStartFresh
	// ResumePrompt means the server confirmed the session is still open.
	ResumePrompt
	// ResumePromptLocal means the server was unreachable and the decision
	// rests on local clocks alone.
	ResumePromptLocal
	// ResumeSubmitNow means the time budget is exhausted; submit immediately
	// with whatever answers are cached.
	ResumeSubmitNow
	// ResumeConflict means the server knows the session but rejected our
	// token. The caller decides whether to discard or abort.
	ResumeConflict
)

// ResumeDecision is the outcome of reconciling local state with the server.
type ResumeDecision struct {
	Action    ResumeAction
	Offline   bool
	Remaining time.Duration
	Session   SessionRecord
	Answers   []*int
}

// Result is a submit outcome. Offline marks a score computed locally because
// the server never confirmed it; such scores are provisional.
type Result struct {
	domain.SubmitResult
	Offline bool
}

// Synchronizer reconciles a local attempt mirror with the server: it decides
// whether saved state can be resumed, keeps the mirror current, and falls
// back to local scoring when a submit cannot reach the server.
type Synchronizer struct {
	api   *APIClient
	cache *Cache
	now   func() time.Time
	log   zerolog.Logger
}

func NewSynchronizer(api *APIClient, cache *Cache, log zerolog.Logger) *Synchronizer {
	return &Synchronizer{api: api, cache: cache, now: time.Now, log: log}
}

// Resume inspects the cached session for quizID and classifies it. The server
// is consulted when reachable; its answer always wins over local clocks.
func (s *Synchronizer) Resume(ctx context.Context, quizID string, questionCount int) ResumeDecision {
	rec, ok := s.cache.LoadSession()
	if !ok || rec.QuizID != quizID {
		return ResumeDecision{Action: ResumeNone}
	}
	answers, _ := s.cache.LoadAnswers(quizID, questionCount)

	if rec.SessionID == "" {
		// Attempt started offline; there is no server record to consult.
		return s.localDecision(rec, answers)
	}

	status, err := s.api.Status(ctx, rec.SessionID, rec.Token)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			s.log.Warn().Int("status", apiErr.Status).Str("kind", apiErr.Kind).Msg("session probe rejected")
		} else {
			s.log.Warn().Err(err).Msg("server unreachable during resume")
		}
		return s.localDecision(rec, answers)
	}

	if !status.Exists || status.Submitted {
		s.DiscardLocal(quizID)
		return ResumeDecision{Action: ResumeStartFresh}
	}
	if !status.TokenValid {
		return ResumeDecision{Action: ResumeConflict, Session: rec}
	}

	remaining := time.Duration(rec.TotalTimeSeconds)*time.Second -
		time.Duration(s.now().UnixMilli()-status.StartTime)*time.Millisecond
	if remaining <= 0 {
		return ResumeDecision{Action: ResumeSubmitNow, Session: rec, Answers: answers}
	}
	return ResumeDecision{Action: ResumePrompt, Remaining: remaining, Session: rec, Answers: answers}
}

func (s *Synchronizer) localDecision(rec SessionRecord, answers []*int) ResumeDecision {
	remaining := time.Duration(rec.TotalTimeSeconds)*time.Second -
		time.Duration(s.now().UnixMilli()-rec.StartTime)*time.Millisecond
	if remaining <= 0 {
		return ResumeDecision{Action: ResumeSubmitNow, Offline: true, Session: rec, Answers: answers}
	}
	return ResumeDecision{Action: ResumePromptLocal, Offline: true, Remaining: remaining, Session: rec, Answers: answers}
}

// StartSession creates a server session and persists its identity locally.
// If the server cannot be reached the attempt still starts, purely offline.
func (s *Synchronizer) StartSession(ctx context.Context, name, quizID, userID string, totalTime time.Duration) (SessionRecord, bool, error) {
	rec := SessionRecord{
		QuizID:           quizID,
		StartTime:        s.now().UnixMilli(),
		TotalTimeSeconds: int(totalTime / time.Second),
	}
	offline := false

	started, err := s.api.Start(ctx, name, quizID, userID)
	switch {
	case err == nil:
		rec.SessionID = started.SessionID
		rec.Token = started.Token
	default:
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return SessionRecord{}, false, err
		}
		s.log.Warn().Err(err).Msg("server unreachable; starting offline")
		offline = true
	}

	if err := s.cache.PersistSession(rec); err != nil {
		s.log.Warn().Err(err).Msg("persist session failed")
	}
	if name = strings.TrimSpace(name); name != "" {
		s.cache.SaveName(name)
	}
	return rec, offline, nil
}

// SaveProgress mirrors the current answer sheet.
func (s *Synchronizer) SaveProgress(quizID string, answers []*int) {
	s.cache.SaveAnswers(quizID, answers)
}

// Submit sends the answer sheet to the server. On success the local mirror is
// cleared. A network-level failure (or an attempt that was offline from the
// start) falls back to scoring locally against the quiz's answer key; a
// server rejection is returned as-is.
func (s *Synchronizer) Submit(ctx context.Context, quiz domain.Quiz, rec SessionRecord, answers []*int) (Result, error) {
	if rec.SessionID == "" {
		return s.submitLocally(quiz, rec, answers), nil
	}

	result, err := s.api.Submit(ctx, rec.SessionID, rec.Token, quiz.ID, answers)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return Result{}, err
		}
		s.log.Warn().Err(err).Msg("server unreachable; scoring locally")
		return s.submitLocally(quiz, rec, answers), nil
	}

	s.cache.ClearAll()
	return Result{SubmitResult: result}, nil
}

func (s *Synchronizer) submitLocally(quiz domain.Quiz, rec SessionRecord, answers []*int) Result {
	duration := s.now().UnixMilli() - rec.StartTime
	if duration < 0 {
		duration = 0
	}
	return Result{
		Offline: true,
		SubmitResult: domain.SubmitResult{
			Score:      ScoreLocally(quiz, answers),
			Total:      len(quiz.Questions),
			DurationMs: duration,
		},
	}
}

// DiscardLocal drops the cached session and answer sheet for a quiz.
func (s *Synchronizer) DiscardLocal(quizID string) {
	s.cache.ClearSession()
	s.cache.ClearAnswers(quizID)
}

// ScoreLocally grades an answer sheet against the quiz's answer key. An
// unanswered question never scores.
func ScoreLocally(quiz domain.Quiz, answers []*int) int {
	score := 0
	for i, q := range quiz.Questions {
		if i >= len(answers) {
			break
		}
		if answers[i] != nil && *answers[i] == q.AnswerIndex {
			score++
		}
	}
	return score
}
