package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"quiztake-service/internal/domain"

	"github.com/uptrace/bun"
)

// SessionStore is the relational implementation of app.SessionStore. The
// finalize guard is the `submit_time IS NULL` predicate: of two racing
// submits only one update reports an affected row.
type SessionStore struct {
	db *bun.DB
}

func NewSessionStore(db *bun.DB) *SessionStore {
	return &SessionStore{db: db}
}

type sessionRow struct {
	bun.BaseModel `bun:"table:sessions"`

	SessionID  string `bun:"session_id,pk"`
	Token      string `bun:"token,notnull"`
	QuizID     string `bun:"quiz_id"`
	UserID     string `bun:"user_id,nullzero"`
	Name       string `bun:"name"`
	StartTime  int64  `bun:"start_time,notnull"`
	SubmitTime *int64 `bun:"submit_time"`
	DurationMs *int64 `bun:"duration_ms"`
	Score      *int   `bun:"score"`
	Answers    []byte `bun:"answers,nullzero"`
	IP         string `bun:"ip"`
	UserAgent  string `bun:"user_agent"`
	Suspicious bool   `bun:"suspicious"`
}

func (s *SessionStore) Create(ctx context.Context, session *domain.Session) error {
	row := &sessionRow{
		SessionID: session.SessionID,
		Token:     session.Token,
		QuizID:    session.QuizID,
		UserID:    session.UserID,
		Name:      session.Name,
		StartTime: session.StartTime,
		IP:        session.IP,
		UserAgent: session.UserAgent,
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := new(sessionRow)
	err := s.db.NewSelect().Model(row).Where("session_id = ?", sessionID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	return rowToSession(row)
}

func (s *SessionStore) Finalize(ctx context.Context, sessionID string, fin domain.Finalization) error {
	answers, err := json.Marshal(fin.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	res, err := s.db.NewUpdate().
		Model((*sessionRow)(nil)).
		Set("submit_time = ?", fin.SubmitTime).
		Set("duration_ms = ?", fin.DurationMs).
		Set("score = ?", fin.Score).
		Set("answers = ?", string(answers)).
		Set("suspicious = ?", fin.Suspicious).
		Where("session_id = ?", sessionID).
		Where("submit_time IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("finalize session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize session result: %w", err)
	}
	if affected == 0 {
		exists, err := s.db.NewSelect().
			Model((*sessionRow)(nil)).
			Where("session_id = ?", sessionID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("finalize session recheck: %w", err)
		}
		if !exists {
			return domain.ErrSessionNotFound
		}
		return domain.ErrAlreadySubmitted
	}
	return nil
}

func (s *SessionStore) List(ctx context.Context, limit int) ([]domain.SessionSummary, error) {
	query := s.db.NewSelect().
		Model((*sessionRow)(nil)).
		Column("session_id", "quiz_id", "name", "start_time", "submit_time", "duration_ms", "score", "suspicious").
		OrderExpr("start_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []sessionRow
	if err := query.Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return rowsToSummaries(rows), nil
}

func (s *SessionStore) ListByUser(ctx context.Context, userID string) ([]domain.SessionSummary, error) {
	var rows []sessionRow
	err := s.db.NewSelect().
		Model((*sessionRow)(nil)).
		Where("user_id = ?", userID).
		OrderExpr("start_time DESC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("list user sessions: %w", err)
	}
	return rowsToSummaries(rows), nil
}

func rowToSession(row *sessionRow) (*domain.Session, error) {
	session := &domain.Session{
		SessionID: row.SessionID,
		Token:     row.Token,
		QuizID:    row.QuizID,
		UserID:    row.UserID,
		Name:      row.Name,
		StartTime: row.StartTime,
		IP:        row.IP,
		UserAgent: row.UserAgent,
	}
	if row.SubmitTime != nil {
		session.SubmitTime = *row.SubmitTime
	}
	if row.DurationMs != nil {
		session.DurationMs = *row.DurationMs
	}
	if row.Score != nil {
		session.Score = *row.Score
	}
	session.Suspicious = row.Suspicious
	if len(row.Answers) > 0 {
		if err := json.Unmarshal(row.Answers, &session.Answers); err != nil {
			return nil, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return session, nil
}

func rowsToSummaries(rows []sessionRow) []domain.SessionSummary {
	summaries := make([]domain.SessionSummary, 0, len(rows))
	for _, row := range rows {
		summary := domain.SessionSummary{
			SessionID:  row.SessionID,
			QuizID:     row.QuizID,
			Name:       row.Name,
			StartTime:  row.StartTime,
			Suspicious: row.Suspicious,
		}
		if row.SubmitTime != nil {
			summary.SubmitTime = *row.SubmitTime
		}
		if row.DurationMs != nil {
			summary.DurationMs = *row.DurationMs
		}
		if row.Score != nil {
			summary.Score = *row.Score
		}
		summaries = append(summaries, summary)
	}
	return summaries
}
