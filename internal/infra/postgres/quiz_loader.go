package postgres

import (
	"context"
	"errors"
	"fmt"

	"quiztake-service/internal/domain"
	"quiztake-service/internal/infra/catalog"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuizLoader loads quiz JSONB from Postgres. Content goes through the same
// normalization as the file catalog, so both backends enforce one schema.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Quiz{}, domain.ErrQuizNotFound
		}
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}
	return catalog.Decode(quizID, raw)
}

// ListQuizzes enumerates the stored catalog.
func (l *QuizLoader) ListQuizzes(ctx context.Context) ([]domain.QuizInfo, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, COALESCE(data->>'name', id) FROM quizzes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	defer rows.Close()

	infos := make([]domain.QuizInfo, 0)
	for rows.Next() {
		var info domain.QuizInfo
		if err := rows.Scan(&info.ID, &info.Name); err != nil {
			return nil, fmt.Errorf("scan quiz row: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quizzes: %w", err)
	}
	return infos, nil
}
