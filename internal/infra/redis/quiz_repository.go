package redis

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"quiztake-service/internal/domain"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizLoader fetches quiz content from a backing store (directory, Postgres).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches quiz answer keys in Redis (hash per quiz) and falls
// back to a loader on cache miss.
// Answer keys are stored as: HSET quiz:{quizID}:answers {questionIndex} {answerIndex}
// The cached form carries only what scoring needs: the correct index per
// question and the question count. Full prompts and options always come
// from the loader.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	key := r.answersKey(quizID)

	answers, err := r.client.HGetAll(ctx, key).Result()
	if err == nil && len(answers) > 0 {
		return buildQuizFromCache(quizID, answers), nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		answers, err := r.client.HGetAll(ctx, key).Result()
		if err == nil && len(answers) > 0 {
			return buildQuizFromCache(quizID, answers), nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}
		if len(quiz.Questions) == 0 {
			// Nothing to cache; an empty hash would read as a miss anyway.
			return quiz, nil
		}

		pipe := r.client.Pipeline()
		for i, q := range quiz.Questions {
			pipe.HSet(ctx, key, strconv.Itoa(i), q.AnswerIndex)
		}
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) answersKey(quizID string) string {
	return "quiz:" + quizID + ":answers"
}

func buildQuizFromCache(quizID string, answers map[string]string) domain.Quiz {
	questions := make([]domain.Question, len(answers))
	for field, value := range answers {
		idx, err := strconv.Atoi(field)
		if err != nil || idx < 0 || idx >= len(questions) {
			continue
		}
		answerIndex, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		// prompt and options not cached in this lightweight form
		questions[idx] = domain.Question{AnswerIndex: answerIndex}
	}
	return domain.Quiz{ID: quizID, Name: quizID, Questions: questions}
}

func (r *QuizRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
