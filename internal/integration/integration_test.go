package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"quiztake-service/internal/app"
	"quiztake-service/internal/domain"
	"quiztake-service/internal/infra/memory"
	pgstore "quiztake-service/internal/infra/postgres"
	pgmigrations "quiztake-service/internal/infra/postgres/migrations"
	infraredis "quiztake-service/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestSessionLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(t, ctx, pgURL)
	defer db.Close()
	seedQuiz(t, ctx, db, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}

	loader := pgstore.NewQuizLoader(pool)
	quizRepo := infraredis.NewQuizRepository(redisClient, loader, 5*time.Minute)
	sessionStore := pgstore.NewSessionStore(db)
	service := app.NewSessionService(sessionStore, quizRepo, zerolog.Nop())

	started, err := service.Start(ctx, "Alice", "quiz-1", "", domain.ClientMeta{IP: "10.0.0.1", UserAgent: "go-test"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	status, err := service.GetStatus(ctx, started.SessionID, started.Token)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Exists || status.Submitted || !status.TokenValid {
		t.Fatalf("unexpected status %+v", status)
	}

	result, err := service.Submit(ctx, app.SubmitRequest{
		SessionID: started.SessionID,
		Token:     started.Token,
		QuizID:    "quiz-1",
		Answers:   []any{float64(1), float64(0)},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 2 || result.Total != 2 {
		t.Fatalf("expected 2/2, got %d/%d", result.Score, result.Total)
	}

	// The finalize guard lives in the database; a replay must conflict.
	_, err = service.Submit(ctx, app.SubmitRequest{
		SessionID: started.SessionID,
		Token:     started.Token,
		QuizID:    "quiz-1",
		Answers:   []any{float64(1), float64(0)},
	})
	if !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected ErrAlreadySubmitted, got %v", err)
	}

	status, err = service.GetStatus(ctx, started.SessionID, started.Token)
	if err != nil {
		t.Fatalf("status after submit: %v", err)
	}
	if !status.Submitted || status.Score != 2 {
		t.Fatalf("unexpected status after submit %+v", status)
	}

	summaries, err := service.ListResults(ctx)
	if err != nil {
		t.Fatalf("list results: %v", err)
	}
	if len(summaries) != 1 || summaries[0].SessionID != started.SessionID {
		t.Fatalf("unexpected results %+v", summaries)
	}
}

func TestUserAccountsEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := openBun(t, ctx, pgURL)
	defer db.Close()
	seedQuiz(t, ctx, db, sampleQuiz())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	sessionStore := pgstore.NewSessionStore(db)
	quizRepo := memory.NewQuizRepository(pgstore.NewQuizLoader(pool), 5*time.Minute)
	sessions := app.NewSessionService(sessionStore, quizRepo, zerolog.Nop())
	users := app.NewUserService(pgstore.NewUserStore(db), sessionStore)

	if err := users.Register(ctx, "alice", "secret"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := users.Register(ctx, "alice", "other"); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected unique violation mapped to ErrUserExists, got %v", err)
	}

	token, err := users.Login(ctx, "alice", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	account, err := pgstore.NewUserStore(db).FindByLoginToken(ctx, token)
	if err != nil {
		t.Fatalf("find by token: %v", err)
	}

	started, err := sessions.Start(ctx, "Alice", "quiz-1", account.ID, domain.ClientMeta{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	summaries, err := users.ResultsFor(ctx, token)
	if err != nil {
		t.Fatalf("results for: %v", err)
	}
	if len(summaries) != 1 || summaries[0].SessionID != started.SessionID {
		t.Fatalf("expected the linked session, got %+v", summaries)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func openBun(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedQuiz(t *testing.T, ctx context.Context, db *bun.DB, quiz domain.Quiz) {
	t.Helper()
	data, err := json.Marshal(quiz)
	if err != nil {
		t.Fatalf("marshal quiz: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO quizzes (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, quiz.ID, string(data)); err != nil {
		t.Fatalf("insert quiz: %v", err)
	}
}

// sampleQuiz has the answer key [1, 0].
func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:   "quiz-1",
		Name: "Arithmetic",
		Questions: []domain.Question{
			{Question: "What is 2 + 2?", Options: []string{"3", "4", "5"}, AnswerIndex: 1},
			{Question: "What is 1 * 1?", Options: []string{"1", "2"}, AnswerIndex: 0},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
