package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiztake-service/internal/app"
	"quiztake-service/internal/config"
	"quiztake-service/internal/domain"
	"quiztake-service/internal/event"
	"quiztake-service/internal/infra/catalog"
	"quiztake-service/internal/infra/memory"
	mongostore "quiztake-service/internal/infra/mongo"
	pgstore "quiztake-service/internal/infra/postgres"
	rediscache "quiztake-service/internal/infra/redis"
	transport "quiztake-service/internal/transport/http"

	"github.com/common-nighthawk/go-figure"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// quizSource is any quiz backend that can both load content and enumerate
// the catalog. The file catalog, the Postgres loader, and the static loader
// all qualify.
type quizSource interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	ListQuizzes(ctx context.Context) ([]domain.QuizInfo, error)
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	figure.NewFigure("quiztake", "", true).Print()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	var bunDB *bun.DB
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bunDB = bun.NewDB(sqldb, pgdialect.New())
		defer bunDB.Close()
	}

	var mongoDB *mongodrv.Database
	if cfg.Mongo.URI != "" {
		client, err := mongodrv.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return err
		}
		defer func() { _ = client.Disconnect(context.Background()) }()
		dbName := cfg.Mongo.Database
		if dbName == "" {
			dbName = "quizdb"
		}
		mongoDB = client.Database(dbName)
	}

	// Quiz content: Postgres when configured, otherwise the file catalog,
	// falling back to the built-in demo quiz when neither exists.
	var source quizSource
	switch {
	case pool != nil:
		source = pgstore.NewQuizLoader(pool)
	default:
		dir := cfg.Catalog.Dir
		if dir == "" {
			dir = "quizzes"
		}
		if _, statErr := os.Stat(dir); statErr == nil {
			source = catalog.New(dir)
		} else {
			logger.Warn().Str("dir", dir).Msg("no quiz catalog found, serving demo quiz")
			source = memory.NewStaticQuizLoader(sampleQuizzes())
		}
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = rediscache.NewQuizRepository(redisClient, source, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(source, quizTTL)
	}

	// Session and user persistence: Mongo first, then Postgres, then memory.
	var store app.SessionStore
	var users app.UserStore
	switch {
	case mongoDB != nil:
		sessions := mongostore.NewSessionStore(mongoDB)
		if err := sessions.EnsureIndexes(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure session indexes failed")
		}
		accounts := mongostore.NewUserStore(mongoDB)
		if err := accounts.EnsureIndexes(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure user indexes failed")
		}
		store, users = sessions, accounts
	case bunDB != nil:
		store = pgstore.NewSessionStore(bunDB)
		users = pgstore.NewUserStore(bunDB)
	default:
		store = memory.NewSessionStore()
		users = memory.NewUserStore()
	}

	hub := app.NewResultsHub()
	listeners := []app.SubmitListener{hub}
	if cfg.AMQP.URL != "" {
		exchange := cfg.AMQP.Exchange
		if exchange == "" {
			exchange = "quiztake.events"
		}
		publisher, err := event.NewPublisher(cfg.AMQP.URL, exchange, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("amqp unavailable, continuing without event publishing")
		} else {
			defer publisher.Close()
			listeners = append(listeners, publisher)
		}
	}

	service := app.NewSessionService(store, quizRepo, logger, listeners...)
	userService := app.NewUserService(users, store)
	handler := transport.NewHandler(service, userService, source, logger)
	feed := transport.NewResultsFeed(hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Routes(mux)
	mux.HandleFunc("GET /ws/results", feed.ServeWS)

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.Chain(mux,
			transport.Recover(logger),
			transport.RequestLogger(logger),
			transport.CORS(),
		),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info().Str("port", finalPort).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info().Msg("shutting down server...")
	case <-ctx.Done():
		logger.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes is the zero-config demo catalog.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"demo": {
			ID:   "demo",
			Name: "Demo Quiz",
			Questions: []domain.Question{
				{
					Question:    "What is 2 + 2?",
					Options:     []string{"3", "4", "5"},
					AnswerIndex: 1,
				},
				{
					Question:    "Which planet is closest to the sun?",
					Options:     []string{"Venus", "Earth", "Mercury", "Mars"},
					AnswerIndex: 2,
				},
			},
		},
	}
}
