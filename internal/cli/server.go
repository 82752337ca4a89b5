package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"live-trivia-service/internal/app"
	"live-trivia-service/internal/config"
	"live-trivia-service/internal/domain"
	"live-trivia-service/internal/infra/memory"
	pgstore "live-trivia-service/internal/infra/postgres"
	rediscache "live-trivia-service/internal/infra/redis"
	"live-trivia-service/internal/judge"
	transport "live-trivia-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

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

	memStore := memory.NewStore()

	var rounds app.RoundStore = memStore
	var questions app.QuestionStore = memStore
	var submissions app.SubmissionStore = memStore
	var leaderboard app.LeaderboardReader = memStore
	var allowLists app.AllowListStore = memStore

	var judgeSubmissions judge.SubmissionStore = memStore
	var judgeQuestions judge.QuestionStore = memStore
	var judgeLeaderboard judge.LeaderboardStore = memStore

	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()
		store := pgstore.NewStore(db)

		rounds, questions, submissions, leaderboard, allowLists = store, store, store, store, store
		judgeSubmissions, judgeQuestions, judgeLeaderboard = store, store, store

		if redisClient != nil {
			// The judge's question reads go through a pgx pool behind the
			// redis answer cache; everything else stays on bun.
			pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
			if err != nil {
				return err
			}
			defer pool.Close()
			ttl := cfg.AnswerCacheTTL(10 * time.Minute)
			judgeQuestions = rediscache.NewAnswerCache(redisClient, pgstore.NewQuestionLoader(pool), ttl)
		}
	} else if redisClient != nil {
		ttl := cfg.AnswerCacheTTL(10 * time.Minute)
		judgeQuestions = rediscache.NewAnswerCache(redisClient, questionLoaderFunc(memStore.GetQuestion), ttl)
	}

	engine := judge.NewEngine(judgeSubmissions, judgeQuestions, judgeLeaderboard, cfg.Judge.MaxDistance)
	service := app.NewService(rounds, questions, submissions, leaderboard, allowLists, engine, app.Config{
		JudgeWorkers:   cfg.Judge.Workers,
		JudgeQueueSize: cfg.Judge.QueueSize,
	})
	defer service.Close()

	if cfg.Postgres.URL == "" {
		seedDemoRound(ctx, service)
	}

	wsHandler := transport.NewWSHandler(service)
	adminHandler := transport.NewAdminHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	adminHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// questionLoaderFunc adapts a store getter to the answer cache's loader.
type questionLoaderFunc func(ctx context.Context, id string) (domain.Question, error)

func (f questionLoaderFunc) LoadQuestion(ctx context.Context, id string) (domain.Question, error) {
	return f(ctx, id)
}

// seedDemoRound provides a playable round for the in-memory backend; swap in
// Postgres for real data.
func seedDemoRound(ctx context.Context, service *app.Service) {
	round, err := service.CreateRound(ctx, "Demo Round", "in-memory demo data", time.Now())
	if err != nil {
		log.Printf("seed demo round: %v", err)
		return
	}
	if err := service.SetGuestList(ctx, round.ID, []string{"demo@example.com"}); err != nil {
		log.Printf("seed guest list: %v", err)
		return
	}
	question, err := service.AddQuestion(ctx, domain.Question{
		RoundID:            round.ID,
		Prompt:             "What is the capital of France?",
		Answer:             "Paris",
		AlternativeAnswers: []string{"City of Light"},
		Fuzzy:              true,
		TimeSeconds:        60,
	})
	if err != nil {
		log.Printf("seed question: %v", err)
		return
	}
	log.Printf("demo round ready: roomCode=%s questionId=%s guest=demo@example.com", round.RoomCode, question.ID)
}
