package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"live-trivia-service/internal/app"
	"live-trivia-service/internal/domain"
	pgstore "live-trivia-service/internal/infra/postgres"
	pgmigrations "live-trivia-service/internal/infra/postgres/migrations"
	rediscache "live-trivia-service/internal/infra/redis"
	"live-trivia-service/internal/judge"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestJudgeFlowEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(t, ctx, pgURL)
	defer db.Close()
	store := pgstore.NewStore(db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	answerCache := rediscache.NewAnswerCache(redisClient, pgstore.NewQuestionLoader(pool), 5*time.Minute)

	engine := judge.NewEngine(store, answerCache, store, judge.DefaultMaxDistance)
	service := app.NewService(store, store, store, store, store, engine, app.Config{JudgeWorkers: 4, JudgeQueueSize: 32})
	defer service.Close()

	round, err := service.CreateRound(ctx, "Integration Round", "end to end", time.Now())
	if err != nil {
		t.Fatalf("create round: %v", err)
	}
	if err := service.SetGuestList(ctx, round.ID, []string{"alice@example.com", "bob@example.com"}); err != nil {
		t.Fatalf("guest list: %v", err)
	}
	if _, err := service.JoinRound(ctx, round.RoomCode, "u1", "alice@example.com"); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	if _, err := service.JoinRound(ctx, round.RoomCode, "u2", "bob@example.com"); err != nil {
		t.Fatalf("join bob: %v", err)
	}

	question, err := service.AddQuestion(ctx, domain.Question{
		RoundID: round.ID, Prompt: "Capital of France?", Answer: "PARIS", TimeSeconds: 60,
	})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	if err := service.ActivateQuestion(ctx, question.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	sub, err := service.SubmitAnswer(ctx, round.ID, question.ID, "u1", "paris", 5000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	judged := awaitJudgement(t, ctx, service, sub.ID)
	if !judged.Correct || judged.Score != 500 {
		t.Fatalf("expected correct with 500 (1000 - 5000/10), got %+v", judged)
	}

	board, err := service.Board(ctx, round.ID)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if len(board.Entries) != 1 {
		t.Fatalf("expected one entry, got %+v", board.Entries)
	}
	entry := board.Entries[0]
	if entry.UserID != "u1" || entry.TotalScore != 500 || entry.CorrectCount != 1 || entry.Rank != 1 {
		t.Fatalf("unexpected entry %+v", entry)
	}

	// A second correct answer from the same user must increment, not
	// replace, even through the ON CONFLICT upsert.
	q2, err := service.AddQuestion(ctx, domain.Question{
		RoundID: round.ID, Prompt: "Capital of Germany?", Answer: "Berlin", TimeSeconds: 60,
	})
	if err != nil {
		t.Fatalf("add question 2: %v", err)
	}
	if err := service.ActivateQuestion(ctx, q2.ID); err != nil {
		t.Fatalf("activate 2: %v", err)
	}
	sub2, err := service.SubmitAnswer(ctx, round.ID, q2.ID, "u1", "berlin", 2000)
	if err != nil {
		t.Fatalf("submit 2: %v", err)
	}
	awaitJudgement(t, ctx, service, sub2.ID)

	board, err = service.Board(ctx, round.ID)
	if err != nil {
		t.Fatalf("board 2: %v", err)
	}
	entry = board.Entries[0]
	if entry.TotalScore != 500+800 || entry.CorrectCount != 2 || entry.TotalTimeTakenMs != 7000 {
		t.Fatalf("aggregates wrong after second judgement: %+v", entry)
	}
}

func awaitJudgement(t *testing.T, ctx context.Context, service *app.Service, submissionID string) domain.Submission {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		sub, err := service.GetSubmission(ctx, submissionID)
		if err != nil {
			t.Fatalf("get submission: %v", err)
		}
		if sub.Judged {
			return sub
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("submission %s never judged", submissionID)
	return domain.Submission{}
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

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
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
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
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
