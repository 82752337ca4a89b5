package postgres

import (
	"context"
	"errors"
	"fmt"

	"live-trivia-service/internal/domain"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader reads question content off a pgx pool. It backs the redis
// answer cache on the judging hot path, bypassing the ORM layer.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestion(ctx context.Context, id string) (domain.Question, error) {
	var q domain.Question
	var status string
	err := l.pool.QueryRow(ctx,
		`SELECT id, round_id, prompt, answer, alternative_answers, fuzzy, time_seconds, status
		 FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.RoundID, &q.Prompt, &q.Answer, &q.AlternativeAnswers, &q.Fuzzy, &q.TimeSeconds, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	q.Status = domain.QuestionStatus(status)
	return q, nil
}
