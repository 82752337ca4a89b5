// Package postgres is the bun-backed store. The leaderboard upsert leans on
// a single INSERT … ON CONFLICT DO UPDATE so concurrent judges for the same
// (round, user) key cannot lose increments.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"live-trivia-service/internal/domain"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type roundRow struct {
	bun.BaseModel `bun:"table:rounds,alias:r"`

	ID           string    `bun:"id,pk"`
	Title        string    `bun:"title"`
	Description  string    `bun:"description"`
	RoomCode     string    `bun:"room_code"`
	StartAt      time.Time `bun:"start_at"`
	Status       string    `bun:"status"`
	Participants []string  `bun:"participants,array"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID                 string   `bun:"id,pk"`
	RoundID            string   `bun:"round_id"`
	Prompt             string   `bun:"prompt"`
	Answer             string   `bun:"answer"`
	AlternativeAnswers []string `bun:"alternative_answers,array"`
	Fuzzy              bool     `bun:"fuzzy"`
	TimeSeconds        int      `bun:"time_seconds"`
	Status             string   `bun:"status"`
}

type submissionRow struct {
	bun.BaseModel `bun:"table:submissions,alias:s"`

	ID          string    `bun:"id,pk"`
	RoundID     string    `bun:"round_id"`
	QuestionID  string    `bun:"question_id"`
	UserID      string    `bun:"user_id"`
	Answer      string    `bun:"answer"`
	SubmittedAt time.Time `bun:"submitted_at"`
	TimeTakenMs int64     `bun:"time_taken_ms"`
	Judged      bool      `bun:"judged"`
	Correct     bool      `bun:"correct"`
	Fuzzy       bool      `bun:"fuzzy"`
	Score       int       `bun:"score"`
}

type entryRow struct {
	bun.BaseModel `bun:"table:leaderboard,alias:le"`

	ID               string    `bun:"id,pk"`
	RoundID          string    `bun:"round_id"`
	UserID           string    `bun:"user_id"`
	TotalScore       int       `bun:"total_score"`
	TotalTimeTakenMs int64     `bun:"total_time_taken_ms"`
	CorrectCount     int       `bun:"correct_count"`
	LastSubmissionAt time.Time `bun:"last_submission_at"`
	Rank             int       `bun:"rank"`
}

type allowListRow struct {
	bun.BaseModel `bun:"table:allowed_users,alias:au"`

	RoundID string   `bun:"round_id,pk"`
	Emails  []string `bun:"emails,array"`
}

// Store implements the app and judge store surfaces on Postgres.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// ---- rounds ----

func (s *Store) CreateRound(ctx context.Context, round domain.Round) error {
	row := roundRowFrom(round)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

func (s *Store) GetRound(ctx context.Context, id string) (domain.Round, error) {
	var row roundRow
	err := s.db.NewSelect().Model(&row).Where("r.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Round{}, domain.ErrRoundNotFound
	}
	if err != nil {
		return domain.Round{}, fmt.Errorf("select round: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) GetRoundByRoomCode(ctx context.Context, code string) (domain.Round, error) {
	var row roundRow
	err := s.db.NewSelect().Model(&row).Where("r.room_code = ?", code).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Round{}, domain.ErrRoomCodeNotFound
	}
	if err != nil {
		return domain.Round{}, fmt.Errorf("select round by code: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) RoomCodeExists(ctx context.Context, code string) (bool, error) {
	exists, err := s.db.NewSelect().Model((*roundRow)(nil)).Where("r.room_code = ?", code).Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("room code exists: %w", err)
	}
	return exists, nil
}

func (s *Store) AddParticipant(ctx context.Context, roundID, userID string) error {
	res, err := s.db.NewUpdate().Model((*roundRow)(nil)).
		Set("participants = array_append(participants, ?)", userID).
		Where("r.id = ?", roundID).
		Where("NOT (? = ANY(participants))", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		if _, err := s.GetRound(ctx, roundID); err != nil {
			return err
		}
		return domain.ErrAlreadyJoined
	}
	return nil
}

// DeleteRound relies on ON DELETE CASCADE to clear the round's questions,
// submissions, leaderboard entries, and allow-list in one statement.
func (s *Store) DeleteRound(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*roundRow)(nil)).Where("r.id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete round: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.ErrRoundNotFound
	}
	return nil
}

// ---- questions ----

func (s *Store) CreateQuestion(ctx context.Context, question domain.Question) error {
	row := questionRowFrom(question)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func (s *Store) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	var row questionRow
	err := s.db.NewSelect().Model(&row).Where("q.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("select question: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListQuestionsByRound(ctx context.Context, roundID string) ([]domain.Question, error) {
	var rows []questionRow
	if err := s.db.NewSelect().Model(&rows).Where("q.round_id = ?", roundID).Order("id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	questions := make([]domain.Question, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.toDomain())
	}
	return questions, nil
}

func (s *Store) SetQuestionStatus(ctx context.Context, id string, status domain.QuestionStatus) error {
	res, err := s.db.NewUpdate().Model((*questionRow)(nil)).
		Set("status = ?", string(status)).
		Where("q.id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set question status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// ---- submissions ----

func (s *Store) InsertSubmission(ctx context.Context, sub domain.Submission) error {
	row := submissionRowFrom(sub)
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

func (s *Store) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	var row submissionRow
	err := s.db.NewSelect().Model(&row).Where("s.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	if err != nil {
		return domain.Submission{}, fmt.Errorf("select submission: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) PatchJudgement(ctx context.Context, id string, j domain.Judgement) error {
	res, err := s.db.NewUpdate().Model((*submissionRow)(nil)).
		Set("judged = TRUE").
		Set("correct = ?", j.Correct).
		Set("fuzzy = ?", j.Fuzzy).
		Set("score = ?", j.Score).
		Where("s.id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("patch judgement: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.ErrSubmissionNotFound
	}
	return nil
}

// ---- leaderboard ----

// UpsertEntry is the judge's atomic increment-or-create; the database
// serializes concurrent writers on the (round_id, user_id) unique key.
func (s *Store) UpsertEntry(ctx context.Context, roundID, userID string, inc domain.ScoreIncrement) (domain.LeaderboardEntry, error) {
	row := entryRow{
		ID:               uuid.NewString(),
		RoundID:          roundID,
		UserID:           userID,
		TotalScore:       inc.Score,
		TotalTimeTakenMs: inc.TimeTakenMs,
		CorrectCount:     1,
		LastSubmissionAt: inc.SubmittedAt,
	}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (round_id, user_id) DO UPDATE").
		Set("total_score = le.total_score + EXCLUDED.total_score").
		Set("total_time_taken_ms = le.total_time_taken_ms + EXCLUDED.total_time_taken_ms").
		Set("correct_count = le.correct_count + 1").
		Set("last_submission_at = GREATEST(le.last_submission_at, EXCLUDED.last_submission_at)").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("upsert leaderboard entry: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListEntries(ctx context.Context, roundID string) ([]domain.LeaderboardEntry, error) {
	var rows []entryRow
	if err := s.db.NewSelect().Model(&rows).Where("le.round_id = ?", roundID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("list leaderboard entries: %w", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toDomain())
	}
	return entries, nil
}

func (s *Store) PatchRank(ctx context.Context, entryID string, rank int) error {
	res, err := s.db.NewUpdate().Model((*entryRow)(nil)).
		Set("rank = ?", rank).
		Where("le.id = ?", entryID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("patch rank: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.ErrEntryNotFound
	}
	return nil
}

// ---- allow-list ----

func (s *Store) PutAllowList(ctx context.Context, roundID string, emails []string) error {
	row := allowListRow{RoundID: roundID, Emails: emails}
	_, err := s.db.NewInsert().Model(&row).
		On("CONFLICT (round_id) DO UPDATE").
		Set("emails = EXCLUDED.emails").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("put allow-list: %w", err)
	}
	return nil
}

func (s *Store) GetAllowList(ctx context.Context, roundID string) ([]string, error) {
	var row allowListRow
	err := s.db.NewSelect().Model(&row).Where("au.round_id = ?", roundID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoGuestList
	}
	if err != nil {
		return nil, fmt.Errorf("select allow-list: %w", err)
	}
	return row.Emails, nil
}

// ---- row conversions ----

func roundRowFrom(r domain.Round) roundRow {
	return roundRow{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		RoomCode:     r.RoomCode,
		StartAt:      r.StartAt,
		Status:       string(r.Status),
		Participants: r.Participants,
	}
}

func (r roundRow) toDomain() domain.Round {
	return domain.Round{
		ID:           r.ID,
		Title:        r.Title,
		Description:  r.Description,
		RoomCode:     r.RoomCode,
		StartAt:      r.StartAt,
		Status:       domain.RoundStatus(r.Status),
		Participants: r.Participants,
	}
}

func questionRowFrom(q domain.Question) questionRow {
	return questionRow{
		ID:                 q.ID,
		RoundID:            q.RoundID,
		Prompt:             q.Prompt,
		Answer:             q.Answer,
		AlternativeAnswers: q.AlternativeAnswers,
		Fuzzy:              q.Fuzzy,
		TimeSeconds:        q.TimeSeconds,
		Status:             string(q.Status),
	}
}

func (q questionRow) toDomain() domain.Question {
	return domain.Question{
		ID:                 q.ID,
		RoundID:            q.RoundID,
		Prompt:             q.Prompt,
		Answer:             q.Answer,
		AlternativeAnswers: q.AlternativeAnswers,
		Fuzzy:              q.Fuzzy,
		TimeSeconds:        q.TimeSeconds,
		Status:             domain.QuestionStatus(q.Status),
	}
}

func submissionRowFrom(s domain.Submission) submissionRow {
	return submissionRow{
		ID:          s.ID,
		RoundID:     s.RoundID,
		QuestionID:  s.QuestionID,
		UserID:      s.UserID,
		Answer:      s.Answer,
		SubmittedAt: s.SubmittedAt,
		TimeTakenMs: s.TimeTakenMs,
		Judged:      s.Judged,
		Correct:     s.Correct,
		Fuzzy:       s.Fuzzy,
		Score:       s.Score,
	}
}

func (s submissionRow) toDomain() domain.Submission {
	return domain.Submission{
		ID:          s.ID,
		RoundID:     s.RoundID,
		QuestionID:  s.QuestionID,
		UserID:      s.UserID,
		Answer:      s.Answer,
		SubmittedAt: s.SubmittedAt,
		TimeTakenMs: s.TimeTakenMs,
		Judged:      s.Judged,
		Correct:     s.Correct,
		Fuzzy:       s.Fuzzy,
		Score:       s.Score,
	}
}

func (e entryRow) toDomain() domain.LeaderboardEntry {
	return domain.LeaderboardEntry{
		ID:               e.ID,
		RoundID:          e.RoundID,
		UserID:           e.UserID,
		TotalScore:       e.TotalScore,
		TotalTimeTakenMs: e.TotalTimeTakenMs,
		CorrectCount:     e.CorrectCount,
		LastSubmissionAt: e.LastSubmissionAt,
		Rank:             e.Rank,
	}
}
