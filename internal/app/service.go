// Package app contains the trivia use cases: round and question lifecycle,
// answer intake, and the live leaderboard feed.
package app

import (
	"context"
	"log"
	"strings"
	"time"

	"live-trivia-service/internal/domain"
	"live-trivia-service/internal/judge"

	"github.com/google/uuid"
)

// RoundStore persists rounds and their participant lists.
type RoundStore interface {
	CreateRound(ctx context.Context, round domain.Round) error
	GetRound(ctx context.Context, id string) (domain.Round, error)
	GetRoundByRoomCode(ctx context.Context, code string) (domain.Round, error)
	RoomCodeExists(ctx context.Context, code string) (bool, error)
	AddParticipant(ctx context.Context, roundID, userID string) error
	// DeleteRound cascades to the round's questions, submissions,
	// leaderboard entries, and allow-list.
	DeleteRound(ctx context.Context, id string) error
}

// QuestionStore persists questions and their activation state.
type QuestionStore interface {
	CreateQuestion(ctx context.Context, question domain.Question) error
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
	ListQuestionsByRound(ctx context.Context, roundID string) ([]domain.Question, error)
	SetQuestionStatus(ctx context.Context, id string, status domain.QuestionStatus) error
}

// SubmissionStore records raw submissions; judgement writes go through the
// judge's own store surface.
type SubmissionStore interface {
	InsertSubmission(ctx context.Context, sub domain.Submission) error
	GetSubmission(ctx context.Context, id string) (domain.Submission, error)
}

// LeaderboardReader lists a round's standings for board snapshots.
type LeaderboardReader interface {
	ListEntries(ctx context.Context, roundID string) ([]domain.LeaderboardEntry, error)
}

// AllowListStore holds the per-round guest list of emails.
type AllowListStore interface {
	PutAllowList(ctx context.Context, roundID string, emails []string) error
	GetAllowList(ctx context.Context, roundID string) ([]string, error)
}

// Config tunes the judging worker pool.
type Config struct {
	JudgeWorkers   int
	JudgeQueueSize int
}

// Service wires the stores, the judging engine, and the live board feed.
type Service struct {
	rounds      RoundStore
	questions   QuestionStore
	submissions SubmissionStore
	leaderboard LeaderboardReader
	allowLists  AllowListStore

	engine   *judge.Engine
	dispatch *judge.Dispatcher
	boards   *boardHub

	now   func() time.Time
	after func(d time.Duration, fn func())
}

func NewService(rounds RoundStore, questions QuestionStore, submissions SubmissionStore, leaderboard LeaderboardReader, allowLists AllowListStore, engine *judge.Engine, cfg Config) *Service {
	s := &Service{
		rounds:      rounds,
		questions:   questions,
		submissions: submissions,
		leaderboard: leaderboard,
		allowLists:  allowLists,
		engine:      engine,
		boards:      newBoardHub(),
		now:         time.Now,
		after:       func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
	s.dispatch = judge.NewDispatcher(s.judgeAndPublish, cfg.JudgeWorkers, cfg.JudgeQueueSize)
	return s
}

// Close drains the judging queue.
func (s *Service) Close() {
	s.dispatch.Close()
}

// CreateRound registers a new round with a freshly generated room code.
func (s *Service) CreateRound(ctx context.Context, title, description string, startAt time.Time) (domain.Round, error) {
	code, err := generateRoomCode(ctx, s.rounds.RoomCodeExists)
	if err != nil {
		return domain.Round{}, err
	}
	round := domain.Round{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		RoomCode:    code,
		StartAt:     startAt,
		Status:      domain.RoundUpcoming,
	}
	if err := s.rounds.CreateRound(ctx, round); err != nil {
		return domain.Round{}, err
	}
	return round, nil
}

// SetGuestList replaces the round's allow-list of emails.
func (s *Service) SetGuestList(ctx context.Context, roundID string, emails []string) error {
	if _, err := s.rounds.GetRound(ctx, roundID); err != nil {
		return err
	}
	return s.allowLists.PutAllowList(ctx, roundID, emails)
}

// JoinRound adds a participant to the round behind the room code, gated by
// the round's guest list.
func (s *Service) JoinRound(ctx context.Context, roomCode, userID, email string) (domain.Round, error) {
	round, err := s.rounds.GetRoundByRoomCode(ctx, strings.ToUpper(roomCode))
	if err != nil {
		return domain.Round{}, err
	}
	allowed, err := s.allowLists.GetAllowList(ctx, round.ID)
	if err != nil {
		return domain.Round{}, err
	}
	if !containsFold(allowed, email) {
		return domain.Round{}, domain.ErrNotOnGuestList
	}
	if err := s.rounds.AddParticipant(ctx, round.ID, userID); err != nil {
		return domain.Round{}, err
	}
	return s.rounds.GetRound(ctx, round.ID)
}

// RoundByRoomCode resolves a round from its room code without joining.
func (s *Service) RoundByRoomCode(ctx context.Context, roomCode string) (domain.Round, error) {
	return s.rounds.GetRoundByRoomCode(ctx, strings.ToUpper(roomCode))
}

// DeleteRound removes the round and everything it owns, and disconnects any
// live board subscribers.
func (s *Service) DeleteRound(ctx context.Context, roundID string) error {
	if err := s.rounds.DeleteRound(ctx, roundID); err != nil {
		return err
	}
	s.boards.drop(roundID)
	return nil
}

// AddQuestion registers a question in the WAITING state.
func (s *Service) AddQuestion(ctx context.Context, question domain.Question) (domain.Question, error) {
	if _, err := s.rounds.GetRound(ctx, question.RoundID); err != nil {
		return domain.Question{}, err
	}
	question.ID = uuid.NewString()
	question.Status = domain.QuestionWaiting
	if err := s.questions.CreateQuestion(ctx, question); err != nil {
		return domain.Question{}, err
	}
	return question, nil
}

// ActivateQuestion opens the question for submissions and schedules the
// ENDED transition once its countdown elapses.
func (s *Service) ActivateQuestion(ctx context.Context, questionID string) error {
	question, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if err := s.questions.SetQuestionStatus(ctx, questionID, domain.QuestionActive); err != nil {
		return err
	}
	if question.TimeSeconds > 0 {
		s.after(time.Duration(question.TimeSeconds)*time.Second, func() {
			if err := s.questions.SetQuestionStatus(context.Background(), questionID, domain.QuestionEnded); err != nil {
				log.Printf("end question %s: %v", questionID, err)
			}
		})
	}
	return nil
}

// SetQuestionStatus lets the admin move a question through its lifecycle
// manually (e.g. into INTERMISSION between questions).
func (s *Service) SetQuestionStatus(ctx context.Context, questionID string, status domain.QuestionStatus) error {
	return s.questions.SetQuestionStatus(ctx, questionID, status)
}

// SubmitAnswer records an answer attempt and schedules its judgement. The
// caller gets an immediate acknowledgment; the outcome surfaces later on the
// submission and the leaderboard. Only ACTIVE questions accept submissions,
// checked at submit time; the judge itself does not re-validate. Nothing
// stops a user submitting twice to the same question — each submission is
// judged on its own.
func (s *Service) SubmitAnswer(ctx context.Context, roundID, questionID, userID, answer string, timeTakenMs int64) (domain.Submission, error) {
	question, err := s.questions.GetQuestion(ctx, questionID)
	if err != nil {
		return domain.Submission{}, err
	}
	if question.Status != domain.QuestionActive {
		return domain.Submission{}, domain.ErrQuestionNotActive
	}

	sub := domain.Submission{
		ID:          uuid.NewString(),
		RoundID:     roundID,
		QuestionID:  questionID,
		UserID:      userID,
		Answer:      answer,
		SubmittedAt: s.now(),
		TimeTakenMs: timeTakenMs,
	}
	if err := s.submissions.InsertSubmission(ctx, sub); err != nil {
		return domain.Submission{}, err
	}
	s.dispatch.Enqueue(sub.ID)
	return sub, nil
}

// GetSubmission exposes a submission's current (possibly still unjudged)
// state for polling clients.
func (s *Service) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	return s.submissions.GetSubmission(ctx, id)
}

// ListQuestions returns the round's questions.
func (s *Service) ListQuestions(ctx context.Context, roundID string) ([]domain.Question, error) {
	return s.questions.ListQuestionsByRound(ctx, roundID)
}

// Board returns the current standings snapshot for a round.
func (s *Service) Board(ctx context.Context, roundID string) (domain.Board, error) {
	entries, err := s.leaderboard.ListEntries(ctx, roundID)
	if err != nil {
		return domain.Board{}, err
	}
	return snapshotBoard(roundID, entries, s.now()), nil
}

// Subscribe returns a channel receiving board snapshots for a round. The
// caller must invoke the returned cancel function to avoid leaks.
func (s *Service) Subscribe(ctx context.Context, roundID string) (<-chan domain.Board, func(), error) {
	initial, err := s.Board(ctx, roundID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.boards.get(roundID).subscribe(initial)
	return ch, cancel, nil
}

// judgeAndPublish is the dispatcher's worker body: judge the submission,
// then push fresh standings to the round's subscribers. A publish failure
// only costs liveness; the stored state is already consistent.
func (s *Service) judgeAndPublish(ctx context.Context, submissionID string) error {
	sub, err := s.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		// The judge handles the missing case itself; nothing to publish.
		return s.engine.Judge(ctx, submissionID)
	}
	if err := s.engine.Judge(ctx, submissionID); err != nil {
		return err
	}
	snapshot, err := s.Board(ctx, sub.RoundID)
	if err != nil {
		log.Printf("board snapshot for round %s: %v", sub.RoundID, err)
		return nil
	}
	s.boards.get(sub.RoundID).publish(snapshot)
	return nil
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
