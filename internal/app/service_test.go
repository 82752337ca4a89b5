package app

import (
	"context"
	"testing"
	"time"

	"live-trivia-service/internal/domain"
	"live-trivia-service/internal/infra/memory"
	"live-trivia-service/internal/judge"
)

func TestCreateAndJoinRound(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	defer service.Close()

	round, err := service.CreateRound(ctx, "Finals", "last round", time.Now())
	if err != nil {
		t.Fatalf("create round: %v", err)
	}
	if round.RoomCode == "" {
		t.Fatalf("expected a room code, got %+v", round)
	}
	if err := service.SetGuestList(ctx, round.ID, []string{"alice@example.com"}); err != nil {
		t.Fatalf("set guest list: %v", err)
	}

	joined, err := service.JoinRound(ctx, round.RoomCode, "u1", "Alice@Example.com")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if len(joined.Participants) != 1 || joined.Participants[0] != "u1" {
		t.Fatalf("expected u1 in participants, got %+v", joined.Participants)
	}

	if _, err := service.JoinRound(ctx, round.RoomCode, "u2", "mallory@example.com"); err != domain.ErrNotOnGuestList {
		t.Fatalf("expected guest list rejection, got %v", err)
	}
	if _, err := service.JoinRound(ctx, "NOSUCHCODE", "u3", "alice@example.com"); err != domain.ErrRoomCodeNotFound {
		t.Fatalf("expected room code rejection, got %v", err)
	}
	if _, err := service.JoinRound(ctx, round.RoomCode, "u1", "alice@example.com"); err != domain.ErrAlreadyJoined {
		t.Fatalf("expected duplicate join rejection, got %v", err)
	}
}

func TestSubmitRequiresActiveQuestion(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	defer service.Close()

	round, question := seedRoundWithQuestion(t, service, "paris", false)

	if _, err := service.SubmitAnswer(ctx, round.ID, question.ID, "u1", "paris", 100); err != domain.ErrQuestionNotActive {
		t.Fatalf("expected rejection while WAITING, got %v", err)
	}

	if err := service.ActivateQuestion(ctx, question.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	sub, err := service.SubmitAnswer(ctx, round.ID, question.ID, "u1", "paris", 100)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Judged {
		t.Fatalf("acknowledgment must precede judgement, got %+v", sub)
	}
}

func TestSubmitJudgesAsynchronously(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	defer service.Close()

	round, question := seedRoundWithQuestion(t, service, "paris", false)
	if err := service.ActivateQuestion(ctx, question.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	updates, cancel, err := service.Subscribe(ctx, round.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	initial := readBoard(t, updates)
	if len(initial.Entries) != 0 {
		t.Fatalf("expected empty initial board, got %+v", initial.Entries)
	}

	sub, err := service.SubmitAnswer(ctx, round.ID, question.ID, "u1", "paris", 5000)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	update := readBoard(t, updates)
	if len(update.Entries) != 1 {
		t.Fatalf("expected one entry after judgement, got %+v", update.Entries)
	}
	entry := update.Entries[0]
	if entry.UserID != "u1" || entry.TotalScore != 500 || entry.Rank != 1 {
		t.Fatalf("unexpected entry %+v", entry)
	}

	judged, err := service.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if !judged.Judged || !judged.Correct || judged.Score != 500 {
		t.Fatalf("expected judged submission, got %+v", judged)
	}
}

func TestDuplicateSubmissionsCountAdditively(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	defer service.Close()

	round, question := seedRoundWithQuestion(t, service, "paris", false)
	if err := service.ActivateQuestion(ctx, question.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	updates, cancel, err := service.Subscribe(ctx, round.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	readBoard(t, updates) // initial

	for i := 0; i < 2; i++ {
		if _, err := service.SubmitAnswer(ctx, round.ID, question.ID, "u1", "paris", 0); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case board := <-updates:
			if len(board.Entries) == 1 && board.Entries[0].CorrectCount == 2 {
				if board.Entries[0].TotalScore != 2000 {
					t.Fatalf("expected additive 2000, got %+v", board.Entries[0])
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for both judgements")
		}
	}
}

func TestActivateQuestionSchedulesEnd(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()
	defer service.Close()

	var scheduled time.Duration
	var endFn func()
	service.after = func(d time.Duration, fn func()) {
		scheduled = d
		endFn = fn
	}

	round, question := seedRoundWithQuestion(t, service, "paris", false)
	_ = round
	if err := service.ActivateQuestion(ctx, question.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if scheduled != 60*time.Second {
		t.Fatalf("expected countdown of 60s, got %v", scheduled)
	}

	got, _ := store.GetQuestion(ctx, question.ID)
	if got.Status != domain.QuestionActive {
		t.Fatalf("expected ACTIVE, got %s", got.Status)
	}

	endFn()
	got, _ = store.GetQuestion(ctx, question.ID)
	if got.Status != domain.QuestionEnded {
		t.Fatalf("expected ENDED after countdown, got %s", got.Status)
	}
}

func TestDeleteRoundClosesSubscribers(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()
	defer service.Close()

	round, _ := seedRoundWithQuestion(t, service, "paris", false)
	updates, cancel, err := service.Subscribe(ctx, round.ID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	readBoard(t, updates)

	if err := service.DeleteRound(ctx, round.ID); err != nil {
		t.Fatalf("delete round: %v", err)
	}
	select {
	case _, ok := <-updates:
		if ok {
			t.Fatal("expected channel closed after round deletion")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func newTestService() (*Service, *memory.Store) {
	store := memory.NewStore()
	engine := judge.NewEngine(store, store, store, judge.DefaultMaxDistance)
	service := NewService(store, store, store, store, store, engine, Config{JudgeWorkers: 2, JudgeQueueSize: 16})
	return service, store
}

func seedRoundWithQuestion(t *testing.T, service *Service, answer string, fuzzy bool) (domain.Round, domain.Question) {
	t.Helper()
	ctx := context.Background()
	round, err := service.CreateRound(ctx, "Round 1", "test round", time.Now())
	if err != nil {
		t.Fatalf("create round: %v", err)
	}
	question, err := service.AddQuestion(ctx, domain.Question{
		RoundID:     round.ID,
		Prompt:      "Capital of France?",
		Answer:      answer,
		Fuzzy:       fuzzy,
		TimeSeconds: 60,
	})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	return round, question
}

func readBoard(t *testing.T, ch <-chan domain.Board) domain.Board {
	t.Helper()
	select {
	case board := <-ch:
		return board
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for board update")
		return domain.Board{}
	}
}
