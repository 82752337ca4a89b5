// Package memory provides the in-memory store backend, used as the default
// runtime backend and throughout the tests.
package memory

import (
	"context"
	"sync"

	"live-trivia-service/internal/domain"

	"github.com/google/uuid"
)

type entryKey struct {
	roundID string
	userID  string
}

// Store keeps all round data in process memory. The single mutex makes the
// leaderboard increment-or-create atomic with respect to concurrent judges.
type Store struct {
	mu          sync.RWMutex
	rounds      map[string]domain.Round
	questions   map[string]domain.Question
	submissions map[string]domain.Submission
	entries     map[string]domain.LeaderboardEntry
	entryIDs    map[entryKey]string
	allowLists  map[string][]string
}

func NewStore() *Store {
	return &Store{
		rounds:      make(map[string]domain.Round),
		questions:   make(map[string]domain.Question),
		submissions: make(map[string]domain.Submission),
		entries:     make(map[string]domain.LeaderboardEntry),
		entryIDs:    make(map[entryKey]string),
		allowLists:  make(map[string][]string),
	}
}

// ---- rounds ----

func (s *Store) CreateRound(_ context.Context, round domain.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds[round.ID] = round
	return nil
}

func (s *Store) GetRound(_ context.Context, id string) (domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	round, ok := s.rounds[id]
	if !ok {
		return domain.Round{}, domain.ErrRoundNotFound
	}
	return round, nil
}

func (s *Store) GetRoundByRoomCode(_ context.Context, code string) (domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, round := range s.rounds {
		if round.RoomCode == code {
			return round, nil
		}
	}
	return domain.Round{}, domain.ErrRoomCodeNotFound
}

func (s *Store) RoomCodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, round := range s.rounds {
		if round.RoomCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) AddParticipant(_ context.Context, roundID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	round, ok := s.rounds[roundID]
	if !ok {
		return domain.ErrRoundNotFound
	}
	for _, p := range round.Participants {
		if p == userID {
			return domain.ErrAlreadyJoined
		}
	}
	round.Participants = append(round.Participants, userID)
	s.rounds[roundID] = round
	return nil
}

// DeleteRound removes the round and cascades to its questions, submissions,
// leaderboard entries, and allow-list.
func (s *Store) DeleteRound(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rounds[id]; !ok {
		return domain.ErrRoundNotFound
	}
	delete(s.rounds, id)
	for qid, q := range s.questions {
		if q.RoundID == id {
			delete(s.questions, qid)
		}
	}
	for sid, sub := range s.submissions {
		if sub.RoundID == id {
			delete(s.submissions, sid)
		}
	}
	for eid, e := range s.entries {
		if e.RoundID == id {
			delete(s.entries, eid)
			delete(s.entryIDs, entryKey{roundID: e.RoundID, userID: e.UserID})
		}
	}
	delete(s.allowLists, id)
	return nil
}

// ---- questions ----

func (s *Store) CreateQuestion(_ context.Context, question domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[question.ID] = question
	return nil
}

func (s *Store) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	question, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return question, nil
}

func (s *Store) ListQuestionsByRound(_ context.Context, roundID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	questions := make([]domain.Question, 0)
	for _, q := range s.questions {
		if q.RoundID == roundID {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

func (s *Store) SetQuestionStatus(_ context.Context, id string, status domain.QuestionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	question, ok := s.questions[id]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	question.Status = status
	s.questions[id] = question
	return nil
}

// ---- submissions ----

func (s *Store) InsertSubmission(_ context.Context, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submissions[sub.ID] = sub
	return nil
}

func (s *Store) GetSubmission(_ context.Context, id string) (domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.submissions[id]
	if !ok {
		return domain.Submission{}, domain.ErrSubmissionNotFound
	}
	return sub, nil
}

func (s *Store) PatchJudgement(_ context.Context, id string, j domain.Judgement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.submissions[id]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	sub.Judged = true
	sub.Correct = j.Correct
	sub.Fuzzy = j.Fuzzy
	sub.Score = j.Score
	s.submissions[id] = sub
	return nil
}

// ---- leaderboard ----

// UpsertEntry applies an atomic increment-or-create for (roundID, userID)
// and returns the resulting entry.
func (s *Store) UpsertEntry(_ context.Context, roundID, userID string, inc domain.ScoreIncrement) (domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryKey{roundID: roundID, userID: userID}
	if id, ok := s.entryIDs[key]; ok {
		entry := s.entries[id]
		entry.TotalScore += inc.Score
		entry.TotalTimeTakenMs += inc.TimeTakenMs
		entry.CorrectCount++
		if inc.SubmittedAt.After(entry.LastSubmissionAt) {
			entry.LastSubmissionAt = inc.SubmittedAt
		}
		s.entries[id] = entry
		return entry, nil
	}

	entry := domain.LeaderboardEntry{
		ID:               uuid.NewString(),
		RoundID:          roundID,
		UserID:           userID,
		TotalScore:       inc.Score,
		TotalTimeTakenMs: inc.TimeTakenMs,
		CorrectCount:     1,
		LastSubmissionAt: inc.SubmittedAt,
	}
	s.entries[entry.ID] = entry
	s.entryIDs[key] = entry.ID
	return entry, nil
}

func (s *Store) ListEntries(_ context.Context, roundID string) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.LeaderboardEntry, 0)
	for _, e := range s.entries {
		if e.RoundID == roundID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (s *Store) PatchRank(_ context.Context, entryID string, rank int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return domain.ErrEntryNotFound
	}
	entry.Rank = rank
	s.entries[entryID] = entry
	return nil
}

// ---- allow-list ----

func (s *Store) PutAllowList(_ context.Context, roundID string, emails []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowLists[roundID] = append([]string(nil), emails...)
	return nil
}

func (s *Store) GetAllowList(_ context.Context, roundID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	emails, ok := s.allowLists[roundID]
	if !ok {
		return nil, domain.ErrNoGuestList
	}
	return emails, nil
}
