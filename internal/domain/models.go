package domain

import "time"

// RoundStatus tracks the visibility of a round to participants.
type RoundStatus string

const (
	RoundUpcoming  RoundStatus = "UPCOMING"
	RoundLive      RoundStatus = "LIVE"
	RoundCompleted RoundStatus = "COMPLETED"
)

// QuestionStatus is the activation lifecycle of a question.
// Only ACTIVE questions accept new submissions.
type QuestionStatus string

const (
	QuestionWaiting      QuestionStatus = "WAITING"
	QuestionActive       QuestionStatus = "ACTIVE"
	QuestionIntermission QuestionStatus = "INTERMISSION"
	QuestionEnded        QuestionStatus = "ENDED"
)

// Round is a scheduled competition instance owning questions, submissions
// and leaderboard entries. Participants join with the round's room code.
type Round struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	RoomCode     string      `json:"roomCode"`
	StartAt      time.Time   `json:"startAt"`
	Status       RoundStatus `json:"status"`
	Participants []string    `json:"participants,omitempty"`
}

// Question is one timed prompt. Answer is the canonical accepted answer;
// AlternativeAnswers widen the fuzzy candidate set when Fuzzy is set.
type Question struct {
	ID                 string         `json:"id"`
	RoundID            string         `json:"roundId"`
	Prompt             string         `json:"prompt"`
	Answer             string         `json:"answer"`
	AlternativeAnswers []string       `json:"alternativeAnswers,omitempty"`
	Fuzzy              bool           `json:"fuzzy"`
	TimeSeconds        int            `json:"time"` // countdown duration once activated
	Status             QuestionStatus `json:"status"`
}

// Submission is one participant's answer attempt. Judgement fields are
// written exactly once by the judging engine; Judged guards re-invocation.
type Submission struct {
	ID          string    `json:"id"`
	RoundID     string    `json:"roundId"`
	QuestionID  string    `json:"questionId"`
	UserID      string    `json:"userId"`
	Answer      string    `json:"answer"`
	SubmittedAt time.Time `json:"submittedAt"`
	TimeTakenMs int64     `json:"timeTakenMs"` // elapsed from activation to submit, measured by caller

	Judged  bool `json:"judged"`
	Correct bool `json:"correct"`
	Fuzzy   bool `json:"fuzzy"`
	Score   int  `json:"score"`
}

// Judgement is the outcome persisted onto a submission.
type Judgement struct {
	Correct bool `json:"correct"`
	Fuzzy   bool `json:"fuzzy"`
	Score   int  `json:"score"`
}

// LeaderboardEntry is a user's aggregate standing within a round. Exactly
// one entry exists per (round, user), created on the first correct answer.
type LeaderboardEntry struct {
	ID               string    `json:"id"`
	RoundID          string    `json:"roundId"`
	UserID           string    `json:"userId"`
	TotalScore       int       `json:"totalScore"`
	TotalTimeTakenMs int64     `json:"totalTimeTakenMs"`
	CorrectCount     int       `json:"correctCount"`
	LastSubmissionAt time.Time `json:"lastSubmissionAt"`
	Rank             int       `json:"rank"` // 0 until first computed
}

// ScoreIncrement is one correct submission's contribution to an entry.
type ScoreIncrement struct {
	Score       int
	TimeTakenMs int64
	SubmittedAt time.Time
}

// Outranks reports whether e strictly outranks other: higher total score
// wins, equal scores break toward the lower accumulated time.
func (e LeaderboardEntry) Outranks(other LeaderboardEntry) bool {
	if e.TotalScore != other.TotalScore {
		return e.TotalScore > other.TotalScore
	}
	return e.TotalTimeTakenMs < other.TotalTimeTakenMs
}

// Board is a snapshot of a round's standings pushed to subscribers.
type Board struct {
	RoundID   string             `json:"roundId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
