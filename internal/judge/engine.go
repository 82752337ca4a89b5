// Package judge decides correctness and score for submitted answers and
// keeps per-round leaderboard aggregates consistent.
package judge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"live-trivia-service/internal/domain"
	"live-trivia-service/internal/match"
)

// DefaultMaxDistance is the fuzzy-match threshold used when none is configured.
const DefaultMaxDistance = 3

// SubmissionStore is the judge's view of submission persistence.
type SubmissionStore interface {
	GetSubmission(ctx context.Context, id string) (domain.Submission, error)
	// PatchJudgement writes the judgement fields onto the submission.
	// The write is an idempotent field overwrite.
	PatchJudgement(ctx context.Context, id string, j domain.Judgement) error
}

// QuestionStore resolves the question a submission targets. The judge always
// re-reads current question state; it does not assume the question is still
// ACTIVE by the time the task runs.
type QuestionStore interface {
	GetQuestion(ctx context.Context, id string) (domain.Question, error)
}

// LeaderboardStore holds per-(round, user) aggregates. UpsertEntry must be
// atomic with respect to concurrent writers for the same key.
type LeaderboardStore interface {
	UpsertEntry(ctx context.Context, roundID, userID string, inc domain.ScoreIncrement) (domain.LeaderboardEntry, error)
	ListEntries(ctx context.Context, roundID string) ([]domain.LeaderboardEntry, error)
	PatchRank(ctx context.Context, entryID string, rank int) error
}

// Engine judges one submission at a time. Safe for concurrent use; the only
// contended resource is the leaderboard upsert, which the store serializes.
type Engine struct {
	submissions SubmissionStore
	questions   QuestionStore
	leaderboard LeaderboardStore
	maxDistance int
}

func NewEngine(submissions SubmissionStore, questions QuestionStore, leaderboard LeaderboardStore, maxDistance int) *Engine {
	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	return &Engine{
		submissions: submissions,
		questions:   questions,
		leaderboard: leaderboard,
		maxDistance: maxDistance,
	}
}

// Judge evaluates one submission and persists the outcome exactly once.
// Invocation is at-least-once (the dispatcher may redeliver), so the judged
// flag is checked before anything else; a re-invocation is a silent no-op.
// A missing submission or question, or a question with no answer, aborts
// without writing anything.
func (e *Engine) Judge(ctx context.Context, submissionID string) error {
	sub, err := e.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, domain.ErrSubmissionNotFound) {
			log.Printf("judge: submission %s missing, skipping", submissionID)
			return nil
		}
		return fmt.Errorf("fetch submission: %w", err)
	}
	if sub.Judged {
		return nil
	}

	question, err := e.questions.GetQuestion(ctx, sub.QuestionID)
	if err != nil {
		if errors.Is(err, domain.ErrQuestionNotFound) {
			log.Printf("judge: question %s missing for submission %s, skipping", sub.QuestionID, submissionID)
			return nil
		}
		return fmt.Errorf("fetch question: %w", err)
	}
	if strings.TrimSpace(question.Answer) == "" {
		log.Printf("judge: question %s has no answer, skipping submission %s", question.ID, submissionID)
		return nil
	}

	outcome := evaluate(sub, question, e.maxDistance)

	if err := e.submissions.PatchJudgement(ctx, sub.ID, outcome); err != nil {
		return fmt.Errorf("patch submission: %w", err)
	}
	if !outcome.Correct {
		return nil
	}

	entry, err := e.leaderboard.UpsertEntry(ctx, sub.RoundID, sub.UserID, domain.ScoreIncrement{
		Score:       outcome.Score,
		TimeTakenMs: sub.TimeTakenMs,
		SubmittedAt: sub.SubmittedAt,
	})
	if err != nil {
		return fmt.Errorf("upsert leaderboard: %w", err)
	}

	// A failure past this point leaves the aggregates updated and the rank
	// stale; the next correct judgement for this user heals it.
	if err := e.rerank(ctx, entry); err != nil {
		return fmt.Errorf("recompute rank: %w", err)
	}
	return nil
}

// evaluate combines the two independent evaluators. Precedence: when the
// question has fuzzy matching enabled and any candidate qualifies, the fuzzy
// outcome is persisted even if the answer also matched exactly — an exact
// match is fuzzy's distance-0 case, so fuzzy-enabled questions always score
// with the fuzzy formula.
func evaluate(sub domain.Submission, question domain.Question, maxDistance int) domain.Judgement {
	outcome := domain.Judgement{}

	if exact, ok := evaluateExact(sub.Answer, question.Answer, sub.TimeTakenMs); ok {
		outcome = exact
	}
	if question.Fuzzy {
		candidates := append([]string{strings.TrimSpace(question.Answer)}, question.AlternativeAnswers...)
		if fuzzy, ok := evaluateFuzzy(sub.Answer, candidates, sub.TimeTakenMs, maxDistance); ok {
			outcome = fuzzy
		}
	}
	return outcome
}

// evaluateExact reports a full-points match when the trimmed answers are
// equal ignoring case. Score rewards speed: 1000 at zero elapsed time,
// minus one point per 10ms, floored at 100.
func evaluateExact(answer, canonical string, timeTakenMs int64) (domain.Judgement, bool) {
	if !strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(canonical)) {
		return domain.Judgement{}, false
	}
	return domain.Judgement{
		Correct: true,
		Score:   maxInt(100, 1000-int(timeTakenMs/10)),
	}, true
}

// evaluateFuzzy accepts an answer within maxDistance edits of any candidate.
// Score starts at 800 and penalizes both the best candidate's distance
// (50 per edit) and elapsed time (one point per 15ms), floored at 50.
func evaluateFuzzy(answer string, candidates []string, timeTakenMs int64, maxDistance int) (domain.Judgement, bool) {
	trimmed := strings.TrimSpace(answer)
	ranked := match.Rank(trimmed, candidates, maxDistance)
	if len(ranked) == 0 {
		return domain.Judgement{}, false
	}
	bestDistance := match.Distance(strings.ToLower(trimmed), strings.ToLower(ranked[0]))
	return domain.Judgement{
		Correct: true,
		Fuzzy:   true,
		Score:   maxInt(50, 800-bestDistance*50-int(timeTakenMs/15)),
	}, true
}

// rerank recomputes the updated entry's rank against all entries in the
// round. Other entries keep their stored rank until their own next correct
// judgement.
func (e *Engine) rerank(ctx context.Context, entry domain.LeaderboardEntry) error {
	entries, err := e.leaderboard.ListEntries(ctx, entry.RoundID)
	if err != nil {
		return err
	}
	return e.leaderboard.PatchRank(ctx, entry.ID, ComputeRank(entry, entries))
}

// ComputeRank returns 1 plus the count of other users that strictly outrank
// the entry (higher score, or equal score with lower accumulated time).
func ComputeRank(entry domain.LeaderboardEntry, entries []domain.LeaderboardEntry) int {
	rank := 1
	for _, other := range entries {
		if other.UserID == entry.UserID {
			continue
		}
		if other.Outranks(entry) {
			rank++
		}
	}
	return rank
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
