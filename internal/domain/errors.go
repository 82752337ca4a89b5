package domain

import "errors"

var (
	// ErrRoundNotFound indicates the referenced round does not exist.
	ErrRoundNotFound = errors.New("round not found")
	// ErrQuestionNotFound indicates a question ID could not be resolved.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrSubmissionNotFound indicates a submission ID could not be resolved.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrEntryNotFound indicates a leaderboard entry ID could not be resolved.
	ErrEntryNotFound = errors.New("leaderboard entry not found")
	// ErrQuestionNotActive is returned when a submission targets a question
	// outside its ACTIVE window.
	ErrQuestionNotActive = errors.New("question is not accepting submissions")
	// ErrRoomCodeNotFound indicates an invalid or expired room code.
	ErrRoomCodeNotFound = errors.New("invalid or expired room code")
	// ErrNotOnGuestList is returned when a joining email is not on the
	// round's allow-list.
	ErrNotOnGuestList = errors.New("not on the guest list for this round")
	// ErrAlreadyJoined is returned when a user joins a round twice.
	ErrAlreadyJoined = errors.New("already joined this round")
	// ErrNoGuestList indicates the round has no allow-list configured yet.
	ErrNoGuestList = errors.New("no guest list is set for this round")
)
