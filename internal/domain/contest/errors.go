package contest

import "errors"

// Per-participant errors returned to the caller of SubmitGuess and friends.
var (
	ErrUnknownParticipant   = errors.New("unknown participant")
	ErrDuplicateParticipant = errors.New("participant already in contest")
	ErrNotActive            = errors.New("participant not active in contest")
	ErrDuplicateGuess       = errors.New("guess already recorded this round")
	ErrRoundClosed          = errors.New("round closed for guesses")
	ErrOutOfRange           = errors.New("guess outside the contest range")
	ErrContestOver          = errors.New("contest over")
	ErrContestRunning       = errors.New("contest already started")
)

// ErrBarrier marks a structural failure of the round barrier.
// It is the only error that ends Run early.
var ErrBarrier = errors.New("round barrier failed")
