package service

import "errors"

var (
	// ErrNotStarted is returned by lobby operations before Start or after Stop.
	ErrNotStarted = errors.New("service not started")
	// ErrInvalidName is returned when a participant joins without a display name.
	ErrInvalidName = errors.New("participant name must not be empty")
	// ErrUnknownParticipant is returned for ids the lobby has never seen.
	ErrUnknownParticipant = errors.New("unknown participant")
	// ErrAlreadyJoined is returned when an id joins twice.
	ErrAlreadyJoined = errors.New("participant already joined")
	// ErrNotInContest is returned when a guess targets a participant outside any contest.
	ErrNotInContest = errors.New("participant is not in a contest")
	// ErrCannotRequeue is returned when a participant is still queued or playing.
	ErrCannotRequeue = errors.New("participant cannot rejoin the queue")
)
