package queue

import "errors"

// Sentinel errors for task submission.
var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue full")
)
