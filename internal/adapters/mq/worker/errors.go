package worker

import "errors"

// Sentinel errors for pool submission and task execution.
var (
	ErrPoolClosed = errors.New("worker pool closed")
	ErrPoolFull   = errors.New("worker pool queue full")
	ErrTaskPanic  = errors.New("task panicked")
)
