package contest

import (
	"context"

	"github.com/okian/tally/internal/domain/model"
)

// Executor runs round tasks on a bounded pool.
// The returned channel receives exactly one value per accepted task.
type Executor interface {
	Submit(ctx context.Context, name string, fn func(ctx context.Context) error) (<-chan error, error)
}

// Notifier delivers outbound messages. Delivery is fire-and-forget.
type Notifier interface {
	Broadcast(ctx context.Context, contestID string, msg model.Message) error
	Notify(ctx context.Context, id model.ParticipantID, msg model.Message) error
}

// ScoreRecorder receives participant scores after ranked rounds.
type ScoreRecorder interface {
	Set(ctx context.Context, id model.ParticipantID, name string, score int) error
}

// goExecutor runs every task on its own goroutine.
type goExecutor struct{}

func (goExecutor) Submit(ctx context.Context, _ string, fn func(ctx context.Context) error) (<-chan error, error) {
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	return done, nil
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(context.Context, string, model.Message) error { return nil }

func (nopNotifier) Notify(context.Context, model.ParticipantID, model.Message) error { return nil }
