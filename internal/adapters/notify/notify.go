// Package notify delivers contest messages to participants and observers.
//
// All implementations satisfy contest.Notifier. Delivery is best effort:
// errors are reported to the caller for logging, never retried.
package notify

import (
	"context"
	"errors"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Notifier is the outbound port used by contests.
type Notifier interface {
	Broadcast(ctx context.Context, contestID string, msg model.Message) error
	Notify(ctx context.Context, id model.ParticipantID, msg model.Message) error
}

// LogNotifier writes every message to the log at debug level.
type LogNotifier struct {
	logger logger.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses the global one.
func NewLogNotifier(l logger.Logger) *LogNotifier {
	if l == nil {
		l = logger.Get().Named("notify")
	}
	return &LogNotifier{logger: l}
}

// Broadcast logs msg for contestID at debug level.
func (n *LogNotifier) Broadcast(ctx context.Context, contestID string, msg model.Message) error {
	n.logger.Debug(ctx, "broadcast",
		logger.String("contest", contestID),
		logger.String("type", string(msg.Type)),
		logger.Int("round", msg.Round),
	)
	metrics.RecordNotificationSent("log", string(msg.Type))
	return nil
}

// Notify logs msg for id at debug level.
func (n *LogNotifier) Notify(ctx context.Context, id model.ParticipantID, msg model.Message) error {
	n.logger.Debug(ctx, "notify",
		logger.String("participant", string(id)),
		logger.String("type", string(msg.Type)),
		logger.Int("round", msg.Round),
	)
	metrics.RecordNotificationSent("log", string(msg.Type))
	return nil
}

// Fanout delivers each message to every sink and joins their errors.
type Fanout []Notifier

// Broadcast delivers msg to every sink and joins their errors.
func (f Fanout) Broadcast(ctx context.Context, contestID string, msg model.Message) error {
	var errs []error
	for _, n := range f {
		if err := n.Broadcast(ctx, contestID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Notify delivers msg to every sink and joins their errors.
func (f Fanout) Notify(ctx context.Context, id model.ParticipantID, msg model.Message) error {
	var errs []error
	for _, n := range f {
		if err := n.Notify(ctx, id, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
