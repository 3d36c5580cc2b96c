package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

const (
	natsSink             = "nats"
	defaultSubjectPrefix = "tally"
	natsReconnectWait    = 2 * time.Second
)

// Publisher is the subset of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes messages as JSON:
//
//	<prefix>.contest.<contest id>.<type>
//	<prefix>.participant.<participant id>.<type>
type NATSNotifier struct {
	pub    Publisher
	prefix string
}

// NewNATSNotifier wraps an existing publisher.
func NewNATSNotifier(pub Publisher, prefix string) *NATSNotifier {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &NATSNotifier{pub: pub, prefix: prefix}
}

// ConnectNATS dials url with reconnect handling and returns a notifier
// plus the connection so the caller can drain it on shutdown.
func ConnectNATS(url, prefix string, log logger.Logger) (*NATSNotifier, *nats.Conn, error) {
	if log == nil {
		log = logger.Nop()
	}
	ctx := context.Background()
	opts := []nats.Option{
		nats.Name("tally"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn(ctx, "NATS disconnected", logger.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info(ctx, "NATS reconnected", logger.String("url", nc.ConnectedUrl()))
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error(ctx, "NATS error", logger.Error(err))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return NewNATSNotifier(nc, prefix), nc, nil
}

// ContestSubject returns the subject used for contest broadcasts.
func (n *NATSNotifier) ContestSubject(contestID string, t model.MessageType) string {
	return fmt.Sprintf("%s.contest.%s.%s", n.prefix, token(contestID), t)
}

// ParticipantSubject returns the subject used for participant notices.
func (n *NATSNotifier) ParticipantSubject(id model.ParticipantID, t model.MessageType) string {
	return fmt.Sprintf("%s.participant.%s.%s", n.prefix, token(string(id)), t)
}

// Broadcast publishes msg as JSON on the contest subject.
func (n *NATSNotifier) Broadcast(_ context.Context, contestID string, msg model.Message) error {
	return n.publish(n.ContestSubject(contestID, msg.Type), msg)
}

// Notify publishes msg as JSON on the participant subject.
func (n *NATSNotifier) Notify(_ context.Context, id model.ParticipantID, msg model.Message) error {
	return n.publish(n.ParticipantSubject(id, msg.Type), msg)
}

func (n *NATSNotifier) publish(subject string, msg model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		metrics.RecordNotificationFailed(natsSink)
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	if err := n.pub.Publish(subject, data); err != nil {
		metrics.RecordNotificationFailed(natsSink)
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	metrics.RecordNotificationSent(natsSink, string(msg.Type))
	return nil
}

// token makes an id safe to use as a single subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
