package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/metrics"
)

const (
	routerSink          = "router"
	defaultRouterBuffer = 32
)

// ErrNoSubscriber is returned when a notice targets a participant with no open subscription.
var ErrNoSubscriber = errors.New("participant has no subscriber")

// ErrSlowSubscriber is returned when a subscriber's buffer is full and the message was dropped.
var ErrSlowSubscriber = errors.New("subscriber buffer full")

// Router delivers messages in-process to subscribed participants.
// Contest broadcasts reach the participants bound to that contest.
type Router struct {
	mu       sync.RWMutex
	buffer   int
	subs     map[model.ParticipantID]chan model.Message
	contests map[string]map[model.ParticipantID]struct{}
}

// NewRouter creates a router whose subscriptions buffer up to buffer messages.
func NewRouter(buffer int) *Router {
	if buffer < 1 {
		buffer = defaultRouterBuffer
	}
	return &Router{
		buffer:   buffer,
		subs:     make(map[model.ParticipantID]chan model.Message),
		contests: make(map[string]map[model.ParticipantID]struct{}),
	}
}

// Subscribe opens the message stream for id, replacing any previous one.
// The returned cancel closes the stream.
func (r *Router) Subscribe(id model.ParticipantID) (<-chan model.Message, func()) {
	ch := make(chan model.Message, r.buffer)

	r.mu.Lock()
	if old, ok := r.subs[id]; ok {
		close(old)
	}
	r.subs[id] = ch
	r.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if cur, ok := r.subs[id]; ok && cur == ch {
				delete(r.subs, id)
				close(ch)
			}
		})
	}
}

// Bind routes broadcasts of contestID to ids.
func (r *Router) Bind(contestID string, ids ...model.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.contests[contestID]
	if !ok {
		members = make(map[model.ParticipantID]struct{}, len(ids))
		r.contests[contestID] = members
	}
	for _, id := range ids {
		members[id] = struct{}{}
	}
}

// Unbind forgets contestID.
func (r *Router) Unbind(contestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contests, contestID)
}

// Broadcast delivers msg to every subscriber bound to contestID.
// It returns ErrSlowSubscriber when a buffer was full.
func (r *Router) Broadcast(_ context.Context, contestID string, msg model.Message) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for id := range r.contests[contestID] {
		if ch, ok := r.subs[id]; ok {
			if err := deliver(ch, msg); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Notify delivers msg to id. It returns ErrNoSubscriber when id has no
// stream and ErrSlowSubscriber when the buffer is full.
func (r *Router) Notify(_ context.Context, id model.ParticipantID, msg model.Message) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.subs[id]
	if !ok {
		return ErrNoSubscriber
	}
	return deliver(ch, msg)
}

// deliver never blocks the contest; a full buffer drops the message.
func deliver(ch chan model.Message, msg model.Message) error {
	select {
	case ch <- msg:
		metrics.RecordNotificationSent(routerSink, string(msg.Type))
		return nil
	default:
		metrics.RecordNotificationFailed(routerSink)
		return ErrSlowSubscriber
	}
}
