// Package waitpoint lets one worker per participant block until that
// participant guesses or leaves.
//
// Each point is a single-slot channel. Signal never blocks and coalesces
// repeated signals into one pending wake-up, so a signal sent before the
// worker starts waiting is kept. Waiters always re-check their condition
// after waking; a stale wake-up only costs one extra check.
package waitpoint

import (
	"context"
	"errors"
	"sync"

	"github.com/okian/tally/internal/domain/model"
)

// ErrDeadline is returned by Wait when the expired channel closes first.
var ErrDeadline = errors.New("wait point deadline reached")

// Point is the wake-up slot of a single participant.
type Point struct {
	ch chan struct{}
}

func newPoint() *Point { return &Point{ch: make(chan struct{}, 1)} }

// Signal wakes the waiter, or leaves a pending wake-up if none is waiting.
func (p *Point) Signal() {
	select {
	case p.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until ready reports true, ctx is done or expired is closed.
// ready is evaluated before the first wait and after every wake-up.
// A nil expired channel never fires.
func (p *Point) Wait(ctx context.Context, ready func() bool, expired <-chan struct{}) error {
	for {
		if ready() {
			return nil
		}
		select {
		case <-p.ch:
		case <-ctx.Done():
			return ctx.Err()
		case <-expired:
			if ready() {
				return nil
			}
			return ErrDeadline
		}
	}
}

// Set holds the wait points of a contest, created lazily.
type Set struct {
	mu     sync.Mutex
	points map[model.ParticipantID]*Point
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{points: make(map[model.ParticipantID]*Point)}
}

// Get returns the point for id, creating it on first use.
func (s *Set) Get(id model.ParticipantID) *Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.points[id]
	if !ok {
		p = newPoint()
		s.points[id] = p
	}
	return p
}

// Signal wakes the worker waiting for id. Safe to call any number of times.
func (s *Set) Signal(id model.ParticipantID) { s.Get(id).Signal() }

// Remove forgets the point for id.
func (s *Set) Remove(id model.ParticipantID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.points, id)
}
