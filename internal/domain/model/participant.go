// Package model contains domain models passed between layers.
package model

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/okian/tally/internal/domain/scoring"
)

// ParticipantID identifies a participant for its whole lifetime.
type ParticipantID string

// NewParticipantID returns a random participant identifier.
func NewParticipantID() ParticipantID { return ParticipantID(uuid.NewString()) }

// State is a participant lifecycle state.
type State int

// Lifecycle: Queued -> Active -> {Finished, Disconnected}.
const (
	StateQueued State = iota
	StateActive
	StateFinished
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool { return s == StateFinished || s == StateDisconnected }

// ParticipantOption configures a Participant.
type ParticipantOption func(*Participant)

// WithParticipantID fixes the participant identifier.
func WithParticipantID(id ParticipantID) ParticipantOption {
	return func(p *Participant) {
		if id != "" {
			p.ID = id
		}
	}
}

// WithClock sets the clock used for the queue wait timer.
func WithClock(c clockwork.Clock) ParticipantOption {
	return func(p *Participant) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithSession marks the participant authenticated with the given token.
func WithSession(token string) ParticipantOption {
	return func(p *Participant) {
		if token != "" {
			p.sessionToken = token
			p.authenticated = true
		}
	}
}

// Participant is shared by the contest and the connection layer.
// All state is guarded by mu; the contest never destroys a participant.
type Participant struct {
	ID   ParticipantID
	Name string

	mu            sync.Mutex
	clock         clockwork.Clock
	state         State
	score         int
	gamesPlayed   int
	authenticated bool
	sessionToken  string
	queuedAt      time.Time
}

// NewParticipant creates a queued participant and starts its wait timer.
func NewParticipant(name string, opts ...ParticipantOption) *Participant {
	p := &Participant{
		ID:    NewParticipantID(),
		Name:  name,
		clock: clockwork.NewRealClock(),
		state: StateQueued,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.queuedAt = p.clock.Now()
	return p
}

// State returns the lifecycle state.
func (p *Participant) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// InQueue reports whether the participant waits for a contest.
func (p *Participant) InQueue() bool { return p.State() == StateQueued }

// InContest reports whether the participant plays the current round.
func (p *Participant) InContest() bool { return p.State() == StateActive }

// Score returns the cumulative score.
func (p *Participant) Score() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.score
}

// AddScore applies delta, clamps at zero, and returns the new score.
func (p *Participant) AddScore(delta int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.score = scoring.Apply(p.score, delta)
	return p.score
}

// GamesPlayed returns how many contests the participant finished.
func (p *Participant) GamesPlayed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gamesPlayed
}

// Authenticated reports whether a session was attached.
func (p *Participant) Authenticated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.authenticated
}

// SessionToken returns the attached session token, if any.
func (p *Participant) SessionToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessionToken
}

// Authenticate attaches a session token.
func (p *Participant) Authenticate(token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionToken = token
	p.authenticated = token != ""
}

// QueueWait returns time spent in the queue so far; zero once playing.
func (p *Participant) QueueWait() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateQueued {
		return 0
	}
	return p.clock.Since(p.queuedAt)
}

// Requeue puts a finished participant back in the queue and restarts the wait timer.
func (p *Participant) Requeue() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateFinished {
		return false
	}
	p.state = StateQueued
	p.queuedAt = p.clock.Now()
	return true
}

// Activate moves Queued -> Active and returns the queue wait.
func (p *Participant) Activate() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateQueued {
		return 0, false
	}
	p.state = StateActive
	return p.clock.Since(p.queuedAt), true
}

// Finish moves Active -> Finished and counts the game.
func (p *Participant) Finish() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateActive {
		return false
	}
	p.state = StateFinished
	p.gamesPlayed++
	return true
}

// Release moves Active -> Finished without counting a game.
// Used when a contest is torn down before completing.
func (p *Participant) Release() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateActive {
		return false
	}
	p.state = StateFinished
	return true
}

// Disconnect moves any non-terminal state to Disconnected.
// It returns false when the participant was already terminal.
func (p *Participant) Disconnect() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Terminal() {
		return false
	}
	p.state = StateDisconnected
	return true
}
