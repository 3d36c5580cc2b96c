// Package ledger records the guesses submitted during the current round.
package ledger

import (
	"sync"
	"sync/atomic"

	"github.com/okian/tally/internal/domain/model"
)

// Ledger is the per-round guess record shared by submitters, workers and the round thread.
type Ledger interface {
	// Record stores guess for id unless one is already present.
	// Returns false when id already guessed this round; the stored guess is kept.
	Record(id model.ParticipantID, guess int) bool

	// Get returns the guess recorded for id.
	Get(id model.ParticipantID) (int, bool)

	// HasAll reports whether every id has a recorded guess.
	HasAll(ids []model.ParticipantID) bool

	// Clear empties the ledger at a round boundary.
	Clear()

	Len() int
}

// InMemoryLedger implements Ledger with a map guarded by a RWMutex.
type InMemoryLedger struct {
	mu       sync.RWMutex
	guesses  map[model.ParticipantID]int
	capacity int
	size     atomic.Int64
}

// New creates an empty ledger.
func New(opts ...Option) *InMemoryLedger {
	l := &InMemoryLedger{capacity: 8}
	for _, opt := range opts {
		opt(l)
	}
	l.guesses = make(map[model.ParticipantID]int, l.capacity)
	return l
}

// Record stores the first guess per participant per round.
func (l *InMemoryLedger) Record(id model.ParticipantID, guess int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.guesses[id]; exists {
		return false
	}
	l.guesses[id] = guess
	l.size.Add(1)
	return true
}

// Get returns the guess recorded for id.
func (l *InMemoryLedger) Get(id model.ParticipantID) (int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	g, ok := l.guesses[id]
	return g, ok
}

// HasAll reports whether every id has a recorded guess. An empty set is complete.
func (l *InMemoryLedger) HasAll(ids []model.ParticipantID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, id := range ids {
		if _, ok := l.guesses[id]; !ok {
			return false
		}
	}
	return true
}

// Clear empties the ledger.
func (l *InMemoryLedger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.guesses = make(map[model.ParticipantID]int, l.capacity)
	l.size.Store(0)
}

// Len returns the number of recorded guesses.
func (l *InMemoryLedger) Len() int {
	return int(l.size.Load())
}
