// Package repository keeps the cross-contest standings.
package repository

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then participant id ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the
// leaderboard from best to worst. Nodes carry subtree sizes so the
// rank of any score is found in O(log n) expected time.

type record struct {
	name  string
	score int
}

// treap node
type node struct {
	id    string
	score int
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID)
// in the leaderboard (higher ranks first).
func less(aScore int, aID string, bScore int, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score int, prio uint64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: prio, size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score int) *node {
	if n == nil {
		return nil
	}
	if score == n.score && id == n.id {
		// Rotate the higher priority child up until the node is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	} else if less(score, id, n.score, n.id) {
		n.left = deleteNode(n.left, id, score)
	} else {
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countHigher returns how many nodes have a score strictly above score.
func countHigher(n *node, score int) int {
	count := 0
	for n != nil {
		if n.score > score {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit entries in rank order (highest scores first).
func collectTopN(n *node, limit int, records map[string]record, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}

	collectTopN(n.left, limit, records, out)

	if len(*out) < limit {
		if rec, exists := records[n.id]; exists {
			*out = append(*out, Entry{ParticipantID: n.id, Name: rec.name, Score: rec.score})
		}
	}

	if len(*out) < limit {
		collectTopN(n.right, limit, records, out)
	}
}

// assignRanksWithTies gives equal scores the same rank; the next distinct
// score takes its position in the list (1, 1, 3).
func assignRanksWithTies(entries []Entry) {
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}

// TreapStore implements Store.
type TreapStore struct {
	mu   sync.RWMutex
	root *node
	byID map[string]record
	rng  *rand.Rand
	seed int64
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byID: make(map[string]record),
		seed: time.Now().UnixNano(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.rng = rand.New(rand.NewSource(s.seed)) //nolint:gosec // treap balancing only

	metrics.UpdateStandingsRecords(0)

	return s
}

// Set records the participant's cumulative score, replacing the previous one.
func (s *TreapStore) Set(ctx context.Context, id model.ParticipantID, name string, score int) error {
	key := string(id)

	s.mu.Lock()
	if old, ok := s.byID[key]; ok {
		if old.score == score && old.name == name {
			s.mu.Unlock()
			return nil
		}
		s.root = deleteNode(s.root, key, old.score)
	}
	s.byID[key] = record{name: name, score: score}
	s.root = insert(s.root, key, score, s.rng.Uint64())
	count := len(s.byID)
	s.mu.Unlock()

	metrics.RecordStandingsUpdate()
	metrics.UpdateStandingsRecords(count)
	return nil
}

// Rank returns the current rank and score for a participant in O(log n).
func (s *TreapStore) Rank(ctx context.Context, id model.ParticipantID) (Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStandingsQueryLatency(time.Since(start))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[string(id)]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return Entry{}, ErrNotFound
	}

	return Entry{
		Rank:          countHigher(s.root, rec.score) + 1,
		ParticipantID: string(id),
		Name:          rec.name,
		Score:         rec.score,
	}, nil
}

// TopN returns the top N entries ordered by score desc.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStandingsQueryLatency(time.Since(start))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, s.byID, &out)

	assignRanksWithTies(out)
	return out, nil
}

// Count returns the number of participants tracked.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
