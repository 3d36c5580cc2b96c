// Package contest runs a multi-round guessing contest.
//
// A Contest owns the secret value, the round counter, the guess ledger and
// one wait point per participant. Run drives the rounds: each round fans
// out one task per active participant onto the shared pool and blocks
// until every task reports back. SubmitGuess and Disconnect are called by
// the transport layer from any goroutine.
package contest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/okian/tally/internal/domain/ledger"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/scoring"
	"github.com/okian/tally/internal/domain/waitpoint"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Default contest configuration constants.
const (
	defaultMaxRounds = 3
)

// State is the contest lifecycle state.
type State int

// Contest states.
const (
	StatePending State = iota
	StateRunning
	StateFinished
	StateAborted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Standing is a participant's position at the end of a contest.
type Standing struct {
	ParticipantID model.ParticipantID `json:"participant_id"`
	Name          string              `json:"name"`
	Score         int                 `json:"score"`
	State         string              `json:"state"`
}

// Summary is returned by Run and carried by the contest_over message.
type Summary struct {
	ContestID string              `json:"contest_id"`
	Target    int                 `json:"target"`
	Ranked    bool                `json:"ranked"`
	Rounds    int                 `json:"rounds"`
	Results   []model.RoundResult `json:"results"`
	Standings []Standing          `json:"standings"`
}

// Contest is safe for concurrent use.
type Contest struct {
	id           string
	ranked       bool
	maxRounds    int
	policy       scoring.Policy
	rng          *rand.Rand
	fixedTarget  *int
	target       int
	pool         Executor
	notifier     Notifier
	standings    ScoreRecorder
	clock        clockwork.Clock
	roundTimeout time.Duration
	logger       logger.Logger

	ledger *ledger.InMemoryLedger
	waits  *waitpoint.Set

	mu           sync.RWMutex
	state        State
	round        int
	accepting    bool
	participants map[model.ParticipantID]*model.Participant
	order        []model.ParticipantID
	active       map[model.ParticipantID]struct{}
	distances    map[model.ParticipantID]int
	results      []model.RoundResult
}

// New creates a pending contest. An empty id is replaced with a random one.
// The secret value is drawn once here and never changes.
func New(id string, participants []*model.Participant, opts ...Option) *Contest {
	if id == "" {
		id = uuid.NewString()
	}
	c := &Contest{
		id:           id,
		ranked:       true,
		maxRounds:    defaultMaxRounds,
		policy:       scoring.Default(),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // game randomness, not security
		pool:         goExecutor{},
		notifier:     nopNotifier{},
		clock:        clockwork.NewRealClock(),
		waits:        waitpoint.NewSet(),
		round:        1,
		participants: make(map[model.ParticipantID]*model.Participant, len(participants)),
		active:       make(map[model.ParticipantID]struct{}, len(participants)),
		distances:    make(map[model.ParticipantID]int, len(participants)),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = logger.Get().Named("contest")
	}
	c.ledger = ledger.New(ledger.WithCapacity(len(participants)))
	if c.fixedTarget != nil {
		c.target = *c.fixedTarget
	} else {
		c.target = c.policy.Min() + c.rng.Intn(c.policy.Max()-c.policy.Min()+1)
	}

	for _, p := range participants {
		if p == nil {
			continue
		}
		if _, dup := c.participants[p.ID]; dup {
			continue
		}
		c.participants[p.ID] = p
		c.order = append(c.order, p.ID)
	}

	return c
}

// ID returns the contest identifier.
func (c *Contest) ID() string { return c.id }

// Target returns the secret value.
func (c *Contest) Target() int { return c.target }

// Ranked reports whether guesses change scores.
func (c *Contest) Ranked() bool { return c.ranked }

// MaxRounds returns the configured round count.
func (c *Contest) MaxRounds() int { return c.maxRounds }

// Policy returns the scoring policy in use.
func (c *Contest) Policy() scoring.Policy { return c.policy }

// Round returns the current round, starting at 1 and never above MaxRounds.
func (c *Contest) Round() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.round
}

// State returns the contest lifecycle state.
func (c *Contest) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Participant returns the participant with id.
func (c *Contest) Participant(id model.ParticipantID) (*model.Participant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.participants[id]
	return p, ok
}

// Participants returns every participant in join order.
func (c *Contest) Participants() []*model.Participant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Participant, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.participants[id])
	}
	return out
}

// Active returns the participants playing the current round, in join order.
func (c *Contest) Active() []model.ParticipantID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.activeLocked()
}

// Pending returns the active participants that have not guessed this round.
func (c *Contest) Pending() []model.ParticipantID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	active := c.activeLocked()
	if c.ledger.HasAll(active) {
		return nil
	}
	var out []model.ParticipantID
	for _, id := range active {
		if _, ok := c.ledger.Get(id); !ok {
			out = append(out, id)
		}
	}
	return out
}

// Distance returns the participant's distance in the last completed round,
// or -1 when the participant did not guess.
func (c *Contest) Distance(id model.ParticipantID) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if d, ok := c.distances[id]; ok {
		return d
	}
	return -1
}

// Results returns the completed rounds.
func (c *Contest) Results() []model.RoundResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.RoundResult, len(c.results))
	copy(out, c.results)
	return out
}

func (c *Contest) activeLocked() []model.ParticipantID {
	out := make([]model.ParticipantID, 0, len(c.active))
	for _, id := range c.order {
		if _, ok := c.active[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (c *Contest) isActive(id model.ParticipantID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.active[id]
	return ok
}

// AddParticipant adds p before the contest starts.
func (c *Contest) AddParticipant(p *model.Participant) error {
	if p == nil {
		return ErrUnknownParticipant
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePending {
		return ErrContestRunning
	}
	if _, dup := c.participants[p.ID]; dup {
		return ErrDuplicateParticipant
	}
	c.participants[p.ID] = p
	c.order = append(c.order, p.ID)
	return nil
}

// RemoveParticipant drops a participant before the start, or disconnects it afterwards.
func (c *Contest) RemoveParticipant(ctx context.Context, id model.ParticipantID) error {
	c.mu.Lock()
	if c.state == StatePending {
		defer c.mu.Unlock()
		if _, ok := c.participants[id]; !ok {
			return ErrUnknownParticipant
		}
		delete(c.participants, id)
		c.waits.Remove(id)
		for i, oid := range c.order {
			if oid == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		return nil
	}
	c.mu.Unlock()
	return c.Disconnect(ctx, id)
}

// SubmitGuess records value as id's guess for the current round and wakes
// the participant's worker. The first guess per round wins.
func (c *Contest) SubmitGuess(ctx context.Context, id model.ParticipantID, value int) error {
	if err := c.recordGuess(id, value); err != nil {
		metrics.RecordGuessRejected(rejectReason(err))
		c.logger.Debug(ctx, "guess rejected",
			logger.String("contest", c.id),
			logger.String("participant", string(id)),
			logger.Error(err),
		)
		return err
	}
	c.waits.Signal(id)
	metrics.RecordGuessAccepted()
	if c.AllGuessed() {
		c.logger.Debug(ctx, "all active participants guessed",
			logger.String("contest", c.id),
			logger.Int("round", c.Round()),
			logger.Int("guesses", c.ledger.Len()),
		)
	}
	return nil
}

// AllGuessed reports whether every active participant has a guess recorded
// for the current round.
func (c *Contest) AllGuessed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ledger.HasAll(c.activeLocked())
}

// recordGuess validates and records under the read lock so the round
// thread cannot clear the ledger between the checks and the write.
func (c *Contest) recordGuess(id model.ParticipantID, value int) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.state == StateFinished || c.state == StateAborted {
		return ErrContestOver
	}
	if _, ok := c.participants[id]; !ok {
		return ErrUnknownParticipant
	}
	if _, ok := c.active[id]; !ok {
		return ErrNotActive
	}
	if !c.accepting {
		return ErrRoundClosed
	}
	if !c.policy.Contains(value) {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfRange, value, c.policy.Min(), c.policy.Max())
	}
	if !c.ledger.Record(id, value) {
		return ErrDuplicateGuess
	}
	return nil
}

// Disconnect marks id as departed, removes it from future rounds and
// releases its worker. Calling it again has no further effect.
func (c *Contest) Disconnect(ctx context.Context, id model.ParticipantID) error {
	c.mu.Lock()
	p, ok := c.participants[id]
	if !ok {
		c.mu.Unlock()
		return ErrUnknownParticipant
	}
	_, wasActive := c.active[id]
	delete(c.active, id)
	changed := p.Disconnect()
	c.mu.Unlock()

	c.waits.Signal(id)

	if !changed {
		return nil
	}
	metrics.RecordDisconnect()
	if wasActive {
		metrics.AddActiveParticipants(-1)
	}
	c.logger.Info(ctx, "participant disconnected",
		logger.String("contest", c.id),
		logger.String("participant", string(id)),
		logger.Bool("was_active", wasActive),
	)
	return nil
}

// Run plays every round and returns the summary. Only a structural
// failure of the round barrier or cancellation of ctx ends it early; the
// contest is then aborted and participants are told so.
func (c *Contest) Run(ctx context.Context) (Summary, error) {
	if err := c.start(ctx); err != nil {
		return Summary{}, err
	}

	for {
		result, more, err := c.runRound(ctx)
		if err != nil {
			c.abort(ctx, err)
			return c.Summary(), err
		}
		c.announce(ctx, result)
		if !more {
			break
		}
	}

	c.finish(ctx)
	return c.Summary(), nil
}

func (c *Contest) start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StatePending {
		c.mu.Unlock()
		return ErrContestRunning
	}
	c.state = StateRunning
	c.accepting = true
	for _, id := range c.order {
		wait, ok := c.participants[id].Activate()
		if !ok {
			continue
		}
		c.active[id] = struct{}{}
		metrics.RecordQueueWait(wait)
	}
	roster := c.activeLocked()
	c.mu.Unlock()

	metrics.RecordContestStarted()
	metrics.AddActiveParticipants(len(roster))
	c.logger.Info(ctx, "contest started",
		logger.String("contest", c.id),
		logger.Int("participants", len(roster)),
		logger.Int("max_rounds", c.maxRounds),
		logger.Bool("ranked", c.ranked),
	)

	c.broadcast(ctx, model.Message{
		Type:      model.MessageContestStart,
		ContestID: c.id,
		Round:     1,
		Payload: map[string]any{
			"participants": roster,
			"max_rounds":   c.maxRounds,
			"ranked":       c.ranked,
			"range_min":    c.policy.Min(),
			"range_max":    c.policy.Max(),
		},
	})
	return nil
}

// finish marks every remaining participant finished and announces the end.
func (c *Contest) finish(ctx context.Context) {
	c.mu.Lock()
	c.state = StateFinished
	c.accepting = false
	finished := c.activeLocked()
	for _, id := range finished {
		c.participants[id].Finish()
		delete(c.active, id)
	}
	c.mu.Unlock()

	for _, id := range finished {
		c.waits.Signal(id)
	}
	metrics.AddActiveParticipants(-len(finished))
	metrics.RecordContestFinished()

	summary := c.Summary()
	c.broadcast(ctx, model.Message{Type: model.MessageContestOver, ContestID: c.id, Round: summary.Rounds, Payload: summary})
	for _, s := range summary.Standings {
		c.notify(ctx, s.ParticipantID, model.Message{Type: model.MessageContestOver, ContestID: c.id, Round: summary.Rounds, Payload: s})
	}
	c.logger.Info(ctx, "contest finished",
		logger.String("contest", c.id),
		logger.Int("rounds", summary.Rounds),
		logger.Int("target", c.target),
	)
}

// abort tears the contest down after a structural failure.
func (c *Contest) abort(ctx context.Context, cause error) {
	c.mu.Lock()
	c.state = StateAborted
	c.accepting = false
	released := c.activeLocked()
	for _, id := range released {
		c.participants[id].Release()
		delete(c.active, id)
	}
	round := c.round
	c.mu.Unlock()

	for _, id := range released {
		c.waits.Signal(id)
	}
	metrics.AddActiveParticipants(-len(released))
	metrics.RecordContestAborted()
	metrics.RecordErrorByComponent("contest", "aborted")

	// ctx may be the reason for the abort; teardown messages still go out.
	notifyCtx := context.WithoutCancel(ctx)
	c.logger.Error(notifyCtx, "contest aborted",
		logger.String("contest", c.id),
		logger.Int("round", round),
		logger.Error(cause),
	)
	c.broadcast(notifyCtx, model.Message{
		Type:      model.MessageContestAborted,
		ContestID: c.id,
		Round:     round,
		Payload:   map[string]any{"reason": cause.Error()},
	})
}

// Summary returns the contest results so far.
func (c *Contest) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Summary{
		ContestID: c.id,
		Target:    c.target,
		Ranked:    c.ranked,
		Rounds:    len(c.results),
		Results:   make([]model.RoundResult, len(c.results)),
		Standings: make([]Standing, 0, len(c.order)),
	}
	copy(s.Results, c.results)
	for _, id := range c.order {
		p := c.participants[id]
		s.Standings = append(s.Standings, Standing{
			ParticipantID: id,
			Name:          p.Name,
			Score:         p.Score(),
			State:         p.State().String(),
		})
	}
	return s
}

func (c *Contest) broadcast(ctx context.Context, msg model.Message) {
	if err := c.notifier.Broadcast(ctx, c.id, msg); err != nil {
		c.logger.Warn(ctx, "broadcast failed",
			logger.String("contest", c.id),
			logger.String("type", string(msg.Type)),
			logger.Error(err),
		)
	}
}

func (c *Contest) notify(ctx context.Context, id model.ParticipantID, msg model.Message) {
	if err := c.notifier.Notify(ctx, id, msg); err != nil {
		c.logger.Warn(ctx, "notify failed",
			logger.String("contest", c.id),
			logger.String("participant", string(id)),
			logger.String("type", string(msg.Type)),
			logger.Error(err),
		)
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownParticipant):
		return "unknown_participant"
	case errors.Is(err, ErrNotActive):
		return "not_active"
	case errors.Is(err, ErrDuplicateGuess):
		return "duplicate"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrRoundClosed):
		return "round_closed"
	case errors.Is(err, ErrContestOver):
		return "contest_over"
	default:
		return "other"
	}
}
