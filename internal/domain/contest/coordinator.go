package contest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/scoring"
	"github.com/okian/tally/internal/domain/waitpoint"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// roundState collects what the participant tasks of one round report.
type roundState struct {
	mu        sync.Mutex
	outcomes  map[model.ParticipantID]model.Outcome
	forfeited map[model.ParticipantID]struct{}
}

func newRoundState(n int) *roundState {
	return &roundState{
		outcomes:  make(map[model.ParticipantID]model.Outcome, n),
		forfeited: make(map[model.ParticipantID]struct{}),
	}
}

func (r *roundState) scored(o model.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[o.ParticipantID] = o
}

func (r *roundState) forfeit(id model.ParticipantID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forfeited[id] = struct{}{}
}

// runRound plays the current round. It returns after every participant
// active at round start has guessed, departed or, with a deadline, run
// out of time. more reports whether another round follows.
func (c *Contest) runRound(ctx context.Context) (result model.RoundResult, more bool, err error) {
	start := c.clock.Now()

	c.mu.RLock()
	round := c.round
	roster := c.activeLocked()
	c.mu.RUnlock()

	log := c.logger.Named("coordinator")
	log.Debug(ctx, "round started",
		logger.String("contest", c.id),
		logger.Int("round", round),
		logger.Int("participants", len(roster)),
	)

	c.broadcast(ctx, model.Message{Type: model.MessageRoundStart, ContestID: c.id, Round: round})
	for _, id := range roster {
		c.notify(ctx, id, model.Message{
			Type:      model.MessageGuessPrompt,
			ContestID: c.id,
			Round:     round,
			Payload:   map[string]int{"range_min": c.policy.Min(), "range_max": c.policy.Max()},
		})
	}

	expired, stop := c.armDeadline(round)
	defer stop()

	state := newRoundState(len(roster))
	roundCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var g errgroup.Group
	for _, id := range roster {
		g.Go(func() error {
			name := fmt.Sprintf("contest/%s/round/%d/%s", c.id, round, id)
			done, err := c.pool.Submit(roundCtx, name, c.participantTask(ctx, id, state, expired))
			if err != nil {
				err = fmt.Errorf("%w: submit for %s: %w", ErrBarrier, id, err)
				cancel(err)
				return err
			}
			// A task nobody picks up must not pin the round.
			select {
			case err := <-done:
				if err != nil {
					err = fmt.Errorf("%w: task for %s: %w", ErrBarrier, id, err)
					cancel(err)
					return err
				}
				return nil
			case <-roundCtx.Done():
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("round %d interrupted: %w", round, err)
				}
				return context.Cause(roundCtx)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return model.RoundResult{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return model.RoundResult{}, false, fmt.Errorf("round %d interrupted: %w", round, err)
	}

	result, more = c.closeRound(round, roster, state)
	result.Duration = c.clock.Since(start)

	metrics.RecordRoundCompleted(result.Duration)
	log.Debug(ctx, "round completed",
		logger.String("contest", c.id),
		logger.Int("round", round),
		logger.Int("guesses", len(result.Outcomes)),
		logger.Duration("duration", result.Duration),
	)
	return result, more, nil
}

// participantTask blocks on id's wait point until the participant has a
// recorded guess or is no longer active, then applies the guess.
// runCtx is the context of Run; its cancellation tears the whole contest
// down and is handled by abort, not per participant.
func (c *Contest) participantTask(runCtx context.Context, id model.ParticipantID, state *roundState, expired <-chan struct{}) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ready := func() bool {
			if _, ok := c.ledger.Get(id); ok {
				return true
			}
			return !c.isActive(id)
		}

		err := c.waits.Get(id).Wait(ctx, ready, expired)
		switch {
		case errors.Is(err, waitpoint.ErrDeadline):
			state.forfeit(id)
			metrics.RecordRoundForfeit()
			return nil
		case err != nil:
			// A sibling's structural failure is reported by that sibling.
			if errors.Is(context.Cause(ctx), ErrBarrier) {
				return nil
			}
			if runCtx.Err() != nil {
				return nil
			}
			// Interrupting this task alone counts as leaving the contest.
			_ = c.Disconnect(context.WithoutCancel(ctx), id)
			return nil
		}

		if !c.isActive(id) {
			return nil
		}
		guess, ok := c.ledger.Get(id)
		if !ok {
			return nil
		}
		p, ok := c.Participant(id)
		if !ok {
			return nil
		}

		distance := scoring.Distance(guess, c.target)
		delta := c.policy.Score(guess, c.target, c.ranked)
		score := p.Score()
		if c.ranked {
			score = p.AddScore(delta)
		}
		state.scored(model.Outcome{
			ParticipantID: id,
			Name:          p.Name,
			Guessed:       true,
			Guess:         guess,
			Distance:      distance,
			Win:           distance == 0,
			Delta:         delta,
			Score:         score,
		})
		return nil
	}
}

// closeRound builds the result, clears the ledger and advances the round
// counter in one critical section, so a guess submitted afterwards lands in
// the next round.
func (c *Contest) closeRound(round int, roster []model.ParticipantID, state *roundState) (model.RoundResult, bool) {
	state.mu.Lock()
	defer state.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.accepting = false
	result := model.RoundResult{
		ContestID: c.id,
		Round:     round,
		Target:    c.target,
		Ranked:    c.ranked,
		Outcomes:  make([]model.Outcome, 0, len(roster)),
	}
	c.distances = make(map[model.ParticipantID]int, len(roster))
	for _, id := range roster {
		if o, ok := state.outcomes[id]; ok {
			result.Outcomes = append(result.Outcomes, o)
			c.distances[id] = o.Distance
			continue
		}
		if _, ok := state.forfeited[id]; ok {
			result.Forfeited = append(result.Forfeited, id)
			continue
		}
		result.Departed = append(result.Departed, id)
	}
	c.results = append(c.results, result)

	c.ledger.Clear()
	more := c.round < c.maxRounds && len(c.active) > 0
	if more {
		c.round++
		c.accepting = true
	}
	return result, more
}

// armDeadline closes the returned channel when the round times out.
// Guesses are refused from that moment so none can slip in after the
// workers gave up on them.
func (c *Contest) armDeadline(round int) (<-chan struct{}, func()) {
	if c.roundTimeout <= 0 {
		return nil, func() {}
	}
	expired := make(chan struct{})
	timer := c.clock.AfterFunc(c.roundTimeout, func() {
		c.mu.Lock()
		if c.round == round && c.state == StateRunning {
			c.accepting = false
		}
		c.mu.Unlock()
		close(expired)
	})
	return expired, func() { timer.Stop() }
}

// announce publishes a round result and feeds the standings.
func (c *Contest) announce(ctx context.Context, result model.RoundResult) {
	for _, o := range result.Outcomes {
		if o.Win {
			metrics.RecordPerfectGuess()
		}
		if c.ranked && c.standings != nil {
			if err := c.standings.Set(ctx, o.ParticipantID, o.Name, o.Score); err != nil {
				c.logger.Warn(ctx, "standings update failed",
					logger.String("contest", c.id),
					logger.String("participant", string(o.ParticipantID)),
					logger.Error(err),
				)
			}
		}
	}
	c.broadcast(ctx, model.Message{Type: model.MessageRoundResult, ContestID: c.id, Round: result.Round, Payload: result})
}
