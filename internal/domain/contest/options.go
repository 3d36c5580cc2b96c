package contest

import (
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/tally/internal/domain/scoring"
	"github.com/okian/tally/pkg/logger"
)

// Option configures a Contest.
type Option func(*Contest)

// WithRanked makes guesses change participant scores.
func WithRanked(ranked bool) Option {
	return func(c *Contest) { c.ranked = ranked }
}

// WithMaxRounds sets the number of rounds played.
func WithMaxRounds(n int) Option {
	return func(c *Contest) {
		if n > 0 {
			c.maxRounds = n
		}
	}
}

// WithRange sets the inclusive range of the secret value.
func WithRange(minValue, maxValue int) Option {
	return func(c *Contest) { c.policy = scoring.NewPolicy(minValue, maxValue) }
}

// WithRand injects the source used to draw the secret value.
func WithRand(r *rand.Rand) Option {
	return func(c *Contest) {
		if r != nil {
			c.rng = r
		}
	}
}

// WithTarget fixes the secret value instead of drawing it.
func WithTarget(v int) Option {
	return func(c *Contest) { c.fixedTarget = &v }
}

// WithPool sets the executor shared by all contests.
func WithPool(pool Executor) Option {
	return func(c *Contest) {
		if pool != nil {
			c.pool = pool
		}
	}
}

// WithNotifier sets where contest messages are delivered.
func WithNotifier(n Notifier) Option {
	return func(c *Contest) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithStandings feeds scores into a leaderboard after ranked rounds.
func WithStandings(s ScoreRecorder) Option {
	return func(c *Contest) { c.standings = s }
}

// WithClock sets the clock used for round deadlines and durations.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Contest) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithRoundTimeout releases participants that have not guessed after d.
// Zero disables the deadline.
func WithRoundTimeout(d time.Duration) Option {
	return func(c *Contest) {
		if d >= 0 {
			c.roundTimeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Contest) {
		if l != nil {
			c.logger = l
		}
	}
}
