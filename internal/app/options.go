package service

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/contest"
	"github.com/okian/tally/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithContestSize sets how many queued participants start a contest.
func WithContestSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.contestSize = n
		}
	}
}

// WithMaxRounds sets the rounds each contest plays.
func WithMaxRounds(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRounds = n
		}
	}
}

// WithRange sets the inclusive range of secret values.
func WithRange(minValue, maxValue int) Option {
	return func(s *Service) {
		s.rangeMin = minValue
		s.rangeMax = maxValue
	}
}

// WithRanked makes contests change participant scores.
func WithRanked(ranked bool) Option {
	return func(s *Service) { s.ranked = ranked }
}

// WithRoundTimeout arms a deadline on every round; zero disables it.
func WithRoundTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.roundTimeout = d
		}
	}
}

// WithSeed makes secret values reproducible; zero seeds from the clock.
func WithSeed(seed int64) Option {
	return func(s *Service) { s.seed = seed }
}

// WithPool sets the executor shared by every contest.
func WithPool(pool contest.Executor) Option {
	return func(s *Service) { s.pool = pool }
}

// WithNotifier sets where contest messages go.
func WithNotifier(n contest.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithBinder registers contest membership with an in-process router.
func WithBinder(b Binder) Option {
	return func(s *Service) { s.binder = b }
}

// WithStandings replaces the default treap standings.
func WithStandings(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.standings = store
		}
	}
}

// WithClock injects the clock used for queue waits and round deadlines.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
