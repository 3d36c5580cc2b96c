// Package botrun drives websocket bots against a running service and checks
// that the standings agree with what the bots observed.
package botrun

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tally/pkg/logger"
)

// Runner configuration constants.
const (
	defaultBots          = 3
	httpTimeout          = 10 * time.Second
	percentageMultiplier = 100
)

// ErrNoBotFinished is returned when every bot failed or was aborted.
var ErrNoBotFinished = errors.New("no bot finished a contest")

// Run executes the complete bot run.
func Run(ctx context.Context, config *Config) (*Stats, []Result, error) {
	log := logger.Get().Named("botrun")
	stats := &Stats{StartTime: time.Now()}

	if config.Bots < 1 {
		config.Bots = defaultBots
	}
	if config.MaxValue <= config.MinValue {
		config.MinValue, config.MaxValue = 1, 100
	}
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	log.Info(ctx, "starting bot run",
		logger.String("baseURL", config.BaseURL),
		logger.Int("bots", config.Bots),
		logger.String("strategy", config.Strategy),
		logger.Duration("timeout", config.Timeout),
	)

	client := newHTTPClient(config.BaseURL, httpTimeout)
	if err := client.checkHealth(ctx); err != nil {
		return stats, nil, fmt.Errorf("service health check failed: %w", err)
	}

	results := make([]Result, config.Bots)
	var g errgroup.Group
	for i := range config.Bots {
		rng := rand.New(rand.NewSource(seed + int64(i))) //nolint:gosec // bot guesses only
		strategy := NewStrategy(config.Strategy, rng, config.MinValue, config.MaxValue)
		bot := NewBot(fmt.Sprintf("bot-%03d", i+1), config.BaseURL, strategy, config.Timeout, log)
		g.Go(func() error {
			results[i] = bot.Play(ctx)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		stats.BotsStarted++
		stats.Guesses += len(r.Guesses)
		for _, d := range r.Distances {
			if d == 0 {
				stats.Perfect++
			}
		}
		switch {
		case r.Aborted:
			stats.BotsAborted++
		case r.Err != nil:
			stats.BotsFailed++
			log.Warn(ctx, "bot failed", logger.String("bot", r.Name), logger.Error(r.Err))
		default:
			stats.BotsFinished++
		}
		if config.Verbose {
			log.Info(ctx, "bot result",
				logger.String("bot", r.Name),
				logger.String("participant", r.ParticipantID),
				logger.String("contest", r.ContestID),
				logger.Any("guesses", r.Guesses),
				logger.Any("distances", r.Distances),
				logger.Int("score", r.Score),
			)
		}
	}

	if stats.BotsFinished > 0 {
		if err := verifyResults(ctx, client, results, config.Bots); err != nil {
			log.Warn(ctx, "standings verification failed", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if stats.BotsFinished == 0 {
		return stats, results, ErrNoBotFinished
	}
	return stats, results, nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var finishRate float64
	if stats.BotsStarted > 0 {
		finishRate = float64(stats.BotsFinished) / float64(stats.BotsStarted) * percentageMultiplier
	}
	log.Info(ctx, "final statistics",
		logger.Int("botsStarted", stats.BotsStarted),
		logger.Int("botsFinished", stats.BotsFinished),
		logger.Int("botsAborted", stats.BotsAborted),
		logger.Int("botsFailed", stats.BotsFailed),
		logger.Int("guesses", stats.Guesses),
		logger.Int("perfect", stats.Perfect),
		logger.Duration("duration", stats.Duration),
		logger.Float64("finishRate", finishRate),
	)
}
