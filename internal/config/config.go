// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Load layers .env, an optional YAML file and TALLY_ environment variables on top.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of round task workers shared by all contests.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the number of round tasks waiting for a worker.
	QueueSize int `koanf:"queue_size"`

	// MaxRounds is the number of rounds each contest plays.
	MaxRounds int `koanf:"max_rounds"`

	// RangeMin and RangeMax bound the secret value (inclusive).
	RangeMin int `koanf:"range_min"`
	RangeMax int `koanf:"range_max"`

	// ContestSize is how many queued participants start a contest.
	ContestSize int `koanf:"contest_size"`

	// Ranked makes guesses change participant scores.
	Ranked bool `koanf:"ranked"`

	// RoundTimeoutMS releases non-guessing participants after this long; 0 disables it.
	RoundTimeoutMS int `koanf:"round_timeout_ms"`

	// Seed fixes the secret value source; 0 seeds from the clock.
	Seed int64 `koanf:"seed"`

	// NATSURL enables publishing contest events to NATS when set.
	NATSURL string `koanf:"nats_url"`

	// NATSSubjectPrefix prefixes every published subject.
	NATSSubjectPrefix string `koanf:"nats_subject_prefix"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// AllowedOrigins feeds the CORS policy of the HTTP server.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		WorkerCount:         runtime.NumCPU() * 4,
		QueueSize:           4096,
		MaxRounds:           3,
		RangeMin:            1,
		RangeMax:            100,
		ContestSize:         3,
		Ranked:              true,
		RoundTimeoutMS:      0,
		Seed:                0,
		NATSURL:             "",
		NATSSubjectPrefix:   "tally",
		MaxLeaderboardLimit: 100,
		AllowedOrigins:      []string{"*"},
	}
}

// RoundTimeout returns the round deadline as a duration.
func (c *Config) RoundTimeout() time.Duration {
	if c.RoundTimeoutMS <= 0 {
		return 0
	}
	return time.Duration(c.RoundTimeoutMS) * time.Millisecond
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return invalid("addr must not be empty")
	case c.MaxRounds < 1:
		return invalid("max_rounds must be at least 1")
	case c.RangeMin > c.RangeMax:
		return invalid("range_min must not exceed range_max")
	case c.ContestSize < 1:
		return invalid("contest_size must be at least 1")
	case c.RoundTimeoutMS < 0:
		return invalid("round_timeout_ms must not be negative")
	}
	return nil
}
