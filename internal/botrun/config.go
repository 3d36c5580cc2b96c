package botrun

import "time"

// Strategy names accepted by Config.Strategy.
const (
	StrategyBisect = "bisect"
	StrategyRandom = "random"
)

// Config holds configuration for a bot run.
type Config struct {
	BaseURL  string        // Base URL of the service, http or https
	Bots     int           // Number of concurrent bots
	Strategy string        // bisect or random
	Timeout  time.Duration // Per-bot limit for one contest
	Seed     int64         // Seed for random guesses; 0 uses the clock
	LogFile  string        // Log file for run output
	Verbose  bool          // Enable verbose logging
	MinValue int           // Lower bound used until the contest announces its range
	MaxValue int           // Upper bound used until the contest announces its range
}

// Entry represents a standings entry returned by the service.
type Entry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
}

// Result is what one bot observed.
type Result struct {
	Name          string
	ParticipantID string
	ContestID     string
	Rounds        int
	Guesses       []int
	Distances     []int
	Score         int
	Aborted       bool
	Err           error
}

// Stats holds run statistics.
type Stats struct {
	BotsStarted  int
	BotsFinished int
	BotsAborted  int
	BotsFailed   int
	Guesses      int
	Perfect      int
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
}
