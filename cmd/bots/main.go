package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/tally/internal/botrun"
)

// Default configuration constants.
const (
	defaultBots       = 3
	defaultTimeout    = time.Minute
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		bots     = flag.Int("bots", defaultBots, "Number of concurrent bots")
		strategy = flag.String("strategy", botrun.StrategyBisect, "Guessing strategy: bisect or random")
		timeout  = flag.Duration("timeout", defaultTimeout, "Per-bot limit for one contest")
		seed     = flag.Int64("seed", 0, "Seed for random guesses (default: clock)")
		logFile  = flag.String("log", "", "Also write logs to this file")
		verbose  = flag.Bool("verbose", false, "Enable verbose logging")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		botrun.ShowHelp()
		return
	}

	if err := botrun.SetupLogging(*logFile, *verbose); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &botrun.Config{
		BaseURL:  *baseURL,
		Bots:     *bots,
		Strategy: *strategy,
		Timeout:  *timeout,
		Seed:     *seed,
		LogFile:  *logFile,
		Verbose:  *verbose,
		MinValue: 1,
		MaxValue: 100,
	}

	if _, _, err := botrun.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
