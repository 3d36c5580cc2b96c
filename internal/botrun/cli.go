package botrun

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/tally/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initializes the logger, writing to stdout and, when logFile
// is set, to that file too.
func SetupLogging(logFile string, verbose bool) error {
	var w io.Writer = os.Stdout
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
	}
	if err := logger.InitWithWriter(w); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	level := "info"
	if verbose {
		level = "debug"
	}
	return logger.SetLevelString(level)
}

// ShowHelp prints usage information for the bot tool.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`tally bots
==========

Connects N websocket bots to a running service, lets them play and checks
the standings afterwards.

Usage:
  go run ./cmd/bots [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -bots int
        Number of concurrent bots (default 3)
  -strategy string
        bisect or random (default "bisect")
  -timeout duration
        Per-bot limit for one contest (default 1m)
  -seed int
        Seed for random guesses (default: clock)
  -log string
        Also write logs to this file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/bots -bots 9
  go run ./cmd/bots -strategy random -seed 42 -verbose
`)
}
