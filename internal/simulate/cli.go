package simulate

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/echelon/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging sends the global logger to stdout and logFile.
// If logFile is empty, a timestamped filename is generated. It returns a
// func that closes the file.
func SetupLogging(logFile string) (func(), error) {
	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulate_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	if err := logger.InitWith(io.MultiWriter(os.Stdout, file), logger.FormatText); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return func() { _ = file.Close() }, nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Echelon Training Simulator
==========================

Drives concurrent simulated players through start/complete and verifies
the resulting leaderboards and player stats.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -players int
        Number of simulated players (default 200)
  -sessions int
        Sessions per player (default 5)
  -drills string
        Comma-separated drill ids (default: the seeded drills)
  -workers int
        Number of concurrent players (default CPU cores * 2)
  -top int
        Leaderboard rows fetched per board (default 100)
  -secret string
        Sign player tokens with this HS256 secret (default: $ECHELON_AUTH_SECRET)
  -issuer string
        Issuer claim for signed tokens (default: $ECHELON_AUTH_ISSUER)
  -timeout duration
        HTTP request timeout (default 10s)
  -log string
        Log file (default: simulate_log_TIMESTAMP.log)
  -verbose
        Log every offline outcome
  -help
        Show this help message

Examples:
  # Simulate against a local server
  go run ./cmd/simulate

  # Heavier run on two drills
  go run ./cmd/simulate -players 2000 -sessions 10 -drills pattern-recall,reaction-burst
`)
}
