package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/okian/echelon/internal/simulate"
)

// Default configuration constants.
const (
	defaultPlayers     = 200
	defaultSessions    = 5
	defaultTopN        = 100
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 10 * time.Second
	defaultRunTimeout  = 10 * time.Minute
	defaultDrillIDList = "pattern-recall,reaction-burst,sharpshooter,endurance-run"
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		players  = flag.Int("players", defaultPlayers, "Number of simulated players")
		sessions = flag.Int("sessions", defaultSessions, "Sessions per player")
		drills   = flag.String("drills", defaultDrillIDList, "Comma-separated drill ids")
		workers  = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent players")
		topN     = flag.Int("top", defaultTopN, "Leaderboard rows fetched per board")
		secret   = flag.String("secret", os.Getenv("ECHELON_AUTH_SECRET"), "HS256 secret for player tokens")
		issuer   = flag.String("issuer", os.Getenv("ECHELON_AUTH_ISSUER"), "Issuer claim for player tokens")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile  = flag.String("log", "", "Log file (default: simulate_log_TIMESTAMP.log)")
		verbose  = flag.Bool("verbose", false, "Log every offline outcome")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	closeLog, err := simulate.SetupLogging(*logFile)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)

	config := &simulate.Config{
		BaseURL:           *baseURL,
		Players:           *players,
		SessionsPerPlayer: *sessions,
		Drills:            splitList(*drills),
		Workers:           *workers,
		Timeout:           *timeout,
		TopN:              *topN,
		AuthSecret:        *secret,
		AuthIssuer:        *issuer,
		Verbose:           *verbose,
	}

	_, err = simulate.Run(ctx, config)
	cancel()
	closeLog()
	if err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
