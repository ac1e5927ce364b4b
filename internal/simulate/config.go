// Package simulate drives concurrent simulated players against a running
// training API and checks the leaderboards they produce.
package simulate

import (
	"time"

	"github.com/okian/echelon/internal/domain/model"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL           string        // Base URL of the service
	Players           int           // Number of simulated players
	SessionsPerPlayer int           // Sessions each player completes
	Drills            []string      // Drill ids to play; game types come from the server
	Workers           int           // Number of concurrent players
	Timeout           time.Duration // HTTP request timeout
	TopN              int           // Leaderboard rows fetched per board
	AuthSecret        string        // Signs player tokens when the server verifies them
	AuthIssuer        string        // "iss" claim put on signed tokens
	Verbose           bool          // Log every offline outcome
}

// Board is one leaderboard under test.
type Board struct {
	DrillID  string
	GameType model.GameType
}

func (b Board) key() model.BoardKey {
	return model.BoardKey{DrillID: b.DrillID, GameType: b.GameType}
}

// Stats holds run statistics.
type Stats struct {
	Players           int
	SessionsCompleted int
	SessionsOffline   int
	CreditsEarned     int64
	XPEarned          int64
	BoardsVerified    int
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
