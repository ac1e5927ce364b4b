// Package model contains the training domain records passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// MaxScore is the largest accepted final score. Scores up to 2^53 are
// exact as float64, which is how the Redis leaderboard holds them.
const MaxScore int64 = 1 << 53

// GameType identifies a training mini-game.
type GameType string

// Known mini-games.
const (
	GamePatternMatrix   GameType = "pattern_matrix"
	GameReactionGrid    GameType = "reaction_grid"
	GamePrecisionTarget GameType = "precision_target"
	GameStaminaRush     GameType = "stamina_rush"
)

// GameTypes lists every known mini-game in a stable order.
var GameTypes = []GameType{GamePatternMatrix, GameReactionGrid, GamePrecisionTarget, GameStaminaRush}

// Valid reports whether g is a known mini-game.
func (g GameType) Valid() bool {
	for _, known := range GameTypes {
		if g == known {
			return true
		}
	}
	return false
}

// ParseGameType normalizes s and validates it as a GameType.
func ParseGameType(s string) (GameType, error) {
	g := GameType(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", fmt.Errorf("%w: unknown game type %q", ErrValidation, s)
	}
	return g, nil
}

// Category classifies a drill. Categories outside the known set are allowed
// and fall back to pattern matrix defaults.
type Category string

// Known drill categories.
const (
	CategoryCognition Category = "cognition"
	CategoryReflex    Category = "reflex"
	CategoryAccuracy  Category = "accuracy"
	CategoryEndurance Category = "endurance"
)

// Performance is the snapshot a client reports when a mini-game ends.
type Performance struct {
	Accuracy      float64 `json:"accuracy"`      // 0-100
	ReactionTime  float64 `json:"reaction_time"` // milliseconds
	Level         int     `json:"level"`
	PerfectRounds int     `json:"perfect_rounds"`
	TotalRounds   int     `json:"total_rounds"`
}

// Validate rejects snapshots that cannot come from a real game.
// Accuracy above 100 is accepted; the reward cap for it is undecided.
func (p Performance) Validate() error {
	switch {
	case p.Accuracy < 0:
		return fmt.Errorf("%w: accuracy must not be negative", ErrValidation)
	case p.Level < 0:
		return fmt.Errorf("%w: level must not be negative", ErrValidation)
	case p.ReactionTime < 0:
		return fmt.Errorf("%w: reaction_time must not be negative", ErrValidation)
	case p.PerfectRounds < 0 || p.TotalRounds < 0:
		return fmt.Errorf("%w: rounds must not be negative", ErrValidation)
	}
	return nil
}

// Player is the persistent ledger owner, keyed by wallet address.
type Player struct {
	Wallet     string    `json:"wallet_address"`
	Name       string    `json:"name"`
	Credits    int64     `json:"credits"`
	Experience int64     `json:"experience"`
	CreatedAt  time.Time `json:"created_at"`
}

// Drill is a static training exercise definition.
type Drill struct {
	ID          string   `json:"id" koanf:"id"`
	Name        string   `json:"name" koanf:"name"`
	Category    Category `json:"category" koanf:"category"`
	Difficulty  string   `json:"difficulty" koanf:"difficulty"`
	BaseCredits int64    `json:"base_credits" koanf:"base_credits"`
	BaseXP      int64    `json:"base_xp" koanf:"base_xp"`
}

// GameSession is one play attempt. It is created pending and finalized once.
type GameSession struct {
	ID            string       `json:"id"`
	PlayerWallet  string       `json:"player_wallet"`
	DrillID       string       `json:"drill_id"`
	GameType      GameType     `json:"game_type"`
	StartedAt     time.Time    `json:"started_at"`
	EndedAt       *time.Time   `json:"ended_at,omitempty"`
	FinalScore    int64        `json:"final_score"`
	Performance   *Performance `json:"performance,omitempty"`
	Completed     bool         `json:"completed"`
	CreditsEarned int64        `json:"credits_earned"`
	XPEarned      int64        `json:"xp_earned"`
}

// BoardKey identifies one leaderboard: a drill played as a game type.
type BoardKey struct {
	DrillID  string
	GameType GameType
}

func (k BoardKey) String() string {
	return k.DrillID + ":" + string(k.GameType)
}

// LeaderboardEntry is the best recorded score of a player on a board.
type LeaderboardEntry struct {
	DrillID         string      `json:"drill_id"`
	GameType        GameType    `json:"game_type"`
	PlayerWallet    string      `json:"player_wallet"`
	PlayerName      string      `json:"player_name"`
	HighScore       int64       `json:"high_score"`
	BestPerformance Performance `json:"best_performance"`
	AchievedAt      time.Time   `json:"achieved_at"`
}

// Key returns the board the entry belongs to.
func (e LeaderboardEntry) Key() BoardKey {
	return BoardKey{DrillID: e.DrillID, GameType: e.GameType}
}

// UpsertOutcome reports what a best-score upsert did.
type UpsertOutcome int

const (
	UpsertUnchanged UpsertOutcome = iota
	UpsertInserted
	UpsertImproved
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertInserted:
		return "inserted"
	case UpsertImproved:
		return "improved"
	default:
		return "unchanged"
	}
}

// Changed reports whether the stored high score moved.
func (o UpsertOutcome) Changed() bool {
	return o != UpsertUnchanged
}
