// Package repository holds the managed-backend handle used by the service
// and its memory, Postgres and Redis implementations.
package repository

import (
	"context"

	"github.com/okian/echelon/internal/domain/gameconfig"
	"github.com/okian/echelon/internal/domain/model"
)

// SessionFilter narrows ListSessions. Zero fields match everything.
type SessionFilter struct {
	PlayerWallet  string
	DrillID       string
	GameType      model.GameType
	CompletedOnly bool
	Limit         int // 0 means unlimited
}

// Counts summarizes what the store holds.
type Counts struct {
	Players  int `json:"players"`
	Drills   int `json:"drills"`
	Sessions int `json:"sessions"`
	Entries  int `json:"leaderboard_entries"`
}

// Store is the backend handle. Every call is a single-record operation.
type Store interface {
	// EnsurePlayer returns the player for wallet, creating it with name
	// and zero balances when absent.
	EnsurePlayer(ctx context.Context, wallet, name string) (model.Player, error)
	GetPlayer(ctx context.Context, wallet string) (model.Player, error)
	// CreditPlayer adds credits and xp to the player's ledger.
	// Returns ErrNotFound when the wallet is unknown.
	CreditPlayer(ctx context.Context, wallet string, credits, xp int64) error

	GetDrill(ctx context.Context, id string) (model.Drill, error)
	PutDrill(ctx context.Context, d model.Drill) error

	CreateSession(ctx context.Context, s model.GameSession) error
	GetSession(ctx context.Context, id string) (model.GameSession, error)
	// CompleteSession overwrites the finalized fields of an existing session.
	CompleteSession(ctx context.Context, s model.GameSession) error
	// ListSessions returns matching sessions, most recently ended first.
	ListSessions(ctx context.Context, f SessionFilter) ([]model.GameSession, error)

	GetEntry(ctx context.Context, key model.BoardKey, wallet string) (model.LeaderboardEntry, error)
	// UpsertBest inserts e when absent and replaces it only when
	// e.HighScore is strictly greater than the stored score.
	UpsertBest(ctx context.Context, e model.LeaderboardEntry) (model.UpsertOutcome, error)
	// TopEntries returns up to limit entries ordered by score desc,
	// earlier AchievedAt first, then wallet.
	TopEntries(ctx context.Context, key model.BoardKey, limit int) ([]model.LeaderboardEntry, error)
	// CountEntries returns how many players hold an entry on the board.
	CountEntries(ctx context.Context, key model.BoardKey) (int, error)

	GetGameConfig(ctx context.Context, key model.BoardKey) (gameconfig.Config, error)
	PutGameConfig(ctx context.Context, cfg gameconfig.Config) error

	Counts(ctx context.Context) (Counts, error)
	Close() error
}
