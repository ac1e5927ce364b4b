// Package types contains the read shapes returned by the service.
package types

import "github.com/okian/echelon/internal/domain/model"

// LeaderboardRow is one ranked line of a leaderboard.
type LeaderboardRow struct {
	Rank            int               `json:"rank"`
	PlayerWallet    string            `json:"player_wallet"`
	PlayerName      string            `json:"player_name"`
	HighScore       int64             `json:"high_score"`
	BestPerformance model.Performance `json:"best_performance"`
}

// GameStats aggregates a player's completed sessions of one game type.
type GameStats struct {
	GamesPlayed        int     `json:"games_played"`
	AverageScore       float64 `json:"average_score"`
	BestScore          int64   `json:"best_score"`
	AverageAccuracy    float64 `json:"average_accuracy"`
	TotalCreditsEarned int64   `json:"total_credits_earned"`
	TotalXPEarned      int64   `json:"total_xp_earned"`
}

// Completion is the result of finalizing a session.
type Completion struct {
	CreditsEarned    int64 `json:"credits_earned"`
	XPEarned         int64 `json:"xp_earned"`
	SessionCompleted bool  `json:"session_completed"`
}

// Accumulate folds a completed session into the stats.
func (s *GameStats) Accumulate(sess model.GameSession) {
	n := float64(s.GamesPlayed)
	var acc float64
	if sess.Performance != nil {
		acc = sess.Performance.Accuracy
	}
	s.AverageScore = (s.AverageScore*n + float64(sess.FinalScore)) / (n + 1)
	s.AverageAccuracy = (s.AverageAccuracy*n + acc) / (n + 1)
	if s.GamesPlayed == 0 || sess.FinalScore > s.BestScore {
		s.BestScore = sess.FinalScore
	}
	s.GamesPlayed++
	s.TotalCreditsEarned += sess.CreditsEarned
	s.TotalXPEarned += sess.XPEarned
}
