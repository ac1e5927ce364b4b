package repository

import (
	"sort"
	"time"

	"github.com/okian/echelon/internal/domain/model"
)

// ranksBefore reports whether a should appear before b on a leaderboard:
// higher score first, then the earlier achievement, then wallet asc.
func ranksBefore(a, b model.LeaderboardEntry) bool {
	if a.HighScore != b.HighScore {
		return a.HighScore > b.HighScore
	}
	if !a.AchievedAt.Equal(b.AchievedAt) {
		return a.AchievedAt.Before(b.AchievedAt)
	}
	return a.PlayerWallet < b.PlayerWallet
}

func sortEntries(entries []model.LeaderboardEntry) {
	sort.Slice(entries, func(i, j int) bool { return ranksBefore(entries[i], entries[j]) })
}

// sessionTime is the instant a session is ordered by in history views.
func sessionTime(s model.GameSession) time.Time {
	if s.EndedAt != nil {
		return *s.EndedAt
	}
	return s.StartedAt
}

func sortSessions(sessions []model.GameSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		ti, tj := sessionTime(sessions[i]), sessionTime(sessions[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return sessions[i].ID < sessions[j].ID
	})
}

func (f SessionFilter) matches(s model.GameSession) bool {
	switch {
	case f.PlayerWallet != "" && s.PlayerWallet != f.PlayerWallet:
		return false
	case f.DrillID != "" && s.DrillID != f.DrillID:
		return false
	case f.GameType != "" && s.GameType != f.GameType:
		return false
	case f.CompletedOnly && !s.Completed:
		return false
	}
	return true
}
