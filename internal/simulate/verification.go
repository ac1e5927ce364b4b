package simulate

import (
	"context"
	"fmt"

	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/domain/types"
	"github.com/okian/echelon/pkg/client"
)

// verifyBoards checks every board against the locally known best scores
// and returns how many boards were checked.
func verifyBoards(ctx context.Context, c *client.Client, boards []Board, l *ledger, topN int) (int, error) {
	verified := 0
	for _, b := range boards {
		rows, err := c.Leaderboard(ctx, b.DrillID, b.GameType, topN)
		if err != nil {
			return verified, fmt.Errorf("fetch leaderboard %s/%s: %w", b.DrillID, b.GameType, err)
		}
		l.mu.Lock()
		best := l.best[b.key()]
		err = verifyRows(rows, best, topN)
		l.mu.Unlock()
		if err != nil {
			return verified, fmt.Errorf("%w: board %s/%s: %w", ErrVerification, b.DrillID, b.GameType, err)
		}
		verified++
	}
	return verified, nil
}

// verifyRows checks ordering, rank numbering and that every row matches
// the best score its player achieved. Boards may hold players from earlier
// runs, so rows for unknown wallets are only checked for order.
func verifyRows(rows []types.LeaderboardRow, best map[string]int64, topN int) error {
	if len(rows) == 0 && len(best) > 0 {
		return fmt.Errorf("leaderboard is empty but %d players scored", len(best))
	}
	for i, row := range rows {
		if row.Rank != i+1 {
			return fmt.Errorf("row %d has rank %d", i, row.Rank)
		}
		if i > 0 && row.HighScore > rows[i-1].HighScore {
			return fmt.Errorf("row %d score %d above row %d score %d", i, row.HighScore, i-1, rows[i-1].HighScore)
		}
		if want, ok := best[row.PlayerWallet]; ok && row.HighScore != want {
			return fmt.Errorf("player %s high score %d, played best %d", row.PlayerWallet, row.HighScore, want)
		}
	}

	// A full page must include our top scorer unless the board holds
	// higher scores from elsewhere.
	var top int64 = -1
	for _, s := range best {
		if s > top {
			top = s
		}
	}
	if top >= 0 && len(rows) > 0 && rows[0].HighScore < top {
		return fmt.Errorf("top row score %d below played best %d", rows[0].HighScore, top)
	}
	if topN > 0 && len(rows) > topN {
		return fmt.Errorf("got %d rows for limit %d", len(rows), topN)
	}
	return nil
}

// verifyStats spot-checks per-player game counts for a few players.
func verifyStats(ctx context.Context, players []*client.Client, l *ledger) error {
	n := statsSampleSize
	if n > len(players) {
		n = len(players)
	}
	for _, c := range players[:n] {
		l.mu.Lock()
		plays := make(map[model.GameType]int, len(l.plays[c.Wallet()]))
		for g, count := range l.plays[c.Wallet()] {
			plays[g] = count
		}
		l.mu.Unlock()

		for g, want := range plays {
			stats, err := c.Stats(ctx, g)
			if err != nil {
				return fmt.Errorf("fetch stats for %s: %w", c.Wallet(), err)
			}
			if stats.GamesPlayed != want {
				return fmt.Errorf("%w: player %s played %d %s sessions, stats report %d",
					ErrVerification, c.Wallet(), want, g, stats.GamesPlayed)
			}
		}
	}
	return nil
}
