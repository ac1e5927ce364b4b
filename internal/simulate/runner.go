package simulate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/identity"
	"github.com/okian/echelon/pkg/client"
	"github.com/okian/echelon/pkg/logger"
)

const (
	tokenTTL          = time.Hour
	statsSampleSize   = 5
	percentMultiplier = 100
)

// ErrVerification marks a run whose results disagree with what was played.
var ErrVerification = errors.New("verification failed")

// ledger keeps what the simulated players actually achieved.
type ledger struct {
	mu    sync.Mutex
	best  map[model.BoardKey]map[string]int64
	plays map[string]map[model.GameType]int
	stats Stats
}

func newLedger() *ledger {
	return &ledger{
		best:  make(map[model.BoardKey]map[string]int64),
		plays: make(map[string]map[model.GameType]int),
	}
}

func (l *ledger) record(b Board, wallet string, score int64, out client.Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if out.Kind != client.OutcomeCompleted {
		l.stats.SessionsOffline++
		return
	}
	l.stats.SessionsCompleted++
	l.stats.CreditsEarned += out.Credits()
	l.stats.XPEarned += out.XP()

	k := b.key()
	if l.best[k] == nil {
		l.best[k] = make(map[string]int64)
	}
	if prev, ok := l.best[k][wallet]; !ok || score > prev {
		l.best[k][wallet] = score
	}
	if l.plays[wallet] == nil {
		l.plays[wallet] = make(map[model.GameType]int)
	}
	l.plays[wallet][b.GameType]++
}

// Run executes the complete simulation.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	log := logger.Get().Named("simulate")
	if config.Players < 1 || config.SessionsPerPlayer < 1 || len(config.Drills) == 0 {
		return nil, fmt.Errorf("%w: players, sessions and drills must be set", model.ErrValidation)
	}
	workers := config.Workers
	if workers < 1 || workers > config.Players {
		workers = config.Players
	}

	start := time.Now()
	log.Info(ctx, "starting training simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("players", config.Players),
		logger.Int("sessionsPerPlayer", config.SessionsPerPlayer),
		logger.Int("workers", workers),
		logger.Any("drills", config.Drills))

	probe := client.New(config.BaseURL, client.WithTimeout(config.Timeout))
	if err := probe.Healthy(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	boards, err := resolveBoards(ctx, probe, config.Drills)
	if err != nil {
		return nil, err
	}

	l := newLedger()
	players := make([]*client.Client, config.Players)
	for i := range players {
		c, err := newPlayer(config, i)
		if err != nil {
			return nil, err
		}
		players[i] = c
	}

	jobs := make(chan *client.Client, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				playAll(ctx, c, config, boards, l, log)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, c := range players {
			select {
			case <-ctx.Done():
				return
			case jobs <- c:
			}
		}
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("simulation interrupted: %w", err)
	}

	verified, err := verifyBoards(ctx, probe, boards, l, config.TopN)
	if err != nil {
		return nil, err
	}
	if err := verifyStats(ctx, players, l); err != nil {
		return nil, err
	}

	stats := l.stats
	stats.Players = config.Players
	stats.BoardsVerified = verified
	stats.StartTime = start
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(start)
	displayFinalStats(ctx, log, &stats)
	return &stats, nil
}

// resolveBoards asks the server which mini-game each drill plays as.
func resolveBoards(ctx context.Context, c *client.Client, drills []string) ([]Board, error) {
	boards := make([]Board, 0, len(drills))
	for _, id := range drills {
		cfg, err := c.GameConfig(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("resolve drill %q: %w", id, err)
		}
		boards = append(boards, Board{DrillID: id, GameType: cfg.GameType})
	}
	return boards, nil
}

func newPlayer(config *Config, i int) (*client.Client, error) {
	wallet := newWallet()
	opts := []client.Option{client.WithTimeout(config.Timeout), client.WithWallet(wallet)}
	if config.AuthSecret != "" {
		caller := identity.Caller{Wallet: wallet, Name: fmt.Sprintf("sim-%04d", i)}
		token, err := identity.Sign(config.AuthSecret, caller, config.AuthIssuer, time.Now().Add(tokenTTL))
		if err != nil {
			return nil, fmt.Errorf("sign player token: %w", err)
		}
		opts = append(opts, client.WithToken(token))
	}
	return client.New(config.BaseURL, opts...), nil
}

// playAll signs the player in and plays its sessions one after another.
func playAll(ctx context.Context, c *client.Client, config *Config, boards []Board, l *ledger, log logger.Logger) {
	if _, err := c.Me(ctx); err != nil {
		log.Warn(ctx, "player sign-in failed", logger.String("wallet", c.Wallet()), logger.Error(err))
	}
	for s := 0; s < config.SessionsPerPlayer; s++ {
		if ctx.Err() != nil {
			return
		}
		b := boards[randIntn(len(boards))]
		score, perf := generatePlay()
		out := c.PlaySession(ctx, client.Play{
			DrillID:     b.DrillID,
			GameType:    b.GameType,
			FinalScore:  score,
			Performance: perf,
		})
		if out.Kind == client.OutcomeOffline && config.Verbose {
			log.Warn(ctx, "session fell back to offline estimate",
				logger.String("wallet", c.Wallet()),
				logger.String("drillID", b.DrillID),
				logger.Error(out.Err))
		}
		l.record(b, c.Wallet(), score, out)
	}
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var completionRate, sessionsPerSecond float64
	total := stats.SessionsCompleted + stats.SessionsOffline
	if total > 0 {
		completionRate = float64(stats.SessionsCompleted) / float64(total) * percentMultiplier
	}
	if stats.Duration > 0 {
		sessionsPerSecond = float64(total) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("players", stats.Players),
		logger.Int("sessionsCompleted", stats.SessionsCompleted),
		logger.Int("sessionsOffline", stats.SessionsOffline),
		logger.Int64("creditsEarned", stats.CreditsEarned),
		logger.Int64("xpEarned", stats.XPEarned),
		logger.Int("boardsVerified", stats.BoardsVerified),
		logger.Duration("duration", stats.Duration),
		logger.Float64("completionRate", completionRate),
		logger.Float64("sessionsPerSecond", sessionsPerSecond))
}
