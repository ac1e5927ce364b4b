// Package service implements the training-session flow and read views
// consumed by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	repository "github.com/okian/echelon/internal/adapters/repository"
	"github.com/okian/echelon/internal/domain/gameconfig"
	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/domain/rewards"
	"github.com/okian/echelon/internal/domain/types"
	"github.com/okian/echelon/internal/identity"
	"github.com/okian/echelon/pkg/logger"
	"github.com/okian/echelon/pkg/metrics"
)

// Defaults for read view limits.
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
	DefaultHistoryLimit     = 20
)

// LeaderboardNotifier receives boards whose ranking changed.
type LeaderboardNotifier interface {
	// Watching reports whether anyone is subscribed to key.
	Watching(key model.BoardKey) bool
	// Publish hands the fresh top rows of key to subscribers. It must not block.
	Publish(ctx context.Context, key model.BoardKey, rows []types.LeaderboardRow)
}

// Service implements the API dependencies for the training backend.
type Service struct {
	mu sync.RWMutex

	store    repository.Store
	notifier LeaderboardNotifier
	logger   logger.Logger
	now      func() time.Time
	newID    func() string

	defaultLeaderboardLimit int
	maxLeaderboardLimit     int
	defaultHistoryLimit     int

	started   bool
	startedAt time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backend handle. Start falls back to a memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithNotifier sets who is told about leaderboard improvements.
func WithNotifier(n LeaderboardNotifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides how session ids are minted.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLeaderboardLimits sets the default and maximum leaderboard sizes.
func WithLeaderboardLimits(def, maxLimit int) Option {
	return func(s *Service) {
		if maxLimit > 0 {
			s.maxLeaderboardLimit = maxLimit
		}
		if def > 0 {
			s.defaultLeaderboardLimit = min(def, s.maxLeaderboardLimit)
		}
	}
}

// WithHistoryLimit sets the default history page size.
func WithHistoryLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultHistoryLimit = n
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		now:                     time.Now,
		newID:                   uuid.NewString,
		defaultLeaderboardLimit: DefaultLeaderboardLimit,
		maxLeaderboardLimit:     MaxLeaderboardLimit,
		defaultHistoryLimit:     DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start finishes wiring. It is safe to call more than once.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore(repository.WithClock(s.now))
		s.logger.Info(ctx, "no store configured, using memory store")
	}

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "training service started",
		logger.Int("defaultLeaderboardLimit", s.defaultLeaderboardLimit),
		logger.Int("maxLeaderboardLimit", s.maxLeaderboardLimit),
		logger.Int("defaultHistoryLimit", s.defaultHistoryLimit),
		logger.Bool("liveNotifier", s.notifier != nil),
	)
	return nil
}

// Stop closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(context.Background(), "closing store", logger.Error(err))
	}
	s.started = false
	s.logger.Info(context.Background(), "training service stopped")
}

func (s *Service) backend() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, errors.New("service not started")
	}
	return s.store, nil
}

// SeedDrills upserts the static drill catalogue.
func (s *Service) SeedDrills(ctx context.Context, drills []model.Drill) error {
	store, err := s.backend()
	if err != nil {
		return err
	}
	for _, d := range drills {
		if strings.TrimSpace(d.ID) == "" {
			return fmt.Errorf("%w: drill id is required", model.ErrValidation)
		}
		if err := store.PutDrill(ctx, d); err != nil {
			return fmt.Errorf("seed drill %q: %w", d.ID, err)
		}
	}
	s.logger.Info(ctx, "drills seeded", logger.Int("count", len(drills)))
	return nil
}

// EnsurePlayer returns the caller's player record, creating it on first use.
func (s *Service) EnsurePlayer(ctx context.Context, caller identity.Caller) (model.Player, error) {
	store, err := s.backend()
	if err != nil {
		return model.Player{}, err
	}
	if caller.Wallet == "" {
		return model.Player{}, fmt.Errorf("%w: wallet address is required", model.ErrValidation)
	}
	return store.EnsurePlayer(ctx, caller.Wallet, caller.Name)
}

// StartGameSession records a pending session for caller and returns its id.
// The drill is not checked here; completion does that.
func (s *Service) StartGameSession(ctx context.Context, caller identity.Caller, drillID string, gameType model.GameType) (string, error) {
	store, err := s.backend()
	if err != nil {
		return "", err
	}
	switch {
	case caller.Wallet == "":
		return "", fmt.Errorf("%w: wallet address is required", model.ErrValidation)
	case strings.TrimSpace(drillID) == "":
		return "", fmt.Errorf("%w: drill id is required", model.ErrValidation)
	case !gameType.Valid():
		return "", fmt.Errorf("%w: unknown game type %q", model.ErrValidation, gameType)
	}

	sess := model.GameSession{
		ID:           s.newID(),
		PlayerWallet: caller.Wallet,
		DrillID:      drillID,
		GameType:     gameType,
		StartedAt:    s.now().UTC(),
	}
	if err := store.CreateSession(ctx, sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	metrics.RecordSessionStarted()
	s.logger.Debug(ctx, "session started",
		logger.String("sessionID", sess.ID),
		logger.String("wallet", caller.Wallet),
		logger.String("drillID", drillID),
		logger.String("gameType", string(gameType)),
	)
	return sess.ID, nil
}

// CompleteGameSession finalizes a session, credits the player's ledger and
// offers the score to the leaderboard. Unknown sessions or drills fail
// with ErrNotFound before anything is written. A session may be completed
// again; each completion credits the ledger.
func (s *Service) CompleteGameSession(ctx context.Context, sessionID string, finalScore int64, perf model.Performance) (types.Completion, error) {
	start := time.Now()
	defer func() { metrics.RecordCompletionLatency(float64(time.Since(start).Microseconds()) / 1000) }()

	store, err := s.backend()
	if err != nil {
		return types.Completion{}, err
	}
	if finalScore < 0 {
		metrics.RecordCompletionFailure("validation")
		return types.Completion{}, fmt.Errorf("%w: final score must not be negative", model.ErrValidation)
	}
	if finalScore > model.MaxScore {
		metrics.RecordCompletionFailure("validation")
		return types.Completion{}, fmt.Errorf("%w: final score exceeds %d", model.ErrValidation, model.MaxScore)
	}
	if err := perf.Validate(); err != nil {
		metrics.RecordCompletionFailure("validation")
		return types.Completion{}, err
	}

	sess, err := store.GetSession(ctx, sessionID)
	if err != nil {
		metrics.RecordCompletionFailure(failureReason(err))
		return types.Completion{}, err
	}
	drill, err := store.GetDrill(ctx, sess.DrillID)
	if err != nil {
		metrics.RecordCompletionFailure(failureReason(err))
		return types.Completion{}, err
	}

	reward := rewards.Compute(rewards.BaseOf(drill), perf)
	now := s.now().UTC()
	sess.EndedAt = &now
	sess.FinalScore = finalScore
	sess.Performance = &perf
	sess.Completed = true
	sess.CreditsEarned = reward.Credits
	sess.XPEarned = reward.XP
	if err := store.CompleteSession(ctx, sess); err != nil {
		metrics.RecordCompletionFailure(failureReason(err))
		return types.Completion{}, fmt.Errorf("complete session: %w", err)
	}

	name, err := s.creditLedger(ctx, store, sess.PlayerWallet, reward)
	if err != nil {
		metrics.RecordCompletionFailure("ledger")
		return types.Completion{}, err
	}

	key := model.BoardKey{DrillID: sess.DrillID, GameType: sess.GameType}
	outcome, err := store.UpsertBest(ctx, model.LeaderboardEntry{
		DrillID:         key.DrillID,
		GameType:        key.GameType,
		PlayerWallet:    sess.PlayerWallet,
		PlayerName:      name,
		HighScore:       finalScore,
		BestPerformance: perf,
		AchievedAt:      now,
	})
	if err != nil {
		metrics.RecordCompletionFailure("leaderboard")
		return types.Completion{}, fmt.Errorf("upsert leaderboard: %w", err)
	}
	metrics.RecordLeaderboardUpdate(outcome.String())
	metrics.RecordSessionCompleted(string(sess.GameType), reward.Credits, reward.XP)

	if outcome.Changed() {
		s.notify(ctx, key)
	}

	s.logger.Info(ctx, "session completed",
		logger.String("sessionID", sess.ID),
		logger.String("wallet", sess.PlayerWallet),
		logger.Int64("score", finalScore),
		logger.Int64("credits", reward.Credits),
		logger.Int64("xp", reward.XP),
		logger.String("leaderboard", outcome.String()),
	)
	return types.Completion{
		CreditsEarned:    reward.Credits,
		XPEarned:         reward.XP,
		SessionCompleted: true,
	}, nil
}

// creditLedger adds the reward to the player and returns the display name
// for the leaderboard. A missing player is skipped.
func (s *Service) creditLedger(ctx context.Context, store repository.Store, wallet string, reward rewards.Result) (string, error) {
	player, err := store.GetPlayer(ctx, wallet)
	if errors.Is(err, model.ErrNotFound) {
		s.skipLedger(ctx, wallet)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load player: %w", err)
	}
	err = store.CreditPlayer(ctx, wallet, reward.Credits, reward.XP)
	if errors.Is(err, model.ErrNotFound) {
		s.skipLedger(ctx, wallet)
		return player.Name, nil
	}
	if err != nil {
		return "", fmt.Errorf("credit player: %w", err)
	}
	return player.Name, nil
}

func (s *Service) skipLedger(ctx context.Context, wallet string) {
	metrics.RecordLedgerSkip()
	s.logger.Warn(ctx, "player not found, ledger update skipped", logger.String("wallet", wallet))
}

func (s *Service) notify(ctx context.Context, key model.BoardKey) {
	if s.notifier == nil || !s.notifier.Watching(key) {
		return
	}
	rows, err := s.GetLeaderboard(ctx, key.DrillID, key.GameType, 0)
	if err != nil {
		s.logger.Warn(ctx, "live leaderboard refresh failed",
			logger.String("board", key.String()),
			logger.Error(err),
		)
		return
	}
	s.notifier.Publish(ctx, key, rows)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrValidation):
		return "validation"
	default:
		return "store"
	}
}

// GetGameConfig returns the stored configuration for the drill's game type
// or the category default when none is stored.
func (s *Service) GetGameConfig(ctx context.Context, drillID string) (gameconfig.Config, error) {
	store, err := s.backend()
	if err != nil {
		return gameconfig.Config{}, err
	}
	drill, err := store.GetDrill(ctx, drillID)
	if err != nil {
		return gameconfig.Config{}, err
	}
	key := model.BoardKey{DrillID: drill.ID, GameType: gameconfig.GameTypeFor(drill.Category)}
	stored, err := store.GetGameConfig(ctx, key)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return gameconfig.Resolve(drill, nil), nil
	case err != nil:
		return gameconfig.Config{}, fmt.Errorf("load game config: %w", err)
	}
	return gameconfig.Resolve(drill, &stored), nil
}

// GetLeaderboard returns the ranked top of a board. A non-positive limit
// means the default; larger limits are capped.
func (s *Service) GetLeaderboard(ctx context.Context, drillID string, gameType model.GameType, limit int) ([]types.LeaderboardRow, error) {
	store, err := s.backend()
	if err != nil {
		return nil, err
	}
	if !gameType.Valid() {
		return nil, fmt.Errorf("%w: unknown game type %q", model.ErrValidation, gameType)
	}
	if limit <= 0 {
		limit = s.defaultLeaderboardLimit
	}
	if limit > s.maxLeaderboardLimit {
		limit = s.maxLeaderboardLimit
	}

	entries, err := store.TopEntries(ctx, model.BoardKey{DrillID: drillID, GameType: gameType}, limit)
	if err != nil {
		return nil, fmt.Errorf("top entries: %w", err)
	}
	metrics.RecordLeaderboardRead()

	rows := make([]types.LeaderboardRow, len(entries))
	for i, e := range entries {
		rows[i] = types.LeaderboardRow{
			Rank:            i + 1,
			PlayerWallet:    e.PlayerWallet,
			PlayerName:      e.PlayerName,
			HighScore:       e.HighScore,
			BestPerformance: e.BestPerformance,
		}
	}
	return rows, nil
}

// GetPlayerGameHistory lists completed sessions of wallet, newest first.
// An empty drillID matches every drill.
func (s *Service) GetPlayerGameHistory(ctx context.Context, wallet, drillID string, limit int) ([]model.GameSession, error) {
	store, err := s.backend()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.defaultHistoryLimit
	}
	return store.ListSessions(ctx, repository.SessionFilter{
		PlayerWallet:  wallet,
		DrillID:       drillID,
		CompletedOnly: true,
		Limit:         limit,
	})
}

// GetPlayerGameStats aggregates wallet's completed sessions of gameType.
func (s *Service) GetPlayerGameStats(ctx context.Context, wallet string, gameType model.GameType) (types.GameStats, error) {
	store, err := s.backend()
	if err != nil {
		return types.GameStats{}, err
	}
	if !gameType.Valid() {
		return types.GameStats{}, fmt.Errorf("%w: unknown game type %q", model.ErrValidation, gameType)
	}
	sessions, err := store.ListSessions(ctx, repository.SessionFilter{
		PlayerWallet:  wallet,
		GameType:      gameType,
		CompletedOnly: true,
	})
	if err != nil {
		return types.GameStats{}, err
	}
	var stats types.GameStats
	for _, sess := range sessions {
		stats.Accumulate(sess)
	}
	return stats, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	started, startedAt, store := s.started, s.startedAt, s.store
	s.mu.RUnlock()

	stats := map[string]any{
		"started":                 started,
		"defaultLeaderboardLimit": s.defaultLeaderboardLimit,
		"maxLeaderboardLimit":     s.maxLeaderboardLimit,
	}
	if !started {
		return stats
	}
	stats["uptimeSeconds"] = int64(s.now().Sub(startedAt).Seconds())
	counts, err := store.Counts(ctx)
	if err != nil {
		s.logger.Warn(ctx, "store counts unavailable", logger.Error(err))
		return stats
	}
	stats["players"] = counts.Players
	stats["drills"] = counts.Drills
	stats["sessions"] = counts.Sessions
	stats["leaderboardEntries"] = counts.Entries
	metrics.UpdateStoreTotals(counts.Players, counts.Sessions)
	return stats
}
