package repository

import (
	"context"
	"sync"
	"time"

	"github.com/okian/echelon/internal/domain/gameconfig"
	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/pkg/metrics"
)

type entryKey struct {
	board  model.BoardKey
	wallet string
}

// MemoryStore is a mutex-guarded in-process Store. Each call holds the
// lock for its whole duration, so UpsertBest's check-then-set is atomic.
type MemoryStore struct {
	mu       sync.RWMutex
	opts     options
	closed   bool
	players  map[string]model.Player
	drills   map[string]model.Drill
	sessions map[string]model.GameSession
	entries  map[entryKey]model.LeaderboardEntry
	configs  map[model.BoardKey]gameconfig.Config
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		opts:     o,
		players:  make(map[string]model.Player),
		drills:   make(map[string]model.Drill),
		sessions: make(map[string]model.GameSession),
		entries:  make(map[entryKey]model.LeaderboardEntry),
		configs:  make(map[model.BoardKey]gameconfig.Config),
	}
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

func (s *MemoryStore) EnsurePlayer(ctx context.Context, wallet, name string) (model.Player, error) {
	defer observe("ensure_player", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Player{}, ErrClosed
	}
	if p, ok := s.players[wallet]; ok {
		return p, nil
	}
	p := model.Player{Wallet: wallet, Name: name, CreatedAt: s.opts.now().UTC()}
	s.players[wallet] = p
	return p, nil
}

func (s *MemoryStore) GetPlayer(ctx context.Context, wallet string) (model.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[wallet]
	if !ok {
		return model.Player{}, notFound("player", wallet)
	}
	return p, nil
}

func (s *MemoryStore) CreditPlayer(ctx context.Context, wallet string, credits, xp int64) error {
	defer observe("credit_player", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[wallet]
	if !ok {
		return notFound("player", wallet)
	}
	p.Credits += credits
	p.Experience += xp
	s.players[wallet] = p
	return nil
}

func (s *MemoryStore) GetDrill(ctx context.Context, id string) (model.Drill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.drills[id]
	if !ok {
		return model.Drill{}, notFound("drill", id)
	}
	return d, nil
}

func (s *MemoryStore) PutDrill(ctx context.Context, d model.Drill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drills[d.ID] = d
	return nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, sess model.GameSession) error {
	defer observe("create_session", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (s *MemoryStore) GetSession(ctx context.Context, id string) (model.GameSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.GameSession{}, notFound("session", id)
	}
	return cloneSession(sess), nil
}

func (s *MemoryStore) CompleteSession(ctx context.Context, sess model.GameSession) error {
	defer observe("complete_session", time.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return notFound("session", sess.ID)
	}
	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (s *MemoryStore) ListSessions(ctx context.Context, f SessionFilter) ([]model.GameSession, error) {
	defer observe("list_sessions", time.Now())
	if f.Limit < 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	out := make([]model.GameSession, 0)
	for _, sess := range s.sessions {
		if f.matches(sess) {
			out = append(out, cloneSession(sess))
		}
	}
	s.mu.RUnlock()

	sortSessions(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) GetEntry(ctx context.Context, key model.BoardKey, wallet string) (model.LeaderboardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryKey{board: key, wallet: wallet}]
	if !ok {
		return model.LeaderboardEntry{}, notFound("leaderboard entry", key.String()+":"+wallet)
	}
	return e, nil
}

func (s *MemoryStore) UpsertBest(ctx context.Context, e model.LeaderboardEntry) (model.UpsertOutcome, error) {
	defer observe("upsert_best", time.Now())
	k := entryKey{board: e.Key(), wallet: e.PlayerWallet}

	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.entries[k]
	if !ok {
		s.entries[k] = e
		return model.UpsertInserted, nil
	}
	if e.HighScore <= old.HighScore {
		return model.UpsertUnchanged, nil
	}
	s.entries[k] = e
	return model.UpsertImproved, nil
}

func (s *MemoryStore) TopEntries(ctx context.Context, key model.BoardKey, limit int) ([]model.LeaderboardEntry, error) {
	defer observe("top_entries", time.Now())
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	out := make([]model.LeaderboardEntry, 0)
	for k, e := range s.entries {
		if k.board == key {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	sortEntries(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CountEntries(ctx context.Context, key model.BoardKey) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for k := range s.entries {
		if k.board == key {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) GetGameConfig(ctx context.Context, key model.BoardKey) (gameconfig.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[key]
	if !ok {
		return gameconfig.Config{}, notFound("game config", key.String())
	}
	return cfg, nil
}

func (s *MemoryStore) PutGameConfig(ctx context.Context, cfg gameconfig.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[model.BoardKey{DrillID: cfg.DrillID, GameType: cfg.GameType}] = cfg
	return nil
}

func (s *MemoryStore) Counts(ctx context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Players:  len(s.players),
		Drills:   len(s.drills),
		Sessions: len(s.sessions),
		Entries:  len(s.entries),
	}, nil
}

// Close marks the store closed; later creates fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func cloneSession(s model.GameSession) model.GameSession {
	if s.EndedAt != nil {
		t := *s.EndedAt
		s.EndedAt = &t
	}
	if s.Performance != nil {
		p := *s.Performance
		s.Performance = &p
	}
	return s
}
