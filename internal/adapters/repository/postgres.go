package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/echelon/internal/domain/gameconfig"
	"github.com/okian/echelon/internal/domain/model"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// PostgresStore is a Store backed by a pgx connection pool.
//
// UpsertBest reads the current entry and then writes; two concurrent
// completions for the same player may race on the comparison.
type PostgresStore struct {
	db   *pgxpool.Pool
	opts options
}

// NewPostgresStore connects to databaseURL and applies the embedded schema.
func NewPostgresStore(ctx context.Context, databaseURL string, opts ...Option) (*PostgresStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if o.maxConns > 0 {
		cfg.MaxConns = o.maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{db: pool, opts: o}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	files, err := schemaFS.ReadDir("schema")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	for _, f := range files {
		ddl, err := schemaFS.ReadFile("schema/" + f.Name())
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name(), err)
		}
		if _, err := s.db.Exec(ctx, string(ddl)); err != nil {
			return fmt.Errorf("apply %s: %w", f.Name(), err)
		}
	}
	return nil
}

func mapNoRows(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound(what, id)
	}
	return err
}

func (s *PostgresStore) EnsurePlayer(ctx context.Context, wallet, name string) (model.Player, error) {
	defer observe("ensure_player", time.Now())
	var p model.Player
	err := s.db.QueryRow(ctx, `
		INSERT INTO players (wallet_address, name, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address) DO UPDATE SET wallet_address = EXCLUDED.wallet_address
		RETURNING wallet_address, name, credits, experience, created_at
	`, wallet, name, s.opts.now().UTC()).Scan(&p.Wallet, &p.Name, &p.Credits, &p.Experience, &p.CreatedAt)
	if err != nil {
		return model.Player{}, fmt.Errorf("ensure player: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetPlayer(ctx context.Context, wallet string) (model.Player, error) {
	var p model.Player
	err := s.db.QueryRow(ctx, `
		SELECT wallet_address, name, credits, experience, created_at
		FROM players WHERE wallet_address = $1
	`, wallet).Scan(&p.Wallet, &p.Name, &p.Credits, &p.Experience, &p.CreatedAt)
	if err != nil {
		return model.Player{}, mapNoRows(err, "player", wallet)
	}
	return p, nil
}

func (s *PostgresStore) CreditPlayer(ctx context.Context, wallet string, credits, xp int64) error {
	defer observe("credit_player", time.Now())
	tag, err := s.db.Exec(ctx, `
		UPDATE players
		SET credits = credits + $2,
		    experience = experience + $3
		WHERE wallet_address = $1
	`, wallet, credits, xp)
	if err != nil {
		return fmt.Errorf("credit player: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("player", wallet)
	}
	return nil
}

func (s *PostgresStore) GetDrill(ctx context.Context, id string) (model.Drill, error) {
	var d model.Drill
	err := s.db.QueryRow(ctx, `
		SELECT id, name, category, difficulty, base_credits, base_xp
		FROM drills WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &d.Category, &d.Difficulty, &d.BaseCredits, &d.BaseXP)
	if err != nil {
		return model.Drill{}, mapNoRows(err, "drill", id)
	}
	return d, nil
}

func (s *PostgresStore) PutDrill(ctx context.Context, d model.Drill) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO drills (id, name, category, difficulty, base_credits, base_xp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category, difficulty = EXCLUDED.difficulty,
			base_credits = EXCLUDED.base_credits, base_xp = EXCLUDED.base_xp
	`, d.ID, d.Name, string(d.Category), d.Difficulty, d.BaseCredits, d.BaseXP)
	if err != nil {
		return fmt.Errorf("put drill: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess model.GameSession) error {
	defer observe("create_session", time.Now())
	_, err := s.db.Exec(ctx, `
		INSERT INTO game_sessions (id, player_wallet, drill_id, game_type, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`, sess.ID, sess.PlayerWallet, sess.DrillID, string(sess.GameType), sess.StartedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

const sessionColumns = `id, player_wallet, drill_id, game_type, started_at, ended_at,
	final_score, performance, completed, credits_earned, xp_earned`

func scanSession(row pgx.Row) (model.GameSession, error) {
	var (
		sess model.GameSession
		perf []byte
	)
	err := row.Scan(&sess.ID, &sess.PlayerWallet, &sess.DrillID, &sess.GameType, &sess.StartedAt,
		&sess.EndedAt, &sess.FinalScore, &perf, &sess.Completed, &sess.CreditsEarned, &sess.XPEarned)
	if err != nil {
		return model.GameSession{}, err
	}
	if len(perf) > 0 {
		var p model.Performance
		if err := json.Unmarshal(perf, &p); err != nil {
			return model.GameSession{}, fmt.Errorf("decode performance: %w", err)
		}
		sess.Performance = &p
	}
	return sess, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (model.GameSession, error) {
	sess, err := scanSession(s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM game_sessions WHERE id = $1`, id))
	if err != nil {
		return model.GameSession{}, mapNoRows(err, "session", id)
	}
	return sess, nil
}

func (s *PostgresStore) CompleteSession(ctx context.Context, sess model.GameSession) error {
	defer observe("complete_session", time.Now())
	var perf []byte
	if sess.Performance != nil {
		b, err := json.Marshal(sess.Performance)
		if err != nil {
			return fmt.Errorf("encode performance: %w", err)
		}
		perf = b
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE game_sessions
		SET ended_at = $2, final_score = $3, performance = $4, completed = $5,
		    credits_earned = $6, xp_earned = $7
		WHERE id = $1
	`, sess.ID, sess.EndedAt, sess.FinalScore, perf, sess.Completed, sess.CreditsEarned, sess.XPEarned)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("session", sess.ID)
	}
	return nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, f SessionFilter) ([]model.GameSession, error) {
	defer observe("list_sessions", time.Now())
	if f.Limit < 0 {
		return nil, ErrInvalidLimit
	}
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.PlayerWallet != "" {
		add("player_wallet = $%d", f.PlayerWallet)
	}
	if f.DrillID != "" {
		add("drill_id = $%d", f.DrillID)
	}
	if f.GameType != "" {
		add("game_type = $%d", string(f.GameType))
	}
	if f.CompletedOnly {
		where = append(where, "completed")
	}

	q := `SELECT ` + sessionColumns + ` FROM game_sessions`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY COALESCE(ended_at, started_at) DESC, id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]model.GameSession, 0)
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

const entryColumns = `drill_id, game_type, player_wallet, player_name, high_score, best_performance, achieved_at`

func scanEntry(row pgx.Row) (model.LeaderboardEntry, error) {
	var (
		e    model.LeaderboardEntry
		perf []byte
	)
	if err := row.Scan(&e.DrillID, &e.GameType, &e.PlayerWallet, &e.PlayerName, &e.HighScore, &perf, &e.AchievedAt); err != nil {
		return model.LeaderboardEntry{}, err
	}
	if err := json.Unmarshal(perf, &e.BestPerformance); err != nil {
		return model.LeaderboardEntry{}, fmt.Errorf("decode best performance: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) GetEntry(ctx context.Context, key model.BoardKey, wallet string) (model.LeaderboardEntry, error) {
	e, err := scanEntry(s.db.QueryRow(ctx, `
		SELECT `+entryColumns+` FROM leaderboard_entries
		WHERE drill_id = $1 AND game_type = $2 AND player_wallet = $3
	`, key.DrillID, string(key.GameType), wallet))
	if err != nil {
		return model.LeaderboardEntry{}, mapNoRows(err, "leaderboard entry", key.String()+":"+wallet)
	}
	return e, nil
}

func (s *PostgresStore) UpsertBest(ctx context.Context, e model.LeaderboardEntry) (model.UpsertOutcome, error) {
	defer observe("upsert_best", time.Now())
	perf, err := json.Marshal(e.BestPerformance)
	if err != nil {
		return model.UpsertUnchanged, fmt.Errorf("encode best performance: %w", err)
	}

	old, err := s.GetEntry(ctx, e.Key(), e.PlayerWallet)
	switch {
	case errors.Is(err, ErrNotFound):
		_, err = s.db.Exec(ctx, `
			INSERT INTO leaderboard_entries (`+entryColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, e.DrillID, string(e.GameType), e.PlayerWallet, e.PlayerName, e.HighScore, perf, e.AchievedAt)
		if err != nil {
			return model.UpsertUnchanged, fmt.Errorf("insert leaderboard entry: %w", err)
		}
		return model.UpsertInserted, nil
	case err != nil:
		return model.UpsertUnchanged, err
	}

	if e.HighScore <= old.HighScore {
		return model.UpsertUnchanged, nil
	}
	// The high_score guard keeps a racing lower write from replacing a
	// higher one that landed after our read.
	tag, err := s.db.Exec(ctx, `
		UPDATE leaderboard_entries
		SET high_score = $4, best_performance = $5, achieved_at = $6, player_name = $7
		WHERE drill_id = $1 AND game_type = $2 AND player_wallet = $3 AND high_score < $4
	`, e.DrillID, string(e.GameType), e.PlayerWallet, e.HighScore, perf, e.AchievedAt, e.PlayerName)
	if err != nil {
		return model.UpsertUnchanged, fmt.Errorf("update leaderboard entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.UpsertUnchanged, nil
	}
	return model.UpsertImproved, nil
}

func (s *PostgresStore) TopEntries(ctx context.Context, key model.BoardKey, limit int) ([]model.LeaderboardEntry, error) {
	defer observe("top_entries", time.Now())
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+entryColumns+` FROM leaderboard_entries
		WHERE drill_id = $1 AND game_type = $2
		ORDER BY high_score DESC, achieved_at ASC, player_wallet ASC
		LIMIT $3
	`, key.DrillID, string(key.GameType), limit)
	if err != nil {
		return nil, fmt.Errorf("top entries: %w", err)
	}
	defer rows.Close()

	out := make([]model.LeaderboardEntry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("top entries: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountEntries(ctx context.Context, key model.BoardKey) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT count(*) FROM leaderboard_entries WHERE drill_id = $1 AND game_type = $2
	`, key.DrillID, string(key.GameType)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) GetGameConfig(ctx context.Context, key model.BoardKey) (gameconfig.Config, error) {
	var (
		cfg    gameconfig.Config
		tuning []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT drill_id, game_type, grid_size, time_limit, lives, difficulty, tuning
		FROM game_configs WHERE drill_id = $1 AND game_type = $2
	`, key.DrillID, string(key.GameType)).Scan(
		&cfg.DrillID, &cfg.GameType, &cfg.GridSize, &cfg.TimeLimit, &cfg.Lives, &cfg.Difficulty, &tuning)
	if err != nil {
		return gameconfig.Config{}, mapNoRows(err, "game config", key.String())
	}
	t, err := gameconfig.UnmarshalTuning(tuning)
	if err != nil {
		return gameconfig.Config{}, err
	}
	cfg.Tuning = t
	return cfg, nil
}

func (s *PostgresStore) PutGameConfig(ctx context.Context, cfg gameconfig.Config) error {
	var tuning []byte
	if cfg.Tuning != nil {
		b, err := gameconfig.MarshalTuning(cfg.Tuning)
		if err != nil {
			return err
		}
		tuning = b
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO game_configs (drill_id, game_type, grid_size, time_limit, lives, difficulty, tuning)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (drill_id, game_type) DO UPDATE SET
			grid_size = EXCLUDED.grid_size, time_limit = EXCLUDED.time_limit, lives = EXCLUDED.lives,
			difficulty = EXCLUDED.difficulty, tuning = EXCLUDED.tuning
	`, cfg.DrillID, string(cfg.GameType), cfg.GridSize, cfg.TimeLimit, cfg.Lives, cfg.Difficulty, tuning)
	if err != nil {
		return fmt.Errorf("put game config: %w", err)
	}
	return nil
}

func (s *PostgresStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM players),
		       (SELECT count(*) FROM drills),
		       (SELECT count(*) FROM game_sessions),
		       (SELECT count(*) FROM leaderboard_entries)
	`).Scan(&c.Players, &c.Drills, &c.Sessions, &c.Entries)
	if err != nil {
		return Counts{}, fmt.Errorf("counts: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
