package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/pkg/metrics"
)

var errStaleMirror = errors.New("redis board out of sync with store")

// RedisBoard wraps a Store and mirrors leaderboard high scores into one
// Redis sorted set per board. Top-N reads come from the sorted set and
// entries are hydrated from the wrapped store.
//
// A board is served from Redis only after it has been backfilled from the
// wrapped store. A failed mirror write or a mismatch seen while hydrating
// marks the board unsynced; reads then go to the wrapped store until the
// next backfill succeeds.
type RedisBoard struct {
	Store
	rdb  redis.Cmdable
	opts options

	mu     sync.Mutex
	boards map[model.BoardKey]*boardSync
}

type boardSync struct {
	epoch  uint64
	synced bool
}

// NewRedisBoard decorates inner. The caller owns rdb.
func NewRedisBoard(inner Store, rdb redis.Cmdable, opts ...Option) *RedisBoard {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisBoard{Store: inner, rdb: rdb, opts: o, boards: make(map[model.BoardKey]*boardSync)}
}

func (b *RedisBoard) key(k model.BoardKey) string {
	return fmt.Sprintf("%s:%s:%s", b.opts.keyPrefix, k.DrillID, k.GameType)
}

func (b *RedisBoard) state(key model.BoardKey) *boardSync {
	st, ok := b.boards[key]
	if !ok {
		st = &boardSync{}
		b.boards[key] = st
	}
	return st
}

func (b *RedisBoard) synced(key model.BoardKey) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state(key).synced
}

func (b *RedisBoard) markDirty(key model.BoardKey) {
	b.mu.Lock()
	st := b.state(key)
	st.epoch++
	st.synced = false
	b.mu.Unlock()
}

func (b *RedisBoard) syncEpoch(key model.BoardKey) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state(key).epoch
}

// markSynced succeeds only if no failure was recorded since epoch was read.
func (b *RedisBoard) markSynced(key model.BoardKey, epoch uint64) {
	b.mu.Lock()
	st := b.state(key)
	if st.epoch == epoch {
		st.synced = true
	}
	b.mu.Unlock()
}

// UpsertBest delegates to the wrapped store and mirrors the player's
// stored best. A mirror failure is counted and marks the board unsynced
// but does not fail the upsert.
func (b *RedisBoard) UpsertBest(ctx context.Context, e model.LeaderboardEntry) (model.UpsertOutcome, error) {
	out, err := b.Store.UpsertBest(ctx, e)
	if err != nil {
		return out, err
	}
	best := e
	if !out.Changed() {
		if best, err = b.Store.GetEntry(ctx, e.Key(), e.PlayerWallet); err != nil {
			b.markDirty(e.Key())
			return out, nil
		}
	}
	if err := b.mirror(ctx, best); err != nil {
		b.markDirty(e.Key())
		metrics.RecordErrorByComponent("redis_board", "mirror")
	}
	return out, nil
}

func (b *RedisBoard) mirror(ctx context.Context, e model.LeaderboardEntry) error {
	return b.rdb.ZAddArgs(ctx, b.key(e.Key()), redis.ZAddArgs{
		GT:      true,
		Members: []redis.Z{{Score: float64(e.HighScore), Member: e.PlayerWallet}},
	}).Err()
}

// backfill copies every entry of the board from the wrapped store into
// Redis. Members Redis holds that the store does not are dropped.
func (b *RedisBoard) backfill(ctx context.Context, key model.BoardKey) error {
	defer observe("redis_backfill", time.Now())
	epoch := b.syncEpoch(key)
	n, err := b.Store.CountEntries(ctx, key)
	if err != nil {
		return err
	}
	var members []redis.Z
	if n > 0 {
		entries, err := b.Store.TopEntries(ctx, key, n)
		if err != nil {
			return err
		}
		members = make([]redis.Z, len(entries))
		for i, e := range entries {
			members[i] = redis.Z{Score: float64(e.HighScore), Member: e.PlayerWallet}
		}
	}

	k := b.key(key)
	var card *redis.IntCmd
	_, err = b.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		if len(members) > 0 {
			p.ZAddArgs(ctx, k, redis.ZAddArgs{GT: true, Members: members})
		}
		card = p.ZCard(ctx, k)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis backfill: %w", err)
	}
	if card.Val() != int64(len(members)) {
		_, err = b.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, k)
			if len(members) > 0 {
				p.ZAdd(ctx, k, members...)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("redis rebuild: %w", err)
		}
	}
	b.markSynced(key, epoch)
	return nil
}

// TopEntries reads the ranking from Redis once the board is synced and
// falls back to the wrapped store otherwise. Redis orders by score only,
// so entries tied at the cutoff score are all fetched and the full
// tie-break is applied before truncating.
func (b *RedisBoard) TopEntries(ctx context.Context, key model.BoardKey, limit int) ([]model.LeaderboardEntry, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	if !b.synced(key) {
		if err := b.backfill(ctx, key); err != nil {
			metrics.RecordErrorByComponent("redis_board", "backfill")
			return b.Store.TopEntries(ctx, key, limit)
		}
	}
	out, err := b.topFromRedis(ctx, key, limit)
	if err != nil {
		b.markDirty(key)
		metrics.RecordErrorByComponent("redis_board", "read")
		return b.Store.TopEntries(ctx, key, limit)
	}
	return out, nil
}

func (b *RedisBoard) topFromRedis(ctx context.Context, key model.BoardKey, limit int) ([]model.LeaderboardEntry, error) {
	defer observe("redis_top_entries", time.Now())
	k := b.key(key)
	top, err := b.rdb.ZRevRangeWithScores(ctx, k, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis top: %w", err)
	}
	if len(top) == limit {
		floor := strconv.FormatInt(int64(top[len(top)-1].Score), 10)
		top, err = b.rdb.ZRevRangeByScoreWithScores(ctx, k, &redis.ZRangeBy{Min: floor, Max: "+inf"}).Result()
		if err != nil {
			return nil, fmt.Errorf("redis top ties: %w", err)
		}
	}

	out := make([]model.LeaderboardEntry, 0, len(top))
	for _, z := range top {
		wallet, _ := z.Member.(string)
		e, err := b.Store.GetEntry(ctx, key, wallet)
		if errors.Is(err, ErrNotFound) {
			return nil, errStaleMirror
		}
		if err != nil {
			return nil, err
		}
		if float64(e.HighScore) != z.Score {
			return nil, errStaleMirror
		}
		out = append(out, e)
	}
	sortEntries(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
