// Package live pushes leaderboard changes to websocket subscribers.
package live

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/domain/types"
	"github.com/okian/echelon/pkg/logger"
	"github.com/okian/echelon/pkg/metrics"
)

// Update is the message written to subscribers.
type Update struct {
	Type     string                 `json:"type"`
	DrillID  string                 `json:"drill_id"`
	GameType model.GameType         `json:"game_type"`
	Rows     []types.LeaderboardRow `json:"rows"`
}

// Message types.
const (
	TypeSnapshot = "snapshot"
	TypeUpdate   = "update"
)

// SnapshotFunc reads the current top of a board for a new subscriber.
type SnapshotFunc func(ctx context.Context, key model.BoardKey) ([]types.LeaderboardRow, error)

type client struct {
	key  model.BoardKey
	send chan Update
}

// Hub tracks subscribers per board. Publish never blocks: a subscriber
// whose buffer is full misses the update.
type Hub struct {
	mu      sync.RWMutex
	clients map[model.BoardKey]map[*client]struct{}
	closed  bool

	buffer       int
	writeTimeout time.Duration
	origins      []string
	logger       logger.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the per-subscriber queue length.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithWriteTimeout bounds each websocket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithOriginPatterns accepts cross-origin upgrades whose Origin host
// matches one of patterns (path.Match syntax). "*" accepts any origin.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.origins = append(h.origins, patterns...) }
}

// WithLogger sets the hub logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHub creates an empty Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients:      make(map[model.BoardKey]map[*client]struct{}),
		buffer:       16,
		writeTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("live")
	}
	return h
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	set, ok := h.clients[c.key]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.key] = set
	}
	set[c] = struct{}{}
	metrics.UpdateLiveSubscribers(h.countLocked())
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.key]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.key)
	}
	metrics.UpdateLiveSubscribers(h.countLocked())
}

func (h *Hub) countLocked() int {
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

// Watching reports whether key has at least one subscriber.
func (h *Hub) Watching(key model.BoardKey) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[key]) > 0
}

// Publish queues rows for every subscriber of key.
func (h *Hub) Publish(ctx context.Context, key model.BoardKey, rows []types.LeaderboardRow) {
	msg := Update{Type: TypeUpdate, DrillID: key.DrillID, GameType: key.GameType, Rows: rows}
	delivered, dropped := 0, 0

	h.mu.RLock()
	for c := range h.clients[key] {
		select {
		case c.send <- msg:
			delivered++
		default:
			dropped++
		}
	}
	h.mu.RUnlock()

	metrics.RecordLivePush(delivered, dropped)
	if dropped > 0 {
		h.logger.Debug(ctx, "live update dropped for slow subscribers",
			logger.String("board", key.String()),
			logger.Int("dropped", dropped),
		)
	}
}

// Close disconnects every subscriber and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for key, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, key)
	}
	metrics.UpdateLiveSubscribers(0)
}

// Handler upgrades GET /ws/leaderboard?drill_id=&game_type= and streams a
// snapshot followed by updates.
func (h *Hub) Handler(snapshot SnapshotFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		drillID := q.Get("drill_id")
		gameType, err := model.ParseGameType(q.Get("game_type"))
		if drillID == "" || err != nil {
			http.Error(w, "drill_id and a valid game_type are required", http.StatusBadRequest)
			return
		}
		key := model.BoardKey{DrillID: drillID, GameType: gameType}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
		if err != nil {
			h.logger.Warn(r.Context(), "websocket accept failed", logger.Error(err))
			return
		}
		defer conn.CloseNow()

		c := &client{key: key, send: make(chan Update, h.buffer)}
		if !h.register(c) {
			_ = conn.Close(websocket.StatusGoingAway, "shutting down")
			return
		}
		defer h.unregister(c)

		ctx := conn.CloseRead(r.Context())
		rows, err := snapshot(ctx, key)
		if err != nil {
			_ = conn.Close(websocket.StatusInternalError, "snapshot failed")
			return
		}
		if err := h.write(ctx, conn, Update{Type: TypeSnapshot, DrillID: key.DrillID, GameType: key.GameType, Rows: rows}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-c.send:
				if !ok {
					_ = conn.Close(websocket.StatusGoingAway, "shutting down")
					return
				}
				if err := h.write(ctx, conn, msg); err != nil {
					return
				}
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, msg Update) error {
	ctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
