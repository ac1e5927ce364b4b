package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/domain/types"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	GetLeaderboard(ctx context.Context, drillID string, gameType model.GameType, limit int) ([]types.LeaderboardRow, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /leaderboard?drill_id=&game_type=&limit= requests.
// A missing limit means the service default.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	q := r.URL.Query()
	drillID := strings.TrimSpace(q.Get("drill_id"))
	if drillID == "" {
		writeFailure(w, WrapKind(op, ErrBadRequest, errors.New("missing drill_id")))
		return
	}
	gameType, err := model.ParseGameType(q.Get("game_type"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	rows, err := h.deps.GetLeaderboard(r.Context(), drillID, gameType, limit)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// parseLimit accepts an empty value as 0 and rejects anything below 1.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return n, nil
}
