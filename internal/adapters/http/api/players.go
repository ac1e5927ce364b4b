package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/domain/types"
	"github.com/okian/echelon/internal/identity"
)

// PlayerDependencies defines the caller-scoped read views.
type PlayerDependencies interface {
	EnsurePlayer(ctx context.Context, caller identity.Caller) (model.Player, error)
	GetPlayerGameHistory(ctx context.Context, wallet, drillID string, limit int) ([]model.GameSession, error)
	GetPlayerGameStats(ctx context.Context, wallet string, gameType model.GameType) (types.GameStats, error)
}

// PlayersHandler handles /players/me requests.
type PlayersHandler struct {
	deps PlayerDependencies
}

// NewPlayersHandler creates a new players handler.
func NewPlayersHandler(deps PlayerDependencies) *PlayersHandler {
	return &PlayersHandler{deps: deps}
}

// HandleMe returns the caller's profile, creating it on first fetch.
func (h *PlayersHandler) HandleMe(w http.ResponseWriter, r *http.Request, caller identity.Caller) {
	const op = "api.get_player"
	p, err := h.deps.EnsurePlayer(r.Context(), caller)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleHistory handles GET /players/me/history?drill_id=&limit=.
func (h *PlayersHandler) HandleHistory(w http.ResponseWriter, r *http.Request, caller identity.Caller) {
	const op = "api.get_history"
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	sessions, err := h.deps.GetPlayerGameHistory(r.Context(), caller.Wallet, strings.TrimSpace(q.Get("drill_id")), limit)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// HandleStats handles GET /players/me/stats?game_type=.
func (h *PlayersHandler) HandleStats(w http.ResponseWriter, r *http.Request, caller identity.Caller) {
	const op = "api.get_player_stats"
	gameType, err := model.ParseGameType(r.URL.Query().Get("game_type"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	stats, err := h.deps.GetPlayerGameStats(r.Context(), caller.Wallet, gameType)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
