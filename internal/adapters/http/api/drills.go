package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/echelon/internal/domain/gameconfig"
)

// DrillDependencies defines the game config read view.
type DrillDependencies interface {
	GetGameConfig(ctx context.Context, drillID string) (gameconfig.Config, error)
}

// DrillsHandler handles drill requests.
type DrillsHandler struct {
	deps DrillDependencies
}

// NewDrillsHandler creates a new drills handler.
func NewDrillsHandler(deps DrillDependencies) *DrillsHandler {
	return &DrillsHandler{deps: deps}
}

// HandleGetConfig handles GET /drills/{id}/config requests.
func (h *DrillsHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_game_config"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	cfg, err := h.deps.GetGameConfig(r.Context(), id)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}
