package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/domain/types"
	"github.com/okian/echelon/internal/identity"
	"github.com/okian/echelon/pkg/logger"
)

// SessionDependencies defines the session recorder operations.
type SessionDependencies interface {
	StartGameSession(ctx context.Context, caller identity.Caller, drillID string, gameType model.GameType) (string, error)
	CompleteGameSession(ctx context.Context, sessionID string, finalScore int64, perf model.Performance) (types.Completion, error)
}

// startRequest mirrors the OpenAPI schema for POST /sessions.
type startRequest struct {
	DrillID  string `json:"drill_id"`
	GameType string `json:"game_type"`
}

func (s startRequest) validate() (model.GameType, error) {
	if strings.TrimSpace(s.DrillID) == "" {
		return "", errors.New("missing drill_id")
	}
	if strings.TrimSpace(s.GameType) == "" {
		return "", errors.New("missing game_type")
	}
	return model.ParseGameType(s.GameType)
}

type startResponse struct {
	SessionID string `json:"session_id"`
}

// completeRequest mirrors the OpenAPI schema for POST /sessions/{id}/complete.
type completeRequest struct {
	FinalScore  *int64             `json:"final_score"`
	Performance *model.Performance `json:"performance"`
}

func (c completeRequest) validate() error {
	switch {
	case c.FinalScore == nil:
		return errors.New("missing final_score")
	case *c.FinalScore < 0:
		return errors.New("final_score must not be negative")
	case *c.FinalScore > model.MaxScore:
		return fmt.Errorf("%w: final_score exceeds %d", model.ErrValidation, model.MaxScore)
	case c.Performance == nil:
		return errors.New("missing performance")
	}
	return c.Performance.Validate()
}

// SessionsHandler handles session requests.
type SessionsHandler struct {
	deps   SessionDependencies
	logger logger.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies, l logger.Logger) *SessionsHandler {
	return &SessionsHandler{deps: deps, logger: l}
}

// HandleStart handles POST /sessions requests.
func (h *SessionsHandler) HandleStart(w http.ResponseWriter, r *http.Request, caller identity.Caller) {
	const op = "api.start_session"
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	gameType, err := req.validate()
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	id, err := h.deps.StartGameSession(r.Context(), caller, strings.TrimSpace(req.DrillID), gameType)
	if err != nil {
		h.logFailure(r.Context(), op, err)
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{SessionID: id})
}

// HandleComplete handles POST /sessions/{id}/complete requests.
func (h *SessionsHandler) HandleComplete(w http.ResponseWriter, r *http.Request, _ identity.Caller) {
	const op = "api.complete_session"
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeFailure(w, NewKind(op, ErrBadRequest))
		return
	}
	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.CompleteGameSession(r.Context(), id, *req.FinalScore, *req.Performance)
	if err != nil {
		h.logFailure(r.Context(), op, err)
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SessionsHandler) logFailure(ctx context.Context, op string, err error) {
	if status, _ := classify(err); status >= statusInternalError {
		h.logger.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
	}
}
