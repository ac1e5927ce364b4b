// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/echelon/internal/adapters/http/live"
	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/domain/types"
	"github.com/okian/echelon/internal/identity"
	"github.com/okian/echelon/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionDependencies
	DrillDependencies
	LeaderboardDependencies
	PlayerDependencies
}

// CallerResolver extracts the caller identity from a request.
type CallerResolver interface {
	FromRequest(r *http.Request) (identity.Caller, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	sessionsHandler    *SessionsHandler
	drillsHandler      *DrillsHandler
	leaderboardHandler *LeaderboardHandler
	playersHandler     *PlayersHandler

	deps     Dependencies
	resolver CallerResolver
	hub      *live.Hub
	logger   logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithResolver sets how callers are identified. Defaults to the wallet header.
func WithResolver(r CallerResolver) Option {
	return func(s *Server) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithLiveHub enables GET /ws/leaderboard.
func WithLiveHub(h *live.Hub) Option {
	return func(s *Server) { s.hub = h }
}

// WithLogger sets the API logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{deps: deps}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = identity.NewResolver()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.sessionsHandler = NewSessionsHandler(deps, s.logger)
	s.drillsHandler = NewDrillsHandler(deps)
	s.leaderboardHandler = NewLeaderboardHandler(deps)
	s.playersHandler = NewPlayersHandler(deps)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /sessions", MetricsMiddleware(s.withCaller(s.sessionsHandler.HandleStart), "sessions_start"))
	mux.HandleFunc("POST /sessions/{id}/complete", MetricsMiddleware(s.withCaller(s.sessionsHandler.HandleComplete), "sessions_complete"))
	mux.HandleFunc("GET /drills/{id}/config", MetricsMiddleware(s.drillsHandler.HandleGetConfig, "drill_config"))
	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))

	mux.HandleFunc("GET /players/me", MetricsMiddleware(s.withCaller(s.playersHandler.HandleMe), "players_me"))
	mux.HandleFunc("GET /players/me/history", MetricsMiddleware(s.withCaller(s.playersHandler.HandleHistory), "players_history"))
	mux.HandleFunc("GET /players/me/stats", MetricsMiddleware(s.withCaller(s.playersHandler.HandleStats), "players_stats"))

	if s.hub != nil {
		mux.HandleFunc("GET /ws/leaderboard", s.hub.Handler(func(ctx context.Context, key model.BoardKey) ([]types.LeaderboardRow, error) {
			return s.deps.GetLeaderboard(ctx, key.DrillID, key.GameType, 0)
		}))
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure picks the status from the error's kind.
func writeFailure(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
