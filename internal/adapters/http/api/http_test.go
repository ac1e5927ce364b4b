package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/okian/echelon/internal/adapters/http/api"
	"github.com/okian/echelon/internal/adapters/http/live"
	repository "github.com/okian/echelon/internal/adapters/repository"
	service "github.com/okian/echelon/internal/app"
	"github.com/okian/echelon/internal/domain/gameconfig"
	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/domain/types"
	"github.com/okian/echelon/internal/identity"
	"github.com/okian/echelon/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type harness struct {
	mux   *http.ServeMux
	store *repository.MemoryStore
}

func newHarness(opts ...api.Option) harness {
	ctx := context.Background()
	quiet := logger.New(io.Discard)
	store := repository.NewMemoryStore()
	svc := service.New(service.WithStore(store), service.WithLogger(quiet))
	if err := svc.Start(ctx); err != nil {
		panic(err)
	}
	if err := svc.SeedDrills(ctx, []model.Drill{
		{ID: "memory-1", Name: "Memory Grid", Category: model.CategoryCognition, Difficulty: "easy", BaseCredits: 100, BaseXP: 50},
	}); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, append([]api.Option{api.WithLogger(quiet)}, opts...)...).Register(ctx, mux)
	return harness{mux: mux, store: store}
}

func (h harness) do(method, path, wallet, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if wallet != "" {
		req.Header.Set(identity.WalletHeader, wallet)
	}
	w := httptest.NewRecorder()
	h.mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.NewDecoder(w.Body).Decode(&v), ShouldBeNil)
	return v
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestTrainingFlow(t *testing.T) {
	Convey("Given the API over an in-memory backend", t, func() {
		h := newHarness()

		Convey("When a player fetches their profile, plays and completes a drill", func() {
			me := h.do("GET", "/players/me", "0xa11ce", "")
			So(me.Code, ShouldEqual, http.StatusOK)

			start := h.do("POST", "/sessions", "0xa11ce", `{"drill_id":"memory-1","game_type":"pattern_matrix"}`)
			So(start.Code, ShouldEqual, http.StatusCreated)
			sid := decode[map[string]string](start)["session_id"]
			So(sid, ShouldNotBeEmpty)

			done := h.do("POST", "/sessions/"+sid+"/complete", "0xa11ce", `{"final_score":420,"performance":{"accuracy":80,"level":2}}`)
			So(done.Code, ShouldEqual, http.StatusOK)
			res := decode[types.Completion](done)

			Convey("Then the rewards are returned", func() {
				So(res, ShouldResemble, types.Completion{CreditsEarned: 216, XPEarned: 108, SessionCompleted: true})
			})

			Convey("Then the profile shows the credits", func() {
				p := decode[model.Player](h.do("GET", "/players/me", "0xa11ce", ""))
				So(p.Credits, ShouldEqual, int64(216))
				So(p.Experience, ShouldEqual, int64(108))
			})

			Convey("Then the leaderboard ranks the player", func() {
				w := h.do("GET", "/leaderboard?drill_id=memory-1&game_type=pattern_matrix", "", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				rows := decode[[]types.LeaderboardRow](w)
				So(len(rows), ShouldEqual, 1)
				So(rows[0].Rank, ShouldEqual, 1)
				So(rows[0].HighScore, ShouldEqual, int64(420))
			})

			Convey("Then history and stats reflect the session", func() {
				hist := decode[[]model.GameSession](h.do("GET", "/players/me/history?drill_id=memory-1", "0xa11ce", ""))
				So(len(hist), ShouldEqual, 1)
				So(hist[0].ID, ShouldEqual, sid)

				st := decode[types.GameStats](h.do("GET", "/players/me/stats?game_type=pattern_matrix", "0xa11ce", ""))
				So(st.GamesPlayed, ShouldEqual, 1)
				So(st.BestScore, ShouldEqual, int64(420))
			})
		})

		Convey("When the game config of a drill is requested", func() {
			w := h.do("GET", "/drills/memory-1/config", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			cfg := decode[gameconfig.Config](w)

			Convey("Then the category default is served with its tuning", func() {
				So(cfg.GameType, ShouldEqual, model.GamePatternMatrix)
				So(cfg.Lives, ShouldEqual, 3)
				So(cfg.Tuning, ShouldNotBeNil)
				So(cfg.Tuning.Kind(), ShouldEqual, "pattern_matrix")
			})
		})
	})
}

func TestErrorMapping(t *testing.T) {
	Convey("Given the API over an in-memory backend", t, func() {
		h := newHarness()

		cases := []struct {
			name, method, path, wallet, body string
			status                           int
			code                             string
		}{
			{"unknown session", "POST", "/sessions/nope/complete", "w", `{"final_score":1,"performance":{}}`, 404, "not_found"},
			{"unknown drill config", "GET", "/drills/nope/config", "", "", 404, "not_found"},
			{"missing caller", "POST", "/sessions", "", `{"drill_id":"memory-1","game_type":"pattern_matrix"}`, 401, "unauthorized"},
			{"malformed body", "POST", "/sessions", "w", `{`, 400, "bad_request"},
			{"unknown game type", "POST", "/sessions", "w", `{"drill_id":"memory-1","game_type":"chess"}`, 400, "validation_failed"},
			{"missing final score", "POST", "/sessions/x/complete", "w", `{"performance":{}}`, 400, "bad_request"},
			{"score above max", "POST", "/sessions/x/complete", "w", `{"final_score":9007199254740993,"performance":{}}`, 400, "validation_failed"},
			{"negative accuracy", "POST", "/sessions/x/complete", "w", `{"final_score":1,"performance":{"accuracy":-1}}`, 400, "validation_failed"},
			{"leaderboard without drill", "GET", "/leaderboard?game_type=pattern_matrix", "", "", 400, "bad_request"},
			{"leaderboard bad limit", "GET", "/leaderboard?drill_id=d&game_type=pattern_matrix&limit=zero", "", "", 400, "bad_request"},
			{"stats without game type", "GET", "/players/me/stats", "w", "", 400, "validation_failed"},
		}
		for _, tc := range cases {
			Convey("When the request is a "+tc.name, func() {
				w := h.do(tc.method, tc.path, tc.wallet, tc.body)

				Convey("Then the status and code reflect the error kind", func() {
					So(w.Code, ShouldEqual, tc.status)
					body := decode[errorBody](w)
					So(body.Code, ShouldEqual, tc.code)
					So(body.Message, ShouldNotBeEmpty)
				})
			})
		}

		Convey("When an unknown session is completed", func() {
			_, _ = h.store.EnsurePlayer(context.Background(), "w", "")
			h.do("POST", "/sessions/nope/complete", "w", `{"final_score":999,"performance":{"accuracy":100}}`)

			Convey("Then the ledger is untouched", func() {
				p, _ := h.store.GetPlayer(context.Background(), "w")
				So(p.Credits, ShouldEqual, int64(0))
			})
		})
	})
}

type failingDeps struct{ api.Dependencies }

func (failingDeps) GetLeaderboard(context.Context, string, model.GameType, int) ([]types.LeaderboardRow, error) {
	return nil, errors.New("connection reset")
}

type staticStats map[string]any

func (s staticStats) GetStats(context.Context) map[string]any { return s }

func TestServerInfrastructure(t *testing.T) {
	Convey("Given a server whose backend fails", t, func() {
		mux := http.NewServeMux()
		api.NewServer(failingDeps{}, staticStats{"started": true}, api.WithLogger(logger.New(io.Discard))).Register(context.Background(), mux)

		Convey("Then backend errors become 500 internal_error", func() {
			req := httptest.NewRequest("GET", "/leaderboard?drill_id=d&game_type=reaction_grid", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(decode[errorBody](w).Code, ShouldEqual, "internal_error")
		})

		Convey("Then /stats serves the provider's map", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("GET", "/stats", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			body := decode[map[string]any](w)
			So(body["started"], ShouldEqual, true)
			totals, ok := body["metrics"].(map[string]any)
			So(ok, ShouldBeTrue)
			So(totals, ShouldContainKey, "echelon_training_sessions_started_total")
		})

		Convey("Then /healthz serves Prometheus metrics", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "echelon_training_sessions_started_total")
		})

		Convey("Then the live route is absent without a hub", func() {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest("GET", "/ws/leaderboard", nil))
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("Given a server with a live hub", t, func() {
		hub := live.NewHub(live.WithLogger(logger.New(io.Discard)))
		defer hub.Close()
		h := newHarness(api.WithLiveHub(hub))

		Convey("Then a plain GET on the websocket route is rejected by the upgrade", func() {
			w := h.do("GET", "/ws/leaderboard?drill_id=memory-1&game_type=pattern_matrix", "", "")
			So(w.Code, ShouldEqual, http.StatusUpgradeRequired)
		})
	})

	Convey("Given a server that verifies tokens", t, func() {
		secret := "test-secret"
		h := newHarness(api.WithResolver(identity.NewResolver(identity.WithSecret(secret))))
		tok, err := identity.Sign(secret, identity.Caller{Wallet: "0xjwt", Name: "Jay"}, "", time.Now().Add(time.Hour))
		So(err, ShouldBeNil)

		Convey("Then a bearer token identifies the caller", func() {
			req := httptest.NewRequest("GET", "/players/me", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			w := httptest.NewRecorder()
			h.mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusOK)
			p := decode[model.Player](w)
			So(p.Wallet, ShouldEqual, "0xjwt")
			So(p.Name, ShouldEqual, "Jay")
		})

		Convey("Then the wallet header alone is refused", func() {
			So(h.do("GET", "/players/me", "0xjwt", "").Code, ShouldEqual, http.StatusUnauthorized)
		})
	})
}
