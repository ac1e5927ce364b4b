package live_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/okian/echelon/internal/adapters/http/live"
	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/domain/types"
	"github.com/okian/echelon/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

var board = model.BoardKey{DrillID: "memory-1", GameType: model.GamePatternMatrix}

func snapshot(rows ...types.LeaderboardRow) live.SnapshotFunc {
	return func(context.Context, model.BoardKey) ([]types.LeaderboardRow, error) {
		return rows, nil
	}
}

func dial(ctx context.Context, srv *httptest.Server, query string) (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/leaderboard?" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	return conn, err
}

func TestHubStreaming(t *testing.T) {
	Convey("Given a hub served over httptest", t, func() {
		hub := live.NewHub(live.WithLogger(logger.New(io.Discard)), live.WithBuffer(4))
		srv := httptest.NewServer(hub.Handler(snapshot(types.LeaderboardRow{Rank: 1, PlayerWallet: "w1", HighScore: 10})))
		Reset(func() {
			hub.Close()
			srv.Close()
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		Reset(cancel)

		Convey("When a client subscribes", func() {
			conn, err := dial(ctx, srv, "drill_id=memory-1&game_type=pattern_matrix")
			So(err, ShouldBeNil)
			defer conn.CloseNow()

			var first live.Update
			So(wsjson.Read(ctx, conn, &first), ShouldBeNil)

			Convey("Then it first receives a snapshot", func() {
				So(first.Type, ShouldEqual, live.TypeSnapshot)
				So(len(first.Rows), ShouldEqual, 1)
				So(hub.Watching(board), ShouldBeTrue)
				So(hub.Subscribers(), ShouldEqual, 1)
			})

			Convey("Then published updates for its board arrive", func() {
				hub.Publish(ctx, board, []types.LeaderboardRow{{Rank: 1, PlayerWallet: "w2", HighScore: 99}})

				var next live.Update
				So(wsjson.Read(ctx, conn, &next), ShouldBeNil)
				So(next.Type, ShouldEqual, live.TypeUpdate)
				So(next.Rows[0].PlayerWallet, ShouldEqual, "w2")
			})

			Convey("Then other boards are not watched", func() {
				So(hub.Watching(model.BoardKey{DrillID: "memory-1", GameType: model.GameStaminaRush}), ShouldBeFalse)
			})
		})

		Convey("When the query is invalid", func() {
			resp, err := http.Get(srv.URL + "/ws/leaderboard?drill_id=x&game_type=chess")
			So(err, ShouldBeNil)
			defer resp.Body.Close()

			Convey("Then the upgrade is refused", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	Convey("Given a hub with no subscribers", t, func() {
		hub := live.NewHub(live.WithLogger(logger.New(io.Discard)))

		Convey("Then publishing does not block and nothing is watched", func() {
			hub.Publish(context.Background(), board, nil)
			So(hub.Watching(board), ShouldBeFalse)
			So(hub.Subscribers(), ShouldEqual, 0)
		})

		Convey("Then closing twice is safe", func() {
			hub.Close()
			hub.Close()
			So(hub.Subscribers(), ShouldEqual, 0)
		})
	})
}

func TestHubOrigins(t *testing.T) {
	Convey("Given a hub that allows one cross-origin host", t, func() {
		hub := live.NewHub(live.WithLogger(logger.New(io.Discard)), live.WithOriginPatterns("trainer.example.com"))
		srv := httptest.NewServer(hub.Handler(snapshot()))
		Reset(func() {
			hub.Close()
			srv.Close()
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		Reset(cancel)
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/leaderboard?drill_id=memory-1&game_type=pattern_matrix"
		dialFrom := func(origin string) (*websocket.Conn, *http.Response, error) {
			return websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: http.Header{"Origin": {origin}}})
		}

		Convey("Then the listed origin may subscribe", func() {
			conn, _, err := dialFrom("https://trainer.example.com")
			So(err, ShouldBeNil)
			defer conn.CloseNow()
			var first live.Update
			So(wsjson.Read(ctx, conn, &first), ShouldBeNil)
			So(first.Type, ShouldEqual, live.TypeSnapshot)
		})

		Convey("Then other origins are refused", func() {
			_, resp, err := dialFrom("https://elsewhere.example.com")
			So(err, ShouldNotBeNil)
			So(resp, ShouldNotBeNil)
			So(resp.StatusCode, ShouldEqual, http.StatusForbidden)
		})
	})
}
