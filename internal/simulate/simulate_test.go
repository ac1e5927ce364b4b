package simulate

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/okian/echelon/internal/adapters/http/api"
	service "github.com/okian/echelon/internal/app"
	"github.com/okian/echelon/internal/domain/model"
	"github.com/okian/echelon/internal/domain/types"
	"github.com/okian/echelon/internal/identity"
	"github.com/okian/echelon/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.InitWith(io.Discard, logger.FormatText); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newTarget(secret string, opts ...identity.Option) *httptest.Server {
	ctx := context.Background()
	quiet := logger.New(io.Discard)
	svc := service.New(service.WithLogger(quiet))
	if err := svc.Start(ctx); err != nil {
		panic(err)
	}
	if err := svc.SeedDrills(ctx, []model.Drill{
		{ID: "pattern-recall", Category: model.CategoryCognition, BaseCredits: 100, BaseXP: 50},
		{ID: "reaction-burst", Category: model.CategoryReflex, BaseCredits: 80, BaseXP: 40},
	}); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc,
		api.WithLogger(quiet),
		api.WithResolver(identity.NewResolver(append([]identity.Option{identity.WithSecret(secret)}, opts...)...)),
	).Register(ctx, mux)
	return httptest.NewServer(mux)
}

func testConfig(url string) *Config {
	return &Config{
		BaseURL:           url,
		Players:           12,
		SessionsPerPlayer: 4,
		Drills:            []string{"pattern-recall", "reaction-burst"},
		Workers:           4,
		Timeout:           5 * time.Second,
		TopN:              100,
	}
}

func TestRun(t *testing.T) {
	Convey("Given a running training API", t, func() {
		ctx := context.Background()

		Convey("When players identify by wallet header", func() {
			srv := newTarget("")
			defer srv.Close()
			stats, err := Run(ctx, testConfig(srv.URL))

			Convey("Then every session completes and both boards verify", func() {
				So(err, ShouldBeNil)
				So(stats.SessionsCompleted, ShouldEqual, 48)
				So(stats.SessionsOffline, ShouldEqual, 0)
				So(stats.BoardsVerified, ShouldEqual, 2)
				So(stats.CreditsEarned, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the server verifies tokens", func() {
			srv := newTarget("s3cret")
			defer srv.Close()
			cfg := testConfig(srv.URL)
			cfg.AuthSecret = "s3cret"
			stats, err := Run(ctx, cfg)

			Convey("Then signed players complete their sessions", func() {
				So(err, ShouldBeNil)
				So(stats.SessionsCompleted, ShouldEqual, 48)
			})
		})

		Convey("When the server also requires an issuer", func() {
			srv := newTarget("s3cret", identity.WithIssuer("echelon-idp"))
			defer srv.Close()
			cfg := testConfig(srv.URL)
			cfg.AuthSecret = "s3cret"

			Convey("Then tokens carrying that issuer are accepted", func() {
				cfg.AuthIssuer = "echelon-idp"
				stats, err := Run(ctx, cfg)
				So(err, ShouldBeNil)
				So(stats.SessionsCompleted, ShouldEqual, 48)
			})

			Convey("Then tokens without it are refused", func() {
				stats, err := Run(ctx, cfg)
				So(err, ShouldBeNil)
				So(stats.SessionsCompleted, ShouldEqual, 0)
			})
		})

		Convey("When the tokens are signed with the wrong secret", func() {
			srv := newTarget("s3cret")
			defer srv.Close()
			cfg := testConfig(srv.URL)
			cfg.AuthSecret = "other"
			stats, err := Run(ctx, cfg)

			Convey("Then every session is offline and nothing reaches the boards", func() {
				So(err, ShouldBeNil)
				So(stats.SessionsCompleted, ShouldEqual, 0)
				So(stats.SessionsOffline, ShouldEqual, 48)
			})
		})

		Convey("When a drill is unknown", func() {
			srv := newTarget("")
			defer srv.Close()
			cfg := testConfig(srv.URL)
			cfg.Drills = []string{"ghost"}
			_, err := Run(ctx, cfg)

			Convey("Then resolving boards fails", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the configuration is empty", func() {
			_, err := Run(ctx, &Config{BaseURL: "http://127.0.0.1:0"})

			Convey("Then it is rejected before any request", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			})
		})
	})
}

func TestVerifyRows(t *testing.T) {
	Convey("Given the best scores played", t, func() {
		best := map[string]int64{"a": 90, "b": 50}

		Convey("Then a correct board passes", func() {
			rows := []types.LeaderboardRow{
				{Rank: 1, PlayerWallet: "a", HighScore: 90},
				{Rank: 2, PlayerWallet: "other", HighScore: 70},
				{Rank: 3, PlayerWallet: "b", HighScore: 50},
			}
			So(verifyRows(rows, best, 10), ShouldBeNil)
		})

		Convey("Then out-of-order rows fail", func() {
			rows := []types.LeaderboardRow{
				{Rank: 1, PlayerWallet: "b", HighScore: 50},
				{Rank: 2, PlayerWallet: "a", HighScore: 90},
			}
			So(verifyRows(rows, best, 10), ShouldNotBeNil)
		})

		Convey("Then a stale high score fails", func() {
			rows := []types.LeaderboardRow{
				{Rank: 1, PlayerWallet: "a", HighScore: 80},
				{Rank: 2, PlayerWallet: "b", HighScore: 50},
			}
			So(verifyRows(rows, best, 10), ShouldNotBeNil)
		})

		Convey("Then misnumbered ranks fail", func() {
			rows := []types.LeaderboardRow{
				{Rank: 1, PlayerWallet: "a", HighScore: 90},
				{Rank: 3, PlayerWallet: "b", HighScore: 50},
			}
			So(verifyRows(rows, best, 10), ShouldNotBeNil)
		})

		Convey("Then an empty board fails", func() {
			So(verifyRows(nil, best, 10), ShouldNotBeNil)
		})
	})
}

func TestGeneratePlay(t *testing.T) {
	Convey("Given generated plays", t, func() {
		Convey("Then every snapshot is valid and consistent", func() {
			for i := 0; i < 500; i++ {
				score, perf := generatePlay()
				So(score, ShouldBeGreaterThanOrEqualTo, 0)
				So(perf.Validate(), ShouldBeNil)
				So(perf.Accuracy, ShouldBeLessThanOrEqualTo, 100)
				So(perf.PerfectRounds, ShouldBeLessThanOrEqualTo, perf.TotalRounds)
				So(perf.Level, ShouldBeBetweenOrEqual, 0, maxLevel)
			}
		})

		Convey("Then wallets are unique", func() {
			seen := map[string]bool{}
			for i := 0; i < 100; i++ {
				w := newWallet()
				So(seen[w], ShouldBeFalse)
				seen[w] = true
			}
		})
	})
}
