package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/echelon/internal/domain/gameconfig"
	"github.com/okian/echelon/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// runStoreContract exercises behaviour every Store implementation shares.
// newStore must return an empty store; prefix isolates ids between runs.
func runStoreContract(t *testing.T, name string, newStore func() Store, prefix string) {
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	board := model.BoardKey{DrillID: prefix + "drill", GameType: model.GamePatternMatrix}

	Convey("Given an empty "+name, t, func() {
		s := newStore()
		Reset(func() { _ = s.Close() })

		Convey("Players are created once and credited additively", func() {
			p, err := s.EnsurePlayer(ctx, prefix+"w1", "Ada")
			So(err, ShouldBeNil)
			So(p.Credits, ShouldEqual, int64(0))

			again, err := s.EnsurePlayer(ctx, prefix+"w1", "Other")
			So(err, ShouldBeNil)
			So(again.Name, ShouldEqual, "Ada")

			So(s.CreditPlayer(ctx, prefix+"w1", 10, 5), ShouldBeNil)
			So(s.CreditPlayer(ctx, prefix+"w1", 7, 3), ShouldBeNil)
			got, err := s.GetPlayer(ctx, prefix+"w1")
			So(err, ShouldBeNil)
			So(got.Credits, ShouldEqual, int64(17))
			So(got.Experience, ShouldEqual, int64(8))
		})

		Convey("Crediting an unknown player is NotFound", func() {
			err := s.CreditPlayer(ctx, prefix+"ghost", 1, 1)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("Unknown records are NotFound", func() {
			_, err := s.GetDrill(ctx, prefix+"missing")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			_, err = s.GetSession(ctx, prefix+"missing")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			_, err = s.GetGameConfig(ctx, board)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("Sessions are created pending and completed in place", func() {
			sess := model.GameSession{ID: prefix + "s1", PlayerWallet: prefix + "w1", DrillID: board.DrillID, GameType: board.GameType, StartedAt: t0}
			So(s.CreateSession(ctx, sess), ShouldBeNil)

			got, err := s.GetSession(ctx, sess.ID)
			So(err, ShouldBeNil)
			So(got.Completed, ShouldBeFalse)
			So(got.EndedAt, ShouldBeNil)

			end := t0.Add(time.Minute)
			sess.EndedAt = &end
			sess.FinalScore = 420
			sess.Performance = &model.Performance{Accuracy: 80, Level: 2}
			sess.Completed = true
			sess.CreditsEarned = 216
			sess.XPEarned = 108
			So(s.CompleteSession(ctx, sess), ShouldBeNil)

			got, err = s.GetSession(ctx, sess.ID)
			So(err, ShouldBeNil)
			So(got.Completed, ShouldBeTrue)
			So(got.FinalScore, ShouldEqual, int64(420))
			So(got.Performance.Accuracy, ShouldEqual, 80.0)
			So(got.EndedAt.Equal(end), ShouldBeTrue)
		})

		Convey("Sessions list most recently ended first", func() {
			for i, id := range []string{"a", "b", "c"} {
				end := t0.Add(time.Duration(i) * time.Minute)
				So(s.CreateSession(ctx, model.GameSession{ID: prefix + id, PlayerWallet: prefix + "w2", DrillID: board.DrillID, GameType: board.GameType, StartedAt: t0}), ShouldBeNil)
				So(s.CompleteSession(ctx, model.GameSession{ID: prefix + id, PlayerWallet: prefix + "w2", DrillID: board.DrillID, GameType: board.GameType, StartedAt: t0, EndedAt: &end, Completed: true}), ShouldBeNil)
			}
			So(s.CreateSession(ctx, model.GameSession{ID: prefix + "pending", PlayerWallet: prefix + "w2", DrillID: board.DrillID, GameType: board.GameType, StartedAt: t0}), ShouldBeNil)

			list, err := s.ListSessions(ctx, SessionFilter{PlayerWallet: prefix + "w2", CompletedOnly: true, Limit: 2})
			So(err, ShouldBeNil)
			So(len(list), ShouldEqual, 2)
			So(list[0].ID, ShouldEqual, prefix+"c")
			So(list[1].ID, ShouldEqual, prefix+"b")

			all, err := s.ListSessions(ctx, SessionFilter{PlayerWallet: prefix + "w2"})
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 4)
		})

		Convey("Best scores only move upward", func() {
			e := model.LeaderboardEntry{DrillID: board.DrillID, GameType: board.GameType, PlayerWallet: prefix + "w1", HighScore: 100, AchievedAt: t0}

			out, err := s.UpsertBest(ctx, e)
			So(err, ShouldBeNil)
			So(out, ShouldEqual, model.UpsertInserted)

			out, err = s.UpsertBest(ctx, e)
			So(err, ShouldBeNil)
			So(out, ShouldEqual, model.UpsertUnchanged)

			lower := e
			lower.HighScore = 50
			out, err = s.UpsertBest(ctx, lower)
			So(err, ShouldBeNil)
			So(out, ShouldEqual, model.UpsertUnchanged)

			higher := e
			higher.HighScore = 150
			higher.AchievedAt = t0.Add(time.Hour)
			out, err = s.UpsertBest(ctx, higher)
			So(err, ShouldBeNil)
			So(out, ShouldEqual, model.UpsertImproved)

			got, err := s.GetEntry(ctx, board, prefix+"w1")
			So(err, ShouldBeNil)
			So(got.HighScore, ShouldEqual, int64(150))
			So(got.AchievedAt.Equal(t0.Add(time.Hour)), ShouldBeTrue)
		})

		Convey("Top entries are ordered by score then earlier achievement", func() {
			rows := []model.LeaderboardEntry{
				{PlayerWallet: prefix + "late", HighScore: 300, AchievedAt: t0.Add(time.Minute)},
				{PlayerWallet: prefix + "early", HighScore: 300, AchievedAt: t0},
				{PlayerWallet: prefix + "low", HighScore: 10, AchievedAt: t0},
				{PlayerWallet: prefix + "mid", HighScore: 200, AchievedAt: t0},
			}
			for _, r := range rows {
				r.DrillID, r.GameType = board.DrillID, board.GameType
				_, err := s.UpsertBest(ctx, r)
				So(err, ShouldBeNil)
			}

			top, err := s.TopEntries(ctx, board, 3)
			So(err, ShouldBeNil)
			So(len(top), ShouldEqual, 3)
			So(top[0].PlayerWallet, ShouldEqual, prefix+"early")
			So(top[1].PlayerWallet, ShouldEqual, prefix+"late")
			So(top[2].PlayerWallet, ShouldEqual, prefix+"mid")

			n, err := s.CountEntries(ctx, board)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 4)

			_, err = s.TopEntries(ctx, board, 0)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("Game configs keep their tuning variant", func() {
			cfg := gameconfig.Config{DrillID: board.DrillID, GameType: board.GameType, GridSize: 7, TimeLimit: 90, Lives: 2,
				Tuning: gameconfig.PatternMatrixTuning{PatternLength: 6, RevealMillis: 800}}
			So(s.PutGameConfig(ctx, cfg), ShouldBeNil)

			got, err := s.GetGameConfig(ctx, board)
			So(err, ShouldBeNil)
			So(got.GridSize, ShouldEqual, 7)
			So(got.Tuning, ShouldResemble, cfg.Tuning)
		})
	})
}
