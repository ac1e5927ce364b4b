package types_test

import (
	"testing"

	"github.com/okian/echelon/internal/domain/model"
	types "github.com/okian/echelon/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestGameStatsAccumulate(t *testing.T) {
	Convey("Given empty stats", t, func() {
		var s types.GameStats

		Convey("Then every field is zero", func() {
			So(s, ShouldResemble, types.GameStats{})
		})

		Convey("When two sessions are folded in", func() {
			s.Accumulate(model.GameSession{FinalScore: 100, CreditsEarned: 10, XPEarned: 5, Performance: &model.Performance{Accuracy: 80}})
			s.Accumulate(model.GameSession{FinalScore: 300, CreditsEarned: 30, XPEarned: 15, Performance: &model.Performance{Accuracy: 60}})

			Convey("Then averages, best and totals are computed", func() {
				So(s.GamesPlayed, ShouldEqual, 2)
				So(s.AverageScore, ShouldAlmostEqual, 200.0, 1e-9)
				So(s.AverageAccuracy, ShouldAlmostEqual, 70.0, 1e-9)
				So(s.BestScore, ShouldEqual, int64(300))
				So(s.TotalCreditsEarned, ShouldEqual, int64(40))
				So(s.TotalXPEarned, ShouldEqual, int64(20))
			})
		})

		Convey("When a session has no performance snapshot", func() {
			s.Accumulate(model.GameSession{FinalScore: 0})

			Convey("Then accuracy counts as zero and best score is the first score", func() {
				So(s.GamesPlayed, ShouldEqual, 1)
				So(s.AverageAccuracy, ShouldEqual, 0.0)
				So(s.BestScore, ShouldEqual, int64(0))
			})
		})
	})
}
